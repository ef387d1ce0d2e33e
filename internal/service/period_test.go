package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/expensehub/internal/domain"
)

func TestCurrentMonth(t *testing.T) {
	now := time.Date(2024, 2, 17, 15, 4, 5, 0, time.UTC)
	w := CurrentMonth(now, time.UTC)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2024, 2, 29, 23, 59, 59, 999_000_000, time.UTC), w.End)
	assert.Equal(t, int64(29), w.Days())
}

func TestCurrentMonthUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	// 23:30 UTC on Jan 31 is already February in UTC+2
	now := time.Date(2024, 1, 31, 23, 30, 0, 0, time.UTC)
	w := CurrentMonth(now, loc)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2024, 2, 29, 23, 59, 59, 999_000_000, time.UTC), w.End)

	// 02:00 UTC on Mar 1 is still February in New York
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	w = CurrentMonth(time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC), ny)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.UTC, w.End.Location())
}

func TestShiftMonths(t *testing.T) {
	tests := []struct {
		name       string
		start, end time.Time
		wantStart  time.Time
		wantEnd    time.Time
	}{
		{
			name:      "march to february overflows",
			start:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			end:       time.Date(2024, 3, 31, 23, 59, 59, 999_000_000, time.UTC),
			wantStart: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 3, 2, 23, 59, 59, 999_000_000, time.UTC),
		},
		{
			name:      "january to previous december",
			start:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			end:       time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			wantStart: time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShiftMonths(domain.DateRange{Start: tt.start, End: tt.end}, -1)
			assert.Equal(t, tt.wantStart, got.Start)
			assert.Equal(t, tt.wantEnd, got.End)
		})
	}
}

func TestResolveWindow(t *testing.T) {
	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	start := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)

	w := ResolveWindow(&start, &end, now, time.UTC)
	assert.Equal(t, start, w.Start)
	assert.Equal(t, end, w.End)
	assert.Equal(t, int64(4), w.Days())

	// a single bound falls back to the current month
	w = ResolveWindow(&start, nil, now, time.UTC)
	assert.Equal(t, time.March, w.Start.Month())

	same := ResolveWindow(&start, &start, now, time.UTC)
	assert.Equal(t, int64(1), same.Days())
}
