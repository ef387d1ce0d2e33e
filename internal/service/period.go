package service

import (
	"time"

	"github.com/aryan0dhankhar/expensehub/internal/domain"
)

// CurrentMonth returns the calendar month containing now in loc. Expense
// dates are calendar days stored at midnight UTC, so the bounds are that
// month's first day 00:00:00.000 UTC and last day 23:59:59.999 UTC.
func CurrentMonth(now time.Time, loc *time.Location) domain.DateRange {
	if loc == nil {
		loc = time.Local
	}
	y, m, _ := now.In(loc).Date()
	return domain.DateRange{
		Start: time.Date(y, m, 1, 0, 0, 0, 0, time.UTC),
		// day 0 of the next month is the last day of this one
		End: time.Date(y, m+1, 0, 23, 59, 59, int(999*time.Millisecond), time.UTC),
	}
}

// ShiftMonths moves both bounds by n calendar months. Day overflow
// normalises forward, so Mar 31 shifted back one month lands on Mar 2 or 3.
// The shifted window may differ in length from the original.
func ShiftMonths(r domain.DateRange, n int) domain.DateRange {
	return domain.DateRange{
		Start: r.Start.AddDate(0, n, 0),
		End:   r.End.AddDate(0, n, 0),
	}
}

// ResolveWindow uses the explicit bounds when both are given, otherwise the
// current month
func ResolveWindow(start, end *time.Time, now time.Time, loc *time.Location) domain.DateRange {
	if start != nil && end != nil {
		return domain.DateRange{Start: *start, End: *end}
	}
	return CurrentMonth(now, loc)
}
