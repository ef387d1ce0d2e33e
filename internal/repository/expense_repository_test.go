package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/aryan0dhankhar/expensehub/internal/domain"
)

func TestListConditions(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	where, args := listConditions("c1", domain.ExpenseFilter{})
	assert.Equal(t, "e.company_id = $1", where)
	assert.Equal(t, []any{"c1"}, args)

	where, args = listConditions("c1", domain.ExpenseFilter{
		Status: domain.StatusPending,
		Range:  &domain.DateRange{Start: start, End: end},
	})
	assert.Equal(t, "e.company_id = $1 AND e.status = $2 AND e.date >= $3 AND e.date <= $4", where)
	assert.Equal(t, []any{"c1", "pending", start, end}, args)
}

func TestOrderBy(t *testing.T) {
	assert.Equal(t, "e.date DESC", orderBy(domain.ExpenseFilter{}))
	assert.Equal(t, "e.amount DESC", orderBy(domain.ExpenseFilter{SortField: domain.SortByAmount, SortDesc: true}))
	assert.Equal(t, "e.created_at ASC", orderBy(domain.ExpenseFilter{SortField: domain.SortByCreatedAt}))
	assert.Equal(t, "e.date DESC", orderBy(domain.ExpenseFilter{SortField: "amount; DROP TABLE expenses"}))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}
