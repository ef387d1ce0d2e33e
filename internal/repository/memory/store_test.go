package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/expensehub/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seed(t *testing.T) (*Store, context.Context) {
	t.Helper()
	ctx := context.Background()
	s := NewStore()
	for _, c := range []string{"c1", "c2"} {
		require.NoError(t, s.Companies().Create(ctx, &domain.Company{ID: c, Name: c}))
	}
	require.NoError(t, s.Users().Create(ctx, &domain.User{ID: "u1", Name: "Ann", Email: "ann@a.io", CompanyID: "c1", Role: domain.RoleEmployee}))
	require.NoError(t, s.Users().Create(ctx, &domain.User{ID: "u2", Name: "Bob", Email: "bob@b.io", CompanyID: "c2", Role: domain.RoleEmployee}))

	created := day(2024, 3, 1)
	expenses := []domain.Expense{
		{ID: "e1", CompanyID: "c1", UserID: "u1", Amount: 10, Category: "food", Date: day(2024, 3, 1), Status: domain.StatusPending},
		{ID: "e2", CompanyID: "c1", UserID: "u1", Amount: 30, Category: "travel", Date: day(2024, 3, 2), Status: domain.StatusApproved},
		{ID: "e3", CompanyID: "c1", UserID: "u1", Amount: 20, Category: "food", Date: day(2024, 3, 2), Status: domain.StatusRejected},
		{ID: "e4", CompanyID: "c2", UserID: "u2", Amount: 999, Category: "food", Date: day(2024, 3, 2), Status: domain.StatusPending},
	}
	for i := range expenses {
		expenses[i].CreatedAt = created.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.Expenses().Create(ctx, &expenses[i]))
	}
	return s, ctx
}

func TestDuplicateEmailIsConflict(t *testing.T) {
	s, ctx := seed(t)
	err := s.Users().Create(ctx, &domain.User{ID: "u9", Email: "ANN@a.io", CompanyID: "c1"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	u, err := s.Users().GetByEmail(ctx, "Ann@A.io")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
}

func TestExpenseTenantScoping(t *testing.T) {
	s, ctx := seed(t)
	repo := s.Expenses()

	_, err := repo.GetByID(ctx, "c2", "e1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, "c2", "e1"), domain.ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, &domain.Expense{ID: "e1", CompanyID: "c2"}), domain.ErrNotFound)

	e, err := repo.GetByID(ctx, "c1", "e1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, e.Amount)
}

func TestReturnedValuesAreCopies(t *testing.T) {
	s, ctx := seed(t)
	e, err := s.Expenses().GetByID(ctx, "c1", "e1")
	require.NoError(t, err)
	e.Amount = 1

	again, err := s.Expenses().GetByID(ctx, "c1", "e1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, again.Amount)
}

func TestListFilterSortPaginate(t *testing.T) {
	s, ctx := seed(t)
	repo := s.Expenses()

	items, total, err := repo.List(ctx, "c1", domain.ExpenseFilter{SortField: domain.SortByAmount, SortDesc: true, Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 2)
	assert.Equal(t, "e2", items[0].ID)
	assert.Equal(t, "e3", items[1].ID)
	require.NotNil(t, items[0].Owner)
	assert.Equal(t, "Ann", items[0].Owner.Name)
	assert.Equal(t, "ann@a.io", items[0].Owner.Email)

	items, total, err = repo.List(ctx, "c1", domain.ExpenseFilter{SortField: domain.SortByAmount, SortDesc: true, Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 1)
	assert.Equal(t, "e1", items[0].ID)

	items, total, err = repo.List(ctx, "c1", domain.ExpenseFilter{Status: domain.StatusPending, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "e1", items[0].ID)

	window := &domain.DateRange{Start: day(2024, 3, 2), End: day(2024, 3, 2)}
	_, total, err = repo.List(ctx, "c1", domain.ExpenseFilter{Range: window, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	items, total, err = repo.List(ctx, "c1", domain.ExpenseFilter{Page: 5, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, items)
}

func TestAggregatesIgnoreStatusAndOtherTenants(t *testing.T) {
	s, ctx := seed(t)
	repo := s.Expenses()
	window := domain.DateRange{Start: day(2024, 3, 1), End: day(2024, 3, 31)}

	totals, err := repo.Totals(ctx, "c1", window)
	require.NoError(t, err)
	assert.Equal(t, "60", totals.Sum.String())
	assert.Equal(t, int64(3), totals.Count)

	highest, err := repo.Highest(ctx, "c1", window)
	require.NoError(t, err)
	require.NotNil(t, highest)
	assert.Equal(t, "e2", highest.ID)

	daily, err := repo.DailyTotals(ctx, "c1", window)
	require.NoError(t, err)
	require.Len(t, daily, 2)
	assert.Equal(t, "2024-03-01", daily[0].Day)
	assert.Equal(t, "10", daily[0].Amount.String())
	assert.Equal(t, "2024-03-02", daily[1].Day)
	assert.Equal(t, "50", daily[1].Amount.String())

	cats, err := repo.CategoryTotals(ctx, "c1", window)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "food", cats[0].Category)
	assert.Equal(t, "30", cats[0].Total.String())
	assert.Equal(t, int64(2), cats[0].Count)
	assert.Equal(t, "travel", cats[1].Category)

	empty := domain.DateRange{Start: day(2023, 1, 1), End: day(2023, 1, 31)}
	highest, err = repo.Highest(ctx, "c1", empty)
	require.NoError(t, err)
	assert.Nil(t, highest)
	totals, err = repo.Totals(ctx, "c1", empty)
	require.NoError(t, err)
	assert.True(t, totals.Sum.IsZero())
}

func TestHighestTieBreaksOnCreation(t *testing.T) {
	s, ctx := seed(t)
	repo := s.Expenses()
	late := domain.Expense{ID: "e5", CompanyID: "c1", UserID: "u1", Amount: 30, Category: "x", Date: day(2024, 3, 3), CreatedAt: day(2024, 4, 1)}
	require.NoError(t, repo.Create(ctx, &late))

	highest, err := repo.Highest(ctx, "c1", domain.DateRange{Start: day(2024, 3, 1), End: day(2024, 3, 31)})
	require.NoError(t, err)
	assert.Equal(t, "e2", highest.ID)
}

func TestCompanyDelete(t *testing.T) {
	s, ctx := seed(t)
	require.NoError(t, s.Companies().Delete(ctx, "c2"))
	_, err := s.Companies().GetByID(ctx, "c2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.Companies().Delete(ctx, "c2"), domain.ErrNotFound)
}
