//go:build integration

package repository

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/expensehub/internal/domain"
	"github.com/aryan0dhankhar/expensehub/pkg/config"
	"github.com/aryan0dhankhar/expensehub/pkg/database"
)

// Run with: DB_HOST=localhost go test -tags integration ./internal/repository/...
// The DB_* variables are the ones the server reads.

type pgFixture struct {
	db        *sql.DB
	companies *PostgresCompanyRepository
	users     *PostgresUserRepository
	expenses  *PostgresExpenseRepository
}

func openPostgres(t *testing.T) pgFixture {
	t.Helper()
	if os.Getenv("DB_HOST") == "" {
		t.Skip("DB_HOST not set")
	}
	cfg, err := config.Load()
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool, err := database.NewConnectionPool(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	require.NoError(t, database.RunMigrations(cfg, logger))

	db := pool.GetDB()
	return pgFixture{
		db:        db,
		companies: NewPostgresCompanyRepository(db, logger),
		users:     NewPostgresUserRepository(db, logger),
		expenses:  NewPostgresExpenseRepository(db, logger),
	}
}

// tenant creates a fresh company with one user. Ids are random so runs
// against a shared database never see each other's rows.
func (f pgFixture) tenant(t *testing.T, name string) (company, user string) {
	t.Helper()
	ctx := context.Background()
	company = uuid.NewString()
	require.NoError(t, f.companies.Create(ctx, &domain.Company{ID: company, Name: name}))
	t.Cleanup(func() { _ = f.companies.Delete(context.Background(), company) })

	u := &domain.User{
		ID:           uuid.NewString(),
		Name:         name + " Owner",
		Email:        uuid.NewString() + "@" + name + ".test",
		PasswordHash: "x",
		Role:         domain.RoleEmployee,
		CompanyID:    company,
	}
	require.NoError(t, f.users.Create(ctx, u))
	return company, u.ID
}

func (f pgFixture) add(t *testing.T, company, user string, amount float64, category string, day time.Time) *domain.Expense {
	t.Helper()
	e := &domain.Expense{
		ID:        uuid.NewString(),
		CompanyID: company,
		UserID:    user,
		Amount:    amount,
		Category:  category,
		Date:      day,
		Status:    domain.StatusPending,
	}
	require.NoError(t, f.expenses.Create(context.Background(), e))
	return e
}

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
}

func march() domain.DateRange {
	return domain.DateRange{Start: day(time.March, 1), End: time.Date(2024, time.March, 31, 23, 59, 59, 999e6, time.UTC)}
}

func TestPostgresAggregates(t *testing.T) {
	f := openPostgres(t)
	ctx := context.Background()
	acme, erin := f.tenant(t, "acme")
	globex, otto := f.tenant(t, "globex")

	f.add(t, acme, erin, 40, "travel", day(time.February, 29))
	first := f.add(t, acme, erin, 120.5, "travel", day(time.March, 1))
	f.add(t, acme, erin, 120.5, "food", day(time.March, 3))
	f.add(t, acme, erin, 9.25, "food", day(time.March, 3))
	f.add(t, acme, erin, 30, "office", day(time.March, 31))
	f.add(t, acme, erin, 11, "food", day(time.April, 1))
	f.add(t, globex, otto, 999, "travel", day(time.March, 10))

	t.Run("totals", func(t *testing.T) {
		totals, err := f.expenses.Totals(ctx, acme, march())
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("280.25").Equal(totals.Sum), totals.Sum.String())
		assert.Equal(t, int64(4), totals.Count)
	})

	t.Run("highest breaks ties by creation", func(t *testing.T) {
		top, err := f.expenses.Highest(ctx, acme, march())
		require.NoError(t, err)
		require.NotNil(t, top)
		assert.Equal(t, first.ID, top.ID)
		assert.Equal(t, 120.5, top.Amount)
	})

	t.Run("highest of an empty window", func(t *testing.T) {
		empty := domain.DateRange{Start: day(time.June, 1), End: day(time.June, 30)}
		top, err := f.expenses.Highest(ctx, acme, empty)
		require.NoError(t, err)
		assert.Nil(t, top)

		totals, err := f.expenses.Totals(ctx, acme, empty)
		require.NoError(t, err)
		assert.True(t, totals.Sum.IsZero())
		assert.Zero(t, totals.Count)
	})

	t.Run("daily buckets", func(t *testing.T) {
		buckets, err := f.expenses.DailyTotals(ctx, acme, march())
		require.NoError(t, err)
		require.Len(t, buckets, 3)
		assert.Equal(t, "2024-03-01", buckets[0].Day)
		assert.Equal(t, "2024-03-03", buckets[1].Day)
		assert.True(t, decimal.RequireFromString("129.75").Equal(buckets[1].Amount), buckets[1].Amount.String())
		assert.Equal(t, "2024-03-31", buckets[2].Day)
	})

	t.Run("categories by total then name", func(t *testing.T) {
		buckets, err := f.expenses.CategoryTotals(ctx, acme, march())
		require.NoError(t, err)
		require.Len(t, buckets, 3)
		assert.Equal(t, "food", buckets[0].Category)
		assert.Equal(t, int64(2), buckets[0].Count)
		assert.Equal(t, "travel", buckets[1].Category)
		assert.Equal(t, "office", buckets[2].Category)
	})

	t.Run("ties in category totals sort by name", func(t *testing.T) {
		w := domain.DateRange{Start: day(time.May, 1), End: day(time.May, 31)}
		f.add(t, acme, erin, 5, "zoo", day(time.May, 2))
		f.add(t, acme, erin, 5, "art", day(time.May, 3))
		buckets, err := f.expenses.CategoryTotals(ctx, acme, w)
		require.NoError(t, err)
		require.Len(t, buckets, 2)
		assert.Equal(t, "art", buckets[0].Category)
		assert.Equal(t, "zoo", buckets[1].Category)
	})

	t.Run("other tenants are excluded", func(t *testing.T) {
		totals, err := f.expenses.Totals(ctx, globex, march())
		require.NoError(t, err)
		assert.Equal(t, int64(1), totals.Count)

		top, err := f.expenses.Highest(ctx, acme, march())
		require.NoError(t, err)
		assert.NotEqual(t, 999.0, top.Amount)
	})
}

func TestPostgresListJoinsOwner(t *testing.T) {
	f := openPostgres(t)
	ctx := context.Background()
	acme, erin := f.tenant(t, "acme")
	globex, otto := f.tenant(t, "globex")

	older := f.add(t, acme, erin, 10, "food", day(time.March, 1))
	newer := f.add(t, acme, erin, 20, "food", day(time.March, 2))
	f.add(t, globex, otto, 30, "food", day(time.March, 3))

	page, total, err := f.expenses.List(ctx, acme, domain.ExpenseFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, page, 2)
	assert.Equal(t, newer.ID, page[0].ID)
	assert.Equal(t, older.ID, page[1].ID)
	require.NotNil(t, page[0].Owner)
	assert.Equal(t, erin, page[0].Owner.ID)
	assert.Equal(t, "acme Owner", page[0].Owner.Name)

	page, total, err = f.expenses.List(ctx, acme, domain.ExpenseFilter{Page: 2, Limit: 1, SortField: domain.SortByAmount})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, page, 1)
	assert.Equal(t, newer.ID, page[0].ID)
}

func TestPostgresWritesStayInTenant(t *testing.T) {
	f := openPostgres(t)
	ctx := context.Background()
	acme, erin := f.tenant(t, "acme")
	globex, _ := f.tenant(t, "globex")
	e := f.add(t, acme, erin, 10, "food", day(time.March, 1))

	_, err := f.expenses.GetByID(ctx, globex, e.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	foreign := *e
	foreign.CompanyID = globex
	foreign.Amount = 1
	foreign.UpdatedAt = time.Now()
	assert.ErrorIs(t, f.expenses.Update(ctx, &foreign), domain.ErrNotFound)
	assert.ErrorIs(t, f.expenses.Delete(ctx, globex, e.ID), domain.ErrNotFound)

	missing := *e
	missing.ID = uuid.NewString()
	assert.ErrorIs(t, f.expenses.Update(ctx, &missing), domain.ErrNotFound)
	assert.ErrorIs(t, f.expenses.Delete(ctx, acme, missing.ID), domain.ErrNotFound)

	stored, err := f.expenses.GetByID(ctx, acme, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 10.0, stored.Amount)

	e.Status = domain.StatusApproved
	e.UpdatedAt = time.Now()
	require.NoError(t, f.expenses.Update(ctx, e))
	require.NoError(t, f.expenses.Delete(ctx, acme, e.ID))
	_, err = f.expenses.GetByID(ctx, acme, e.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
