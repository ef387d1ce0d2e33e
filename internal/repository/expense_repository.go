package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/aryan0dhankhar/expensehub/internal/domain"
)

// PostgresExpenseRepository implements domain.ExpenseRepository and
// domain.ExpenseAggregator. Every statement is scoped by company_id = $1.
type PostgresExpenseRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresExpenseRepository creates a new expense repository
func NewPostgresExpenseRepository(db *sql.DB, logger *slog.Logger) *PostgresExpenseRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresExpenseRepository{db: db, logger: logger}
}

// sortColumns whitelists the ORDER BY targets a caller may request
var sortColumns = map[domain.SortField]string{
	domain.SortByDate:      "e.date",
	domain.SortByAmount:    "e.amount",
	domain.SortByCategory:  "e.category",
	domain.SortByStatus:    "e.status",
	domain.SortByCreatedAt: "e.created_at",
}

const expenseColumns = `e.id, e.company_id, e.user_id, e.amount, e.category, e.date, e.description, e.status, e.created_at, e.updated_at`

// Create inserts a new expense
func (r *PostgresExpenseRepository) Create(ctx context.Context, expense *domain.Expense) error {
	query := `
		INSERT INTO expenses (id, company_id, user_id, amount, category, date, description, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		expense.ID,
		expense.CompanyID,
		expense.UserID,
		expense.Amount,
		expense.Category,
		expense.Date.UTC(),
		expense.Description,
		string(expense.Status),
	).Scan(&expense.CreatedAt, &expense.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to create expense",
			slog.String("company_id", expense.CompanyID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: failed to create expense: %v", domain.ErrInternal, err)
	}
	expense.CreatedAt = expense.CreatedAt.UTC()
	expense.UpdatedAt = expense.UpdatedAt.UTC()
	return nil
}

// GetByID retrieves an expense inside the given company
func (r *PostgresExpenseRepository) GetByID(ctx context.Context, companyID, id string) (*domain.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses e WHERE e.company_id = $1 AND e.id = $2`
	expense, err := scanExpense(r.db.QueryRowContext(ctx, query, companyID, id))
	if err != nil {
		return nil, notFoundOr(err, "expense")
	}
	return expense, nil
}

// Update overwrites the mutable fields. The updated_at stamp comes from the caller.
func (r *PostgresExpenseRepository) Update(ctx context.Context, expense *domain.Expense) error {
	query := `
		UPDATE expenses
		SET amount = $3, category = $4, date = $5, description = $6, status = $7, updated_at = $8
		WHERE company_id = $1 AND id = $2
	`
	result, err := r.db.ExecContext(ctx, query,
		expense.CompanyID,
		expense.ID,
		expense.Amount,
		expense.Category,
		expense.Date.UTC(),
		expense.Description,
		string(expense.Status),
		expense.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("failed to update expense",
			slog.String("expense_id", expense.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: failed to update expense: %v", domain.ErrInternal, err)
	}
	return expectOneRow(result)
}

// Delete removes an expense inside the given company
func (r *PostgresExpenseRepository) Delete(ctx context.Context, companyID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE company_id = $1 AND id = $2`, companyID, id)
	if err != nil {
		return fmt.Errorf("%w: failed to delete expense: %v", domain.ErrInternal, err)
	}
	return expectOneRow(result)
}

// List returns one page of the tenant's expenses with the owner summary, and
// the total count of matches ignoring pagination
func (r *PostgresExpenseRepository) List(ctx context.Context, companyID string, filter domain.ExpenseFilter) ([]*domain.Expense, int, error) {
	where, args := listConditions(companyID, filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM expenses e WHERE ` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%w: failed to count expenses: %v", domain.ErrInternal, err)
	}

	query := fmt.Sprintf(`
		SELECT %s, COALESCE(u.name, ''), COALESCE(u.email, '')
		FROM expenses e
		LEFT JOIN users u ON u.id = e.user_id
		WHERE %s
		ORDER BY %s, e.id
		LIMIT $%d OFFSET $%d
	`, expenseColumns, where, orderBy(filter), len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list expenses",
			slog.String("company_id", companyID),
			slog.String("error", err.Error()),
		)
		return nil, 0, fmt.Errorf("%w: failed to list expenses: %v", domain.ErrInternal, err)
	}
	defer rows.Close()

	expenses := make([]*domain.Expense, 0, filter.Limit)
	for rows.Next() {
		owner := &domain.ExpenseOwner{}
		expense, err := scanExpense(rows, &owner.Name, &owner.Email)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: failed to scan expense: %v", domain.ErrInternal, err)
		}
		owner.ID = expense.UserID
		expense.Owner = owner
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: failed to iterate expenses: %v", domain.ErrInternal, err)
	}
	return expenses, total, nil
}

// Totals sums amount and counts expenses in the window
func (r *PostgresExpenseRepository) Totals(ctx context.Context, companyID string, window domain.DateRange) (domain.Totals, error) {
	var totals domain.Totals
	query := `
		SELECT COALESCE(SUM(amount), 0), COUNT(*)
		FROM expenses
		WHERE company_id = $1 AND date >= $2 AND date <= $3
	`
	err := r.db.QueryRowContext(ctx, query, companyID, window.Start.UTC(), window.End.UTC()).Scan(&totals.Sum, &totals.Count)
	if err != nil {
		return domain.Totals{}, fmt.Errorf("%w: failed to total expenses: %v", domain.ErrInternal, err)
	}
	return totals, nil
}

// Highest returns the single largest expense in the window, or nil
func (r *PostgresExpenseRepository) Highest(ctx context.Context, companyID string, window domain.DateRange) (*domain.Expense, error) {
	query := `SELECT ` + expenseColumns + `
		FROM expenses e
		WHERE e.company_id = $1 AND e.date >= $2 AND e.date <= $3
		ORDER BY e.amount DESC, e.created_at ASC
		LIMIT 1
	`
	expense, err := scanExpense(r.db.QueryRowContext(ctx, query, companyID, window.Start.UTC(), window.End.UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to find highest expense: %v", domain.ErrInternal, err)
	}
	return expense, nil
}

// DailyTotals groups spend by UTC calendar day, ascending
func (r *PostgresExpenseRepository) DailyTotals(ctx context.Context, companyID string, window domain.DateRange) ([]domain.DailyBucket, error) {
	query := `
		SELECT to_char(date AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, SUM(amount)
		FROM expenses
		WHERE company_id = $1 AND date >= $2 AND date <= $3
		GROUP BY day
		ORDER BY day ASC
	`
	rows, err := r.db.QueryContext(ctx, query, companyID, window.Start.UTC(), window.End.UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to group daily totals: %v", domain.ErrInternal, err)
	}
	defer rows.Close()

	buckets := []domain.DailyBucket{}
	for rows.Next() {
		var b domain.DailyBucket
		if err := rows.Scan(&b.Day, &b.Amount); err != nil {
			return nil, fmt.Errorf("%w: failed to scan daily total: %v", domain.ErrInternal, err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate daily totals: %v", domain.ErrInternal, err)
	}
	return buckets, nil
}

// CategoryTotals groups spend by category, largest total first
func (r *PostgresExpenseRepository) CategoryTotals(ctx context.Context, companyID string, window domain.DateRange) ([]domain.CategoryBucket, error) {
	query := `
		SELECT category, SUM(amount) AS total, COUNT(*)
		FROM expenses
		WHERE company_id = $1 AND date >= $2 AND date <= $3
		GROUP BY category
		ORDER BY total DESC, category ASC
	`
	rows, err := r.db.QueryContext(ctx, query, companyID, window.Start.UTC(), window.End.UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to group category totals: %v", domain.ErrInternal, err)
	}
	defer rows.Close()

	buckets := []domain.CategoryBucket{}
	for rows.Next() {
		var (
			b     domain.CategoryBucket
			total decimal.Decimal
		)
		if err := rows.Scan(&b.Category, &total, &b.Count); err != nil {
			return nil, fmt.Errorf("%w: failed to scan category total: %v", domain.ErrInternal, err)
		}
		b.Total = total
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate category totals: %v", domain.ErrInternal, err)
	}
	return buckets, nil
}

func listConditions(companyID string, filter domain.ExpenseFilter) (string, []any) {
	conds := []string{"e.company_id = $1"}
	args := []any{companyID}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("e.status = $%d", len(args)))
	}
	if filter.Range != nil {
		args = append(args, filter.Range.Start.UTC(), filter.Range.End.UTC())
		conds = append(conds, fmt.Sprintf("e.date >= $%d AND e.date <= $%d", len(args)-1, len(args)))
	}
	return strings.Join(conds, " AND "), args
}

func orderBy(filter domain.ExpenseFilter) string {
	column, ok := sortColumns[filter.SortField]
	if !ok {
		return "e.date DESC"
	}
	if filter.SortDesc {
		return column + " DESC"
	}
	return column + " ASC"
}

func expectOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to check rows affected: %v", domain.ErrInternal, err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: expense not found", domain.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(row scanner, extra ...any) (*domain.Expense, error) {
	e := &domain.Expense{}
	var status string
	dest := append([]any{
		&e.ID,
		&e.CompanyID,
		&e.UserID,
		&e.Amount,
		&e.Category,
		&e.Date,
		&e.Description,
		&status,
		&e.CreatedAt,
		&e.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	e.Status = domain.Status(status)
	e.Date = e.Date.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return e, nil
}
