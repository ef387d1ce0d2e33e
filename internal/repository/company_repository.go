package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/aryan0dhankhar/expensehub/internal/domain"
)

// PostgresCompanyRepository implements domain.CompanyRepository using PostgreSQL
type PostgresCompanyRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresCompanyRepository creates a new company repository
func NewPostgresCompanyRepository(db *sql.DB, logger *slog.Logger) *PostgresCompanyRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCompanyRepository{db: db, logger: logger}
}

// Create creates a new company
func (r *PostgresCompanyRepository) Create(ctx context.Context, company *domain.Company) error {
	query := `
		INSERT INTO companies (id, name)
		VALUES ($1, $2)
		RETURNING created_at
	`
	if err := r.db.QueryRowContext(ctx, query, company.ID, company.Name).Scan(&company.CreatedAt); err != nil {
		r.logger.Error("failed to create company",
			slog.String("name", company.Name),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: failed to create company: %v", domain.ErrInternal, err)
	}
	return nil
}

// GetByID retrieves a company by ID
func (r *PostgresCompanyRepository) GetByID(ctx context.Context, id string) (*domain.Company, error) {
	c := &domain.Company{}
	query := `
		SELECT id, name, created_at
		FROM companies
		WHERE id = $1
	`
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
		return nil, notFoundOr(err, "company")
	}
	return c, nil
}

// Delete removes a company. Used to roll back a registration whose admin user
// could not be created.
func (r *PostgresCompanyRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM companies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: failed to delete company: %v", domain.ErrInternal, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to check rows affected: %v", domain.ErrInternal, err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: company not found", domain.ErrNotFound)
	}
	return nil
}
