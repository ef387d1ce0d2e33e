package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/aryan0dhankhar/expensehub/internal/domain"
)

// uniqueViolation is the SQLSTATE Postgres reports for a unique index clash
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// notFoundOr maps sql.ErrNoRows to ErrNotFound and wraps everything else as internal
func notFoundOr(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s not found", domain.ErrNotFound, what)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrInternal, what, err)
}
