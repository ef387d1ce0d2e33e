package domain

import (
	"context"
	"fmt"
	"time"
)

// DefaultMonthlyBudget applies to users without an explicit budget
const DefaultMonthlyBudget = 10000.0

// Role represents a user role inside a tenant
type Role string

const (
	RoleEmployee     Role = "employee"
	RoleCompanyAdmin Role = "company_admin"
	RoleAdmin        Role = "admin"
	RoleSuperAdmin   Role = "super_admin"
)

// ParseRole validates a role name
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleEmployee, RoleCompanyAdmin, RoleAdmin, RoleSuperAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrValidation, s)
	}
}

// Company represents a tenant. Immutable after registration.
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// User represents a member of a company
type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"` // globally unique
	PasswordHash  string    `json:"-"`
	Role          Role      `json:"role"`
	CompanyID     string    `json:"companyId"`
	MonthlyBudget *float64  `json:"monthlyBudget,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Budget returns the monthly budget, falling back to fallback when unset or zero
func (u *User) Budget(fallback float64) float64 {
	if u == nil || u.MonthlyBudget == nil || *u.MonthlyBudget == 0 {
		return fallback
	}
	return *u.MonthlyBudget
}

// Principal is the identity resolved from a credential. Every tenant-scoped
// operation receives one; the company is never taken from request input.
type Principal struct {
	UserID    string
	CompanyID string
	Role      Role
}

type principalKey struct{}

// WithPrincipal stores the resolved principal in ctx
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored by the authentication middleware
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// CompanyRepository defines data access for companies
type CompanyRepository interface {
	Create(ctx context.Context, company *Company) error
	GetByID(ctx context.Context, id string) (*Company, error)
	Delete(ctx context.Context, id string) error
}

// UserRepository defines data access for users.
// Create returns ErrConflict when the email is already registered.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}
