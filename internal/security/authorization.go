package security

import (
	"fmt"
	"log/slog"

	"github.com/aryan0dhankhar/expensehub/internal/domain"
)

// Permission represents an action permission
type Permission string

const (
	PermCreateExpense    Permission = "create_expense"
	PermListExpenses     Permission = "list_expenses"
	PermModifyOwnExpense Permission = "modify_own_expense"
	PermModifyAnyExpense Permission = "modify_any_expense"
	PermSetExpenseStatus Permission = "set_expense_status"
	PermViewAnalytics    Permission = "view_analytics"
	PermAutoApprove      Permission = "auto_approve"
)

var adminPermissions = []Permission{
	PermCreateExpense,
	PermListExpenses,
	PermModifyOwnExpense,
	PermModifyAnyExpense,
	PermSetExpenseStatus,
	PermViewAnalytics,
	PermAutoApprove,
}

// RolePermissions maps roles to their permissions. Every admin role shares
// one set; adding a role means adding one line here.
var RolePermissions = map[domain.Role][]Permission{
	domain.RoleCompanyAdmin: adminPermissions,
	domain.RoleAdmin:        adminPermissions,
	domain.RoleSuperAdmin:   adminPermissions,
	domain.RoleEmployee: {
		PermCreateExpense,
		PermListExpenses,
		PermModifyOwnExpense,
		PermViewAnalytics,
	},
}

// Authorizer answers capability and ownership questions for a principal
type Authorizer struct {
	logger *slog.Logger
}

// NewAuthorizer creates a new authorizer
func NewAuthorizer(logger *slog.Logger) *Authorizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authorizer{logger: logger}
}

// Can checks if a role has a specific permission
func (a *Authorizer) Can(role domain.Role, permission Permission) bool {
	for _, p := range RolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// Require returns ErrForbidden unless the principal's role grants permission
func (a *Authorizer) Require(p domain.Principal, permission Permission) error {
	if !a.Can(p.Role, permission) {
		a.logger.Warn("permission denied",
			slog.String("user_id", p.UserID),
			slog.String("role", string(p.Role)),
			slog.String("permission", string(permission)),
		)
		return fmt.Errorf("%w: %s role cannot %s", domain.ErrForbidden, p.Role, permission)
	}
	return nil
}

// CanModify allows the owner of an expense, or any role holding
// modify_any_expense, to change or remove it.
func (a *Authorizer) CanModify(p domain.Principal, ownerID string) error {
	if a.Can(p.Role, PermModifyAnyExpense) {
		return nil
	}
	if ownerID != "" && ownerID == p.UserID && a.Can(p.Role, PermModifyOwnExpense) {
		return nil
	}
	a.logger.Warn("resource access denied",
		slog.String("user_id", p.UserID),
		slog.String("owner_id", ownerID),
		slog.String("role", string(p.Role)),
	)
	return fmt.Errorf("%w: not authorized to modify this expense", domain.ErrForbidden)
}

// Permissions returns all permissions for a role
func (a *Authorizer) Permissions(role domain.Role) []Permission {
	return RolePermissions[role]
}
