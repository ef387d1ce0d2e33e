package security

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aryan0dhankhar/expensehub/internal/domain"
)

func TestCapabilityTable(t *testing.T) {
	a := NewAuthorizer(nil)
	admins := []domain.Role{domain.RoleCompanyAdmin, domain.RoleAdmin, domain.RoleSuperAdmin}

	for _, role := range admins {
		for _, perm := range adminPermissions {
			assert.True(t, a.Can(role, perm), "%s should have %s", role, perm)
		}
	}

	tests := []struct {
		perm Permission
		want bool
	}{
		{PermCreateExpense, true},
		{PermListExpenses, true},
		{PermModifyOwnExpense, true},
		{PermViewAnalytics, true},
		{PermModifyAnyExpense, false},
		{PermSetExpenseStatus, false},
		{PermAutoApprove, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, a.Can(domain.RoleEmployee, tt.perm), string(tt.perm))
	}

	assert.False(t, a.Can(domain.Role("guest"), PermListExpenses))
}

func TestRequire(t *testing.T) {
	a := NewAuthorizer(nil)
	employee := domain.Principal{UserID: "u1", CompanyID: "c1", Role: domain.RoleEmployee}

	assert.NoError(t, a.Require(employee, PermCreateExpense))
	assert.ErrorIs(t, a.Require(employee, PermSetExpenseStatus), domain.ErrForbidden)
}

func TestCanModify(t *testing.T) {
	a := NewAuthorizer(nil)
	employee := domain.Principal{UserID: "u1", CompanyID: "c1", Role: domain.RoleEmployee}
	admin := domain.Principal{UserID: "a1", CompanyID: "c1", Role: domain.RoleCompanyAdmin}

	assert.NoError(t, a.CanModify(employee, "u1"))
	assert.ErrorIs(t, a.CanModify(employee, "u2"), domain.ErrForbidden)
	assert.ErrorIs(t, a.CanModify(employee, ""), domain.ErrForbidden)
	assert.NoError(t, a.CanModify(admin, "u2"))
}
