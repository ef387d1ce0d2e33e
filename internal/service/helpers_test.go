package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/expensehub/internal/domain"
	"github.com/aryan0dhankhar/expensehub/internal/repository/memory"
	"github.com/aryan0dhankhar/expensehub/internal/security"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func utcDay(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// tenants seeds two companies, each with an employee and a company admin
type tenants struct {
	store     *memory.Store
	employee  domain.Principal
	colleague domain.Principal
	admin     domain.Principal
	outsider  domain.Principal
}

func seedTenants(t *testing.T) tenants {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Companies().Create(ctx, &domain.Company{ID: "acme", Name: "Acme"}))
	require.NoError(t, store.Companies().Create(ctx, &domain.Company{ID: "globex", Name: "Globex"}))

	users := []domain.User{
		{ID: "emp", Name: "Erin", Email: "erin@acme.io", Role: domain.RoleEmployee, CompanyID: "acme"},
		{ID: "col", Name: "Cole", Email: "cole@acme.io", Role: domain.RoleEmployee, CompanyID: "acme"},
		{ID: "adm", Name: "Ada", Email: "ada@acme.io", Role: domain.RoleCompanyAdmin, CompanyID: "acme"},
		{ID: "out", Name: "Otto", Email: "otto@globex.io", Role: domain.RoleCompanyAdmin, CompanyID: "globex"},
	}
	for i := range users {
		require.NoError(t, store.Users().Create(ctx, &users[i]))
	}

	return tenants{
		store:     store,
		employee:  domain.Principal{UserID: "emp", CompanyID: "acme", Role: domain.RoleEmployee},
		colleague: domain.Principal{UserID: "col", CompanyID: "acme", Role: domain.RoleEmployee},
		admin:     domain.Principal{UserID: "adm", CompanyID: "acme", Role: domain.RoleCompanyAdmin},
		outsider:  domain.Principal{UserID: "out", CompanyID: "globex", Role: domain.RoleCompanyAdmin},
	}
}

func (tn tenants) expenseService(opts ExpenseServiceOptions) *ExpenseService {
	logger := quietLogger()
	return NewExpenseService(tn.store.Expenses(), security.NewAuthorizer(logger), opts, logger)
}

// recordingPublisher captures published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ExpenseEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.ExpenseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
