package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/expensehub/internal/domain"
	"github.com/aryan0dhankhar/expensehub/internal/observability/metrics"
	"github.com/aryan0dhankhar/expensehub/internal/security"
	"github.com/aryan0dhankhar/expensehub/internal/security/audit"
)

// ExpenseService implements the tenant-scoped expense operations and the
// approval workflow
type ExpenseService struct {
	expenses              domain.ExpenseRepository
	authz                 *security.Authorizer
	events                domain.EventPublisher
	audit                 *audit.Logger
	allowOwnerStatusPatch bool
	logger                *slog.Logger
	now                   func() time.Time
}

// ExpenseServiceOptions carries the optional collaborators of ExpenseService
type ExpenseServiceOptions struct {
	Events domain.EventPublisher
	Audit  *audit.Logger
	// AllowOwnerStatusPatch lets callers without set_expense_status change
	// status through Update. Off by default.
	AllowOwnerStatusPatch bool
}

// NewExpenseService creates a new expense service
func NewExpenseService(
	expenses domain.ExpenseRepository,
	authz *security.Authorizer,
	opts ExpenseServiceOptions,
	logger *slog.Logger,
) *ExpenseService {
	if logger == nil {
		logger = slog.Default()
	}
	if authz == nil {
		authz = security.NewAuthorizer(logger)
	}
	if opts.Audit == nil {
		opts.Audit = audit.NewLogger(logger)
	}
	return &ExpenseService{
		expenses:              expenses,
		authz:                 authz,
		events:                opts.Events,
		audit:                 opts.Audit,
		allowOwnerStatusPatch: opts.AllowOwnerStatusPatch,
		logger:                logger,
		now:                   time.Now,
	}
}

// CreateExpenseInput is the validated payload of a new expense
type CreateExpenseInput struct {
	Amount      float64
	Category    string
	Date        time.Time
	Description string
}

// Create stores a new expense owned by the caller. Roles holding
// auto_approve get an approved expense, everyone else a pending one.
func (s *ExpenseService) Create(ctx context.Context, p domain.Principal, in CreateExpenseInput) (*domain.Expense, error) {
	if err := s.authz.Require(p, security.PermCreateExpense); err != nil {
		return nil, err
	}
	in.Category = strings.TrimSpace(in.Category)
	if !domain.ValidAmount(in.Amount) {
		return nil, fmt.Errorf("%w: amount must be a positive number with at most 2 decimal places", domain.ErrValidation)
	}
	if in.Category == "" {
		return nil, fmt.Errorf("%w: category is required", domain.ErrValidation)
	}
	if in.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", domain.ErrValidation)
	}

	status := domain.StatusPending
	if s.authz.Can(p.Role, security.PermAutoApprove) {
		status = domain.StatusApproved
	}

	now := s.now().UTC()
	expense := &domain.Expense{
		ID:          uuid.NewString(),
		Amount:      in.Amount,
		Category:    in.Category,
		Date:        in.Date.UTC(),
		Description: in.Description,
		Status:      status,
		CompanyID:   p.CompanyID,
		UserID:      p.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.expenses.Create(ctx, expense); err != nil {
		metrics.ObserveExpenseOperation("create", "error")
		return nil, internal(err)
	}

	metrics.ObserveExpenseOperation("create", "success")
	s.audit.LogExpense(ctx, p.CompanyID, p.UserID, "create", expense.ID, string(status))
	s.publish(ctx, domain.ExpenseEvent{
		Type:      domain.EventExpenseCreated,
		CompanyID: expense.CompanyID,
		ExpenseID: expense.ID,
		ActorID:   p.UserID,
		Status:    expense.Status,
		Amount:    expense.Amount,
	})
	return expense, nil
}

// List returns one page of the caller's company expenses
func (s *ExpenseService) List(ctx context.Context, p domain.Principal, filter domain.ExpenseFilter) (*domain.ExpensePage, error) {
	if err := s.authz.Require(p, security.PermListExpenses); err != nil {
		return nil, err
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 10
	}
	if filter.SortField == "" {
		filter.SortField = domain.SortByDate
		filter.SortDesc = true
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: invalid status filter %q", domain.ErrValidation, filter.Status)
	}

	items, total, err := s.expenses.List(ctx, p.CompanyID, filter)
	if err != nil {
		return nil, internal(err)
	}
	return domain.NewExpensePage(items, total, filter.Page, filter.Limit), nil
}

// Update applies patch to an expense the caller owns, or to any expense of
// the company when the caller's role may modify any expense
func (s *ExpenseService) Update(ctx context.Context, p domain.Principal, id string, patch domain.ExpensePatch) (*domain.Expense, error) {
	expense, err := s.expenses.GetByID(ctx, p.CompanyID, id)
	if err != nil {
		return nil, internal(err)
	}
	if err := s.authz.CanModify(p, expense.UserID); err != nil {
		s.audit.LogDenied(ctx, p.CompanyID, p.UserID, "update expense "+id)
		return nil, err
	}

	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, fmt.Errorf("%w: invalid status", domain.ErrValidation)
		}
		if !s.authz.Can(p.Role, security.PermSetExpenseStatus) && !s.allowOwnerStatusPatch {
			s.logger.Info("status dropped from update patch",
				slog.String("expense_id", id),
				slog.String("user_id", p.UserID),
			)
			patch.Status = nil
		}
	}
	if patch.Amount != nil && !domain.ValidAmount(*patch.Amount) {
		return nil, fmt.Errorf("%w: amount must be a positive number with at most 2 decimal places", domain.ErrValidation)
	}
	if patch.Category != nil {
		trimmed := strings.TrimSpace(*patch.Category)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: category cannot be empty", domain.ErrValidation)
		}
		patch.Category = &trimmed
	}
	if patch.Date != nil {
		d := patch.Date.UTC()
		patch.Date = &d
	}

	previous := expense.Status
	patch.Apply(expense)
	expense.UpdatedAt = s.now().UTC()

	if err := s.expenses.Update(ctx, expense); err != nil {
		metrics.ObserveExpenseOperation("update", "error")
		return nil, internal(err)
	}

	metrics.ObserveExpenseOperation("update", "success")
	s.audit.LogExpense(ctx, p.CompanyID, p.UserID, "update", expense.ID, "")
	s.publish(ctx, domain.ExpenseEvent{
		Type:           domain.EventExpenseUpdated,
		CompanyID:      expense.CompanyID,
		ExpenseID:      expense.ID,
		ActorID:        p.UserID,
		Status:         expense.Status,
		PreviousStatus: previous,
		Amount:         expense.Amount,
	})
	if previous != expense.Status {
		metrics.ObserveStatusTransition(string(previous), string(expense.Status))
	}
	return expense, nil
}

// Delete removes an expense the caller owns, or any expense of the company
// for roles that may modify any expense
func (s *ExpenseService) Delete(ctx context.Context, p domain.Principal, id string) error {
	expense, err := s.expenses.GetByID(ctx, p.CompanyID, id)
	if err != nil {
		return internal(err)
	}
	if err := s.authz.CanModify(p, expense.UserID); err != nil {
		s.audit.LogDenied(ctx, p.CompanyID, p.UserID, "delete expense "+id)
		return err
	}

	if err := s.expenses.Delete(ctx, p.CompanyID, id); err != nil {
		metrics.ObserveExpenseOperation("delete", "error")
		return internal(err)
	}

	metrics.ObserveExpenseOperation("delete", "success")
	s.audit.LogExpense(ctx, p.CompanyID, p.UserID, "delete", id, "")
	s.publish(ctx, domain.ExpenseEvent{
		Type:      domain.EventExpenseDeleted,
		CompanyID: p.CompanyID,
		ExpenseID: id,
		ActorID:   p.UserID,
		Status:    expense.Status,
		Amount:    expense.Amount,
	})
	return nil
}

// SetStatus approves or rejects an expense. Any prior status may be
// overwritten. The status value is validated before the caller's role so an
// invalid value is always a validation error.
func (s *ExpenseService) SetStatus(ctx context.Context, p domain.Principal, id string, status domain.Status) (*domain.Expense, error) {
	if !status.Decision() {
		return nil, fmt.Errorf("%w: invalid status", domain.ErrValidation)
	}
	if err := s.authz.Require(p, security.PermSetExpenseStatus); err != nil {
		s.audit.LogDenied(ctx, p.CompanyID, p.UserID, "set status on expense "+id)
		return nil, err
	}

	expense, err := s.expenses.GetByID(ctx, p.CompanyID, id)
	if err != nil {
		return nil, internal(err)
	}

	previous := expense.Status
	expense.Status = status
	expense.UpdatedAt = s.now().UTC()
	if err := s.expenses.Update(ctx, expense); err != nil {
		metrics.ObserveExpenseOperation("set_status", "error")
		return nil, internal(err)
	}

	metrics.ObserveExpenseOperation("set_status", "success")
	metrics.ObserveStatusTransition(string(previous), string(status))
	s.audit.LogExpense(ctx, p.CompanyID, p.UserID, "set_status", id, string(previous)+"->"+string(status))
	s.publish(ctx, domain.ExpenseEvent{
		Type:           domain.EventExpenseStatusChanged,
		CompanyID:      expense.CompanyID,
		ExpenseID:      expense.ID,
		ActorID:        p.UserID,
		Status:         status,
		PreviousStatus: previous,
		Amount:         expense.Amount,
	})
	return expense, nil
}

// publish delivers an event after a committed write. Failures are logged only.
func (s *ExpenseService) publish(ctx context.Context, event domain.ExpenseEvent) {
	if s.events == nil {
		return
	}
	event.OccurredAt = s.now().UTC()
	if err := s.events.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("failed to publish expense event",
			slog.String("type", string(event.Type)),
			slog.String("expense_id", event.ExpenseID),
			slog.String("error", err.Error()),
		)
	}
}
