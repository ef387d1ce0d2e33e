package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aryan0dhankhar/expensehub/internal/domain"
	"github.com/aryan0dhankhar/expensehub/internal/service"
)

// ExpenseHandler serves the tenant-scoped expense endpoints
type ExpenseHandler struct {
	expenses    *service.ExpenseService
	maxPageSize int
	logger      *slog.Logger
}

func NewExpenseHandler(expenses *service.ExpenseService, maxPageSize int, logger *slog.Logger) *ExpenseHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxPageSize <= 0 {
		maxPageSize = 100
	}
	return &ExpenseHandler{expenses: expenses, maxPageSize: maxPageSize, logger: logger}
}

// CreateExpenseRequest is the body of POST /api/expenses
type CreateExpenseRequest struct {
	Amount      float64 `json:"amount" validate:"gt=0,money"`
	Category    string  `json:"category" validate:"required,max=100"`
	Date        string  `json:"date" validate:"required,calendardate"`
	Description string  `json:"description" validate:"max=500"`
}

// UpdateExpenseRequest is the body of PUT /api/expenses/{id}; absent fields are left untouched
type UpdateExpenseRequest struct {
	Amount      *float64 `json:"amount" validate:"omitempty,gt=0,money"`
	Category    *string  `json:"category" validate:"omitempty,min=1,max=100"`
	Date        *string  `json:"date" validate:"omitempty,calendardate"`
	Description *string  `json:"description" validate:"omitempty,max=500"`
	Status      *string  `json:"status" validate:"omitempty,oneof=pending approved rejected"`
}

// StatusRequest is the body of PATCH /api/expenses/{id}/status
type StatusRequest struct {
	Status string `json:"status"`
}

// listQuery mirrors the query string of GET /api/expenses
type listQuery struct {
	Status    string `json:"status" validate:"omitempty,oneof=pending approved rejected"`
	StartDate string `json:"startDate" validate:"omitempty,calendardate"`
	EndDate   string `json:"endDate" validate:"omitempty,calendardate"`
	Page      int    `json:"page" validate:"min=1"`
	Limit     int    `json:"limit" validate:"min=1"`
}

// List handles GET /api/expenses
func (h *ExpenseHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	filter, err := h.parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	page, err := h.expenses.List(r.Context(), p, filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *ExpenseHandler) parseFilter(q url.Values) (domain.ExpenseFilter, error) {
	var filter domain.ExpenseFilter

	lq := listQuery{
		Status:    q.Get("status"),
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
		Page:      1,
		Limit:     10,
	}
	for name, dst := range map[string]*int{"page": &lq.Page, "limit": &lq.Limit} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return filter, fmt.Errorf("%w: %s must be a number", domain.ErrValidation, name)
		}
		*dst = n
	}
	if err := validateStruct(&lq); err != nil {
		return filter, err
	}
	if lq.Limit > h.maxPageSize {
		return filter, fmt.Errorf("%w: limit must be at most %d", domain.ErrValidation, h.maxPageSize)
	}

	filter.Status = domain.Status(lq.Status)
	filter.Page = lq.Page
	filter.Limit = lq.Limit

	// the date filter applies only when both bounds are given
	if lq.StartDate != "" && lq.EndDate != "" {
		start, _ := ParseDate(lq.StartDate)
		end, _ := ParseDate(lq.EndDate)
		filter.Range = &domain.DateRange{Start: start, End: end}
	}

	if sort := q.Get("sort"); sort != "" {
		field, desc, err := parseSort(sort)
		if err != nil {
			return filter, err
		}
		filter.SortField = field
		filter.SortDesc = desc
	}
	return filter, nil
}

// parseSort reads "field" or "field:asc|desc"
func parseSort(s string) (domain.SortField, bool, error) {
	name, dir, _ := strings.Cut(s, ":")
	field, err := domain.ParseSortField(name)
	if err != nil {
		return "", false, err
	}
	switch dir {
	case "", "asc":
		return field, false, nil
	case "desc":
		return field, true, nil
	default:
		return "", false, fmt.Errorf("%w: sort direction must be asc or desc", domain.ErrValidation)
	}
}

// Create handles POST /api/expenses
func (h *ExpenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req CreateExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	date, err := ParseDate(req.Date)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	expense, err := h.expenses.Create(r.Context(), p, service.CreateExpenseInput{
		Amount:      req.Amount,
		Category:    req.Category,
		Date:        date,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, expense)
}

// Update handles PUT /api/expenses/{id}
func (h *ExpenseHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, err := expenseID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req UpdateExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	patch, err := req.patch()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	expense, err := h.expenses.Update(r.Context(), p, id, patch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, expense)
}

func (req UpdateExpenseRequest) patch() (domain.ExpensePatch, error) {
	patch := domain.ExpensePatch{
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
	}
	if req.Date != nil {
		d, err := ParseDate(*req.Date)
		if err != nil {
			return patch, err
		}
		patch.Date = &d
	}
	if req.Status != nil {
		s := domain.Status(*req.Status)
		patch.Status = &s
	}
	if patch.Empty() {
		return patch, fmt.Errorf("%w: at least one field must be provided", domain.ErrValidation)
	}
	return patch, nil
}

// Delete handles DELETE /api/expenses/{id}
func (h *ExpenseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, err := expenseID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.expenses.Delete(r.Context(), p, id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Expense removed"})
}

// SetStatus handles PATCH /api/expenses/{id}/status. The status value is
// checked by the service ahead of the caller's role.
func (h *ExpenseHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, err := expenseID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req StatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	expense, err := h.expenses.SetStatus(r.Context(), p, id, domain.Status(req.Status))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, expense)
}

func expenseID(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	if err := validate.Var(id, "required,uuid"); err != nil {
		return "", fmt.Errorf("%w: invalid expense id", domain.ErrValidation)
	}
	return id, nil
}

// principal returns the authenticated caller, answering 401 when absent
func principal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	p, ok := domain.PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Message: "not authorized"})
	}
	return p, ok
}
