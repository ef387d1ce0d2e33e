package domain

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the approval state of an expense
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Decision reports whether s is a status an approver may set
func (s Status) Decision() bool {
	return s == StatusApproved || s == StatusRejected
}

// MaxAmount is the largest amount the relational store can hold
// (NUMERIC(14,2))
const MaxAmount = 999_999_999_999.99

// ValidAmount reports whether a is a positive amount of whole cents that
// fits in storage. Both backends then keep it exactly as given.
func ValidAmount(a float64) bool {
	if !(a > 0) || a > MaxAmount {
		return false
	}
	return decimal.NewFromFloat(a).Exponent() >= -2
}

// Expense is a single spend record owned by one user inside one company
type Expense struct {
	ID          string        `json:"id"`
	Amount      float64       `json:"amount"`
	Category    string        `json:"category"`
	Date        time.Time     `json:"date"`
	Description string        `json:"description,omitempty"`
	Status      Status        `json:"status"`
	CompanyID   string        `json:"companyId"`
	UserID      string        `json:"userId"`
	Owner       *ExpenseOwner `json:"user,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// ExpenseOwner is the public summary of the user that created an expense
type ExpenseOwner struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ExpensePatch carries the fields of a partial update; nil means untouched
type ExpensePatch struct {
	Amount      *float64
	Category    *string
	Date        *time.Time
	Description *string
	Status      *Status
}

// Empty reports whether the patch changes nothing
func (p ExpensePatch) Empty() bool {
	return p.Amount == nil && p.Category == nil && p.Date == nil && p.Description == nil && p.Status == nil
}

// Apply copies the set fields onto e
func (p ExpensePatch) Apply(e *Expense) {
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
}

// SortField is a column an expense listing may be ordered by
type SortField string

const (
	SortByDate      SortField = "date"
	SortByAmount    SortField = "amount"
	SortByCategory  SortField = "category"
	SortByStatus    SortField = "status"
	SortByCreatedAt SortField = "createdAt"
)

// ParseSortField validates a sort field name
func ParseSortField(s string) (SortField, error) {
	switch f := SortField(s); f {
	case SortByDate, SortByAmount, SortByCategory, SortByStatus, SortByCreatedAt:
		return f, nil
	default:
		return "", fmt.Errorf("%w: cannot sort by %q", ErrValidation, s)
	}
}

// ExpenseFilter narrows an expense listing. Company scoping is passed separately.
type ExpenseFilter struct {
	Status    Status
	Range     *DateRange
	SortField SortField
	SortDesc  bool
	Page      int
	Limit     int
}

// Offset returns the number of rows to skip for the requested page
func (f ExpenseFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// ExpensePage is one page of a listing plus the total match count
type ExpensePage struct {
	Expenses    []*Expense `json:"expenses"`
	TotalPages  int        `json:"totalPages"`
	CurrentPage int        `json:"currentPage"`
	Total       int        `json:"totalExpenses"`
}

// NewExpensePage computes total pages for a page of results
func NewExpensePage(items []*Expense, total, page, limit int) *ExpensePage {
	pages := 0
	if limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(limit)))
	}
	if items == nil {
		items = []*Expense{}
	}
	return &ExpensePage{Expenses: items, TotalPages: pages, CurrentPage: page, Total: total}
}

// DateRange is an inclusive window of instants
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies inside the inclusive range
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Days is the whole number of days spanned, rounded up, never less than one
func (r DateRange) Days() int64 {
	diff := r.End.Sub(r.Start)
	if diff < 0 {
		diff = -diff
	}
	days := int64(math.Ceil(diff.Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}

// Totals is the sum and count of a match set
type Totals struct {
	Sum   decimal.Decimal
	Count int64
}

// DailyBucket is the spend of one calendar day, keyed YYYY-MM-DD
type DailyBucket struct {
	Day    string
	Amount decimal.Decimal
}

// CategoryBucket is the spend of one category
type CategoryBucket struct {
	Category string
	Total    decimal.Decimal
	Count    int64
}

// ExpenseRepository defines tenant-scoped data access for expenses.
// Every method filters by companyID; a record in another company is reported
// as ErrNotFound.
type ExpenseRepository interface {
	Create(ctx context.Context, expense *Expense) error
	GetByID(ctx context.Context, companyID, id string) (*Expense, error)
	Update(ctx context.Context, expense *Expense) error
	Delete(ctx context.Context, companyID, id string) error
	List(ctx context.Context, companyID string, filter ExpenseFilter) ([]*Expense, int, error)
}

// ExpenseAggregator is the query contract used by analytics. All methods
// match companyID and the inclusive window, regardless of status.
type ExpenseAggregator interface {
	Totals(ctx context.Context, companyID string, window DateRange) (Totals, error)
	// Highest returns nil when the window has no expenses
	Highest(ctx context.Context, companyID string, window DateRange) (*Expense, error)
	DailyTotals(ctx context.Context, companyID string, window DateRange) ([]DailyBucket, error)
	CategoryTotals(ctx context.Context, companyID string, window DateRange) ([]CategoryBucket, error)
}
