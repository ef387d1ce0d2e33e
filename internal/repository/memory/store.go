package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/aryan0dhankhar/expensehub/internal/domain"
)

// Store keeps companies, users and expenses in process memory. It backs
// DATA_BACKEND=memory and the test suites. Values are copied on the way in
// and out so callers never share state with the store.
type Store struct {
	mu        sync.RWMutex
	companies map[string]domain.Company
	users     map[string]domain.User
	emails    map[string]string // lower(email) -> user id
	expenses  map[string]domain.Expense
}

func NewStore() *Store {
	return &Store{
		companies: map[string]domain.Company{},
		users:     map[string]domain.User{},
		emails:    map[string]string{},
		expenses:  map[string]domain.Expense{},
	}
}

// Companies returns the domain.CompanyRepository view of the store
func (s *Store) Companies() *CompanyRepository { return &CompanyRepository{s: s} }

// Users returns the domain.UserRepository view of the store
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Expenses returns the expense repository and aggregator view of the store
func (s *Store) Expenses() *ExpenseRepository { return &ExpenseRepository{s: s} }

type CompanyRepository struct{ s *Store }

func (r *CompanyRepository) Create(_ context.Context, company *domain.Company) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.companies[company.ID]; exists {
		return fmt.Errorf("%w: company already exists", domain.ErrConflict)
	}
	r.s.companies[company.ID] = *company
	return nil
}

func (r *CompanyRepository) GetByID(_ context.Context, id string) (*domain.Company, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.companies[id]
	if !ok {
		return nil, fmt.Errorf("%w: company not found", domain.ErrNotFound)
	}
	return &c, nil
}

func (r *CompanyRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.companies[id]; !ok {
		return fmt.Errorf("%w: company not found", domain.ErrNotFound)
	}
	delete(r.s.companies, id)
	return nil
}

type UserRepository struct{ s *Store }

func (r *UserRepository) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := strings.ToLower(user.Email)
	if _, exists := r.s.emails[key]; exists {
		return fmt.Errorf("%w: user already exists", domain.ErrConflict)
	}
	if _, ok := r.s.companies[user.CompanyID]; !ok {
		return fmt.Errorf("%w: company %s does not exist", domain.ErrInternal, user.CompanyID)
	}
	r.s.users[user.ID] = copyUser(*user)
	r.s.emails[key] = user.ID
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user not found", domain.ErrNotFound)
	}
	u = copyUser(u)
	return &u, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.emails[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("%w: user not found", domain.ErrNotFound)
	}
	u := copyUser(r.s.users[id])
	return &u, nil
}

func copyUser(u domain.User) domain.User {
	if u.MonthlyBudget != nil {
		b := *u.MonthlyBudget
		u.MonthlyBudget = &b
	}
	return u
}

// ExpenseRepository implements domain.ExpenseRepository and domain.ExpenseAggregator
type ExpenseRepository struct{ s *Store }

func (r *ExpenseRepository) Create(_ context.Context, expense *domain.Expense) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.expenses[expense.ID]; exists {
		return fmt.Errorf("%w: expense id collision", domain.ErrInternal)
	}
	stored := *expense
	stored.Owner = nil
	r.s.expenses[expense.ID] = stored
	return nil
}

func (r *ExpenseRepository) GetByID(_ context.Context, companyID, id string) (*domain.Expense, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.expenses[id]
	if !ok || e.CompanyID != companyID {
		return nil, fmt.Errorf("%w: expense not found", domain.ErrNotFound)
	}
	return &e, nil
}

func (r *ExpenseRepository) Update(_ context.Context, expense *domain.Expense) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.expenses[expense.ID]
	if !ok || current.CompanyID != expense.CompanyID {
		return fmt.Errorf("%w: expense not found", domain.ErrNotFound)
	}
	stored := *expense
	stored.Owner = nil
	stored.UserID = current.UserID
	stored.CreatedAt = current.CreatedAt
	r.s.expenses[expense.ID] = stored
	return nil
}

func (r *ExpenseRepository) Delete(_ context.Context, companyID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.expenses[id]
	if !ok || e.CompanyID != companyID {
		return fmt.Errorf("%w: expense not found", domain.ErrNotFound)
	}
	delete(r.s.expenses, id)
	return nil
}

func (r *ExpenseRepository) List(_ context.Context, companyID string, filter domain.ExpenseFilter) ([]*domain.Expense, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matches := make([]domain.Expense, 0)
	for _, e := range r.s.expenses {
		if e.CompanyID != companyID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.Range != nil && !filter.Range.Contains(e.Date) {
			continue
		}
		matches = append(matches, e)
	}

	slices.SortFunc(matches, func(a, b domain.Expense) int {
		c := compareBy(filter.SortField, a, b)
		if filter.SortDesc || filter.SortField == "" {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	total := len(matches)
	start := min(filter.Offset(), total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}

	page := make([]*domain.Expense, 0, end-start)
	for _, e := range matches[start:end] {
		e := e
		if u, ok := r.s.users[e.UserID]; ok {
			e.Owner = &domain.ExpenseOwner{ID: u.ID, Name: u.Name, Email: u.Email}
		} else {
			e.Owner = &domain.ExpenseOwner{ID: e.UserID}
		}
		page = append(page, &e)
	}
	return page, total, nil
}

func compareBy(field domain.SortField, a, b domain.Expense) int {
	switch field {
	case domain.SortByAmount:
		return cmp.Compare(a.Amount, b.Amount)
	case domain.SortByCategory:
		return cmp.Compare(a.Category, b.Category)
	case domain.SortByStatus:
		return cmp.Compare(a.Status, b.Status)
	case domain.SortByCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	default:
		return a.Date.Compare(b.Date)
	}
}

// inWindow returns the company's expenses whose date lies inside the window
func (r *ExpenseRepository) inWindow(companyID string, window domain.DateRange) []domain.Expense {
	var out []domain.Expense
	for _, e := range r.s.expenses {
		if e.CompanyID == companyID && window.Contains(e.Date) {
			out = append(out, e)
		}
	}
	return out
}

func (r *ExpenseRepository) Totals(ctx context.Context, companyID string, window domain.DateRange) (domain.Totals, error) {
	if err := ctx.Err(); err != nil {
		return domain.Totals{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	totals := domain.Totals{Sum: decimal.Zero}
	for _, e := range r.inWindow(companyID, window) {
		totals.Sum = totals.Sum.Add(decimal.NewFromFloat(e.Amount))
		totals.Count++
	}
	return totals, nil
}

func (r *ExpenseRepository) Highest(ctx context.Context, companyID string, window domain.DateRange) (*domain.Expense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var best *domain.Expense
	for _, e := range r.inWindow(companyID, window) {
		if best == nil || e.Amount > best.Amount || (e.Amount == best.Amount && e.CreatedAt.Before(best.CreatedAt)) {
			e := e
			best = &e
		}
	}
	return best, nil
}

func (r *ExpenseRepository) DailyTotals(ctx context.Context, companyID string, window domain.DateRange) ([]domain.DailyBucket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	byDay := map[string]decimal.Decimal{}
	for _, e := range r.inWindow(companyID, window) {
		day := e.Date.UTC().Format("2006-01-02")
		byDay[day] = byDay[day].Add(decimal.NewFromFloat(e.Amount))
	}
	buckets := make([]domain.DailyBucket, 0, len(byDay))
	for day, amount := range byDay {
		buckets = append(buckets, domain.DailyBucket{Day: day, Amount: amount})
	}
	slices.SortFunc(buckets, func(a, b domain.DailyBucket) int { return cmp.Compare(a.Day, b.Day) })
	return buckets, nil
}

func (r *ExpenseRepository) CategoryTotals(ctx context.Context, companyID string, window domain.DateRange) ([]domain.CategoryBucket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	byCategory := map[string]*domain.CategoryBucket{}
	for _, e := range r.inWindow(companyID, window) {
		b, ok := byCategory[e.Category]
		if !ok {
			b = &domain.CategoryBucket{Category: e.Category, Total: decimal.Zero}
			byCategory[e.Category] = b
		}
		b.Total = b.Total.Add(decimal.NewFromFloat(e.Amount))
		b.Count++
	}
	buckets := make([]domain.CategoryBucket, 0, len(byCategory))
	for _, b := range byCategory {
		buckets = append(buckets, *b)
	}
	slices.SortFunc(buckets, func(a, b domain.CategoryBucket) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})
	return buckets, nil
}
