package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/aryan0dhankhar/expensehub/internal/domain"
	"github.com/aryan0dhankhar/expensehub/internal/observability/metrics"
	"github.com/aryan0dhankhar/expensehub/internal/security"
)

var hundred = decimal.NewFromInt(100)

// ResultCache stores serialized analytics results. Implementations must be
// safe for concurrent use; errors are treated as misses.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// AnalyticsQuery selects the reporting window. Both bounds must be set to
// override the current month.
type AnalyticsQuery struct {
	Start *time.Time
	End   *time.Time
}

type Analytics struct {
	KPI    KPI    `json:"kpi"`
	Charts Charts `json:"charts"`
	Period Period `json:"period"`
}

type KPI struct {
	TotalExpenses   float64        `json:"totalExpenses"`
	ExpenseCount    int64          `json:"expenseCount"`
	AvgDailyExpense float64        `json:"avgDailyExpense"`
	HighestExpense  HighestExpense `json:"highestExpense"`
	Budget          Budget         `json:"budget"`
	Comparison      Comparison     `json:"comparison"`
}

// HighestExpense is the largest expense of the window, or the placeholder
// {amount: 0, description: "N/A"} when there is none
type HighestExpense struct {
	ID          string     `json:"id,omitempty"`
	Amount      float64    `json:"amount"`
	Category    string     `json:"category,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
	Description string     `json:"description"`
	Status      string     `json:"status,omitempty"`
	UserID      string     `json:"userId,omitempty"`
}

type Budget struct {
	Limit     float64 `json:"limit"`
	Remaining float64 `json:"remaining"`
	Usage     float64 `json:"usage"`
}

type Comparison struct {
	PrevTotal        float64 `json:"prevTotal"`
	PercentageChange float64 `json:"percentageChange"`
}

type Charts struct {
	DailyTrend      []DailyPoint      `json:"dailyTrend"`
	CategorySummary []CategorySummary `json:"categorySummary"`
}

type DailyPoint struct {
	BucketKey string  `json:"bucketKey"`
	Amount    float64 `json:"amount"`
}

type CategorySummary struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
	Count    int64   `json:"count"`
}

type Period struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	PrevStart time.Time `json:"prevStart"`
	PrevEnd   time.Time `json:"prevEnd"`
}

// AnalyticsService computes the dashboard KPIs and charts for a tenant
type AnalyticsService struct {
	aggregator    domain.ExpenseAggregator
	users         domain.UserRepository
	authz         *security.Authorizer
	cache         ResultCache
	cacheTTL      time.Duration
	defaultBudget float64
	location      *time.Location
	logger        *slog.Logger
	now           func() time.Time
}

// AnalyticsOptions carries the tunables of AnalyticsService
type AnalyticsOptions struct {
	Cache         ResultCache
	CacheTTL      time.Duration
	DefaultBudget float64
	Location      *time.Location
}

func NewAnalyticsService(
	aggregator domain.ExpenseAggregator,
	users domain.UserRepository,
	authz *security.Authorizer,
	opts AnalyticsOptions,
	logger *slog.Logger,
) *AnalyticsService {
	if logger == nil {
		logger = slog.Default()
	}
	if authz == nil {
		authz = security.NewAuthorizer(logger)
	}
	if opts.DefaultBudget <= 0 {
		opts.DefaultBudget = domain.DefaultMonthlyBudget
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &AnalyticsService{
		aggregator:    aggregator,
		users:         users,
		authz:         authz,
		cache:         opts.Cache,
		cacheTTL:      opts.CacheTTL,
		defaultBudget: opts.DefaultBudget,
		location:      opts.Location,
		logger:        logger,
		now:           time.Now,
	}
}

// CacheKeyPrefix is the prefix of every cached result of a company
func CacheKeyPrefix(companyID string) string {
	return "analytics:" + companyID + ":"
}

// generationKey holds a company's current cache generation. It lives
// outside CacheKeyPrefix so prefix invalidation leaves it in place.
func generationKey(companyID string) string {
	return "analytics-gen:" + companyID
}

// generationTTL outlives any result TTL so an expired generation can never
// resurrect results stored under the empty generation
const generationTTL = 7 * 24 * time.Hour

func cacheKey(p domain.Principal, generation string, w domain.DateRange) string {
	return CacheKeyPrefix(p.CompanyID) + generation + ":" + p.UserID + ":" +
		w.Start.UTC().Format(time.RFC3339Nano) + ":" + w.End.UTC().Format(time.RFC3339Nano)
}

// Compute runs the analytics sub-queries concurrently. If any of them fails
// the whole computation fails with ErrInternal.
func (s *AnalyticsService) Compute(ctx context.Context, p domain.Principal, q AnalyticsQuery) (*Analytics, error) {
	if err := s.authz.Require(p, security.PermViewAnalytics); err != nil {
		return nil, err
	}

	window := ResolveWindow(q.Start, q.End, s.now(), s.location)
	// read before the sub-queries: a write committed meanwhile bumps the
	// generation and orphans whatever this call stores
	generation, cacheable := s.generation(ctx, p.CompanyID)
	key := cacheKey(p, generation, window)
	if cacheable {
		if cached, ok := s.fromCache(ctx, key); ok {
			return cached, nil
		}
	}

	ctx, span := otel.Tracer("expensehub/service").Start(ctx, "analytics.compute")
	defer span.End()
	span.SetAttributes(
		attribute.String("company.id", p.CompanyID),
		attribute.String("window.start", window.Start.Format(time.RFC3339)),
		attribute.String("window.end", window.End.Format(time.RFC3339)),
	)

	start := time.Now()
	result, err := s.compute(ctx, p, window)
	if err != nil {
		metrics.ObserveAnalytics("error", time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("analytics computation failed",
			slog.String("company_id", p.CompanyID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	metrics.ObserveAnalytics("success", time.Since(start))

	if cacheable {
		s.toCache(ctx, key, result)
	}
	return result, nil
}

func (s *AnalyticsService) compute(ctx context.Context, p domain.Principal, window domain.DateRange) (*Analytics, error) {
	prev := ShiftMonths(window, -1)

	var (
		totals     domain.Totals
		highest    *domain.Expense
		daily      []domain.DailyBucket
		categories []domain.CategoryBucket
		prevTotals domain.Totals
		budget     = decimal.NewFromFloat(s.defaultBudget)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		totals, err = s.aggregator.Totals(gctx, p.CompanyID, window)
		return err
	})
	g.Go(func() error {
		var err error
		highest, err = s.aggregator.Highest(gctx, p.CompanyID, window)
		return err
	})
	g.Go(func() error {
		var err error
		daily, err = s.aggregator.DailyTotals(gctx, p.CompanyID, window)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = s.aggregator.CategoryTotals(gctx, p.CompanyID, window)
		return err
	})
	g.Go(func() error {
		var err error
		prevTotals, err = s.aggregator.Totals(gctx, p.CompanyID, prev)
		return err
	})
	g.Go(func() error {
		user, err := s.users.GetByID(gctx, p.UserID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		budget = decimal.NewFromFloat(user.Budget(s.defaultBudget))
		return nil
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, domain.ErrInternal) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	total := totals.Sum
	avg := total.Div(decimal.NewFromInt(window.Days()))

	percentage := hundred
	if !prevTotals.Sum.IsZero() {
		percentage = total.Sub(prevTotals.Sum).Div(prevTotals.Sum).Mul(hundred)
	}

	usage := decimal.Zero
	if !budget.IsZero() {
		usage = total.Div(budget).Mul(hundred)
	}

	result := &Analytics{
		KPI: KPI{
			TotalExpenses:   total.InexactFloat64(),
			ExpenseCount:    totals.Count,
			AvgDailyExpense: avg.InexactFloat64(),
			HighestExpense:  toHighest(highest),
			Budget: Budget{
				Limit:     budget.InexactFloat64(),
				Remaining: budget.Sub(total).InexactFloat64(),
				Usage:     usage.InexactFloat64(),
			},
			Comparison: Comparison{
				PrevTotal:        prevTotals.Sum.InexactFloat64(),
				PercentageChange: percentage.InexactFloat64(),
			},
		},
		Charts: Charts{
			DailyTrend:      make([]DailyPoint, 0, len(daily)),
			CategorySummary: make([]CategorySummary, 0, len(categories)),
		},
		Period: Period{Start: window.Start, End: window.End, PrevStart: prev.Start, PrevEnd: prev.End},
	}
	for _, d := range daily {
		result.Charts.DailyTrend = append(result.Charts.DailyTrend, DailyPoint{BucketKey: d.Day, Amount: d.Amount.InexactFloat64()})
	}
	for _, c := range categories {
		result.Charts.CategorySummary = append(result.Charts.CategorySummary, CategorySummary{
			Category: c.Category,
			Total:    c.Total.InexactFloat64(),
			Count:    c.Count,
		})
	}
	return result, nil
}

func toHighest(e *domain.Expense) HighestExpense {
	if e == nil {
		return HighestExpense{Amount: 0, Description: "N/A"}
	}
	date := e.Date
	return HighestExpense{
		ID:          e.ID,
		Amount:      e.Amount,
		Category:    e.Category,
		Date:        &date,
		Description: e.Description,
		Status:      string(e.Status),
		UserID:      e.UserID,
	}
}

// generation returns the company's cache generation, empty until the first
// invalidation. cacheable is false when the cache is off or unreadable.
func (s *AnalyticsService) generation(ctx context.Context, companyID string) (string, bool) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return "", false
	}
	raw, _, err := s.cache.Get(ctx, generationKey(companyID))
	if err != nil {
		metrics.ObserveCacheLookup("error")
		s.logger.Debug("analytics cache unavailable", slog.String("error", err.Error()))
		return "", false
	}
	return string(raw), true
}

func (s *AnalyticsService) fromCache(ctx context.Context, key string) (*Analytics, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, found, err := s.cache.Get(ctx, key)
	if err != nil {
		metrics.ObserveCacheLookup("error")
		s.logger.Debug("analytics cache unavailable", slog.String("error", err.Error()))
		return nil, false
	}
	if !found {
		metrics.ObserveCacheLookup("miss")
		return nil, false
	}
	var cached Analytics
	if err := json.Unmarshal(raw, &cached); err != nil {
		metrics.ObserveCacheLookup("error")
		return nil, false
	}
	metrics.ObserveCacheLookup("hit")
	return &cached, true
}

func (s *AnalyticsService) toCache(ctx context.Context, key string, result *Analytics) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
		s.logger.Debug("failed to cache analytics", slog.String("error", err.Error()))
	}
}
