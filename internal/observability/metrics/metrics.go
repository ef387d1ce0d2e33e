package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expensehub_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "expensehub_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	analyticsDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "expensehub_analytics_duration_seconds",
		Help:    "Duration of analytics computations",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	analyticsCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expensehub_analytics_cache_lookups_total",
		Help: "Analytics result cache lookups by outcome",
	}, []string{"outcome"})

	statusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expensehub_expense_status_transitions_total",
		Help: "Count of expense status changes by previous and new status",
	}, []string{"from", "to"})

	expenseOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expensehub_expense_operations_total",
		Help: "Count of expense mutations by operation and result",
	}, []string{"operation", "result"})

	authAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expensehub_auth_attempts_total",
		Help: "Count of registration and login attempts by result",
	}, []string{"kind", "result"})

	droppedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "expensehub_events_dropped_total",
		Help: "Expense events dropped because a live subscriber was too slow",
	})

	liveSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "expensehub_event_subscribers",
		Help: "Number of connected live expense event subscribers",
	})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "expensehub_circuit_breaker_state",
		Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
	}, []string{"dependency"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveAnalytics records the duration of an analytics computation with a result label.
func ObserveAnalytics(result string, duration time.Duration) {
	analyticsDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveCacheLookup counts a hit, miss or error on the analytics cache
func ObserveCacheLookup(outcome string) {
	analyticsCacheLookups.WithLabelValues(outcome).Inc()
}

func ObserveStatusTransition(from, to string) {
	statusTransitions.WithLabelValues(from, to).Inc()
}

func ObserveExpenseOperation(operation, result string) {
	expenseOperations.WithLabelValues(operation, result).Inc()
}

// ObserveAuthAttempt records a register or login outcome
func ObserveAuthAttempt(kind, result string) {
	authAttempts.WithLabelValues(kind, result).Inc()
}

func IncrementDroppedEvents() {
	droppedEvents.Inc()
}

func IncrementSubscribers() {
	liveSubscribers.Inc()
}

func DecrementSubscribers() {
	liveSubscribers.Dec()
}

// SetBreakerState exports the numeric breaker state for a dependency
func SetBreakerState(dependency string, state int) {
	breakerState.WithLabelValues(dependency).Set(float64(state))
}
