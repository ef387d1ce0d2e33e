package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/expensehub/internal/observability/metrics"
	"github.com/aryan0dhankhar/expensehub/internal/reliability/circuitbreaker"
)

// AnalyticsCache stores serialized analytics results in Redis behind a
// circuit breaker. While the breaker is open every call is a cheap miss.
type AnalyticsCache struct {
	client  *Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
}

func NewAnalyticsCache(client *Client, breaker *circuitbreaker.CircuitBreaker, logger *slog.Logger) *AnalyticsCache {
	if logger == nil {
		logger = slog.Default()
	}
	if breaker == nil {
		breaker = circuitbreaker.NewCircuitBreaker(5, 2, 30*time.Second)
	}
	breaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
		logger.Warn("redis circuit breaker state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
		metrics.SetBreakerState("redis", int(to))
	})
	return &AnalyticsCache{client: client, breaker: breaker, logger: logger}
}

func (c *AnalyticsCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		val   []byte
		found bool
	)
	err := c.breaker.Execute(func() error {
		var err error
		val, found, err = c.client.Get(ctx, key)
		return err
	})
	return val, found, err
}

func (c *AnalyticsCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.breaker.Execute(func() error {
		return c.client.Set(ctx, key, value, ttl)
	})
}

func (c *AnalyticsCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	return c.breaker.Execute(func() error {
		return c.client.DeletePrefix(ctx, prefix)
	})
}
