package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/expensehub/internal/domain"
)

// CacheInvalidator drops a company's cached analytics whenever one of its
// expenses changes. It is registered as an event subscriber.
type CacheInvalidator struct {
	cache  ResultCache
	logger *slog.Logger
}

func NewCacheInvalidator(cache ResultCache, logger *slog.Logger) *CacheInvalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &CacheInvalidator{cache: cache, logger: logger}
}

// Publish implements domain.EventPublisher. It moves the company to a new
// cache generation, then drops the results stored under older ones.
func (c *CacheInvalidator) Publish(ctx context.Context, event domain.ExpenseEvent) error {
	if c.cache == nil || event.CompanyID == "" {
		return nil
	}
	genErr := c.cache.Set(ctx, generationKey(event.CompanyID), []byte(uuid.NewString()), generationTTL)
	dropErr := c.cache.InvalidatePrefix(ctx, CacheKeyPrefix(event.CompanyID))
	if err := errors.Join(genErr, dropErr); err != nil {
		c.logger.Warn("failed to invalidate analytics cache",
			slog.String("company_id", event.CompanyID),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}
