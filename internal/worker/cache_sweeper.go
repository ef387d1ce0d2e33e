package worker

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper is anything that can drop its expired entries
type Sweeper interface {
	Sweep() int
}

// CacheSweeper periodically evicts expired analytics results from the
// in-process cache. Redis expires keys on its own and needs no sweeper.
type CacheSweeper struct {
	cache    Sweeper
	logger   *slog.Logger
	interval time.Duration
}

// NewCacheSweeper creates a new cache sweeper
func NewCacheSweeper(cache Sweeper, logger *slog.Logger, interval time.Duration) *CacheSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &CacheSweeper{
		cache:    cache,
		logger:   logger,
		interval: interval,
	}
}

// Start runs the sweep loop until ctx is cancelled
func (w *CacheSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("cache sweeper started", slog.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("cache sweeper stopped")
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *CacheSweeper) sweep() int {
	removed := w.cache.Sweep()
	if removed > 0 {
		w.logger.Debug("expired cache entries evicted", slog.Int("removed", removed))
	}
	return removed
}
