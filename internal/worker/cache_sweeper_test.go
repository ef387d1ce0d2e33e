package worker

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/expensehub/pkg/cache"
)

type countingSweeper struct {
	calls atomic.Int32
}

func (s *countingSweeper) Sweep() int {
	s.calls.Add(1)
	return 1
}

func TestCacheSweeperRunsUntilCancelled(t *testing.T) {
	sweeper := &countingSweeper{}
	w := NewCacheSweeper(sweeper, slog.New(slog.NewTextHandler(io.Discard, nil)), 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return sweeper.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestCacheSweeperEvictsExpiredEntries(t *testing.T) {
	c := cache.New()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "analytics:acme:gone", []byte("x"), -time.Second))
	require.NoError(t, c.Set(ctx, "analytics:acme:kept", []byte("y"), time.Hour))

	w := NewCacheSweeper(c, nil, 0)
	assert.Equal(t, time.Minute, w.interval)
	assert.Equal(t, 1, w.sweep())
	assert.Equal(t, 1, c.Len())
}
