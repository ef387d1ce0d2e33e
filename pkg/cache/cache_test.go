package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGet(t *testing.T) {
	ctx := context.Background()
	c := New()
	require.NoError(t, c.Set(ctx, "key1", []byte("value1"), time.Second))

	val, ok, err := c.Get(ctx, "key1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "value1", string(val))

	val[0] = 'X'
	again, _, _ := c.Get(ctx, "key1")
	assert.Equal(t, "value1", string(again), "returned slice must not alias the stored one")
}

func TestExpiration(t *testing.T) {
	ctx := context.Background()
	c := New()
	now := time.Now()
	c.now = func() time.Time { return now }
	require.NoError(t, c.Set(ctx, "key1", []byte("value1"), 100*time.Millisecond))

	now = now.Add(150 * time.Millisecond)
	_, ok, err := c.Get(ctx, "key1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Sweep())
	assert.Zero(t, c.Len())
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	c := New()
	require.NoError(t, c.Set(ctx, "key1", []byte("value1"), time.Second))
	c.Delete("key1")
	_, ok, _ := c.Get(ctx, "key1")
	assert.False(t, ok)
}

func TestInvalidatePrefix(t *testing.T) {
	ctx := context.Background()
	c := New()
	_ = c.Set(ctx, "analytics:c1:u1:a:b", []byte("1"), time.Second)
	_ = c.Set(ctx, "analytics:c1:u2:a:b", []byte("2"), time.Second)
	_ = c.Set(ctx, "analytics:c2:u3:a:b", []byte("3"), time.Second)

	require.NoError(t, c.InvalidatePrefix(ctx, "analytics:c1:"))

	_, ok1, _ := c.Get(ctx, "analytics:c1:u1:a:b")
	_, ok2, _ := c.Get(ctx, "analytics:c1:u2:a:b")
	_, ok3, _ := c.Get(ctx, "analytics:c2:u3:a:b")
	assert.False(t, ok1)
	assert.False(t, ok2)
	assert.True(t, ok3)
}
