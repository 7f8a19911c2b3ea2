package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterAllowsUpToLimit(t *testing.T) {
	lim := NewMemoryLimiter(5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, _, err := lim.Allow(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, retryAfter, err := lim.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))
	assert.LessOrEqual(t, retryAfter, time.Minute)
}

func TestMemoryLimiterIsolatesUsers(t *testing.T) {
	lim := NewMemoryLimiter(1, time.Minute)
	ctx := context.Background()

	allowed, _, err := lim.Allow(ctx, "user-a")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, err = lim.Allow(ctx, "user-b")
	require.NoError(t, err)
	assert.True(t, allowed, "a different user's counter must not share state")
}

func TestRedisLimiterFixedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	lim := NewRedisLimiter(client, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _, err := lim.Allow(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, retryAfter, err := lim.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))
	assert.LessOrEqual(t, retryAfter, time.Minute)

	mr.FastForward(time.Minute + time.Second)
	allowed, _, err = lim.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, allowed, "window should reset after TTL expiry")
}
