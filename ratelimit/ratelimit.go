// Package ratelimit implements the per-user request limiters the gateway
// applies to write operations: a Redis-backed fixed-window counter and an
// in-process token bucket. Neither keeps a sliding window.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter decides whether a user may make another request within the
// current window and reports how long until the window resets.
type Limiter interface {
	Allow(ctx context.Context, userID string) (allowed bool, retryAfter time.Duration, err error)
}

// RedisLimiter implements a fixed-window counter per user per minute,
// grounded on the teacher's RedisRepository.Increment counter pattern, with
// the window boundary added via a TTL set only on the counter's first
// increment in a given window.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedisLimiter creates a limiter allowing up to limit requests per
// window (spec default: 100 requests/minute) backed by shared Redis state.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, userID string) (bool, time.Duration, error) {
	key := fmt.Sprintf("ratelimit:%s", userID)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, 0, err
		}
	}
	if count > int64(l.limit) {
		ttl, err := l.client.TTL(ctx, key).Result()
		if err != nil || ttl < 0 {
			ttl = l.window
		}
		return false, ttl, nil
	}
	return true, 0, nil
}

// MemoryLimiter is an in-process token-bucket limiter for tests and
// single-process runs, one golang.org/x/time/rate.Limiter per user sized
// to allow exactly limit requests per window (burst = limit, refill rate
// = limit/window). A mutex guards the per-user map since Allow is called
// concurrently across request-handling goroutines.
type MemoryLimiter struct {
	limit  int
	window time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:    limit,
		window:   window,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *MemoryLimiter) limiterFor(userID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.window/time.Duration(l.limit)), l.limit)
		l.limiters[userID] = lim
	}
	return lim
}

func (l *MemoryLimiter) Allow(ctx context.Context, userID string) (bool, time.Duration, error) {
	reservation := l.limiterFor(userID).Reserve()
	if !reservation.OK() {
		return false, 0, fmt.Errorf("ratelimit: burst size exceeds configured limit")
	}
	delay := reservation.Delay()
	if delay > 0 {
		reservation.Cancel()
		return false, delay, nil
	}
	return true, 0, nil
}
