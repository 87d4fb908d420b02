// Package throttle limits how often a key (e.g. an email address) may
// trigger an action within a fixed window.
package throttle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

type Limiter interface {
	// Allow counts one attempt for key and reports whether it is within the
	// limit of the current window.
	Allow(ctx context.Context, key string) (bool, error)
}

const keyPrefix = "members:throttle:"

// RedisLimiter keeps one counter per key and window in Redis, so limits hold
// across restarts.
type RedisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: int64(limit), window: window}
}

// Allow creates the window counter together with its TTL (SET NX EX) and
// increments it in one MULTI/EXEC, so a counter never outlives its window.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := keyPrefix + key

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, k, 0, l.window)
		incr = pipe.Incr(ctx, k)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis incr %s: %w", k, err)
	}
	return incr.Val() <= l.limit, nil
}

type counter struct {
	n       int
	resetAt time.Time
}

// MemoryLimiter is the in-process fallback when no Redis is configured.
type MemoryLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	counters map[string]*counter
	now      func() time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{limit: limit, window: window, counters: make(map[string]*counter), now: time.Now}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.counters[key]
	if !ok || !now.Before(c.resetAt) {
		l.sweep(now)
		c = &counter{resetAt: now.Add(l.window)}
		l.counters[key] = c
	}
	c.n++
	return c.n <= l.limit, nil
}

// sweep drops expired counters.
func (l *MemoryLimiter) sweep(now time.Time) {
	for k, c := range l.counters {
		if !now.Before(c.resetAt) {
			delete(l.counters, k)
		}
	}
}
