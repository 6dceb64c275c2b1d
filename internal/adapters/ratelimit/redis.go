package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements Limiter on a shared Redis counter so the
// limit holds across replicas. Each check is a single pipelined
// INCR + EXPIRE NX + TTL round trip, keeping the increment atomic under
// concurrent requests from the same IP.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// RedisOption applies a configuration option to the RedisLimiter.
type RedisOption func(*RedisLimiter)

// WithRedisLimit sets the per-window request limit.
func WithRedisLimit(limit int) RedisOption {
	return func(l *RedisLimiter) {
		if limit > 0 {
			l.limit = limit
		}
	}
}

// WithRedisWindow sets the counting window.
func WithRedisWindow(window time.Duration) RedisOption {
	return func(l *RedisLimiter) {
		if window > 0 {
			l.window = window
		}
	}
}

// WithRedisKeyPrefix namespaces the counter keys.
func WithRedisKeyPrefix(prefix string) RedisOption {
	return func(l *RedisLimiter) {
		if prefix != "" {
			l.prefix = prefix
		}
	}
}

// NewRedisLimiter creates a limiter on an existing Redis client.
func NewRedisLimiter(client *redis.Client, opts ...RedisOption) *RedisLimiter {
	l := &RedisLimiter{
		client: client,
		limit:  defaultLimit,
		window: defaultWindow,
		prefix: "ratelimit",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow increments the counter for key and reports the decision.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	fullKey := l.prefix + ":" + key

	pipe := l.client.Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	// NX: only arm the expiry on the first hit of the window, so the
	// window does not slide forward on every request.
	pipe.ExpireNX(ctx, fullKey, l.window)
	ttl := pipe.TTL(ctx, fullKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit check for %s: %w", key, err)
	}

	remaining := ttl.Val()
	if remaining < 0 {
		remaining = l.window
	}
	return decide(int(incr.Val()), l.limit, time.Now().Add(remaining)), nil
}
