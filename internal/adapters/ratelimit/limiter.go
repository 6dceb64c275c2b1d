// Package ratelimit provides a fixed-window request counter keyed by
// (endpoint, client IP), with Redis and in-memory backends.
package ratelimit

import (
	"context"
	"time"
)

// Default limiter configuration.
const (
	defaultLimit  = 100
	defaultWindow = time.Minute
)

// Decision is the outcome of one Allow check, carrying everything the
// HTTP layer needs for X-RateLimit-* and Retry-After headers.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration
}

// Limiter counts requests per key within a window. A non-nil error
// means the backend could not be consulted; the caller decides whether
// to fail open or closed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

func decide(count, limit int, reset time.Time) Decision {
	d := Decision{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: limit - count,
		Reset:     reset,
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !d.Allowed {
		d.RetryAfter = time.Until(reset)
		if d.RetryAfter < 0 {
			d.RetryAfter = 0
		}
	}
	return d
}
