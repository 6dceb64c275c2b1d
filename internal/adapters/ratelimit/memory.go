package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter implements Limiter with an in-process fixed-window
// counter. It serves tests and single-replica deployments without
// Redis; limits are per process.
type MemoryLimiter struct {
	mu        sync.Mutex
	entries   map[string]*windowEntry
	limit     int
	window    time.Duration
	now       func() time.Time
	lastSweep time.Time
}

type windowEntry struct {
	count   int
	started time.Time
}

// MemoryOption applies a configuration option to the MemoryLimiter.
type MemoryOption func(*MemoryLimiter)

// WithMemoryLimit sets the per-window request limit.
func WithMemoryLimit(limit int) MemoryOption {
	return func(l *MemoryLimiter) {
		if limit > 0 {
			l.limit = limit
		}
	}
}

// WithMemoryWindow sets the counting window.
func WithMemoryWindow(window time.Duration) MemoryOption {
	return func(l *MemoryLimiter) {
		if window > 0 {
			l.window = window
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

// NewMemoryLimiter creates an in-process limiter.
func NewMemoryLimiter(opts ...MemoryOption) *MemoryLimiter {
	l := &MemoryLimiter{
		entries: make(map[string]*windowEntry),
		limit:   defaultLimit,
		window:  defaultWindow,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastSweep = l.now()
	return l
}

// Allow increments the counter for key and reports the decision.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweepLocked(now)

	e, ok := l.entries[key]
	if !ok || now.Sub(e.started) >= l.window {
		e = &windowEntry{started: now}
		l.entries[key] = e
	}
	e.count++
	return decide(e.count, l.limit, e.started.Add(l.window)), nil
}

// Size returns the number of tracked client windows.
func (l *MemoryLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// sweepLocked drops expired windows at most once per window, keeping the
// map bounded by the number of clients seen in the current window.
// Callers hold l.mu.
func (l *MemoryLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	for key, e := range l.entries {
		if now.Sub(e.started) >= l.window {
			delete(l.entries, key)
		}
	}
	l.lastSweep = now
}
