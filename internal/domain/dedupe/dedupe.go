// Package dedupe provides fast in-process idempotency tracking for
// webhook session ids. It answers the common duplicate-delivery case
// before the database is consulted; the session store's unique index
// stays the authority.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records seen session ids for at-most-once intake.
type Deduper interface {
	// SeenAndRecord atomically checks whether id was seen and records it
	// if not. Returns true when id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets an id so it can be retried. Used when intake
	// recorded the id but failed to persist or enqueue the session.
	Unrecord(ctx context.Context, id string)

	// Size returns the number of ids currently tracked.
	Size() int
}

// memoryDeduper implements Deduper with a map plus a FIFO ring. When the
// ring is full the oldest id is evicted; the database still catches
// duplicates that age out.
type memoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
	ring []string
	next int
	full bool
}

// defaultMaxSize bounds memory for long-running intake.
const defaultMaxSize = 50000

// Option applies a configuration option to the deduper.
type Option func(*memoryDeduper)

// WithMaxSize sets how many ids are remembered before the oldest is
// evicted.
func WithMaxSize(maxSize int) Option {
	return func(d *memoryDeduper) {
		if maxSize > 0 {
			d.ring = make([]string, maxSize)
		}
	}
}

// NewInMemoryDeduper creates a bounded in-process deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &memoryDeduper{
		seen: make(map[string]struct{}),
		ring: make([]string, defaultMaxSize),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *memoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}

	if d.full {
		delete(d.seen, d.ring[d.next])
	}
	d.ring[d.next] = id
	d.next++
	if d.next == len(d.ring) {
		d.next = 0
		d.full = true
	}
	d.seen[id] = struct{}{}
	return false
}

func (d *memoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// The stale ring slot is left in place; eviction tolerates ids no
	// longer present in the map.
	delete(d.seen, id)
}

func (d *memoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
