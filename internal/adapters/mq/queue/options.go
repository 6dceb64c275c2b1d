package queue

import "time"

// Option applies a configuration option to the InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity bounds the number of waiting jobs.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithMaxAttempts sets the retry budget per job.
func WithMaxAttempts(attempts int) Option {
	return func(q *InMemoryQueue) {
		if attempts > 0 {
			q.maxAttempts = attempts
		}
	}
}

// WithBaseDelay sets the first retry delay; each subsequent retry
// doubles it.
func WithBaseDelay(delay time.Duration) Option {
	return func(q *InMemoryQueue) {
		if delay > 0 {
			q.baseDelay = delay
		}
	}
}

// WithCompletedRetention sets how long completed jobs are retained.
func WithCompletedRetention(d time.Duration) Option {
	return func(q *InMemoryQueue) {
		if d > 0 {
			q.completedRetention = d
		}
	}
}

// WithFailedRetention sets how long failed jobs are retained for
// postmortem and replay.
func WithFailedRetention(d time.Duration) Option {
	return func(q *InMemoryQueue) {
		if d > 0 {
			q.failedRetention = d
		}
	}
}

// WithJanitorInterval sets how often retention is enforced.
func WithJanitorInterval(d time.Duration) Option {
	return func(q *InMemoryQueue) {
		if d > 0 {
			q.janitorInterval = d
		}
	}
}
