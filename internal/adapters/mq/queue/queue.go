// Package queue provides the asynchronous job queue between webhook
// intake and session processing: priority-aware dispatch, retry with
// exponential backoff, and retention of finished jobs for postmortem
// and replay.
package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/tutorlens/tutorlens/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultCapacity           = 10000
	defaultMaxAttempts        = 3
	defaultBaseDelay          = 2 * time.Second
	defaultCompletedRetention = 10 * time.Minute
	defaultFailedRetention    = 24 * time.Hour
	defaultJanitorInterval    = time.Minute

	dispatcherIdleWait = time.Minute
)

// Priority orders jobs; lower values dispatch first.
type Priority int

// Job priorities.
const (
	PriorityHigh   Priority = 1
	PriorityNormal Priority = 5
)

// String returns the metric label for the priority.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	default:
		return "other"
	}
}

// Job is one unit of asynchronous work: process a stored session.
type Job struct {
	ID        string
	SessionID string
	TutorID   string
	Priority  Priority

	Attempts   int // attempts consumed so far
	RunAt      time.Time
	EnqueuedAt time.Time
	LastError  string
}

// Queue provides non-blocking enqueue, channel-based dequeue, and
// completion acknowledgment driving the retry policy.
type Queue interface {
	// Enqueue adds a job. Returns false when the queue is full or closed.
	Enqueue(ctx context.Context, j Job) bool

	// Dequeue returns a channel delivering jobs as they become ready.
	// The channel is closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Job

	// Ack marks a dequeued job as completed.
	Ack(ctx context.Context, j Job)

	// Nack reports a processing failure. The job is rescheduled with
	// exponential backoff until its retry budget is exhausted, after
	// which it is parked in the failed set for replay.
	Nack(ctx context.Context, j Job, err error)

	// Len returns the number of jobs waiting or ready.
	Len(ctx context.Context) int

	// Close gracefully shuts down the queue.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// finishedJob is a retained record of a terminal job.
type finishedJob struct {
	job        Job
	finishedAt time.Time
}

// InMemoryQueue implements Queue with two heaps: delayed jobs ordered by
// release time and due jobs ordered by priority. The dispatcher hands the
// best due job to workers over an unbuffered channel, so ordering stays
// in the heaps until a worker is actually free.
type InMemoryQueue struct {
	mu       sync.Mutex
	delayed  delayedHeap
	runnable runnableHeap
	inflight int
	seq      uint64
	closed   bool

	ready chan Job
	wake  chan struct{}
	stop  chan struct{}
	done  chan struct{}

	capacity    int
	maxAttempts int
	baseDelay   time.Duration

	completed          []finishedJob
	failed             []finishedJob
	completedRetention time.Duration
	failedRetention    time.Duration
	janitorInterval    time.Duration
}

// NewInMemoryQueue creates and starts a queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity:           defaultCapacity,
		maxAttempts:        defaultMaxAttempts,
		baseDelay:          defaultBaseDelay,
		completedRetention: defaultCompletedRetention,
		failedRetention:    defaultFailedRetention,
		janitorInterval:    defaultJanitorInterval,
		wake:               make(chan struct{}, 1),
		stop:               make(chan struct{}),
		done:               make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.ready = make(chan Job)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueDepth(0)

	go q.dispatch()
	go q.janitor()

	return q
}

// Enqueue adds a job to the heap and wakes the dispatcher.
func (q *InMemoryQueue) Enqueue(_ context.Context, j Job) bool {
	q.mu.Lock()
	if q.closed || q.depthLocked() >= q.capacity {
		q.mu.Unlock()
		metrics.RecordJobEnqueueError()
		return false
	}
	if j.Priority == 0 {
		j.Priority = PriorityNormal
	}
	now := time.Now()
	if j.EnqueuedAt.IsZero() {
		j.EnqueuedAt = now
	}
	if j.RunAt.IsZero() {
		j.RunAt = now
	}
	q.seq++
	heap.Push(&q.delayed, &heapItem{job: j, seq: q.seq})
	depth := q.depthLocked()
	q.mu.Unlock()

	metrics.RecordJobEnqueued(j.Priority.String())
	metrics.UpdateQueueDepth(depth)
	q.signal()
	return true
}

// Dequeue returns the ready-job channel.
func (q *InMemoryQueue) Dequeue(_ context.Context) <-chan Job {
	return q.ready
}

// Ack marks a job completed and retains it briefly for inspection.
func (q *InMemoryQueue) Ack(_ context.Context, j Job) {
	q.mu.Lock()
	q.completed = append(q.completed, finishedJob{job: j, finishedAt: time.Now()})
	q.mu.Unlock()
	metrics.RecordJobCompleted()
}

// Nack reschedules the job with backoff, or parks it as failed once the
// retry budget is spent.
func (q *InMemoryQueue) Nack(_ context.Context, j Job, err error) {
	if err != nil {
		j.LastError = err.Error()
	}
	j.Attempts++

	if j.Attempts >= q.maxAttempts {
		q.mu.Lock()
		q.failed = append(q.failed, finishedJob{job: j, finishedAt: time.Now()})
		q.mu.Unlock()
		metrics.RecordJobFailed()
		return
	}

	// 2s, 4s, 8s... doubling per consumed attempt.
	delay := q.baseDelay << (j.Attempts - 1)
	j.RunAt = time.Now().Add(delay)

	q.mu.Lock()
	if q.closed {
		q.failed = append(q.failed, finishedJob{job: j, finishedAt: time.Now()})
		q.mu.Unlock()
		metrics.RecordJobFailed()
		return
	}
	q.seq++
	heap.Push(&q.delayed, &heapItem{job: j, seq: q.seq})
	q.mu.Unlock()

	metrics.RecordJobRetry()
	q.signal()
}

// Replay moves a failed job back onto the heap with a fresh retry
// budget. Returns ErrJobNotFound when no failed job has that id.
func (q *InMemoryQueue) Replay(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	for i := range q.failed {
		if q.failed[i].job.ID != jobID {
			continue
		}
		j := q.failed[i].job
		q.failed = append(q.failed[:i], q.failed[i+1:]...)
		j.Attempts = 0
		j.LastError = ""
		j.RunAt = time.Now()
		q.seq++
		heap.Push(&q.delayed, &heapItem{job: j, seq: q.seq})
		q.signal()
		return nil
	}
	return ErrJobNotFound
}

// FailedJobs returns a snapshot of jobs that exhausted their retries.
func (q *InMemoryQueue) FailedJobs() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Job, len(q.failed))
	for i := range q.failed {
		out[i] = q.failed[i].job
	}
	return out
}

// Len returns the number of jobs waiting or ready.
func (q *InMemoryQueue) Len(_ context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depthLocked()
}

// Stats returns queue counters for the stats endpoint.
func (q *InMemoryQueue) Stats() map[string]any {
	q.mu.Lock()
	defer q.mu.Unlock()
	return map[string]any{
		"depth":     q.depthLocked(),
		"capacity":  q.capacity,
		"completed": len(q.completed),
		"failed":    len(q.failed),
	}
}

// Close stops the dispatcher and closes the ready channel.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	close(q.stop)
	<-q.done // dispatcher owns the ready channel and closes it
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// dispatch promotes jobs whose RunAt has arrived into the runnable heap
// and offers the highest-priority runnable job to workers. A wake while
// the offer is pending sends the held job back through the heap, so a
// fresher high-priority arrival can overtake it.
func (q *InMemoryQueue) dispatch() {
	defer close(q.done)
	defer close(q.ready)

	for {
		q.mu.Lock()
		now := time.Now()
		for q.delayed.Len() > 0 && !q.delayed[0].job.RunAt.After(now) {
			heap.Push(&q.runnable, heap.Pop(&q.delayed).(*heapItem))
		}
		wait := dispatcherIdleWait
		if q.delayed.Len() > 0 {
			wait = q.delayed[0].job.RunAt.Sub(now)
		}
		var next *heapItem
		if q.runnable.Len() > 0 {
			next = heap.Pop(&q.runnable).(*heapItem)
			q.inflight++
		}
		q.mu.Unlock()

		if next != nil {
			select {
			case q.ready <- next.job:
				q.mu.Lock()
				q.inflight--
				depth := q.depthLocked()
				q.mu.Unlock()
				metrics.RecordJobDequeued()
				metrics.UpdateQueueDepth(depth)
			case <-q.wake:
				q.mu.Lock()
				heap.Push(&q.runnable, next)
				q.inflight--
				q.mu.Unlock()
			case <-q.stop:
				return
			}
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-q.wake:
			timer.Stop()
		case <-timer.C:
		case <-q.stop:
			timer.Stop()
			return
		}
	}
}

// janitor prunes retained jobs past their retention windows.
func (q *InMemoryQueue) janitor() {
	ticker := time.NewTicker(q.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stop:
			return
		case now := <-ticker.C:
			q.mu.Lock()
			q.completed = prune(q.completed, now, q.completedRetention)
			q.failed = prune(q.failed, now, q.failedRetention)
			q.mu.Unlock()
		}
	}
}

func prune(jobs []finishedJob, now time.Time, retention time.Duration) []finishedJob {
	kept := jobs[:0]
	for i := range jobs {
		if now.Sub(jobs[i].finishedAt) < retention {
			kept = append(kept, jobs[i])
		}
	}
	return kept
}

// depthLocked counts queued jobs plus the one the dispatcher may be
// holding for handoff. Callers hold q.mu.
func (q *InMemoryQueue) depthLocked() int {
	return q.delayed.Len() + q.runnable.Len() + q.inflight
}

func (q *InMemoryQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// heapItem carries a job and its insertion sequence for FIFO tie-breaks.
type heapItem struct {
	job Job
	seq uint64
}

// delayedHeap orders jobs by release time.
type delayedHeap []*heapItem

func (h delayedHeap) Len() int { return len(h) }

func (h delayedHeap) Less(i, j int) bool {
	if !h[i].job.RunAt.Equal(h[j].job.RunAt) {
		return h[i].job.RunAt.Before(h[j].job.RunAt)
	}
	return h[i].seq < h[j].seq
}

func (h delayedHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *delayedHeap) Push(x any) { *h = append(*h, x.(*heapItem)) }

func (h *delayedHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// runnableHeap orders due jobs by priority, FIFO within a priority.
type runnableHeap []*heapItem

func (h runnableHeap) Len() int { return len(h) }

func (h runnableHeap) Less(i, j int) bool {
	if h[i].job.Priority != h[j].job.Priority {
		return h[i].job.Priority < h[j].job.Priority
	}
	return h[i].seq < h[j].seq
}

func (h runnableHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *runnableHeap) Push(x any) { *h = append(*h, x.(*heapItem)) }

func (h *runnableHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
