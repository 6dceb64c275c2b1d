// Package worker runs the pool of goroutines that drain the job queue
// and drive session processing.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/tutorlens/tutorlens/internal/adapters/mq/queue"
	"github.com/tutorlens/tutorlens/pkg/logger"
	"github.com/tutorlens/tutorlens/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Processor handles one stored session end to end.
type Processor interface {
	ProcessSession(ctx context.Context, sessionID string) error
}

// Queue defines how workers receive and acknowledge jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
	Ack(ctx context.Context, j queue.Job)
	Nack(ctx context.Context, j queue.Job, err error)
}

// Worker processes jobs until stopped.
type Worker struct {
	queue     Queue
	processor Processor
	name      string

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// Option applies a configuration option to the Worker.
type Option func(*Worker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *Worker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWorker creates a worker bound to a queue and processor.
func NewWorker(q Queue, p Processor, opts ...Option) *Worker {
	w := &Worker{
		queue:     q,
		processor: p,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop until ctx is canceled or the queue closes.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			w.process(ctx, j)
		}
	}
}

// Stop signals the worker loop to exit. Safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

// Shutdown gracefully stops the worker.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.Stop()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process runs one job and feeds the outcome back to the retry policy.
func (w *Worker) process(ctx context.Context, j queue.Job) {
	start := time.Now()
	err := w.processor.ProcessSession(ctx, j.SessionID)
	metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))

	if err != nil {
		metrics.RecordWorkerError()
		w.logger.Error(ctx, "session processing failed",
			logger.String("jobID", j.ID),
			logger.String("sessionID", j.SessionID),
			logger.Int("attempts", j.Attempts),
			logger.Error(err),
		)
		w.queue.Nack(ctx, j, err)
		return
	}
	w.queue.Ack(ctx, j)
}

// Pool manages multiple workers.
type Pool struct {
	workers []*Worker

	logger logger.Logger
}

// NewPool creates workerCount workers over the shared queue.
func NewPool(workerCount int, q Queue, p Processor) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*Worker, workerCount),
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewWorker(q, p, WithName("worker-"+strconv.Itoa(i)))
	}

	metrics.UpdateWorkerActiveCount(workerCount)
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop gracefully stops all workers.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		w.Stop()
	}
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
	metrics.UpdateWorkerActiveCount(0)
}

// Shutdown stops the pool, bounded by poolShutdownTimeout.
func (p *Pool) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
			continue
		default:
		}
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	return nil
}
