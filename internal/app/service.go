// Package service wires the telemetry pipeline together and implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	jobqueue "github.com/tutorlens/tutorlens/internal/adapters/mq/queue"
	workerpool "github.com/tutorlens/tutorlens/internal/adapters/mq/worker"
	"github.com/tutorlens/tutorlens/internal/adapters/repository"
	"github.com/tutorlens/tutorlens/internal/domain/dedupe"
	"github.com/tutorlens/tutorlens/internal/domain/flags"
	"github.com/tutorlens/tutorlens/internal/domain/model"
	"github.com/tutorlens/tutorlens/internal/domain/processor"
	"github.com/tutorlens/tutorlens/internal/domain/rules"
	"github.com/tutorlens/tutorlens/internal/domain/scoring"
	"github.com/tutorlens/tutorlens/internal/domain/stats"
	"github.com/tutorlens/tutorlens/pkg/logger"
)

// Service owns the pipeline components: store, deduper, queue, worker
// pool and the session processor.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	deduper    dedupe.Deduper
	queue      *jobqueue.InMemoryQueue
	processor  *processor.Processor
	workerPool *workerpool.Pool

	// Configuration
	workerCount         int
	queueCapacity       int
	queueMaxAttempts    int
	queueBaseDelay      time.Duration
	completedRetention  time.Duration
	failedRetention     time.Duration
	dedupeSize          int
	windowDays          int
	backfillConcurrency int
	thresholds          rules.Thresholds
	weights             scoring.Weights

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore injects a persistence layer; defaults to the in-memory
// store when unset.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueCapacity bounds the job queue.
func WithQueueCapacity(capacity int) Option {
	return func(s *Service) {
		if capacity > 0 {
			s.queueCapacity = capacity
		}
	}
}

// WithRetryPolicy sets the per-job retry budget and base backoff delay.
func WithRetryPolicy(maxAttempts int, baseDelay time.Duration) Option {
	return func(s *Service) {
		if maxAttempts > 0 {
			s.queueMaxAttempts = maxAttempts
		}
		if baseDelay > 0 {
			s.queueBaseDelay = baseDelay
		}
	}
}

// WithRetention sets how long completed and failed jobs are kept.
func WithRetention(completed, failed time.Duration) Option {
	return func(s *Service) {
		if completed > 0 {
			s.completedRetention = completed
		}
		if failed > 0 {
			s.failedRetention = failed
		}
	}
}

// WithDedupeSize sets the size of the session-id deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithWindowDays sets the trailing analysis window length.
func WithWindowDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.windowDays = days
		}
	}
}

// WithBackfillConcurrency bounds parallel tutors per backfill sweep.
func WithBackfillConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.backfillConcurrency = n
		}
	}
}

// WithThresholds replaces the detector thresholds.
func WithThresholds(t rules.Thresholds) Option {
	return func(s *Service) {
		s.thresholds = t
	}
}

// WithScoringWeights replaces the scoring component weights.
func WithScoringWeights(w scoring.Weights) Option {
	return func(s *Service) {
		s.weights = w
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:         4,
		queueCapacity:       10_000,
		queueMaxAttempts:    3,
		queueBaseDelay:      2 * time.Second,
		completedRetention:  10 * time.Minute,
		failedRetention:     24 * time.Hour,
		dedupeSize:          50_000,
		windowDays:          30,
		backfillConcurrency: 4,
		thresholds:          rules.DefaultThresholds(),
		weights:             scoring.DefaultWeights(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the pipeline components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting telemetry pipeline...")

	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory store")
	}
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.queue = jobqueue.NewInMemoryQueue(
		jobqueue.WithCapacity(s.queueCapacity),
		jobqueue.WithMaxAttempts(s.queueMaxAttempts),
		jobqueue.WithBaseDelay(s.queueBaseDelay),
		jobqueue.WithCompletedRetention(s.completedRetention),
		jobqueue.WithFailedRetention(s.failedRetention),
	)

	aggregator := stats.NewAggregator(s.store.Sessions(),
		stats.WithLatenessThreshold(s.thresholds.LatenessMinutes),
		stats.WithEarlyEndThreshold(s.thresholds.EarlyEndMinutes),
	)
	engine := rules.NewEngine(s.thresholds, s.store.Scores())
	scorer := scoring.NewScorer(scoring.WithWeights(s.weights))
	creator := flags.NewCreator(s.store.Flags())
	s.processor = processor.New(s.store, aggregator, engine, scorer, creator,
		processor.WithWindowDays(s.windowDays),
		processor.WithBackfillConcurrency(s.backfillConcurrency),
	)

	s.workerPool = workerpool.NewPool(s.workerCount, s.queue, s.processor)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "telemetry pipeline started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueCapacity", s.queueCapacity),
		logger.Int("windowDays", s.windowDays),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping telemetry pipeline...")

	if s.workerPool != nil {
		s.workerPool.Stop()
	}
	if s.queue != nil {
		_ = s.queue.Close()
	}

	s.started = false
	s.logger.Info(ctx, "telemetry pipeline stopped")
}

// SeenAndRecord atomically checks whether a session id was seen and
// records it if not.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	return s.deduper.SeenAndRecord(ctx, id)
}

// Unrecord forgets a session id so the delivery can be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the current number of tracked session ids.
func (s *Service) Size() int {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// StoreSession persists a validated session.
func (s *Service) StoreSession(ctx context.Context, sess *model.Session) error {
	return s.store.Sessions().Insert(ctx, sess)
}

// EnqueueSession schedules async processing of a stored session. First
// sessions jump the line; a poor first impression should be flagged
// before the next booking.
func (s *Service) EnqueueSession(ctx context.Context, sess *model.Session) bool {
	priority := jobqueue.PriorityNormal
	if sess.IsFirstSession {
		priority = jobqueue.PriorityHigh
	}
	return s.queue.Enqueue(ctx, jobqueue.Job{
		ID:        uuid.NewString(),
		SessionID: sess.SessionID,
		TutorID:   sess.TutorID,
		Priority:  priority,
	})
}

// Backfill reprocesses every stored session in the window.
func (s *Service) Backfill(ctx context.Context, w model.Window) (processor.BackfillResult, error) {
	return s.processor.Backfill(ctx, w)
}

// ReplayJob moves a failed job back into the queue.
func (s *Service) ReplayJob(ctx context.Context, jobID string) bool {
	return s.queue.Replay(ctx, jobID) == nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"windowDays":  s.windowDays,
	}
	if s.started {
		out["queue"] = s.queue.Stats()
		out["dedupeSize"] = s.deduper.Size()
	}
	return out
}
