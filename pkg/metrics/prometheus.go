// Package metrics provides Prometheus metrics for the tutor quality pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the pipeline.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Intake metrics
	sessionsIngested  prometheus.Counter
	sessionsDuplicate prometheus.Counter
	webhookRejections *prometheus.CounterVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Rate limiter metrics
	rateLimitAllowed  prometheus.Counter
	rateLimitDenied   prometheus.Counter
	rateLimitFailOpen prometheus.Counter

	// Queue metrics
	queueDepth       prometheus.Gauge
	queueCapacity    prometheus.Gauge
	jobsEnqueued     *prometheus.CounterVec
	jobsDequeued     prometheus.Counter
	jobsCompleted    prometheus.Counter
	jobsRetried      prometheus.Counter
	jobsFailed       prometheus.Counter
	jobEnqueueErrors prometheus.Counter

	// Worker metrics
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Domain metrics
	aggregationLatency prometheus.Histogram
	scoresComputed     prometheus.Counter
	rulesTriggered     *prometheus.CounterVec
	ruleErrors         *prometheus.CounterVec
	flagsCreated       *prometheus.CounterVec
	flagsDeduplicated  *prometheus.CounterVec
	flagErrors         prometheus.Counter

	// Backfill metrics
	backfillProcessed prometheus.Counter
	backfillFailed    prometheus.Counter

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "tutorlens",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// latencyBuckets suits millisecond-scale pipeline work.
var latencyBuckets = []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000} //nolint:gochecknoglobals // shared bucket layout

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	m.sessionsIngested = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_ingested_total",
		Help:      "Sessions accepted and stored by the webhook gatekeeper",
	})

	m.sessionsDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_duplicate_total",
		Help:      "Webhook deliveries rejected as duplicate session ids",
	})

	m.webhookRejections = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "webhook_rejections_total",
		Help:      "Webhook deliveries rejected, labeled by the gate that rejected them",
	}, []string{"gate"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   latencyBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.rateLimitAllowed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rate_limit_allowed_total",
		Help:      "Requests allowed by the rate limiter",
	})

	m.rateLimitDenied = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rate_limit_denied_total",
		Help:      "Requests denied by the rate limiter",
	})

	m.rateLimitFailOpen = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rate_limit_fail_open_total",
		Help:      "Requests allowed because the limiter backend was unavailable",
	})

	m.queueDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_depth",
		Help:      "Jobs currently waiting in the queue",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Maximum number of queued jobs",
	})

	m.jobsEnqueued = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "jobs_enqueued_total",
		Help:      "Jobs enqueued, labeled by priority",
	}, []string{"priority"})

	m.jobsDequeued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "jobs_dequeued_total",
		Help:      "Jobs handed to workers",
	})

	m.jobsCompleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "jobs_completed_total",
		Help:      "Jobs completed successfully",
	})

	m.jobsRetried = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "jobs_retried_total",
		Help:      "Job retry attempts scheduled",
	})

	m.jobsFailed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "jobs_failed_total",
		Help:      "Jobs that exhausted their retry budget",
	})

	m.jobEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "job_enqueue_errors_total",
		Help:      "Enqueue attempts rejected by the queue",
	})

	m.workerActiveCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_active_count",
		Help:      "Number of running workers",
	})

	m.workerProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_processing_latency_milliseconds",
		Help:      "End-to-end session processing latency in milliseconds",
		Buckets:   latencyBuckets,
	})

	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_errors_total",
		Help:      "Worker processing errors",
	})

	m.aggregationLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "aggregation_latency_milliseconds",
		Help:      "Statistics aggregation latency in milliseconds",
		Buckets:   latencyBuckets,
	})

	m.scoresComputed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scores_computed_total",
		Help:      "Tutor score computations",
	})

	m.rulesTriggered = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rules_triggered_total",
		Help:      "Rule results that triggered, by flag type and severity",
	}, []string{"flag_type", "severity"})

	m.ruleErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rule_errors_total",
		Help:      "Detector evaluation errors, by rule",
	}, []string{"rule"})

	m.flagsCreated = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "flags_created_total",
		Help:      "Coaching flags persisted, by flag type and severity",
	}, []string{"flag_type", "severity"})

	m.flagsDeduplicated = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "flags_deduplicated_total",
		Help:      "Triggered rules suppressed by an existing open flag",
	}, []string{"flag_type"})

	m.flagErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "flag_errors_total",
		Help:      "Flag persistence errors",
	})

	m.backfillProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "backfill_processed_total",
		Help:      "Sessions reprocessed by backfill sweeps",
	})

	m.backfillFailed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "backfill_failed_total",
		Help:      "Sessions a backfill sweep failed to reprocess",
	})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_time_milliseconds",
		Help:      "GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// RecordSessionIngested increments the ingested sessions counter.
func RecordSessionIngested() {
	globalManager.sessionsIngested.Inc()
}

// RecordSessionDuplicate increments the duplicate sessions counter.
func RecordSessionDuplicate() {
	globalManager.sessionsDuplicate.Inc()
}

// RecordWebhookRejected counts a rejection by the given gate
// (rate_limit, signature, validation, conflict, server).
func RecordWebhookRejected(gate string) {
	globalManager.webhookRejections.WithLabelValues(gate).Inc()
}

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordRateLimitAllowed counts a request allowed by the limiter.
func RecordRateLimitAllowed() {
	globalManager.rateLimitAllowed.Inc()
}

// RecordRateLimitDenied counts a request denied by the limiter.
func RecordRateLimitDenied() {
	globalManager.rateLimitDenied.Inc()
}

// RecordRateLimitFailOpen counts a request allowed because the limiter
// backend was unreachable.
func RecordRateLimitFailOpen() {
	globalManager.rateLimitFailOpen.Inc()
}

// UpdateQueueDepth sets the current queue depth gauge.
func UpdateQueueDepth(depth int) {
	globalManager.queueDepth.Set(float64(depth))
}

// UpdateQueueCapacity sets the queue capacity gauge.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordJobEnqueued counts an enqueued job by priority name.
func RecordJobEnqueued(priority string) {
	globalManager.jobsEnqueued.WithLabelValues(priority).Inc()
}

// RecordJobDequeued counts a job handed to a worker.
func RecordJobDequeued() {
	globalManager.jobsDequeued.Inc()
}

// RecordJobCompleted counts a successfully completed job.
func RecordJobCompleted() {
	globalManager.jobsCompleted.Inc()
}

// RecordJobRetry counts a scheduled retry attempt.
func RecordJobRetry() {
	globalManager.jobsRetried.Inc()
}

// RecordJobFailed counts a job that exhausted its retry budget.
func RecordJobFailed() {
	globalManager.jobsFailed.Inc()
}

// RecordJobEnqueueError counts a rejected enqueue attempt.
func RecordJobEnqueueError() {
	globalManager.jobEnqueueErrors.Inc()
}

// UpdateWorkerActiveCount sets the active worker gauge.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records end-to-end processing latency in
// milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError counts a worker processing error.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordAggregationLatency records statistics aggregation latency in
// milliseconds.
func RecordAggregationLatency(latencyMs float64) {
	globalManager.aggregationLatency.Observe(latencyMs)
}

// RecordScoreComputed counts a tutor score computation.
func RecordScoreComputed() {
	globalManager.scoresComputed.Inc()
}

// RecordRuleTriggered counts a triggered rule result.
func RecordRuleTriggered(flagType, severity string) {
	globalManager.rulesTriggered.WithLabelValues(flagType, severity).Inc()
}

// RecordRuleError counts a detector evaluation error.
func RecordRuleError(rule string) {
	globalManager.ruleErrors.WithLabelValues(rule).Inc()
}

// RecordFlagCreated counts a persisted coaching flag.
func RecordFlagCreated(flagType, severity string) {
	globalManager.flagsCreated.WithLabelValues(flagType, severity).Inc()
}

// RecordFlagDeduplicated counts a trigger suppressed by an open flag.
func RecordFlagDeduplicated(flagType string) {
	globalManager.flagsDeduplicated.WithLabelValues(flagType).Inc()
}

// RecordFlagError counts a flag persistence error.
func RecordFlagError() {
	globalManager.flagErrors.Inc()
}

// RecordBackfillProcessed counts a session reprocessed by a backfill
// sweep.
func RecordBackfillProcessed() {
	globalManager.backfillProcessed.Inc()
}

// RecordBackfillFailed counts a session a backfill sweep could not
// reprocess.
func RecordBackfillFailed() {
	globalManager.backfillFailed.Inc()
}

// UpdateSystemMemoryUsage sets the memory usage gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records a GC pause in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom registry used for the /metrics endpoint.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
