// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults, Load(ctx) to layer
//   file and environment overrides on top.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// WebhookSecret is the shared HMAC-SHA256 key for webhook signatures.
	// An empty secret makes the gatekeeper reject all deliveries with 500.
	WebhookSecret string `koanf:"webhook_secret"`

	// Rate limiting for the webhook endpoint, per client IP.
	RateLimit              int  `koanf:"rate_limit"`
	RateLimitWindowSeconds int  `koanf:"rate_limit_window_seconds"`
	RateLimitFailOpen      bool `koanf:"rate_limit_fail_open"`

	// RedisAddr enables the Redis rate-limit backend when set; empty
	// falls back to the in-process limiter.
	RedisAddr string `koanf:"redis_addr"`

	// PostgresDSN enables the Postgres store when set; empty falls back
	// to the in-memory store.
	PostgresDSN string `koanf:"postgres_dsn"`

	// Job queue tuning.
	QueueCapacity             int `koanf:"queue_capacity"`
	QueueMaxAttempts          int `koanf:"queue_max_attempts"`
	QueueBaseDelayMS          int `koanf:"queue_base_delay_ms"`
	CompletedRetentionMinutes int `koanf:"completed_retention_minutes"`
	FailedRetentionMinutes    int `koanf:"failed_retention_minutes"`

	// WorkerCount sets the number of session-processing workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the session-id deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// Analysis window and detector thresholds.
	WindowDays               int     `koanf:"window_days"`
	LatenessThresholdMinutes float64 `koanf:"lateness_threshold_minutes"`
	EarlyEndThresholdMinutes float64 `koanf:"early_end_threshold_minutes"`

	// Scoring component weights; normalized at scoring time.
	WeightAttendance  float64 `koanf:"weight_attendance"`
	WeightRatings     float64 `koanf:"weight_ratings"`
	WeightCompletion  float64 `koanf:"weight_completion"`
	WeightReliability float64 `koanf:"weight_reliability"`

	// BackfillConcurrency bounds parallel tutors per backfill sweep.
	BackfillConcurrency int `koanf:"backfill_concurrency"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel: "info",
		Addr:     ":9080",

		RateLimit:              100,
		RateLimitWindowSeconds: 60,
		RateLimitFailOpen:      true,

		QueueCapacity:             10_000,
		QueueMaxAttempts:          3,
		QueueBaseDelayMS:          2000,
		CompletedRetentionMinutes: 10,
		FailedRetentionMinutes:    24 * 60,

		WorkerCount: runtime.NumCPU() * 2,
		DedupeSize:  50_000,

		WindowDays:               30,
		LatenessThresholdMinutes: 5,
		EarlyEndThresholdMinutes: 10,

		WeightAttendance:  0.25,
		WeightRatings:     0.25,
		WeightCompletion:  0.25,
		WeightReliability: 0.25,

		BackfillConcurrency: 4,
	}
}
