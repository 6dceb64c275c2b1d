package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/tutorlens/tutorlens/internal/adapters/http/api"
	"github.com/tutorlens/tutorlens/internal/adapters/http/swagger"
	"github.com/tutorlens/tutorlens/internal/adapters/ratelimit"
	"github.com/tutorlens/tutorlens/internal/adapters/repository"
	app "github.com/tutorlens/tutorlens/internal/app"
	"github.com/tutorlens/tutorlens/internal/config"
	"github.com/tutorlens/tutorlens/internal/domain/rules"
	"github.com/tutorlens/tutorlens/internal/domain/scoring"
	"github.com/tutorlens/tutorlens/pkg/logger"
	"github.com/tutorlens/tutorlens/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics.
	// We collect our own custom system metrics instead.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Optional .env for local development; env vars win either way.
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	if cfg.WebhookSecret == "" {
		log.Warn(ctx, "webhook_secret not set; all webhook deliveries will be rejected")
	}

	opts := []app.Option{
		app.WithLogger(log),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueCapacity(cfg.QueueCapacity),
		app.WithRetryPolicy(cfg.QueueMaxAttempts, time.Duration(cfg.QueueBaseDelayMS)*time.Millisecond),
		app.WithRetention(
			time.Duration(cfg.CompletedRetentionMinutes)*time.Minute,
			time.Duration(cfg.FailedRetentionMinutes)*time.Minute,
		),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithWindowDays(cfg.WindowDays),
		app.WithBackfillConcurrency(cfg.BackfillConcurrency),
		app.WithThresholds(detectorThresholds(cfg)),
		app.WithScoringWeights(scoring.Weights{
			Attendance:  cfg.WeightAttendance,
			Ratings:     cfg.WeightRatings,
			Completion:  cfg.WeightCompletion,
			Reliability: cfg.WeightReliability,
		}),
	}

	if cfg.PostgresDSN != "" {
		db, err := repository.Open(cfg.PostgresDSN)
		if err != nil {
			os.Stderr.WriteString("failed to open postgres: " + err.Error() + "\n")
			return
		}
		store := repository.NewGormStore(db)
		if err := store.Migrate(ctx); err != nil {
			os.Stderr.WriteString("failed to migrate postgres: " + err.Error() + "\n")
			return
		}
		opts = append(opts, app.WithStore(store))
		log.Info(ctx, "using postgres store")
	}

	svc := app.New(opts...)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)

	// HTTP mux and routes.
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)

	apiServer := api.NewServer(svc, cfg.WebhookSecret, svc,
		api.WithRateLimiter(buildLimiter(ctx, cfg, log)),
		api.WithFailOpen(cfg.RateLimitFailOpen),
	)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			return
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// buildLimiter picks the Redis limiter when an address is configured,
// otherwise the in-process one.
func buildLimiter(ctx context.Context, cfg *config.Config, log logger.Logger) ratelimit.Limiter {
	window := time.Duration(cfg.RateLimitWindowSeconds) * time.Second
	if cfg.RedisAddr == "" {
		log.Info(ctx, "using in-memory rate limiter")
		return ratelimit.NewMemoryLimiter(
			ratelimit.WithMemoryLimit(cfg.RateLimit),
			ratelimit.WithMemoryWindow(window),
		)
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	log.Info(ctx, "using redis rate limiter", logger.String("addr", cfg.RedisAddr))
	return ratelimit.NewRedisLimiter(client,
		ratelimit.WithRedisLimit(cfg.RateLimit),
		ratelimit.WithRedisWindow(window),
	)
}

func detectorThresholds(cfg *config.Config) rules.Thresholds {
	t := rules.DefaultThresholds()
	if cfg.LatenessThresholdMinutes > 0 {
		t.LatenessMinutes = cfg.LatenessThresholdMinutes
	}
	if cfg.EarlyEndThresholdMinutes > 0 {
		t.EarlyEndMinutes = cfg.EarlyEndThresholdMinutes
	}
	return t
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
