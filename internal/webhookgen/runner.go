package webhookgen

import (
	"context"
	"errors"
	"time"

	"github.com/tutorlens/tutorlens/pkg/logger"
)

// Run generates and delivers the configured number of webhooks and
// returns the tally.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base url must not be empty")
	}
	if cfg.Secret == "" {
		return nil, errors.New("secret must not be empty")
	}
	if cfg.NumSessions < 1 {
		return nil, errors.New("num sessions must be positive")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Tutors < 1 {
		cfg.Tutors = 10
	}
	if cfg.Students < 1 {
		cfg.Students = cfg.Tutors * 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	log := logger.Get().Named("webhookgen")
	log.Info(ctx, "generating sessions",
		logger.Int("sessions", cfg.NumSessions),
		logger.Int("tutors", cfg.Tutors),
		logger.Int("students", cfg.Students),
	)

	payloads := generateSessions(cfg)
	stats := &Stats{Generated: len(payloads)}

	start := time.Now()
	submitAll(ctx, cfg, payloads, stats)
	stats.Duration = time.Since(start)

	log.Info(ctx, "delivery finished",
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed),
		logger.String("duration", stats.Duration.Round(time.Millisecond).String()),
	)
	return stats, ctx.Err()
}
