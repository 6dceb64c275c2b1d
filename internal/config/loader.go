package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if TUTORLENS_CONFIG is set
//  3. env (prefix TUTORLENS_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("TUTORLENS_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: TUTORLENS_ADDR, TUTORLENS_WORKER_COUNT, ...
	// Map env keys like TUTORLENS_WORKER_COUNT -> worker_count (flat keys).
	envProvider := env.Provider("TUTORLENS_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "tutorlens_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.RateLimit < 1:
		return fmt.Errorf("%w: rate_limit must be positive", ErrInvalidConfig)
	case c.RateLimitWindowSeconds < 1:
		return fmt.Errorf("%w: rate_limit_window_seconds must be positive", ErrInvalidConfig)
	case c.QueueCapacity < 1:
		return fmt.Errorf("%w: queue_capacity must be positive", ErrInvalidConfig)
	case c.QueueMaxAttempts < 1:
		return fmt.Errorf("%w: queue_max_attempts must be positive", ErrInvalidConfig)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.WindowDays < 1:
		return fmt.Errorf("%w: window_days must be positive", ErrInvalidConfig)
	}
	if c.WeightAttendance+c.WeightRatings+c.WeightCompletion+c.WeightReliability <= 0 {
		return fmt.Errorf("%w: scoring weights must sum to a positive value", ErrInvalidConfig)
	}
	return nil
}
