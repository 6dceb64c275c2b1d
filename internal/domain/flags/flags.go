// Package flags turns triggered rule results into persisted coaching
// flags, suppressing duplicates so a tutor carries at most one open
// flag per flag type.
package flags

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tutorlens/tutorlens/internal/adapters/repository"
	"github.com/tutorlens/tutorlens/internal/domain/model"
	"github.com/tutorlens/tutorlens/pkg/logger"
	"github.com/tutorlens/tutorlens/pkg/metrics"
)

// Creator persists flags for triggered rule results.
type Creator struct {
	store  repository.FlagStore
	logger logger.Logger
}

// Option applies a configuration option to the Creator.
type Option func(*Creator)

// WithLogger sets a custom logger for the creator.
func WithLogger(l logger.Logger) Option {
	return func(c *Creator) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCreator creates a flag creator over the given store.
func NewCreator(store repository.FlagStore, opts ...Option) *Creator {
	c := &Creator{
		store:  store,
		logger: logger.Get().Named("flags"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateAll persists one flag per triggered result. A failure on one
// result never blocks the rest; the count of flags actually created is
// returned alongside the last error seen.
func (c *Creator) CreateAll(ctx context.Context, tutorID string, sessionID *string, results []model.RuleResult) (int, error) {
	created := 0
	var lastErr error
	for i := range results {
		if !results[i].Triggered {
			continue
		}
		ok, err := c.create(ctx, tutorID, sessionID, &results[i])
		if err != nil {
			lastErr = err
			continue
		}
		if ok {
			created++
		}
	}
	return created, lastErr
}

// create persists one flag. Returns false without error when an open
// flag of the same type already exists for the tutor.
func (c *Creator) create(ctx context.Context, tutorID string, sessionID *string, r *model.RuleResult) (bool, error) {
	open, err := c.store.HasOpenFlag(ctx, tutorID, r.FlagType)
	if err != nil {
		metrics.RecordFlagError()
		c.logger.Error(ctx, "open flag lookup failed",
			logger.String("tutorID", tutorID),
			logger.String("flagType", string(r.FlagType)),
			logger.Error(err),
		)
		return false, err
	}
	if open {
		metrics.RecordFlagDeduplicated(string(r.FlagType))
		c.logger.Debug(ctx, "flag suppressed, open flag exists",
			logger.String("tutorID", tutorID),
			logger.String("flagType", string(r.FlagType)),
		)
		return false, nil
	}

	now := time.Now().UTC()
	f := &model.Flag{
		ID:                uuid.NewString(),
		TutorID:           tutorID,
		SessionID:         sessionID,
		FlagType:          r.FlagType,
		Severity:          r.Severity,
		Title:             r.Title,
		Description:       r.Description,
		RecommendedAction: r.RecommendedAction,
		SupportingData:    r.SupportingData,
		Status:            model.FlagOpen,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := c.store.Insert(ctx, f); err != nil {
		// A concurrent insert winning the race is the same outcome as the
		// lookup finding an open flag.
		if errors.Is(err, repository.ErrDuplicateOpenFlag) {
			metrics.RecordFlagDeduplicated(string(r.FlagType))
			return false, nil
		}
		metrics.RecordFlagError()
		c.logger.Error(ctx, "flag insert failed",
			logger.String("tutorID", tutorID),
			logger.String("flagType", string(r.FlagType)),
			logger.Error(err),
		)
		return false, err
	}

	metrics.RecordFlagCreated(string(r.FlagType), string(r.Severity))
	c.logger.Info(ctx, "flag created",
		logger.String("flagID", f.ID),
		logger.String("tutorID", tutorID),
		logger.String("flagType", string(r.FlagType)),
		logger.String("severity", string(r.Severity)),
	)
	return true, nil
}
