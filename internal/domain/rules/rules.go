// Package rules evaluates sessions and tutor statistics against
// configured conduct thresholds and emits rule results.
package rules

import (
	"context"

	"github.com/tutorlens/tutorlens/internal/domain/model"
	"github.com/tutorlens/tutorlens/pkg/logger"
	"github.com/tutorlens/tutorlens/pkg/metrics"
)

// Default detector thresholds.
const (
	defaultLatenessThresholdMin   = 5.0
	defaultEarlyEndThresholdMin   = 10.0
	defaultPoorFirstMaxRating     = 2
	defaultRescheduleRateLimit    = 0.15
	defaultLateRateLimit          = 0.30
	defaultMinSessions            = 5
	defaultSustainedDeclineChecks = 3

	// lateness/reschedule severity escalates past this multiple of the
	// base threshold
	severityEscalationFactor = 2.0
)

// Context carries the inputs a detector may evaluate. Session is set for
// session-scoped evaluation, Stats for aggregate-scoped evaluation;
// either may be nil and detectors must not trigger on missing input.
type Context struct {
	Session *model.Session
	Stats   *model.TutorStats
}

// Detector is a single stateless conduct rule.
type Detector interface {
	// Name identifies the detector in logs and metrics.
	Name() string

	// Evaluate inspects the context and reports whether the rule fired.
	Evaluate(ctx context.Context, rctx *Context) (model.RuleResult, error)
}

// ScoreHistory exposes persisted score snapshots to detectors that look
// beyond the current window.
type ScoreHistory interface {
	RecentScores(ctx context.Context, tutorID string, limit int) ([]model.TutorScore, error)
}

// Thresholds configures all detectors.
type Thresholds struct {
	LatenessMinutes   float64
	EarlyEndMinutes   float64
	PoorFirstRating   int     // student rating at or below this triggers
	RescheduleRate    float64 // exclusive lower bound
	LateRate          float64 // exclusive lower bound
	MinSessions       int     // aggregate rules need this many sessions
	SustainedDeclines int     // prior snapshots consulted for trend confirmation
}

// DefaultThresholds returns the standard detector configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LatenessMinutes:   defaultLatenessThresholdMin,
		EarlyEndMinutes:   defaultEarlyEndThresholdMin,
		PoorFirstRating:   defaultPoorFirstMaxRating,
		RescheduleRate:    defaultRescheduleRateLimit,
		LateRate:          defaultLateRateLimit,
		MinSessions:       defaultMinSessions,
		SustainedDeclines: defaultSustainedDeclineChecks,
	}
}

// Engine runs the full detector suite over a context.
type Engine struct {
	detectors []Detector
	logger    logger.Logger
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithDetectors replaces the detector suite, mainly for tests.
func WithDetectors(ds ...Detector) Option {
	return func(e *Engine) {
		if len(ds) > 0 {
			e.detectors = ds
		}
	}
}

// NewEngine builds the standard detector suite. history may be nil, in
// which case the declining-ratings detector falls back to the current
// window only and never confirms a sustained decline.
func NewEngine(t Thresholds, history ScoreHistory, opts ...Option) *Engine {
	e := &Engine{
		detectors: []Detector{
			&noShowRule{},
			&latenessRule{thresholds: t},
			&earlyEndRule{thresholds: t},
			&poorFirstSessionRule{thresholds: t},
			&highRescheduleRule{thresholds: t},
			&chronicLatenessRule{thresholds: t},
			&decliningRatingsRule{thresholds: t, history: history},
		},
		logger: logger.Get().Named("rules"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs every detector and returns only triggered results. A
// detector error is logged and skipped so one bad rule cannot suppress
// the rest.
func (e *Engine) Evaluate(ctx context.Context, rctx *Context) []model.RuleResult {
	var triggered []model.RuleResult
	for _, d := range e.detectors {
		res, err := d.Evaluate(ctx, rctx)
		if err != nil {
			metrics.RecordRuleError(d.Name())
			e.logger.Error(ctx, "detector failed",
				logger.String("rule", d.Name()),
				logger.Error(err),
			)
			continue
		}
		if !res.Triggered {
			continue
		}
		metrics.RecordRuleTriggered(string(res.FlagType), string(res.Severity))
		triggered = append(triggered, res)
	}
	return triggered
}

func strptr(s string) *string { return &s }
