// Package processor orchestrates session processing: it turns a stored
// session into an updated stats snapshot, a score snapshot and any
// coaching flags the rules raise.
package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tutorlens/tutorlens/internal/adapters/repository"
	"github.com/tutorlens/tutorlens/internal/domain/flags"
	"github.com/tutorlens/tutorlens/internal/domain/model"
	"github.com/tutorlens/tutorlens/internal/domain/rules"
	"github.com/tutorlens/tutorlens/internal/domain/scoring"
	"github.com/tutorlens/tutorlens/internal/domain/stats"
	"github.com/tutorlens/tutorlens/pkg/logger"
	"github.com/tutorlens/tutorlens/pkg/metrics"
)

// Default processor configuration constants.
const (
	defaultWindowDays          = 30
	defaultBackfillConcurrency = 4
)

// Processor runs the full analysis chain for one session.
type Processor struct {
	store      repository.Store
	aggregator *stats.Aggregator
	engine     *rules.Engine
	scorer     *scoring.Scorer
	creator    *flags.Creator

	windowDays          int
	backfillConcurrency int

	logger logger.Logger
}

// Option applies a configuration option to the Processor.
type Option func(*Processor)

// WithWindowDays sets the trailing window length used for stats and
// scoring.
func WithWindowDays(days int) Option {
	return func(p *Processor) {
		if days > 0 {
			p.windowDays = days
		}
	}
}

// WithBackfillConcurrency bounds how many tutors a backfill sweep
// processes in parallel.
func WithBackfillConcurrency(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.backfillConcurrency = n
		}
	}
}

// WithLogger sets a custom logger for the processor.
func WithLogger(l logger.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// New wires a processor over its collaborators.
func New(store repository.Store, agg *stats.Aggregator, engine *rules.Engine, scorer *scoring.Scorer, creator *flags.Creator, opts ...Option) *Processor {
	p := &Processor{
		store:               store,
		aggregator:          agg,
		engine:              engine,
		scorer:              scorer,
		creator:             creator,
		windowDays:          defaultWindowDays,
		backfillConcurrency: defaultBackfillConcurrency,
		logger:              logger.Get().Named("processor"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessSession loads the session, recomputes the tutor's trailing
// window stats and score, persists a score snapshot and raises flags for
// any triggered rules. The whole chain is idempotent: re-running it for
// the same session overwrites the same snapshot and dedups its flags.
func (p *Processor) ProcessSession(ctx context.Context, sessionID string) error {
	s, err := p.store.Sessions().GetBySessionID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session %s: %w", sessionID, err)
	}

	w := p.windowEndingAt(s.StartTime)
	st, err := p.aggregator.Compute(ctx, s.TutorID, w)
	if err != nil {
		return fmt.Errorf("aggregate stats for tutor %s: %w", s.TutorID, err)
	}

	results := p.engine.Evaluate(ctx, &rules.Context{Session: s, Stats: st})

	score := p.scorer.Score(st)
	now := time.Now().UTC()
	snapshot := &model.TutorScore{
		ID:              uuid.NewString(),
		TutorID:         s.TutorID,
		Window:          w,
		Stats:           *st,
		Breakdown:       score.Breakdown,
		OverallScore:    score.Overall,
		ConfidenceScore: score.Confidence,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := p.store.Scores().Upsert(ctx, snapshot); err != nil {
		return fmt.Errorf("upsert score for tutor %s: %w", s.TutorID, err)
	}

	created, err := p.createFlags(ctx, s, results)
	if err != nil {
		return fmt.Errorf("create flags for tutor %s: %w", s.TutorID, err)
	}

	p.logger.Info(ctx, "session processed",
		logger.String("sessionID", sessionID),
		logger.String("tutorID", s.TutorID),
		logger.Int("triggeredRules", len(results)),
		logger.Int("flagsCreated", created),
	)
	return nil
}

// createFlags persists triggered results, attaching the session id only
// to session-scoped flags. Aggregate flags describe a pattern, not a
// single session.
func (p *Processor) createFlags(ctx context.Context, s *model.Session, results []model.RuleResult) (int, error) {
	var sessionScoped, aggregate []model.RuleResult
	for _, r := range results {
		if aggregateFlagTypes[r.FlagType] {
			aggregate = append(aggregate, r)
		} else {
			sessionScoped = append(sessionScoped, r)
		}
	}

	created, err := p.creator.CreateAll(ctx, s.TutorID, &s.SessionID, sessionScoped)
	aggCreated, aggErr := p.creator.CreateAll(ctx, s.TutorID, nil, aggregate)
	if err == nil {
		err = aggErr
	}
	return created + aggCreated, err
}

var aggregateFlagTypes = map[model.FlagType]bool{ //nolint:gochecknoglobals // fixed classification table
	model.FlagHighRescheduleRate: true,
	model.FlagChronicLateness:    true,
	model.FlagDecliningRatings:   true,
}

// windowEndingAt returns the trailing analysis window ending at the
// session's scheduled start.
func (p *Processor) windowEndingAt(end time.Time) model.Window {
	return model.Window{Start: end.AddDate(0, 0, -p.windowDays), End: end}
}

// BackfillResult summarizes a sweep.
type BackfillResult struct {
	Tutors    int `json:"tutors"`
	Sessions  int `json:"sessions"`
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// Backfill reprocesses every stored session whose scheduled start falls
// inside w, grouped by tutor so each tutor's sessions replay in order.
// Tutors are swept concurrently up to the configured bound; one tutor's
// failure never stops the rest.
func (p *Processor) Backfill(ctx context.Context, w model.Window) (BackfillResult, error) {
	sessions, err := p.store.Sessions().ListByRange(ctx, w)
	if err != nil {
		return BackfillResult{}, fmt.Errorf("list sessions in range: %w", err)
	}

	byTutor := make(map[string][]model.Session)
	for i := range sessions {
		byTutor[sessions[i].TutorID] = append(byTutor[sessions[i].TutorID], sessions[i])
	}

	res := BackfillResult{Tutors: len(byTutor), Sessions: len(sessions)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.backfillConcurrency)
	for tutorID, tutorSessions := range byTutor {
		tutorID, tutorSessions := tutorID, tutorSessions
		g.Go(func() error {
			processed, failed := p.backfillTutor(gctx, tutorID, tutorSessions)
			mu.Lock()
			res.Processed += processed
			res.Failed += failed
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	p.logger.Info(ctx, "backfill sweep finished",
		logger.Int("tutors", res.Tutors),
		logger.Int("sessions", res.Sessions),
		logger.Int("processed", res.Processed),
		logger.Int("failed", res.Failed),
	)
	return res, nil
}

// backfillTutor replays one tutor's sessions oldest first.
func (p *Processor) backfillTutor(ctx context.Context, tutorID string, sessions []model.Session) (processed, failed int) {
	for i := range sessions {
		if ctx.Err() != nil {
			failed += len(sessions) - i
			return processed, failed
		}
		if err := p.ProcessSession(ctx, sessions[i].SessionID); err != nil {
			metrics.RecordBackfillFailed()
			p.logger.Warn(ctx, "backfill session failed",
				logger.String("tutorID", tutorID),
				logger.String("sessionID", sessions[i].SessionID),
				logger.Error(err),
			)
			failed++
			continue
		}
		metrics.RecordBackfillProcessed()
		processed++
	}
	return processed, failed
}
