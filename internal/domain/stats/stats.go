package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tutorlens/tutorlens/internal/domain/model"
	"github.com/tutorlens/tutorlens/pkg/metrics"
)

// Default aggregation thresholds.
const (
	defaultLatenessThresholdMin = 5.0
	defaultEarlyEndThresholdMin = 10.0
	defaultTrendRelThreshold    = 0.05
	// minimum rated sessions per half before a trend is reported
	minRatedPerHalf = 2
)

// SessionLister loads the sessions the aggregator scans. Implemented by
// the repository adapters.
type SessionLister interface {
	ListByTutor(ctx context.Context, tutorID string, w model.Window) ([]model.Session, error)
}

// Aggregator produces TutorStats snapshots over a window.
type Aggregator struct {
	sessions SessionLister

	latenessThreshold float64 // minutes
	earlyEndThreshold float64 // minutes
	trendRelThreshold float64
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithLatenessThreshold sets the minutes after scheduled start beyond
// which a join counts as late.
func WithLatenessThreshold(minutes float64) Option {
	return func(a *Aggregator) {
		if minutes > 0 {
			a.latenessThreshold = minutes
		}
	}
}

// WithEarlyEndThreshold sets the minutes before scheduled end beyond
// which a departure counts as an early end.
func WithEarlyEndThreshold(minutes float64) Option {
	return func(a *Aggregator) {
		if minutes > 0 {
			a.earlyEndThreshold = minutes
		}
	}
}

// WithTrendThreshold sets the relative rating change required to leave
// the "stable" classification.
func WithTrendThreshold(rel float64) Option {
	return func(a *Aggregator) {
		if rel > 0 {
			a.trendRelThreshold = rel
		}
	}
}

// NewAggregator creates an aggregator reading sessions from lister.
func NewAggregator(lister SessionLister, opts ...Option) *Aggregator {
	a := &Aggregator{
		sessions:          lister,
		latenessThreshold: defaultLatenessThresholdMin,
		earlyEndThreshold: defaultEarlyEndThresholdMin,
		trendRelThreshold: defaultTrendRelThreshold,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Compute loads the tutor's sessions whose scheduled start falls in w and
// aggregates them into a TutorStats snapshot.
func (a *Aggregator) Compute(ctx context.Context, tutorID string, w model.Window) (*model.TutorStats, error) {
	start := time.Now()
	defer func() {
		metrics.RecordAggregationLatency(float64(time.Since(start).Milliseconds()))
	}()

	sessions, err := a.sessions.ListByTutor(ctx, tutorID, w)
	if err != nil {
		return nil, fmt.Errorf("load sessions for tutor %s: %w", tutorID, err)
	}
	st := a.Aggregate(tutorID, w, sessions)
	return st, nil
}

// Aggregate computes a TutorStats snapshot from an already-loaded session
// slice. It is pure and safe for concurrent use; the backfill sweep uses
// it directly with its per-tutor accumulators.
func (a *Aggregator) Aggregate(tutorID string, w model.Window, sessions []model.Session) *model.TutorStats {
	st := &model.TutorStats{
		TutorID:       tutorID,
		Window:        w,
		TotalSessions: len(sessions),
	}

	var latenessMins, earlyEndMins []float64
	var ratings, firstRatings []float64

	for i := range sessions {
		s := &sessions[i]

		if s.IsFirstSession {
			st.FirstSessions++
		}

		if s.NoShow() {
			st.NoShowCount++
		} else if late := LatenessMinutes(s); late != nil && *late > a.latenessThreshold {
			st.LateCount++
			latenessMins = append(latenessMins, *late)
		}

		if early := EarlyEndMinutes(s); early != nil && *early > a.earlyEndThreshold {
			st.EarlyEndCount++
			earlyEndMins = append(earlyEndMins, *early)
		}

		if s.WasRescheduled {
			st.RescheduleCount++
			if s.RescheduledBy != nil && *s.RescheduledBy == model.RescheduledByTutor {
				st.TutorRescheduleCount++
			}
		}

		if s.StudentRating != nil {
			r := float64(*s.StudentRating)
			ratings = append(ratings, r)
			if s.IsFirstSession {
				firstRatings = append(firstRatings, r)
			}
		}
	}

	st.NoShowRate = Rate(st.NoShowCount, st.TotalSessions)
	st.LateRate = Rate(st.LateCount, st.TotalSessions)
	st.EarlyEndRate = Rate(st.EarlyEndCount, st.TotalSessions)
	st.RescheduleRate = Rate(st.RescheduleCount, st.TotalSessions)
	st.AvgLatenessMinutes = Average(latenessMins)
	st.AvgEarlyEndMinutes = Average(earlyEndMins)
	st.AvgStudentRating = Average(ratings)
	st.AvgFirstSessionRating = Average(firstRatings)
	st.RatingTrend = a.ratingTrend(sessions)

	return st
}

// ratingTrend splits the window's sessions into an earlier and a recent
// half by scheduled start and compares average student ratings. Reports
// nil unless both halves carry enough rated sessions.
func (a *Aggregator) ratingTrend(sessions []model.Session) *model.Trend {
	ordered := make([]model.Session, len(sessions))
	copy(ordered, sessions)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].StartTime.Before(ordered[j].StartTime)
	})

	mid := len(ordered) / 2
	earlier := ratedValues(ordered[:mid])
	recent := ratedValues(ordered[mid:])
	if len(earlier) < minRatedPerHalf || len(recent) < minRatedPerHalf {
		return nil
	}
	return ClassifyTrend(Average(recent), Average(earlier), a.trendRelThreshold)
}

func ratedValues(sessions []model.Session) []float64 {
	var vals []float64
	for i := range sessions {
		if sessions[i].StudentRating != nil {
			vals = append(vals, float64(*sessions[i].StudentRating))
		}
	}
	return vals
}
