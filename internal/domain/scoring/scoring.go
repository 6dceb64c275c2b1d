// Package scoring converts tutor statistics into weighted quality scores.
package scoring

import (
	"math"

	"github.com/tutorlens/tutorlens/internal/domain/model"
	"github.com/tutorlens/tutorlens/pkg/metrics"
)

// Scoring model constants.
const (
	maxScore            = 100.0
	neutralRatingsScore = 50.0 // applied when a tutor has no ratings yet

	noShowPenalty     = 20.0 // per unit of no-show rate
	latePenalty       = 5.0  // per unit of late rate
	earlyEndPenalty   = 10.0 // per unit of early-end rate
	reschedulePenalty = 5.0  // per unit of reschedule rate

	// full statistical confidence is reached at this many sessions
	fullConfidenceSessions = 30.0
)

// Weights distributes the overall score across the four components.
type Weights struct {
	Attendance  float64
	Ratings     float64
	Completion  float64
	Reliability float64
}

// DefaultWeights weighs all four components equally.
func DefaultWeights() Weights {
	return Weights{Attendance: 0.25, Ratings: 0.25, Completion: 0.25, Reliability: 0.25}
}

func (w Weights) sum() float64 {
	return w.Attendance + w.Ratings + w.Completion + w.Reliability
}

// Result carries the component breakdown plus the derived overall and
// confidence values. Overall is nil when the window held no sessions.
type Result struct {
	Breakdown  model.Breakdown
	Overall    *float64 // [0,100]
	Confidence *float64 // [0,1]
}

// Scorer computes quality scores from TutorStats. It is pure and safe
// for concurrent use.
type Scorer struct {
	weights Weights
}

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithWeights overrides the component weights. Weights are normalized at
// scoring time, so they need not sum to one.
func WithWeights(w Weights) Option {
	return func(s *Scorer) {
		if w.sum() > 0 {
			s.weights = w
		}
	}
}

// NewScorer creates a Scorer with equal default weights.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{weights: DefaultWeights()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score derives the component breakdown, overall score and confidence
// from a stats snapshot.
func (s *Scorer) Score(st *model.TutorStats) Result {
	defer metrics.RecordScoreComputed()

	breakdown := model.Breakdown{
		Attendance:  AttendanceScore(st.NoShowRate, st.LateRate),
		Ratings:     RatingsScore(st.AvgStudentRating),
		Completion:  CompletionScore(st.EarlyEndRate),
		Reliability: ReliabilityScore(st.RescheduleRate),
	}

	confidence := Confidence(st.TotalSessions)
	res := Result{Breakdown: breakdown, Confidence: &confidence}

	if st.TotalSessions == 0 {
		// No evidence; the breakdown defaults are not a real score.
		return res
	}

	total := s.weights.sum()
	overall := math.Round((s.weights.Attendance*breakdown.Attendance +
		s.weights.Ratings*breakdown.Ratings +
		s.weights.Completion*breakdown.Completion +
		s.weights.Reliability*breakdown.Reliability) / total)
	res.Overall = &overall
	return res
}

// AttendanceScore penalizes no-shows heavily and lateness lightly.
func AttendanceScore(noShowRate, lateRate *float64) float64 {
	return clamp(maxScore-deref(noShowRate)*noShowPenalty-deref(lateRate)*latePenalty, 0, maxScore)
}

// RatingsScore maps the 1-5 average student rating onto [0,100], with a
// neutral 50 when no ratings exist (absence of evidence is not a
// penalty).
func RatingsScore(avgRating *float64) float64 {
	if avgRating == nil {
		return neutralRatingsScore
	}
	return clamp((*avgRating-1)/4*maxScore, 0, maxScore)
}

// CompletionScore penalizes sessions cut short.
func CompletionScore(earlyEndRate *float64) float64 {
	return clamp(maxScore-deref(earlyEndRate)*earlyEndPenalty, 0, maxScore)
}

// ReliabilityScore penalizes rescheduling churn.
func ReliabilityScore(rescheduleRate *float64) float64 {
	return clamp(maxScore-deref(rescheduleRate)*reschedulePenalty, 0, maxScore)
}

// Confidence is a linear sample-size ramp reaching 1.0 at 30 sessions.
// It measures statistical reliability, not score quality.
func Confidence(totalSessions int) float64 {
	return clamp(float64(totalSessions)/fullConfidenceSessions, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
