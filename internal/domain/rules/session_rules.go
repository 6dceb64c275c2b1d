package rules

import (
	"context"
	"fmt"

	"github.com/tutorlens/tutorlens/internal/domain/model"
	"github.com/tutorlens/tutorlens/internal/domain/stats"
)

// noShowRule fires when the tutor never joined the session. A missed
// session is always critical regardless of history.
type noShowRule struct{}

func (r *noShowRule) Name() string { return "no_show" }

func (r *noShowRule) Evaluate(_ context.Context, rctx *Context) (model.RuleResult, error) {
	s := rctx.Session
	if s == nil || !s.NoShow() {
		return model.RuleResult{}, nil
	}
	return model.RuleResult{
		Triggered:   true,
		FlagType:    model.FlagNoShow,
		Severity:    model.SeverityCritical,
		Title:       "Tutor no-show",
		Description: fmt.Sprintf("Tutor did not join the session scheduled for %s.", s.StartTime.Format("2006-01-02 15:04")),
		RecommendedAction: strptr("Contact the tutor immediately and reschedule with the student."),
		SupportingData: map[string]any{
			"session_id":      s.SessionID,
			"scheduled_start": s.StartTime,
		},
	}, nil
}

// latenessRule fires when the tutor joined past the lateness threshold.
// Severity scales with how far past the threshold the join was.
type latenessRule struct {
	thresholds Thresholds
}

func (r *latenessRule) Name() string { return "lateness" }

func (r *latenessRule) Evaluate(_ context.Context, rctx *Context) (model.RuleResult, error) {
	s := rctx.Session
	if s == nil || s.NoShow() {
		return model.RuleResult{}, nil
	}
	late := stats.LatenessMinutes(s)
	if late == nil || *late <= r.thresholds.LatenessMinutes {
		return model.RuleResult{}, nil
	}

	severity := model.SeverityMedium
	if *late > r.thresholds.LatenessMinutes*severityEscalationFactor {
		severity = model.SeverityHigh
	}
	return model.RuleResult{
		Triggered:   true,
		FlagType:    model.FlagLateness,
		Severity:    severity,
		Title:       "Tutor joined late",
		Description: fmt.Sprintf("Tutor joined %.0f minutes after the scheduled start (threshold %.0f).", *late, r.thresholds.LatenessMinutes),
		RecommendedAction: strptr("Review the tutor's availability around this time slot."),
		SupportingData: map[string]any{
			"session_id":   s.SessionID,
			"minutes_late": *late,
			"threshold":    r.thresholds.LatenessMinutes,
		},
	}, nil
}

// earlyEndRule fires when the tutor left more than the threshold before
// the scheduled end.
type earlyEndRule struct {
	thresholds Thresholds
}

func (r *earlyEndRule) Name() string { return "early_end" }

func (r *earlyEndRule) Evaluate(_ context.Context, rctx *Context) (model.RuleResult, error) {
	s := rctx.Session
	if s == nil {
		return model.RuleResult{}, nil
	}
	early := stats.EarlyEndMinutes(s)
	if early == nil || *early <= r.thresholds.EarlyEndMinutes {
		return model.RuleResult{}, nil
	}
	return model.RuleResult{
		Triggered:   true,
		FlagType:    model.FlagEarlyEnd,
		Severity:    model.SeverityMedium,
		Title:       "Session ended early",
		Description: fmt.Sprintf("Tutor left %.0f minutes before the scheduled end (threshold %.0f).", *early, r.thresholds.EarlyEndMinutes),
		SupportingData: map[string]any{
			"session_id":    s.SessionID,
			"minutes_early": *early,
			"threshold":     r.thresholds.EarlyEndMinutes,
		},
	}, nil
}

// poorFirstSessionRule fires on a low-rated first session. A single bad
// first impression disproportionately affects student retention, so this
// rule does not wait for aggregates.
type poorFirstSessionRule struct {
	thresholds Thresholds
}

func (r *poorFirstSessionRule) Name() string { return "poor_first_session" }

func (r *poorFirstSessionRule) Evaluate(_ context.Context, rctx *Context) (model.RuleResult, error) {
	s := rctx.Session
	if s == nil || !s.IsFirstSession || s.StudentRating == nil {
		return model.RuleResult{}, nil
	}
	if *s.StudentRating > r.thresholds.PoorFirstRating {
		return model.RuleResult{}, nil
	}
	return model.RuleResult{
		Triggered:   true,
		FlagType:    model.FlagPoorFirstSession,
		Severity:    model.SeverityHigh,
		Title:       "Poor first session",
		Description: fmt.Sprintf("Student rated their first session %d/5.", *s.StudentRating),
		RecommendedAction: strptr("Reach out to the student and review the session recording with the tutor."),
		SupportingData: map[string]any{
			"session_id":     s.SessionID,
			"student_rating": *s.StudentRating,
		},
	}, nil
}
