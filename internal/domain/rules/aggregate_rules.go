package rules

import (
	"context"
	"fmt"

	"github.com/tutorlens/tutorlens/internal/domain/model"
)

// highRescheduleRule fires when a tutor's reschedule rate over the
// window exceeds the configured limit. Requires a minimum sample to
// avoid small-window false positives.
type highRescheduleRule struct {
	thresholds Thresholds
}

func (r *highRescheduleRule) Name() string { return "high_reschedule_rate" }

func (r *highRescheduleRule) Evaluate(_ context.Context, rctx *Context) (model.RuleResult, error) {
	st := rctx.Stats
	if st == nil || st.TotalSessions < r.thresholds.MinSessions || st.RescheduleRate == nil {
		return model.RuleResult{}, nil
	}
	if *st.RescheduleRate <= r.thresholds.RescheduleRate {
		return model.RuleResult{}, nil
	}

	severity := model.SeverityMedium
	if *st.RescheduleRate > r.thresholds.RescheduleRate*severityEscalationFactor {
		severity = model.SeverityHigh
	}
	return model.RuleResult{
		Triggered:   true,
		FlagType:    model.FlagHighRescheduleRate,
		Severity:    severity,
		Title:       "High reschedule rate",
		Description: fmt.Sprintf("%.0f%% of the tutor's last %d sessions were rescheduled (limit %.0f%%).", *st.RescheduleRate*100, st.TotalSessions, r.thresholds.RescheduleRate*100),
		RecommendedAction: strptr("Discuss scheduling consistency with the tutor."),
		SupportingData: map[string]any{
			"reschedule_rate":        *st.RescheduleRate,
			"tutor_reschedule_count": st.TutorRescheduleCount,
			"total_sessions":         st.TotalSessions,
		},
	}, nil
}

// chronicLatenessRule fires when the late rate over the window exceeds
// the configured limit.
type chronicLatenessRule struct {
	thresholds Thresholds
}

func (r *chronicLatenessRule) Name() string { return "chronic_lateness" }

func (r *chronicLatenessRule) Evaluate(_ context.Context, rctx *Context) (model.RuleResult, error) {
	st := rctx.Stats
	if st == nil || st.TotalSessions < r.thresholds.MinSessions || st.LateRate == nil {
		return model.RuleResult{}, nil
	}
	if *st.LateRate <= r.thresholds.LateRate {
		return model.RuleResult{}, nil
	}

	desc := fmt.Sprintf("Tutor was late to %.0f%% of the last %d sessions (limit %.0f%%).", *st.LateRate*100, st.TotalSessions, r.thresholds.LateRate*100)
	data := map[string]any{
		"late_rate":      *st.LateRate,
		"late_count":     st.LateCount,
		"total_sessions": st.TotalSessions,
	}
	if st.AvgLatenessMinutes != nil {
		data["avg_lateness_minutes"] = *st.AvgLatenessMinutes
	}
	return model.RuleResult{
		Triggered:         true,
		FlagType:          model.FlagChronicLateness,
		Severity:          model.SeverityHigh,
		Title:             "Chronic lateness",
		Description:       desc,
		RecommendedAction: strptr("Set a punctuality improvement plan with the tutor."),
		SupportingData:    data,
	}, nil
}

// decliningRatingsRule fires when the current window shows a declining
// rating trend and recent persisted snapshots confirm the decline is
// sustained rather than a one-window anomaly. This is the only detector
// that reaches outside its context, hence the ctx-aware store lookup.
type decliningRatingsRule struct {
	thresholds Thresholds
	history    ScoreHistory
}

func (r *decliningRatingsRule) Name() string { return "declining_ratings" }

func (r *decliningRatingsRule) Evaluate(ctx context.Context, rctx *Context) (model.RuleResult, error) {
	st := rctx.Stats
	if st == nil || st.TotalSessions < r.thresholds.MinSessions {
		return model.RuleResult{}, nil
	}
	if st.RatingTrend == nil || *st.RatingTrend != model.TrendDeclining {
		return model.RuleResult{}, nil
	}
	if r.history == nil {
		return model.RuleResult{}, nil
	}

	snapshots, err := r.history.RecentScores(ctx, st.TutorID, r.thresholds.SustainedDeclines)
	if err != nil {
		return model.RuleResult{}, fmt.Errorf("load score history for tutor %s: %w", st.TutorID, err)
	}
	if !sustainedDecline(st, snapshots) {
		return model.RuleResult{}, nil
	}

	data := map[string]any{
		"snapshots_checked": len(snapshots),
		"total_sessions":    st.TotalSessions,
	}
	if st.AvgStudentRating != nil {
		data["avg_student_rating"] = *st.AvgStudentRating
	}
	return model.RuleResult{
		Triggered:         true,
		FlagType:          model.FlagDecliningRatings,
		Severity:          model.SeverityHigh,
		Title:             "Declining rating trend",
		Description:       fmt.Sprintf("Student ratings have declined across the current window and %d prior snapshots.", len(snapshots)),
		RecommendedAction: strptr("Schedule a coaching session to review recent student feedback."),
		SupportingData:    data,
	}, nil
}

// sustainedDecline confirms the current decline against history: the
// current average must sit below the newest snapshot's, and snapshot
// averages must be non-increasing going back in time. A single prior
// snapshot cannot confirm a sustained decline, so at least two are
// required.
func sustainedDecline(current *model.TutorStats, snapshots []model.TutorScore) bool {
	if len(snapshots) < 2 || current.AvgStudentRating == nil {
		return false
	}
	prev := *current.AvgStudentRating
	for i := range snapshots { // newest first
		avg := snapshots[i].Stats.AvgStudentRating
		if avg == nil {
			return false
		}
		if prev > *avg {
			return false
		}
		prev = *avg
	}
	return true
}
