// Package stats computes windowed tutor statistics from session records.
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/tutorlens/tutorlens/internal/domain/model"
)

// MinutesBetween returns the signed difference to - from in minutes.
func MinutesBetween(from, to time.Time) float64 {
	return to.Sub(from).Minutes()
}

// LatenessMinutes returns how many minutes after the scheduled start the
// tutor joined. Returns nil for no-shows. Early joins yield negative
// values.
func LatenessMinutes(s *model.Session) *float64 {
	if s.TutorJoinTime == nil {
		return nil
	}
	m := MinutesBetween(s.StartTime, *s.TutorJoinTime)
	return &m
}

// EarlyEndMinutes returns how many minutes before the scheduled end the
// tutor left. Returns nil when the tutor leave time is unknown. Staying
// past the scheduled end yields negative values.
func EarlyEndMinutes(s *model.Session) *float64 {
	if s.TutorLeaveTime == nil {
		return nil
	}
	m := MinutesBetween(*s.TutorLeaveTime, s.EndTime)
	return &m
}

// Rate returns count/total, or nil when total is zero.
func Rate(count, total int) *float64 {
	if total == 0 {
		return nil
	}
	r := float64(count) / float64(total)
	return &r
}

// Average returns the arithmetic mean of vals, or nil when vals is empty.
func Average(vals []float64) *float64 {
	if len(vals) == 0 {
		return nil
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	avg := sum / float64(len(vals))
	return &avg
}

// Percentile returns the p-th percentile (0-100) of vals using nearest-rank,
// or nil when vals is empty.
func Percentile(vals []float64, p float64) *float64 {
	if len(vals) == 0 {
		return nil
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	v := sorted[rank-1]
	return &v
}

// ClassifyTrend compares a recent average against an earlier average and
// classifies the movement. The relative change must exceed relThreshold
// (e.g. 0.05 for 5%) to leave "stable". Returns nil when either average
// is missing or the earlier average is zero.
func ClassifyTrend(recent, earlier *float64, relThreshold float64) *model.Trend {
	if recent == nil || earlier == nil || *earlier == 0 {
		return nil
	}
	change := (*recent - *earlier) / *earlier
	t := model.TrendStable
	switch {
	case change > relThreshold:
		t = model.TrendImproving
	case change < -relThreshold:
		t = model.TrendDeclining
	}
	return &t
}
