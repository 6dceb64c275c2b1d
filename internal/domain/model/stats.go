package model

// Trend classifies the direction of a tutor's recent ratings.
type Trend string

// Rating trend classifications.
const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

// TutorStats is a derived, ephemeral aggregate over a window for one
// tutor. Rate fields are count/total and nil when the window holds no
// sessions; averages are nil when their subset is empty. It is computed
// on demand and never persisted directly (a snapshot of it becomes part
// of a TutorScore).
type TutorStats struct {
	TutorID string
	Window  Window

	TotalSessions int
	FirstSessions int

	NoShowCount int
	NoShowRate  *float64

	LateCount          int
	LateRate           *float64
	AvgLatenessMinutes *float64

	EarlyEndCount      int
	EarlyEndRate       *float64
	AvgEarlyEndMinutes *float64

	RescheduleCount      int
	RescheduleRate       *float64
	TutorRescheduleCount int

	AvgStudentRating      *float64
	AvgFirstSessionRating *float64
	RatingTrend           *Trend
}
