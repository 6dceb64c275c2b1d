package model

import "time"

// Breakdown holds the four weighted component scores, each on [0,100].
type Breakdown struct {
	Attendance  float64
	Ratings     float64
	Completion  float64
	Reliability float64
}

// TutorScore is a persisted periodic snapshot of a tutor's quality over
// a window: the stats it was derived from, the component breakdown, an
// overall score on [0,100] and a sample-size confidence on [0,1]. Unique
// per (TutorID, Window.Start, Window.End).
type TutorScore struct {
	ID      string
	TutorID string
	Window  Window

	Stats     TutorStats
	Breakdown Breakdown

	OverallScore    *float64 // nil when no sessions fell in the window
	ConfidenceScore *float64

	CreatedAt time.Time
	UpdatedAt time.Time
}
