// Package model contains domain models passed between layers.
package model

import "time"

// RescheduledBy identifies which party rescheduled a session.
type RescheduledBy string

// Reschedule initiators.
const (
	RescheduledByTutor   RescheduledBy = "tutor"
	RescheduledByStudent RescheduledBy = "student"
	RescheduledBySystem  RescheduledBy = "system"
)

// Session represents one tutoring appointment as received from the
// platform webhook. SessionID is the external idempotency key; scheduled
// times are always present, actual join/leave times are optional (a
// missing tutor join time signals a no-show).
type Session struct {
	ID        string // internal row id
	SessionID string // external id, unique, idempotency key
	TutorID   string
	StudentID string

	StartTime time.Time // scheduled start
	EndTime   time.Time // scheduled end

	TutorJoinTime    *time.Time
	StudentJoinTime  *time.Time
	TutorLeaveTime   *time.Time
	StudentLeaveTime *time.Time

	// Minute durations derived at intake. ActualMinutes is nil when either
	// the tutor join or leave time is missing.
	ScheduledMinutes int
	ActualMinutes    *int

	SubjectsCovered []string
	IsFirstSession  bool
	WasRescheduled  bool
	RescheduledBy   *RescheduledBy
	RescheduleCount int

	TutorRating         *int // 1-5, given by the tutor
	TutorFeedbackText   *string
	StudentRating       *int // 1-5, given by the student
	StudentFeedbackText *string

	VideoURL      *string
	TranscriptURL *string
	AISummary     *string

	CreatedAt time.Time
}

// NoShow reports whether the tutor never joined the session.
func (s *Session) NoShow() bool {
	return s.TutorJoinTime == nil
}

// Window is a [Start, End] interval over which statistics are aggregated.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window (inclusive bounds).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}
