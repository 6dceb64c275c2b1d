package webhookgen

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Behavior distribution constants, roughly matching a real tutor
// population with a visible long tail of problem conduct.
const (
	noShowPercent       = 5
	latePercent         = 15
	earlyEndPercent     = 10
	reschedulePercent   = 12
	firstSessionPercent = 15
	unratedPercent      = 25

	sessionMinutes     = 60
	maxLatenessMinutes = 25
	maxEarlyEndMinutes = 30

	percentDivisor = 100
	ratingDivisor  = 10
)

var subjects = []string{"algebra", "calculus", "physics", "chemistry", "essay writing", "spanish"} //nolint:gochecknoglobals // fixed sample pool

// payload is the wire shape of a generated webhook body.
type payload struct {
	SessionID        string           `json:"session_id"`
	TutorID          string           `json:"tutor_id"`
	StudentID        string           `json:"student_id"`
	SessionStartTime string           `json:"session_start_time"`
	SessionEndTime   string           `json:"session_end_time"`
	TutorJoinTime    *string          `json:"tutor_join_time,omitempty"`
	StudentJoinTime  *string          `json:"student_join_time,omitempty"`
	TutorLeaveTime   *string          `json:"tutor_leave_time,omitempty"`
	StudentLeaveTime *string          `json:"student_leave_time,omitempty"`
	SubjectsCovered  []string         `json:"subjects_covered"`
	IsFirstSession   bool             `json:"is_first_session"`
	WasRescheduled   bool             `json:"was_rescheduled"`
	RescheduledBy    *string          `json:"rescheduled_by,omitempty"`
	StudentFeedback  *feedbackPayload `json:"student_feedback,omitempty"`
}

type feedbackPayload struct {
	Rating      int    `json:"rating"`
	Description string `json:"description,omitempty"`
}

// idPool builds n stable ids with a shared prefix.
func idPool(prefix string, n int) []string {
	pool := make([]string, n)
	for i := range pool {
		pool[i] = prefix + "-" + strconv.Itoa(i+1)
	}
	return pool
}

// randomInt returns a uniform value in [0, n) using crypto/rand.
func randomInt(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

func chance(percent int) bool {
	return randomInt(percentDivisor) < percent
}

// generateSessions builds plausible session payloads spread over the
// past weeks so windowed statistics see a realistic history.
func generateSessions(cfg *Config) []payload {
	tutors := idPool("tutor", cfg.Tutors)
	students := idPool("student", cfg.Students)

	out := make([]payload, cfg.NumSessions)
	now := time.Now().UTC()
	for i := range out {
		daysAgo := randomInt(28)
		start := now.Add(-time.Duration(daysAgo)*24*time.Hour - time.Duration(randomInt(12))*time.Hour).Truncate(time.Minute)
		end := start.Add(sessionMinutes * time.Minute)

		p := payload{
			SessionID:        uuid.NewString(),
			TutorID:          tutors[randomInt(len(tutors))],
			StudentID:        students[randomInt(len(students))],
			SessionStartTime: start.Format(time.RFC3339),
			SessionEndTime:   end.Format(time.RFC3339),
			SubjectsCovered:  []string{subjects[randomInt(len(subjects))]},
			IsFirstSession:   chance(firstSessionPercent),
			WasRescheduled:   chance(reschedulePercent),
		}

		if p.WasRescheduled {
			by := []string{"tutor", "student", "system"}[randomInt(3)]
			p.RescheduledBy = &by
		}

		if !chance(noShowPercent) {
			join := start
			if chance(latePercent) {
				join = start.Add(time.Duration(5+randomInt(maxLatenessMinutes)) * time.Minute)
			}
			leave := end
			if chance(earlyEndPercent) {
				leave = end.Add(-time.Duration(10+randomInt(maxEarlyEndMinutes)) * time.Minute)
			}
			joinStr := join.Format(time.RFC3339)
			leaveStr := leave.Format(time.RFC3339)
			p.TutorJoinTime = &joinStr
			p.TutorLeaveTime = &leaveStr

			studentJoin := start.Format(time.RFC3339)
			studentLeave := end.Format(time.RFC3339)
			p.StudentJoinTime = &studentJoin
			p.StudentLeaveTime = &studentLeave

			if !chance(unratedPercent) {
				p.StudentFeedback = &feedbackPayload{Rating: generateRating()}
			}
		}

		out[i] = p
	}
	return out
}

// generateRating skews toward 4-5 the way real session ratings do.
func generateRating() int {
	switch randomInt(ratingDivisor) {
	case 0:
		return 1
	case 1:
		return 2
	case 2, 3:
		return 3
	case 4, 5, 6:
		return 4
	default:
		return 5
	}
}
