package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tutorlens/tutorlens/internal/domain/model"
)

// sessionRecord is the gorm row shape for the sessions table.
type sessionRecord struct {
	ID        string `gorm:"column:id;primaryKey"`
	SessionID string `gorm:"column:session_id;not null;uniqueIndex"`
	TutorID   string `gorm:"column:tutor_id;not null;index:idx_sessions_tutor_start,priority:1"`
	StudentID string `gorm:"column:student_id;not null"`

	StartTime time.Time `gorm:"column:start_time;not null;index:idx_sessions_tutor_start,priority:2;index"`
	EndTime   time.Time `gorm:"column:end_time;not null"`

	TutorJoinTime    *time.Time `gorm:"column:tutor_join_time"`
	StudentJoinTime  *time.Time `gorm:"column:student_join_time"`
	TutorLeaveTime   *time.Time `gorm:"column:tutor_leave_time"`
	StudentLeaveTime *time.Time `gorm:"column:student_leave_time"`

	ScheduledMinutes int  `gorm:"column:scheduled_minutes;not null"`
	ActualMinutes    *int `gorm:"column:actual_minutes"`

	SubjectsCovered []byte  `gorm:"column:subjects_covered;type:jsonb"`
	IsFirstSession  bool    `gorm:"column:is_first_session;not null;default:false"`
	WasRescheduled  bool    `gorm:"column:was_rescheduled;not null;default:false"`
	RescheduledBy   *string `gorm:"column:rescheduled_by"`
	RescheduleCount int     `gorm:"column:reschedule_count;not null;default:0"`

	TutorRating         *int    `gorm:"column:tutor_rating"`
	TutorFeedbackText   *string `gorm:"column:tutor_feedback_text"`
	StudentRating       *int    `gorm:"column:student_rating"`
	StudentFeedbackText *string `gorm:"column:student_feedback_text"`

	VideoURL      *string `gorm:"column:video_url"`
	TranscriptURL *string `gorm:"column:transcript_url"`
	AISummary     *string `gorm:"column:ai_summary"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (*sessionRecord) TableName() string { return "sessions" }

// flagRecord is the gorm row shape for the flags table. The partial
// unique index enforcing one open flag per (tutor, flag type) is created
// in Migrate since gorm tags cannot express a WHERE clause.
type flagRecord struct {
	ID        string  `gorm:"column:id;primaryKey"`
	TutorID   string  `gorm:"column:tutor_id;not null;index"`
	SessionID *string `gorm:"column:session_id"`

	FlagType          string  `gorm:"column:flag_type;not null"`
	Severity          string  `gorm:"column:severity;not null"`
	Title             string  `gorm:"column:title;not null"`
	Description       string  `gorm:"column:description;not null"`
	RecommendedAction *string `gorm:"column:recommended_action"`
	SupportingData    []byte  `gorm:"column:supporting_data;type:jsonb"`

	Status          string     `gorm:"column:status;not null;index:idx_flags_tutor_type_status,priority:3"`
	ResolvedAt      *time.Time `gorm:"column:resolved_at"`
	ResolvedBy      *string    `gorm:"column:resolved_by"`
	ResolutionNotes *string    `gorm:"column:resolution_notes"`
	CoachAgreed     *bool      `gorm:"column:coach_agreed"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (*flagRecord) TableName() string { return "flags" }

// scoreRecord is the gorm row shape for the tutor_scores table.
type scoreRecord struct {
	ID          string    `gorm:"column:id;primaryKey"`
	TutorID     string    `gorm:"column:tutor_id;not null;uniqueIndex:idx_scores_tutor_window,priority:1"`
	WindowStart time.Time `gorm:"column:window_start;not null;uniqueIndex:idx_scores_tutor_window,priority:2"`
	WindowEnd   time.Time `gorm:"column:window_end;not null;uniqueIndex:idx_scores_tutor_window,priority:3"`

	StatsJSON []byte `gorm:"column:stats;type:jsonb;not null"`

	AttendanceScore  float64 `gorm:"column:attendance_score;not null"`
	RatingsScore     float64 `gorm:"column:ratings_score;not null"`
	CompletionScore  float64 `gorm:"column:completion_score;not null"`
	ReliabilityScore float64 `gorm:"column:reliability_score;not null"`

	OverallScore    *float64 `gorm:"column:overall_score"`
	ConfidenceScore *float64 `gorm:"column:confidence_score"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (*scoreRecord) TableName() string { return "tutor_scores" }

func toSessionRecord(s *model.Session) (*sessionRecord, error) {
	subjects, err := json.Marshal(s.SubjectsCovered)
	if err != nil {
		return nil, fmt.Errorf("marshal subjects: %w", err)
	}
	rec := &sessionRecord{
		ID:                  s.ID,
		SessionID:           s.SessionID,
		TutorID:             s.TutorID,
		StudentID:           s.StudentID,
		StartTime:           s.StartTime,
		EndTime:             s.EndTime,
		TutorJoinTime:       s.TutorJoinTime,
		StudentJoinTime:     s.StudentJoinTime,
		TutorLeaveTime:      s.TutorLeaveTime,
		StudentLeaveTime:    s.StudentLeaveTime,
		ScheduledMinutes:    s.ScheduledMinutes,
		ActualMinutes:       s.ActualMinutes,
		SubjectsCovered:     subjects,
		IsFirstSession:      s.IsFirstSession,
		WasRescheduled:      s.WasRescheduled,
		RescheduleCount:     s.RescheduleCount,
		TutorRating:         s.TutorRating,
		TutorFeedbackText:   s.TutorFeedbackText,
		StudentRating:       s.StudentRating,
		StudentFeedbackText: s.StudentFeedbackText,
		VideoURL:            s.VideoURL,
		TranscriptURL:       s.TranscriptURL,
		AISummary:           s.AISummary,
		CreatedAt:           s.CreatedAt,
	}
	if s.RescheduledBy != nil {
		by := string(*s.RescheduledBy)
		rec.RescheduledBy = &by
	}
	return rec, nil
}

func (r *sessionRecord) toModel() (*model.Session, error) {
	var subjects []string
	if len(r.SubjectsCovered) > 0 {
		if err := json.Unmarshal(r.SubjectsCovered, &subjects); err != nil {
			return nil, fmt.Errorf("unmarshal subjects for %s: %w", r.SessionID, err)
		}
	}
	s := &model.Session{
		ID:                  r.ID,
		SessionID:           r.SessionID,
		TutorID:             r.TutorID,
		StudentID:           r.StudentID,
		StartTime:           r.StartTime,
		EndTime:             r.EndTime,
		TutorJoinTime:       r.TutorJoinTime,
		StudentJoinTime:     r.StudentJoinTime,
		TutorLeaveTime:      r.TutorLeaveTime,
		StudentLeaveTime:    r.StudentLeaveTime,
		ScheduledMinutes:    r.ScheduledMinutes,
		ActualMinutes:       r.ActualMinutes,
		SubjectsCovered:     subjects,
		IsFirstSession:      r.IsFirstSession,
		WasRescheduled:      r.WasRescheduled,
		RescheduleCount:     r.RescheduleCount,
		TutorRating:         r.TutorRating,
		TutorFeedbackText:   r.TutorFeedbackText,
		StudentRating:       r.StudentRating,
		StudentFeedbackText: r.StudentFeedbackText,
		VideoURL:            r.VideoURL,
		TranscriptURL:       r.TranscriptURL,
		AISummary:           r.AISummary,
		CreatedAt:           r.CreatedAt,
	}
	if r.RescheduledBy != nil {
		by := model.RescheduledBy(*r.RescheduledBy)
		s.RescheduledBy = &by
	}
	return s, nil
}

func toFlagRecord(f *model.Flag) (*flagRecord, error) {
	var data []byte
	if f.SupportingData != nil {
		var err error
		data, err = json.Marshal(f.SupportingData)
		if err != nil {
			return nil, fmt.Errorf("marshal supporting data: %w", err)
		}
	}
	return &flagRecord{
		ID:                f.ID,
		TutorID:           f.TutorID,
		SessionID:         f.SessionID,
		FlagType:          string(f.FlagType),
		Severity:          string(f.Severity),
		Title:             f.Title,
		Description:       f.Description,
		RecommendedAction: f.RecommendedAction,
		SupportingData:    data,
		Status:            string(f.Status),
		ResolvedAt:        f.ResolvedAt,
		ResolvedBy:        f.ResolvedBy,
		ResolutionNotes:   f.ResolutionNotes,
		CoachAgreed:       f.CoachAgreed,
		CreatedAt:         f.CreatedAt,
		UpdatedAt:         f.UpdatedAt,
	}, nil
}

func (r *flagRecord) toModel() (*model.Flag, error) {
	var data map[string]any
	if len(r.SupportingData) > 0 {
		if err := json.Unmarshal(r.SupportingData, &data); err != nil {
			return nil, fmt.Errorf("unmarshal supporting data for flag %s: %w", r.ID, err)
		}
	}
	return &model.Flag{
		ID:                r.ID,
		TutorID:           r.TutorID,
		SessionID:         r.SessionID,
		FlagType:          model.FlagType(r.FlagType),
		Severity:          model.Severity(r.Severity),
		Title:             r.Title,
		Description:       r.Description,
		RecommendedAction: r.RecommendedAction,
		SupportingData:    data,
		Status:            model.FlagStatus(r.Status),
		ResolvedAt:        r.ResolvedAt,
		ResolvedBy:        r.ResolvedBy,
		ResolutionNotes:   r.ResolutionNotes,
		CoachAgreed:       r.CoachAgreed,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}, nil
}

func toScoreRecord(sc *model.TutorScore) (*scoreRecord, error) {
	statsJSON, err := json.Marshal(sc.Stats)
	if err != nil {
		return nil, fmt.Errorf("marshal stats snapshot: %w", err)
	}
	return &scoreRecord{
		ID:               sc.ID,
		TutorID:          sc.TutorID,
		WindowStart:      sc.Window.Start,
		WindowEnd:        sc.Window.End,
		StatsJSON:        statsJSON,
		AttendanceScore:  sc.Breakdown.Attendance,
		RatingsScore:     sc.Breakdown.Ratings,
		CompletionScore:  sc.Breakdown.Completion,
		ReliabilityScore: sc.Breakdown.Reliability,
		OverallScore:     sc.OverallScore,
		ConfidenceScore:  sc.ConfidenceScore,
		CreatedAt:        sc.CreatedAt,
		UpdatedAt:        sc.UpdatedAt,
	}, nil
}

func (r *scoreRecord) toModel() (*model.TutorScore, error) {
	var st model.TutorStats
	if len(r.StatsJSON) > 0 {
		if err := json.Unmarshal(r.StatsJSON, &st); err != nil {
			return nil, fmt.Errorf("unmarshal stats snapshot for score %s: %w", r.ID, err)
		}
	}
	return &model.TutorScore{
		ID:      r.ID,
		TutorID: r.TutorID,
		Window:  model.Window{Start: r.WindowStart, End: r.WindowEnd},
		Stats:   st,
		Breakdown: model.Breakdown{
			Attendance:  r.AttendanceScore,
			Ratings:     r.RatingsScore,
			Completion:  r.CompletionScore,
			Reliability: r.ReliabilityScore,
		},
		OverallScore:    r.OverallScore,
		ConfidenceScore: r.ConfidenceScore,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}, nil
}
