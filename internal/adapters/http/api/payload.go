package api

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tutorlens/tutorlens/internal/domain/model"
)

// FieldError is one entry in a 400 response's details list.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// feedbackPayload is the nested rating sub-object.
type feedbackPayload struct {
	Rating      int    `json:"rating" validate:"min=1,max=5"`
	Description string `json:"description"`
}

// sessionPayload mirrors the platform's session-completed webhook body.
// Timestamps arrive as ISO-8601 strings and are parsed after structural
// validation so every bad field is reported, not just the first.
type sessionPayload struct {
	SessionID        string  `json:"session_id" validate:"required"`
	TutorID          string  `json:"tutor_id" validate:"required"`
	StudentID        string  `json:"student_id" validate:"required"`
	SessionStartTime string  `json:"session_start_time" validate:"required"`
	SessionEndTime   string  `json:"session_end_time" validate:"required"`
	TutorJoinTime    *string `json:"tutor_join_time"`
	StudentJoinTime  *string `json:"student_join_time"`
	TutorLeaveTime   *string `json:"tutor_leave_time"`
	StudentLeaveTime *string `json:"student_leave_time"`

	SubjectsCovered []string `json:"subjects_covered"`
	IsFirstSession  *bool    `json:"is_first_session"`
	WasRescheduled  *bool    `json:"was_rescheduled"`
	RescheduledBy   *string  `json:"rescheduled_by" validate:"omitempty,oneof=tutor student system"`

	TutorFeedback   *feedbackPayload `json:"tutor_feedback"`
	StudentFeedback *feedbackPayload `json:"student_feedback"`

	VideoURL      *string `json:"video_url" validate:"omitempty,url"`
	TranscriptURL *string `json:"transcript_url" validate:"omitempty,url"`
	AISummary     *string `json:"ai_summary"`
}

// PayloadValidator validates webhook bodies and transforms them into
// domain sessions.
type PayloadValidator struct {
	validate *validator.Validate
}

// NewPayloadValidator creates the webhook payload validator.
func NewPayloadValidator() *PayloadValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report errors by json field name, not Go struct field.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &PayloadValidator{validate: v}
}

// Parse validates body and returns the transformed session. A non-nil
// details slice means the payload was rejected.
func (p *PayloadValidator) Parse(body []byte) (*model.Session, []FieldError) {
	var payload sessionPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, []FieldError{{Field: "body", Message: "invalid JSON: " + err.Error()}}
	}

	var details []FieldError
	if err := p.validate.Struct(&payload); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				details = append(details, FieldError{Field: fieldPath(fe), Message: validationMessage(fe)})
			}
		} else {
			details = append(details, FieldError{Field: "body", Message: err.Error()})
		}
	}

	startTime := parseTime(payload.SessionStartTime, "session_start_time", &details)
	endTime := parseTime(payload.SessionEndTime, "session_end_time", &details)
	tutorJoin := parseOptionalTime(payload.TutorJoinTime, "tutor_join_time", &details)
	studentJoin := parseOptionalTime(payload.StudentJoinTime, "student_join_time", &details)
	tutorLeave := parseOptionalTime(payload.TutorLeaveTime, "tutor_leave_time", &details)
	studentLeave := parseOptionalTime(payload.StudentLeaveTime, "student_leave_time", &details)

	if startTime != nil && endTime != nil && !endTime.After(*startTime) {
		details = append(details, FieldError{Field: "session_end_time", Message: "must be after session_start_time"})
	}
	if details != nil {
		return nil, details
	}

	s := &model.Session{
		SessionID: payload.SessionID,
		TutorID:   payload.TutorID,
		StudentID: payload.StudentID,

		StartTime: *startTime,
		EndTime:   *endTime,

		TutorJoinTime:    tutorJoin,
		StudentJoinTime:  studentJoin,
		TutorLeaveTime:   tutorLeave,
		StudentLeaveTime: studentLeave,

		SubjectsCovered: payload.SubjectsCovered,
		IsFirstSession:  payload.IsFirstSession != nil && *payload.IsFirstSession,
		WasRescheduled:  payload.WasRescheduled != nil && *payload.WasRescheduled,

		VideoURL:      payload.VideoURL,
		TranscriptURL: payload.TranscriptURL,
		AISummary:     payload.AISummary,
	}
	if s.SubjectsCovered == nil {
		s.SubjectsCovered = []string{}
	}
	if payload.RescheduledBy != nil {
		by := model.RescheduledBy(*payload.RescheduledBy)
		s.RescheduledBy = &by
	}
	if payload.TutorFeedback != nil {
		rating := payload.TutorFeedback.Rating
		s.TutorRating = &rating
		if payload.TutorFeedback.Description != "" {
			desc := payload.TutorFeedback.Description
			s.TutorFeedbackText = &desc
		}
	}
	if payload.StudentFeedback != nil {
		rating := payload.StudentFeedback.Rating
		s.StudentRating = &rating
		if payload.StudentFeedback.Description != "" {
			desc := payload.StudentFeedback.Description
			s.StudentFeedbackText = &desc
		}
	}

	s.ScheduledMinutes = int(s.EndTime.Sub(s.StartTime).Minutes())
	// Actual length requires the tutor's full presence interval.
	if s.TutorJoinTime != nil && s.TutorLeaveTime != nil {
		actual := int(s.TutorLeaveTime.Sub(*s.TutorJoinTime).Minutes())
		s.ActualMinutes = &actual
	}

	return s, nil
}

func parseTime(value, field string, details *[]FieldError) *time.Time {
	if value == "" {
		// Already reported by the required rule.
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		*details = append(*details, FieldError{Field: field, Message: "must be an ISO-8601 timestamp"})
		return nil
	}
	return &t
}

func parseOptionalTime(value *string, field string, details *[]FieldError) *time.Time {
	if value == nil || *value == "" {
		return nil
	}
	return parseTime(*value, field, details)
}

// fieldPath strips the struct name from validator namespaces, leaving
// dotted json paths like tutor_feedback.rating.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "url":
		return "must be a valid URL"
	default:
		return "is invalid"
	}
}
