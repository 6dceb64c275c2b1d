package api_test

import (
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/tutorlens/tutorlens/internal/adapters/http/api"
	"github.com/tutorlens/tutorlens/internal/domain/model"
)

func fieldNames(details []api.FieldError) []string {
	out := make([]string, 0, len(details))
	for _, d := range details {
		out = append(out, d.Field)
	}
	return out
}

func TestPayloadValidator_Parse(t *testing.T) {
	convey.Convey("Given the webhook payload validator", t, func() {
		v := api.NewPayloadValidator()

		convey.Convey("When a full payload is parsed", func() {
			body := []byte(`{
				"session_id": "sess-1",
				"tutor_id": "tutor-1",
				"student_id": "student-1",
				"session_start_time": "2026-04-01T15:00:00Z",
				"session_end_time": "2026-04-01T16:00:00Z",
				"tutor_join_time": "2026-04-01T15:03:00Z",
				"tutor_leave_time": "2026-04-01T15:58:00Z",
				"subjects_covered": ["algebra"],
				"is_first_session": true,
				"was_rescheduled": true,
				"rescheduled_by": "tutor",
				"student_feedback": {"rating": 4, "description": "solid session"},
				"video_url": "https://cdn.example.com/v/sess-1"
			}`)

			s, details := v.Parse(body)

			convey.Convey("Then the domain session is fully populated", func() {
				convey.So(details, convey.ShouldBeNil)
				convey.So(s.SessionID, convey.ShouldEqual, "sess-1")
				convey.So(s.TutorID, convey.ShouldEqual, "tutor-1")
				convey.So(s.IsFirstSession, convey.ShouldBeTrue)
				convey.So(s.WasRescheduled, convey.ShouldBeTrue)
				convey.So(*s.RescheduledBy, convey.ShouldEqual, model.RescheduledByTutor)
				convey.So(*s.StudentRating, convey.ShouldEqual, 4)
				convey.So(*s.StudentFeedbackText, convey.ShouldEqual, "solid session")
				convey.So(s.ScheduledMinutes, convey.ShouldEqual, 60)
				convey.So(s.ActualMinutes, convey.ShouldNotBeNil)
				convey.So(*s.ActualMinutes, convey.ShouldEqual, 55)
				convey.So(s.SubjectsCovered, convey.ShouldResemble, []string{"algebra"})
			})
		})

		convey.Convey("When a minimal payload is parsed", func() {
			body := []byte(`{
				"session_id": "sess-1",
				"tutor_id": "tutor-1",
				"student_id": "student-1",
				"session_start_time": "2026-04-01T15:00:00Z",
				"session_end_time": "2026-04-01T16:00:00Z"
			}`)

			s, details := v.Parse(body)

			convey.Convey("Then optional fields default sensibly", func() {
				convey.So(details, convey.ShouldBeNil)
				convey.So(s.NoShow(), convey.ShouldBeTrue)
				convey.So(s.IsFirstSession, convey.ShouldBeFalse)
				convey.So(s.WasRescheduled, convey.ShouldBeFalse)
				convey.So(s.StudentRating, convey.ShouldBeNil)
				convey.So(s.ActualMinutes, convey.ShouldBeNil)
				convey.So(s.SubjectsCovered, convey.ShouldNotBeNil)
				convey.So(s.SubjectsCovered, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the session id is missing", func() {
			body := []byte(`{
				"tutor_id": "tutor-1",
				"student_id": "student-1",
				"session_start_time": "2026-04-01T15:00:00Z",
				"session_end_time": "2026-04-01T16:00:00Z"
			}`)

			s, details := v.Parse(body)

			convey.Convey("Then the rejection names the field", func() {
				convey.So(s, convey.ShouldBeNil)
				convey.So(fieldNames(details), convey.ShouldContain, "session_id")
			})
		})

		convey.Convey("When several fields are bad at once", func() {
			body := []byte(`{
				"session_id": "sess-1",
				"session_start_time": "not-a-time",
				"session_end_time": "2026-04-01T16:00:00Z",
				"rescheduled_by": "martians",
				"video_url": "not a url"
			}`)

			s, details := v.Parse(body)
			names := fieldNames(details)

			convey.Convey("Then every problem is reported, not just the first", func() {
				convey.So(s, convey.ShouldBeNil)
				convey.So(names, convey.ShouldContain, "tutor_id")
				convey.So(names, convey.ShouldContain, "student_id")
				convey.So(names, convey.ShouldContain, "session_start_time")
				convey.So(names, convey.ShouldContain, "rescheduled_by")
				convey.So(names, convey.ShouldContain, "video_url")
			})
		})

		convey.Convey("When the rating falls outside 1-5", func() {
			body := []byte(`{
				"session_id": "sess-1",
				"tutor_id": "tutor-1",
				"student_id": "student-1",
				"session_start_time": "2026-04-01T15:00:00Z",
				"session_end_time": "2026-04-01T16:00:00Z",
				"student_feedback": {"rating": 9}
			}`)

			s, details := v.Parse(body)

			convey.Convey("Then the nested field path is reported", func() {
				convey.So(s, convey.ShouldBeNil)
				convey.So(fieldNames(details), convey.ShouldContain, "student_feedback.rating")
			})
		})

		convey.Convey("When the end precedes the start", func() {
			body := []byte(`{
				"session_id": "sess-1",
				"tutor_id": "tutor-1",
				"student_id": "student-1",
				"session_start_time": "2026-04-01T16:00:00Z",
				"session_end_time": "2026-04-01T15:00:00Z"
			}`)

			s, details := v.Parse(body)

			convey.Convey("Then the ordering violation is reported", func() {
				convey.So(s, convey.ShouldBeNil)
				convey.So(fieldNames(details), convey.ShouldContain, "session_end_time")
			})
		})

		convey.Convey("When the body is not JSON", func() {
			s, details := v.Parse([]byte("not json at all"))

			convey.Convey("Then the body itself is rejected", func() {
				convey.So(s, convey.ShouldBeNil)
				convey.So(fieldNames(details), convey.ShouldContain, "body")
			})
		})
	})
}
