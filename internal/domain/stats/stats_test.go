package stats_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/tutorlens/tutorlens/internal/domain/model"
	"github.com/tutorlens/tutorlens/internal/domain/stats"
)

// sessionAt builds a clean one-hour session starting at start, mutated
// by the given functions.
func sessionAt(start time.Time, muts ...func(*model.Session)) model.Session {
	end := start.Add(time.Hour)
	join := start
	leave := end
	s := model.Session{
		SessionID:      "sess-" + start.Format("0102-1504"),
		TutorID:        "tutor-1",
		StudentID:      "student-1",
		StartTime:      start,
		EndTime:        end,
		TutorJoinTime:  &join,
		TutorLeaveTime: &leave,
	}
	for _, m := range muts {
		m(&s)
	}
	return s
}

func noShow() func(*model.Session) {
	return func(s *model.Session) {
		s.TutorJoinTime = nil
		s.TutorLeaveTime = nil
	}
}

func lateBy(minutes int) func(*model.Session) {
	return func(s *model.Session) {
		join := s.StartTime.Add(time.Duration(minutes) * time.Minute)
		s.TutorJoinTime = &join
	}
}

func leftEarlyBy(minutes int) func(*model.Session) {
	return func(s *model.Session) {
		leave := s.EndTime.Add(-time.Duration(minutes) * time.Minute)
		s.TutorLeaveTime = &leave
	}
}

func ratedAt(rating int) func(*model.Session) {
	return func(s *model.Session) {
		r := rating
		s.StudentRating = &r
	}
}

func rescheduledBy(by model.RescheduledBy) func(*model.Session) {
	return func(s *model.Session) {
		s.WasRescheduled = true
		s.RescheduledBy = &by
	}
}

func firstSession() func(*model.Session) {
	return func(s *model.Session) { s.IsFirstSession = true }
}

func TestAggregator_Aggregate(t *testing.T) {
	convey.Convey("Given an aggregator with default thresholds", t, func() {
		agg := stats.NewAggregator(nil)
		windowEnd := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
		w := model.Window{Start: windowEnd.AddDate(0, 0, -30), End: windowEnd}

		convey.Convey("When the window holds a mixed set of sessions", func() {
			sessions := []model.Session{
				sessionAt(windowEnd.Add(-20*24*time.Hour), noShow()),
				sessionAt(windowEnd.Add(-15*24*time.Hour), lateBy(10), ratedAt(4)),
				sessionAt(windowEnd.Add(-10*24*time.Hour), leftEarlyBy(15), ratedAt(3)),
				sessionAt(windowEnd.Add(-5*24*time.Hour), ratedAt(5), rescheduledBy(model.RescheduledByTutor)),
			}

			st := agg.Aggregate("tutor-1", w, sessions)

			convey.Convey("Then counts and rates reflect the sessions", func() {
				convey.So(st.TotalSessions, convey.ShouldEqual, 4)
				convey.So(st.NoShowCount, convey.ShouldEqual, 1)
				convey.So(*st.NoShowRate, convey.ShouldEqual, 0.25)
				convey.So(st.LateCount, convey.ShouldEqual, 1)
				convey.So(*st.LateRate, convey.ShouldEqual, 0.25)
				convey.So(*st.AvgLatenessMinutes, convey.ShouldEqual, 10.0)
				convey.So(st.EarlyEndCount, convey.ShouldEqual, 1)
				convey.So(*st.EarlyEndRate, convey.ShouldEqual, 0.25)
				convey.So(*st.AvgEarlyEndMinutes, convey.ShouldEqual, 15.0)
				convey.So(st.RescheduleCount, convey.ShouldEqual, 1)
				convey.So(st.TutorRescheduleCount, convey.ShouldEqual, 1)
				convey.So(*st.AvgStudentRating, convey.ShouldEqual, 4.0)
			})
		})

		convey.Convey("When a tutor joins within the lateness threshold", func() {
			sessions := []model.Session{
				sessionAt(windowEnd.Add(-5*24*time.Hour), lateBy(3)),
			}

			st := agg.Aggregate("tutor-1", w, sessions)

			convey.Convey("Then the session does not count as late", func() {
				convey.So(st.LateCount, convey.ShouldEqual, 0)
				convey.So(*st.LateRate, convey.ShouldEqual, 0.0)
			})
		})

		convey.Convey("When first sessions carry ratings", func() {
			sessions := []model.Session{
				sessionAt(windowEnd.Add(-8*24*time.Hour), firstSession(), ratedAt(2)),
				sessionAt(windowEnd.Add(-4*24*time.Hour), ratedAt(5)),
			}

			st := agg.Aggregate("tutor-1", w, sessions)

			convey.Convey("Then the first-session average is tracked separately", func() {
				convey.So(st.FirstSessions, convey.ShouldEqual, 1)
				convey.So(*st.AvgFirstSessionRating, convey.ShouldEqual, 2.0)
				convey.So(*st.AvgStudentRating, convey.ShouldEqual, 3.5)
			})
		})

		convey.Convey("When the window holds no sessions", func() {
			st := agg.Aggregate("tutor-1", w, nil)

			convey.Convey("Then rates and averages are nil, not zero", func() {
				convey.So(st.TotalSessions, convey.ShouldEqual, 0)
				convey.So(st.NoShowRate, convey.ShouldBeNil)
				convey.So(st.LateRate, convey.ShouldBeNil)
				convey.So(st.AvgStudentRating, convey.ShouldBeNil)
				convey.So(st.RatingTrend, convey.ShouldBeNil)
			})
		})
	})
}

func TestAggregator_RatingTrend(t *testing.T) {
	convey.Convey("Given an aggregator with default thresholds", t, func() {
		agg := stats.NewAggregator(nil)
		windowEnd := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
		w := model.Window{Start: windowEnd.AddDate(0, 0, -30), End: windowEnd}

		build := func(ratings ...int) []model.Session {
			out := make([]model.Session, 0, len(ratings))
			for i, r := range ratings {
				start := w.Start.Add(time.Duration(i+1) * 24 * time.Hour)
				out = append(out, sessionAt(start, ratedAt(r)))
			}
			return out
		}

		convey.Convey("When the recent half rates clearly lower", func() {
			st := agg.Aggregate("tutor-1", w, build(5, 5, 5, 5, 3, 3, 3, 3))

			convey.Convey("Then the trend is declining", func() {
				convey.So(st.RatingTrend, convey.ShouldNotBeNil)
				convey.So(*st.RatingTrend, convey.ShouldEqual, model.TrendDeclining)
			})
		})

		convey.Convey("When the recent half rates clearly higher", func() {
			st := agg.Aggregate("tutor-1", w, build(3, 3, 3, 3, 5, 5, 5, 5))

			convey.Convey("Then the trend is improving", func() {
				convey.So(st.RatingTrend, convey.ShouldNotBeNil)
				convey.So(*st.RatingTrend, convey.ShouldEqual, model.TrendImproving)
			})
		})

		convey.Convey("When both halves rate the same", func() {
			st := agg.Aggregate("tutor-1", w, build(4, 4, 4, 4, 4, 4))

			convey.Convey("Then the trend is stable", func() {
				convey.So(st.RatingTrend, convey.ShouldNotBeNil)
				convey.So(*st.RatingTrend, convey.ShouldEqual, model.TrendStable)
			})
		})

		convey.Convey("When a half carries too few rated sessions", func() {
			sessions := build(5, 3)
			st := agg.Aggregate("tutor-1", w, sessions)

			convey.Convey("Then no trend is reported", func() {
				convey.So(st.RatingTrend, convey.ShouldBeNil)
			})
		})
	})
}

// fixedLister serves a canned session slice, or an error.
type fixedLister struct {
	sessions []model.Session
	err      error
}

func (f *fixedLister) ListByTutor(_ context.Context, _ string, _ model.Window) ([]model.Session, error) {
	return f.sessions, f.err
}

func TestAggregator_Compute(t *testing.T) {
	convey.Convey("Given an aggregator over a session lister", t, func() {
		ctx := context.Background()
		windowEnd := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
		w := model.Window{Start: windowEnd.AddDate(0, 0, -30), End: windowEnd}

		convey.Convey("When the lister returns sessions", func() {
			lister := &fixedLister{sessions: []model.Session{
				sessionAt(windowEnd.Add(-5 * 24 * time.Hour)),
				sessionAt(windowEnd.Add(-3*24*time.Hour), noShow()),
			}}
			agg := stats.NewAggregator(lister)

			st, err := agg.Compute(ctx, "tutor-1", w)

			convey.Convey("Then the snapshot covers them", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(st.TotalSessions, convey.ShouldEqual, 2)
				convey.So(st.NoShowCount, convey.ShouldEqual, 1)
				convey.So(st.TutorID, convey.ShouldEqual, "tutor-1")
				convey.So(st.Window, convey.ShouldResemble, w)
			})
		})

		convey.Convey("When the lister fails", func() {
			agg := stats.NewAggregator(&fixedLister{err: errors.New("db down")})

			st, err := agg.Compute(ctx, "tutor-1", w)

			convey.Convey("Then the error is propagated", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(st, convey.ShouldBeNil)
			})
		})
	})
}
