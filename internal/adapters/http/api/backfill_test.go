package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/tutorlens/tutorlens/internal/adapters/http/api"
	"github.com/tutorlens/tutorlens/internal/domain/processor"
)

func postJSON(h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBackfillHandler_HandleBackfill(t *testing.T) {
	convey.Convey("Given the admin backfill endpoint", t, func() {
		deps := newFakeDeps()
		deps.backfillResult = processor.BackfillResult{Tutors: 2, Sessions: 5, Processed: 5}
		handler := api.NewBackfillHandler(deps)
		h := http.HandlerFunc(handler.HandleBackfill)

		convey.Convey("When a valid range is posted", func() {
			rec := postJSON(h, "/admin/backfill", `{"from":"2026-03-01T00:00:00Z","to":"2026-04-01T00:00:00Z"}`)

			convey.Convey("Then the sweep result comes back", func() {
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)

				var res processor.BackfillResult
				convey.So(json.Unmarshal(rec.Body.Bytes(), &res), convey.ShouldBeNil)
				convey.So(res.Tutors, convey.ShouldEqual, 2)
				convey.So(res.Processed, convey.ShouldEqual, 5)

				convey.So(deps.backfillWindow, convey.ShouldNotBeNil)
				convey.So(deps.backfillWindow.Start.Month(), convey.ShouldEqual, time.March)
				convey.So(deps.backfillWindow.End.Month(), convey.ShouldEqual, time.April)
			})
		})

		convey.Convey("When the from timestamp is malformed", func() {
			rec := postJSON(h, "/admin/backfill", `{"from":"yesterday","to":"2026-04-01T00:00:00Z"}`)

			convey.Convey("Then the field is named in the rejection", func() {
				convey.So(rec.Code, convey.ShouldEqual, http.StatusBadRequest)
				convey.So(rec.Body.String(), convey.ShouldContainSubstring, "from")
			})
		})

		convey.Convey("When the range is inverted", func() {
			rec := postJSON(h, "/admin/backfill", `{"from":"2026-04-01T00:00:00Z","to":"2026-03-01T00:00:00Z"}`)

			convey.Convey("Then the range is rejected", func() {
				convey.So(rec.Code, convey.ShouldEqual, http.StatusBadRequest)
				convey.So(rec.Body.String(), convey.ShouldContainSubstring, "must be after")
			})
		})

		convey.Convey("When the method is not POST", func() {
			req := httptest.NewRequest(http.MethodGet, "/admin/backfill", nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			convey.So(rec.Code, convey.ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestBackfillHandler_HandleReplay(t *testing.T) {
	convey.Convey("Given the failed-job replay endpoint", t, func() {
		deps := newFakeDeps()
		deps.replayable["job-1"] = true
		handler := api.NewBackfillHandler(deps)
		h := http.HandlerFunc(handler.HandleReplay)

		convey.Convey("When a known failed job is replayed", func() {
			rec := postJSON(h, "/admin/jobs/replay", `{"job_id":"job-1"}`)

			convey.Convey("Then the replay is confirmed", func() {
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)

				var resp map[string]any
				convey.So(json.Unmarshal(rec.Body.Bytes(), &resp), convey.ShouldBeNil)
				convey.So(resp["replayed"], convey.ShouldEqual, true)
				convey.So(resp["job_id"], convey.ShouldEqual, "job-1")
			})
		})

		convey.Convey("When the job id is unknown", func() {
			rec := postJSON(h, "/admin/jobs/replay", `{"job_id":"job-nope"}`)

			convey.So(rec.Code, convey.ShouldEqual, http.StatusNotFound)
		})

		convey.Convey("When the job id is missing", func() {
			rec := postJSON(h, "/admin/jobs/replay", `{}`)

			convey.So(rec.Code, convey.ShouldEqual, http.StatusBadRequest)
		})
	})
}
