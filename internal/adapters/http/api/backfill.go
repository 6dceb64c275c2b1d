package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tutorlens/tutorlens/internal/domain/model"
)

// BackfillHandler exposes operational endpoints: date-range reprocessing
// and failed-job replay.
type BackfillHandler struct {
	deps Dependencies
}

// NewBackfillHandler creates the admin handler.
func NewBackfillHandler(deps Dependencies) *BackfillHandler {
	return &BackfillHandler{deps: deps}
}

type backfillRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// HandleBackfill handles POST /admin/backfill. The sweep runs
// synchronously; callers are operators, not webhooks.
func (h *BackfillHandler) HandleBackfill(w http.ResponseWriter, r *http.Request) {
	const op = "api.backfill"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req backfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrValidation, err))
		return
	}
	from, err := time.Parse(time.RFC3339, req.From)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, validationResponse{
			Error:   "validation_failed",
			Details: []FieldError{{Field: "from", Message: "must be an ISO-8601 timestamp"}},
		})
		return
	}
	to, err := time.Parse(time.RFC3339, req.To)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, validationResponse{
			Error:   "validation_failed",
			Details: []FieldError{{Field: "to", Message: "must be an ISO-8601 timestamp"}},
		})
		return
	}
	if !to.After(from) {
		writeJSON(w, http.StatusBadRequest, validationResponse{
			Error:   "validation_failed",
			Details: []FieldError{{Field: "to", Message: "must be after from"}},
		})
		return
	}

	res, err := h.deps.Backfill(r.Context(), model.Window{Start: from, End: to})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type replayRequest struct {
	JobID string `json:"job_id"`
}

// HandleReplay handles POST /admin/jobs/replay.
func (h *BackfillHandler) HandleReplay(w http.ResponseWriter, r *http.Request) {
	const op = "api.replay"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req replayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.JobID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrValidation))
		return
	}
	if !h.deps.ReplayJob(r.Context(), req.JobID) {
		writeError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"replayed": true, "job_id": req.JobID})
}
