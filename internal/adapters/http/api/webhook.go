package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/tutorlens/tutorlens/internal/adapters/repository"
	"github.com/tutorlens/tutorlens/pkg/logger"
	"github.com/tutorlens/tutorlens/pkg/metrics"
)

// maxBodyBytes bounds webhook bodies; session payloads are small.
const maxBodyBytes = 1 << 20

// WebhookHandler is the gatekeeper for the session-completed webhook:
// signature, schema validation, idempotent persistence, then async
// enqueue.
type WebhookHandler struct {
	deps      Dependencies
	verifier  *SignatureVerifier
	validator *PayloadValidator
	logger    logger.Logger
}

// NewWebhookHandler creates the webhook gatekeeper.
func NewWebhookHandler(deps Dependencies, verifier *SignatureVerifier) *WebhookHandler {
	return &WebhookHandler{
		deps:      deps,
		verifier:  verifier,
		validator: NewPayloadValidator(),
		logger:    logger.Get().Named("webhook"),
	}
}

// HandleSessionCompleted handles POST /webhooks/session-completed.
func (h *WebhookHandler) HandleSessionCompleted(w http.ResponseWriter, r *http.Request) {
	const op = "api.session_completed"
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		metrics.RecordWebhookRejected("body")
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrValidation, err))
		return
	}

	if err := h.verifier.Verify(r.Header, body); err != nil {
		if errors.Is(err, ErrServerMisconfigured) {
			metrics.RecordWebhookRejected("server")
			h.logger.Error(ctx, "webhook secret not configured")
			writeError(w, http.StatusInternalServerError, "server_error", NewKind(op, ErrServerMisconfigured))
			return
		}
		metrics.RecordWebhookRejected("signature")
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, err))
		return
	}

	s, details := h.validator.Parse(body)
	if details != nil {
		metrics.RecordWebhookRejected("validation")
		writeJSON(w, http.StatusBadRequest, validationResponse{Error: "validation_failed", Details: details})
		return
	}

	// Fast idempotency path; the store's unique constraint stays
	// authoritative for ids that aged out of the deduper.
	if h.deps.SeenAndRecord(ctx, s.SessionID) {
		metrics.RecordSessionDuplicate()
		metrics.RecordWebhookRejected("conflict")
		writeJSON(w, http.StatusConflict, conflictResponse{Error: "duplicate_session", SessionID: s.SessionID})
		return
	}

	if err := h.deps.StoreSession(ctx, s); err != nil {
		if errors.Is(err, repository.ErrDuplicateSession) {
			metrics.RecordSessionDuplicate()
			metrics.RecordWebhookRejected("conflict")
			writeJSON(w, http.StatusConflict, conflictResponse{Error: "duplicate_session", SessionID: s.SessionID})
			return
		}
		// Let the platform retry the delivery.
		h.deps.Unrecord(ctx, s.SessionID)
		metrics.RecordWebhookRejected("server")
		h.logger.Error(ctx, "session insert failed",
			logger.String("sessionID", s.SessionID),
			logger.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "server_error", WrapKind(op, ErrStorage, err))
		return
	}
	metrics.RecordSessionIngested()

	queued := h.deps.EnqueueSession(ctx, s)
	if !queued {
		// The session is durable; a backfill sweep can pick it up.
		h.logger.Warn(ctx, "enqueue rejected, session stored without processing",
			logger.String("sessionID", s.SessionID),
		)
	}

	writeJSON(w, http.StatusOK, webhookResponse{Success: true, SessionID: s.SessionID, Queued: queued})
}
