// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tutorlens/tutorlens/internal/adapters/ratelimit"
	"github.com/tutorlens/tutorlens/internal/domain/dedupe"
	"github.com/tutorlens/tutorlens/internal/domain/model"
	"github.com/tutorlens/tutorlens/internal/domain/processor"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper

	// StoreSession persists a validated session. Returns the repository's
	// duplicate-session error for a replayed session id.
	StoreSession(ctx context.Context, s *model.Session) error

	// EnqueueSession schedules async processing of a stored session.
	// Returns false on queue saturation.
	EnqueueSession(ctx context.Context, s *model.Session) bool

	// Backfill reprocesses every stored session in the window.
	Backfill(ctx context.Context, w model.Window) (processor.BackfillResult, error)

	// ReplayJob moves a failed job back into the queue.
	ReplayJob(ctx context.Context, jobID string) bool
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	webhookHandler  *WebhookHandler
	backfillHandler *BackfillHandler

	limiter  ratelimit.Limiter
	failOpen bool
}

// ServerOption applies a configuration option to the Server.
type ServerOption func(*Server)

// WithRateLimiter attaches a limiter to the webhook route.
func WithRateLimiter(l ratelimit.Limiter) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.limiter = l
		}
	}
}

// WithFailOpen controls limiter behavior when its backend is
// unavailable: true admits traffic, false rejects it.
func WithFailOpen(failOpen bool) ServerOption {
	return func(s *Server) {
		s.failOpen = failOpen
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, secret string, statsProvider StatsProvider, opts ...ServerOption) *Server {
	s := &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		webhookHandler:  NewWebhookHandler(deps, NewSignatureVerifier(secret)),
		backfillHandler: NewBackfillHandler(deps),
		failOpen:        true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	webhook := s.webhookHandler.HandleSessionCompleted
	if s.limiter != nil {
		webhook = RateLimitMiddleware(s.limiter, s.failOpen, webhook)
	}

	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/webhooks/session-completed", MetricsMiddleware(webhook, "webhook"))
	mux.HandleFunc("/admin/backfill", MetricsMiddleware(s.backfillHandler.HandleBackfill, "backfill"))
	mux.HandleFunc("/admin/jobs/replay", MetricsMiddleware(s.backfillHandler.HandleReplay, "replay"))
}

// webhookResponse acknowledges an accepted delivery.
type webhookResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`
	Queued    bool   `json:"queued"`
}

// conflictResponse reports a replayed session id.
type conflictResponse struct {
	Error     string `json:"error"`
	SessionID string `json:"session_id"`
}

// validationResponse reports a rejected payload with field-level detail.
type validationResponse struct {
	Error   string       `json:"error"`
	Details []FieldError `json:"details"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Error: code, Message: msg})
}
