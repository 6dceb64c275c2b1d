package api

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tutorlens/tutorlens/internal/adapters/ratelimit"
	"github.com/tutorlens/tutorlens/pkg/logger"
	"github.com/tutorlens/tutorlens/pkg/metrics"
)

// MetricsMiddleware wraps HTTP handlers to record Prometheus metrics.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		durationMs := float64(time.Since(start).Milliseconds())
		statusCodeStr := strconv.Itoa(wrapped.statusCode)
		metrics.RecordHTTPRequest(endpoint, r.Method, statusCodeStr)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, statusCodeStr, durationMs)
	}
}

// RateLimitMiddleware gates a handler behind a per-client-IP limiter.
// X-RateLimit-* headers are set on every response path. When the limiter
// backend cannot be consulted the middleware admits traffic if failOpen
// is set, otherwise rejects it.
func RateLimitMiddleware(l ratelimit.Limiter, failOpen bool, next http.HandlerFunc) http.HandlerFunc {
	log := logger.Get().Named("ratelimit")
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := l.Allow(r.Context(), "webhook:"+clientIP(r))
		if err != nil {
			if failOpen {
				metrics.RecordRateLimitFailOpen()
				log.Warn(r.Context(), "limiter backend unavailable, admitting request", logger.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			metrics.RecordRateLimitDenied()
			metrics.RecordWebhookRejected("rate_limit")
			log.Error(r.Context(), "limiter backend unavailable, rejecting request", logger.Error(err))
			writeError(w, http.StatusTooManyRequests, "rate_limited", ErrRateLimited)
			return
		}

		setRateLimitHeaders(w, d)
		if !d.Allowed {
			metrics.RecordRateLimitDenied()
			metrics.RecordWebhookRejected("rate_limit")
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(d)))
			writeError(w, http.StatusTooManyRequests, "rate_limited", ErrRateLimited)
			return
		}
		metrics.RecordRateLimitAllowed()
		next.ServeHTTP(w, r)
	}
}

func setRateLimitHeaders(w http.ResponseWriter, d ratelimit.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
}

func retryAfterSeconds(d ratelimit.Decision) int {
	secs := int(d.RetryAfter.Round(time.Second).Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.Index(fwd, ","); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("failed to write response: %w", err)
	}
	return n, nil
}
