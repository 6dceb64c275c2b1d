// Package webhookgen generates signed session-completed webhooks for
// load and acceptance testing against a running intake service.
package webhookgen

import "time"

// Config controls a generation run.
type Config struct {
	// BaseURL of the service, e.g. http://localhost:9080.
	BaseURL string

	// Secret signs each body with HMAC-SHA256. Must match the service's
	// webhook_secret or every delivery is rejected with 401.
	Secret string

	// NumSessions to generate and deliver.
	NumSessions int

	// Tutors and Students size the id pools sessions are drawn from.
	// Small pools concentrate sessions on few tutors, which exercises
	// the aggregate rules.
	Tutors   int
	Students int

	// Workers delivering webhooks concurrently.
	Workers int

	// Timeout per HTTP request.
	Timeout time.Duration

	// DuplicateRate injects replayed session ids to exercise the 409
	// path, e.g. 0.1 resends roughly one in ten sessions.
	DuplicateRate float64

	Verbose bool
}

// Stats accumulates the outcome of a run.
type Stats struct {
	Generated int
	Submitted int
	Accepted  int
	Duplicate int
	Rejected  int
	Failed    int

	Duration time.Duration
}
