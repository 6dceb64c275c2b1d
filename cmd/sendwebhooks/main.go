// Command sendwebhooks delivers generated, signed session-completed
// webhooks to a running service, for load and acceptance testing.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tutorlens/tutorlens/internal/webhookgen"
	"github.com/tutorlens/tutorlens/pkg/logger"
)

// Default configuration constants.
const (
	defaultNumSessions      = 1000
	defaultTutors           = 20
	defaultWorkerMultiplier = 2
	defaultTimeout          = 30 * time.Second
	defaultRunTimeout       = 10 * time.Minute
)

func main() {
	var (
		baseURL       = flag.String("url", "http://localhost:9080", "Base URL of the service")
		secret        = flag.String("secret", os.Getenv("TUTORLENS_WEBHOOK_SECRET"), "HMAC secret (defaults to TUTORLENS_WEBHOOK_SECRET)")
		numSessions   = flag.Int("sessions", defaultNumSessions, "Number of sessions to generate and deliver")
		tutors        = flag.Int("tutors", defaultTutors, "Size of the tutor id pool")
		students      = flag.Int("students", 0, "Size of the student id pool (default 5x tutors)")
		workers       = flag.Int("workers", runtime.NumCPU()*defaultWorkerMultiplier, "Number of concurrent senders")
		timeout       = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		duplicateRate = flag.Float64("duplicates", 0.05, "Fraction of sessions delivered twice")
		verbose       = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	cfg := &webhookgen.Config{
		BaseURL:       *baseURL,
		Secret:        *secret,
		NumSessions:   *numSessions,
		Tutors:        *tutors,
		Students:      *students,
		Workers:       *workers,
		Timeout:       *timeout,
		DuplicateRate: *duplicateRate,
		Verbose:       *verbose,
	}

	if _, err := webhookgen.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("run failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
