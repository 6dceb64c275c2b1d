// Package repository defines the persistence interfaces for sessions,
// flags and score snapshots, with Postgres and in-memory implementations.
package repository

import (
	"context"

	"github.com/tutorlens/tutorlens/internal/domain/model"
)

// SessionStore persists raw sessions received from the platform.
type SessionStore interface {
	// Insert stores a new session. Returns ErrDuplicateSession when a
	// session with the same external session id already exists; the
	// original insert stays authoritative.
	Insert(ctx context.Context, s *model.Session) error

	// GetBySessionID returns the session with the given external id.
	// Returns ErrNotFound when unknown.
	GetBySessionID(ctx context.Context, sessionID string) (*model.Session, error)

	// ListByTutor returns the tutor's sessions whose scheduled start falls
	// inside w.
	ListByTutor(ctx context.Context, tutorID string, w model.Window) ([]model.Session, error)

	// ListByRange returns all sessions, any tutor, whose scheduled start
	// falls inside w. Used by backfill sweeps.
	ListByRange(ctx context.Context, w model.Window) ([]model.Session, error)
}

// FlagStore persists coaching flags.
type FlagStore interface {
	// Insert stores a new flag. Returns ErrDuplicateOpenFlag when an open
	// flag for the same (tutor, flag type) already exists; callers treat
	// that as the dedup signal.
	Insert(ctx context.Context, f *model.Flag) error

	// HasOpenFlag reports whether an open flag exists for (tutorID, ft).
	HasOpenFlag(ctx context.Context, tutorID string, ft model.FlagType) (bool, error)

	// ListByTutor returns all flags for a tutor, newest first.
	ListByTutor(ctx context.Context, tutorID string) ([]model.Flag, error)
}

// ScoreStore persists tutor score snapshots.
type ScoreStore interface {
	// Upsert stores or replaces the snapshot for its (tutor, window).
	Upsert(ctx context.Context, sc *model.TutorScore) error

	// RecentScores returns up to limit snapshots for a tutor, newest
	// window first.
	RecentScores(ctx context.Context, tutorID string, limit int) ([]model.TutorScore, error)
}

// Store bundles the three stores behind one constructor so callers can
// swap the whole persistence layer at once.
type Store interface {
	Sessions() SessionStore
	Flags() FlagStore
	Scores() ScoreStore
}
