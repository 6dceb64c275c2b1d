package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tutorlens/tutorlens/internal/domain/model"
)

// MemoryStore is a mutex-guarded in-memory implementation of Store. It
// backs tests and postgres-less local runs; it honors the same
// uniqueness rules as the Postgres store, including the single-open-flag
// constraint per (tutor, flag type).
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]model.Session // keyed by external session id
	flags    []model.Flag
	scores   []model.TutorScore
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]model.Session),
	}
}

// Typed views keep the three store interfaces separable while sharing
// one lock and dataset.
type (
	memSessions MemoryStore
	memFlags    MemoryStore
	memScores   MemoryStore
)

// Sessions returns the session store view.
func (m *MemoryStore) Sessions() SessionStore { return (*memSessions)(m) }

// Flags returns the flag store view.
func (m *MemoryStore) Flags() FlagStore { return (*memFlags)(m) }

// Scores returns the score store view.
func (m *MemoryStore) Scores() ScoreStore { return (*memScores)(m) }

// Insert stores a new session, enforcing session id uniqueness.
func (m *memSessions) Insert(_ context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[s.SessionID]; exists {
		return ErrDuplicateSession
	}
	stored := *s
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	m.sessions[s.SessionID] = stored
	return nil
}

// GetBySessionID returns the session with the given external id.
func (m *memSessions) GetBySessionID(_ context.Context, sessionID string) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

// ListByTutor returns the tutor's sessions starting inside w, ordered by
// scheduled start.
func (m *memSessions) ListByTutor(_ context.Context, tutorID string, w model.Window) ([]model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Session
	for _, s := range m.sessions {
		if s.TutorID == tutorID && w.Contains(s.StartTime) {
			out = append(out, s)
		}
	}
	sortSessions(out)
	return out, nil
}

// ListByRange returns all sessions starting inside w, ordered by
// scheduled start.
func (m *memSessions) ListByRange(_ context.Context, w model.Window) ([]model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Session
	for _, s := range m.sessions {
		if w.Contains(s.StartTime) {
			out = append(out, s)
		}
	}
	sortSessions(out)
	return out, nil
}

// Insert stores a new flag, enforcing the single-open-flag rule.
func (m *memFlags) Insert(_ context.Context, f *model.Flag) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if f.Status == model.FlagOpen {
		for i := range m.flags {
			if m.flags[i].TutorID == f.TutorID && m.flags[i].FlagType == f.FlagType && m.flags[i].Status == model.FlagOpen {
				return ErrDuplicateOpenFlag
			}
		}
	}
	stored := *f
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	m.flags = append(m.flags, stored)
	return nil
}

// HasOpenFlag reports whether an open flag exists for (tutorID, ft).
func (m *memFlags) HasOpenFlag(_ context.Context, tutorID string, ft model.FlagType) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.flags {
		if m.flags[i].TutorID == tutorID && m.flags[i].FlagType == ft && m.flags[i].Status == model.FlagOpen {
			return true, nil
		}
	}
	return false, nil
}

// ListByTutor returns all flags for a tutor, newest first.
func (m *memFlags) ListByTutor(_ context.Context, tutorID string) ([]model.Flag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Flag
	for i := range m.flags {
		if m.flags[i].TutorID == tutorID {
			out = append(out, m.flags[i])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Upsert stores or replaces the snapshot for its (tutor, window).
func (m *memScores) Upsert(_ context.Context, sc *model.TutorScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for i := range m.scores {
		if m.scores[i].TutorID == sc.TutorID &&
			m.scores[i].Window.Start.Equal(sc.Window.Start) &&
			m.scores[i].Window.End.Equal(sc.Window.End) {
			updated := *sc
			updated.ID = m.scores[i].ID
			updated.CreatedAt = m.scores[i].CreatedAt
			updated.UpdatedAt = now
			m.scores[i] = updated
			return nil
		}
	}
	stored := *sc
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.scores = append(m.scores, stored)
	return nil
}

// RecentScores returns up to limit snapshots for a tutor, newest window
// first.
func (m *memScores) RecentScores(_ context.Context, tutorID string, limit int) ([]model.TutorScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.TutorScore
	for i := range m.scores {
		if m.scores[i].TutorID == tutorID {
			out = append(out, m.scores[i])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Window.End.After(out[j].Window.End) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortSessions(sessions []model.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartTime.Before(sessions[j].StartTime)
	})
}
