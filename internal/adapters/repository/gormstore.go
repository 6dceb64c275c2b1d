package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tutorlens/tutorlens/internal/domain/model"
)

// Open connects to Postgres with error translation enabled so unique
// violations surface as gorm.ErrDuplicatedKey.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// GormStore is the Postgres-backed implementation of Store.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open gorm connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates the schema, including the partial unique index that
// makes open-flag dedup atomic under concurrent workers.
func (g *GormStore) Migrate(ctx context.Context) error {
	db := g.db.WithContext(ctx)
	if err := db.AutoMigrate(&sessionRecord{}, &flagRecord{}, &scoreRecord{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	// One open flag per (tutor, flag type). gorm tags cannot express a
	// partial index, so create it directly.
	err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_flags_one_open
		ON flags (tutor_id, flag_type) WHERE status = 'open'`).Error
	if err != nil {
		return fmt.Errorf("create open-flag index: %w", err)
	}
	return nil
}

// Typed views, one per store interface.
type (
	gormSessions GormStore
	gormFlags    GormStore
	gormScores   GormStore
)

// Sessions returns the session store view.
func (g *GormStore) Sessions() SessionStore { return (*gormSessions)(g) }

// Flags returns the flag store view.
func (g *GormStore) Flags() FlagStore { return (*gormFlags)(g) }

// Scores returns the score store view.
func (g *GormStore) Scores() ScoreStore { return (*gormScores)(g) }

// Insert stores a new session; the unique index on session_id is the
// idempotency guard.
func (g *gormSessions) Insert(ctx context.Context, s *model.Session) error {
	rec, err := toSessionRecord(s)
	if err != nil {
		return err
	}
	if err := g.db.WithContext(ctx).Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateSession
		}
		return fmt.Errorf("insert session %s: %w", s.SessionID, err)
	}
	return nil
}

// GetBySessionID returns the session with the given external id.
func (g *gormSessions) GetBySessionID(ctx context.Context, sessionID string) (*model.Session, error) {
	var rec sessionRecord
	err := g.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	return rec.toModel()
}

// ListByTutor returns the tutor's sessions starting inside w.
func (g *gormSessions) ListByTutor(ctx context.Context, tutorID string, w model.Window) ([]model.Session, error) {
	var recs []sessionRecord
	err := g.db.WithContext(ctx).
		Where("tutor_id = ? AND start_time >= ? AND start_time <= ?", tutorID, w.Start, w.End).
		Order("start_time ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list sessions for tutor %s: %w", tutorID, err)
	}
	return recordsToSessions(recs)
}

// ListByRange returns all sessions starting inside w.
func (g *gormSessions) ListByRange(ctx context.Context, w model.Window) ([]model.Session, error) {
	var recs []sessionRecord
	err := g.db.WithContext(ctx).
		Where("start_time >= ? AND start_time <= ?", w.Start, w.End).
		Order("start_time ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list sessions in range: %w", err)
	}
	return recordsToSessions(recs)
}

// Insert stores a new flag; the partial unique index turns a concurrent
// duplicate open flag into ErrDuplicateOpenFlag.
func (g *gormFlags) Insert(ctx context.Context, f *model.Flag) error {
	rec, err := toFlagRecord(f)
	if err != nil {
		return err
	}
	if err := g.db.WithContext(ctx).Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateOpenFlag
		}
		return fmt.Errorf("insert flag %s: %w", f.ID, err)
	}
	return nil
}

// HasOpenFlag reports whether an open flag exists for (tutorID, ft).
func (g *gormFlags) HasOpenFlag(ctx context.Context, tutorID string, ft model.FlagType) (bool, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&flagRecord{}).
		Where("tutor_id = ? AND flag_type = ? AND status = ?", tutorID, string(ft), string(model.FlagOpen)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count open flags for tutor %s: %w", tutorID, err)
	}
	return count > 0, nil
}

// ListByTutor returns all flags for a tutor, newest first.
func (g *gormFlags) ListByTutor(ctx context.Context, tutorID string) ([]model.Flag, error) {
	var recs []flagRecord
	err := g.db.WithContext(ctx).
		Where("tutor_id = ?", tutorID).
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list flags for tutor %s: %w", tutorID, err)
	}
	out := make([]model.Flag, 0, len(recs))
	for i := range recs {
		f, err := recs[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, nil
}

// Upsert stores or replaces the snapshot for its (tutor, window).
func (g *gormScores) Upsert(ctx context.Context, sc *model.TutorScore) error {
	rec, err := toScoreRecord(sc)
	if err != nil {
		return err
	}
	err = g.db.WithContext(ctx).
		Where("tutor_id = ? AND window_start = ? AND window_end = ?", rec.TutorID, rec.WindowStart, rec.WindowEnd).
		Assign(map[string]any{
			"stats":             rec.StatsJSON,
			"attendance_score":  rec.AttendanceScore,
			"ratings_score":     rec.RatingsScore,
			"completion_score":  rec.CompletionScore,
			"reliability_score": rec.ReliabilityScore,
			"overall_score":     rec.OverallScore,
			"confidence_score":  rec.ConfidenceScore,
		}).
		FirstOrCreate(rec).Error
	if err != nil {
		return fmt.Errorf("upsert score for tutor %s: %w", sc.TutorID, err)
	}
	return nil
}

// RecentScores returns up to limit snapshots for a tutor, newest window
// first.
func (g *gormScores) RecentScores(ctx context.Context, tutorID string, limit int) ([]model.TutorScore, error) {
	var recs []scoreRecord
	q := g.db.WithContext(ctx).
		Where("tutor_id = ?", tutorID).
		Order("window_end DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list scores for tutor %s: %w", tutorID, err)
	}
	out := make([]model.TutorScore, 0, len(recs))
	for i := range recs {
		sc, err := recs[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *sc)
	}
	return out, nil
}

func recordsToSessions(recs []sessionRecord) ([]model.Session, error) {
	out := make([]model.Session, 0, len(recs))
	for i := range recs {
		s, err := recs[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, nil
}
