package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/okian/skinmate/internal/domain/model"
	"github.com/okian/skinmate/pkg/metrics"
)

//go:embed migrations/*.sql
var migrations embed.FS

const topCandidateQuery = `SELECT t.id, t.user_id, t.skin_score, t.primary_concern, t.procedure_name, t.comment,
       t.before_image_url, t.after_image_url, t.is_verified, t.visit_count, t.verified_facility_name,
       t.is_active, s.birth_year AS subject_birth_year, s.gender AS subject_gender, s.is_active AS subject_active
FROM mentor_tips t
JOIN mentor_subjects s ON s.id = t.user_id
WHERE t.primary_concern = $1 AND t.skin_score > $2 AND t.is_active
ORDER BY t.skin_score DESC
LIMIT 1`

const countQuery = `SELECT COUNT(*) FROM mentor_tips`

// PostgresMentorStore reads candidates from the mentor_tips table joined with
// the subject behind each tip.
type PostgresMentorStore struct {
	db *sqlx.DB
}

// OpenPostgres connects to dsn, verifies the connection and optionally
// applies migrations.
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*PostgresMentorStore, error) {
	cfg := postgresConfig{maxOpenConns: 10, maxIdleConns: 2, connMaxLifetime: time.Hour}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.maxOpenConns)
	db.SetMaxIdleConns(cfg.maxIdleConns)
	db.SetConnMaxLifetime(cfg.connMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if cfg.migrate {
		if err := Migrate(ctx, db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return NewPostgresMentorStore(db), nil
}

// NewPostgresMentorStore wraps an open connection.
func NewPostgresMentorStore(db *sqlx.DB) *PostgresMentorStore {
	return &PostgresMentorStore{db: db}
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to migrate db: %w", err)
	}
	return nil
}

func (s *PostgresMentorStore) TopCandidate(ctx context.Context, concern string, minScore float64) (model.MentorCandidate, bool, error) {
	start := time.Now()
	defer func() { metrics.RecordMentorQueryLatency(float64(time.Since(start).Microseconds()) / 1000) }()

	var c model.MentorCandidate
	err := s.db.GetContext(ctx, &c, topCandidateQuery, concern, minScore)
	if errors.Is(err, sql.ErrNoRows) {
		return model.MentorCandidate{}, false, nil
	}
	if err != nil {
		metrics.RecordErrorByComponent("repository", "query_failed")
		return model.MentorCandidate{}, false, fmt.Errorf("failed to query top mentor candidate: %w", err)
	}
	return c, true, nil
}

func (s *PostgresMentorStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, countQuery); err != nil {
		return 0, fmt.Errorf("failed to count mentor candidates: %w", err)
	}
	return n, nil
}

// Close releases the connection pool.
func (s *PostgresMentorStore) Close() error {
	return s.db.Close()
}
