// Package sqldb is the SQL storage.Store. It runs on SQLite (modernc, no cgo)
// and PostgreSQL (pgx stdlib driver).
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/devgenius/artifact-gateway/internal/domain"
	"github.com/devgenius/artifact-gateway/internal/storage"
	"github.com/devgenius/artifact-gateway/internal/storage/dialect"
)

// Store implements storage.Store on database/sql.
type Store struct {
	db      *sqlx.DB
	dialect dialect.Dialect
}

var _ storage.Store = (*Store)(nil)

// Config holds database connection configuration.
type Config struct {
	Driver string // sqlite, postgres or pgx
	DSN    string
}

// New opens the database and creates the schema.
func New(cfg Config) (*Store, error) {
	d, err := dialect.FromDriverName(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("unsupported database driver: %w", err)
	}

	db, err := sqlx.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, stmt := range d.PragmaStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	store := &Store{db: db, dialect: d}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// NewSQLite opens a SQLite store at dsn.
func NewSQLite(dsn string) (*Store, error) {
	return New(Config{Driver: "sqlite", DSN: dsn})
}

// DB returns the underlying handle.
func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initSchema() error {
	ts := s.dialect.TimestampType()
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	prompt TEXT NOT NULL,
	response TEXT NOT NULL,
	created_at ` + ts + ` NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS feedback (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	use_case TEXT NOT NULL,
	model_id TEXT NOT NULL,
	response TEXT NOT NULL,
	sentiment INTEGER,
	explanation TEXT NOT NULL DEFAULT '',
	created_at ` + ts + ` NOT NULL,
	rated_at ` + ts + `
)`,
		`CREATE TABLE IF NOT EXISTS sessions (
	conversation_id TEXT PRIMARY KEY,
	user_name TEXT NOT NULL DEFAULT '',
	user_email TEXT NOT NULL DEFAULT '',
	bundle_url TEXT NOT NULL DEFAULT '',
	started_at ` + ts + ` NOT NULL,
	updated_at ` + ts + `
)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_conversation ON conversations(conversation_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_conversation ON feedback(conversation_id, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

func (s *Store) SaveConversation(ctx context.Context, rec *domain.ConversationRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO conversations (id, conversation_id, prompt, response, created_at)
	VALUES (:id, :conversation_id, :prompt, :response, :created_at)`, rec)
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

func (s *Store) ListConversation(ctx context.Context, conversationID string) ([]domain.ConversationRecord, error) {
	var recs []domain.ConversationRecord
	query := s.dialect.Rebind(`SELECT id, conversation_id, prompt, response, created_at
	FROM conversations WHERE conversation_id = ? ORDER BY created_at ASC`)
	if err := s.db.SelectContext(ctx, &recs, query, conversationID); err != nil {
		return nil, fmt.Errorf("failed to list conversation: %w", err)
	}
	return recs, nil
}

const feedbackColumns = `id, conversation_id, use_case, model_id, response, sentiment, explanation, created_at, rated_at`

func (s *Store) CreateFeedback(ctx context.Context, fb *domain.Feedback) error {
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO feedback (`+feedbackColumns+`)
	VALUES (:id, :conversation_id, :use_case, :model_id, :response, :sentiment, :explanation, :created_at, :rated_at)`, fb)
	if err != nil {
		return fmt.Errorf("failed to create feedback: %w", err)
	}
	return nil
}

func (s *Store) RecordFeedback(ctx context.Context, id string, sentiment domain.Sentiment, explanation string) (*domain.Feedback, error) {
	if err := storage.ValidateRating(sentiment, explanation); err != nil {
		return nil, err
	}
	query := s.dialect.Rebind(`UPDATE feedback SET sentiment = ?, explanation = ?, rated_at = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, int(sentiment), explanation, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to record feedback: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, storage.ErrNotFound
	}
	return s.GetFeedback(ctx, id)
}

func (s *Store) GetFeedback(ctx context.Context, id string) (*domain.Feedback, error) {
	var fb domain.Feedback
	query := s.dialect.Rebind(`SELECT ` + feedbackColumns + ` FROM feedback WHERE id = ?`)
	if err := s.db.GetContext(ctx, &fb, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}
	return &fb, nil
}

func (s *Store) ListFeedback(ctx context.Context, conversationID string) ([]domain.Feedback, error) {
	var out []domain.Feedback
	query := s.dialect.Rebind(`SELECT ` + feedbackColumns + ` FROM feedback
	WHERE conversation_id = ? ORDER BY created_at ASC`)
	if err := s.db.SelectContext(ctx, &out, query, conversationID); err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	return out, nil
}

func (s *Store) SaveSession(ctx context.Context, rec *domain.SessionRecord) error {
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	query := `INSERT INTO sessions (conversation_id, user_name, user_email, bundle_url, started_at, updated_at)
	VALUES (:conversation_id, :user_name, :user_email, :bundle_url, :started_at, :updated_at) ` +
		s.dialect.UpsertClause("conversation_id", []string{"user_name", "user_email"})
	if _, err := s.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *Store) UpdateSessionBundle(ctx context.Context, conversationID, bundleURL string) error {
	query := s.dialect.Rebind(`UPDATE sessions SET bundle_url = ?, updated_at = ? WHERE conversation_id = ?`)
	res, err := s.db.ExecContext(ctx, query, bundleURL, time.Now().UTC(), conversationID)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, conversationID string) (*domain.SessionRecord, error) {
	var rec domain.SessionRecord
	query := s.dialect.Rebind(`SELECT conversation_id, user_name, user_email, bundle_url, started_at, updated_at
	FROM sessions WHERE conversation_id = ?`)
	if err := s.db.GetContext(ctx, &rec, query, conversationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &rec, nil
}
