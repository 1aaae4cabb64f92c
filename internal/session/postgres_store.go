package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists sessions in Postgres, one row per conversation
// identity with the message history as a JSONB document.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the sessions table if it does not exist. Called once
// at startup; a failure here aborts process initialization.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sessions (
			id         BIGINT PRIMARY KEY,
			messages   JSONB NOT NULL DEFAULT '[]',
			usage      BIGINT NOT NULL DEFAULT 0,
			model      TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("ensure sessions schema: %w", err)
	}
	return nil
}

// Get retrieves a session by conversation identity.
func (s *PostgresStore) Get(ctx context.Context, id int64) (*Session, error) {
	var (
		sess Session
		raw  []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, messages, usage, model, created_at, updated_at
		 FROM sessions WHERE id = $1`, id,
	).Scan(&sess.ID, &raw, &sess.Usage, &sess.Model, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %d: %w", id, err)
	}

	if err := json.Unmarshal(raw, &sess.Messages); err != nil {
		return nil, fmt.Errorf("decode session %d messages: %w", id, err)
	}
	return &sess, nil
}

// Create inserts a new session record.
func (s *PostgresStore) Create(ctx context.Context, sess *Session) error {
	raw, err := json.Marshal(sess.Messages)
	if err != nil {
		return fmt.Errorf("encode session %d messages: %w", sess.ID, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions (id, messages, usage, model, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sess.ID, raw, sess.Usage, sess.Model, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return ErrAlreadyExists
		}
		return fmt.Errorf("create session %d: %w", sess.ID, err)
	}
	return nil
}

// Replace overwrites the stored record unconditionally.
func (s *PostgresStore) Replace(ctx context.Context, sess *Session) error {
	raw, err := json.Marshal(sess.Messages)
	if err != nil {
		return fmt.Errorf("encode session %d messages: %w", sess.ID, err)
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE sessions
		 SET messages = $2, usage = $3, model = $4, updated_at = $5
		 WHERE id = $1`,
		sess.ID, raw, sess.Usage, sess.Model, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("replace session %d: %w", sess.ID, err)
	}
	return nil
}
