package session

import (
	"context"
	"errors"
)

// ErrNotFound indicates no session record exists for the identity.
var ErrNotFound = errors.New("session not found")

// ErrAlreadyExists indicates a create collided with an existing record.
var ErrAlreadyExists = errors.New("session already exists")

// Store manages durable session records. Replace is an unconditional
// whole-record overwrite; no optimistic concurrency token is used, so
// callers must serialize read-modify-write cycles per identity themselves.
type Store interface {
	// Get retrieves a session by conversation identity.
	Get(ctx context.Context, id int64) (*Session, error)

	// Create inserts a new session record. Fails with ErrAlreadyExists
	// if a record for the identity is present.
	Create(ctx context.Context, s *Session) error

	// Replace overwrites the stored record with the given state.
	Replace(ctx context.Context, s *Session) error
}
