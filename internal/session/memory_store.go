package session

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory session store, used by tests and by the
// memory store backend for local development.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]Session
}

// NewMemoryStore creates an in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]Session)}
}

// Get retrieves a session by conversation identity.
func (s *MemoryStore) Get(_ context.Context, id int64) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	copy := sess
	copy.Messages = append([]Turn(nil), sess.Messages...)
	return &copy, nil
}

// Create inserts a new session record.
func (s *MemoryStore) Create(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; ok {
		return ErrAlreadyExists
	}
	s.sessions[sess.ID] = s.snapshot(sess)
	return nil
}

// Replace overwrites the stored record unconditionally.
func (s *MemoryStore) Replace(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID] = s.snapshot(sess)
	return nil
}

func (s *MemoryStore) snapshot(sess *Session) Session {
	copy := *sess
	copy.Messages = append([]Turn(nil), sess.Messages...)
	return copy
}
