// Package session defines the durable conversation record and its store.
package session

import (
	"time"

	"github.com/szaher/chatrelay/internal/llm"
)

// Turn is one message in a conversation. Model and Tokens are present only
// on turns whose cost was tracked; absent annotations mean zero cost for
// display purposes.
type Turn struct {
	Role    llm.Role `json:"role"`
	Content string   `json:"content"`
	Model   string   `json:"model,omitempty"`
	Tokens  int      `json:"tokens,omitempty"`
}

// Session is the durable record of one conversation identity.
//
// Usage only ever increases; it accumulates resource units (backend tokens
// or synthetic transcription units) of completed operations and is never
// recomputed from Messages. History is unbounded: no trimming or windowing
// policy is applied, which is a known capacity risk.
type Session struct {
	ID        int64     `json:"id"`
	Messages  []Turn    `json:"messages"`
	Usage     int64     `json:"usage"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a fresh session with empty history and zero usage.
func New(id int64, model string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		Messages:  []Turn{},
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// History converts the stored turns into backend messages.
func (s *Session) History() []llm.Message {
	msgs := make([]llm.Message, 0, len(s.Messages))
	for _, t := range s.Messages {
		msgs = append(msgs, llm.Message{Role: t.Role, Content: t.Content})
	}
	return msgs
}

// Clear empties the message history. Usage and the selected model are
// preserved.
func (s *Session) Clear() {
	s.Messages = []Turn{}
	s.UpdatedAt = time.Now().UTC()
}

// Append adds a turn to the history.
func (s *Session) Append(t Turn) {
	s.Messages = append(s.Messages, t)
	s.UpdatedAt = time.Now().UTC()
}
