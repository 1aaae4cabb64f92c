// Package bot implements the session orchestrator: the component that owns
// per-conversation state, decides what context each completion call gets,
// accounts for resource usage, and folds voice transcripts back into the
// conversational stream.
package bot

import (
	"context"
	"time"
)

// Kind identifies an inbound event type.
type Kind string

const (
	KindStart    Kind = "start"
	KindClear    Kind = "clear"
	KindStats    Kind = "stats"
	KindSetModel Kind = "set-model"
	KindText     Kind = "text"
	KindVoice    Kind = "voice"
	KindInline   Kind = "inline-query"
)

// VoiceRef points at a fetchable audio artifact on the transport.
type VoiceRef struct {
	FileID   string
	Duration time.Duration
}

// Event is the minimal inbound shape the orchestrator requires from the
// messaging transport.
type Event struct {
	ChatID   int64
	Kind     Kind
	Text     string    // text payload
	ModelArg string    // optional set-model argument
	Voice    *VoiceRef // voice payload
	QueryID  string    // inline query identifier
	Query    string    // inline query text
}

// InlineResult is one suggestion item answering an inline query.
type InlineResult struct {
	ID      string
	Title   string
	Content string
}

// Replier is the outbound reply-text emission boundary.
type Replier interface {
	// Send delivers a new message and returns its transport identifier.
	Send(ctx context.Context, chatID int64, text string) (int64, error)

	// Edit replaces the text of a previously sent message.
	Edit(ctx context.Context, chatID, messageID int64, text string) error

	// AnswerInline answers an inline query with suggestion items.
	AnswerInline(ctx context.Context, queryID string, results []InlineResult) error
}

// MediaFetcher downloads a transport audio artifact to a local temporary
// file and returns its path. The orchestrator hands the path to the
// transcription adapter, which owns its cleanup.
type MediaFetcher interface {
	Fetch(ctx context.Context, fileID string) (string, error)
}

// Transcriber converts a local audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}
