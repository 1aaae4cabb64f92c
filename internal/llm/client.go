// Package llm defines the completion client abstraction and the model
// backend registry for the relay.
package llm

import (
	"context"
	"errors"
)

// Role represents a message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TokenUsage tracks provider-reported token consumption for a single call.
// The relay trusts these figures as ground truth and never recounts locally.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns the sum of input and output tokens.
func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// ChatRequest contains parameters for a completion call.
type ChatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
}

// ChatResponse contains the model's reply to a chat request.
type ChatResponse struct {
	Content string     `json:"content"`
	Usage   TokenUsage `json:"usage"`
}

// Client is the interface for completion backends.
type Client interface {
	// Chat sends a request and returns the complete response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ErrBackendUnavailable indicates the completion backend could not be
// reached or did not answer in time. The call is not retried.
var ErrBackendUnavailable = errors.New("completion backend unavailable")

// ErrUnknownModel indicates a model identifier absent from the catalog.
var ErrUnknownModel = errors.New("unknown model")
