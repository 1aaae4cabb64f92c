package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/szaher/chatrelay/internal/bot"
)

// Client talks to the Telegram Bot API. It implements bot.Replier and
// bot.MediaFetcher.
type Client struct {
	token      string
	apiBase    string
	fileBase   string
	httpClient *http.Client
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL overrides the API host, used by tests.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		u = strings.TrimRight(u, "/")
		c.apiBase = u + "/bot" + c.token
		c.fileBase = u + "/file/bot" + c.token
	}
}

// WithTransportHTTPClient sets a custom HTTP client.
func WithTransportHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a Bot API client for the given auth token.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		token:      token,
		apiBase:    "https://api.telegram.org/bot" + token,
		fileBase:   "https://api.telegram.org/file/bot" + token,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// call posts a JSON payload to a Bot API method and decodes the result
// field into out (when out is non-nil).
func (c *Client) call(ctx context.Context, method string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram %s: marshal: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiBase+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram %s: build request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("telegram %s: read response: %w", method, err)
	}

	var envelope struct {
		apiResponse
		Result json.RawMessage `json:"result,omitempty"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("telegram %s: decode response (status %d): %w", method, resp.StatusCode, err)
	}
	if !envelope.OK {
		return fmt.Errorf("telegram %s: api error %d: %s", method, envelope.ErrorCode, envelope.Description)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}

// GetMe returns the bot's own identity. Used at startup to verify the
// auth token before entering the poll loop.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var u User
	if err := c.call(ctx, "getMe", struct{}{}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUpdates long-polls for inbound updates after offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error) {
	payload := map[string]any{
		"offset":  offset,
		"timeout": timeoutSec,
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// Send delivers a new message and returns its message identifier.
func (c *Client) Send(ctx context.Context, chatID int64, text string) (int64, error) {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	var msg Message
	if err := c.call(ctx, "sendMessage", payload, &msg); err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// Edit replaces the text of a previously sent message.
func (c *Client) Edit(ctx context.Context, chatID, messageID int64, text string) error {
	payload := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}
	return c.call(ctx, "editMessageText", payload, nil)
}

// AnswerInline answers an inline query with article suggestions.
func (c *Client) AnswerInline(ctx context.Context, queryID string, results []bot.InlineResult) error {
	articles := make([]inlineArticle, 0, len(results))
	for _, r := range results {
		articles = append(articles, inlineArticle{
			Type:                "article",
			ID:                  r.ID,
			Title:               r.Title,
			InputMessageContent: inlineContent{MessageText: r.Content},
		})
	}
	payload := map[string]any{
		"inline_query_id": queryID,
		"results":         articles,
	}
	return c.call(ctx, "answerInlineQuery", payload, nil)
}

// Fetch downloads a media artifact to a temporary file and returns its
// path. The caller (via the transcription adapter) owns cleanup.
func (c *Client) Fetch(ctx context.Context, fileID string) (string, error) {
	var f File
	if err := c.call(ctx, "getFile", map[string]any{"file_id": fileID}, &f); err != nil {
		return "", err
	}
	if f.FilePath == "" {
		return "", fmt.Errorf("telegram getFile: empty file_path for %s", fileID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.fileBase+"/"+f.FilePath, nil)
	if err != nil {
		return "", fmt.Errorf("telegram download: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("telegram download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("telegram download: unexpected status %d", resp.StatusCode)
	}

	ext := filepath.Ext(f.FilePath)
	if ext == "" {
		ext = ".ogg"
	}
	tmp, err := os.CreateTemp("", "chatrelay-voice-*"+ext)
	if err != nil {
		return "", fmt.Errorf("telegram download: temp file: %w", err)
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("telegram download: write %s: %w", tmp.Name(), err)
	}
	return tmp.Name(), nil
}
