package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// WhisperClient implements Transcriber using the OpenAI audio
// transcription API.
type WhisperClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// WhisperOption configures the whisper client.
type WhisperOption func(*WhisperClient)

// WithWhisperHTTPClient sets a custom HTTP client.
func WithWhisperHTTPClient(c *http.Client) WhisperOption {
	return func(w *WhisperClient) { w.httpClient = c }
}

// WithWhisperBaseURL overrides the provider endpoint.
func WithWhisperBaseURL(u string) WhisperOption {
	return func(w *WhisperClient) { w.baseURL = strings.TrimRight(u, "/") }
}

// NewWhisperClient creates a transcription client for the OpenAI API.
func NewWhisperClient(apiKey, model string, opts ...WhisperOption) *WhisperClient {
	if model == "" {
		model = "whisper-1"
	}
	c := &WhisperClient{
		baseURL:    "https://api.openai.com/v1",
		apiKey:     apiKey,
		model:      model,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type whisperResponse struct {
	Text  string `json:"text"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Transcribe posts the audio file to the provider and returns its text.
func (c *WhisperClient) Transcribe(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", ErrTranscriptionFailed, path, err)
	}
	defer file.Close()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("%w: build form: %v", ErrTranscriptionFailed, err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("%w: read %s: %v", ErrTranscriptionFailed, path, err)
	}
	if err := form.WriteField("model", c.model); err != nil {
		return "", fmt.Errorf("%w: build form: %v", ErrTranscriptionFailed, err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("%w: build form: %v", ErrTranscriptionFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrTranscriptionFailed, err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrTranscriptionFailed, err)
	}

	var parsed whisperResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode response (status %d): %v", ErrTranscriptionFailed, resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%w: %s: %s", ErrTranscriptionFailed, parsed.Error.Type, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: unexpected status %d", ErrTranscriptionFailed, resp.StatusCode)
	}
	return parsed.Text, nil
}
