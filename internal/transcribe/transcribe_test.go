package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

// fakeConverter returns a fixed artifact path or error.
type fakeConverter struct {
	out string
	err error
}

func (f *fakeConverter) Convert(_ context.Context, _ string) (string, error) {
	return f.out, f.err
}

// fakeTranscriber returns a fixed transcript or error.
type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ string) (string, error) {
	return f.text, f.err
}

func writeTempAudio(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("not really audio"), 0o600); err != nil {
		t.Fatalf("write temp audio: %v", err)
	}
	return path
}

func TestAdapterTranscribe(t *testing.T) {
	input := writeTempAudio(t, "voice.ogg")
	converted := writeTempAudio(t, "voice.mp3")

	adapter := NewAdapter(
		&fakeConverter{out: converted},
		&fakeTranscriber{text: "hello world"},
	)

	text, err := adapter.Transcribe(context.Background(), input)
	if err != nil {
		t.Fatalf("Transcribe returned unexpected error: %v", err)
	}
	if text != "hello world" {
		t.Errorf("text = %q, want %q", text, "hello world")
	}

	for _, path := range []string{input, converted} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("artifact %s was not cleaned up", path)
		}
	}
}

func TestAdapterCleansUpOnConversionFailure(t *testing.T) {
	input := writeTempAudio(t, "voice.ogg")

	adapter := NewAdapter(
		&fakeConverter{err: ErrConversionFailed},
		&fakeTranscriber{text: "unreachable"},
	)

	_, err := adapter.Transcribe(context.Background(), input)
	if !errors.Is(err, ErrConversionFailed) {
		t.Errorf("Transcribe error = %v, want ErrConversionFailed", err)
	}

	if _, err := os.Stat(input); !os.IsNotExist(err) {
		t.Errorf("input %s was not cleaned up after conversion failure", input)
	}
}

func TestAdapterCleansUpOnTranscriptionFailure(t *testing.T) {
	input := writeTempAudio(t, "voice.ogg")
	converted := writeTempAudio(t, "voice.mp3")

	adapter := NewAdapter(
		&fakeConverter{out: converted},
		&fakeTranscriber{err: ErrTranscriptionFailed},
	)

	_, err := adapter.Transcribe(context.Background(), input)
	if !errors.Is(err, ErrTranscriptionFailed) {
		t.Errorf("Transcribe error = %v, want ErrTranscriptionFailed", err)
	}

	for _, path := range []string{input, converted} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("artifact %s was not cleaned up after transcription failure", path)
		}
	}
}

func TestWhisperClientTranscribe(t *testing.T) {
	var gotModel string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotModel = r.FormValue("model")
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file part: %v", err)
		}
		_ = json.NewEncoder(w).Encode(whisperResponse{Text: "transcribed text"})
	}))
	defer server.Close()

	client := NewWhisperClient("sk-test", "whisper-1", WithWhisperBaseURL(server.URL))
	path := writeTempAudio(t, "clip.mp3")

	text, err := client.Transcribe(context.Background(), path)
	if err != nil {
		t.Fatalf("Transcribe returned unexpected error: %v", err)
	}
	if text != "transcribed text" {
		t.Errorf("text = %q, want %q", text, "transcribed text")
	}
	if gotModel != "whisper-1" {
		t.Errorf("model = %q, want %q", gotModel, "whisper-1")
	}
}

func TestWhisperClientProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"file too large","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	client := NewWhisperClient("sk-test", "whisper-1", WithWhisperBaseURL(server.URL))
	path := writeTempAudio(t, "clip.mp3")

	_, err := client.Transcribe(context.Background(), path)
	if !errors.Is(err, ErrTranscriptionFailed) {
		t.Errorf("Transcribe error = %v, want ErrTranscriptionFailed", err)
	}
}

func TestFFmpegConverterMissingBinary(t *testing.T) {
	conv := NewFFmpegConverter("definitely-not-ffmpeg-xyz", 0)
	_, err := conv.Convert(context.Background(), "in.ogg")
	if !errors.Is(err, ErrConversionFailed) {
		t.Errorf("Convert error = %v, want ErrConversionFailed", err)
	}
}
