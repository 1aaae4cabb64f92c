package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/szaher/chatrelay/internal/bot"
)

func TestParseUpdate(t *testing.T) {
	tests := []struct {
		name    string
		update  Update
		want    bot.Event
		skipped bool
	}{
		{
			name: "start command",
			update: Update{Message: &Message{
				Chat: Chat{ID: 42}, Text: "/start",
			}},
			want: bot.Event{ChatID: 42, Kind: bot.KindStart},
		},
		{
			name: "clear command",
			update: Update{Message: &Message{
				Chat: Chat{ID: 42}, Text: "/clear",
			}},
			want: bot.Event{ChatID: 42, Kind: bot.KindClear},
		},
		{
			name: "stats command",
			update: Update{Message: &Message{
				Chat: Chat{ID: 42}, Text: "/stats",
			}},
			want: bot.Event{ChatID: 42, Kind: bot.KindStats},
		},
		{
			name: "model command with argument",
			update: Update{Message: &Message{
				Chat: Chat{ID: 42}, Text: "/model llama3",
			}},
			want: bot.Event{ChatID: 42, Kind: bot.KindSetModel, ModelArg: "llama3"},
		},
		{
			name: "model command without argument",
			update: Update{Message: &Message{
				Chat: Chat{ID: 42}, Text: "/model",
			}},
			want: bot.Event{ChatID: 42, Kind: bot.KindSetModel},
		},
		{
			name: "command with bot mention",
			update: Update{Message: &Message{
				Chat: Chat{ID: 42}, Text: "/start@relaybot",
			}},
			want: bot.Event{ChatID: 42, Kind: bot.KindStart},
		},
		{
			name: "plain text",
			update: Update{Message: &Message{
				Chat: Chat{ID: 42}, Text: "hello there",
			}},
			want: bot.Event{ChatID: 42, Kind: bot.KindText, Text: "hello there"},
		},
		{
			name: "unknown command skipped",
			update: Update{Message: &Message{
				Chat: Chat{ID: 42}, Text: "/frobnicate",
			}},
			skipped: true,
		},
		{
			name:    "empty update skipped",
			update:  Update{},
			skipped: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseUpdate(tt.update)
			if tt.skipped {
				if ok {
					t.Errorf("parseUpdate = %+v, want skipped", got)
				}
				return
			}
			if !ok {
				t.Fatal("parseUpdate skipped a supported update")
			}
			if got != tt.want {
				t.Errorf("parseUpdate = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseUpdateVoice(t *testing.T) {
	ev, ok := parseUpdate(Update{Message: &Message{
		Chat:  Chat{ID: 42},
		Voice: &Voice{FileID: "abc", Duration: 125},
	}})
	if !ok {
		t.Fatal("parseUpdate skipped a voice update")
	}
	if ev.Kind != bot.KindVoice || ev.ChatID != 42 {
		t.Errorf("event = %+v, want voice for chat 42", ev)
	}
	if ev.Voice == nil || ev.Voice.FileID != "abc" || ev.Voice.Duration != 125*time.Second {
		t.Errorf("voice ref = %+v, want abc/125s", ev.Voice)
	}
}

func TestParseUpdateInlineQuery(t *testing.T) {
	ev, ok := parseUpdate(Update{InlineQuery: &InlineQuery{ID: "q1", Query: "hi!!"}})
	if !ok {
		t.Fatal("parseUpdate skipped an inline query")
	}
	if ev.Kind != bot.KindInline || ev.QueryID != "q1" || ev.Query != "hi!!" {
		t.Errorf("event = %+v, want inline q1", ev)
	}
}

func TestClientSend(t *testing.T) {
	var gotPath string
	var gotPayload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":77,"chat":{"id":42}}}`))
	}))
	defer server.Close()

	client := NewClient("123:token", WithBaseURL(server.URL))
	id, err := client.Send(context.Background(), 42, "hello")
	if err != nil {
		t.Fatalf("Send returned unexpected error: %v", err)
	}
	if id != 77 {
		t.Errorf("message id = %d, want 77", id)
	}
	if gotPath != "/bot123:token/sendMessage" {
		t.Errorf("path = %q, want sendMessage under bot token", gotPath)
	}
	if gotPayload["text"] != "hello" {
		t.Errorf("payload text = %v, want hello", gotPayload["text"])
	}
}

func TestClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	}))
	defer server.Close()

	client := NewClient("bad", WithBaseURL(server.URL))
	if _, err := client.Send(context.Background(), 42, "hello"); err == nil {
		t.Fatal("Send returned nil error for API failure")
	}
}

func TestClientFetchDownloadsArtifact(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/bot123:token/getFile", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true,"result":{"file_id":"abc","file_path":"voice/file_1.oga"}}`))
	})
	mux.HandleFunc("/file/bot123:token/voice/file_1.oga", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("opus bytes"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient("123:token", WithBaseURL(server.URL))
	path, err := client.Fetch(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Fetch returned unexpected error: %v", err)
	}
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fetched artifact: %v", err)
	}
	if string(data) != "opus bytes" {
		t.Errorf("artifact content = %q, want %q", data, "opus bytes")
	}
}

func TestClientGetUpdates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true,"result":[
			{"update_id":10,"message":{"message_id":1,"chat":{"id":42},"text":"hi"}},
			{"update_id":11,"inline_query":{"id":"q1","query":"x!!"}}
		]}`))
	}))
	defer server.Close()

	client := NewClient("123:token", WithBaseURL(server.URL))
	updates, err := client.GetUpdates(context.Background(), 0, 30)
	if err != nil {
		t.Fatalf("GetUpdates returned unexpected error: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("updates = %d, want 2", len(updates))
	}
	if updates[0].Message == nil || updates[0].Message.Text != "hi" {
		t.Errorf("updates[0] = %+v, want text message", updates[0])
	}
	if updates[1].InlineQuery == nil || updates[1].InlineQuery.ID != "q1" {
		t.Errorf("updates[1] = %+v, want inline query", updates[1])
	}
}
