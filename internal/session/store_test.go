package session

import (
	"context"
	"errors"
	"testing"

	"github.com/szaher/chatrelay/internal/llm"
)

func TestMemoryStoreCreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess := New(42, "gpt-3.5-turbo")
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create returned unexpected error: %v", err)
	}

	got, err := store.Get(ctx, 42)
	if err != nil {
		t.Fatalf("Get returned unexpected error: %v", err)
	}
	if got.ID != 42 {
		t.Errorf("ID = %d, want 42", got.ID)
	}
	if got.Usage != 0 {
		t.Errorf("Usage = %d, want 0", got.Usage)
	}
	if len(got.Messages) != 0 {
		t.Errorf("Messages length = %d, want 0", len(got.Messages))
	}
	if got.Model != "gpt-3.5-turbo" {
		t.Errorf("Model = %q, want %q", got.Model, "gpt-3.5-turbo")
	}
}

func TestMemoryStoreCreateDuplicate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, New(1, "m")); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	err := store.Create(ctx, New(1, "m"))
	if !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("second Create error = %v, want ErrAlreadyExists", err)
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Get(context.Background(), 99)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(99) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreReplaceOverwrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess := New(7, "m")
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create: %v", err)
	}

	sess.Append(Turn{Role: llm.RoleUser, Content: "hello"})
	sess.Usage = 8
	if err := store.Replace(ctx, sess); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	got, err := store.Get(ctx, 7)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "hello" {
		t.Errorf("Messages = %+v, want single %q turn", got.Messages, "hello")
	}
	if got.Usage != 8 {
		t.Errorf("Usage = %d, want 8", got.Usage)
	}
}

// Replace has last-writer-wins semantics: no concurrency token is checked,
// so a stale writer silently discards a concurrent change.
func TestMemoryStoreReplaceLastWriterWins(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, New(5, "m")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Two writers read the same zero-usage state.
	a, _ := store.Get(ctx, 5)
	b, _ := store.Get(ctx, 5)

	a.Append(Turn{Role: llm.RoleUser, Content: "from a"})
	a.Usage = 3
	if err := store.Replace(ctx, a); err != nil {
		t.Fatalf("Replace a: %v", err)
	}

	b.Append(Turn{Role: llm.RoleUser, Content: "from b"})
	b.Usage = 4
	if err := store.Replace(ctx, b); err != nil {
		t.Fatalf("Replace b: %v", err)
	}

	got, _ := store.Get(ctx, 5)
	if got.Usage != 4 {
		t.Errorf("Usage = %d, want 4 (last writer)", got.Usage)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "from b" {
		t.Errorf("Messages = %+v, want only the last writer's turn", got.Messages)
	}
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess := New(3, "m")
	sess.Append(Turn{Role: llm.RoleUser, Content: "original"})
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, _ := store.Get(ctx, 3)
	got.Messages[0].Content = "mutated"

	again, _ := store.Get(ctx, 3)
	if again.Messages[0].Content != "original" {
		t.Error("mutating a Get result leaked into the store")
	}
}

func TestSessionClearPreservesUsageAndModel(t *testing.T) {
	sess := New(1, "gpt-4")
	sess.Append(Turn{Role: llm.RoleUser, Content: "hi"})
	sess.Append(Turn{Role: llm.RoleAssistant, Content: "hello", Model: "gpt-4", Tokens: 9})
	sess.Usage = 12

	sess.Clear()

	if len(sess.Messages) != 0 {
		t.Errorf("Messages length after Clear = %d, want 0", len(sess.Messages))
	}
	if sess.Usage != 12 {
		t.Errorf("Usage after Clear = %d, want 12", sess.Usage)
	}
	if sess.Model != "gpt-4" {
		t.Errorf("Model after Clear = %q, want %q", sess.Model, "gpt-4")
	}
}

func TestSessionHistory(t *testing.T) {
	sess := New(1, "m")
	sess.Append(Turn{Role: llm.RoleUser, Content: "q"})
	sess.Append(Turn{Role: llm.RoleAssistant, Content: "a", Model: "m", Tokens: 4})

	hist := sess.History()
	if len(hist) != 2 {
		t.Fatalf("History length = %d, want 2", len(hist))
	}
	if hist[0].Role != llm.RoleUser || hist[0].Content != "q" {
		t.Errorf("History[0] = %+v, want user %q", hist[0], "q")
	}
	if hist[1].Role != llm.RoleAssistant || hist[1].Content != "a" {
		t.Errorf("History[1] = %+v, want assistant %q", hist[1], "a")
	}
}
