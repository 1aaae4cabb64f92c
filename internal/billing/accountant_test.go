package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/szaher/chatrelay/internal/llm"
	"github.com/szaher/chatrelay/internal/session"
)

func testResolver(t *testing.T) Resolver {
	t.Helper()
	reg, err := llm.NewRegistry([]llm.Descriptor{
		{
			ID:      "gpt-3.5-turbo",
			Backend: llm.RemoteBackend{Provider: llm.ProviderOpenAI, APIKey: "sk"},
			Pricing: llm.Pricing{
				Input:  decimal.NewFromFloat(0.0015),
				Output: decimal.NewFromFloat(0.002),
			},
		},
		{
			ID:      "llama3",
			Backend: llm.LocalBackend{Endpoint: "http://localhost:11434/v1"},
		},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func TestAccumulate(t *testing.T) {
	acc := NewAccountant(testResolver(t), 6)
	sess := session.New(1, "gpt-3.5-turbo")

	usage, err := acc.Accumulate(sess, 8)
	if err != nil {
		t.Fatalf("Accumulate: %v", err)
	}
	if usage != 8 || sess.Usage != 8 {
		t.Errorf("usage = %d (session %d), want 8", usage, sess.Usage)
	}

	usage, err = acc.Accumulate(sess, 0)
	if err != nil {
		t.Fatalf("Accumulate zero: %v", err)
	}
	if usage != 8 {
		t.Errorf("usage after zero delta = %d, want 8", usage)
	}
}

func TestAccumulateRejectsNegativeDelta(t *testing.T) {
	acc := NewAccountant(testResolver(t), 6)
	sess := session.New(1, "gpt-3.5-turbo")
	sess.Usage = 10

	if _, err := acc.Accumulate(sess, -3); err == nil {
		t.Fatal("Accumulate accepted a negative delta")
	}
	if sess.Usage != 10 {
		t.Errorf("usage = %d after rejected delta, want 10", sess.Usage)
	}
}

func TestTranscriptionUnits(t *testing.T) {
	acc := NewAccountant(testResolver(t), 6)

	tests := []struct {
		name     string
		duration time.Duration
		want     int64
	}{
		{name: "zero duration", duration: 0, want: 0},
		{name: "under a minute rounds up", duration: 10 * time.Second, want: 6},
		{name: "exact minute", duration: time.Minute, want: 6},
		{name: "125 seconds rounds to three minutes", duration: 125 * time.Second, want: 18},
		{name: "exact five minutes", duration: 5 * time.Minute, want: 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := acc.TranscriptionUnits(tt.duration); got != tt.want {
				t.Errorf("TranscriptionUnits(%v) = %d, want %d", tt.duration, got, tt.want)
			}
		})
	}
}

func TestEstimateCost(t *testing.T) {
	acc := NewAccountant(testResolver(t), 6)

	turns := []session.Turn{
		{Role: llm.RoleUser, Content: "hello", Model: "gpt-3.5-turbo", Tokens: 1000},
		{Role: llm.RoleAssistant, Content: "hi", Model: "gpt-3.5-turbo", Tokens: 500},
		// Unannotated turn from an early iteration: zero cost.
		{Role: llm.RoleUser, Content: "untracked"},
	}

	got := acc.EstimateCost(turns)
	// 1000/1000*0.0015 + 500/1000*0.002 = 0.0015 + 0.001
	want := decimal.NewFromFloat(0.0025)
	if !got.Equal(want) {
		t.Errorf("EstimateCost = %s, want %s", got, want)
	}
}

func TestEstimateCostFreeTierIsZero(t *testing.T) {
	acc := NewAccountant(testResolver(t), 6)

	turns := []session.Turn{
		{Role: llm.RoleUser, Content: "q", Model: "llama3", Tokens: 100000},
		{Role: llm.RoleAssistant, Content: "a", Model: "llama3", Tokens: 250000},
	}

	if got := acc.EstimateCost(turns); !got.IsZero() {
		t.Errorf("EstimateCost over free-tier history = %s, want 0", got)
	}
}

func TestEstimateCostUnknownModelContributesZero(t *testing.T) {
	acc := NewAccountant(testResolver(t), 6)

	turns := []session.Turn{
		{Role: llm.RoleAssistant, Content: "a", Model: "retired-model", Tokens: 9999},
	}

	if got := acc.EstimateCost(turns); !got.IsZero() {
		t.Errorf("EstimateCost with unpriced model = %s, want 0", got)
	}
}
