package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Provider identifies a hosted completion provider.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// localAPIKey is the sentinel credential sent to self-hosted endpoints,
// which accept any bearer token.
const localAPIKey = "local"

// Backend is a tagged variant describing where a model is served.
type Backend interface {
	backend()
}

// RemoteBackend is a hosted provider reached with a real API key.
type RemoteBackend struct {
	Provider Provider
	BaseURL  string // empty means the provider default
	APIKey   string
}

func (RemoteBackend) backend() {}

// LocalBackend is a self-hosted OpenAI-compatible endpoint. Completions
// served locally are free regardless of token count.
type LocalBackend struct {
	Endpoint string
}

func (LocalBackend) backend() {}

// Pricing is the per-1000-token cost of a priced backend.
type Pricing struct {
	Input  decimal.Decimal
	Output decimal.Decimal
}

// Free reports whether the pricing charges nothing in either direction.
func (p Pricing) Free() bool {
	return p.Input.IsZero() && p.Output.IsZero()
}

// Descriptor maps a model identifier to its backend and cost model.
type Descriptor struct {
	ID      string
	Backend Backend
	Pricing Pricing
}

// Free reports whether completions on this model cost nothing.
func (d Descriptor) Free() bool {
	if _, ok := d.Backend.(LocalBackend); ok {
		return true
	}
	return d.Pricing.Free()
}

type registryEntry struct {
	desc   Descriptor
	client Client
}

// Registry resolves model identifiers to backends and dispatches
// completion calls. The catalog can be swapped at runtime; lookups are
// safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registryEntry
	order   []string

	timeout   time.Duration
	maxTokens int
	factory   func(Descriptor) Client
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithTimeout bounds each completion call. Zero means no bound.
func WithTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.timeout = d }
}

// WithMaxTokens caps the response length requested from backends.
func WithMaxTokens(n int) RegistryOption {
	return func(r *Registry) { r.maxTokens = n }
}

// WithClientFactory overrides client construction, used by tests to
// substitute mocks.
func WithClientFactory(f func(Descriptor) Client) RegistryOption {
	return func(r *Registry) { r.factory = f }
}

// NewRegistry builds a registry from a model catalog.
func NewRegistry(catalog []Descriptor, opts ...RegistryOption) (*Registry, error) {
	r := &Registry{
		timeout:   60 * time.Second,
		maxTokens: 4096,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.factory == nil {
		r.factory = defaultClient
	}
	if err := r.Swap(catalog); err != nil {
		return nil, err
	}
	return r, nil
}

// Swap atomically replaces the model catalog. In-flight completions keep
// the client they resolved.
func (r *Registry) Swap(catalog []Descriptor) error {
	if len(catalog) == 0 {
		return fmt.Errorf("registry: empty model catalog")
	}

	entries := make(map[string]registryEntry, len(catalog))
	order := make([]string, 0, len(catalog))
	for _, d := range catalog {
		if d.ID == "" {
			return fmt.Errorf("registry: model with empty identifier")
		}
		if _, dup := entries[d.ID]; dup {
			return fmt.Errorf("registry: duplicate model %q", d.ID)
		}
		if d.Backend == nil {
			return fmt.Errorf("registry: model %q has no backend", d.ID)
		}
		entries[d.ID] = registryEntry{desc: d, client: r.factory(d)}
		order = append(order, d.ID)
	}

	r.mu.Lock()
	r.entries = entries
	r.order = order
	r.mu.Unlock()
	return nil
}

// Resolve returns the descriptor for a model identifier.
func (r *Registry) Resolve(modelID string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[modelID]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownModel, modelID)
	}
	return e.desc, nil
}

// IDs returns the catalog's model identifiers in declaration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Complete dispatches the conversation to the model's backend and returns
// the reply with provider-reported usage. Failures surface as
// ErrBackendUnavailable; no retry is attempted.
func (r *Registry) Complete(ctx context.Context, modelID string, messages []Message) (*ChatResponse, error) {
	r.mu.RLock()
	e, ok := r.entries[modelID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, modelID)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	resp, err := e.client.Chat(ctx, ChatRequest{
		Model:     modelID,
		Messages:  messages,
		MaxTokens: r.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return resp, nil
}

func defaultClient(d Descriptor) Client {
	switch b := d.Backend.(type) {
	case LocalBackend:
		return NewOpenAICompatibleClient(b.Endpoint, localAPIKey)
	case RemoteBackend:
		switch b.Provider {
		case ProviderAnthropic:
			return NewAnthropicClient(b.APIKey)
		default:
			if b.BaseURL != "" {
				return NewOpenAICompatibleClient(b.BaseURL, b.APIKey)
			}
			return NewOpenAIClient(b.APIKey)
		}
	default:
		return NewOpenAIClient("")
	}
}
