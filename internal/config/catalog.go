package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/szaher/chatrelay/internal/llm"
)

// catalogFile is the on-disk YAML structure of the model catalog.
type catalogFile struct {
	Models []catalogModel `yaml:"models"`
}

type catalogModel struct {
	ID          string `yaml:"id"`
	Backend     string `yaml:"backend"` // "remote" or "local"
	Provider    string `yaml:"provider,omitempty"`
	BaseURL     string `yaml:"base_url,omitempty"`
	APIKey      string `yaml:"api_key,omitempty"` // literal or env(VAR)
	Endpoint    string `yaml:"endpoint,omitempty"`
	PriceInput  string `yaml:"price_input,omitempty"`  // per 1K tokens
	PriceOutput string `yaml:"price_output,omitempty"` // per 1K tokens
}

// LoadCatalog parses the model catalog and resolves secret references.
func LoadCatalog(path string) ([]llm.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(cf.Models) == 0 {
		return nil, fmt.Errorf("catalog %s declares no models", path)
	}

	descs := make([]llm.Descriptor, 0, len(cf.Models))
	for _, m := range cf.Models {
		desc, err := m.descriptor()
		if err != nil {
			return nil, fmt.Errorf("catalog model %q: %w", m.ID, err)
		}
		descs = append(descs, desc)
	}
	return descs, nil
}

func (m catalogModel) descriptor() (llm.Descriptor, error) {
	desc := llm.Descriptor{ID: m.ID}

	switch m.Backend {
	case "local":
		if m.Endpoint == "" {
			return desc, fmt.Errorf("local backend requires endpoint")
		}
		desc.Backend = llm.LocalBackend{Endpoint: m.Endpoint}

	case "remote", "":
		key, err := resolveRef(m.APIKey)
		if err != nil {
			return desc, err
		}
		provider := llm.Provider(m.Provider)
		if provider == "" {
			provider = llm.ProviderOpenAI
		}
		if provider != llm.ProviderOpenAI && provider != llm.ProviderAnthropic {
			return desc, fmt.Errorf("unsupported provider %q", m.Provider)
		}
		desc.Backend = llm.RemoteBackend{
			Provider: provider,
			BaseURL:  m.BaseURL,
			APIKey:   key,
		}

	default:
		return desc, fmt.Errorf("unsupported backend kind %q", m.Backend)
	}

	pricing, err := parsePricing(m.PriceInput, m.PriceOutput)
	if err != nil {
		return desc, err
	}
	desc.Pricing = pricing
	return desc, nil
}

func parsePricing(input, output string) (llm.Pricing, error) {
	var p llm.Pricing
	var err error
	if input != "" {
		if p.Input, err = decimal.NewFromString(input); err != nil {
			return p, fmt.Errorf("invalid price_input %q", input)
		}
	}
	if output != "" {
		if p.Output, err = decimal.NewFromString(output); err != nil {
			return p, fmt.Errorf("invalid price_output %q", output)
		}
	}
	if p.Input.IsNegative() || p.Output.IsNegative() {
		return p, fmt.Errorf("negative price")
	}
	return p, nil
}

// WatchCatalog re-reads the catalog whenever the file changes and hands the
// parsed result to apply. A broken edit is logged and skipped; the previous
// catalog stays active. The returned stop function releases the watcher.
func WatchCatalog(path string, logger *slog.Logger, apply func([]llm.Descriptor) error) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch catalog: %w", err)
	}

	// Watch the directory: editors replace files rather than write in place.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(path)
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
					continue
				}
				descs, err := LoadCatalog(path)
				if err != nil {
					logger.Warn("catalog reload skipped", "error", err)
					continue
				}
				if err := apply(descs); err != nil {
					logger.Warn("catalog swap rejected", "error", err)
					continue
				}
				logger.Info("catalog reloaded", "models", len(descs))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("catalog watcher error", "error", err)
			}
		}
	}()

	return func() { _ = watcher.Close() }, nil
}
