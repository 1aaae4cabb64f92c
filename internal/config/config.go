// Package config loads the relay's configuration from the environment and
// the model-catalog file. Configuration is carried in an explicit struct
// passed into component constructors; nothing here is a process-wide
// singleton.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults applied when the environment leaves a knob unset.
const (
	DefaultAudioCeiling   = 300 * time.Second
	DefaultUnitsPerMinute = 6
	DefaultBackendTimeout = 60 * time.Second
	DefaultMetricsAddr    = ":9090"
	DefaultCatalogPath    = "models.yaml"
	DefaultInlineTrigger  = "!!"
)

// Config holds every runtime knob of the relay.
type Config struct {
	// TelegramToken authenticates against the messaging transport.
	TelegramToken string

	// DatabaseURL selects the Postgres session store; empty falls back
	// to the in-memory store.
	DatabaseURL string

	// CatalogPath locates the YAML model catalog.
	CatalogPath string

	// DefaultModel is assigned to newly created sessions and used for
	// inline one-shot completions. Must be present in the catalog.
	DefaultModel string

	// AudioCeiling rejects voice clips longer than this duration.
	AudioCeiling time.Duration

	// UnitsPerMinute is the synthetic usage charge per started minute
	// of transcribed audio.
	UnitsPerMinute int64

	// BackendTimeout bounds completion and transcription calls.
	BackendTimeout time.Duration

	// WhisperKey and WhisperModel configure the speech-to-text provider.
	WhisperKey   string
	WhisperModel string

	// FFmpegBinary is the media conversion tool; empty means "ffmpeg"
	// on PATH.
	FFmpegBinary string

	// InlineTrigger is the suffix an inline query must carry to be
	// answered.
	InlineTrigger string

	// MetricsAddr is the listen address of the Prometheus endpoint;
	// empty disables it.
	MetricsAddr string
}

// FromEnv builds a Config from environment variables. Missing required
// values are reported together so startup fails with one actionable error.
func FromEnv() (*Config, error) {
	cfg := &Config{
		TelegramToken:  os.Getenv("TG_AUTH"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		CatalogPath:    envOr("MODEL_CATALOG", DefaultCatalogPath),
		DefaultModel:   os.Getenv("DEFAULT_MODEL"),
		AudioCeiling:   DefaultAudioCeiling,
		UnitsPerMinute: DefaultUnitsPerMinute,
		BackendTimeout: DefaultBackendTimeout,
		WhisperKey:     envOr("WHISPER_API_KEY", os.Getenv("OPENAI_API_KEY")),
		WhisperModel:   envOr("WHISPER_MODEL", "whisper-1"),
		FFmpegBinary:   os.Getenv("FFMPEG_BIN"),
		InlineTrigger:  envOr("INLINE_TRIGGER", DefaultInlineTrigger),
		MetricsAddr:    envOr("METRICS_ADDR", DefaultMetricsAddr),
	}

	var missing []string
	if cfg.TelegramToken == "" {
		missing = append(missing, "TG_AUTH")
	}
	if cfg.DefaultModel == "" {
		missing = append(missing, "DEFAULT_MODEL")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment: %s", strings.Join(missing, ", "))
	}

	if v := os.Getenv("AUDIO_CEILING_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("invalid AUDIO_CEILING_SECONDS %q", v)
		}
		cfg.AudioCeiling = time.Duration(secs) * time.Second
	}
	if v := os.Getenv("TRANSCRIPTION_UNITS_PER_MINUTE"); v != "" {
		units, err := strconv.ParseInt(v, 10, 64)
		if err != nil || units < 0 {
			return nil, fmt.Errorf("invalid TRANSCRIPTION_UNITS_PER_MINUTE %q", v)
		}
		cfg.UnitsPerMinute = units
	}
	if v := os.Getenv("BACKEND_TIMEOUT_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("invalid BACKEND_TIMEOUT_SECONDS %q", v)
		}
		cfg.BackendTimeout = time.Duration(secs) * time.Second
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// resolveRef resolves a secret reference of the form "env(VAR_NAME)" from
// the environment. Plain values pass through unchanged, so catalogs can
// embed either literals or references.
func resolveRef(ref string) (string, error) {
	if !strings.HasPrefix(ref, "env(") || !strings.HasSuffix(ref, ")") {
		return ref, nil
	}
	varName := ref[4 : len(ref)-1]
	value, ok := os.LookupEnv(varName)
	if !ok {
		return "", fmt.Errorf("environment variable %q not set", varName)
	}
	return value, nil
}
