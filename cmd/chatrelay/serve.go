package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/szaher/chatrelay/internal/billing"
	"github.com/szaher/chatrelay/internal/bot"
	"github.com/szaher/chatrelay/internal/config"
	"github.com/szaher/chatrelay/internal/llm"
	"github.com/szaher/chatrelay/internal/session"
	"github.com/szaher/chatrelay/internal/telegram"
	"github.com/szaher/chatrelay/internal/telemetry"
	"github.com/szaher/chatrelay/internal/transcribe"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the relay: poll the transport and answer chats",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := telemetry.NewLogger(os.Stderr, level)

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if catalogPath != "" {
		cfg.CatalogPath = catalogPath
	}

	catalog, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("loading model catalog: %w", err)
	}
	registry, err := llm.NewRegistry(catalog, llm.WithTimeout(cfg.BackendTimeout))
	if err != nil {
		return fmt.Errorf("building model registry: %w", err)
	}
	if _, err := registry.Resolve(cfg.DefaultModel); err != nil {
		return fmt.Errorf("default model %q not in catalog", cfg.DefaultModel)
	}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	accountant := billing.NewAccountant(registry, cfg.UnitsPerMinute)

	converter := transcribe.NewFFmpegConverter(cfg.FFmpegBinary, 0)
	whisper := transcribe.NewWhisperClient(cfg.WhisperKey, cfg.WhisperModel)
	adapter := transcribe.NewAdapter(converter, whisper)

	metrics := telemetry.NewMetrics()
	tg := telegram.NewClient(cfg.TelegramToken)

	orchestrator := bot.New(bot.Params{
		Store:         store,
		Registry:      registry,
		Accountant:    accountant,
		Transcriber:   adapter,
		Fetcher:       tg,
		Replier:       tg,
		Logger:        logger,
		Metrics:       metrics,
		DefaultModel:  cfg.DefaultModel,
		AudioCeiling:  cfg.AudioCeiling,
		InlineTrigger: cfg.InlineTrigger,
	})

	stopWatch, err := config.WatchCatalog(cfg.CatalogPath, logger, registry.Swap)
	if err != nil {
		logger.Warn("catalog watch unavailable", "error", err)
	} else {
		defer stopWatch()
	}

	poller := telegram.NewPoller(tg, orchestrator, logger)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return poller.Run(ctx)
	})
	if cfg.MetricsAddr != "" {
		group.Go(func() error {
			return serveMetrics(ctx, cfg.MetricsAddr, metrics, logger)
		})
	}

	return group.Wait()
}

// openStore selects the durable Postgres store when DATABASE_URL is set,
// falling back to the in-memory store otherwise. A configured but
// unreachable database aborts startup rather than silently losing history.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (session.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Info("using in-memory session store")
		return session.NewMemoryStore(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to session database: %w", err)
	}
	store := session.NewPostgresStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("preparing session schema: %w", err)
	}
	logger.Info("using postgres session store")
	return store, pool.Close, nil
}

func serveMetrics(ctx context.Context, addr string, metrics *telemetry.Metrics, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	errc := make(chan error, 1)
	go func() {
		logger.Info("metrics endpoint listening", "addr", addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return nil
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics endpoint: %w", err)
	}
}
