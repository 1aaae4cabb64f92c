package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/szaher/chatrelay/internal/config"
	"github.com/szaher/chatrelay/internal/llm"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and model catalog without connecting",
		RunE: func(cmd *cobra.Command, args []string) error {
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
			registry, err := llm.NewRegistry(catalog)
			if err != nil {
				return fmt.Errorf("building model registry: %w", err)
			}
			if _, err := registry.Resolve(cfg.DefaultModel); err != nil {
				return fmt.Errorf("default model %q not in catalog", cfg.DefaultModel)
			}

			fmt.Printf("Configuration OK: %d models, default %s\n", len(registry.IDs()), cfg.DefaultModel)
			for _, id := range registry.IDs() {
				fmt.Printf("  - %s\n", id)
			}
			return nil
		},
	}
}
