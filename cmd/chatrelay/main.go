// Package main is the entry point for the chatrelay bot daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var version = "0.1.0"

// Global flags.
var (
	verbose     bool
	catalogPath string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chatrelay",
		Short: "Telegram relay for conversational language-model backends",
		Long: `Chatrelay bridges Telegram chats to language-model backends. It keeps
per-chat conversation history, meters usage, transcribes voice messages,
and routes each chat to the model its user selected from the catalog.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&catalogPath, "catalog", "", "Path to the model catalog (overrides MODEL_CATALOG)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newCheckCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
