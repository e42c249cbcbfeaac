// Package cmd implements the innofolio command-line interface.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/innofolio/innofolio/internal/log"
)

var (
	flagJSONLog bool
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "innofolio",
	Short: "InnoFolio - AI career coaching backend",
	Long: `InnoFolio is the backend for an AI career-coaching assistant.

It serves a REST API with retrieval-augmented chat, conversation
history, and resume analysis, backed by PostgreSQL with pgvector.

Run "innofolio serve" to start the HTTP server, or "innofolio seed"
to load the knowledge base.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSONLog, "log-json", false, "emit logs as JSON")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
}

// newLogger builds the process logger from the global flags.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level, JSON: flagJSONLog})
}
