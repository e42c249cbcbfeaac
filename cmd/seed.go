package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/innofolio/innofolio/internal/app"
	"github.com/innofolio/innofolio/internal/config"
	"github.com/innofolio/innofolio/internal/knowledge"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the knowledge base with built-in career guidance documents",
	Long: `Seed embeds the built-in career guidance corpus and stores it in the
knowledge base. Documents already present are updated in place, so the
command is safe to re-run.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSeed(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	if err := knowledge.Seed(ctx, a.Knowledge, logger); err != nil {
		return fmt.Errorf("seeding knowledge base: %w", err)
	}

	count, err := a.Knowledge.Count(ctx, nil)
	if err != nil {
		return fmt.Errorf("counting documents: %w", err)
	}
	logger.Info("knowledge base seeded", "documents", count)
	return nil
}
