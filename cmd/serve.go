package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/innofolio/innofolio/internal/api"
	"github.com/innofolio/innofolio/internal/app"
	"github.com/innofolio/innofolio/internal/config"
	"github.com/innofolio/innofolio/internal/resume"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
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
	logger.Info("starting InnoFolio API server", "version", AppVersion)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	server := api.NewServer(api.ServerConfig{
		Logger:        logger.With("component", "api"),
		Pipeline:      a.Pipeline,
		Conversations: a.Conversations,
		Resumes:       a.Resumes,
		Analyzer:      a.Analyzer,
		Extractor:     resume.PlainTextExtractor{},
		Pool:          a.Pool,
		Verifier:      a.Verifier,
		CORSOrigins:   cfg.CORSOrigins,
		HistoryWindow: cfg.HistoryWindow,
	})

	addr := flagAddr
	if addr == "" {
		addr = cfg.ServerAddr
	}
	return server.Run(ctx, addr)
}
