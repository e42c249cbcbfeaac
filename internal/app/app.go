// Package app provides application initialization and dependency wiring.
//
// App is the container that assembles all components: the database
// pool, Genkit with the configured AI provider, the knowledge store,
// the chat pipeline, the resume analyzer, and the persistence stores.
// Setup builds everything in dependency order; Close releases resources
// in reverse.
package app

import (
	"context"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/innofolio/innofolio/internal/auth"
	"github.com/innofolio/innofolio/internal/config"
	"github.com/innofolio/innofolio/internal/conversation"
	"github.com/innofolio/innofolio/internal/knowledge"
	"github.com/innofolio/innofolio/internal/llm"
	"github.com/innofolio/innofolio/internal/log"
	"github.com/innofolio/innofolio/internal/rag"
	"github.com/innofolio/innofolio/internal/resume"
)

// App is the application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	// Core services
	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Pool     *pgxpool.Pool

	// Domain components
	Knowledge     *knowledge.Store
	Conversations *conversation.Store
	Resumes       *resume.Store
	LLM           *llm.Client
	Pipeline      *rag.Pipeline
	Analyzer      *resume.Analyzer

	// Verifier is nil when no identity provider is configured.
	Verifier auth.Verifier

	otelShutdown func(context.Context) error
}

// Close gracefully releases all resources.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Info("database pool closed")
	}

	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otelShutdown(ctx); err != nil {
			a.Logger.Warn("shutting down tracer provider", "error", err)
		}
	}

	return nil
}
