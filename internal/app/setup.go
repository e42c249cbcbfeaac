package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/innofolio/innofolio/db"
	"github.com/innofolio/innofolio/internal/auth"
	"github.com/innofolio/innofolio/internal/config"
	"github.com/innofolio/innofolio/internal/conversation"
	"github.com/innofolio/innofolio/internal/knowledge"
	"github.com/innofolio/innofolio/internal/llm"
	"github.com/innofolio/innofolio/internal/log"
	"github.com/innofolio/innofolio/internal/observability"
	"github.com/innofolio/innofolio/internal/rag"
	"github.com/innofolio/innofolio/internal/resume"
	"github.com/innofolio/innofolio/internal/safety"
)

// Setup creates and initializes the application.
// On error everything already initialized is released before returning.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing must be ready before genkit.Init picks up the provider.
	a.otelShutdown = observability.SetupTracing(ctx, observability.Config{
		AgentHost:   cfg.Otel.AgentHost,
		ServiceName: cfg.Otel.ServiceName,
		Environment: cfg.Otel.Environment,
	}, logger)

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	var storeOpts []knowledge.Option
	if cfg.Provider == config.ProviderOllama {
		// The Ollama embed endpoint rejects Gemini task-type options.
		storeOpts = append(storeOpts, knowledge.WithTaskOptions(nil))
	}
	a.Knowledge = knowledge.New(knowledge.NewQueries(pool), embedder, logger.With("component", "knowledge"), storeOpts...)
	a.Conversations = conversation.New(conversation.NewQueries(pool), logger.With("component", "conversation"))
	a.Resumes = resume.NewStore(resume.NewQueries(pool), logger.With("component", "resume"))

	client, err := llm.New(llm.Config{
		Genkit:    g,
		Logger:    logger.With("component", "llm"),
		ModelName: qualifiedModelName(cfg.Provider, cfg.ModelName),
	})
	if err != nil {
		return nil, fmt.Errorf("creating llm client: %w", err)
	}
	a.LLM = client

	retriever := rag.NewRetriever(a.Knowledge, logger.With("component", "retriever"), rag.RetrieverConfig{
		K:            cfg.RetrievalK,
		MinRelevance: cfg.MinRelevanceScore,
	})

	pipeline, err := rag.NewPipeline(rag.PipelineConfig{
		Gate:          safety.NewGate(),
		Retriever:     retriever,
		Generator:     client,
		Composer:      rag.NewComposer(cfg.HistoryWindow),
		Logger:        logger.With("component", "pipeline"),
		ContentFilter: cfg.EnableContentFilter,
	})
	if err != nil {
		return nil, fmt.Errorf("creating pipeline: %w", err)
	}
	a.Pipeline = pipeline

	a.Analyzer = resume.NewAnalyzer(client, logger.With("component", "analyzer"))

	if cfg.IdentityProviderURL != "" {
		a.Verifier = auth.NewHTTPVerifier(cfg.IdentityProviderURL, cfg.IdentityProviderKey, nil,
			logger.With("component", "auth"))
	}

	return a, nil
}

// qualifiedModelName prefixes the model with its Genkit provider
// namespace, e.g. "gemini-2.5-flash" -> "googleai/gemini-2.5-flash".
func qualifiedModelName(provider, model string) string {
	switch provider {
	case config.ProviderOllama:
		return "ollama/" + model
	default:
		return "googleai/" + model
	}
}

// provideGenkit initializes Genkit with the configured AI provider.
// Supports gemini (default) and ollama.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)
		return g, nil

	default: // config.ProviderGemini
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
		return g, nil
	}
}

// provideEmbedder looks up the embedder registered by the provider plugin.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		// Keyed by server address, registered in provideGenkit.
		return ollama.Embedder(g, cfg.OllamaHost)
	default: // config.ProviderGemini
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideDBPool creates a PostgreSQL connection pool and runs migrations.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}
