// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.innofolio/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider, generation model, embedder model
//   - Storage: PostgreSQL connection (see storage.go)
//   - RAG: retrieval fan-out, relevance threshold, ingestion chunking
//   - Safety: content filter toggle
//   - Auth: external identity provider endpoint
//   - Observability: OTLP trace export
//
// Sensitive values (passwords, provider keys) are never logged.
// Validation lives in validation.go with range checks and clear errors.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required provider API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the generation model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidRetrievalK indicates the retrieval fan-out is out of range.
	ErrInvalidRetrievalK = errors.New("invalid retrieval k")

	// ErrInvalidRelevanceScore indicates the relevance threshold is out of range.
	ErrInvalidRelevanceScore = errors.New("invalid min relevance score")

	// ErrInvalidHistoryWindow indicates the history window is out of range.
	ErrInvalidHistoryWindow = errors.New("invalid history window")

	// ErrInvalidChunking indicates chunk size/overlap are inconsistent.
	ErrInvalidChunking = errors.New("invalid chunk size or overlap")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidIdentityProviderURL indicates the identity provider URL is invalid.
	ErrInvalidIdentityProviderURL = errors.New("invalid identity provider URL")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

const (
	// DefaultGeminiEmbedderModel is the default Gemini embedder model.
	// text-embedding-004 outputs 768 dimensions, matching the pgvector
	// schema; see knowledge.VectorDimension.
	DefaultGeminiEmbedderModel = "text-embedding-004"

	// DefaultRetrievalK is the default nearest-neighbor fan-out.
	DefaultRetrievalK = 5

	// DefaultMinRelevanceScore is the default relevance cutoff. A match is
	// retained only when distance < 1 - score.
	DefaultMinRelevanceScore = 0.7

	// DefaultHistoryWindow is the number of prior conversation turns
	// included when composing a prompt. Older turns are dropped, never
	// summarized.
	DefaultHistoryWindow = 6
)

// Config stores application configuration.
// Sensitive fields must never be logged; see maskSecret.
type Config struct {
	// AI provider and model configuration
	Provider      string `mapstructure:"provider" json:"provider"`             // "gemini" (default) or "ollama"
	ModelName     string `mapstructure:"model_name" json:"model_name"`         // e.g. "gemini-2.5-flash", "llama3.3"
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"` // e.g. "text-embedding-004"

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// RAG configuration
	RetrievalK        int     `mapstructure:"retrieval_k" json:"retrieval_k"`
	MinRelevanceScore float64 `mapstructure:"min_relevance_score" json:"min_relevance_score"`
	HistoryWindow     int     `mapstructure:"history_window" json:"history_window"`
	ChunkSize         int     `mapstructure:"chunk_size" json:"chunk_size"`       // reserved for ingestion chunking
	ChunkOverlap      int     `mapstructure:"chunk_overlap" json:"chunk_overlap"` // reserved for ingestion chunking

	// Safety configuration
	EnableContentFilter bool `mapstructure:"enable_content_filter" json:"enable_content_filter"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"-"` // SENSITIVE
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Identity provider (external collaborator; empty URL disables auth)
	IdentityProviderURL string `mapstructure:"identity_provider_url" json:"identity_provider_url"`
	IdentityProviderKey string `mapstructure:"identity_provider_key" json:"-"` // SENSITIVE

	// HTTP server configuration (serve mode only)
	ServerAddr  string   `mapstructure:"server_addr" json:"server_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`

	// Observability configuration
	Otel OtelConfig `mapstructure:"otel" json:"otel"`
}

// OtelConfig configures OTLP trace export. Traces are sent to a local
// collector over OTLP HTTP; the collector handles authentication and
// forwarding. Empty AgentHost disables export.
type OtelConfig struct {
	AgentHost   string `mapstructure:"agent_host" json:"agent_host"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".innofolio")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL, when set, overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("embedder_model", DefaultGeminiEmbedderModel)

	// Ollama defaults
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// RAG defaults
	viper.SetDefault("retrieval_k", DefaultRetrievalK)
	viper.SetDefault("min_relevance_score", DefaultMinRelevanceScore)
	viper.SetDefault("history_window", DefaultHistoryWindow)
	viper.SetDefault("chunk_size", 500)
	viper.SetDefault("chunk_overlap", 100)

	// Safety defaults
	viper.SetDefault("enable_content_filter", true)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "innofolio")
	viper.SetDefault("postgres_password", "innofolio_dev_password")
	viper.SetDefault("postgres_db_name", "innofolio")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Server defaults
	viper.SetDefault("server_addr", "127.0.0.1:8000")
	viper.SetDefault("cors_origins", []string{"http://localhost:3000"})

	// Observability defaults (empty agent_host disables export)
	viper.SetDefault("otel.agent_host", "")
	viper.SetDefault("otel.service_name", "innofolio-api")
	viper.SetDefault("otel.environment", "dev")
}

// bindEnvVariables binds environment variable overrides explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via Viper; its presence is
// checked in Validate based on the selected provider.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "INNOFOLIO_PROVIDER")
	mustBind("model_name", "INNOFOLIO_MODEL_NAME")
	mustBind("embedder_model", "INNOFOLIO_EMBEDDER_MODEL")
	mustBind("ollama_host", "INNOFOLIO_OLLAMA_HOST")

	mustBind("retrieval_k", "INNOFOLIO_RETRIEVAL_K")
	mustBind("min_relevance_score", "INNOFOLIO_MIN_RELEVANCE_SCORE")
	mustBind("history_window", "INNOFOLIO_HISTORY_WINDOW")
	mustBind("chunk_size", "INNOFOLIO_CHUNK_SIZE")
	mustBind("chunk_overlap", "INNOFOLIO_CHUNK_OVERLAP")
	mustBind("enable_content_filter", "INNOFOLIO_ENABLE_CONTENT_FILTER")

	mustBind("postgres_host", "INNOFOLIO_POSTGRES_HOST")
	mustBind("postgres_port", "INNOFOLIO_POSTGRES_PORT")
	mustBind("postgres_user", "INNOFOLIO_POSTGRES_USER")
	mustBind("postgres_password", "INNOFOLIO_POSTGRES_PASSWORD")
	mustBind("postgres_db_name", "INNOFOLIO_POSTGRES_DB_NAME")
	mustBind("postgres_ssl_mode", "INNOFOLIO_POSTGRES_SSL_MODE")

	mustBind("identity_provider_url", "INNOFOLIO_IDENTITY_PROVIDER_URL")
	mustBind("identity_provider_key", "INNOFOLIO_IDENTITY_PROVIDER_KEY")

	mustBind("server_addr", "INNOFOLIO_SERVER_ADDR")
	mustBind("cors_origins", "INNOFOLIO_CORS_ORIGINS")

	mustBind("otel.agent_host", "INNOFOLIO_OTEL_AGENT_HOST")
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked to prevent substring matching; longer ones show the first and last
// two characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + maskedValue + s[len(s)-2:]
}
