// Package observability provides OpenTelemetry trace export.
//
// Traces are sent to a local collector agent over OTLP HTTP. The agent
// handles authentication, buffering, and forwarding to the tracing
// backend, so no vendor credentials live in the application. An empty
// agent host disables export entirely.
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config for OTLP trace export.
type Config struct {
	// AgentHost is the collector OTLP HTTP endpoint (host:port).
	// Empty disables trace export.
	AgentHost string
	// ServiceName is the service name attached to exported spans.
	ServiceName string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
}

// SetupTracing registers an OTLP exporter with Genkit's TracerProvider.
// Must run before genkit.Init so the provider is ready when flows start.
//
// Returns a shutdown function that flushes pending spans. Exporter
// construction failures disable tracing rather than failing startup.
func SetupTracing(ctx context.Context, cfg Config, logger *slog.Logger) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if cfg.AgentHost == "" {
		return noop
	}

	// Genkit's TracerProvider reads these at span creation time.
	// os.Setenv is not concurrent-safe, but this runs exactly once
	// during startup before any goroutines are spawned.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.AgentHost),
		otlptracehttp.WithInsecure(), // local agent, no TLS
	)
	if err != nil {
		logger.Warn("failed to create trace exporter, tracing disabled", "error", err)
		return noop
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("trace export enabled",
		"agent", cfg.AgentHost,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	return tracing.TracerProvider().Shutdown
}
