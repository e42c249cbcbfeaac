// Package llm wraps Genkit generation behind a small client with retry,
// proactive rate limiting and a circuit breaker.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/innofolio/innofolio/internal/log"
)

// FallbackResponse is returned when the model produces an empty response.
const FallbackResponse = "I apologize, but I couldn't generate a response. Please try rephrasing your question."

// StreamFunc is called for each chunk of a streaming response. The chunk
// holds partial text that can be forwarded immediately. Returning an error
// aborts the stream.
type StreamFunc func(ctx context.Context, chunk string) error

// Config contains all required parameters for Client.
type Config struct {
	Genkit *genkit.Genkit
	Logger log.Logger

	// ModelName is the provider-qualified model name
	// (e.g., "googleai/gemini-2.0-flash", "ollama/llama3.3").
	ModelName string

	// Resilience settings (zero values use defaults).
	RetryConfig          RetryConfig
	CircuitBreakerConfig CircuitBreakerConfig
	RateLimiter          *rate.Limiter // nil = default limiter
}

func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.ModelName == "" {
		return errors.New("model name is required")
	}
	return nil
}

// Client generates model responses. All configuration is captured
// immutably at construction, so Client is safe for concurrent use.
type Client struct {
	g         *genkit.Genkit
	logger    log.Logger
	modelName string

	retryConfig    RetryConfig
	circuitBreaker *CircuitBreaker
	rateLimiter    *rate.Limiter
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	retryConfig := cfg.RetryConfig
	if retryConfig.MaxRetries == 0 {
		retryConfig = DefaultRetryConfig()
	}

	cbConfig := cfg.CircuitBreakerConfig
	if cbConfig.FailureThreshold == 0 {
		cbConfig = DefaultCircuitBreakerConfig()
	}

	// Default: 10 requests/sec sustained, burst of 30.
	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}

	return &Client{
		g:              cfg.Genkit,
		logger:         cfg.Logger,
		modelName:      cfg.ModelName,
		retryConfig:    retryConfig,
		circuitBreaker: NewCircuitBreaker(cbConfig),
		rateLimiter:    rl,
	}, nil
}

// Complete generates a full response for the prompt. system sets the
// system instruction; pass "" to omit it.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	return c.CompleteStream(ctx, system, prompt, nil)
}

// CompleteStream generates a response, forwarding chunks to stream as they
// arrive when stream is non-nil. The complete text is always returned
// after generation finishes.
func (c *Client) CompleteStream(ctx context.Context, system, prompt string, stream StreamFunc) (string, error) {
	opts := []ai.GenerateOption{
		ai.WithModelName(c.modelName),
		ai.WithPrompt(prompt),
	}
	if system != "" {
		opts = append(opts, ai.WithSystem(system))
	}
	if stream != nil {
		opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			for _, part := range chunk.Content {
				if part.Text == "" {
					continue
				}
				if err := stream(ctx, part.Text); err != nil {
					return err
				}
			}
			return nil
		}))
	}

	if err := c.circuitBreaker.Allow(); err != nil {
		c.logger.Warn("circuit breaker is open, rejecting request",
			"state", c.circuitBreaker.State().String())
		return "", fmt.Errorf("service unavailable: %w", err)
	}

	resp, err := c.generateWithRetry(ctx, opts)
	if err != nil {
		c.circuitBreaker.Failure()
		return "", err
	}
	c.circuitBreaker.Success()

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		c.logger.Warn("model returned empty response")
		return FallbackResponse, nil
	}
	return text, nil
}

// ModelName returns the provider-qualified model name in use.
func (c *Client) ModelName() string {
	return c.modelName
}
