package rag

import (
	"context"
	"fmt"

	"github.com/innofolio/innofolio/internal/llm"
	"github.com/innofolio/innofolio/internal/log"
	"github.com/innofolio/innofolio/internal/safety"
)

// Outcome is the terminal state of a pipeline run.
type Outcome int

const (
	// OutcomeAnswered means the model generated the response.
	OutcomeAnswered Outcome = iota
	// OutcomeRejected means the safety gate blocked the input.
	OutcomeRejected
	// OutcomeRedirected means the question was out of scope and a
	// canned redirect was returned.
	OutcomeRedirected
)

// Request is one chat turn entering the pipeline. Message must already
// be sanitized by the caller.
type Request struct {
	Message string
	History []Turn
	Profile *Profile
}

// Result is the pipeline's answer for one request.
type Result struct {
	Outcome     Outcome
	Response    string
	Sources     []string
	ContextUsed bool
}

// Generator is the slice of llm.Client the pipeline needs.
type Generator interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	CompleteStream(ctx context.Context, system, prompt string, stream llm.StreamFunc) (string, error)
}

// ContextRetriever abstracts Retriever for the pipeline.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string) (Retrieval, error)
}

// PipelineConfig wires the pipeline's collaborators.
type PipelineConfig struct {
	Gate      *safety.Gate
	Retriever ContextRetriever
	Generator Generator
	Composer  *Composer
	Logger    log.Logger

	// ContentFilter toggles the harmful/injection screening stage.
	// Boundary checks always run.
	ContentFilter bool
}

// Pipeline runs safety checks, retrieval, prompt assembly and generation
// for a chat turn. Safe for concurrent use.
type Pipeline struct {
	gate          *safety.Gate
	retriever     ContextRetriever
	generator     Generator
	composer      *Composer
	logger        log.Logger
	contentFilter bool
}

// NewPipeline creates a Pipeline.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Gate == nil {
		return nil, fmt.Errorf("safety gate is required")
	}
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.Composer == nil {
		cfg.Composer = NewComposer(0)
	}
	return &Pipeline{
		gate:          cfg.Gate,
		retriever:     cfg.Retriever,
		generator:     cfg.Generator,
		composer:      cfg.Composer,
		logger:        cfg.Logger,
		contentFilter: cfg.ContentFilter,
	}, nil
}

// Respond runs the full pipeline and returns the complete response.
func (p *Pipeline) Respond(ctx context.Context, req Request) (*Result, error) {
	return p.respond(ctx, req, nil)
}

// RespondStream runs the pipeline and forwards response chunks to stream
// as they arrive. Rejected and redirected outcomes deliver their canned
// text as a single chunk. The returned Result always carries the full
// response text.
func (p *Pipeline) RespondStream(ctx context.Context, req Request, stream llm.StreamFunc) (*Result, error) {
	return p.respond(ctx, req, stream)
}

func (p *Pipeline) respond(ctx context.Context, req Request, stream llm.StreamFunc) (*Result, error) {
	if p.contentFilter {
		if input := p.gate.CheckInput(req.Message); !input.Safe {
			p.logger.Warn("input rejected", "reason", input.Reason)
			return p.terminal(ctx, OutcomeRejected, safety.RejectionMessage, stream)
		}
	}

	if boundary := p.gate.CheckBoundary(req.Message); !boundary.WithinBounds {
		p.logger.Info("question redirected", "category", boundary.Category)
		return p.terminal(ctx, OutcomeRedirected, boundary.Redirect, stream)
	}

	retrieval, err := p.retriever.Retrieve(ctx, req.Message)
	if err != nil {
		return nil, err
	}

	prompt := p.composer.Build(req.Message, retrieval, req.History, req.Profile)

	var response string
	if stream != nil {
		response, err = p.generator.CompleteStream(ctx, SystemPrompt, prompt, stream)
	} else {
		response, err = p.generator.Complete(ctx, SystemPrompt, prompt)
	}
	if err != nil {
		return nil, err
	}

	return &Result{
		Outcome:     OutcomeAnswered,
		Response:    response,
		Sources:     retrieval.Sources,
		ContextUsed: retrieval.Grounded,
	}, nil
}

func (p *Pipeline) terminal(ctx context.Context, outcome Outcome, message string, stream llm.StreamFunc) (*Result, error) {
	if stream != nil {
		if err := stream(ctx, message); err != nil {
			return nil, fmt.Errorf("stream terminal response: %w", err)
		}
	}
	return &Result{
		Outcome:  outcome,
		Response: message,
		Sources:  []string{},
	}, nil
}
