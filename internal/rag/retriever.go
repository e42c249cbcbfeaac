// Package rag combines knowledge retrieval, prompt assembly and generation
// into the response pipeline behind the chat API.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/innofolio/innofolio/internal/knowledge"
	"github.com/innofolio/innofolio/internal/log"
)

// Default retrieval tuning. Lower cosine distance means higher relevance,
// so a minimum relevance of 0.7 keeps matches with distance below 0.3.
const (
	DefaultRetrievalK   = 5
	DefaultMinRelevance = 0.7
)

// Searcher is the slice of knowledge.Store the retriever needs.
type Searcher interface {
	Query(ctx context.Context, query string, opts ...knowledge.QueryOption) ([]knowledge.Match, error)
}

// Retrieval is the context assembled from the knowledge base for one query.
type Retrieval struct {
	// Context holds the formatted source blocks, empty when not grounded.
	Context string
	// Sources lists the titles of the surviving matches in retrieval
	// order. Duplicates are kept.
	Sources []string
	// Grounded reports whether any match survived the relevance filter.
	Grounded bool
}

// Retriever turns a user query into grounded context for the composer.
type Retriever struct {
	store        Searcher
	logger       log.Logger
	k            int
	minRelevance float64
}

// RetrieverConfig configures a Retriever. Zero values use defaults.
type RetrieverConfig struct {
	K            int
	MinRelevance float64
}

// NewRetriever creates a Retriever over the given store.
func NewRetriever(store Searcher, logger log.Logger, cfg RetrieverConfig) *Retriever {
	if cfg.K <= 0 {
		cfg.K = DefaultRetrievalK
	}
	if cfg.MinRelevance <= 0 || cfg.MinRelevance >= 1 {
		cfg.MinRelevance = DefaultMinRelevance
	}
	return &Retriever{
		store:        store,
		logger:       logger,
		k:            cfg.K,
		minRelevance: cfg.MinRelevance,
	}
}

// Retrieve searches the knowledge base and formats the relevant matches.
// Matches arrive ordered by ascending distance and that order is
// preserved in both the context blocks and the source list.
func (r *Retriever) Retrieve(ctx context.Context, query string) (Retrieval, error) {
	matches, err := r.store.Query(ctx, query, knowledge.WithTopK(r.k))
	if err != nil {
		return Retrieval{}, fmt.Errorf("retrieve context: %w", err)
	}

	cutoff := 1 - r.minRelevance
	var blocks []string
	var sources []string
	for _, m := range matches {
		if m.Distance >= cutoff {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("[Source %d]: %s", len(blocks)+1, m.Document.Content))
		if title := m.Document.Metadata[knowledge.MetaTitle]; title != "" {
			sources = append(sources, title)
		}
	}

	r.logger.Debug("knowledge retrieval",
		"matches", len(matches),
		"relevant", len(blocks),
		"cutoff", cutoff,
	)

	if len(blocks) == 0 {
		return Retrieval{}, nil
	}
	return Retrieval{
		Context:  strings.Join(blocks, "\n\n"),
		Sources:  sources,
		Grounded: true,
	}, nil
}
