package knowledge

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"google.golang.org/genai"
)

// Embedding task types for the Gemini embedding API. Documents and
// queries are embedded asymmetrically: ingestion uses the document
// task, similarity search uses the query task.
const (
	taskDocument = "RETRIEVAL_DOCUMENT"
	taskQuery    = "RETRIEVAL_QUERY"
)

// TaskOptions maps an embedding task type to the provider-specific
// request options carried on the embed call. A nil TaskOptions
// disables task typing.
type TaskOptions func(taskType string) any

// GeminiTaskOptions builds Gemini embed options carrying the task type.
func GeminiTaskOptions(taskType string) any {
	return &genai.EmbedContentConfig{TaskType: taskType}
}

// embedDocument embeds content for ingestion into the vector store.
func (s *Store) embedDocument(ctx context.Context, text string) ([]float32, error) {
	return s.embed(ctx, text, taskDocument)
}

// embedQuery embeds a search query for similarity lookup.
func (s *Store) embedQuery(ctx context.Context, text string) ([]float32, error) {
	return s.embed(ctx, text, taskQuery)
}

// embed generates a single embedding for the given text and validates
// its width against VectorDimension before it reaches the database.
func (s *Store) embed(ctx context.Context, text, taskType string) ([]float32, error) {
	req := &ai.EmbedRequest{
		Input: []*ai.Document{
			ai.DocumentFromText(text, nil),
		},
	}
	if s.taskOptions != nil {
		req.Options = s.taskOptions(taskType)
	}

	resp, err := s.embedder.Embed(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("embed failed: %w", err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	vec := resp.Embeddings[0].Embedding
	if len(vec) != VectorDimension {
		return nil, fmt.Errorf("embedding dimension %d, want %d", len(vec), VectorDimension)
	}
	return vec, nil
}
