package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"

	"github.com/innofolio/innofolio/internal/log"
)

// Metadata keys used by the career knowledge base.
const (
	MetaTitle       = "title"
	MetaCategory    = "category"
	MetaSubcategory = "subcategory"
)

// Querier defines the database operations Store needs. Interfaces are
// defined by the consumer, not the provider, so Store can be tested
// against a mock without a live database.
type Querier interface {
	// UpsertDocument inserts or updates a document
	UpsertDocument(ctx context.Context, arg UpsertDocumentParams) error

	// QueryDocuments performs filtered vector search
	QueryDocuments(ctx context.Context, arg QueryDocumentsParams) ([]QueryDocumentsRow, error)

	// QueryDocumentsAll performs unfiltered vector search
	QueryDocumentsAll(ctx context.Context, arg QueryDocumentsAllParams) ([]QueryDocumentsAllRow, error)

	// CountDocuments counts documents matching filter
	CountDocuments(ctx context.Context, filterMetadata []byte) (int64, error)

	// CountDocumentsAll counts all documents
	CountDocumentsAll(ctx context.Context) (int64, error)

	// DeleteDocument deletes a document by ID
	DeleteDocument(ctx context.Context, id string) error
}

// Store manages the career knowledge base: PostgreSQL rows with pgvector
// embeddings generated through the configured embedder.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	queries     Querier
	embedder    ai.Embedder
	taskOptions TaskOptions
	logger      log.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithTaskOptions overrides how embedding task types become provider
// request options. Pass nil for providers that reject Gemini-style
// embed options.
func WithTaskOptions(fn TaskOptions) Option {
	return func(s *Store) { s.taskOptions = fn }
}

// New creates a Store. Embeddings are task-typed for Gemini unless
// overridden with WithTaskOptions.
//
//	store := knowledge.New(knowledge.NewQueries(pool), embedder, logger)
func New(querier Querier, embedder ai.Embedder, logger log.Logger, opts ...Option) *Store {
	s := &Store{
		queries:     querier,
		embedder:    embedder,
		taskOptions: GeminiTaskOptions,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add embeds the document content and upserts the row. Re-adding an
// existing ID replaces its content, embedding and metadata.
func (s *Store) Add(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID must not be empty")
	}
	if doc.Content == "" {
		return fmt.Errorf("document %q has empty content", doc.ID)
	}

	vec, err := s.embedDocument(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("embedding document %q: %w", doc.ID, err)
	}
	embedding := pgvector.NewVector(vec)

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	createdAt := pgtype.Timestamptz{
		Time:  doc.CreateAt,
		Valid: !doc.CreateAt.IsZero(),
	}

	err = s.queries.UpsertDocument(ctx, UpsertDocumentParams{
		ID:        doc.ID,
		Content:   doc.Content,
		Embedding: &embedding,
		Metadata:  metadataJSON,
		CreatedAt: createdAt,
	})
	if err != nil {
		return fmt.Errorf("upserting document %q: %w", doc.ID, err)
	}

	s.logger.Debug("added document", "id", doc.ID, "content_length", len(doc.Content))
	return nil
}

// AddBatch adds documents one at a time, continuing past per-document
// failures. It returns an error only when every document fails, so a
// single bad entry cannot abort a seeding run.
func (s *Store) AddBatch(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	var failed int
	var firstErr error
	for _, doc := range docs {
		if err := s.Add(ctx, doc); err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			s.logger.Warn("skipping document", "id", doc.ID, "error", err)
		}
	}

	if failed == len(docs) {
		return fmt.Errorf("all %d documents failed: %w", len(docs), firstErr)
	}
	if failed > 0 {
		s.logger.Warn("batch add completed with failures", "total", len(docs), "failed", failed)
	}
	return nil
}

// Query embeds the query text and returns the closest documents ordered by
// ascending cosine distance. A per-query timeout (default 10 seconds)
// bounds both the embedding call and the vector search.
//
//	matches, err := store.Query(ctx, "how do I negotiate salary",
//	    knowledge.WithTopK(5),
//	    knowledge.WithFilter("category", "negotiation"))
func (s *Store) Query(ctx context.Context, query string, opts ...QueryOption) ([]Match, error) {
	cfg := buildQueryConfig(opts)
	if cfg.topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", cfg.topK)
	}

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	vec, err := s.embedQuery(queryCtx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("query embedding timeout: %w", err)
		}
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	queryEmbedding := pgvector.NewVector(vec)

	if len(cfg.filter) > 0 {
		filterJSON, marshalErr := json.Marshal(cfg.filter)
		if marshalErr != nil {
			return nil, fmt.Errorf("marshaling filter: %w", marshalErr)
		}
		rows, queryErr := s.queries.QueryDocuments(queryCtx, QueryDocumentsParams{
			QueryEmbedding: &queryEmbedding,
			FilterMetadata: filterJSON,
			ResultLimit:    int32(cfg.topK),
		})
		if queryErr != nil {
			if errors.Is(queryErr, context.DeadlineExceeded) {
				return nil, fmt.Errorf("vector query timeout: %w", queryErr)
			}
			return nil, fmt.Errorf("vector query failed: %w", queryErr)
		}
		return s.rowsToMatches(rows), nil
	}

	rows, err := s.queries.QueryDocumentsAll(queryCtx, QueryDocumentsAllParams{
		QueryEmbedding: &queryEmbedding,
		ResultLimit:    int32(cfg.topK),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("vector query timeout: %w", err)
		}
		return nil, fmt.Errorf("vector query failed: %w", err)
	}
	return s.rowsToMatchesAll(rows), nil
}

// Count returns the number of documents matching the filter, or the total
// count when filter is empty.
func (s *Store) Count(ctx context.Context, filter map[string]string) (int, error) {
	var count int64
	var err error

	if len(filter) > 0 {
		filterJSON, marshalErr := json.Marshal(filter)
		if marshalErr != nil {
			return 0, fmt.Errorf("marshaling filter: %w", marshalErr)
		}
		count, err = s.queries.CountDocuments(ctx, filterJSON)
	} else {
		count, err = s.queries.CountDocumentsAll(ctx)
	}
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}

	if count > math.MaxInt {
		return 0, fmt.Errorf("document count %d exceeds platform int capacity", count)
	}
	return int(count), nil
}

// Delete removes a document by ID.
func (s *Store) Delete(ctx context.Context, docID string) error {
	if err := s.queries.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("deleting document %q: %w", docID, err)
	}
	s.logger.Debug("deleted document", "id", docID)
	return nil
}

func (s *Store) rowsToMatches(rows []QueryDocumentsRow) []Match {
	matches := make([]Match, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, Match{
			Document: s.rowToDocument(row.ID, row.Content, row.Metadata, row.CreatedAt),
			Distance: row.Distance,
		})
	}
	return matches
}

func (s *Store) rowsToMatchesAll(rows []QueryDocumentsAllRow) []Match {
	matches := make([]Match, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, Match{
			Document: s.rowToDocument(row.ID, row.Content, row.Metadata, row.CreatedAt),
			Distance: row.Distance,
		})
	}
	return matches
}

func (s *Store) rowToDocument(id, content string, metadataJSON []byte, createdAt pgtype.Timestamptz) Document {
	var metadata map[string]string
	if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
		s.logger.Warn("failed to parse metadata", "document_id", id, "error", err)
		metadata = make(map[string]string)
	}

	var createAt time.Time
	if createdAt.Valid {
		createAt = createdAt.Time
	}

	return Document{
		ID:       id,
		Content:  content,
		Metadata: metadata,
		CreateAt: createAt,
	}
}
