package knowledge

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Queries is the pgx-backed implementation of Querier.
type Queries struct {
	pool *pgxpool.Pool
}

// NewQueries creates a Queries bound to the given connection pool.
func NewQueries(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

// UpsertDocumentParams holds the arguments for UpsertDocument.
type UpsertDocumentParams struct {
	ID        string
	Content   string
	Embedding *pgvector.Vector
	Metadata  []byte
	CreatedAt pgtype.Timestamptz
}

const upsertDocument = `
INSERT INTO documents (id, content, embedding, metadata, created_at)
VALUES ($1, $2, $3, $4, COALESCE($5, now()))
ON CONFLICT (id) DO UPDATE SET
    content = EXCLUDED.content,
    embedding = EXCLUDED.embedding,
    metadata = EXCLUDED.metadata,
    updated_at = now()
`

// UpsertDocument inserts a document or replaces its content, embedding and
// metadata if the ID already exists.
func (q *Queries) UpsertDocument(ctx context.Context, arg UpsertDocumentParams) error {
	var createdAt any
	if arg.CreatedAt.Valid {
		createdAt = arg.CreatedAt
	}
	_, err := q.pool.Exec(ctx, upsertDocument,
		arg.ID, arg.Content, arg.Embedding, arg.Metadata, createdAt)
	return err
}

// QueryDocumentsParams holds the arguments for QueryDocuments.
type QueryDocumentsParams struct {
	QueryEmbedding *pgvector.Vector
	FilterMetadata []byte
	ResultLimit    int32
}

// QueryDocumentsRow is one row of a filtered vector query.
type QueryDocumentsRow struct {
	ID        string
	Content   string
	Metadata  []byte
	CreatedAt pgtype.Timestamptz
	Distance  float64
}

const queryDocuments = `
SELECT id, content, metadata, created_at, embedding <=> $1 AS distance
FROM documents
WHERE metadata @> $2
ORDER BY embedding <=> $1
LIMIT $3
`

// QueryDocuments performs a filtered vector query ordered by ascending
// cosine distance.
func (q *Queries) QueryDocuments(ctx context.Context, arg QueryDocumentsParams) ([]QueryDocumentsRow, error) {
	rows, err := q.pool.Query(ctx, queryDocuments,
		arg.QueryEmbedding, arg.FilterMetadata, arg.ResultLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []QueryDocumentsRow
	for rows.Next() {
		var r QueryDocumentsRow
		if err := rows.Scan(&r.ID, &r.Content, &r.Metadata, &r.CreatedAt, &r.Distance); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

// QueryDocumentsAllParams holds the arguments for QueryDocumentsAll.
type QueryDocumentsAllParams struct {
	QueryEmbedding *pgvector.Vector
	ResultLimit    int32
}

// QueryDocumentsAllRow is one row of an unfiltered vector query.
type QueryDocumentsAllRow struct {
	ID        string
	Content   string
	Metadata  []byte
	CreatedAt pgtype.Timestamptz
	Distance  float64
}

const queryDocumentsAll = `
SELECT id, content, metadata, created_at, embedding <=> $1 AS distance
FROM documents
ORDER BY embedding <=> $1
LIMIT $2
`

// QueryDocumentsAll performs an unfiltered vector query ordered by ascending
// cosine distance.
func (q *Queries) QueryDocumentsAll(ctx context.Context, arg QueryDocumentsAllParams) ([]QueryDocumentsAllRow, error) {
	rows, err := q.pool.Query(ctx, queryDocumentsAll, arg.QueryEmbedding, arg.ResultLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []QueryDocumentsAllRow
	for rows.Next() {
		var r QueryDocumentsAllRow
		if err := rows.Scan(&r.ID, &r.Content, &r.Metadata, &r.CreatedAt, &r.Distance); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const countDocuments = `
SELECT count(*) FROM documents WHERE metadata @> $1
`

// CountDocuments counts documents whose metadata contains the given filter.
func (q *Queries) CountDocuments(ctx context.Context, filterMetadata []byte) (int64, error) {
	var count int64
	if err := q.pool.QueryRow(ctx, countDocuments, filterMetadata).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}

const countDocumentsAll = `
SELECT count(*) FROM documents
`

// CountDocumentsAll counts all documents.
func (q *Queries) CountDocumentsAll(ctx context.Context) (int64, error) {
	var count int64
	if err := q.pool.QueryRow(ctx, countDocumentsAll).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}

const deleteDocument = `
DELETE FROM documents WHERE id = $1
`

// DeleteDocument deletes a document by ID. Deleting a missing ID is not an
// error.
func (q *Queries) DeleteDocument(ctx context.Context, id string) error {
	_, err := q.pool.Exec(ctx, deleteDocument, id)
	return err
}
