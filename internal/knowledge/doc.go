// Package knowledge stores career-coaching reference documents in
// PostgreSQL with pgvector and retrieves them by semantic similarity.
//
// Documents are embedded on write. Queries return matches ordered by
// ascending cosine distance, so the first match is always the closest.
package knowledge
