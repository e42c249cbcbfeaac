package resume

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/innofolio/innofolio/internal/log"
)

// ErrNotFound indicates the resume does not exist or is not owned by
// the caller.
var ErrNotFound = errors.New("resume not found")

// Record is a stored resume evaluation.
type Record struct {
	ID        uuid.UUID
	OwnerID   string
	Filename  string
	Score     int
	Analysis  Analysis
	CreatedAt time.Time
}

// Querier is the database surface the Store depends on.
type Querier interface {
	InsertResume(ctx context.Context, arg InsertResumeParams) (ResumeRow, error)
	ListResumes(ctx context.Context, ownerID string) ([]ResumeRow, error)
	GetResume(ctx context.Context, arg GetResumeParams) (ResumeRow, error)
	DeleteResume(ctx context.Context, arg DeleteResumeParams) (int64, error)
}

// Queries is the pgx-backed implementation of Querier.
type Queries struct {
	pool *pgxpool.Pool
}

// NewQueries creates a Queries bound to the given connection pool.
func NewQueries(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

// ResumeRow mirrors the resumes table.
type ResumeRow struct {
	ID        pgtype.UUID
	OwnerID   string
	Filename  string
	Score     pgtype.Int4
	Analysis  []byte
	CreatedAt pgtype.Timestamptz
}

// InsertResumeParams holds the arguments for InsertResume.
type InsertResumeParams struct {
	OwnerID  string
	Filename string
	Score    int32
	Analysis []byte
}

const insertResume = `
INSERT INTO resumes (owner_id, filename, score, analysis)
VALUES ($1, $2, $3, $4)
RETURNING id, owner_id, filename, score, analysis, created_at
`

// InsertResume stores an analyzed resume.
func (q *Queries) InsertResume(ctx context.Context, arg InsertResumeParams) (ResumeRow, error) {
	var row ResumeRow
	err := q.pool.QueryRow(ctx, insertResume,
		arg.OwnerID, arg.Filename, arg.Score, arg.Analysis).Scan(
		&row.ID, &row.OwnerID, &row.Filename, &row.Score, &row.Analysis, &row.CreatedAt)
	return row, err
}

const listResumes = `
SELECT id, owner_id, filename, score, analysis, created_at
FROM resumes
WHERE owner_id = $1
ORDER BY created_at DESC
`

// ListResumes returns the owner's resumes, newest first.
func (q *Queries) ListResumes(ctx context.Context, ownerID string) ([]ResumeRow, error) {
	rows, err := q.pool.Query(ctx, listResumes, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ResumeRow
	for rows.Next() {
		var row ResumeRow
		if err := rows.Scan(&row.ID, &row.OwnerID, &row.Filename,
			&row.Score, &row.Analysis, &row.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// GetResumeParams holds the arguments for GetResume.
type GetResumeParams struct {
	ID      pgtype.UUID
	OwnerID string
}

const getResume = `
SELECT id, owner_id, filename, score, analysis, created_at
FROM resumes
WHERE id = $1 AND owner_id = $2
`

// GetResume fetches one owner-scoped resume.
func (q *Queries) GetResume(ctx context.Context, arg GetResumeParams) (ResumeRow, error) {
	var row ResumeRow
	err := q.pool.QueryRow(ctx, getResume, arg.ID, arg.OwnerID).Scan(
		&row.ID, &row.OwnerID, &row.Filename, &row.Score, &row.Analysis, &row.CreatedAt)
	return row, err
}

// DeleteResumeParams holds the arguments for DeleteResume.
type DeleteResumeParams struct {
	ID      pgtype.UUID
	OwnerID string
}

const deleteResume = `
DELETE FROM resumes
WHERE id = $1 AND owner_id = $2
`

// DeleteResume removes an owner-scoped resume and reports the rows
// deleted.
func (q *Queries) DeleteResume(ctx context.Context, arg DeleteResumeParams) (int64, error) {
	tag, err := q.pool.Exec(ctx, deleteResume, arg.ID, arg.OwnerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Store persists resume evaluations, owner-scoped.
type Store struct {
	querier Querier
	logger  log.Logger
}

// NewStore creates a Store.
func NewStore(querier Querier, logger log.Logger) *Store {
	return &Store{querier: querier, logger: logger}
}

// Save stores an analyzed resume for the owner.
func (s *Store) Save(ctx context.Context, ownerID, filename string, analysis Analysis) (*Record, error) {
	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis: %w", err)
	}

	row, err := s.querier.InsertResume(ctx, InsertResumeParams{
		OwnerID:  ownerID,
		Filename: filename,
		Score:    int32(analysis.Score),
		Analysis: analysisJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("save resume: %w", err)
	}

	record := rowToRecord(row)
	s.logger.Debug("saved resume", "id", record.ID, "owner", ownerID, "score", record.Score)
	return record, nil
}

// List returns the owner's resumes, newest first.
func (s *Store) List(ctx context.Context, ownerID string) ([]Record, error) {
	rows, err := s.querier.ListResumes(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list resumes: %w", err)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, *rowToRecord(row))
	}
	return records, nil
}

// Get fetches one resume with its analysis.
func (s *Store) Get(ctx context.Context, ownerID string, id uuid.UUID) (*Record, error) {
	row, err := s.querier.GetResume(ctx, GetResumeParams{
		ID:      pgtype.UUID{Bytes: id, Valid: true},
		OwnerID: ownerID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get resume: %w", err)
	}
	return rowToRecord(row), nil
}

// Delete removes a resume.
func (s *Store) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	deleted, err := s.querier.DeleteResume(ctx, DeleteResumeParams{
		ID:      pgtype.UUID{Bytes: id, Valid: true},
		OwnerID: ownerID,
	})
	if err != nil {
		return fmt.Errorf("delete resume: %w", err)
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

func rowToRecord(row ResumeRow) *Record {
	var analysis Analysis
	if len(row.Analysis) > 0 {
		// Malformed stored JSON degrades to an empty analysis.
		_ = json.Unmarshal(row.Analysis, &analysis)
	}
	return &Record{
		ID:        uuid.UUID(row.ID.Bytes),
		OwnerID:   row.OwnerID,
		Filename:  row.Filename,
		Score:     int(row.Score.Int32),
		Analysis:  analysis,
		CreatedAt: row.CreatedAt.Time,
	}
}
