package conversation

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Queries is the pgx-backed implementation of Querier.
type Queries struct {
	pool *pgxpool.Pool
}

// NewQueries creates a Queries bound to the given connection pool.
func NewQueries(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

// ConversationRow mirrors the conversations table.
type ConversationRow struct {
	ID        pgtype.UUID
	OwnerID   string
	Title     pgtype.Text
	IsPinned  bool
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
}

// ConversationWithCountRow adds the message count to a ConversationRow.
type ConversationWithCountRow struct {
	ConversationRow
	MessageCount int64
}

// MessageRow mirrors the messages table.
type MessageRow struct {
	ID             int64
	ConversationID pgtype.UUID
	Role           string
	Content        string
	Sources        []byte
	IsSaved        bool
	CreatedAt      pgtype.Timestamptz
}

// CreateConversationParams holds the arguments for CreateConversation.
type CreateConversationParams struct {
	OwnerID string
	Title   pgtype.Text
}

const createConversation = `
INSERT INTO conversations (owner_id, title)
VALUES ($1, $2)
RETURNING id, owner_id, title, is_pinned, created_at, updated_at
`

// CreateConversation inserts a conversation and returns the stored row.
func (q *Queries) CreateConversation(ctx context.Context, arg CreateConversationParams) (ConversationRow, error) {
	var row ConversationRow
	err := q.pool.QueryRow(ctx, createConversation, arg.OwnerID, arg.Title).Scan(
		&row.ID, &row.OwnerID, &row.Title, &row.IsPinned, &row.CreatedAt, &row.UpdatedAt)
	return row, err
}

// GetConversationParams holds the arguments for GetConversation.
type GetConversationParams struct {
	ID      pgtype.UUID
	OwnerID string
}

const getConversation = `
SELECT c.id, c.owner_id, c.title, c.is_pinned, c.created_at, c.updated_at,
       (SELECT count(*) FROM messages m WHERE m.conversation_id = c.id) AS message_count
FROM conversations c
WHERE c.id = $1 AND c.owner_id = $2
`

// GetConversation fetches one owner-scoped conversation. Returns
// pgx.ErrNoRows when absent or owned by someone else.
func (q *Queries) GetConversation(ctx context.Context, arg GetConversationParams) (ConversationWithCountRow, error) {
	var row ConversationWithCountRow
	err := q.pool.QueryRow(ctx, getConversation, arg.ID, arg.OwnerID).Scan(
		&row.ID, &row.OwnerID, &row.Title, &row.IsPinned,
		&row.CreatedAt, &row.UpdatedAt, &row.MessageCount)
	return row, err
}

const listConversations = `
SELECT c.id, c.owner_id, c.title, c.is_pinned, c.created_at, c.updated_at,
       count(m.id) AS message_count
FROM conversations c
LEFT JOIN messages m ON m.conversation_id = c.id
WHERE c.owner_id = $1
GROUP BY c.id
ORDER BY c.is_pinned DESC, c.updated_at DESC
`

// ListConversations returns the owner's conversations, pinned first,
// most recently updated first within each group.
func (q *Queries) ListConversations(ctx context.Context, ownerID string) ([]ConversationWithCountRow, error) {
	rows, err := q.pool.Query(ctx, listConversations, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ConversationWithCountRow
	for rows.Next() {
		var row ConversationWithCountRow
		if err := rows.Scan(&row.ID, &row.OwnerID, &row.Title, &row.IsPinned,
			&row.CreatedAt, &row.UpdatedAt, &row.MessageCount); err != nil {
			return nil, err
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// DeleteConversationParams holds the arguments for DeleteConversation.
type DeleteConversationParams struct {
	ID      pgtype.UUID
	OwnerID string
}

const deleteConversation = `
DELETE FROM conversations
WHERE id = $1 AND owner_id = $2
`

// DeleteConversation removes an owner-scoped conversation and, through
// the FK cascade, its messages. Returns the number of rows deleted.
func (q *Queries) DeleteConversation(ctx context.Context, arg DeleteConversationParams) (int64, error) {
	tag, err := q.pool.Exec(ctx, deleteConversation, arg.ID, arg.OwnerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// AddMessageParams holds the arguments for AddMessage.
type AddMessageParams struct {
	ConversationID pgtype.UUID
	Role           string
	Content        string
	Sources        []byte
}

const addMessage = `
INSERT INTO messages (conversation_id, role, content, sources)
VALUES ($1, $2, $3, $4)
RETURNING id, conversation_id, role, content, sources, is_saved, created_at
`

// AddMessage appends a message to a conversation.
func (q *Queries) AddMessage(ctx context.Context, arg AddMessageParams) (MessageRow, error) {
	var row MessageRow
	err := q.pool.QueryRow(ctx, addMessage,
		arg.ConversationID, arg.Role, arg.Content, arg.Sources).Scan(
		&row.ID, &row.ConversationID, &row.Role, &row.Content,
		&row.Sources, &row.IsSaved, &row.CreatedAt)
	return row, err
}

const listMessages = `
SELECT id, conversation_id, role, content, sources, is_saved, created_at
FROM messages
WHERE conversation_id = $1
ORDER BY id
`

// ListMessages returns a conversation's messages in insertion order.
func (q *Queries) ListMessages(ctx context.Context, conversationID pgtype.UUID) ([]MessageRow, error) {
	rows, err := q.pool.Query(ctx, listMessages, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []MessageRow
	for rows.Next() {
		var row MessageRow
		if err := rows.Scan(&row.ID, &row.ConversationID, &row.Role, &row.Content,
			&row.Sources, &row.IsSaved, &row.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// TouchConversationParams holds the arguments for TouchConversation.
type TouchConversationParams struct {
	ID    pgtype.UUID
	Title pgtype.Text // applied only when the current title is NULL or the default
}

const touchConversation = `
UPDATE conversations
SET updated_at = now(),
    title = CASE
        WHEN $2::text IS NOT NULL AND (title IS NULL OR title = 'New Chat') THEN $2
        ELSE title
    END
WHERE id = $1
`

// TouchConversation bumps updated_at and fills in an auto-generated
// title when none has been set yet.
func (q *Queries) TouchConversation(ctx context.Context, arg TouchConversationParams) error {
	_, err := q.pool.Exec(ctx, touchConversation, arg.ID, arg.Title)
	return err
}

// TogglePinnedParams holds the arguments for TogglePinned.
type TogglePinnedParams struct {
	ID      pgtype.UUID
	OwnerID string
}

const togglePinned = `
UPDATE conversations
SET is_pinned = NOT is_pinned
WHERE id = $1 AND owner_id = $2
RETURNING is_pinned
`

// TogglePinned flips the pin flag atomically and returns the new value.
func (q *Queries) TogglePinned(ctx context.Context, arg TogglePinnedParams) (bool, error) {
	var pinned bool
	err := q.pool.QueryRow(ctx, togglePinned, arg.ID, arg.OwnerID).Scan(&pinned)
	return pinned, err
}

// ToggleSavedParams holds the arguments for ToggleSaved.
type ToggleSavedParams struct {
	MessageID int64
	OwnerID   string
}

const toggleSaved = `
UPDATE messages m
SET is_saved = NOT m.is_saved
FROM conversations c
WHERE m.id = $1 AND c.id = m.conversation_id AND c.owner_id = $2
RETURNING m.is_saved
`

// ToggleSaved flips a message's saved flag, verifying ownership through
// the parent conversation.
func (q *Queries) ToggleSaved(ctx context.Context, arg ToggleSavedParams) (bool, error) {
	var saved bool
	err := q.pool.QueryRow(ctx, toggleSaved, arg.MessageID, arg.OwnerID).Scan(&saved)
	return saved, err
}
