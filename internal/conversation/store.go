package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/innofolio/innofolio/internal/log"
)

// Querier is the database surface the Store depends on. Interfaces are
// defined by the consumer; Queries is the pgx implementation.
type Querier interface {
	CreateConversation(ctx context.Context, arg CreateConversationParams) (ConversationRow, error)
	GetConversation(ctx context.Context, arg GetConversationParams) (ConversationWithCountRow, error)
	ListConversations(ctx context.Context, ownerID string) ([]ConversationWithCountRow, error)
	DeleteConversation(ctx context.Context, arg DeleteConversationParams) (int64, error)
	TouchConversation(ctx context.Context, arg TouchConversationParams) error
	TogglePinned(ctx context.Context, arg TogglePinnedParams) (bool, error)

	AddMessage(ctx context.Context, arg AddMessageParams) (MessageRow, error)
	ListMessages(ctx context.Context, conversationID pgtype.UUID) ([]MessageRow, error)
	ToggleSaved(ctx context.Context, arg ToggleSavedParams) (bool, error)
}

// Store manages owner-scoped conversation persistence. Safe for
// concurrent use.
type Store struct {
	querier Querier
	logger  log.Logger
}

// New creates a Store.
func New(querier Querier, logger log.Logger) *Store {
	return &Store{querier: querier, logger: logger}
}

// Create starts a conversation. An empty title stores the default.
func (s *Store) Create(ctx context.Context, ownerID, title string) (*Conversation, error) {
	if ownerID == "" {
		return nil, errors.New("owner id is required")
	}
	if title == "" {
		title = DefaultTitle
	}

	row, err := s.querier.CreateConversation(ctx, CreateConversationParams{
		OwnerID: ownerID,
		Title:   pgtype.Text{String: title, Valid: true},
	})
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	conv := rowToConversation(row, 0)
	s.logger.Debug("created conversation", "id", conv.ID, "owner", ownerID)
	return conv, nil
}

// Get returns a conversation and its messages in insertion order.
func (s *Store) Get(ctx context.Context, ownerID string, id uuid.UUID) (*Conversation, []Message, error) {
	row, err := s.querier.GetConversation(ctx, GetConversationParams{
		ID:      pgUUID(id),
		OwnerID: ownerID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("get conversation: %w", err)
	}

	msgRows, err := s.querier.ListMessages(ctx, pgUUID(id))
	if err != nil {
		return nil, nil, fmt.Errorf("list messages: %w", err)
	}

	messages := make([]Message, 0, len(msgRows))
	for _, m := range msgRows {
		messages = append(messages, rowToMessage(m))
	}
	return rowToConversation(row.ConversationRow, row.MessageCount), messages, nil
}

// List returns the owner's conversations, pinned first, most recently
// updated first.
func (s *Store) List(ctx context.Context, ownerID string) ([]Conversation, error) {
	rows, err := s.querier.ListConversations(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	conversations := make([]Conversation, 0, len(rows))
	for _, row := range rows {
		conversations = append(conversations, *rowToConversation(row.ConversationRow, row.MessageCount))
	}
	return conversations, nil
}

// Delete removes a conversation and all its messages.
func (s *Store) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	deleted, err := s.querier.DeleteConversation(ctx, DeleteConversationParams{
		ID:      pgUUID(id),
		OwnerID: ownerID,
	})
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if deleted == 0 {
		return ErrNotFound
	}
	s.logger.Debug("deleted conversation", "id", id, "owner", ownerID)
	return nil
}

// AddMessage appends a turn to an owned conversation. A user message
// bumps the conversation's updated_at and fills in the title from the
// message text while the title is still the default.
func (s *Store) AddMessage(ctx context.Context, ownerID string, conversationID uuid.UUID, role, content string, sources []string) (*Message, error) {
	if !ValidRole(role) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	// Ownership check before the insert; messages carry no owner column.
	if _, err := s.querier.GetConversation(ctx, GetConversationParams{
		ID:      pgUUID(conversationID),
		OwnerID: ownerID,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	if sources == nil {
		sources = []string{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return nil, fmt.Errorf("marshal sources: %w", err)
	}

	row, err := s.querier.AddMessage(ctx, AddMessageParams{
		ConversationID: pgUUID(conversationID),
		Role:           role,
		Content:        content,
		Sources:        sourcesJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("add message: %w", err)
	}

	touch := TouchConversationParams{ID: pgUUID(conversationID)}
	if role == RoleUser {
		touch.Title = pgtype.Text{String: deriveTitle(content), Valid: true}
	}
	if err := s.querier.TouchConversation(ctx, touch); err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}

	msg := rowToMessage(row)
	return &msg, nil
}

// History returns the most recent messages of an owned conversation in
// chronological order, capped at limit (0 = no cap).
func (s *Store) History(ctx context.Context, ownerID string, conversationID uuid.UUID, limit int) ([]Message, error) {
	_, messages, err := s.Get(ctx, ownerID, conversationID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

// TogglePin flips the pin flag and returns the new value.
func (s *Store) TogglePin(ctx context.Context, ownerID string, id uuid.UUID) (bool, error) {
	pinned, err := s.querier.TogglePinned(ctx, TogglePinnedParams{
		ID:      pgUUID(id),
		OwnerID: ownerID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("toggle pin: %w", err)
	}
	return pinned, nil
}

// ToggleSave flips a message's saved flag and returns the new value.
func (s *Store) ToggleSave(ctx context.Context, ownerID string, messageID int64) (bool, error) {
	saved, err := s.querier.ToggleSaved(ctx, ToggleSavedParams{
		MessageID: messageID,
		OwnerID:   ownerID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrMessageNotFound
		}
		return false, fmt.Errorf("toggle save: %w", err)
	}
	return saved, nil
}

func deriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= titleMaxLen {
		return content
	}
	return string(runes[:titleMaxLen]) + "..."
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func rowToConversation(row ConversationRow, messageCount int64) *Conversation {
	title := DefaultTitle
	if row.Title.Valid && row.Title.String != "" {
		title = row.Title.String
	}
	return &Conversation{
		ID:           uuid.UUID(row.ID.Bytes),
		OwnerID:      row.OwnerID,
		Title:        title,
		Pinned:       row.IsPinned,
		MessageCount: int(messageCount),
		CreatedAt:    row.CreatedAt.Time,
		UpdatedAt:    row.UpdatedAt.Time,
	}
}

func rowToMessage(row MessageRow) Message {
	var sources []string
	if len(row.Sources) > 0 {
		// Malformed stored JSON degrades to no sources.
		_ = json.Unmarshal(row.Sources, &sources)
	}
	return Message{
		ID:             row.ID,
		ConversationID: uuid.UUID(row.ConversationID.Bytes),
		Role:           row.Role,
		Content:        row.Content,
		Sources:        sources,
		Saved:          row.IsSaved,
		CreatedAt:      row.CreatedAt.Time,
	}
}
