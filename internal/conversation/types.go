// Package conversation persists chat history in PostgreSQL. All reads
// and writes are scoped to the owning user.
package conversation

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultTitle is used for conversations created without a title. The
// first user message replaces it.
const DefaultTitle = "New Chat"

// titleMaxLen caps auto-generated conversation titles.
const titleMaxLen = 50

// Sentinel errors, checked with errors.Is.
var (
	// ErrNotFound indicates the conversation does not exist or is not
	// owned by the caller. The two cases are deliberately
	// indistinguishable.
	ErrNotFound = errors.New("conversation not found")

	// ErrMessageNotFound indicates the message does not exist or its
	// conversation is not owned by the caller.
	ErrMessageNotFound = errors.New("message not found")

	// ErrInvalidRole indicates a message role outside user/assistant.
	ErrInvalidRole = errors.New("invalid message role")
)

// Conversation is one chat thread.
type Conversation struct {
	ID           uuid.UUID
	OwnerID      string
	Title        string
	Pinned       bool
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Message is a single turn stored in a conversation.
type Message struct {
	ID             int64
	ConversationID uuid.UUID
	Role           string
	Content        string
	Sources        []string
	Saved          bool
	CreatedAt      time.Time
}

// ValidRole reports whether role is a storable message role.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant
}
