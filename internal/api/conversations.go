package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/innofolio/innofolio/internal/auth"
	"github.com/innofolio/innofolio/internal/conversation"
	"github.com/innofolio/innofolio/internal/log"
	"github.com/innofolio/innofolio/internal/safety"
)

// ConversationStore is the slice of conversation.Store the handler needs.
type ConversationStore interface {
	Create(ctx context.Context, ownerID, title string) (*conversation.Conversation, error)
	Get(ctx context.Context, ownerID string, id uuid.UUID) (*conversation.Conversation, []conversation.Message, error)
	List(ctx context.Context, ownerID string) ([]conversation.Conversation, error)
	Delete(ctx context.Context, ownerID string, id uuid.UUID) error
	AddMessage(ctx context.Context, ownerID string, conversationID uuid.UUID, role, content string, sources []string) (*conversation.Message, error)
	History(ctx context.Context, ownerID string, conversationID uuid.UUID, limit int) ([]conversation.Message, error)
	TogglePin(ctx context.Context, ownerID string, id uuid.UUID) (bool, error)
	ToggleSave(ctx context.Context, ownerID string, messageID int64) (bool, error)
}

// ConversationHandler serves authenticated conversation management.
type ConversationHandler struct {
	store  ConversationStore
	logger log.Logger
}

func NewConversationHandler(store ConversationStore, logger log.Logger) *ConversationHandler {
	return &ConversationHandler{store: store, logger: logger}
}

// RegisterRoutes registers conversation routes on the given mux.
func (h *ConversationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/conversations", h.list)
	mux.HandleFunc("POST /api/conversations", h.create)
	mux.HandleFunc("GET /api/conversations/{id}", h.get)
	mux.HandleFunc("DELETE /api/conversations/{id}", h.delete)
	mux.HandleFunc("POST /api/conversations/{id}/messages", h.addMessage)
	mux.HandleFunc("PATCH /api/conversations/{id}/pin", h.togglePin)
	mux.HandleFunc("PATCH /api/messages/{id}/save", h.toggleSave)
}

type conversationJSON struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Pinned       bool      `json:"pinned"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type messageJSON struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Sources   []string  `json:"sources"`
	Saved     bool      `json:"saved"`
	CreatedAt time.Time `json:"created_at"`
}

func toConversationJSON(c *conversation.Conversation) conversationJSON {
	return conversationJSON{
		ID:           c.ID.String(),
		Title:        c.Title,
		Pinned:       c.Pinned,
		MessageCount: c.MessageCount,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func toMessageJSON(m conversation.Message) messageJSON {
	sources := m.Sources
	if sources == nil {
		sources = []string{}
	}
	return messageJSON{
		ID:        m.ID,
		Role:      m.Role,
		Content:   m.Content,
		Sources:   sources,
		Saved:     m.Saved,
		CreatedAt: m.CreatedAt,
	}
}

// requireIdentity extracts the authenticated identity or writes a 401.
func requireIdentity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return nil, false
	}
	return identity, true
}

func pathUUID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid conversation id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *ConversationHandler) list(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	conversations, err := h.store.List(r.Context(), identity.ID)
	if err != nil {
		h.logger.Error("failed to list conversations", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list conversations")
		return
	}
	out := make([]conversationJSON, 0, len(conversations))
	for i := range conversations {
		out = append(out, toConversationJSON(&conversations[i]))
	}
	writeJSON(w, http.StatusOK, map[string][]conversationJSON{"conversations": out})
}

func (h *ConversationHandler) create(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	conv, err := h.store.Create(r.Context(), identity.ID, safety.Sanitize(body.Title))
	if err != nil {
		h.logger.Error("failed to create conversation", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create conversation")
		return
	}
	writeJSON(w, http.StatusCreated, toConversationJSON(conv))
}

func (h *ConversationHandler) get(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	conv, messages, err := h.store.Get(r.Context(), identity.ID, id)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "conversation not found")
			return
		}
		h.logger.Error("failed to get conversation", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get conversation")
		return
	}
	out := make([]messageJSON, 0, len(messages))
	for _, m := range messages {
		out = append(out, toMessageJSON(m))
	}
	writeJSON(w, http.StatusOK, struct {
		conversationJSON
		Messages []messageJSON `json:"messages"`
	}{toConversationJSON(conv), out})
}

func (h *ConversationHandler) delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), identity.ID, id); err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "conversation not found")
			return
		}
		h.logger.Error("failed to delete conversation", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ConversationHandler) addMessage(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	var body struct {
		Role    string   `json:"role"`
		Content string   `json:"content"`
		Sources []string `json:"sources"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if body.Content == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "content is required")
		return
	}
	msg, err := h.store.AddMessage(r.Context(), identity.ID, id, body.Role, body.Content, body.Sources)
	if err != nil {
		switch {
		case errors.Is(err, conversation.ErrInvalidRole):
			writeError(w, http.StatusBadRequest, "invalid_request", "role must be user or assistant")
		case errors.Is(err, conversation.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "conversation not found")
		default:
			h.logger.Error("failed to add message", "error", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to add message")
		}
		return
	}
	writeJSON(w, http.StatusCreated, toMessageJSON(*msg))
}

func (h *ConversationHandler) togglePin(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	pinned, err := h.store.TogglePin(r.Context(), identity.ID, id)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "conversation not found")
			return
		}
		h.logger.Error("failed to toggle pin", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to toggle pin")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"pinned": pinned})
}

func (h *ConversationHandler) toggleSave(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	messageID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid message id")
		return
	}
	saved, err := h.store.ToggleSave(r.Context(), identity.ID, messageID)
	if err != nil {
		if errors.Is(err, conversation.ErrMessageNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "message not found")
			return
		}
		h.logger.Error("failed to toggle save", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to toggle save")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"saved": saved})
}
