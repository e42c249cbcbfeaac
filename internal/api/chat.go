package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/innofolio/innofolio/internal/auth"
	"github.com/innofolio/innofolio/internal/conversation"
	"github.com/innofolio/innofolio/internal/llm"
	"github.com/innofolio/innofolio/internal/log"
	"github.com/innofolio/innofolio/internal/rag"
	"github.com/innofolio/innofolio/internal/safety"
)

// maxChatBody limits chat request bodies.
const maxChatBody = 1024 * 1024

// genericFailure is returned for backend errors. Details stay in the logs.
const genericFailure = "Failed to generate a response. Please try again."

// Responder is the slice of rag.Pipeline the chat handler needs.
type Responder interface {
	Respond(ctx context.Context, req rag.Request) (*rag.Result, error)
	RespondStream(ctx context.Context, req rag.Request, stream llm.StreamFunc) (*rag.Result, error)
}

// HistoryStore is the slice of conversation.Store the chat handler needs.
type HistoryStore interface {
	History(ctx context.Context, ownerID string, conversationID uuid.UUID, limit int) ([]conversation.Message, error)
	AddMessage(ctx context.Context, ownerID string, conversationID uuid.UUID, role, content string, sources []string) (*conversation.Message, error)
}

// ChatHandler serves the chat endpoints.
//
// Endpoints:
//   - POST /api/chat        - blocking chat (JSON request/response)
//   - POST /api/chat/stream - streaming chat (SSE)
//   - GET  /api/suggestions - starter prompts
type ChatHandler struct {
	pipeline      Responder
	conversations HistoryStore
	historyWindow int
	logger        log.Logger
}

// NewChatHandler creates a chat handler. conversations may be nil, which
// disables server-side history; clients then send history in the body.
func NewChatHandler(pipeline Responder, conversations HistoryStore, historyWindow int, logger log.Logger) *ChatHandler {
	if historyWindow <= 0 {
		historyWindow = rag.DefaultHistoryWindow
	}
	return &ChatHandler{
		pipeline:      pipeline,
		conversations: conversations,
		historyWindow: historyWindow,
		logger:        logger,
	}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.chat)
	mux.HandleFunc("POST /api/chat/stream", h.stream)
	mux.HandleFunc("GET /api/suggestions", h.suggestions)
}

type chatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Message             string     `json:"message"`
	ConversationHistory []chatTurn `json:"conversation_history"`
	ConversationID      string     `json:"conversation_id,omitempty"`
}

type chatResponse struct {
	Response       string   `json:"response"`
	Sources        []string `json:"sources"`
	ConversationID string   `json:"conversation_id,omitempty"`
}

// preparedChat is a validated chat request ready for the pipeline.
type preparedChat struct {
	request        rag.Request
	identity       *auth.Identity
	conversationID uuid.UUID
	persist        bool
}

// prepare validates the body and assembles the pipeline request. History
// comes from the conversation store when a conversation_id is supplied by
// an authenticated caller, otherwise from the request body.
func (h *ChatHandler) prepare(r *http.Request, body chatRequest) (*preparedChat, int, error) {
	message := safety.Sanitize(body.Message)
	if message == "" {
		return nil, http.StatusBadRequest, errors.New("message is required")
	}

	prep := &preparedChat{
		request: rag.Request{Message: message},
	}

	if identity, ok := auth.IdentityFrom(r.Context()); ok {
		prep.identity = identity
		prep.request.Profile = &rag.Profile{
			CareerStage: identity.CareerStage,
			TargetRole:  identity.TargetRole,
		}
	}

	if body.ConversationID != "" {
		if prep.identity == nil {
			return nil, http.StatusUnauthorized, errors.New("authentication required for conversation history")
		}
		if h.conversations == nil {
			return nil, http.StatusBadRequest, errors.New("conversation storage is not enabled")
		}
		id, err := uuid.Parse(body.ConversationID)
		if err != nil {
			return nil, http.StatusBadRequest, errors.New("invalid conversation_id")
		}
		messages, err := h.conversations.History(r.Context(), prep.identity.ID, id, h.historyWindow)
		if err != nil {
			if errors.Is(err, conversation.ErrNotFound) {
				return nil, http.StatusNotFound, errors.New("conversation not found")
			}
			return nil, http.StatusInternalServerError, fmt.Errorf("load history: %w", err)
		}
		prep.conversationID = id
		prep.persist = true
		for _, m := range messages {
			prep.request.History = append(prep.request.History, rag.Turn{Role: m.Role, Content: m.Content})
		}
		return prep, 0, nil
	}

	for _, turn := range body.ConversationHistory {
		prep.request.History = append(prep.request.History, rag.Turn{Role: turn.Role, Content: turn.Content})
	}
	return prep, 0, nil
}

// writePrepareError maps a prepare failure onto the error envelope.
// Internal failures get a generic message; details stay in the logs.
func (h *ChatHandler) writePrepareError(w http.ResponseWriter, status int, err error) {
	switch status {
	case http.StatusUnauthorized:
		writeError(w, status, "unauthorized", err.Error())
	case http.StatusNotFound:
		writeError(w, status, "not_found", err.Error())
	case http.StatusInternalServerError:
		h.logger.Error("chat preparation failed", "error", err)
		writeError(w, status, "internal_error", genericFailure)
	default:
		writeError(w, status, "invalid_request", err.Error())
	}
}

// persist writes the exchanged turns after a successful pipeline run.
// Persistence failures are logged, not surfaced; the user already has
// the response.
func (h *ChatHandler) persist(ctx context.Context, prep *preparedChat, result *rag.Result) {
	if !prep.persist {
		return
	}
	if _, err := h.conversations.AddMessage(ctx, prep.identity.ID, prep.conversationID,
		conversation.RoleUser, prep.request.Message, nil); err != nil {
		h.logger.Error("failed to persist user message", "error", err)
		return
	}
	if _, err := h.conversations.AddMessage(ctx, prep.identity.ID, prep.conversationID,
		conversation.RoleAssistant, result.Response, result.Sources); err != nil {
		h.logger.Error("failed to persist assistant message", "error", err)
	}
}

func (h *ChatHandler) chat(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBody)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	prep, status, err := h.prepare(r, body)
	if err != nil {
		h.writePrepareError(w, status, err)
		return
	}

	result, err := h.pipeline.Respond(r.Context(), prep.request)
	if err != nil {
		h.logger.Error("chat pipeline failed", "error", err)
		writeError(w, http.StatusInternalServerError, "generation_failed", genericFailure)
		return
	}

	h.persist(r.Context(), prep, result)

	writeJSON(w, http.StatusOK, chatResponse{
		Response:       result.Response,
		Sources:        result.Sources,
		ConversationID: body.ConversationID,
	})
}

// stream serves SSE chat. Chunks are sent as data: {"content": "..."}
// events; the stream is always terminated by a single data: [DONE]
// sentinel, including after errors and canned replies.
func (h *ChatHandler) stream(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBody)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	prep, status, err := h.prepare(r, body)
	if err != nil {
		h.writePrepareError(w, status, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	result, err := h.pipeline.RespondStream(r.Context(), prep.request,
		func(_ context.Context, chunk string) error {
			return writeContentEvent(w, flusher, chunk)
		})
	if err != nil {
		h.logger.Error("chat stream failed", "error", err)
		_ = writeContentEvent(w, flusher, genericFailure)
		writeDone(w, flusher)
		return
	}

	h.persist(r.Context(), prep, result)
	writeDone(w, flusher)
}

func writeContentEvent(w http.ResponseWriter, flusher http.Flusher, text string) error {
	payload, err := json.Marshal(struct {
		Content string `json:"content"`
	}{Content: text})
	if err != nil {
		return fmt.Errorf("marshal chunk: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write chunk: %w", err)
	}
	flusher.Flush()
	return nil
}

func writeDone(w http.ResponseWriter, flusher http.Flusher) {
	_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// suggestion is one starter prompt for new users.
type suggestion struct {
	Icon   string `json:"icon"`
	Title  string `json:"title"`
	Prompt string `json:"prompt"`
}

var starterSuggestions = []suggestion{
	{
		Icon:   "📄",
		Title:  "Resume Review",
		Prompt: "How can I improve my resume for a software engineering role?",
	},
	{
		Icon:   "🎯",
		Title:  "Interview Prep",
		Prompt: "What are the most common interview questions for freshers?",
	},
	{
		Icon:   "💼",
		Title:  "Job Search",
		Prompt: "What's the best strategy for finding my first job?",
	},
	{
		Icon:   "🗺️",
		Title:  "Career Path",
		Prompt: "What skills should I learn to become a full-stack developer?",
	},
}

func (h *ChatHandler) suggestions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]suggestion{"suggestions": starterSuggestions})
}
