// Package handlers contains the HTTP handlers for the chat assistant API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/curasoft/emr-assist/internal/assistant"
	"github.com/curasoft/emr-assist/internal/conversation"
	"github.com/curasoft/emr-assist/internal/observability/metrics"
	"github.com/curasoft/emr-assist/pkg/logging"
)

// ConversationService drives the structured booking flow.
type ConversationService interface {
	Start(ctx context.Context) (*conversation.State, error)
	Get(ctx context.Context, id string) (*conversation.State, error)
	Handle(ctx context.Context, id string, ev conversation.Event) (*conversation.State, error)
	AppendExchange(ctx context.Context, id, userText, replyText string) (*conversation.State, error)
}

// FreeformService answers unstructured chat turns.
type FreeformService interface {
	Chat(ctx context.Context, history []assistant.Turn, message string) string
}

// ChatHandler exposes the conversational booking API.
type ChatHandler struct {
	conversations ConversationService
	freeform      FreeformService
	metrics       *metrics.ConversationMetrics
	logger        *logging.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(conversations ConversationService, freeform FreeformService, m *metrics.ConversationMetrics, logger *logging.Logger) *ChatHandler {
	if conversations == nil {
		panic("handlers: conversation service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ChatHandler{
		conversations: conversations,
		freeform:      freeform,
		metrics:       m,
		logger:        logger,
	}
}

// conversationResponse is the wire shape of a conversation snapshot.
type conversationResponse struct {
	ID         string                 `json:"id"`
	Step       conversation.Step      `json:"step"`
	Generation uint64                 `json:"generation"`
	Messages   []conversation.Message `json:"messages"`
	UpdatedAt  time.Time              `json:"updatedAt"`
}

func toResponse(st *conversation.State) conversationResponse {
	return conversationResponse{
		ID:         st.ID,
		Step:       st.Step,
		Generation: st.Generation,
		Messages:   st.Messages,
		UpdatedAt:  st.UpdatedAt,
	}
}

// StartConversation opens a new conversation.
// POST /api/conversations
func (h *ChatHandler) StartConversation(w http.ResponseWriter, r *http.Request) {
	st, err := h.conversations.Start(r.Context())
	if err != nil {
		h.logger.Error("chat: failed to start conversation", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to start conversation")
		return
	}
	respondJSON(w, http.StatusCreated, toResponse(st))
}

// GetConversation returns the current snapshot.
// GET /api/conversations/{conversationID}
func (h *ChatHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	st, err := h.conversations.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			respondError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("chat: failed to load conversation", "error", err, "conversation_id", id)
		respondError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	respondJSON(w, http.StatusOK, toResponse(st))
}

type eventRequest struct {
	Event string `json:"event"`
	Value string `json:"value"`
}

// PostEvent applies one user event to the conversation.
// POST /api/conversations/{conversationID}/events
func (h *ChatHandler) PostEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Event) == "" {
		respondError(w, http.StatusBadRequest, "event is required")
		return
	}

	start := time.Now()
	st, err := h.conversations.Handle(r.Context(), id, conversation.Event{
		Kind:  conversation.EventKind(req.Event),
		Value: req.Value,
	})
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			respondError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("chat: event failed", "error", err, "conversation_id", id, "event", req.Event)
		respondError(w, http.StatusInternalServerError, "failed to process event")
		return
	}
	h.metrics.ObserveTurnLatency(time.Since(start).Seconds())
	respondJSON(w, http.StatusOK, toResponse(st))
}

type aiChatRequest struct {
	ConversationID string `json:"conversationId"`
	Message        string `json:"message"`
}

type aiChatResponse struct {
	Reply          string `json:"reply"`
	ConversationID string `json:"conversationId,omitempty"`
}

// AIAgentChat answers a free-form message. When a conversation ID is given
// the exchange is appended to that conversation's log.
// POST /api/ai-agent/chat
func (h *ChatHandler) AIAgentChat(w http.ResponseWriter, r *http.Request) {
	var req aiChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	var history []assistant.Turn
	if req.ConversationID != "" {
		st, err := h.conversations.Get(r.Context(), req.ConversationID)
		if err != nil {
			if errors.Is(err, conversation.ErrNotFound) {
				respondError(w, http.StatusNotFound, "conversation not found")
				return
			}
			h.logger.Error("chat: failed to load conversation", "error", err, "conversation_id", req.ConversationID)
			respondError(w, http.StatusInternalServerError, "failed to load conversation")
			return
		}
		history = assistant.History(st.Messages)
	}

	reply := assistant.FallbackReply
	if h.freeform != nil {
		reply = h.freeform.Chat(r.Context(), history, req.Message)
	}

	if req.ConversationID != "" {
		if _, err := h.conversations.AppendExchange(r.Context(), req.ConversationID, req.Message, reply); err != nil {
			h.logger.Warn("chat: failed to record freeform exchange", "error", err, "conversation_id", req.ConversationID)
		}
	}

	respondJSON(w, http.StatusOK, aiChatResponse{
		Reply:          reply,
		ConversationID: req.ConversationID,
	})
}
