// Package webchat is the real-time chat surface: it bridges WebSocket (and
// an HTTP fallback) to the conversation engine and the free-form assistant.
package webchat

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/websocket"

	"github.com/curasoft/emr-assist/internal/assistant"
	"github.com/curasoft/emr-assist/internal/conversation"
	"github.com/curasoft/emr-assist/pkg/logging"
)

// The embeddable launcher served at /chat/widget.js. Deployments can
// swap in their own build via NewHandler.
//
//go:embed widget.js
var defaultWidgetJS []byte

// ConversationService drives the structured booking flow.
type ConversationService interface {
	Start(ctx context.Context) (*conversation.State, error)
	Get(ctx context.Context, id string) (*conversation.State, error)
	Handle(ctx context.Context, id string, ev conversation.Event) (*conversation.State, error)
	AppendExchange(ctx context.Context, id, userText, replyText string) (*conversation.State, error)
}

// FreeformService answers chat turns that are not structured events.
type FreeformService interface {
	Chat(ctx context.Context, history []assistant.Turn, message string) string
}

// Handler manages web chat connections.
type Handler struct {
	conversations ConversationService
	freeform      FreeformService
	logger        *logging.Logger
	widgetJS      []byte
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type  string `json:"type"` // "event", "message", "ping"
	Event string `json:"event,omitempty"`
	Value string `json:"value,omitempty"`
	Text  string `json:"text,omitempty"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string                 `json:"type"` // "session", "messages", "typing", "pong", "error"
	Text      string                 `json:"text,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	Step      string                 `json:"step,omitempty"`
	Messages  []conversation.Message `json:"messages,omitempty"`
}

// NewHandler creates a web chat handler. A nil widgetJS serves the
// embedded default widget.
func NewHandler(conversations ConversationService, freeform FreeformService, widgetJS []byte, logger *logging.Logger) *Handler {
	if conversations == nil {
		panic("webchat: conversation service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if widgetJS == nil {
		widgetJS = defaultWidgetJS
	}
	return &Handler{
		conversations: conversations,
		freeform:      freeform,
		logger:        logger,
		widgetJS:      widgetJS,
	}
}

// HandleWebSocket upgrades to WebSocket and handles real-time messaging.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	ctx := r.Context()

	st, err := h.resume(ctx, r.URL.Query().Get("session"))
	if err != nil {
		h.logger.Error("webchat: failed to open session", "error", err)
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "could not open a chat session"})
		return
	}

	_ = websocket.JSON.Send(conn, OutboundMessage{Type: "session", SessionID: st.ID})
	_ = websocket.JSON.Send(conn, OutboundMessage{
		Type:     "messages",
		Step:     string(st.Step),
		Messages: st.Messages,
	})

	h.logger.Info("webchat: connection opened", "session_id", st.ID)

	seen := len(st.Messages)
	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", st.ID, "error", err)
			return
		}

		switch msg.Type {
		case "ping":
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
			continue
		case "event":
			h.sendToConn(conn, OutboundMessage{Type: "typing"})
			next, err := h.conversations.Handle(ctx, st.ID, conversation.Event{
				Kind:  conversation.EventKind(msg.Event),
				Value: msg.Value,
			})
			if err != nil {
				h.logger.Error("webchat: event failed", "error", err, "session_id", st.ID)
				h.sendToConn(conn, OutboundMessage{Type: "error", Text: "Sorry, something went wrong. Please try again."})
				continue
			}
			seen = h.sendDelta(conn, next, seen)
		case "message":
			if strings.TrimSpace(msg.Text) == "" {
				continue
			}
			h.sendToConn(conn, OutboundMessage{Type: "typing"})
			next, err := h.freeformTurn(ctx, st.ID, msg.Text)
			if err != nil {
				h.logger.Error("webchat: freeform turn failed", "error", err, "session_id", st.ID)
				h.sendToConn(conn, OutboundMessage{Type: "error", Text: "Sorry, something went wrong. Please try again."})
				continue
			}
			seen = h.sendDelta(conn, next, seen)
		}
	}
}

// resume loads the named session, or opens a fresh one when it is missing
// or expired.
func (h *Handler) resume(ctx context.Context, sessionID string) (*conversation.State, error) {
	if sessionID != "" {
		st, err := h.conversations.Get(ctx, sessionID)
		if err == nil {
			return st, nil
		}
		if !errors.Is(err, conversation.ErrNotFound) {
			return nil, err
		}
	}
	return h.conversations.Start(ctx)
}

// freeformTurn answers an unstructured message and records both turns in
// the conversation log.
func (h *Handler) freeformTurn(ctx context.Context, id, text string) (*conversation.State, error) {
	st, err := h.conversations.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	reply := assistant.FallbackReply
	if h.freeform != nil {
		reply = h.freeform.Chat(ctx, assistant.History(st.Messages), text)
	}
	return h.conversations.AppendExchange(ctx, id, text, reply)
}

// sendDelta pushes only the messages appended since the last send.
func (h *Handler) sendDelta(conn *websocket.Conn, st *conversation.State, seen int) int {
	if st == nil {
		return seen
	}
	if seen > len(st.Messages) {
		seen = 0
	}
	h.sendToConn(conn, OutboundMessage{
		Type:     "messages",
		Step:     string(st.Step),
		Messages: st.Messages[seen:],
	})
	return len(st.Messages)
}

func (h *Handler) sendToConn(conn *websocket.Conn, msg OutboundMessage) {
	_ = websocket.JSON.Send(conn, msg)
}

// HandleHistory returns the full message log for a session.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}

	st, err := h.conversations.Get(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		h.logger.Error("webchat: failed to load history", "error", err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"session_id": st.ID,
		"step":       st.Step,
		"messages":   st.Messages,
		"updated_at": st.UpdatedAt.Format(time.RFC3339),
	})
}

// HandleWidgetJS serves the embeddable widget JavaScript.
func (h *Handler) HandleWidgetJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_, _ = w.Write(h.widgetJS)
}
