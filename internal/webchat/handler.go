package webchat

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/websocket"

	"github.com/wolfman30/leasing-ai-platform/internal/conversation"
	"github.com/wolfman30/leasing-ai-platform/pkg/logging"
)

const historyLimit = 50

// TurnHandler runs chat turns.
type TurnHandler interface {
	HandleTurn(ctx context.Context, req conversation.TurnRequest) (*conversation.TurnResponse, error)
	Greeting(ctx context.Context) (*conversation.TurnResponse, error)
}

// SessionReader loads a session so a reconnecting widget can show its history.
type SessionReader interface {
	Get(ctx context.Context, id string) (*conversation.Session, error)
}

// Handler serves the chat widget over a WebSocket.
type Handler struct {
	turns    TurnHandler
	sessions SessionReader
	logger   *logging.Logger
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type      string `json:"type"` // "message", "ping"
	Text      string `json:"text"`
	RequestID string `json:"request_id,omitempty"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string           `json:"type"` // "session", "history", "message", "typing", "error", "pong"
	Text      string           `json:"text,omitempty"`
	Role      string           `json:"role,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
	Retryable bool             `json:"retryable,omitempty"`
	Messages  []HistoryMessage `json:"messages,omitempty"`
}

// HistoryMessage is a simplified message for history responses.
type HistoryMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// NewHandler creates a web chat handler. sessions may be nil.
func NewHandler(turns TurnHandler, sessions SessionReader, logger *logging.Logger) *Handler {
	if turns == nil {
		panic("webchat: turn handler cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{turns: turns, sessions: sessions, logger: logger}
}

// HandleWebSocket upgrades to WebSocket and runs one turn per inbound message.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Server{
		Handler: func(conn *websocket.Conn) {
			h.serveWS(conn, r)
		},
	}.ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	// Hijacked connections keep the server's read and write deadlines.
	_ = conn.SetDeadline(time.Time{})

	ctx := r.Context()
	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))

	if sessionID == "" {
		greeting, err := h.turns.Greeting(ctx)
		if err != nil {
			h.logger.Error("webchat: greeting failed", "error", err)
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "Sorry, something went wrong. Please try again."})
			return
		}
		sessionID = greeting.SessionID
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "session", SessionID: sessionID})
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "message", Role: conversation.ChatRoleAssistant, Text: greeting.Message})
	} else {
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "session", SessionID: sessionID})
		if history := h.history(ctx, sessionID); len(history) > 0 {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "history", Messages: history})
		}
	}

	logger := h.logger.With("session_id", sessionID)
	logger.Info("webchat: connection opened")

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			logger.Debug("webchat: connection closed", "error", err)
			return
		}

		if msg.Type == "ping" {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
			continue
		}
		if msg.Type != "message" || strings.TrimSpace(msg.Text) == "" {
			continue
		}

		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "typing"})
		_ = websocket.JSON.Send(conn, h.processMessage(ctx, sessionID, msg, logger))
	}
}

func (h *Handler) processMessage(ctx context.Context, sessionID string, msg InboundMessage, logger *logging.Logger) OutboundMessage {
	resp, err := h.turns.HandleTurn(ctx, conversation.TurnRequest{
		Message:   msg.Text,
		SessionID: sessionID,
		RequestID: msg.RequestID,
	})
	if err != nil {
		logger.Error("webchat: turn failed", "error", err)
		return OutboundMessage{
			Type:      "error",
			Text:      "Sorry, something went wrong. Please try again.",
			Retryable: errors.Is(err, conversation.ErrCompletionUnavailable),
		}
	}
	return OutboundMessage{Type: "message", Role: conversation.ChatRoleAssistant, Text: resp.Message, SessionID: resp.SessionID}
}

func (h *Handler) history(ctx context.Context, sessionID string) []HistoryMessage {
	if h.sessions == nil {
		return nil
	}
	sess, err := h.sessions.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, conversation.ErrSessionNotFound) {
			h.logger.Warn("webchat: failed to load history", "error", err, "session_id", sessionID)
		}
		return nil
	}
	msgs := sess.Messages
	if len(msgs) > historyLimit {
		msgs = msgs[len(msgs)-historyLimit:]
	}
	history := make([]HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, HistoryMessage{Role: m.Role, Text: m.Content})
	}
	return history
}
