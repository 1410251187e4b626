package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/leasing-ai-platform/pkg/logging"
)

// maxChatBodyBytes caps the POST /chat payload.
const maxChatBodyBytes = 16 << 10

// TurnHandler is the part of the Orchestrator the HTTP layer needs.
type TurnHandler interface {
	HandleTurn(ctx context.Context, req TurnRequest) (*TurnResponse, error)
	Greeting(ctx context.Context) (*TurnResponse, error)
}

// Handler wires HTTP requests to the turn orchestrator.
type Handler struct {
	turns  TurnHandler
	logger *logging.Logger
}

// ChatRequest is the POST /chat body.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

// NewHandler creates a chat handler.
func NewHandler(turns TurnHandler, logger *logging.Logger) *Handler {
	if turns == nil {
		panic("conversation: turn handler cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{turns: turns, logger: logger}
}

// Routes registers the public chat endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Chat)
	r.Get("/greeting", h.Greeting)
}

// Chat handles POST /chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes)).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "message is required"})
		return
	}
	requestID := strings.TrimSpace(req.RequestID)
	if requestID == "" {
		requestID = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	}

	resp, err := h.turns.HandleTurn(r.Context(), TurnRequest{
		Message:   req.Message,
		SessionID: req.SessionID,
		RequestID: requestID,
	})
	switch {
	case errors.Is(err, ErrEmptyMessage):
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "message is required"})
		return
	case errors.Is(err, ErrCompletionUnavailable):
		h.logger.Warn("chat turn failed, asking client to retry", "error", err, "session_id", req.SessionID)
		w.Header().Set("Retry-After", "2")
		h.writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "assistant is temporarily unavailable, please try again"})
		return
	case err != nil:
		h.logger.Error("chat turn failed", "error", err, "session_id", req.SessionID)
		h.writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Greeting handles GET /chat/greeting.
func (h *Handler) Greeting(w http.ResponseWriter, r *http.Request) {
	resp, err := h.turns.Greeting(r.Context())
	if err != nil {
		h.logger.Error("failed to build greeting", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
