package property

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/leasing-ai-platform/pkg/logging"
)

// Handler provides admin endpoints for the property configuration.
type Handler struct {
	store  Store
	logger *logging.Logger
}

func NewHandler(store Store, logger *logging.Logger) *Handler {
	if store == nil {
		panic("property: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// Routes registers the config, knowledge and template endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/config", h.GetConfig)
	r.Put("/config", h.UpdateConfig)
	r.Get("/knowledge", h.GetKnowledge)
	r.Put("/knowledge", h.UpdateKnowledge)
	r.Get("/confirmation-template", h.GetTemplate)
	r.Put("/confirmation-template", h.UpdateTemplate)
}

// GetConfig handles GET /admin/config.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.load(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, cfg)
}

// UpdateConfig handles PUT /admin/config with a partial body.
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var update Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}
	h.apply(w, r, update)
}

type knowledgeBody struct {
	Content string `json:"content"`
}

// GetKnowledge handles GET /admin/knowledge.
func (h *Handler) GetKnowledge(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.load(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, knowledgeBody{Content: cfg.Knowledge})
}

// UpdateKnowledge handles PUT /admin/knowledge.
func (h *Handler) UpdateKnowledge(w http.ResponseWriter, r *http.Request) {
	var body knowledgeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}
	h.apply(w, r, Update{Knowledge: &body.Content})
}

type templateBody struct {
	Template string `json:"template"`
}

// GetTemplate handles GET /admin/confirmation-template.
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.load(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, templateBody{Template: cfg.ConfirmationTemplate})
}

// UpdateTemplate handles PUT /admin/confirmation-template.
func (h *Handler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var body templateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Template) == "" {
		http.Error(w, `{"error": "template is required"}`, http.StatusBadRequest)
		return
	}
	h.apply(w, r, Update{ConfirmationTemplate: &body.Template})
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*Config, bool) {
	cfg, err := h.store.Get(r.Context())
	if err != nil {
		h.logger.Error("failed to get property config", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return nil, false
	}
	return cfg, true
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request, update Update) {
	current, ok := h.load(w, r)
	if !ok {
		return
	}
	next := update.Apply(current).WithDefaults()
	if err := h.store.Save(r.Context(), next); err != nil {
		h.logger.Error("failed to save property config", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	h.logger.Info("property config updated", "property", next.PropertyName)
	h.writeJSON(w, http.StatusOK, next)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
