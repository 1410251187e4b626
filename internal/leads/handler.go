package leads

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/leasing-ai-platform/pkg/logging"
)

// Handler handles HTTP requests for leads
type Handler struct {
	repo            Repository
	logger          *logging.Logger
	defaultInterest string
}

// NewHandler creates a new leads handler. defaultInterest fills property_interest on
// external submissions that omit it.
func NewHandler(repo Repository, defaultInterest string, logger *logging.Logger) *Handler {
	if repo == nil {
		panic("leads: repository cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		repo:            repo,
		logger:          logger,
		defaultInterest: defaultInterest,
	}
}

// AdminRoutes registers the listing and status endpoints on an authenticated router.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/leads", h.ListLeads)
	r.Get("/leads/{leadID}", h.GetLead)
	r.Patch("/leads/{leadID}/status", h.UpdateStatus)
}

// ExternalLeadRequest is the CRM-style intake payload.
type ExternalLeadRequest struct {
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	Phone            string `json:"phone"`
	Email            string `json:"email"`
	PropertyInterest string `json:"propertyInterest"`
	Message          string `json:"message"`
	Source           string `json:"source"`
	CompanyID        string `json:"companyId"`
	PreferredDate    string `json:"preferredDate"`
	PreferredTime    string `json:"preferredTime"`
	ExternalRef      string `json:"externalRef"`
}

// ExternalLeadResponse acknowledges an intake.
type ExternalLeadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	LeadID  string `json:"leadId"`
}

// CreateExternalLead handles POST /leads/external requests
func (h *Handler) CreateExternalLead(w http.ResponseWriter, r *http.Request) {
	var req ExternalLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.FirstName) == "" {
		http.Error(w, ErrInvalidName.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Phone) == "" {
		http.Error(w, ErrMissingPhone.Error(), http.StatusBadRequest)
		return
	}

	source := req.Source
	if source == "" {
		source = "external"
	}
	interest := req.PropertyInterest
	if interest == "" {
		interest = h.defaultInterest
	}

	lead, err := h.repo.Create(r.Context(), &CreateLeadRequest{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Phone:            req.Phone,
		Email:            req.Email,
		TourDate:         req.PreferredDate,
		TourTime:         req.PreferredTime,
		Message:          req.Message,
		Source:           source,
		PropertyInterest: interest,
		SessionID:        req.ExternalRef,
	})
	if err != nil {
		h.logger.Error("failed to save external lead", "error", err)
		http.Error(w, "Failed to save lead", http.StatusInternalServerError)
		return
	}

	h.logger.Info("external lead received", "lead_id", lead.ID, "source", source)
	writeJSON(w, http.StatusOK, ExternalLeadResponse{Success: true, Message: "Lead received", LeadID: lead.ID})
}

// ListLeadsResponse is the response for listing leads
type ListLeadsResponse struct {
	Leads  []*Lead `json:"leads"`
	Count  int     `json:"count"`
	Offset int     `json:"offset"`
	Limit  int     `json:"limit"`
}

// ListLeads handles GET /admin/leads requests
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	filter := ListLeadsFilter{
		Limit:  50,
		Offset: 0,
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 100 {
			filter.Limit = limit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		filter.Status = status
	}

	leads, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list leads", "error", err)
		http.Error(w, "failed to list leads", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, ListLeadsResponse{
		Leads:  leads,
		Count:  len(leads),
		Offset: filter.Offset,
		Limit:  filter.Limit,
	})
}

// GetLead handles GET /admin/leads/{leadID}
func (h *Handler) GetLead(w http.ResponseWriter, r *http.Request) {
	lead, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "leadID"))
	if errors.Is(err, ErrLeadNotFound) {
		http.Error(w, "lead not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to load lead", "error", err)
		http.Error(w, "failed to load lead", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// UpdateStatus handles PATCH /admin/leads/{leadID}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	status, err := ParseStatus(body.Status)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch err := h.repo.UpdateStatus(r.Context(), leadID, status); {
	case errors.Is(err, ErrLeadNotFound):
		http.Error(w, "lead not found", http.StatusNotFound)
		return
	case err != nil:
		h.logger.Error("failed to update lead status", "error", err, "lead_id", leadID)
		http.Error(w, "failed to update lead", http.StatusInternalServerError)
		return
	}

	h.logger.Info("lead status updated", "lead_id", leadID, "status", status)
	writeJSON(w, http.StatusOK, map[string]string{"id": leadID, "status": string(status)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
