// Package handlers provides HTTP handlers for cases.
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/riskgovernor/internal/api"
	"github.com/aristath/riskgovernor/internal/domain"
	"github.com/aristath/riskgovernor/internal/modules/cases"
)

// CreateCaseRequest is the body of POST /cases.
type CreateCaseRequest struct {
	Asset   string               `json:"asset" validate:"required,max=32"`
	Persona domain.PersonaInputs `json:"persona"`
}

// CreateCaseResponse is returned by POST /cases.
type CreateCaseResponse struct {
	CaseID    string    `json:"case_id"`
	Asset     string    `json:"asset"`
	PersonaID string    `json:"persona_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Handler handles case HTTP requests
type Handler struct {
	service *cases.Service
	log     zerolog.Logger
}

// NewHandler creates a new case handler
func NewHandler(service *cases.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "cases").Logger(),
	}
}

// HandleCreateCase creates a case for an asset and persona
func (h *Handler) HandleCreateCase(w http.ResponseWriter, r *http.Request) {
	var req CreateCaseRequest
	if err := api.Decode(r, &req); err != nil {
		api.WriteError(w, h.log, err)
		return
	}

	c, err := h.service.CreateCase(r.Context(), req.Asset, req.Persona)
	if err != nil {
		api.WriteError(w, h.log, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, CreateCaseResponse{
		CaseID:    c.CaseID,
		Asset:     c.Asset,
		PersonaID: c.PersonaID,
		CreatedAt: c.CreatedAt,
	})
}

// HandleGetCase returns the case report with every audit run
func (h *Handler) HandleGetCase(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.GetReport(r.Context(), chi.URLParam(r, "case_id"))
	if err != nil {
		api.WriteError(w, h.log, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, report)
}
