// Package handlers provides HTTP handlers for overrides.
package handlers

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/riskgovernor/internal/api"
	"github.com/aristath/riskgovernor/internal/domain"
	"github.com/aristath/riskgovernor/internal/modules/overrides"
)

// OverrideRequest is the body of POST /overrides.
type OverrideRequest struct {
	CaseID       string     `json:"case_id" validate:"required"`
	Asset        string     `json:"asset" validate:"required,max=32"`
	PersonaID    string     `json:"persona_id" validate:"required,max=64"`
	OverrideType string     `json:"override_type" validate:"required,oneof=force_enable force_disable set_cap"`
	StrategyID   string     `json:"strategy_id" validate:"required,oneof=fire water grass"`
	Value        *float64   `json:"value" validate:"omitempty,gte=0,lte=1"`
	Reason       string     `json:"reason" default:"user_override"`
	OccurredAt   *time.Time `json:"occurred_at"`
}

// OverrideResponse is returned by POST /overrides.
type OverrideResponse struct {
	OK       bool   `json:"ok"`
	VectorID string `json:"vector_id"`
}

// Handler handles override HTTP requests
type Handler struct {
	service *overrides.Service
	log     zerolog.Logger
}

// NewHandler creates a new override handler
func NewHandler(service *overrides.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "overrides").Logger(),
	}
}

// HandleRecordOverride stores a manual override in memory
func (h *Handler) HandleRecordOverride(w http.ResponseWriter, r *http.Request) {
	var req OverrideRequest
	if err := api.Decode(r, &req); err != nil {
		api.WriteError(w, h.log, err)
		return
	}

	o := domain.Override{
		CaseID:       req.CaseID,
		Asset:        req.Asset,
		PersonaID:    req.PersonaID,
		OverrideType: domain.OverrideType(req.OverrideType),
		StrategyID:   domain.StrategyID(req.StrategyID),
		Value:        req.Value,
		Reason:       req.Reason,
	}
	if req.OccurredAt != nil {
		o.OccurredAt = req.OccurredAt.UTC()
	}

	vectorID, err := h.service.Record(r.Context(), o)
	if err != nil {
		api.WriteError(w, h.log, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, OverrideResponse{OK: true, VectorID: vectorID})
}
