// Package handlers provides HTTP handlers for market events and backtests.
package handlers

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/riskgovernor/internal/api"
	"github.com/aristath/riskgovernor/internal/domain"
	"github.com/aristath/riskgovernor/internal/engine"
)

// MarketEventInput is the event part of POST /events/market.
type MarketEventInput struct {
	Asset      string         `json:"asset" validate:"required,max=32"`
	EventType  string         `json:"event_type" validate:"required,oneof=price_jump vol_spike regime_hint crash_signal heartbeat"`
	Severity   *float64       `json:"severity" default:"0.2" validate:"gte=0,lte=1"`
	Details    map[string]any `json:"details"`
	OccurredAt *time.Time     `json:"occurred_at"`
}

// MarketEventRequest is the body of POST /events/market.
type MarketEventRequest struct {
	CaseID string           `json:"case_id" validate:"required"`
	Event  MarketEventInput `json:"event"`
}

// BacktestRequest is the body of POST /backtests. Without constraints the
// strategy's constraints from the asset's latest guard are used.
type BacktestRequest struct {
	Asset       string                      `json:"asset" validate:"required,max=32"`
	StrategyID  string                      `json:"strategy_id" validate:"required,oneof=fire water grass"`
	Window      int                         `json:"window" default:"252" validate:"gte=30,lte=2520"`
	Constraints *domain.StrategyConstraints `json:"constraints"`
}

// Handler handles engine HTTP requests
type Handler struct {
	engine *engine.Engine
	log    zerolog.Logger
}

// NewHandler creates a new engine handler
func NewHandler(e *engine.Engine, log zerolog.Logger) *Handler {
	return &Handler{
		engine: e,
		log:    log.With().Str("handler", "engine").Logger(),
	}
}

// HandleMarketEvent runs one transaction and returns the full decision bundle
func (h *Handler) HandleMarketEvent(w http.ResponseWriter, r *http.Request) {
	var req MarketEventRequest
	if err := api.Decode(r, &req); err != nil {
		api.WriteError(w, h.log, err)
		return
	}

	event := domain.MarketEvent{
		Asset:     req.Event.Asset,
		EventType: domain.EventType(req.Event.EventType),
		Severity:  *req.Event.Severity,
		Details:   req.Event.Details,
	}
	if req.Event.OccurredAt != nil {
		event.OccurredAt = req.Event.OccurredAt.UTC()
	}

	run, err := h.engine.ProcessMarketEvent(r.Context(), req.CaseID, event)
	if err != nil {
		api.WriteError(w, h.log, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, run)
}

// HandleBacktest backtests one strategy under constraints
func (h *Handler) HandleBacktest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := api.Decode(r, &req); err != nil {
		api.WriteError(w, h.log, err)
		return
	}

	if req.Constraints != nil && req.Constraints.StopLossPolicy.Type == "" {
		req.Constraints.StopLossPolicy.Type = domain.StopLossNone
	}

	result, err := h.engine.Backtest(r.Context(), req.Asset, domain.StrategyID(req.StrategyID), req.Window, req.Constraints)
	if err != nil {
		api.WriteError(w, h.log, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, result)
}
