package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the market event and backtest routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/events/market", h.HandleMarketEvent)
	r.Post("/backtests", h.HandleBacktest)
}
