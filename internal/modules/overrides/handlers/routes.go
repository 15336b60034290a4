package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the override routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/overrides", h.HandleRecordOverride)
}
