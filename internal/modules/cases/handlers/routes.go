package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the case routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/cases", func(r chi.Router) {
		r.Post("/", h.HandleCreateCase)
		r.Get("/{case_id}", h.HandleGetCase)
	})
}
