package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the decision routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/decisions", func(r chi.Router) {
		r.Get("/latest", h.HandleGetLatest)
		r.Get("/stream", h.HandleStream)
	})
}
