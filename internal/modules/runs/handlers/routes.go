package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all run routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/runs", func(r chi.Router) {
		r.Post("/", h.HandleCreateRun)
		r.Get("/", h.HandleListRuns)
		r.Get("/stream", h.HandleStream)
		r.Get("/{id}", h.HandleGetRun)
		r.Get("/{id}/history", h.HandleGetHistory)
	})
}
