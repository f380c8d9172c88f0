package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all action queue routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/actions", func(r chi.Router) {
		r.Post("/", h.HandleSubmit)
		r.Get("/{id}", h.HandleGet)

		// Lifecycle
		r.Post("/{id}/execute", h.HandleExecute)
		r.Post("/{id}/archive", h.HandleArchive)
	})
}
