package search

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers search routes
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/search", h.Search)
}
