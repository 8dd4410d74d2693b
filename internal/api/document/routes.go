package document

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers document routes. The bounded middlewares wrap
// every route except the upload, which runs until indexing finishes.
func RegisterRoutes(r chi.Router, h *Handler, bounded ...func(http.Handler) http.Handler) {
	r.Route("/documents", func(r chi.Router) {
		r.Post("/", h.UploadDocument)

		r.Group(func(r chi.Router) {
			r.Use(bounded...)

			r.Get("/", h.ListDocuments)

			r.Route("/{document_id}", func(r chi.Router) {
				r.Get("/", h.GetDocument)
				r.Delete("/", h.DeleteDocument)
				r.Get("/export", h.ExportDocument)
			})
		})
	})
}
