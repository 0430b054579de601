package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolios", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Put("/", h.HandleUpdate)
			r.Delete("/", h.HandleDelete)
			r.Put("/used-credit", h.HandleSetUsedCredit)
			r.Get("/summary", h.HandleSummary)
		})
	})
}

func pathParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}
