package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all import routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/portfolios/{portfolioID}/import", h.HandleImport)
}

func pathParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}
