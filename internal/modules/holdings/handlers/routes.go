package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all holdings routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/portfolios/{portfolioID}/holdings", h.HandleListByPortfolio)

	r.Route("/holdings/{id}", func(r chi.Router) {
		r.Get("/", h.HandleGet)
		r.Get("/snapshot", h.HandleSnapshot)
		r.Get("/gain-loss", h.HandleGainLoss)
	})
}

func pathParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}
