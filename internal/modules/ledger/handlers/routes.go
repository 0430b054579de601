package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all ledger routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/transactions", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/{id}", h.HandleGet)
		r.Put("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
	})

	r.Get("/holdings/{holdingID}/transactions", h.HandleListByHolding)
	r.Get("/portfolios/{portfolioID}/transactions", h.HandleListByPortfolio)
}

func pathParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}
