package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all market data routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/market", func(r chi.Router) {
		r.Get("/prices/{ticker}", h.HandlePrice)
		r.Get("/prices/{ticker}/history", h.HandlePriceHistory)
		r.Get("/rates/{base}/{target}", h.HandleRate)
		r.Get("/rates/{base}/{target}/history", h.HandleRateHistory)
		r.Get("/balances/{accountID}", h.HandleBalance)
	})
}

func pathParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}
