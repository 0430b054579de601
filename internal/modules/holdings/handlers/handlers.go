// Package handlers provides HTTP handlers for holding valuation views.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/folio-labs/folio/internal/domain"
	"github.com/folio-labs/folio/internal/modules/holdings"
)

// Handler handles holdings HTTP requests.
type Handler struct {
	repo    *holdings.Repository
	service *holdings.Service
	log     zerolog.Logger
}

// NewHandler creates a new holdings handler.
func NewHandler(repo *holdings.Repository, service *holdings.Service, log zerolog.Logger) *Handler {
	return &Handler{
		repo:    repo,
		service: service,
		log:     log.With().Str("handler", "holdings").Logger(),
	}
}

// HandleListByPortfolio returns a portfolio's holdings without market data.
func (h *Handler) HandleListByPortfolio(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.ListByPortfolio(pathParam(r, "portfolioID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if list == nil {
		list = []domain.Holding{}
	}
	h.writeJSON(w, http.StatusOK, list)
}

// HandleGet returns a single holding.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	holding, err := h.repo.GetByID(pathParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, holding)
}

// HandleSnapshot returns the holding valuation. Metrics that depend on an
// unavailable price or rate are null, never zero.
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot(r.Context(), pathParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

// HandleGainLoss returns realized and unrealized gain/loss for a holding.
func (h *Handler) HandleGainLoss(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	agg, err := h.service.Aggregate(id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	snap, err := h.service.Snapshot(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"holding_id":            id,
		"realized_gain_loss":    agg.RealizedGainLoss,
		"unrealized_gain_loss":  snap.UnrealizedGainLoss,
		"currency_gain_loss":    snap.CurrencyGainLoss,
		"current_quantity":      agg.Quantity,
		"average_cost_per_share": agg.AverageCostPerShare,
	})
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "holding not found")
		return
	}
	h.writeError(w, http.StatusInternalServerError, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
