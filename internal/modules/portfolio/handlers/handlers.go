// Package handlers provides HTTP handlers for portfolio management.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/folio-labs/folio/internal/domain"
	"github.com/folio-labs/folio/internal/modules/portfolio"
)

// Valuer builds portfolio summaries with live market data.
type Valuer interface {
	PortfolioSummary(ctx context.Context, portfolioID, displayCurrency string) (domain.PortfolioSummary, error)
}

// Handler handles portfolio HTTP requests.
type Handler struct {
	repo   *portfolio.Repository
	valuer Valuer
	log    zerolog.Logger
}

// NewHandler creates a new portfolio handler.
func NewHandler(repo *portfolio.Repository, valuer Valuer, log zerolog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		valuer: valuer,
		log:    log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleList returns all portfolios.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	portfolios, err := h.repo.List()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if portfolios == nil {
		portfolios = []domain.Portfolio{}
	}
	h.writeJSON(w, http.StatusOK, portfolios)
}

// HandleCreate creates a new portfolio.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Currency    string `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.repo.Create(req.Name, req.Description, req.Currency)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, p)
}

// HandleGet returns a single portfolio.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.repo.Get(pathParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

// HandleUpdate renames a portfolio or changes its description.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := pathParam(r, "id")
	if err := h.repo.Update(id, req.Name, req.Description); err != nil {
		h.writeDomainError(w, err)
		return
	}

	p, err := h.repo.Get(id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

// HandleDelete removes a portfolio and everything it owns.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Delete(pathParam(r, "id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetUsedCredit records the credit drawn against a portfolio.
func (h *Handler) HandleSetUsedCredit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UsedCredit float64 `json:"used_credit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.repo.SetUsedCredit(pathParam(r, "id"), req.UsedCredit); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSummary returns the portfolio valuation. The optional ?currency query
// parameter converts the totals to a display currency.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.valuer.PortfolioSummary(r.Context(), pathParam(r, "id"), r.URL.Query().Get("currency"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	var rateErr *domain.RateUnavailableError

	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "portfolio not found")
	case errors.As(err, &validationErr):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &rateErr):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
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
