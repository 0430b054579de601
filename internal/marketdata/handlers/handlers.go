// Package handlers provides HTTP handlers for cached market data lookups.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/folio-labs/folio/internal/clients/budget"
	"github.com/folio-labs/folio/internal/domain"
	"github.com/folio-labs/folio/internal/marketdata"
)

const dateLayout = "2006-01-02"

// Handler handles market data HTTP requests.
type Handler struct {
	service *marketdata.Service
	budget  *budget.Client
	log     zerolog.Logger
}

// NewHandler creates a new market data handler. The budget client is optional.
func NewHandler(service *marketdata.Service, budgetClient *budget.Client, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		budget:  budgetClient,
		log:     log.With().Str("handler", "marketdata").Logger(),
	}
}

// HandlePrice returns the cached current price for a ticker. ?refresh=true
// bypasses the freshness check but still counts against the provider budget.
func (h *Handler) HandlePrice(w http.ResponseWriter, r *http.Request) {
	ticker := pathParam(r, "ticker")

	var quote domain.PriceQuote
	var err error
	if r.URL.Query().Get("refresh") == "true" {
		quote, err = h.service.RefreshPrice(r.Context(), ticker)
	} else {
		quote, err = h.service.CurrentPrice(r.Context(), ticker)
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, quote)
}

// HandlePriceHistory returns daily closes for a ticker between ?start and
// ?end (inclusive, YYYY-MM-DD). The default window is the last year.
func (h *Handler) HandlePriceHistory(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	samples, err := h.service.DailyHistory(r.Context(), pathParam(r, "ticker"), start, end)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if samples == nil {
		samples = []domain.PriceSample{}
	}
	h.writeJSON(w, http.StatusOK, samples)
}

// HandleRate returns the cached current exchange rate for a currency pair.
func (h *Handler) HandleRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.service.CurrentRate(r.Context(), pathParam(r, "base"), pathParam(r, "target"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rate)
}

// HandleRateHistory returns daily exchange rates for a pair between ?start
// and ?end.
func (h *Handler) HandleRateHistory(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	samples, err := h.service.RateHistory(r.Context(), pathParam(r, "base"), pathParam(r, "target"), start, end)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if samples == nil {
		samples = []domain.RateSample{}
	}
	h.writeJSON(w, http.StatusOK, samples)
}

// HandleBalance proxies a cached account balance from the budget service.
func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	if h.budget == nil {
		h.writeError(w, http.StatusNotFound, "budget service not configured")
		return
	}

	balance, err := h.budget.GetBalance(r.Context(), pathParam(r, "accountID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, balance)
}

func parseRange(r *http.Request) (time.Time, time.Time, error) {
	end := domain.Day(time.Now())
	start := end.AddDate(-1, 0, 0)

	if s := r.URL.Query().Get("start"); s != "" {
		parsed, err := time.Parse(dateLayout, s)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("start must be YYYY-MM-DD")
		}
		start = parsed
	}
	if s := r.URL.Query().Get("end"); s != "" {
		parsed, err := time.Parse(dateLayout, s)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("end must be YYYY-MM-DD")
		}
		end = parsed
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("end must not be before start")
	}
	return start, end, nil
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var unavailableErr *domain.DataUnavailableError

	switch {
	case errors.Is(err, domain.ErrProviderRateLimited):
		h.writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.As(err, &unavailableErr):
		h.writeError(w, http.StatusServiceUnavailable, err.Error())
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
