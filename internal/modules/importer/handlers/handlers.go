// Package handlers provides HTTP handlers for transaction imports.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/folio-labs/folio/internal/domain"
	"github.com/folio-labs/folio/internal/modules/importer"
)

// Handler handles import HTTP requests.
type Handler struct {
	service *importer.Service
	log     zerolog.Logger
}

// NewHandler creates a new importer handler.
func NewHandler(service *importer.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "importer").Logger(),
	}
}

type importRowRequest struct {
	Date         string  `json:"date"`
	Ticker       string  `json:"ticker"`
	Type         string  `json:"type"`
	Quantity     float64 `json:"quantity"`
	Price        float64 `json:"price"`
	Commission   float64 `json:"commission"`
	ExchangeRate float64 `json:"exchange_rate"`
}

// HandleImport applies a batch of transaction rows to a portfolio and returns
// accepted, duplicate and rejected counts.
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rows []importRowRequest `json:"rows"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rows := make([]domain.ImportRow, 0, len(req.Rows))
	for _, row := range req.Rows {
		date, _ := time.Parse("2006-01-02", row.Date)
		rows = append(rows, domain.ImportRow{
			Date:         date,
			Ticker:       row.Ticker,
			Type:         domain.TransactionType(row.Type),
			Quantity:     row.Quantity,
			Price:        row.Price,
			Commission:   row.Commission,
			ExchangeRate: row.ExchangeRate,
		})
	}

	result, err := h.service.Import(pathParam(r, "portfolioID"), rows)
	if err != nil {
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, result)
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
