// Package handlers provides HTTP handlers for the transaction ledger.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/folio-labs/folio/internal/domain"
	"github.com/folio-labs/folio/internal/modules/ledger"
)

// Handler handles ledger HTTP requests.
type Handler struct {
	service *ledger.Service
	log     zerolog.Logger
}

// NewHandler creates a new ledger handler.
func NewHandler(service *ledger.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "ledger").Logger(),
	}
}

type transactionRequest struct {
	PortfolioID  string  `json:"portfolio_id"`
	Ticker       string  `json:"ticker"`
	CompanyName  string  `json:"company_name"`
	Date         string  `json:"date"`
	Type         string  `json:"type"`
	Quantity     float64 `json:"quantity"`
	Price        float64 `json:"price"`
	Commission   float64 `json:"commission"`
	ExchangeRate float64 `json:"exchange_rate"`
}

func (h *Handler) decodeDraft(w http.ResponseWriter, r *http.Request) (domain.TransactionDraft, bool) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return domain.TransactionDraft{}, false
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return domain.TransactionDraft{}, false
	}

	rate := req.ExchangeRate
	if rate == 0 {
		rate = 1
	}

	return domain.TransactionDraft{
		PortfolioID:  req.PortfolioID,
		Ticker:       req.Ticker,
		CompanyName:  req.CompanyName,
		Date:         date,
		Type:         domain.TransactionType(req.Type),
		Quantity:     req.Quantity,
		Price:        req.Price,
		Commission:   req.Commission,
		ExchangeRate: rate,
	}, true
}

// HandleCreate appends a transaction to the ledger.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	draft, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}

	txn, err := h.service.Append(draft)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, txn)
}

// HandleUpdate replaces a transaction. The ledger is append-only, so an edit
// deletes the old fact and records a new one.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	draft, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}

	txn, err := h.service.Replace(pathParam(r, "id"), draft)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, txn)
}

// HandleGet returns a single transaction.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	txn, err := h.service.Get(pathParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, txn)
}

// HandleDelete removes a transaction. Editing is modeled as delete followed
// by a fresh create.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Remove(pathParam(r, "id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListByHolding returns a holding's transactions in chronological order.
func (h *Handler) HandleListByHolding(w http.ResponseWriter, r *http.Request) {
	txns, err := h.service.ListByHolding(pathParam(r, "holdingID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if txns == nil {
		txns = []domain.Transaction{}
	}
	h.writeJSON(w, http.StatusOK, txns)
}

// HandleListByPortfolio returns recent transactions across a portfolio.
func (h *Handler) HandleListByPortfolio(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	txns, err := h.service.ListByPortfolio(pathParam(r, "portfolioID"), limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if txns == nil {
		txns = []domain.Transaction{}
	}
	h.writeJSON(w, http.StatusOK, txns)
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	var quantityErr *domain.InsufficientQuantityError

	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "transaction not found")
	case errors.As(err, &validationErr):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &quantityErr):
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
