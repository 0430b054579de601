package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/folio-labs/folio/internal/domain"
	"github.com/folio-labs/folio/internal/modules/holdings"
)

// PortfolioSource defines the portfolio lookup needed to validate appends.
type PortfolioSource interface {
	Get(id string) (domain.Portfolio, error)
}

// Service validates and records ledger transactions. Every append or removal
// runs under the holding's lock so the validate-then-write sequence is atomic
// with respect to concurrent writers on the same holding.
type Service struct {
	repo       *Repository
	holdings   *holdings.Service
	holdingSrc *holdings.Repository
	portfolios PortfolioSource
	log        zerolog.Logger
}

// NewService creates a new ledger service.
func NewService(
	repo *Repository,
	holdingsService *holdings.Service,
	holdingRepo *holdings.Repository,
	portfolios PortfolioSource,
	log zerolog.Logger,
) *Service {
	return &Service{
		repo:       repo,
		holdings:   holdingsService,
		holdingSrc: holdingRepo,
		portfolios: portfolios,
		log:        log.With().Str("service", "ledger").Logger(),
	}
}

// Append validates a draft, resolves (or creates) its holding and records the
// transaction. A sell exceeding the currently held quantity is rejected with
// InsufficientQuantityError and leaves all state unchanged.
func (s *Service) Append(draft domain.TransactionDraft) (domain.Transaction, error) {
	if err := validateDraft(draft); err != nil {
		return domain.Transaction{}, err
	}

	portfolio, err := s.portfolios.Get(draft.PortfolioID)
	if err != nil {
		if err == domain.ErrNotFound {
			return domain.Transaction{}, &domain.ValidationError{
				Field: "portfolio_id", Value: draft.PortfolioID, Reason: "portfolio does not exist",
			}
		}
		return domain.Transaction{}, fmt.Errorf("failed to load portfolio: %w", err)
	}

	ticker := strings.ToUpper(strings.TrimSpace(draft.Ticker))
	holding, err := s.holdingSrc.GetOrCreate(draft.PortfolioID, ticker, draft.CompanyName, portfolio.Currency)
	if err != nil {
		return domain.Transaction{}, err
	}

	unlock := s.holdings.Locks().Lock(holding.ID)
	defer unlock()

	agg, err := s.holdings.Aggregate(holding.ID)
	if err != nil {
		return domain.Transaction{}, err
	}

	if draft.Type == domain.TransactionSell && draft.Quantity > agg.Quantity+quantityTolerance {
		return domain.Transaction{}, &domain.InsufficientQuantityError{
			HoldingID: holding.ID,
			Requested: draft.Quantity,
			Available: agg.Quantity,
		}
	}

	txn := domain.Transaction{
		ID:           uuid.NewString(),
		HoldingID:    holding.ID,
		Date:         domain.Day(draft.Date),
		Type:         draft.Type,
		Quantity:     draft.Quantity,
		Price:        draft.Price,
		Commission:   draft.Commission,
		ExchangeRate: draft.ExchangeRate,
		CreatedAt:    time.Now().UTC(),
	}

	// Snapshot the average cost the transaction executed against. Buys record
	// their own per-share cost including the converted commission; sells record
	// the running average they realized against.
	if draft.Type == domain.TransactionBuy {
		txn.AvgCostAtTransaction = (draft.Quantity*draft.Price + draft.Commission*draft.ExchangeRate) / draft.Quantity
	} else {
		txn.AvgCostAtTransaction = agg.AverageCostPerShare
	}

	if err := s.repo.Insert(txn); err != nil {
		return domain.Transaction{}, err
	}

	if _, err := s.holdings.RecomputeLocked(holding.ID); err != nil {
		return domain.Transaction{}, err
	}

	s.log.Info().
		Str("transaction_id", txn.ID).
		Str("ticker", ticker).
		Str("type", string(txn.Type)).
		Float64("quantity", txn.Quantity).
		Float64("price", txn.Price).
		Msg("Transaction recorded")

	return txn, nil
}

// Remove deletes a transaction and recomputes its holding. This is the only
// mutation the ledger supports; an edit is a removal followed by a fresh
// append. A holding whose last transaction is removed is deleted as well.
func (s *Service) Remove(transactionID string) error {
	txn, err := s.repo.GetByID(transactionID)
	if err != nil {
		return err
	}

	unlock := s.holdings.Locks().Lock(txn.HoldingID)
	defer unlock()

	if err := s.repo.Delete(transactionID); err != nil {
		return err
	}

	count, err := s.repo.CountByHolding(txn.HoldingID)
	if err != nil {
		return err
	}
	if count == 0 {
		if err := s.holdingSrc.Delete(txn.HoldingID); err != nil {
			return err
		}
		s.log.Info().
			Str("transaction_id", transactionID).
			Str("holding_id", txn.HoldingID).
			Msg("Transaction removed, empty holding deleted")
		return nil
	}

	if _, err := s.holdings.RecomputeLocked(txn.HoldingID); err != nil {
		return err
	}

	s.log.Info().
		Str("transaction_id", transactionID).
		Str("holding_id", txn.HoldingID).
		Msg("Transaction removed")

	return nil
}

// Replace removes a transaction and appends a new one in its place. The
// ledger has no in-place update; an edit is the removal of one fact and the
// recording of another. A rejected replacement restores the original.
func (s *Service) Replace(transactionID string, draft domain.TransactionDraft) (domain.Transaction, error) {
	old, err := s.repo.GetByID(transactionID)
	if err != nil {
		return domain.Transaction{}, err
	}
	holding, err := s.holdingSrc.GetByID(old.HoldingID)
	if err != nil {
		return domain.Transaction{}, err
	}

	if err := s.Remove(transactionID); err != nil {
		return domain.Transaction{}, err
	}

	txn, err := s.Append(draft)
	if err != nil {
		restore := domain.TransactionDraft{
			PortfolioID:  holding.PortfolioID,
			Ticker:       holding.Ticker,
			CompanyName:  holding.CompanyName,
			Date:         old.Date,
			Type:         old.Type,
			Quantity:     old.Quantity,
			Price:        old.Price,
			Commission:   old.Commission,
			ExchangeRate: old.ExchangeRate,
		}
		if _, rerr := s.Append(restore); rerr != nil {
			s.log.Error().
				Err(rerr).
				Str("transaction_id", transactionID).
				Msg("Failed to restore transaction after rejected edit")
		}
		return domain.Transaction{}, err
	}

	return txn, nil
}

// Get returns a single transaction.
func (s *Service) Get(id string) (domain.Transaction, error) {
	return s.repo.GetByID(id)
}

// ListByHolding returns a holding's transactions in chronological order.
func (s *Service) ListByHolding(holdingID string) ([]domain.Transaction, error) {
	return s.repo.ListByHolding(holdingID)
}

// ListByPortfolio returns recent transactions across a portfolio.
func (s *Service) ListByPortfolio(portfolioID string, limit int) ([]domain.Transaction, error) {
	return s.repo.ListByPortfolio(portfolioID, limit)
}

// ExistsMatching reports whether the portfolio already has a transaction with
// the same (ticker, date, quantity, price) tuple.
func (s *Service) ExistsMatching(portfolioID, ticker string, date time.Time, quantity, price float64) (bool, error) {
	return s.repo.ExistsMatching(portfolioID, ticker, date, quantity, price)
}

// quantityTolerance absorbs float drift when selling an entire position.
const quantityTolerance = 1e-9

func validateDraft(d domain.TransactionDraft) error {
	if strings.TrimSpace(d.Ticker) == "" {
		return &domain.ValidationError{Field: "ticker", Value: d.Ticker, Reason: "must not be empty"}
	}
	if !d.Type.Valid() {
		return &domain.ValidationError{Field: "type", Value: string(d.Type), Reason: "must be buy or sell"}
	}
	if d.Quantity <= 0 {
		return &domain.ValidationError{Field: "quantity", Value: d.Quantity, Reason: "must be positive"}
	}
	if d.Price < 0 {
		return &domain.ValidationError{Field: "price", Value: d.Price, Reason: "must not be negative"}
	}
	if d.Commission < 0 {
		return &domain.ValidationError{Field: "commission", Value: d.Commission, Reason: "must not be negative"}
	}
	if d.ExchangeRate <= 0 {
		return &domain.ValidationError{Field: "exchange_rate", Value: d.ExchangeRate, Reason: "must be positive"}
	}
	if d.Date.IsZero() {
		return &domain.ValidationError{Field: "date", Value: d.Date, Reason: "must be set"}
	}
	if domain.Day(d.Date).After(domain.Day(time.Now())) {
		return &domain.ValidationError{Field: "date", Value: d.Date.Format(dateLayout), Reason: "must not be in the future"}
	}
	return nil
}
