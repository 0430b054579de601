package holdings

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/folio-labs/folio/internal/domain"
)

// TransactionSource defines the ledger access the aggregator needs.
// Implemented by the ledger repository.
type TransactionSource interface {
	ListByHolding(holdingID string) ([]domain.Transaction, error)
	UpdateDerivedMetrics(metrics []TransactionMetric) error
}

// MarketDataInterface defines the contract for cached market data lookups.
type MarketDataInterface interface {
	CurrentPrice(ctx context.Context, ticker string) (domain.PriceQuote, error)
	CurrentRate(ctx context.Context, base, target string) (domain.RateSample, error)
}

// PortfolioSource defines the portfolio lookups needed for valuation.
type PortfolioSource interface {
	Get(id string) (domain.Portfolio, error)
}

// ConverterInterface defines the contract for historical currency conversion.
type ConverterInterface interface {
	Convert(amount float64, from, to string, asOf time.Time) (float64, error)
}

// Service derives and persists holding valuations. All recomputation of a
// holding's derived fields happens under that holding's lock.
type Service struct {
	repo       *Repository
	txns       TransactionSource
	portfolios PortfolioSource
	market     MarketDataInterface
	converter  ConverterInterface
	locks      *Locks
	log        zerolog.Logger
}

// NewService creates a new holdings service.
func NewService(
	repo *Repository,
	txns TransactionSource,
	portfolios PortfolioSource,
	market MarketDataInterface,
	converter ConverterInterface,
	locks *Locks,
	log zerolog.Logger,
) *Service {
	return &Service{
		repo:       repo,
		txns:       txns,
		portfolios: portfolios,
		market:     market,
		converter:  converter,
		locks:      locks,
		log:        log.With().Str("service", "holdings").Logger(),
	}
}

// Locks exposes the per-holding lock registry shared with the ledger.
func (s *Service) Locks() *Locks {
	return s.locks
}

// Recompute re-derives a holding's cached fields from its full transaction
// history under the holding's lock.
func (s *Service) Recompute(holdingID string) (domain.Holding, error) {
	unlock := s.locks.Lock(holdingID)
	defer unlock()
	return s.RecomputeLocked(holdingID)
}

// RecomputeLocked re-derives a holding's cached fields. The caller must hold
// the holding's lock.
func (s *Service) RecomputeLocked(holdingID string) (domain.Holding, error) {
	txns, err := s.txns.ListByHolding(holdingID)
	if err != nil {
		return domain.Holding{}, fmt.Errorf("failed to list transactions: %w", err)
	}

	agg := Aggregate(txns)

	if err := s.repo.UpdateDerived(holdingID, agg.Quantity, agg.AverageCostPerShare); err != nil {
		return domain.Holding{}, fmt.Errorf("failed to persist derived fields: %w", err)
	}
	if err := s.txns.UpdateDerivedMetrics(agg.Metrics); err != nil {
		return domain.Holding{}, fmt.Errorf("failed to persist transaction metrics: %w", err)
	}

	s.log.Debug().
		Str("holding_id", holdingID).
		Float64("quantity", agg.Quantity).
		Float64("avg_cost", agg.AverageCostPerShare).
		Msg("Recomputed holding")

	return s.repo.GetByID(holdingID)
}

// Aggregate returns the derived state for a holding without persisting it.
func (s *Service) Aggregate(holdingID string) (Aggregation, error) {
	txns, err := s.txns.ListByHolding(holdingID)
	if err != nil {
		return Aggregation{}, fmt.Errorf("failed to list transactions: %w", err)
	}
	return Aggregate(txns), nil
}

// Snapshot builds the valuation view for a holding. A missing price makes
// unrealized gain/loss unavailable (nil), never zero; it does not fail the
// snapshot.
func (s *Service) Snapshot(ctx context.Context, holdingID string) (domain.HoldingSnapshot, error) {
	h, err := s.repo.GetByID(holdingID)
	if err != nil {
		return domain.HoldingSnapshot{}, err
	}

	portfolio, err := s.portfolios.Get(h.PortfolioID)
	if err != nil {
		return domain.HoldingSnapshot{}, fmt.Errorf("failed to load portfolio: %w", err)
	}

	snap := domain.HoldingSnapshot{
		HoldingID:           h.ID,
		Ticker:              h.Ticker,
		CompanyName:         h.CompanyName,
		Currency:            h.Currency,
		CurrentQuantity:     h.CurrentQuantity,
		AverageCostPerShare: h.AverageCostPerShare,
	}

	quote, err := s.market.CurrentPrice(ctx, h.Ticker)
	if err != nil {
		// Unavailable metrics stay nil; the rest of the snapshot is served.
		s.log.Warn().Err(err).Str("ticker", h.Ticker).Msg("Price unavailable for snapshot")
		return snap, nil
	}

	if quote.Currency != "" && quote.Currency != h.Currency {
		snap.Currency = quote.Currency
		if err := s.repo.UpdateCurrency(h.ID, quote.Currency); err != nil {
			s.log.Warn().Err(err).Str("ticker", h.Ticker).Msg("Failed to update holding currency")
		}
	}

	price := quote.Price
	asOf := quote.AsOf
	value := h.CurrentQuantity * price
	unrealized := (price - h.AverageCostPerShare) * h.CurrentQuantity

	snap.LatestPrice = &price
	snap.LastPriceAt = &asOf
	snap.MarketValue = &value
	snap.UnrealizedGainLoss = &unrealized

	snap.CurrencyGainLoss = s.currencyGainLoss(ctx, h, snap.Currency, portfolio.Currency, price)

	return snap, nil
}

// currencyGainLoss isolates the FX effect for a foreign holding: the
// difference between valuing the position at the weighted purchase-date
// exchange rate and at the current rate, in the portfolio's currency.
// Returns nil when the current rate is unavailable.
func (s *Service) currencyGainLoss(ctx context.Context, h domain.Holding, stockCurrency, portfolioCurrency string, price float64) *float64 {
	if stockCurrency == portfolioCurrency {
		zero := 0.0
		return &zero
	}

	agg, err := s.Aggregate(h.ID)
	if err != nil || agg.Quantity <= 0 || agg.AvgPurchaseRate <= 0 {
		if err != nil {
			s.log.Warn().Err(err).Str("ticker", h.Ticker).Msg("Failed to aggregate for FX gain")
		}
		return nil
	}

	current, err := s.market.CurrentRate(ctx, stockCurrency, portfolioCurrency)
	if err != nil {
		s.log.Warn().Err(err).Str("ticker", h.Ticker).Msg("Current rate unavailable for FX gain")
		return nil
	}

	gain := agg.Quantity * price * (current.Rate - agg.AvgPurchaseRate)
	return &gain
}

// PortfolioSummary sums holding valuations in the portfolio's currency and
// converts to the display currency when different. A holding with an
// unavailable price or rate is listed as unavailable and excluded from the
// totals; it never blocks the rest of the portfolio.
func (s *Service) PortfolioSummary(ctx context.Context, portfolioID, displayCurrency string) (domain.PortfolioSummary, error) {
	portfolio, err := s.portfolios.Get(portfolioID)
	if err != nil {
		return domain.PortfolioSummary{}, err
	}
	if displayCurrency == "" {
		displayCurrency = portfolio.Currency
	}

	list, err := s.repo.ListByPortfolio(portfolioID)
	if err != nil {
		return domain.PortfolioSummary{}, err
	}

	summary := domain.PortfolioSummary{
		PortfolioID: portfolioID,
		Currency:    displayCurrency,
		UsedCredit:  portfolio.UsedCredit,
	}

	now := time.Now()
	var totalValue, totalBasis float64

	for _, h := range list {
		snap, err := s.Snapshot(ctx, h.ID)
		if err != nil {
			return domain.PortfolioSummary{}, fmt.Errorf("failed to snapshot %s: %w", h.Ticker, err)
		}
		summary.Holdings = append(summary.Holdings, snap)

		if snap.MarketValue == nil {
			summary.Unavailable = append(summary.Unavailable, h.Ticker)
			continue
		}

		value, err := s.converter.Convert(*snap.MarketValue, snap.Currency, portfolio.Currency, now)
		if err != nil {
			s.log.Warn().Err(err).Str("ticker", h.Ticker).Msg("Cannot convert holding value")
			summary.Unavailable = append(summary.Unavailable, h.Ticker)
			continue
		}
		basis, err := s.converter.Convert(h.CurrentQuantity*h.AverageCostPerShare, snap.Currency, portfolio.Currency, now)
		if err != nil {
			summary.Unavailable = append(summary.Unavailable, h.Ticker)
			continue
		}

		totalValue += value
		totalBasis += basis
	}

	if displayCurrency != portfolio.Currency {
		totalValue, err = s.converter.Convert(totalValue, portfolio.Currency, displayCurrency, now)
		if err != nil {
			return domain.PortfolioSummary{}, fmt.Errorf("failed to convert to display currency: %w", err)
		}
		totalBasis, err = s.converter.Convert(totalBasis, portfolio.Currency, displayCurrency, now)
		if err != nil {
			return domain.PortfolioSummary{}, fmt.Errorf("failed to convert to display currency: %w", err)
		}
	}

	summary.TotalValue = totalValue
	summary.TotalCostBasis = totalBasis
	summary.UnrealizedGainLoss = totalValue - totalBasis

	return summary, nil
}
