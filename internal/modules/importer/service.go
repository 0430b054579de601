// Package importer ingests transaction batches from external sources,
// skipping rows the ledger already contains.
package importer

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/folio-labs/folio/internal/domain"
)

// Ledger defines the ledger operations the importer needs.
type Ledger interface {
	Append(draft domain.TransactionDraft) (domain.Transaction, error)
	ExistsMatching(portfolioID, ticker string, date time.Time, quantity, price float64) (bool, error)
}

// Service applies import batches row by row. Rows are independent: a rejected
// or duplicate row never blocks the rest of the batch.
type Service struct {
	ledger Ledger
	log    zerolog.Logger
}

// NewService creates a new importer service.
func NewService(ledger Ledger, log zerolog.Logger) *Service {
	return &Service{
		ledger: ledger,
		log:    log.With().Str("service", "importer").Logger(),
	}
}

// Import applies a batch of rows to a portfolio. A row is a duplicate when the
// portfolio already has a transaction with the same ticker, date, quantity and
// price; duplicates are counted and skipped, not errors. Each accepted row
// goes through the same validation as a manual append.
func (s *Service) Import(portfolioID string, rows []domain.ImportRow) (domain.ImportResult, error) {
	if portfolioID == "" {
		return domain.ImportResult{}, &domain.ValidationError{
			Field: "portfolio_id", Value: portfolioID, Reason: "must not be empty",
		}
	}

	var result domain.ImportResult

	for i, row := range rows {
		ticker := strings.ToUpper(strings.TrimSpace(row.Ticker))

		dup, err := s.ledger.ExistsMatching(portfolioID, ticker, domain.Day(row.Date), row.Quantity, row.Price)
		if err != nil {
			return result, fmt.Errorf("failed to check row %d: %w", i+1, err)
		}
		if dup {
			result.Duplicates++
			continue
		}

		rate := row.ExchangeRate
		if rate == 0 {
			rate = 1
		}

		_, err = s.ledger.Append(domain.TransactionDraft{
			PortfolioID:  portfolioID,
			Ticker:       ticker,
			Date:         row.Date,
			Type:         row.Type,
			Quantity:     row.Quantity,
			Price:        row.Price,
			Commission:   row.Commission,
			ExchangeRate: rate,
		})
		if err != nil {
			result.Rejected++
			result.Errors = append(result.Errors, domain.ImportRowError{
				Row:    i + 1,
				Ticker: ticker,
				Reason: err.Error(),
			})
			continue
		}

		result.Accepted++
	}

	s.log.Info().
		Str("portfolio_id", portfolioID).
		Int("accepted", result.Accepted).
		Int("duplicates", result.Duplicates).
		Int("rejected", result.Rejected).
		Msg("Import batch applied")

	return result, nil
}
