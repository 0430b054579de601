package holdings

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/folio-labs/folio/internal/domain"
)

const dateLayout = "2006-01-02"

// Repository provides holding persistence over portfolio.db.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new holdings repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetByID returns a holding or domain.ErrNotFound.
func (r *Repository) GetByID(id string) (domain.Holding, error) {
	return r.scanOne(r.db.QueryRow(
		`SELECT id, portfolio_id, ticker, company_name, currency,
		        current_quantity, average_cost_per_share, updated_at
		 FROM holdings WHERE id = ?`, id))
}

// GetByTicker returns the holding for (portfolio, ticker) or domain.ErrNotFound.
func (r *Repository) GetByTicker(portfolioID, ticker string) (domain.Holding, error) {
	return r.scanOne(r.db.QueryRow(
		`SELECT id, portfolio_id, ticker, company_name, currency,
		        current_quantity, average_cost_per_share, updated_at
		 FROM holdings WHERE portfolio_id = ? AND ticker = ?`, portfolioID, ticker))
}

// ListByPortfolio returns all holdings of a portfolio ordered by ticker.
func (r *Repository) ListByPortfolio(portfolioID string) ([]domain.Holding, error) {
	rows, err := r.db.Query(
		`SELECT id, portfolio_id, ticker, company_name, currency,
		        current_quantity, average_cost_per_share, updated_at
		 FROM holdings WHERE portfolio_id = ? ORDER BY ticker`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []domain.Holding
	for rows.Next() {
		h, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// GetOrCreate returns the holding for (portfolio, ticker), creating it with
// zeroed derived fields when it does not exist yet.
func (r *Repository) GetOrCreate(portfolioID, ticker, companyName, currency string) (domain.Holding, error) {
	h, err := r.GetByTicker(portfolioID, ticker)
	if err == nil {
		return h, nil
	}
	if err != domain.ErrNotFound {
		return domain.Holding{}, err
	}

	if companyName == "" {
		companyName = ticker
	}

	h = domain.Holding{
		ID:          uuid.NewString(),
		PortfolioID: portfolioID,
		Ticker:      ticker,
		CompanyName: companyName,
		Currency:    currency,
		UpdatedAt:   time.Now().UTC(),
	}

	_, err = r.db.Exec(
		`INSERT INTO holdings (id, portfolio_id, ticker, company_name, currency,
		                       current_quantity, average_cost_per_share, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, 0, ?)`,
		h.ID, h.PortfolioID, h.Ticker, h.CompanyName, h.Currency,
		h.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return domain.Holding{}, fmt.Errorf("failed to create holding %s: %w", ticker, err)
	}

	return h, nil
}

// ListActiveTickers returns the distinct tickers of all open positions.
func (r *Repository) ListActiveTickers() ([]string, error) {
	rows, err := r.db.Query(
		`SELECT DISTINCT ticker FROM holdings WHERE current_quantity > 0 ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}

// ListCurrencyPairs returns the distinct (holding currency, portfolio
// currency) pairs of open positions whose currencies differ.
func (r *Repository) ListCurrencyPairs() ([][2]string, error) {
	rows, err := r.db.Query(
		`SELECT DISTINCT h.currency, p.currency
		 FROM holdings h JOIN portfolios p ON p.id = h.portfolio_id
		 WHERE h.current_quantity > 0 AND h.currency != p.currency`)
	if err != nil {
		return nil, fmt.Errorf("failed to query currency pairs: %w", err)
	}
	defer rows.Close()

	var pairs [][2]string
	for rows.Next() {
		var base, target string
		if err := rows.Scan(&base, &target); err != nil {
			return nil, err
		}
		pairs = append(pairs, [2]string{base, target})
	}
	return pairs, rows.Err()
}

// UpdateDerived persists recomputed derived fields for a holding.
func (r *Repository) UpdateDerived(id string, quantity, avgCost float64) error {
	result, err := r.db.Exec(
		`UPDATE holdings SET current_quantity = ?, average_cost_per_share = ?, updated_at = ?
		 WHERE id = ?`,
		quantity, avgCost, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to update holding %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateCurrency records the stock's native currency once known from a quote.
func (r *Repository) UpdateCurrency(id, currency string) error {
	_, err := r.db.Exec(`UPDATE holdings SET currency = ? WHERE id = ?`, currency, id)
	if err != nil {
		return fmt.Errorf("failed to update holding currency: %w", err)
	}
	return nil
}

// Delete removes a holding; its transactions cascade.
func (r *Repository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM holdings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete holding %s: %w", id, err)
	}
	return nil
}

func (r *Repository) scanOne(row *sql.Row) (domain.Holding, error) {
	var h domain.Holding
	var updatedAt string
	err := row.Scan(&h.ID, &h.PortfolioID, &h.Ticker, &h.CompanyName, &h.Currency,
		&h.CurrentQuantity, &h.AverageCostPerShare, &updatedAt)
	if err == sql.ErrNoRows {
		return domain.Holding{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Holding{}, fmt.Errorf("failed to scan holding: %w", err)
	}
	h.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return h, nil
}

func (r *Repository) scanRow(rows *sql.Rows) (domain.Holding, error) {
	var h domain.Holding
	var updatedAt string
	err := rows.Scan(&h.ID, &h.PortfolioID, &h.Ticker, &h.CompanyName, &h.Currency,
		&h.CurrentQuantity, &h.AverageCostPerShare, &updatedAt)
	if err != nil {
		return domain.Holding{}, fmt.Errorf("failed to scan holding: %w", err)
	}
	h.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return h, nil
}
