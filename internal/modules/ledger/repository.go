// Package ledger is the append-only record of buy/sell events per holding.
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/folio-labs/folio/internal/domain"
	"github.com/folio-labs/folio/internal/modules/holdings"
)

const dateLayout = "2006-01-02"

// Repository provides transaction persistence over portfolio.db.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new ledger repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert persists a transaction as an immutable fact.
func (r *Repository) Insert(t domain.Transaction) error {
	_, err := r.db.Exec(
		`INSERT INTO transactions (id, holding_id, date, type, quantity, price,
		                           commission, exchange_rate, average_cost_at_transaction, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.HoldingID, t.Date.Format(dateLayout), string(t.Type),
		t.Quantity, t.Price, t.Commission, t.ExchangeRate,
		t.AvgCostAtTransaction, t.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// Delete removes a transaction. This is the ledger's only mutation.
func (r *Repository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", id, err)
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

// GetByID returns a transaction or domain.ErrNotFound.
func (r *Repository) GetByID(id string) (domain.Transaction, error) {
	row := r.db.QueryRow(
		`SELECT id, holding_id, date, type, quantity, price, commission,
		        exchange_rate, average_cost_at_transaction, created_at
		 FROM transactions WHERE id = ?`, id)

	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return domain.Transaction{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("failed to get transaction %s: %w", id, err)
	}
	return t, nil
}

// ListByHolding returns a holding's transactions chronologically; same-date
// ties are broken by insertion order (rowid). Date alone is not a total
// order.
func (r *Repository) ListByHolding(holdingID string) ([]domain.Transaction, error) {
	rows, err := r.db.Query(
		`SELECT id, holding_id, date, type, quantity, price, commission,
		        exchange_rate, average_cost_at_transaction, created_at
		 FROM transactions WHERE holding_id = ? ORDER BY date, rowid`, holdingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// ListByPortfolio returns recent transactions across a portfolio's holdings,
// newest first.
func (r *Repository) ListByPortfolio(portfolioID string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(
		`SELECT t.id, t.holding_id, t.date, t.type, t.quantity, t.price, t.commission,
		        t.exchange_rate, t.average_cost_at_transaction, t.created_at
		 FROM transactions t
		 JOIN holdings h ON h.id = t.holding_id
		 WHERE h.portfolio_id = ?
		 ORDER BY t.date DESC, t.rowid DESC LIMIT ?`, portfolioID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// CountByHolding returns the number of transactions for a holding.
func (r *Repository) CountByHolding(holdingID string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM transactions WHERE holding_id = ?`, holdingID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// ExistsMatching reports whether the portfolio already has a transaction with
// the same (ticker, date, quantity, price) tuple. Used by import
// deduplication.
func (r *Repository) ExistsMatching(portfolioID, ticker string, date time.Time, quantity, price float64) (bool, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM transactions t
		 JOIN holdings h ON h.id = t.holding_id
		 WHERE h.portfolio_id = ? AND h.ticker = ? AND t.date = ? AND t.quantity = ? AND t.price = ?`,
		portfolioID, ticker, date.Format(dateLayout), quantity, price).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check for duplicate transaction: %w", err)
	}
	return count > 0, nil
}

// UpdateDerivedMetrics rewrites the derived average-cost column after a
// recompute. The economic fields of a transaction are never touched.
func (r *Repository) UpdateDerivedMetrics(metrics []holdings.TransactionMetric) error {
	if len(metrics) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin metric update: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`UPDATE transactions SET average_cost_at_transaction = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare metric update: %w", err)
	}
	defer stmt.Close()

	for _, m := range metrics {
		if _, err := stmt.Exec(m.AvgCostAtTransaction, m.TransactionID); err != nil {
			return fmt.Errorf("failed to update transaction %s: %w", m.TransactionID, err)
		}
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (domain.Transaction, error) {
	var t domain.Transaction
	var date, txnType, createdAt string
	err := row.Scan(&t.ID, &t.HoldingID, &date, &txnType, &t.Quantity, &t.Price,
		&t.Commission, &t.ExchangeRate, &t.AvgCostAtTransaction, &createdAt)
	if err != nil {
		return domain.Transaction{}, err
	}
	t.Type = domain.TransactionType(txnType)
	t.Date, _ = time.Parse(dateLayout, date)
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return t, nil
}

func collectTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}
