// Package portfolio manages the portfolios that own holdings.
package portfolio

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/folio-labs/folio/internal/domain"
)

// Repository provides portfolio persistence over portfolio.db.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new portfolio repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new portfolio. Name and currency are required; currency is
// stored uppercase.
func (r *Repository) Create(name, description, currency string) (domain.Portfolio, error) {
	name = strings.TrimSpace(name)
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if name == "" {
		return domain.Portfolio{}, &domain.ValidationError{Field: "name", Value: name, Reason: "must not be empty"}
	}
	if currency == "" {
		return domain.Portfolio{}, &domain.ValidationError{Field: "currency", Value: currency, Reason: "must not be empty"}
	}

	var maxOrder sql.NullInt64
	if err := r.db.QueryRow(`SELECT MAX(sort_order) FROM portfolios`).Scan(&maxOrder); err != nil {
		return domain.Portfolio{}, fmt.Errorf("failed to determine portfolio order: %w", err)
	}

	p := domain.Portfolio{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Currency:    currency,
		Order:       int(maxOrder.Int64) + 1,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := r.db.Exec(
		`INSERT INTO portfolios (id, name, description, currency, used_credit, sort_order, created_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		p.ID, p.Name, p.Description, p.Currency, p.Order, p.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return domain.Portfolio{}, fmt.Errorf("failed to create portfolio: %w", err)
	}

	return p, nil
}

// Get returns a portfolio or domain.ErrNotFound.
func (r *Repository) Get(id string) (domain.Portfolio, error) {
	row := r.db.QueryRow(
		`SELECT id, name, description, currency, used_credit, sort_order, created_at
		 FROM portfolios WHERE id = ?`, id)

	p, err := scanPortfolio(row)
	if err == sql.ErrNoRows {
		return domain.Portfolio{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Portfolio{}, fmt.Errorf("failed to get portfolio %s: %w", id, err)
	}
	return p, nil
}

// List returns all portfolios in display order.
func (r *Repository) List() ([]domain.Portfolio, error) {
	rows, err := r.db.Query(
		`SELECT id, name, description, currency, used_credit, sort_order, created_at
		 FROM portfolios ORDER BY sort_order, created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	var portfolios []domain.Portfolio
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		portfolios = append(portfolios, p)
	}
	return portfolios, rows.Err()
}

// Update changes a portfolio's name and description. The currency is fixed at
// creation; changing it would silently reprice the whole history.
func (r *Repository) Update(id, name, description string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &domain.ValidationError{Field: "name", Value: name, Reason: "must not be empty"}
	}

	result, err := r.db.Exec(
		`UPDATE portfolios SET name = ?, description = ? WHERE id = ?`,
		name, description, id)
	if err != nil {
		return fmt.Errorf("failed to update portfolio %s: %w", id, err)
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

// SetUsedCredit records the credit drawn against the portfolio.
func (r *Repository) SetUsedCredit(id string, amount float64) error {
	if amount < 0 {
		return &domain.ValidationError{Field: "used_credit", Value: amount, Reason: "must not be negative"}
	}
	result, err := r.db.Exec(`UPDATE portfolios SET used_credit = ? WHERE id = ?`, amount, id)
	if err != nil {
		return fmt.Errorf("failed to update used credit: %w", err)
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

// Delete removes a portfolio; holdings and transactions cascade.
func (r *Repository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM portfolios WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio %s: %w", id, err)
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

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPortfolio(row rowScanner) (domain.Portfolio, error) {
	var p domain.Portfolio
	var createdAt string
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Currency, &p.UsedCredit, &p.Order, &createdAt)
	if err != nil {
		return domain.Portfolio{}, err
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return p, nil
}
