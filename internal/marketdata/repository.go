// Package marketdata shields the valuation engine and the external quote
// provider from each other: a time-boxed cache with stale fallback over
// persistent SQLite storage.
package marketdata

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/folio-labs/folio/internal/domain"
)

// Cache entry kinds. Together with key and qualifier they form the cache key
// tuple, e.g. (price, "AAPL", "current") or (rate_history, "USDNOK",
// "2024-01-01:2024-06-30").
const (
	KindPrice        = "price"
	KindRate         = "rate"
	KindPriceHistory = "price_history"
	KindRateHistory  = "rate_history"
	KindBalance      = "balance"
)

const dateLayout = "2006-01-02"

// Repository provides cache blob storage and the append-only sample series.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new market data repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Store saves data with expiration = now + ttl, replacing any previous entry
// for the same (kind, key, qualifier).
func (r *Repository) Store(kind, key, qualifier string, data interface{}, ttl time.Duration, now time.Time) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	_, err = r.db.Exec(
		`INSERT OR REPLACE INTO cache_entries (kind, key, qualifier, data, expires_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		kind, key, qualifier, string(jsonData), now.Add(ttl).Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store cache entry %s/%s: %w", kind, key, err)
	}

	return nil
}

// GetFresh returns data only if it has not expired. Returns nil, nil on a
// miss; use GetAny to retrieve stale data when the provider fails.
func (r *Repository) GetFresh(kind, key, qualifier string, now time.Time) (json.RawMessage, error) {
	var data string
	err := r.db.QueryRow(
		`SELECT data FROM cache_entries WHERE kind = ? AND key = ? AND qualifier = ? AND expires_at > ?`,
		kind, key, qualifier, now.Unix(),
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry %s/%s: %w", kind, key, err)
	}
	return json.RawMessage(data), nil
}

// GetAny returns data regardless of expiration, along with when it was
// written. Stale data is better than no data when the provider is down.
// Returns nil, zero, nil if the key has never been cached.
func (r *Repository) GetAny(kind, key, qualifier string) (json.RawMessage, time.Time, error) {
	var data string
	var updatedAt int64
	err := r.db.QueryRow(
		`SELECT data, updated_at FROM cache_entries WHERE kind = ? AND key = ? AND qualifier = ?`,
		kind, key, qualifier,
	).Scan(&data, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read cache entry %s/%s: %w", kind, key, err)
	}
	return json.RawMessage(data), time.Unix(updatedAt, 0), nil
}

// DeleteExpired removes expired cache entries. Sample tables are never
// pruned; they are the historical record.
func (r *Repository) DeleteExpired(now time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM cache_entries WHERE expires_at < ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cache entries: %w", err)
	}
	return result.RowsAffected()
}

// InsertPriceSamples appends daily closes. Existing (ticker, date) rows are
// left untouched: samples are immutable once written.
func (r *Repository) InsertPriceSamples(samples []domain.PriceSample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin sample insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO price_samples (ticker, date, close) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare sample insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range samples {
		if _, err := stmt.Exec(s.Ticker, s.Date.Format(dateLayout), s.Close); err != nil {
			return fmt.Errorf("failed to insert price sample %s/%s: %w", s.Ticker, s.Date.Format(dateLayout), err)
		}
	}

	return tx.Commit()
}

// InsertRateSamples appends daily exchange rates, one per (pair, date).
func (r *Repository) InsertRateSamples(samples []domain.RateSample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin sample insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR IGNORE INTO exchange_rate_samples (base_currency, target_currency, date, rate) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare sample insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range samples {
		if _, err := stmt.Exec(s.Base, s.Target, s.Date.Format(dateLayout), s.Rate); err != nil {
			return fmt.Errorf("failed to insert rate sample %s%s/%s: %w", s.Base, s.Target, s.Date.Format(dateLayout), err)
		}
	}

	return tx.Commit()
}

// PriceSamples returns the stored daily closes for a ticker within [start, end].
func (r *Repository) PriceSamples(ticker string, start, end time.Time) ([]domain.PriceSample, error) {
	rows, err := r.db.Query(
		`SELECT ticker, date, close FROM price_samples WHERE ticker = ? AND date >= ? AND date <= ? ORDER BY date`,
		ticker, start.Format(dateLayout), end.Format(dateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query price samples: %w", err)
	}
	defer rows.Close()

	var samples []domain.PriceSample
	for rows.Next() {
		var s domain.PriceSample
		var date string
		if err := rows.Scan(&s.Ticker, &date, &s.Close); err != nil {
			return nil, fmt.Errorf("failed to scan price sample: %w", err)
		}
		s.Date, _ = time.Parse(dateLayout, date)
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// RateSamples returns the stored daily rates for a pair within [start, end].
func (r *Repository) RateSamples(base, target string, start, end time.Time) ([]domain.RateSample, error) {
	rows, err := r.db.Query(
		`SELECT base_currency, target_currency, date, rate FROM exchange_rate_samples
		 WHERE base_currency = ? AND target_currency = ? AND date >= ? AND date <= ? ORDER BY date`,
		base, target, start.Format(dateLayout), end.Format(dateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query rate samples: %w", err)
	}
	defer rows.Close()

	var samples []domain.RateSample
	for rows.Next() {
		var s domain.RateSample
		var date string
		if err := rows.Scan(&s.Base, &s.Target, &date, &s.Rate); err != nil {
			return nil, fmt.Errorf("failed to scan rate sample: %w", err)
		}
		s.Date, _ = time.Parse(dateLayout, date)
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// LatestRateOnOrBefore implements the carry-forward lookup: the most recent
// sample with date <= asOf. FX markets do not trade every calendar day.
// Returns nil, nil when no preceding sample exists.
func (r *Repository) LatestRateOnOrBefore(base, target string, asOf time.Time) (*domain.RateSample, error) {
	var s domain.RateSample
	var date string
	err := r.db.QueryRow(
		`SELECT base_currency, target_currency, date, rate FROM exchange_rate_samples
		 WHERE base_currency = ? AND target_currency = ? AND date <= ?
		 ORDER BY date DESC LIMIT 1`,
		base, target, asOf.Format(dateLayout),
	).Scan(&s.Base, &s.Target, &date, &s.Rate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest rate: %w", err)
	}
	s.Date, _ = time.Parse(dateLayout, date)
	return &s, nil
}
