// Package domain contains the core types shared across modules.
// It has no infrastructure dependencies.
package domain

import "time"

// TransactionType identifies the direction of a ledger transaction.
type TransactionType string

const (
	TransactionBuy  TransactionType = "buy"
	TransactionSell TransactionType = "sell"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	return t == TransactionBuy || t == TransactionSell
}

// Transaction is an immutable ledger fact. Once created it is never mutated
// in place; edits are modeled as delete+recreate so cost-basis history stays
// auditable.
type Transaction struct {
	ID           string          `json:"id"`
	HoldingID    string          `json:"holding_id"`
	Date         time.Time       `json:"date"`
	Type         TransactionType `json:"type"`
	Quantity     float64         `json:"quantity"`
	Price        float64         `json:"price"`
	Commission   float64         `json:"commission"`
	ExchangeRate float64         `json:"exchange_rate"`
	// AvgCostAtTransaction is this transaction's own cost basis per share
	// (buys) or the running average it realized against (sells).
	AvgCostAtTransaction float64   `json:"average_cost_per_share_at_transaction"`
	CreatedAt            time.Time `json:"created_at"`
}

// TransactionDraft is the input to ledger append. The holding is resolved
// (or created) from portfolio + ticker.
type TransactionDraft struct {
	PortfolioID  string          `json:"portfolio_id"`
	Ticker       string          `json:"ticker"`
	CompanyName  string          `json:"company_name,omitempty"`
	Date         time.Time       `json:"date"`
	Type         TransactionType `json:"type"`
	Quantity     float64         `json:"quantity"`
	Price        float64         `json:"price"`
	Commission   float64         `json:"commission"`
	ExchangeRate float64         `json:"exchange_rate"`
}

// Holding is a position in a single equity. CurrentQuantity and
// AverageCostPerShare are derived from the full transaction history; they are
// recompute-on-write caches, not sources of truth.
type Holding struct {
	ID                  string    `json:"id"`
	PortfolioID         string    `json:"portfolio_id"`
	Ticker              string    `json:"ticker"`
	CompanyName         string    `json:"company_name"`
	Currency            string    `json:"currency"`
	CurrentQuantity     float64   `json:"current_quantity"`
	AverageCostPerShare float64   `json:"average_cost_per_share"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Portfolio owns holdings; deleting it cascades to holdings and transactions.
type Portfolio struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Currency    string    `json:"currency"`
	UsedCredit  float64   `json:"used_credit"`
	Order       int       `json:"order"`
	CreatedAt   time.Time `json:"created_at"`
}

// PriceQuote is a current price as returned by the market data provider.
type PriceQuote struct {
	Ticker        string    `json:"ticker"`
	Price         float64   `json:"price"`
	PreviousClose float64   `json:"previous_close"`
	Currency      string    `json:"currency"`
	AsOf          time.Time `json:"as_of"`
}

// PriceSample is one daily close. Append-only, at most one per (ticker, date).
type PriceSample struct {
	Ticker string    `json:"ticker"`
	Date   time.Time `json:"date"`
	Close  float64   `json:"close"`
}

// RateSample is one daily exchange rate. Append-only, at most one per
// (pair, date).
type RateSample struct {
	Base   string    `json:"base_currency"`
	Target string    `json:"target_currency"`
	Date   time.Time `json:"date"`
	Rate   float64   `json:"rate"`
}

// HoldingSnapshot is the valuation view consumed by the presentation layer.
// Pointer fields are nil when the underlying metric is unavailable; they are
// never defaulted to zero, which would misrepresent an unknown value.
type HoldingSnapshot struct {
	HoldingID           string     `json:"holding_id"`
	Ticker              string     `json:"ticker"`
	CompanyName         string     `json:"company_name"`
	Currency            string     `json:"currency"`
	CurrentQuantity     float64    `json:"current_quantity"`
	AverageCostPerShare float64    `json:"average_cost_per_share"`
	LatestPrice         *float64   `json:"latest_price"`
	LastPriceAt         *time.Time `json:"last_price_timestamp"`
	UnrealizedGainLoss  *float64   `json:"unrealized_gain_loss"`
	CurrencyGainLoss    *float64   `json:"currency_gain_loss"`
	MarketValue         *float64   `json:"market_value"`
}

// PortfolioSummary aggregates holding valuations in the portfolio currency.
type PortfolioSummary struct {
	PortfolioID        string            `json:"portfolio_id"`
	Currency           string            `json:"currency"`
	TotalValue         float64           `json:"total_value"`
	TotalCostBasis     float64           `json:"total_cost_basis"`
	UnrealizedGainLoss float64           `json:"unrealized_gain_loss"`
	UsedCredit         float64           `json:"used_credit"`
	Holdings           []HoldingSnapshot `json:"holdings"`
	// Unavailable lists tickers whose price could not be valued. Their
	// holdings appear in Holdings but do not contribute to totals.
	Unavailable []string `json:"unavailable,omitempty"`
}

// ImportRow is one semantic row from an external import.
// All fields are required; parsing mechanics live with the caller.
type ImportRow struct {
	Date         time.Time       `json:"date"`
	Ticker       string          `json:"ticker"`
	Quantity     float64         `json:"quantity"`
	Price        float64         `json:"price"`
	Type         TransactionType `json:"type"`
	Commission   float64         `json:"commission"`
	ExchangeRate float64         `json:"exchange_rate"`
}

// ImportRowError records why a single row was rejected.
type ImportRowError struct {
	Row    int    `json:"row"`
	Ticker string `json:"ticker"`
	Reason string `json:"reason"`
}

// ImportResult summarizes a batch import. Rows are independent: one row's
// rejection never blocks another's acceptance.
type ImportResult struct {
	Accepted   int              `json:"accepted"`
	Duplicates int              `json:"duplicates"`
	Rejected   int              `json:"rejected"`
	Errors     []ImportRowError `json:"errors,omitempty"`
}

// Day truncates t to its UTC calendar date. Samples and transaction ordering
// work on calendar dates, not instants.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
