// Package currency converts amounts between currencies using the stored
// exchange-rate sample series.
package currency

import (
	"time"

	"github.com/folio-labs/folio/internal/domain"
)

// RateSource resolves the nearest rate sample on or before a date.
// Implemented by the market data repository.
type RateSource interface {
	LatestRateOnOrBefore(base, target string, asOf time.Time) (*domain.RateSample, error)
}

// Converter is a pure conversion function over a rate source. It keeps no
// state and does no caching of its own.
type Converter struct {
	rates RateSource
}

// NewConverter creates a converter over the given rate source.
func NewConverter(rates RateSource) *Converter {
	return &Converter{rates: rates}
}

// Convert converts amount from one currency to another as of a date.
// Same-currency conversion is the identity and never looks up a rate.
// When no sample exists for the exact date the nearest preceding sample is
// carried forward; with no preceding sample at all it fails with
// RateUnavailableError.
func (c *Converter) Convert(amount float64, from, to string, asOf time.Time) (float64, error) {
	if from == to {
		return amount, nil
	}

	sample, err := c.rates.LatestRateOnOrBefore(from, to, domain.Day(asOf))
	if err != nil {
		return 0, err
	}
	if sample == nil {
		return 0, &domain.RateUnavailableError{Base: from, Target: to, Date: domain.Day(asOf)}
	}

	return amount * sample.Rate, nil
}

// Rate returns the carry-forward rate itself, for callers that need to apply
// it to several amounts.
func (c *Converter) Rate(from, to string, asOf time.Time) (float64, error) {
	if from == to {
		return 1, nil
	}

	sample, err := c.rates.LatestRateOnOrBefore(from, to, domain.Day(asOf))
	if err != nil {
		return 0, err
	}
	if sample == nil {
		return 0, &domain.RateUnavailableError{Base: from, Target: to, Date: domain.Day(asOf)}
	}

	return sample.Rate, nil
}
