package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrProviderRateLimited signals the self-imposed provider call budget is
// exhausted. The cache serves stale data while the circuit is open; the error
// only surfaces when nothing has ever been cached for the key.
var ErrProviderRateLimited = errors.New("provider call budget exhausted")

// ErrNotFound is returned by repositories when an entity does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError rejects malformed or out-of-range input before it reaches
// the ledger. It always carries the offending field and value.
type ValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

// InsufficientQuantityError rejects a sell that would drive a holding's
// quantity negative.
type InsufficientQuantityError struct {
	HoldingID string
	Requested float64
	Available float64
}

func (e *InsufficientQuantityError) Error() string {
	return fmt.Sprintf("holding %s: cannot sell %g, only %g held",
		e.HoldingID, e.Requested, e.Available)
}

// RateUnavailableError means the currency converter has no sample on or
// before the requested date.
type RateUnavailableError struct {
	Base   string
	Target string
	Date   time.Time
}

func (e *RateUnavailableError) Error() string {
	return fmt.Sprintf("no %s/%s rate on or before %s",
		e.Base, e.Target, e.Date.Format("2006-01-02"))
}

// DataUnavailableError means the market data cache has neither fresh nor
// stale data for a key and the provider failed.
type DataUnavailableError struct {
	Kind string
	Key  string
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("no data available for %s %q", e.Kind, e.Key)
}
