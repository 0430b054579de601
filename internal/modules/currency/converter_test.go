package currency

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio-labs/folio/internal/domain"
)

// fakeRateSource serves samples keyed by date, mimicking the repository's
// carry-forward lookup.
type fakeRateSource struct {
	samples []domain.RateSample
	err     error
}

func (f *fakeRateSource) LatestRateOnOrBefore(base, target string, asOf time.Time) (*domain.RateSample, error) {
	if f.err != nil {
		return nil, f.err
	}
	var best *domain.RateSample
	for i := range f.samples {
		s := f.samples[i]
		if s.Base != base || s.Target != target || s.Date.After(asOf) {
			continue
		}
		if best == nil || s.Date.After(best.Date) {
			best = &s
		}
	}
	return best, nil
}

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestConvertSameCurrencyIsIdentity(t *testing.T) {
	c := NewConverter(&fakeRateSource{})

	got, err := c.Convert(123.45, "USD", "USD", day("2025-06-01"))

	require.NoError(t, err)
	assert.Equal(t, 123.45, got)
}

func TestConvertUsesExactDateSample(t *testing.T) {
	c := NewConverter(&fakeRateSource{samples: []domain.RateSample{
		{Base: "USD", Target: "NOK", Date: day("2025-06-01"), Rate: 10.5},
	}})

	got, err := c.Convert(100, "USD", "NOK", day("2025-06-01"))

	require.NoError(t, err)
	assert.InDelta(t, 1050.0, got, 1e-9)
}

func TestConvertCarriesRateForwardOverGaps(t *testing.T) {
	// Friday's rate serves the weekend.
	c := NewConverter(&fakeRateSource{samples: []domain.RateSample{
		{Base: "USD", Target: "NOK", Date: day("2025-06-06"), Rate: 10.0},
		{Base: "USD", Target: "NOK", Date: day("2025-06-09"), Rate: 11.0},
	}})

	got, err := c.Convert(100, "USD", "NOK", day("2025-06-08"))

	require.NoError(t, err)
	assert.InDelta(t, 1000.0, got, 1e-9)
}

func TestConvertFailsBeforeFirstSample(t *testing.T) {
	c := NewConverter(&fakeRateSource{samples: []domain.RateSample{
		{Base: "USD", Target: "NOK", Date: day("2025-06-06"), Rate: 10.0},
	}})

	_, err := c.Convert(100, "USD", "NOK", day("2025-06-01"))

	var rateErr *domain.RateUnavailableError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, "USD", rateErr.Base)
	assert.Equal(t, "NOK", rateErr.Target)
}

func TestConvertPropagatesSourceError(t *testing.T) {
	c := NewConverter(&fakeRateSource{err: errors.New("database locked")})

	_, err := c.Convert(100, "USD", "NOK", day("2025-06-01"))

	require.Error(t, err)
}

func TestRateSameCurrencyIsOne(t *testing.T) {
	c := NewConverter(&fakeRateSource{})

	rate, err := c.Rate("EUR", "EUR", day("2025-06-01"))

	require.NoError(t, err)
	assert.Equal(t, 1.0, rate)
}
