package marketdata

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio-labs/folio/internal/domain"
	testdb "github.com/folio-labs/folio/internal/testing"
)

func newRepo(t *testing.T) (*Repository, func()) {
	t.Helper()
	db, cleanup := testdb.NewTestDB(t, "marketdata")
	return NewRepository(db.Conn()), cleanup
}

func date(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func TestStoreAndFreshness(t *testing.T) {
	repo, cleanup := newRepo(t)
	defer cleanup()

	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	payload := json.RawMessage(`{"price":101.5}`)

	require.NoError(t, repo.Store(KindPrice, "AAPL", "current", payload, 15*time.Minute, now))

	fresh, err := repo.GetFresh(KindPrice, "AAPL", "current", now.Add(10*time.Minute))
	require.NoError(t, err)
	assert.JSONEq(t, string(payload), string(fresh))

	// Past the TTL the entry is no longer fresh but still retrievable stale.
	fresh, err = repo.GetFresh(KindPrice, "AAPL", "current", now.Add(20*time.Minute))
	require.NoError(t, err)
	assert.Nil(t, fresh)

	stale, updatedAt, err := repo.GetAny(KindPrice, "AAPL", "current")
	require.NoError(t, err)
	assert.JSONEq(t, string(payload), string(stale))
	assert.True(t, updatedAt.Equal(now))
}

func TestStoreReplacesExistingEntry(t *testing.T) {
	repo, cleanup := newRepo(t)
	defer cleanup()

	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Store(KindPrice, "AAPL", "current", json.RawMessage(`{"price":1}`), time.Minute, now))
	require.NoError(t, repo.Store(KindPrice, "AAPL", "current", json.RawMessage(`{"price":2}`), time.Minute, now.Add(time.Minute)))

	data, _, err := repo.GetAny(KindPrice, "AAPL", "current")
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":2}`, string(data))
}

func TestDeleteExpiredKeepsSamples(t *testing.T) {
	repo, cleanup := newRepo(t)
	defer cleanup()

	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Store(KindPrice, "AAPL", "current", json.RawMessage(`{}`), time.Minute, now))
	require.NoError(t, repo.InsertPriceSamples([]domain.PriceSample{
		{Ticker: "AAPL", Date: date("2025-06-02"), Close: 100},
	}))

	deleted, err := repo.DeleteExpired(now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	// Cleanup only touches cache entries, never the historical series.
	samples, err := repo.PriceSamples("AAPL", date("2025-06-01"), date("2025-06-03"))
	require.NoError(t, err)
	assert.Len(t, samples, 1)
}

func TestInsertRateSamplesIsImmutable(t *testing.T) {
	repo, cleanup := newRepo(t)
	defer cleanup()

	require.NoError(t, repo.InsertRateSamples([]domain.RateSample{
		{Base: "USD", Target: "NOK", Date: date("2025-06-02"), Rate: 10.0},
	}))
	// A second write for the same (pair, date) is ignored, not overwritten.
	require.NoError(t, repo.InsertRateSamples([]domain.RateSample{
		{Base: "USD", Target: "NOK", Date: date("2025-06-02"), Rate: 99.0},
	}))

	samples, err := repo.RateSamples("USD", "NOK", date("2025-06-01"), date("2025-06-03"))
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, 10.0, samples[0].Rate)
}

func TestLatestRateOnOrBefore(t *testing.T) {
	repo, cleanup := newRepo(t)
	defer cleanup()

	require.NoError(t, repo.InsertRateSamples([]domain.RateSample{
		{Base: "USD", Target: "NOK", Date: date("2025-06-02"), Rate: 10.0},
		{Base: "USD", Target: "NOK", Date: date("2025-06-06"), Rate: 10.5},
	}))

	// Exact date.
	sample, err := repo.LatestRateOnOrBefore("USD", "NOK", date("2025-06-02"))
	require.NoError(t, err)
	require.NotNil(t, sample)
	assert.Equal(t, 10.0, sample.Rate)

	// Gap between samples carries the earlier one forward.
	sample, err = repo.LatestRateOnOrBefore("USD", "NOK", date("2025-06-04"))
	require.NoError(t, err)
	require.NotNil(t, sample)
	assert.Equal(t, 10.0, sample.Rate)

	// Before the first sample there is nothing to carry.
	sample, err = repo.LatestRateOnOrBefore("USD", "NOK", date("2025-06-01"))
	require.NoError(t, err)
	assert.Nil(t, sample)
}
