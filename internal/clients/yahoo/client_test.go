package yahoo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, zerolog.Nop())
}

func chartBody(currency string, price float64, marketTime int64) string {
	return fmt.Sprintf(`{"chart":{"result":[{"meta":{"currency":%q,"regularMarketPrice":%g,"chartPreviousClose":99.5,"regularMarketTime":%d},"timestamp":[],"indicators":{"quote":[{"close":[]}]}}],"error":null}}`,
		currency, price, marketTime)
}

func TestFetchCurrentPrice(t *testing.T) {
	asOf := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
		fmt.Fprint(w, chartBody("USD", 201.25, asOf.Unix()))
	})

	quote, err := client.FetchCurrentPrice(context.Background(), " aapl ")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", quote.Ticker)
	assert.Equal(t, 201.25, quote.Price)
	assert.Equal(t, 99.5, quote.PreviousClose)
	assert.Equal(t, "USD", quote.Currency)
	assert.True(t, quote.AsOf.Equal(asOf))
}

func TestFetchCurrentPriceFallsBackToLastClose(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// Meta carries no price; the last non-null close wins.
		fmt.Fprint(w, `{"chart":{"result":[{"meta":{"currency":"NOK","regularMarketPrice":0},"timestamp":[1748822400,1748908800],"indicators":{"quote":[{"close":[310.5,null]}]}}],"error":null}}`)
	})

	quote, err := client.FetchCurrentPrice(context.Background(), "EQNR.OL")
	require.NoError(t, err)
	assert.Equal(t, 310.5, quote.Price)
	assert.Equal(t, "NOK", quote.Currency)
}

func TestFetchCurrentPriceNoResult(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[],"error":{"code":"Not Found"}}}`)
	})

	_, err := client.FetchCurrentPrice(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestFetchCurrentPriceHTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.FetchCurrentPrice(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestFetchDailyHistorySkipsNullCloses(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// Three trading days, the middle one a holiday null.
		fmt.Fprint(w, `{"chart":{"result":[{"meta":{"currency":"USD"},"timestamp":[1748822400,1748908800,1748995200],"indicators":{"quote":[{"close":[100.0,null,102.0]}]}}],"error":null}}`)
	})

	start := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC)

	samples, err := client.FetchDailyHistory(context.Background(), "AAPL", start, end)
	require.NoError(t, err)

	require.Len(t, samples, 2)
	assert.Equal(t, 100.0, samples[0].Close)
	assert.Equal(t, 102.0, samples[1].Close)
	assert.Equal(t, "AAPL", samples[0].Ticker)
}

func TestFetchCurrentRateUsesFXSymbol(t *testing.T) {
	var requested string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.Path
		fmt.Fprint(w, chartBody("NOK", 10.45, time.Now().Unix()))
	})

	sample, err := client.FetchCurrentRate(context.Background(), "USD", "NOK")
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/USDNOK=X", requested)
	assert.Equal(t, "USD", sample.Base)
	assert.Equal(t, "NOK", sample.Target)
	assert.Equal(t, 10.45, sample.Rate)
}
