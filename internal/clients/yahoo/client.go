// Package yahoo provides the market data provider client over the Yahoo
// Finance v8 chart API. It does no caching of its own; that is the market
// data cache's job.
package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/folio-labs/folio/internal/domain"
)

// ErrNoResult means the API answered but carried no usable data for the
// symbol.
var ErrNoResult = errors.New("yahoo: no result")

// Client talks to the Yahoo Finance chart API.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new Yahoo Finance client. Timeouts are enforced by the
// caller's context; the HTTP client carries a generous upper bound only.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("client", "yahoo").Logger(),
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"chart"`
}

// FetchCurrentPrice returns the current quote for an equity ticker.
func (c *Client) FetchCurrentPrice(ctx context.Context, ticker string) (domain.PriceQuote, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return domain.PriceQuote{}, fmt.Errorf("empty ticker")
	}

	raw, err := c.chart(ctx, ticker, url.Values{"interval": {"1d"}, "range": {"1d"}})
	if err != nil {
		return domain.PriceQuote{}, err
	}

	r := raw.Chart.Result[0]
	price := r.Meta.RegularMarketPrice
	asOf := time.Unix(r.Meta.RegularMarketTime, 0).UTC()

	// Fall back to the last non-zero close when meta is missing.
	if price <= 0 && len(r.Timestamp) > 0 && len(r.Indicators.Quote) > 0 {
		closes := r.Indicators.Quote[0].Close
		for i := len(closes) - 1; i >= 0; i-- {
			if i < len(r.Timestamp) && closes[i] > 0 {
				price = closes[i]
				asOf = time.Unix(r.Timestamp[i], 0).UTC()
				break
			}
		}
	}

	if price <= 0 {
		return domain.PriceQuote{}, ErrNoResult
	}

	currency := r.Meta.Currency
	if currency == "" {
		currency = "USD"
	}

	return domain.PriceQuote{
		Ticker:        ticker,
		Price:         price,
		PreviousClose: r.Meta.ChartPreviousClose,
		Currency:      currency,
		AsOf:          asOf,
	}, nil
}

// FetchDailyHistory returns daily closes for [start, end].
func (c *Client) FetchDailyHistory(ctx context.Context, ticker string, start, end time.Time) ([]domain.PriceSample, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	dates, closes, err := c.dailyCloses(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}

	samples := make([]domain.PriceSample, 0, len(dates))
	for i, d := range dates {
		samples = append(samples, domain.PriceSample{Ticker: ticker, Date: d, Close: closes[i]})
	}
	return samples, nil
}

// FetchCurrentRate returns the current exchange rate for a currency pair
// using Yahoo's FX symbols ("USDNOK=X").
func (c *Client) FetchCurrentRate(ctx context.Context, base, target string) (domain.RateSample, error) {
	quote, err := c.FetchCurrentPrice(ctx, fxSymbol(base, target))
	if err != nil {
		return domain.RateSample{}, err
	}
	return domain.RateSample{
		Base:   base,
		Target: target,
		Date:   domain.Day(quote.AsOf),
		Rate:   quote.Price,
	}, nil
}

// FetchRateHistory returns daily exchange rates for [start, end].
func (c *Client) FetchRateHistory(ctx context.Context, base, target string, start, end time.Time) ([]domain.RateSample, error) {
	dates, closes, err := c.dailyCloses(ctx, fxSymbol(base, target), start, end)
	if err != nil {
		return nil, err
	}

	samples := make([]domain.RateSample, 0, len(dates))
	for i, d := range dates {
		samples = append(samples, domain.RateSample{Base: base, Target: target, Date: d, Rate: closes[i]})
	}
	return samples, nil
}

// dailyCloses fetches a daily chart and flattens it to one close per calendar
// day, dropping null closes (market holidays come back as nulls).
func (c *Client) dailyCloses(ctx context.Context, symbol string, start, end time.Time) ([]time.Time, []float64, error) {
	params := url.Values{
		"interval": {"1d"},
		"period1":  {fmt.Sprintf("%d", start.Unix())},
		"period2":  {fmt.Sprintf("%d", end.Add(24*time.Hour).Unix())},
	}

	raw, err := c.chart(ctx, symbol, params)
	if err != nil {
		return nil, nil, err
	}

	r := raw.Chart.Result[0]
	if len(r.Indicators.Quote) == 0 {
		return nil, nil, ErrNoResult
	}
	closes := r.Indicators.Quote[0].Close

	var dates []time.Time
	var values []float64
	for i, ts := range r.Timestamp {
		if i >= len(closes) || closes[i] <= 0 {
			continue
		}
		dates = append(dates, domain.Day(time.Unix(ts, 0)))
		values = append(values, closes[i])
	}
	return dates, values, nil
}

// chart performs a GET against the v8 chart endpoint.
func (c *Client) chart(ctx context.Context, symbol string, params url.Values) (*chartResponse, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "folio/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chart request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart API returned status %d for %s", resp.StatusCode, symbol)
	}

	var raw chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse chart response: %w", err)
	}
	if len(raw.Chart.Result) == 0 {
		return nil, ErrNoResult
	}

	return &raw, nil
}

func fxSymbol(base, target string) string {
	return strings.ToUpper(base) + strings.ToUpper(target) + "=X"
}
