// Package budget proxies balance lookups against the external budgeting
// service. It follows the same stale-serve and self-imposed rate-limit
// posture as the market data cache.
package budget

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/folio-labs/folio/internal/domain"
	"github.com/folio-labs/folio/internal/marketdata"
)

// Balance is an opaque external account balance.
type Balance struct {
	AccountID string    `json:"account_id"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	AsOf      time.Time `json:"as_of"`
}

// Client fetches balances with caching. cacheRepo is optional; with nil the
// client always goes to the service.
type Client struct {
	baseURL   string
	client    *http.Client
	cacheRepo *marketdata.Repository
	limiter   *rate.Limiter
	ttl       time.Duration
	log       zerolog.Logger
}

// NewClient creates a new budgeting-service client.
func NewClient(baseURL string, cacheRepo *marketdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: 10 * time.Second},
		cacheRepo: cacheRepo,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/10), 10),
		ttl:       15 * time.Minute,
		log:       log.With().Str("client", "budget").Logger(),
	}
}

// GetBalance returns the balance for an account, serving cached data inside
// the TTL and stale data when the service fails or the call budget is spent.
func (c *Client) GetBalance(ctx context.Context, accountID string) (Balance, error) {
	if c.cacheRepo != nil {
		data, err := c.cacheRepo.GetFresh(marketdata.KindBalance, accountID, "current", time.Now())
		if err == nil && data != nil {
			var cached Balance
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	if !c.limiter.Allow() {
		if stale, ok := c.getStale(accountID); ok {
			c.log.Warn().Str("account", accountID).Msg("Call budget exhausted, using stale balance")
			return stale, nil
		}
		return Balance{}, domain.ErrProviderRateLimited
	}

	balance, err := c.fetch(ctx, accountID)
	if err != nil {
		if stale, ok := c.getStale(accountID); ok {
			c.log.Warn().Err(err).Str("account", accountID).Msg("Budget service failed, using stale balance")
			return stale, nil
		}
		return Balance{}, &domain.DataUnavailableError{Kind: marketdata.KindBalance, Key: accountID}
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store(marketdata.KindBalance, accountID, "current", balance, c.ttl, time.Now()); err != nil {
			c.log.Warn().Err(err).Str("account", accountID).Msg("Failed to cache balance")
		}
	}

	return balance, nil
}

func (c *Client) fetch(ctx context.Context, accountID string) (Balance, error) {
	u := fmt.Sprintf("%s/api/accounts/%s/balance", c.baseURL, url.PathEscape(accountID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Balance{}, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Balance{}, fmt.Errorf("balance request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Balance{}, fmt.Errorf("budget service returned status %d", resp.StatusCode)
	}

	var balance Balance
	if err := json.NewDecoder(resp.Body).Decode(&balance); err != nil {
		return Balance{}, fmt.Errorf("failed to parse balance response: %w", err)
	}
	balance.AccountID = accountID
	return balance, nil
}

func (c *Client) getStale(accountID string) (Balance, bool) {
	if c.cacheRepo == nil {
		return Balance{}, false
	}
	data, _, err := c.cacheRepo.GetAny(marketdata.KindBalance, accountID, "current")
	if err != nil || data == nil {
		return Balance{}, false
	}
	var cached Balance
	if err := json.Unmarshal(data, &cached); err != nil {
		return Balance{}, false
	}
	return cached, true
}
