package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/folio-labs/folio/internal/domain"
)

// Provider is the external market data source. It is consumed only by this
// cache; the ledger and aggregator never talk to it directly.
type Provider interface {
	FetchCurrentPrice(ctx context.Context, ticker string) (domain.PriceQuote, error)
	FetchDailyHistory(ctx context.Context, ticker string, start, end time.Time) ([]domain.PriceSample, error)
	FetchCurrentRate(ctx context.Context, base, target string) (domain.RateSample, error)
	FetchRateHistory(ctx context.Context, base, target string, start, end time.Time) ([]domain.RateSample, error)
}

// Options configures the cache service. Zero values fall back to defaults.
type Options struct {
	PriceTTL        time.Duration // price-class entries (current prices, current rates)
	HistoryTTL      time.Duration // history-class entries (daily closes, FX history)
	CallsPerMinute  int           // self-imposed provider call budget
	ProviderTimeout time.Duration // bound on each provider call
	RetryBackoff    time.Duration // wait before the single retry
	Now             func() time.Time
}

// Service is the market data caching proxy. Two TTL classes, stale-serve on
// provider failure, single in-flight fetch per key, and a per-minute call
// budget that opens a circuit toward the provider while still serving cached
// data.
type Service struct {
	provider Provider
	repo     *Repository
	log      zerolog.Logger

	limiter *rate.Limiter
	group   singleflight.Group

	priceTTL   time.Duration
	historyTTL time.Duration
	timeout    time.Duration
	backoff    time.Duration
	now        func() time.Time
}

// NewService creates the cache service with injected TTL and rate-limit
// configuration. No hidden module-level state: construct once at startup.
func NewService(provider Provider, repo *Repository, opts Options, log zerolog.Logger) *Service {
	if opts.PriceTTL <= 0 {
		opts.PriceTTL = 15 * time.Minute
	}
	if opts.HistoryTTL <= 0 {
		opts.HistoryTTL = 24 * time.Hour
	}
	if opts.CallsPerMinute <= 0 {
		opts.CallsPerMinute = 30
	}
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = 10 * time.Second
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 500 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		provider:   provider,
		repo:       repo,
		log:        log.With().Str("service", "marketdata_cache").Logger(),
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.CallsPerMinute)), opts.CallsPerMinute),
		priceTTL:   opts.PriceTTL,
		historyTTL: opts.HistoryTTL,
		timeout:    opts.ProviderTimeout,
		backoff:    opts.RetryBackoff,
		now:        opts.Now,
	}
}

// CurrentPrice returns the current quote for a ticker, fetching from the
// provider at most once per TTL window.
func (s *Service) CurrentPrice(ctx context.Context, ticker string) (domain.PriceQuote, error) {
	raw, err := s.cached(ctx, KindPrice, ticker, "current", s.priceTTL, false,
		func(ctx context.Context) (interface{}, error) {
			return s.provider.FetchCurrentPrice(ctx, ticker)
		})
	if err != nil {
		return domain.PriceQuote{}, err
	}

	var quote domain.PriceQuote
	if err := json.Unmarshal(raw, &quote); err != nil {
		return domain.PriceQuote{}, fmt.Errorf("failed to decode cached price for %s: %w", ticker, err)
	}
	return quote, nil
}

// RefreshPrice bypasses the TTL and forces a provider call. It is still
// subject to the call budget and to stale fallback on failure.
func (s *Service) RefreshPrice(ctx context.Context, ticker string) (domain.PriceQuote, error) {
	raw, err := s.cached(ctx, KindPrice, ticker, "current", s.priceTTL, true,
		func(ctx context.Context) (interface{}, error) {
			return s.provider.FetchCurrentPrice(ctx, ticker)
		})
	if err != nil {
		return domain.PriceQuote{}, err
	}

	var quote domain.PriceQuote
	if err := json.Unmarshal(raw, &quote); err != nil {
		return domain.PriceQuote{}, fmt.Errorf("failed to decode cached price for %s: %w", ticker, err)
	}
	return quote, nil
}

// CurrentRate returns the current exchange rate for a currency pair.
// A successful fetch also appends today's sample to the historical series so
// the currency converter can carry it forward.
func (s *Service) CurrentRate(ctx context.Context, base, target string) (domain.RateSample, error) {
	if base == target {
		return domain.RateSample{Base: base, Target: target, Date: domain.Day(s.now()), Rate: 1}, nil
	}

	pair := base + target
	raw, err := s.cached(ctx, KindRate, pair, "current", s.priceTTL, false,
		func(ctx context.Context) (interface{}, error) {
			sample, err := s.provider.FetchCurrentRate(ctx, base, target)
			if err != nil {
				return nil, err
			}
			if err := s.repo.InsertRateSamples([]domain.RateSample{sample}); err != nil {
				s.log.Warn().Err(err).Str("pair", pair).Msg("Failed to record rate sample")
			}
			return sample, nil
		})
	if err != nil {
		return domain.RateSample{}, err
	}

	var sample domain.RateSample
	if err := json.Unmarshal(raw, &sample); err != nil {
		return domain.RateSample{}, fmt.Errorf("failed to decode cached rate for %s: %w", pair, err)
	}
	return sample, nil
}

// DailyHistory returns daily closes for [start, end]. Fetched series are also
// appended to the immutable price_samples table.
func (s *Service) DailyHistory(ctx context.Context, ticker string, start, end time.Time) ([]domain.PriceSample, error) {
	qualifier := rangeQualifier(start, end)
	raw, err := s.cached(ctx, KindPriceHistory, ticker, qualifier, s.historyTTL, false,
		func(ctx context.Context) (interface{}, error) {
			samples, err := s.provider.FetchDailyHistory(ctx, ticker, start, end)
			if err != nil {
				return nil, err
			}
			if err := s.repo.InsertPriceSamples(samples); err != nil {
				s.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to record price samples")
			}
			return samples, nil
		})
	if err != nil {
		return nil, err
	}

	var samples []domain.PriceSample
	if err := json.Unmarshal(raw, &samples); err != nil {
		return nil, fmt.Errorf("failed to decode cached history for %s: %w", ticker, err)
	}
	return samples, nil
}

// RateHistory returns daily exchange rates for [start, end], appending them
// to the immutable exchange_rate_samples series.
func (s *Service) RateHistory(ctx context.Context, base, target string, start, end time.Time) ([]domain.RateSample, error) {
	pair := base + target
	qualifier := rangeQualifier(start, end)
	raw, err := s.cached(ctx, KindRateHistory, pair, qualifier, s.historyTTL, false,
		func(ctx context.Context) (interface{}, error) {
			samples, err := s.provider.FetchRateHistory(ctx, base, target, start, end)
			if err != nil {
				return nil, err
			}
			if err := s.repo.InsertRateSamples(samples); err != nil {
				s.log.Warn().Err(err).Str("pair", pair).Msg("Failed to record rate samples")
			}
			return samples, nil
		})
	if err != nil {
		return nil, err
	}

	var samples []domain.RateSample
	if err := json.Unmarshal(raw, &samples); err != nil {
		return nil, fmt.Errorf("failed to decode cached rate history for %s: %w", pair, err)
	}
	return samples, nil
}

// cached implements the shared miss path: freshness check, single in-flight
// fetch per key, call budget, bounded provider call with one retry, fresh
// store on success, stale fallback on failure.
func (s *Service) cached(
	ctx context.Context,
	kind, key, qualifier string,
	ttl time.Duration,
	bypassTTL bool,
	fetch func(context.Context) (interface{}, error),
) (json.RawMessage, error) {
	if !bypassTTL {
		fresh, err := s.repo.GetFresh(kind, key, qualifier, s.now())
		if err != nil {
			return nil, err
		}
		if fresh != nil {
			return fresh, nil
		}
	}

	sfKey := kind + "|" + key + "|" + qualifier
	v, err, _ := s.group.Do(sfKey, func() (interface{}, error) {
		if !s.limiter.AllowN(s.now(), 1) {
			if stale, ok := s.stale(kind, key, qualifier); ok {
				s.log.Warn().
					Str("kind", kind).
					Str("key", key).
					Msg("Call budget exhausted, serving stale data")
				return stale, nil
			}
			return nil, domain.ErrProviderRateLimited
		}

		val, err := s.callWithRetry(ctx, fetch)
		if err != nil {
			if stale, ok := s.stale(kind, key, qualifier); ok {
				s.log.Warn().
					Err(err).
					Str("kind", kind).
					Str("key", key).
					Msg("Provider failed, serving stale data")
				return stale, nil
			}
			s.log.Error().
				Err(err).
				Str("kind", kind).
				Str("key", key).
				Msg("Provider failed with nothing cached")
			return nil, &domain.DataUnavailableError{Kind: kind, Key: key}
		}

		raw, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal provider response: %w", err)
		}
		if err := s.repo.Store(kind, key, qualifier, json.RawMessage(raw), ttl, s.now()); err != nil {
			s.log.Warn().Err(err).Str("kind", kind).Str("key", key).Msg("Failed to cache provider response")
		}
		return json.RawMessage(raw), nil
	})
	if err != nil {
		return nil, err
	}

	return v.(json.RawMessage), nil
}

// callWithRetry invokes the provider under a bounded timeout and retries once
// with backoff. No further automatic retry.
func (s *Service) callWithRetry(ctx context.Context, fetch func(context.Context) (interface{}, error)) (interface{}, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	val, err := fetch(cctx)
	cancel()
	if err == nil {
		return val, nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.backoff):
	}

	cctx, cancel = context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return fetch(cctx)
}

// stale retrieves the last known value for a key regardless of expiration.
func (s *Service) stale(kind, key, qualifier string) (json.RawMessage, bool) {
	data, _, err := s.repo.GetAny(kind, key, qualifier)
	if err != nil || data == nil {
		return nil, false
	}
	return data, true
}

func rangeQualifier(start, end time.Time) string {
	return start.Format(dateLayout) + ":" + end.Format(dateLayout)
}
