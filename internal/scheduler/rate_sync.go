package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/folio-labs/folio/internal/domain"
)

// PairSource lists the currency pairs in active use.
type PairSource interface {
	ListCurrencyPairs() ([][2]string, error)
}

// RateFetcher is the market data lookup used to record daily exchange rates.
type RateFetcher interface {
	CurrentRate(ctx context.Context, base, target string) (domain.RateSample, error)
}

// RateSyncJob records today's exchange rate for every currency pair in use.
// The converter carries rates forward over gaps, so one sample per trading
// day is enough to keep historical conversion working.
type RateSyncJob struct {
	pairs   PairSource
	market  RateFetcher
	timeout time.Duration
	log     zerolog.Logger
}

// NewRateSyncJob creates a new rate sync job.
func NewRateSyncJob(pairs PairSource, market RateFetcher, log zerolog.Logger) *RateSyncJob {
	return &RateSyncJob{
		pairs:   pairs,
		market:  market,
		timeout: 2 * time.Minute,
		log:     log.With().Str("job", "rate_sync").Logger(),
	}
}

// Name returns the job name.
func (j *RateSyncJob) Name() string {
	return "rate_sync"
}

// Run fetches the current rate for each active pair, which also appends
// today's sample to the rate history.
func (j *RateSyncJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	pairs, err := j.pairs.ListCurrencyPairs()
	if err != nil {
		return err
	}

	synced := 0
	for _, pair := range pairs {
		if _, err := j.market.CurrentRate(ctx, pair[0], pair[1]); err != nil {
			j.log.Warn().Err(err).
				Str("base", pair[0]).
				Str("target", pair[1]).
				Msg("Failed to sync rate")
			continue
		}
		synced++
	}

	if len(pairs) > 0 {
		j.log.Info().Int("synced", synced).Int("total", len(pairs)).Msg("Exchange rates synced")
	}

	return nil
}
