package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/folio-labs/folio/internal/domain"
)

// TickerSource lists the tickers of open positions.
type TickerSource interface {
	ListActiveTickers() ([]string, error)
}

// PriceFetcher is the market data lookup used to keep the price cache warm.
type PriceFetcher interface {
	CurrentPrice(ctx context.Context, ticker string) (domain.PriceQuote, error)
}

// PriceWarmJob keeps current prices for all open positions cached so
// interactive valuation requests rarely hit the provider. It goes through the
// normal cache path, so fresh entries cost nothing and the provider call
// budget still applies.
type PriceWarmJob struct {
	tickers TickerSource
	market  PriceFetcher
	timeout time.Duration
	log     zerolog.Logger
}

// NewPriceWarmJob creates a new price warm job.
func NewPriceWarmJob(tickers TickerSource, market PriceFetcher, log zerolog.Logger) *PriceWarmJob {
	return &PriceWarmJob{
		tickers: tickers,
		market:  market,
		timeout: 2 * time.Minute,
		log:     log.With().Str("job", "price_warm").Logger(),
	}
}

// Name returns the job name.
func (j *PriceWarmJob) Name() string {
	return "price_warm"
}

// Run fetches the current price for every open position. Individual failures
// are logged and skipped.
func (j *PriceWarmJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	tickers, err := j.tickers.ListActiveTickers()
	if err != nil {
		return err
	}

	warmed := 0
	for _, ticker := range tickers {
		if _, err := j.market.CurrentPrice(ctx, ticker); err != nil {
			j.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to warm price")
			continue
		}
		warmed++
	}

	if len(tickers) > 0 {
		j.log.Info().Int("warmed", warmed).Int("total", len(tickers)).Msg("Price cache warmed")
	}

	return nil
}
