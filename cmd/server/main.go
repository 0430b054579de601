// Folio tracks multi-currency equity holdings: an append-only transaction
// ledger, derived holding valuations and a caching proxy in front of the
// market data provider.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/folio-labs/folio/internal/clients/budget"
	"github.com/folio-labs/folio/internal/clients/yahoo"
	"github.com/folio-labs/folio/internal/config"
	"github.com/folio-labs/folio/internal/database"
	"github.com/folio-labs/folio/internal/marketdata"
	"github.com/folio-labs/folio/internal/modules/currency"
	"github.com/folio-labs/folio/internal/modules/holdings"
	"github.com/folio-labs/folio/internal/modules/importer"
	"github.com/folio-labs/folio/internal/modules/ledger"
	"github.com/folio-labs/folio/internal/modules/portfolio"
	"github.com/folio-labs/folio/internal/scheduler"
	"github.com/folio-labs/folio/internal/server"
	"github.com/folio-labs/folio/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Int("port", cfg.Port).
		Msg("Starting folio")

	portfolioDB := mustOpenDB(log, database.Config{
		Path:    cfg.PortfolioDBPath(),
		Profile: database.ProfileLedger,
		Name:    "portfolio",
	})
	defer portfolioDB.Close()

	marketDataDB := mustOpenDB(log, database.Config{
		Path:    cfg.MarketDataDBPath(),
		Profile: database.ProfileCache,
		Name:    "marketdata",
	})
	defer marketDataDB.Close()

	// Market data stack: provider behind the caching proxy.
	yahooClient := yahoo.NewClient(cfg.ProviderBaseURL, log)
	marketRepo := marketdata.NewRepository(marketDataDB.Conn())
	marketService := marketdata.NewService(yahooClient, marketRepo, marketdata.Options{
		PriceTTL:        cfg.PriceTTL,
		HistoryTTL:      cfg.HistoryTTL,
		CallsPerMinute:  cfg.ProviderCallLimit,
		ProviderTimeout: cfg.ProviderTimeout,
	}, log)

	var budgetClient *budget.Client
	if cfg.BudgetServiceURL != "" {
		budgetClient = budget.NewClient(cfg.BudgetServiceURL, marketRepo, log)
	}

	converter := currency.NewConverter(marketRepo)

	// Ledger and holdings share one per-holding lock registry, so appends and
	// recomputes on the same holding serialize.
	locks := holdings.NewLocks()
	portfolioRepo := portfolio.NewRepository(portfolioDB.Conn())
	holdingRepo := holdings.NewRepository(portfolioDB.Conn())
	ledgerRepo := ledger.NewRepository(portfolioDB.Conn())

	holdingsService := holdings.NewService(holdingRepo, ledgerRepo, portfolioRepo, marketService, converter, locks, log)
	ledgerService := ledger.NewService(ledgerRepo, holdingsService, holdingRepo, portfolioRepo, log)
	importerService := importer.NewService(ledgerService, log)

	// Background jobs.
	sched := scheduler.New(log)
	registerJob(log, sched, "@every 15m", scheduler.NewPriceWarmJob(holdingRepo, marketService, log))
	registerJob(log, sched, "30 18 * * *", scheduler.NewRateSyncJob(holdingRepo, marketService, log))
	registerJob(log, sched, "15 3 * * *", marketdata.NewCleanupJob(marketRepo, log))
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Log:             log,
		Cfg:             cfg,
		PortfolioDB:     portfolioDB,
		MarketDataDB:    marketDataDB,
		PortfolioRepo:   portfolioRepo,
		HoldingRepo:     holdingRepo,
		HoldingsService: holdingsService,
		LedgerService:   ledgerService,
		ImporterService: importerService,
		MarketData:      marketService,
		BudgetClient:    budgetClient,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatal().Err(err).Msg("Server failed")
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

func mustOpenDB(log zerolog.Logger, cfg database.Config) *database.DB {
	db, err := database.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("database", cfg.Name).Msg("Failed to open database")
	}
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Str("database", cfg.Name).Msg("Failed to migrate database")
	}
	return db
}

func registerJob(log zerolog.Logger, sched *scheduler.Scheduler, schedule string, job scheduler.Job) {
	if err := sched.AddJob(schedule, job); err != nil {
		log.Fatal().Err(err).Str("job", job.Name()).Msg("Failed to register job")
	}
}
