// Package server provides the HTTP server and routing.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/folio-labs/folio/internal/clients/budget"
	"github.com/folio-labs/folio/internal/config"
	"github.com/folio-labs/folio/internal/database"
	"github.com/folio-labs/folio/internal/marketdata"
	marketdatahandlers "github.com/folio-labs/folio/internal/marketdata/handlers"
	"github.com/folio-labs/folio/internal/modules/holdings"
	holdingshandlers "github.com/folio-labs/folio/internal/modules/holdings/handlers"
	"github.com/folio-labs/folio/internal/modules/importer"
	importerhandlers "github.com/folio-labs/folio/internal/modules/importer/handlers"
	"github.com/folio-labs/folio/internal/modules/ledger"
	ledgerhandlers "github.com/folio-labs/folio/internal/modules/ledger/handlers"
	"github.com/folio-labs/folio/internal/modules/portfolio"
	portfoliohandlers "github.com/folio-labs/folio/internal/modules/portfolio/handlers"
)

// Config holds everything the server needs to route requests.
type Config struct {
	Log             zerolog.Logger
	Cfg             *config.Config
	PortfolioDB     *database.DB
	MarketDataDB    *database.DB
	PortfolioRepo   *portfolio.Repository
	HoldingRepo     *holdings.Repository
	HoldingsService *holdings.Service
	LedgerService   *ledger.Service
	ImporterService *importer.Service
	MarketData      *marketdata.Service
	BudgetClient    *budget.Client
}

// Server is the HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	health *healthHandler
}

// New creates a new HTTP server with all module routes registered.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		health: newHealthHandler(cfg.PortfolioDB, cfg.MarketDataDB, cfg.Log),
	}

	s.setupMiddleware(cfg.Cfg.DevMode)
	s.setupRoutes(cfg)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Router exposes the chi router, mainly for tests.
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes(cfg Config) {
	s.router.Get("/health", s.health.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/system/health", s.health.HandleHealth)
		portfoliohandlers.NewHandler(cfg.PortfolioRepo, cfg.HoldingsService, cfg.Log).RegisterRoutes(r)
		holdingshandlers.NewHandler(cfg.HoldingRepo, cfg.HoldingsService, cfg.Log).RegisterRoutes(r)
		ledgerhandlers.NewHandler(cfg.LedgerService, cfg.Log).RegisterRoutes(r)
		importerhandlers.NewHandler(cfg.ImporterService, cfg.Log).RegisterRoutes(r)
		marketdatahandlers.NewHandler(cfg.MarketData, cfg.BudgetClient, cfg.Log).RegisterRoutes(r)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
