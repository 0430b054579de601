// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	DataDir      string // Base directory for the SQLite databases
	Port         int
	LogLevel     string
	DevMode      bool
	BaseCurrency string // Display currency for portfolio summaries

	// Market data provider
	ProviderBaseURL  string
	BudgetServiceURL string
	ProviderTimeout  time.Duration

	// Cache behavior
	PriceTTL          time.Duration // price-class entries (current prices, current rates)
	HistoryTTL        time.Duration // history-class entries (daily closes, FX history)
	ProviderCallLimit int           // self-imposed provider calls per minute
}

// Load reads configuration from environment variables. A .env file is loaded
// first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("FOLIO_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:           absDataDir,
		Port:              getEnvAsInt("FOLIO_PORT", 8080),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DevMode:           getEnvAsBool("DEV_MODE", false),
		BaseCurrency:      getEnv("BASE_CURRENCY", "USD"),
		ProviderBaseURL:   getEnv("PROVIDER_BASE_URL", "https://query1.finance.yahoo.com"),
		BudgetServiceURL:  getEnv("BUDGET_SERVICE_URL", ""),
		ProviderTimeout:   getEnvAsDuration("PROVIDER_TIMEOUT", 10*time.Second),
		PriceTTL:          getEnvAsDuration("PRICE_CACHE_TTL", 15*time.Minute),
		HistoryTTL:        getEnvAsDuration("HISTORY_CACHE_TTL", 24*time.Hour),
		ProviderCallLimit: getEnvAsInt("PROVIDER_CALLS_PER_MINUTE", 30),
	}

	if cfg.ProviderCallLimit <= 0 {
		return nil, fmt.Errorf("PROVIDER_CALLS_PER_MINUTE must be positive, got %d", cfg.ProviderCallLimit)
	}

	return cfg, nil
}

// PortfolioDBPath returns the path for the ledger/holdings database.
func (c *Config) PortfolioDBPath() string {
	return filepath.Join(c.DataDir, "portfolio.db")
}

// MarketDataDBPath returns the path for the market data cache database.
func (c *Config) MarketDataDBPath() string {
	return filepath.Join(c.DataDir, "marketdata.db")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
