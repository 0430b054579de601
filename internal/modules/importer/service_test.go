package importer

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio-labs/folio/internal/domain"
	"github.com/folio-labs/folio/internal/modules/holdings"
	"github.com/folio-labs/folio/internal/modules/ledger"
	"github.com/folio-labs/folio/internal/modules/portfolio"
	testdb "github.com/folio-labs/folio/internal/testing"
)

func newImporter(t *testing.T) (*Service, *holdings.Repository, domain.Portfolio, func()) {
	t.Helper()

	db, cleanup := testdb.NewTestDB(t, "portfolio")
	log := zerolog.Nop()

	portfolioRepo := portfolio.NewRepository(db.Conn())
	holdingRepo := holdings.NewRepository(db.Conn())
	ledgerRepo := ledger.NewRepository(db.Conn())
	locks := holdings.NewLocks()

	holdingsService := holdings.NewService(holdingRepo, ledgerRepo, portfolioRepo, nil, nil, locks, log)
	ledgerService := ledger.NewService(ledgerRepo, holdingsService, holdingRepo, portfolioRepo, log)

	p, err := portfolioRepo.Create("Main", "", "USD")
	require.NoError(t, err)

	return NewService(ledgerService, log), holdingRepo, p, cleanup
}

func importDay(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestImportCountsAcceptedDuplicatesRejected(t *testing.T) {
	svc, holdingRepo, p, cleanup := newImporter(t)
	defer cleanup()

	rows := []domain.ImportRow{
		{Date: importDay("2025-01-02"), Ticker: "AAPL", Type: domain.TransactionBuy, Quantity: 10, Price: 100},
		// Same ticker/date/quantity/price as the first row: a duplicate even
		// though the first row was accepted moments earlier.
		{Date: importDay("2025-01-02"), Ticker: "AAPL", Type: domain.TransactionBuy, Quantity: 10, Price: 100},
		// Sells more than held: rejected, counted, does not block later rows.
		{Date: importDay("2025-01-03"), Ticker: "AAPL", Type: domain.TransactionSell, Quantity: 99, Price: 120},
		{Date: importDay("2025-01-04"), Ticker: "MSFT", Type: domain.TransactionBuy, Quantity: 5, Price: 300},
	}

	result, err := svc.Import(p.ID, rows)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Accepted)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 1, result.Rejected)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, 3, result.Errors[0].Row)
	assert.Equal(t, "AAPL", result.Errors[0].Ticker)

	// Both holdings exist with the accepted quantities.
	aapl, err := holdingRepo.GetByTicker(p.ID, "AAPL")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, aapl.CurrentQuantity, 1e-9)

	msft, err := holdingRepo.GetByTicker(p.ID, "MSFT")
	require.NoError(t, err)
	assert.InDelta(t, 5.0, msft.CurrentQuantity, 1e-9)
}

func TestImportReRunIsIdempotent(t *testing.T) {
	svc, _, p, cleanup := newImporter(t)
	defer cleanup()

	rows := []domain.ImportRow{
		{Date: importDay("2025-01-02"), Ticker: "AAPL", Type: domain.TransactionBuy, Quantity: 10, Price: 100},
		{Date: importDay("2025-01-03"), Ticker: "AAPL", Type: domain.TransactionBuy, Quantity: 4, Price: 110},
	}

	first, err := svc.Import(p.ID, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Accepted)

	second, err := svc.Import(p.ID, rows)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Accepted)
	assert.Equal(t, 2, second.Duplicates)
}

func TestImportInvalidRowReported(t *testing.T) {
	svc, _, p, cleanup := newImporter(t)
	defer cleanup()

	result, err := svc.Import(p.ID, []domain.ImportRow{
		{Date: importDay("2025-01-02"), Ticker: "AAPL", Type: "transfer", Quantity: 1, Price: 10},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Rejected)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Reason, "type")
}

func TestImportRequiresPortfolioID(t *testing.T) {
	svc, _, _, cleanup := newImporter(t)
	defer cleanup()

	_, err := svc.Import("", nil)

	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestImportDefaultsExchangeRate(t *testing.T) {
	svc, holdingRepo, p, cleanup := newImporter(t)
	defer cleanup()

	result, err := svc.Import(p.ID, []domain.ImportRow{
		{Date: importDay("2025-01-02"), Ticker: "AAPL", Type: domain.TransactionBuy, Quantity: 2, Price: 50},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Accepted)

	h, err := holdingRepo.GetByTicker(p.ID, "AAPL")
	require.NoError(t, err)
	assert.InDelta(t, 50.0, h.AverageCostPerShare, 1e-9)
}
