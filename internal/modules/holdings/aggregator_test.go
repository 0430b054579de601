package holdings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio-labs/folio/internal/domain"
)

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func buy(id string, date string, qty, price, commission, rate float64) domain.Transaction {
	return domain.Transaction{
		ID: id, Date: day(date), Type: domain.TransactionBuy,
		Quantity: qty, Price: price, Commission: commission, ExchangeRate: rate,
	}
}

func sell(id string, date string, qty, price, commission, rate float64) domain.Transaction {
	return domain.Transaction{
		ID: id, Date: day(date), Type: domain.TransactionSell,
		Quantity: qty, Price: price, Commission: commission, ExchangeRate: rate,
	}
}

func TestAggregateEmptyHistory(t *testing.T) {
	agg := Aggregate(nil)

	assert.Zero(t, agg.Quantity)
	assert.Zero(t, agg.TotalCostBasis)
	assert.Zero(t, agg.AverageCostPerShare)
	assert.Zero(t, agg.RealizedGainLoss)
	assert.Empty(t, agg.Metrics)
}

func TestAggregateSingleBuyWithCommission(t *testing.T) {
	// 10 shares at 100 with a 5.00 commission already in the stock's currency.
	agg := Aggregate([]domain.Transaction{
		buy("t1", "2025-01-02", 10, 100, 5, 1),
	})

	assert.InDelta(t, 10.0, agg.Quantity, 1e-9)
	assert.InDelta(t, 1005.0, agg.TotalCostBasis, 1e-9)
	assert.InDelta(t, 100.5, agg.AverageCostPerShare, 1e-9)

	require.Len(t, agg.Metrics, 1)
	assert.InDelta(t, 100.5, agg.Metrics[0].AvgCostAtTransaction, 1e-9)
}

func TestAggregateSellRealizesAgainstRunningAverage(t *testing.T) {
	// Buy 10 at 100.5 avg, then sell 4 at 120: realized (120-100.5)*4 = 78.
	agg := Aggregate([]domain.Transaction{
		buy("t1", "2025-01-02", 10, 100, 5, 1),
		sell("t2", "2025-02-01", 4, 120, 0, 1),
	})

	assert.InDelta(t, 6.0, agg.Quantity, 1e-9)
	assert.InDelta(t, 78.0, agg.RealizedGainLoss, 1e-9)
	// Sells never change the average cost.
	assert.InDelta(t, 100.5, agg.AverageCostPerShare, 1e-9)
	assert.InDelta(t, 603.0, agg.TotalCostBasis, 1e-9)

	require.Len(t, agg.Metrics, 2)
	assert.InDelta(t, 100.5, agg.Metrics[1].AvgCostAtTransaction, 1e-9)
	assert.InDelta(t, 78.0, agg.Metrics[1].RealizedGainLoss, 1e-9)
}

func TestAggregateSellCommissionReducesRealizedGain(t *testing.T) {
	agg := Aggregate([]domain.Transaction{
		buy("t1", "2025-01-02", 10, 100, 0, 1),
		sell("t2", "2025-02-01", 5, 110, 7, 1),
	})

	// (110-100)*5 - 7
	assert.InDelta(t, 43.0, agg.RealizedGainLoss, 1e-9)
}

func TestAggregateCommissionConvertedIntoStockCurrency(t *testing.T) {
	// Commission of 10 in the portfolio currency at rate 0.5 adds 5 to the
	// basis in the stock's currency.
	agg := Aggregate([]domain.Transaction{
		buy("t1", "2025-01-02", 10, 100, 10, 0.5),
	})

	assert.InDelta(t, 1005.0, agg.TotalCostBasis, 1e-9)
	assert.InDelta(t, 100.5, agg.AverageCostPerShare, 1e-9)
}

func TestAggregateInterleavedBuysAndSells(t *testing.T) {
	agg := Aggregate([]domain.Transaction{
		buy("t1", "2025-01-02", 10, 100, 0, 1),
		buy("t2", "2025-01-10", 10, 200, 0, 1), // avg now 150
		sell("t3", "2025-01-20", 5, 180, 0, 1), // realized (180-150)*5 = 150
		buy("t4", "2025-02-01", 5, 100, 0, 1),  // basis 2250+500, qty 20
	})

	assert.InDelta(t, 20.0, agg.Quantity, 1e-9)
	assert.InDelta(t, 150.0, agg.RealizedGainLoss, 1e-9)
	assert.InDelta(t, 2750.0, agg.TotalCostBasis, 1e-9)
	assert.InDelta(t, 137.5, agg.AverageCostPerShare, 1e-9)
}

func TestAggregateFullySoldHoldingRetainsNoBasis(t *testing.T) {
	agg := Aggregate([]domain.Transaction{
		buy("t1", "2025-01-02", 3, 100, 0, 1),
		sell("t2", "2025-02-01", 3, 90, 0, 1),
	})

	assert.Zero(t, agg.Quantity)
	assert.Zero(t, agg.TotalCostBasis)
	assert.Zero(t, agg.AverageCostPerShare)
	assert.InDelta(t, -30.0, agg.RealizedGainLoss, 1e-9)
}

func TestAggregateFloatDriftPinnedToZero(t *testing.T) {
	// Three thirds do not sum to exactly 1.0 in floating point.
	agg := Aggregate([]domain.Transaction{
		buy("t1", "2025-01-02", 1, 300, 0, 1),
		sell("t2", "2025-01-10", 1.0/3.0, 100, 0, 1),
		sell("t3", "2025-01-11", 1.0/3.0, 100, 0, 1),
		sell("t4", "2025-01-12", 1.0/3.0+1e-16, 100, 0, 1),
	})

	assert.Zero(t, agg.Quantity)
	assert.Zero(t, agg.TotalCostBasis)
}

func TestAggregateAvgPurchaseRateWeightedByQuantity(t *testing.T) {
	agg := Aggregate([]domain.Transaction{
		buy("t1", "2025-01-02", 10, 100, 0, 10.0),
		buy("t2", "2025-02-02", 30, 100, 0, 11.0),
	})

	// (10*10 + 30*11) / 40
	assert.InDelta(t, 10.75, agg.AvgPurchaseRate, 1e-9)
}

func TestAggregateRebuyAfterFullSellStartsFresh(t *testing.T) {
	agg := Aggregate([]domain.Transaction{
		buy("t1", "2025-01-02", 10, 50, 0, 1),
		sell("t2", "2025-02-01", 10, 60, 0, 1),
		buy("t3", "2025-03-01", 4, 200, 0, 1),
	})

	assert.InDelta(t, 4.0, agg.Quantity, 1e-9)
	assert.InDelta(t, 200.0, agg.AverageCostPerShare, 1e-9)
	assert.InDelta(t, 100.0, agg.RealizedGainLoss, 1e-9)
}
