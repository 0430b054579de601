// Package holdings derives current quantity, average cost and gain/loss for
// holdings and portfolios from the ordered transaction history.
package holdings

import "github.com/folio-labs/folio/internal/domain"

// quantityEpsilon absorbs float drift when a holding is sold down to zero.
const quantityEpsilon = 1e-9

// TransactionMetric is the per-transaction output of an aggregation walk:
// the transaction's own cost basis (buys) or the running average it realized
// against plus the realized gain/loss (sells).
type TransactionMetric struct {
	TransactionID        string
	AvgCostAtTransaction float64
	RealizedGainLoss     float64
}

// Aggregation is the derived state of a holding after walking its full
// transaction history in order.
type Aggregation struct {
	Quantity            float64
	TotalCostBasis      float64
	AverageCostPerShare float64
	RealizedGainLoss    float64
	// AvgPurchaseRate is the quantity-weighted holding-to-portfolio exchange
	// rate of the open position, used to isolate FX gain from price gain.
	AvgPurchaseRate float64
	Metrics         []TransactionMetric
}

// Aggregate walks transactions (already ordered by date, ties broken by
// insertion order) maintaining running quantity and cost basis in the
// stock's native currency.
//
// Buys add quantity*price plus the commission converted into the stock's
// currency. Sells reduce quantity and cost basis at the running average;
// they never change the average itself, they realize gain/loss against it.
// A fully sold holding retains no cost basis.
func Aggregate(txns []domain.Transaction) Aggregation {
	var qty, basis, rateBasis, realized float64
	metrics := make([]TransactionMetric, 0, len(txns))

	for _, t := range txns {
		commission := t.Commission * t.ExchangeRate

		switch t.Type {
		case domain.TransactionBuy:
			costAdded := t.Quantity*t.Price + commission
			basis += costAdded
			rateBasis += t.Quantity * t.ExchangeRate
			qty += t.Quantity

			metrics = append(metrics, TransactionMetric{
				TransactionID:        t.ID,
				AvgCostAtTransaction: costAdded / t.Quantity,
			})

		case domain.TransactionSell:
			runningAvg := 0.0
			avgRate := 0.0
			if qty > 0 {
				runningAvg = basis / qty
				avgRate = rateBasis / qty
			}

			gain := (t.Price-runningAvg)*t.Quantity - commission
			realized += gain

			basis -= runningAvg * t.Quantity
			rateBasis -= avgRate * t.Quantity
			qty -= t.Quantity

			metrics = append(metrics, TransactionMetric{
				TransactionID:        t.ID,
				AvgCostAtTransaction: runningAvg,
				RealizedGainLoss:     gain,
			})
		}
	}

	if qty <= quantityEpsilon {
		qty = 0
		basis = 0
		rateBasis = 0
	}

	agg := Aggregation{
		Quantity:         qty,
		TotalCostBasis:   basis,
		RealizedGainLoss: realized,
		Metrics:          metrics,
	}
	if qty > 0 {
		agg.AverageCostPerShare = basis / qty
		agg.AvgPurchaseRate = rateBasis / qty
	}
	return agg
}
