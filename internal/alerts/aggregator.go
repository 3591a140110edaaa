// Package alerts implements the sweep pipeline: position aggregation,
// threshold evaluation with idempotent auto-close, change detection, and the
// orchestrator that runs the pipeline per subscribed user and symbol.
package alerts

import "stockwatch/internal/domain"

// Aggregate collapses a user's open lots for one symbol into a single
// position. The blended entry price is quantity-weighted so larger lots
// dominate, approximating realized cost basis. Closed lots are ignored;
// no open lots yields the zero position.
func Aggregate(lots []domain.PositionLot) domain.AggregatedPosition {
	var qty, weighted float64
	for _, lot := range lots {
		if lot.Status != domain.LotOpen {
			continue
		}
		qty += lot.Quantity
		weighted += lot.EntryPrice * lot.Quantity
	}
	if qty <= 0 {
		return domain.AggregatedPosition{}
	}
	return domain.AggregatedPosition{
		TotalQuantity: qty,
		AvgEntryPrice: weighted / qty,
	}
}
