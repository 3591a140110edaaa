package alerts

import (
	"fmt"
	"math"

	"stockwatch/internal/domain"
)

// ReasonInitialTracking is emitted the first time a user+symbol is evaluated
const ReasonInitialTracking = "Initial tracking started"

// priceMoveThreshold is the minimum day-change delta, in percentage points,
// considered a material move since the last persisted state.
const priceMoveThreshold = 1.0

// Diff compares a fresh snapshot against the last persisted state and returns
// the list of change reasons. An empty list means nothing material changed
// and no notification should go out. A nil last state always yields the
// initial-tracking reason.
func Diff(snap *domain.MarketSnapshot, last *domain.LastState) []string {
	if last == nil {
		return []string{ReasonInitialTracking}
	}

	var reasons []string

	if last.ChangePercent != nil && math.Abs(snap.ChangePercent-*last.ChangePercent) >= priceMoveThreshold {
		arrow := "↑"
		if snap.ChangePercent < 0 {
			arrow = "↓"
		}
		reasons = append(reasons, fmt.Sprintf("Price %s %.2f%%", arrow, snap.ChangePercent))
	}

	if last.Sentiment != nil && *last.Sentiment != snap.SentimentType {
		reasons = append(reasons, fmt.Sprintf("Sentiment → %s", snap.SentimentType))
	}

	if snap.HasAlert(domain.TagBuySignal) {
		reasons = append(reasons, "Buy signal")
	}
	if snap.HasAlert(domain.TagProfit) {
		reasons = append(reasons, "Profit booking zone")
	}
	if snap.HasAlert(domain.TagLoss) {
		reasons = append(reasons, "Stop loss alert")
	}

	return reasons
}
