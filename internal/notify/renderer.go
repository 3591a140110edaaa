package notify

import (
	"fmt"
	"strings"
	"time"

	"stockwatch/internal/domain"
	"stockwatch/internal/signals"
)

// RenderInput carries everything the text renderer needs for one alert
type RenderInput struct {
	Symbol         string
	Source         domain.NotificationSource
	Snapshot       *domain.MarketSnapshot
	Position       domain.AggregatedPosition
	PnLPercent     *float64
	Recommendation domain.Recommendation
	Reasons        []string
	ClosedLots     int64
	ExitPrice      *float64
	Indicators     *signals.Indicators
}

// currencyFor mirrors the exchange-suffix convention: NSE/BSE symbols are
// rupee-denominated, everything else is treated as USD.
func currencyFor(symbol string) string {
	if strings.HasSuffix(symbol, ".NS") || strings.HasSuffix(symbol, ".BO") {
		return "₹"
	}
	return "$"
}

// Render builds the notification text and short summary for an alert.
// The body is multi-line plain text; clients decide presentation.
func Render(in RenderInput) *domain.Notification {
	snap := in.Snapshot
	cur := currencyFor(in.Symbol)

	var b strings.Builder
	fmt.Fprintf(&b, "📊 %s Update\n", in.Symbol)
	fmt.Fprintf(&b, "💰 Price: %s%.2f", cur, snap.Price)
	if in.Position.HasOpenPosition() {
		fmt.Fprintf(&b, " (Avg Entry: %s%.2f) | Qty: %g", cur, in.Position.AvgEntryPrice, in.Position.TotalQuantity)
		b.WriteString("\n📌 Stock is in portfolio")
	} else {
		b.WriteString("\n📌 Stock is in watch mode")
	}
	fmt.Fprintf(&b, "\n📉 Low / 📈 High: %s%.2f / %s%.2f", cur, snap.Low, cur, snap.High)
	fmt.Fprintf(&b, "\n📊 Volume: %.0f | Avg: %.0f", snap.Volume, snap.AvgVolume)
	fmt.Fprintf(&b, "\n🔻 Change: %.2f%%", snap.ChangePercent)
	fmt.Fprintf(&b, "\n🧠 Sentiment: %.0f (%s)", snap.Sentiment, snap.SentimentType)
	if in.PnLPercent != nil {
		fmt.Fprintf(&b, "\n💹 P&L: %+.2f%%", *in.PnLPercent)
	}
	fmt.Fprintf(&b, "\n⚡ Recommendation: %s", in.Recommendation)
	if snap.SuggestedEntry != nil {
		fmt.Fprintf(&b, "\n💡 Suggested Entry: %s%.2f - %s%.2f",
			cur, snap.SuggestedEntry.Lower, cur, snap.SuggestedEntry.Upper)
	}
	if in.ClosedLots > 0 && in.ExitPrice != nil {
		fmt.Fprintf(&b, "\n🔒 Position closed: %d lot(s) at %s%.2f", in.ClosedLots, cur, *in.ExitPrice)
	}
	if ind := in.Indicators; ind != nil {
		fmt.Fprintf(&b, "\n📐 EMA20/50: %.2f / %.2f | RSI: %.1f | MACD: %.3f",
			ind.EMA20, ind.EMA50, ind.RSI, ind.MACD)
	}
	if len(in.Reasons) > 0 {
		fmt.Fprintf(&b, "\n🔔 %s", strings.Join(in.Reasons, " | "))
	}

	return &domain.Notification{
		Symbol:         in.Symbol,
		Source:         in.Source,
		Text:           b.String(),
		Summary:        summarize(in),
		Recommendation: in.Recommendation,
		Snapshot:       snap,
		Reasons:        in.Reasons,
		Chart:          snap.Chart,
		CreatedAt:      time.Now().UTC(),
	}
}

// summarize produces the one-line digest stored on the watch target row
func summarize(in RenderInput) string {
	cur := currencyFor(in.Symbol)
	s := fmt.Sprintf("%s %s%.2f (%+.2f%%) %s",
		in.Symbol, cur, in.Snapshot.Price, in.Snapshot.ChangePercent, in.Recommendation)
	if len(in.Reasons) > 0 {
		s += ": " + strings.Join(in.Reasons, ", ")
	}
	return s
}
