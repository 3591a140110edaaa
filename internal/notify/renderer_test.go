package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stockwatch/internal/domain"
)

func renderSnapshot() *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		Symbol:        "RELIANCE.NS",
		Price:         2500.50,
		Low:           2480,
		High:          2520,
		Volume:        1000000,
		AvgVolume:     900000,
		ChangePercent: 1.25,
		Sentiment:     62,
		SentimentType: domain.SentimentAccumulation,
	}
}

func TestRender_PortfolioMode(t *testing.T) {
	pnl := -2.5
	n := Render(RenderInput{
		Symbol:   "RELIANCE.NS",
		Source:   domain.SourcePortfolio,
		Snapshot: renderSnapshot(),
		Position: domain.AggregatedPosition{
			TotalQuantity: 20,
			AvgEntryPrice: 2565.12,
		},
		PnLPercent:     &pnl,
		Recommendation: domain.RecommendHold,
		Reasons:        []string{"Price ↑ 1.25%"},
	})

	assert.Contains(t, n.Text, "RELIANCE.NS Update")
	assert.Contains(t, n.Text, "Stock is in portfolio")
	assert.Contains(t, n.Text, "Avg Entry: ₹2565.12")
	assert.Contains(t, n.Text, "Qty: 20")
	assert.Contains(t, n.Text, "P&L: -2.50%")
	assert.Contains(t, n.Text, "Recommendation: Hold")
	assert.Contains(t, n.Text, "Price ↑ 1.25%")
	assert.NotContains(t, n.Text, "watch mode")
}

func TestRender_WatchMode(t *testing.T) {
	snap := renderSnapshot()
	snap.SuggestedEntry = &domain.EntryBand{Lower: 2400, Upper: 2450}

	n := Render(RenderInput{
		Symbol:         "RELIANCE.NS",
		Source:         domain.SourceWatchlist,
		Snapshot:       snap,
		Recommendation: "Wait / Monitor",
		Reasons:        []string{"Initial tracking started"},
	})

	assert.Contains(t, n.Text, "Stock is in watch mode")
	assert.Contains(t, n.Text, "Suggested Entry: ₹2400.00 - ₹2450.00")
	assert.NotContains(t, n.Text, "P&L")
}

func TestRender_ClosureNotice(t *testing.T) {
	exit := 99.75
	pnl := -5.0
	n := Render(RenderInput{
		Symbol:         "TCS.NS",
		Source:         domain.SourcePortfolio,
		Snapshot:       renderSnapshot(),
		Position:       domain.AggregatedPosition{TotalQuantity: 20, AvgEntryPrice: 105},
		PnLPercent:     &pnl,
		Recommendation: domain.RecommendSell,
		Reasons:        []string{"Stop loss alert"},
		ClosedLots:     2,
		ExitPrice:      &exit,
	})

	assert.Contains(t, n.Text, "Position closed: 2 lot(s) at ₹99.75")
}

func TestRender_SummaryCarriesReasons(t *testing.T) {
	n := Render(RenderInput{
		Symbol:         "RELIANCE.NS",
		Source:         domain.SourceWatchlist,
		Snapshot:       renderSnapshot(),
		Recommendation: "Wait / Monitor",
		Reasons:        []string{"Buy signal", "Sentiment → accumulation"},
	})

	assert.Contains(t, n.Summary, "RELIANCE.NS")
	assert.Contains(t, n.Summary, "Buy signal, Sentiment → accumulation")
	assert.Equal(t, []string{"Buy signal", "Sentiment → accumulation"}, n.Reasons)
}

func TestCurrencyFor(t *testing.T) {
	assert.Equal(t, "₹", currencyFor("RELIANCE.NS"))
	assert.Equal(t, "₹", currencyFor("TATASTEEL.BO"))
	assert.Equal(t, "$", currencyFor("AAPL"))
	assert.Equal(t, "$", currencyFor("BRK.A"))
}
