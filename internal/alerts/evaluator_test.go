package alerts

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockwatch/internal/domain"
	"stockwatch/internal/events"
	"stockwatch/internal/modules/portfolio"
)

type fakeCloser struct {
	calls []closeCall
}

type closeCall struct {
	userID    string
	symbol    string
	exitPrice float64
	flag      portfolio.CloseFlag
}

func (f *fakeCloser) CloseAllOpen(userID, symbol string, exitPrice float64, flag portfolio.CloseFlag) (int64, error) {
	f.calls = append(f.calls, closeCall{userID, symbol, exitPrice, flag})
	return 2, nil
}

func newTestEvaluator(closer PositionCloser) *Evaluator {
	log := zerolog.Nop()
	return NewEvaluator(closer, Thresholds{Profit: 5, Loss: 5, BuyDown: -2}, events.NewManager(log), log)
}

func openLots(flags ...struct{ stoploss, profit bool }) []domain.PositionLot {
	lots := []domain.PositionLot{
		{EntryPrice: 100, Quantity: 10, Status: domain.LotOpen},
		{EntryPrice: 110, Quantity: 10, Status: domain.LotOpen},
	}
	for i, f := range flags {
		if i >= len(lots) {
			break
		}
		lots[i].StoplossAlertSent = f.stoploss
		lots[i].ProfitAlertSent = f.profit
	}
	return lots
}

func snapshot(price float64) *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		Symbol:        "RELIANCE.NS",
		Price:         price,
		SentimentType: domain.SentimentNeutral,
	}
}

func TestEvaluate_StoplossClosesAllLots(t *testing.T) {
	closer := &fakeCloser{}
	e := newTestEvaluator(closer)

	lots := openLots()
	pos := Aggregate(lots)
	require.Equal(t, 105.0, pos.AvgEntryPrice)

	ev, err := e.Evaluate("u1", snapshot(99.75), pos, lots)
	require.NoError(t, err)

	assert.Equal(t, domain.RecommendSell, ev.Recommendation)
	require.NotNil(t, ev.PnLPercent)
	assert.InDelta(t, -5.0, *ev.PnLPercent, 1e-9)
	require.Len(t, closer.calls, 1)
	assert.Equal(t, 99.75, closer.calls[0].exitPrice)
	assert.Equal(t, portfolio.CloseFlagStoploss, closer.calls[0].flag)
	assert.Equal(t, int64(2), ev.ClosedLots)
}

func TestEvaluate_ProfitClosesAllLots(t *testing.T) {
	closer := &fakeCloser{}
	e := newTestEvaluator(closer)

	lots := openLots()
	pos := Aggregate(lots)

	ev, err := e.Evaluate("u1", snapshot(110.25), pos, lots)
	require.NoError(t, err)

	assert.Equal(t, domain.RecommendSell, ev.Recommendation)
	require.NotNil(t, ev.PnLPercent)
	assert.InDelta(t, 5.0, *ev.PnLPercent, 1e-9)
	require.Len(t, closer.calls, 1)
	assert.Equal(t, 110.25, closer.calls[0].exitPrice)
	assert.Equal(t, portfolio.CloseFlagProfit, closer.calls[0].flag)
}

func TestEvaluate_BuyDownBandWithAccumulation(t *testing.T) {
	closer := &fakeCloser{}
	e := newTestEvaluator(closer)

	lots := openLots()
	pos := Aggregate(lots)

	snap := snapshot(104.00)
	snap.SentimentType = domain.SentimentAccumulation

	ev, err := e.Evaluate("u1", snap, pos, lots)
	require.NoError(t, err)

	assert.Equal(t, domain.RecommendBuyMore, ev.Recommendation)
	assert.Empty(t, closer.calls)
	assert.Zero(t, ev.ClosedLots)
}

func TestEvaluate_MinorLossWithoutAccumulationHolds(t *testing.T) {
	closer := &fakeCloser{}
	e := newTestEvaluator(closer)

	lots := openLots()
	ev, err := e.Evaluate("u1", snapshot(104.00), Aggregate(lots), lots)
	require.NoError(t, err)

	assert.Equal(t, domain.RecommendHold, ev.Recommendation)
	assert.Empty(t, closer.calls)
}

func TestEvaluate_StoplossIdempotentOnceFlagged(t *testing.T) {
	closer := &fakeCloser{}
	e := newTestEvaluator(closer)

	lots := openLots(
		struct{ stoploss, profit bool }{stoploss: true},
		struct{ stoploss, profit bool }{stoploss: true},
	)
	pos := Aggregate(lots)

	// Sustained (and worse) breach must not close or re-price again
	ev, err := e.Evaluate("u1", snapshot(90.00), pos, lots)
	require.NoError(t, err)

	assert.Empty(t, closer.calls)
	assert.Nil(t, ev.ExitPrice)
	assert.Equal(t, domain.RecommendHold, ev.Recommendation)
}

func TestEvaluate_PartialFlagStillCloses(t *testing.T) {
	closer := &fakeCloser{}
	e := newTestEvaluator(closer)

	// Only one lot flagged: the position as a whole has not alerted yet
	lots := openLots(
		struct{ stoploss, profit bool }{stoploss: true},
		struct{ stoploss, profit bool }{},
	)

	_, err := e.Evaluate("u1", snapshot(99.75), Aggregate(lots), lots)
	require.NoError(t, err)
	assert.Len(t, closer.calls, 1)
}

func TestEvaluate_MissingPriceIsMalformed(t *testing.T) {
	e := newTestEvaluator(&fakeCloser{})

	lots := openLots()
	_, err := e.Evaluate("u1", snapshot(0), Aggregate(lots), lots)
	assert.ErrorIs(t, err, domain.ErrMalformedSnapshot)
}

func TestEvaluate_WatchlistOnlyRecommendations(t *testing.T) {
	e := newTestEvaluator(&fakeCloser{})
	band := &domain.EntryBand{Lower: 95, Upper: 100}

	tests := []struct {
		name      string
		sentiment domain.SentimentType
		price     float64
		band      *domain.EntryBand
		want      string
	}{
		{"accumulation inside band", domain.SentimentAccumulation, 98, band, "Buy now (entry zone 95.00 - 100.00)"},
		{"accumulation above band", domain.SentimentAccumulation, 120, band, "Consider buying if price dips near 95.00 - 100.00"},
		{"distribution", domain.SentimentDistribution, 98, band, "Not recommended to buy now"},
		{"hype", domain.SentimentHype, 98, band, "Not recommended to buy now"},
		{"neutral with band", domain.SentimentNeutral, 98, band, "Wait / Monitor (suggested entry 95.00 - 100.00)"},
		{"neutral without band", domain.SentimentNeutral, 98, nil, "Wait / Monitor"},
		{"accumulation without band", domain.SentimentAccumulation, 98, nil, "Wait / Monitor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := snapshot(tt.price)
			snap.SentimentType = tt.sentiment
			snap.SuggestedEntry = tt.band

			ev, err := e.Evaluate("u1", snap, domain.AggregatedPosition{}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(ev.Recommendation))
			assert.Nil(t, ev.PnLPercent)
		})
	}
}
