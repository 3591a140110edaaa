package alerts

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"stockwatch/internal/domain"
	"stockwatch/internal/events"
	"stockwatch/internal/modules/portfolio"
)

// PositionCloser atomically closes every open lot of a user+symbol
type PositionCloser interface {
	CloseAllOpen(userID, symbol string, exitPrice float64, flag portfolio.CloseFlag) (int64, error)
}

// Thresholds are the P/L trigger levels, in percent. Loss is a positive
// magnitude compared against negative P/L; BuyDown is negative.
type Thresholds struct {
	Profit  float64
	Loss    float64
	BuyDown float64
}

// Evaluation is the outcome of one threshold pass for a user+symbol
type Evaluation struct {
	Recommendation domain.Recommendation
	PnLPercent     *float64 // nil for watchlist-only symbols
	ClosedLots     int64
	ExitPrice      *float64
	CloseFlag      portfolio.CloseFlag
}

// Evaluator computes P/L against the aggregated position and fires the
// idempotent auto-close when a threshold is breached.
type Evaluator struct {
	closer PositionCloser
	th     Thresholds
	events *events.Manager
	log    zerolog.Logger
}

func NewEvaluator(closer PositionCloser, th Thresholds, ev *events.Manager, log zerolog.Logger) *Evaluator {
	return &Evaluator{
		closer: closer,
		th:     th,
		events: ev,
		log:    log.With().Str("component", "evaluator").Logger(),
	}
}

// Evaluate runs one threshold pass. The one-way lot flags guard the close
// actions: a sustained threshold-breaching price across repeated sweeps
// closes and alerts exactly once.
func (e *Evaluator) Evaluate(userID string, snap *domain.MarketSnapshot, pos domain.AggregatedPosition, lots []domain.PositionLot) (Evaluation, error) {
	if snap == nil || snap.Price <= 0 {
		return Evaluation{}, fmt.Errorf("%w: missing price for evaluation", domain.ErrMalformedSnapshot)
	}

	if !pos.HasOpenPosition() {
		return Evaluation{Recommendation: watchRecommendation(snap)}, nil
	}

	pnl := (snap.Price - pos.AvgEntryPrice) / pos.AvgEntryPrice * 100
	ev := Evaluation{PnLPercent: &pnl, Recommendation: domain.RecommendHold}

	stoplossSent := allFlagged(lots, func(l domain.PositionLot) bool { return l.StoplossAlertSent })
	profitSent := allFlagged(lots, func(l domain.PositionLot) bool { return l.ProfitAlertSent })

	switch {
	case pnl <= -e.th.Loss && !stoplossSent:
		exit := round2(pos.AvgEntryPrice * (1 - e.th.Loss/100))
		closed, err := e.closer.CloseAllOpen(userID, snap.Symbol, exit, portfolio.CloseFlagStoploss)
		if err != nil {
			return Evaluation{}, fmt.Errorf("stoploss close for %s: %w", snap.Symbol, err)
		}
		ev.Recommendation = domain.RecommendSell
		ev.ClosedLots = closed
		ev.ExitPrice = &exit
		ev.CloseFlag = portfolio.CloseFlagStoploss
		e.emitClose(userID, snap.Symbol, "stoploss", exit, closed, pnl)

	case pnl >= e.th.Profit && !profitSent:
		exit := round2(pos.AvgEntryPrice * (1 + e.th.Profit/100))
		closed, err := e.closer.CloseAllOpen(userID, snap.Symbol, exit, portfolio.CloseFlagProfit)
		if err != nil {
			return Evaluation{}, fmt.Errorf("profit close for %s: %w", snap.Symbol, err)
		}
		ev.Recommendation = domain.RecommendSell
		ev.ClosedLots = closed
		ev.ExitPrice = &exit
		ev.CloseFlag = portfolio.CloseFlagProfit
		e.emitClose(userID, snap.Symbol, "profit", exit, closed, pnl)

	case e.th.BuyDown < pnl && pnl < 0 && snap.SentimentType == domain.SentimentAccumulation:
		ev.Recommendation = domain.RecommendBuyMore
	}

	return ev, nil
}

func (e *Evaluator) emitClose(userID, symbol, trigger string, exit float64, closed int64, pnl float64) {
	e.log.Info().
		Str("user_id", userID).
		Str("symbol", symbol).
		Str("trigger", trigger).
		Float64("exit_price", exit).
		Float64("pnl_percent", pnl).
		Int64("lots_closed", closed).
		Msg("Position auto-closed")
	e.events.Emit(events.PositionClosed, "alerts", map[string]interface{}{
		"user_id":     userID,
		"symbol":      symbol,
		"trigger":     trigger,
		"exit_price":  exit,
		"lots_closed": closed,
	})
}

// watchRecommendation handles symbols tracked without an open position, where
// only sentiment and the suggested entry band inform the advice.
func watchRecommendation(snap *domain.MarketSnapshot) domain.Recommendation {
	band := snap.SuggestedEntry

	switch snap.SentimentType {
	case domain.SentimentAccumulation:
		if band != nil {
			if snap.Price <= band.Upper {
				return domain.Recommendation(fmt.Sprintf("Buy now (entry zone %.2f - %.2f)", band.Lower, band.Upper))
			}
			return domain.Recommendation(fmt.Sprintf("Consider buying if price dips near %.2f - %.2f", band.Lower, band.Upper))
		}
	case domain.SentimentDistribution, domain.SentimentHype:
		return "Not recommended to buy now"
	}

	if band != nil {
		return domain.Recommendation(fmt.Sprintf("Wait / Monitor (suggested entry %.2f - %.2f)", band.Lower, band.Upper))
	}
	return "Wait / Monitor"
}

func allFlagged(lots []domain.PositionLot, flag func(domain.PositionLot) bool) bool {
	open := 0
	for _, l := range lots {
		if l.Status != domain.LotOpen {
			continue
		}
		open++
		if !flag(l) {
			return false
		}
	}
	return open > 0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
