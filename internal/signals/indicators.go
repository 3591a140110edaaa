// Package signals computes local technical indicators from a snapshot's
// recent close series. Everything here is best-effort enrichment: when the
// oracle supplies no series, or too short a one, the result is simply absent
// and the alert pipeline proceeds without it.
package signals

import (
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

const (
	emaFastPeriod = 20
	emaSlowPeriod = 50
	rsiPeriod     = 14

	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
)

// Indicators is a computed technical readout for one symbol
type Indicators struct {
	EMA20         float64 `json:"ema20"`
	EMA50         float64 `json:"ema50"`
	RSI           float64 `json:"rsi"`
	MACD          float64 `json:"macd"`
	MACDSignal    float64 `json:"macd_signal"`
	MACDHistogram float64 `json:"macd_histogram"`
	Volatility    float64 `json:"volatility"` // Stddev of simple returns, percent
}

// Compute derives indicators from a close-price series, oldest first.
// Returns nil when the series is too short for the slowest indicator.
func Compute(closes []float64) *Indicators {
	if len(closes) < emaSlowPeriod {
		return nil
	}

	ema20 := talib.Ema(closes, emaFastPeriod)
	ema50 := talib.Ema(closes, emaSlowPeriod)
	rsi := talib.Rsi(closes, rsiPeriod)
	macd, signal, hist := talib.Macd(closes, macdFast, macdSlow, macdSignal)

	ind := &Indicators{
		EMA20:         round4(last(ema20)),
		EMA50:         round4(last(ema50)),
		RSI:           round4(last(rsi)),
		MACD:          round4(last(macd)),
		MACDSignal:    round4(last(signal)),
		MACDHistogram: round4(last(hist)),
		Volatility:    round4(volatility(closes)),
	}
	return ind
}

// volatility is the standard deviation of simple returns, in percent
func volatility(closes []float64) float64 {
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, (closes[i]-closes[i-1])/closes[i-1]*100)
	}
	if len(returns) < 2 {
		return 0
	}
	return stat.StdDev(returns, nil)
}

func last(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	v := values[len(values)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
