package risk

import (
	"github.com/shopspring/decimal"

	"github.com/danya2271/LocalLLMTradingBot/internal/core"
)

// ComputeATR returns the simple moving average of the true range over at most
// window intervals, walking back from the latest candle. Candles are expected
// oldest-first. With fewer than two candles there is no true range and the
// result is zero; the calculator treats a zero ATR as a skip, never as a
// divisor.
func ComputeATR(candles []core.Candle, window int) decimal.Decimal {
	if window <= 0 || len(candles) < 2 {
		return decimal.Zero
	}

	trSum := decimal.Zero
	count := 0
	for i := len(candles) - 1; i > 0 && count < window; i-- {
		cur := candles[i]
		prevClose := candles[i-1].Close

		tr := cur.High.Sub(cur.Low)
		if hc := cur.High.Sub(prevClose).Abs(); hc.GreaterThan(tr) {
			tr = hc
		}
		if lc := cur.Low.Sub(prevClose).Abs(); lc.GreaterThan(tr) {
			tr = lc
		}

		trSum = trSum.Add(tr)
		count++
	}

	return trSum.Div(decimal.NewFromInt(int64(count)))
}
