package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/danya2271/LocalLLMTradingBot/internal/core"
)

func candle(h, l, c float64) core.Candle {
	return core.Candle{
		High:  decimal.NewFromFloat(h),
		Low:   decimal.NewFromFloat(l),
		Close: decimal.NewFromFloat(c),
	}
}

func TestComputeATR(t *testing.T) {
	// Fewer than two candles: no true range
	assert.True(t, ComputeATR(nil, 3).IsZero())
	assert.True(t, ComputeATR([]core.Candle{candle(105, 95, 100)}, 3).IsZero())

	candles := []core.Candle{
		candle(105, 95, 100),  // seed
		candle(110, 100, 105), // TR = max(10, |110-100|, |100-100|) = 10
		candle(105, 95, 100),  // TR = max(10, 0, 10) = 10
		candle(120, 80, 110),  // TR = max(40, 20, 20) = 40
	}

	// Window 3 covers the three most recent intervals: (40+10+10)/3 = 20
	assert.Equal(t, "20", ComputeATR(candles, 3).String())

	// Window 1 takes only the latest interval
	assert.Equal(t, "40", ComputeATR(candles, 1).String())

	// Window larger than available intervals averages what exists
	assert.Equal(t, "20", ComputeATR(candles, 50).String())
}
