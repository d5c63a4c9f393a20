package directive

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_TradeForms(t *testing.T) {
	d := Parse("BUY[111535][0.00006382][BTC-USDT]")
	buy, ok := d.(Buy)
	require.True(t, ok, "expected Buy, got %T", d)
	assert.True(t, buy.Price.Equal(decimal.RequireFromString("111535")))
	assert.True(t, buy.Quantity.Equal(decimal.RequireFromString("0.00006382")))
	assert.Equal(t, "BTC-USDT", buy.Pair)

	d = Parse("SELL[101.5][0.25][ETH-USDT]")
	sell, ok := d.(Sell)
	require.True(t, ok)
	assert.True(t, sell.Price.Equal(decimal.RequireFromString("101.5")))
	assert.Equal(t, "ETH-USDT", sell.Pair)

	// Pair-less form: pair comes from caller context
	d = Parse("BUY[100][1]")
	buy, ok = d.(Buy)
	require.True(t, ok)
	assert.Empty(t, buy.Pair)
}

func TestParse_BracketForms(t *testing.T) {
	d := Parse("LONG_TP_SL[100][110][95][0.5]")
	long, ok := d.(OpenLong)
	require.True(t, ok)
	assert.True(t, long.Entry.Equal(decimal.NewFromInt(100)))
	assert.True(t, long.TakeProfit.Equal(decimal.NewFromInt(110)))
	assert.True(t, long.StopLoss.Equal(decimal.NewFromInt(95)))
	assert.True(t, long.Quantity.Equal(decimal.RequireFromString("0.5")))

	d = Parse("SHORT_TP_SL[100][90][105][0.5]")
	short, ok := d.(OpenShort)
	require.True(t, ok)
	assert.True(t, short.TakeProfit.Equal(decimal.NewFromInt(90)))
	assert.True(t, short.StopLoss.Equal(decimal.NewFromInt(105)))
}

func TestParse_BareSideWords(t *testing.T) {
	// Single-decision form: a side word with no parameters
	assert.Equal(t, EnterLong{}, Parse("BUY"))
	assert.Equal(t, EnterShort{}, Parse("SELL"))
	assert.Equal(t, EnterLong{}, Parse("  buy "))

	// Bare WAIT defers to the configured default pause
	assert.Equal(t, Wait{Seconds: 0}, Parse("WAIT"))

	assert.Equal(t, "BUY", EnterLong{}.String())
	assert.Equal(t, "SELL", EnterShort{}.String())
}

func TestParse_ControlForms(t *testing.T) {
	assert.Equal(t, Cancel{ID: "123456789"}, Parse("CANCEL[123456789]"))
	assert.Equal(t, Cancel{ID: "987", Pair: "BTC-USDT"}, Parse("CANCEL[987][BTC-USDT]"))
	assert.Equal(t, Wait{Seconds: 900}, Parse("WAIT[900]"))
	assert.Equal(t, Wait{Seconds: 0}, Parse("WAIT[0]"))
	assert.Equal(t, CloseAll{}, Parse("CLOSE_ALL"))
	assert.Equal(t, Hold{}, Parse("HOLD"))
}

func TestParse_NormalizesCaseAndWhitespace(t *testing.T) {
	assert.Equal(t, Hold{}, Parse("  hold \n"))
	d := Parse("buy[100][1][btc-usdt]")
	buy, ok := d.(Buy)
	require.True(t, ok)
	assert.Equal(t, "BTC-USDT", buy.Pair)
}

func TestParse_Failures(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		reason Reason
	}{
		{"free text", "I think we should buy some bitcoin", ReasonNoGrammarMatch},
		{"missing bracket", "BUY[100][1", ReasonNoGrammarMatch},
		{"empty", "", ReasonNoGrammarMatch},
		{"negative wait", "WAIT[-5]", ReasonNoGrammarMatch},
		// Pattern matches but the number does not parse
		{"double dot price", "BUY[1.2.3][1][BTC-USDT]", ReasonInvalidNumberFormat},
		{"dot only qty", "SELL[100][.][BTC-USDT]", ReasonInvalidNumberFormat},
		{"double dot entry", "LONG_TP_SL[1..0][110][95][1]", ReasonInvalidNumberFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Parse(tt.input)
			unknown, ok := d.(Unknown)
			require.True(t, ok, "expected Unknown, got %T", d)
			assert.Equal(t, tt.reason, unknown.Reason)
			assert.Equal(t, tt.input, unknown.RawText)
		})
	}
}

func TestParse_Deterministic(t *testing.T) {
	inputs := []string{"BUY[100][1][BTC-USDT]", "garbage", "WAIT[60]", "BUY[1.2.3][1][X-USDT]"}
	for _, in := range inputs {
		assert.Equal(t, Parse(in), Parse(in), "parse of %q must be stable", in)
	}
}

func TestParseAll_PreservesOrderAndIsolation(t *testing.T) {
	out := ParseAll([]string{"WAIT[900]", "nonsense", "HOLD"})
	require.Len(t, out, 3)
	assert.Equal(t, KindWait, out[0].Kind())
	assert.Equal(t, KindUnknown, out[1].Kind())
	assert.Equal(t, KindHold, out[2].Kind())
}
