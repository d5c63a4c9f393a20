package position

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/danya2271/LocalLLMTradingBot/internal/core"
)

func netPosition(avg, mark, upl string) core.Position {
	return core.Position{
		Symbol:        "BTC-USDT",
		PosSide:       "net",
		AvgPrice:      avg,
		MarkPrice:     mark,
		UnrealizedPnL: upl,
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		pos  core.Position
		want Side
	}{
		{"explicit long", core.Position{PosSide: "long"}, SideLong},
		{"explicit short", core.Position{PosSide: "short"}, SideShort},

		{"price up profit -> long", netPosition("100", "110", "5.5"), SideLong},
		{"price up loss -> short", netPosition("100", "110", "-5.5"), SideShort},
		{"price down profit -> short", netPosition("100", "90", "3"), SideShort},
		{"price down loss -> long", netPosition("100", "90", "-3"), SideLong},

		{"no price move", netPosition("100", "100", "0"), SideNeutral},
		{"missing avg price", netPosition("", "110", "5"), SideInsufficientData},
		{"garbage mark price", netPosition("100", "n/a", "5"), SideInsufficientData},
		{"missing pnl", netPosition("100", "110", ""), SideInsufficientData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.pos))
		})
	}
}
