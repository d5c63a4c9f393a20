// Package position classifies the true direction of ambiguous position
// records. Cross-margin accounting reports a single "net" side; the real
// direction is inferred from how unrealized P&L correlates with price
// movement. This is a best-effort heuristic for status reporting only and
// never feeds order placement.
package position

import (
	"github.com/shopspring/decimal"

	"github.com/danya2271/LocalLLMTradingBot/internal/core"
)

// Side is the resolved direction of a position
type Side string

const (
	SideLong             Side = "LONG"
	SideShort            Side = "SHORT"
	SideNeutral          Side = "NEUTRAL"
	SideInsufficientData Side = "INSUFFICIENT_DATA"
)

// Resolve classifies a raw position record. Exchange-tagged long/short sides
// pass through; "net" positions are classified by sign correlation:
// price above entry with positive P&L is a long, price above entry with
// negative P&L is a short, and mirrored below entry. Unparsable or
// sign-undefined inputs refuse to guess.
func Resolve(pos core.Position) Side {
	switch pos.PosSide {
	case "long":
		return SideLong
	case "short":
		return SideShort
	}

	avg, err1 := decimal.NewFromString(pos.AvgPrice)
	mark, err2 := decimal.NewFromString(pos.MarkPrice)
	upl, err3 := decimal.NewFromString(pos.UnrealizedPnL)
	if err1 != nil || err2 != nil || err3 != nil {
		return SideInsufficientData
	}

	switch mark.Cmp(avg) {
	case 1: // price went up: profit means long, loss means short
		if upl.Sign() >= 0 {
			return SideLong
		}
		return SideShort
	case -1: // price went down: profit means short, loss means long
		if upl.Sign() >= 0 {
			return SideShort
		}
		return SideLong
	default:
		// No price move yet, sign comparison is undefined
		return SideNeutral
	}
}
