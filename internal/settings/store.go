// Package settings holds the runtime-mutable configuration shared between the
// trading cycle and the Telegram command listener. The sharing discipline is
// read-at-start-of-cycle, write-on-command: a change landing mid-cycle takes
// effect on the next cycle. Every setter is atomic at the granularity of one
// logical setting.
package settings

import (
	"context"

	"github.com/shopspring/decimal"
)

// Slippage is the configured percentage price adjustment per side
type Slippage struct {
	BuyPct  decimal.Decimal
	SellPct decimal.Decimal
}

// Defaults seeds a fresh store
type Defaults struct {
	TradingPair string
	Slippage    Slippage
	WaitSeconds int
	DataWindows map[string]int // candle bar -> rows included in the prompt
}

// Store is the runtime settings boundary
type Store interface {
	TradingPair(ctx context.Context) (string, error)
	SetTradingPair(ctx context.Context, pair string) error

	GetSlippage(ctx context.Context) (Slippage, error)
	SetSlippage(ctx context.Context, s Slippage) error

	WaitSeconds(ctx context.Context) (int, error)
	SetWaitSeconds(ctx context.Context, seconds int) error

	DataWindows(ctx context.Context) (map[string]int, error)
	SetDataWindows(ctx context.Context, windows map[string]int) error

	Close() error
}
