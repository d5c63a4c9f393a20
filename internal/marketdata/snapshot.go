// Package marketdata gathers the per-cycle market context from the exchange.
package marketdata

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/danya2271/LocalLLMTradingBot/internal/core"
	"github.com/danya2271/LocalLLMTradingBot/internal/risk"
)

// Snapshot is everything the decision prompt and the risk layer need for one
// cycle, collected in a single pass.
type Snapshot struct {
	Pair       string
	Price      decimal.Decimal
	ATR        decimal.Decimal
	Balance    core.Balance
	MaxSize    core.MaxOrderSize
	Positions  []core.Position
	OpenOrders []core.Order
	Candles    map[string][]core.Candle // keyed by bar, oldest-first
}

// Collector fetches snapshots from an exchange.
type Collector struct {
	exchange  core.IExchange
	atrBar    string
	atrWindow int
	logger    core.ILogger
}

// NewCollector creates a snapshot collector. ATR is computed from atrBar
// candles over atrWindow periods.
func NewCollector(exchange core.IExchange, atrBar string, atrWindow int, logger core.ILogger) *Collector {
	return &Collector{
		exchange:  exchange,
		atrBar:    atrBar,
		atrWindow: atrWindow,
		logger:    logger.WithField("component", "marketdata"),
	}
}

// Collect fetches a full snapshot for the pair. The windows map gives the
// candle tail length per bar; bars with a zero window fetch the full series
// the exchange returns by default.
func (c *Collector) Collect(ctx context.Context, pair string, windows map[string]int) (*Snapshot, error) {
	price, err := c.exchange.GetLatestPrice(ctx, pair)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price: %w", err)
	}

	balance, err := c.exchange.GetBalance(ctx, "USDT")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch balance: %w", err)
	}

	maxSize, err := c.exchange.GetMaxOrderSize(ctx, pair)
	if err != nil {
		// Limits are advisory; the risk layer skips sizing when absent
		c.logger.Warn("Failed to fetch max order size", "pair", pair, "error", err)
		maxSize = core.MaxOrderSize{}
	}

	positions, err := c.exchange.GetPositions(ctx, pair)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch positions: %w", err)
	}

	openOrders, err := c.exchange.GetOpenOrders(ctx, pair)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch open orders: %w", err)
	}

	candles := make(map[string][]core.Candle, len(windows))
	for _, bar := range sortedBars(windows) {
		limit := windows[bar]
		if limit <= 0 {
			limit = 100
		}
		series, err := c.exchange.GetCandles(ctx, pair, bar, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s candles: %w", bar, err)
		}
		candles[bar] = tail(series, windows[bar])
	}

	atr := decimal.Zero
	if series, ok := candles[c.atrBar]; ok {
		atr = risk.ComputeATR(series, c.atrWindow)
	} else if series, err := c.exchange.GetCandles(ctx, pair, c.atrBar, c.atrWindow+1); err == nil {
		atr = risk.ComputeATR(series, c.atrWindow)
	}

	return &Snapshot{
		Pair:       pair,
		Price:      price,
		ATR:        atr,
		Balance:    balance,
		MaxSize:    maxSize,
		Positions:  positions,
		OpenOrders: openOrders,
		Candles:    candles,
	}, nil
}

// tail returns the last n candles, or the whole series when n <= 0.
func tail(series []core.Candle, n int) []core.Candle {
	if n <= 0 || len(series) <= n {
		return series
	}
	return series[len(series)-n:]
}

// sortedBars gives a stable fetch order so logs and prompts are deterministic.
func sortedBars(windows map[string]int) []string {
	bars := make([]string, 0, len(windows))
	for bar := range windows {
		bars = append(bars, bar)
	}
	sort.Strings(bars)
	return bars
}
