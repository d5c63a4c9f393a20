// Package core defines the shared types and interfaces of the trading bot
package core

import (
	"context"

	"github.com/shopspring/decimal"
)

// IExchange defines the exchange adapter boundary consumed by the execution
// engine. Every method returns the exchange's own failure message wrapped in
// an error; the engine never retries these beyond the documented cancel
// fallback.
type IExchange interface {
	GetName() string

	// Order operations
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (orderID string, err error)
	PlaceBracketOrder(ctx context.Context, req BracketOrderRequest) (algoID string, err error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	CancelAlgoOrder(ctx context.Context, symbol, algoID string) error
	GetOpenOrders(ctx context.Context, symbol string) ([]Order, error)
	GetAlgoOrders(ctx context.Context, symbol string, algoType AlgoOrderType) ([]AlgoOrder, error)
	CloseAllPositions(ctx context.Context, symbol string) error

	// Account operations
	GetPositions(ctx context.Context, symbol string) ([]Position, error)
	GetBalance(ctx context.Context, currency string) (Balance, error)
	GetMaxOrderSize(ctx context.Context, symbol string) (MaxOrderSize, error)

	// Market data
	GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	GetCandles(ctx context.Context, symbol, bar string, limit int) ([]Candle, error)
}

// DecisionClient is the decision service boundary: one prompt in, one opaque
// text answer out. Transport retry/backoff lives behind this interface.
type DecisionClient interface {
	Name() string
	Decide(ctx context.Context, prompt string) (string, error)
}

// ILogger defines the interface for logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}
