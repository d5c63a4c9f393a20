package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the taker side of an order
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// AlgoOrderType distinguishes exchange-side conditional order families. The
// exchange rejects a combined type query, so each family is listed separately.
type AlgoOrderType string

const (
	AlgoTypeOCO     AlgoOrderType = "oco"
	AlgoTypeTrigger AlgoOrderType = "trigger"
)

// PlaceOrderRequest describes a standard cross-margin limit order
type PlaceOrderRequest struct {
	Symbol        string
	Side          OrderSide
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	ClientOrderID string
}

// BracketOrderRequest describes an entry with an attached one-cancels-other
// take-profit/stop-loss pair
type BracketOrderRequest struct {
	Symbol     string
	Side       OrderSide // opening side: buy -> long, sell -> short
	Entry      decimal.Decimal
	TakeProfit decimal.Decimal
	StopLoss   decimal.Decimal
	Quantity   decimal.Decimal
}

// Order is an open standard order as reported by the exchange
type Order struct {
	ID       string
	Symbol   string
	Side     OrderSide
	Price    decimal.Decimal
	Quantity decimal.Decimal
	State    string
}

// AlgoOrder is an open conditional order as reported by the exchange
type AlgoOrder struct {
	AlgoID   string
	Symbol   string
	Type     AlgoOrderType
	Side     OrderSide
	Quantity decimal.Decimal
	State    string
}

// Position is a raw position record. The price and P&L fields stay as the
// exchange sent them: under cross-margin "net" accounting they may be empty,
// and side classification from them is the resolver's job, not the adapter's.
type Position struct {
	Symbol        string
	PosSide       string // "long", "short" or "net"
	Size          decimal.Decimal
	AvgPrice      string
	MarkPrice     string
	UnrealizedPnL string
}

// Balance is the available funds in one currency
type Balance struct {
	Currency  string
	Available decimal.Decimal
	Frozen    decimal.Decimal
}

// MaxOrderSize is the exchange-reported maximum order size per side
type MaxOrderSize struct {
	MaxBuy  decimal.Decimal
	MaxSell decimal.Decimal
}

// Candle is one OHLCV bar
type Candle struct {
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}
