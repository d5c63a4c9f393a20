// Package mock provides an in-memory exchange for tests and dry runs.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/danya2271/LocalLLMTradingBot/internal/core"
	apperrors "github.com/danya2271/LocalLLMTradingBot/pkg/errors"
)

// Exchange is a stateful in-memory core.IExchange. Failures are injected per
// method name via FailWith.
type Exchange struct {
	mu         sync.Mutex
	nextID     int
	orders     map[string]core.Order
	algoOrders map[string]core.AlgoOrder
	positions  []core.Position
	balance    core.Balance
	maxSize    core.MaxOrderSize
	price      decimal.Decimal
	candles    map[string][]core.Candle
	failures   map[string]error

	// Call log, oldest first, for asserting call order in tests
	Calls []string

	// Brackets records every PlaceBracketOrder request in order
	Brackets []core.BracketOrderRequest
}

// NewExchange creates a mock with a funded USDT balance and a flat book
func NewExchange() *Exchange {
	return &Exchange{
		orders:     make(map[string]core.Order),
		algoOrders: make(map[string]core.AlgoOrder),
		balance: core.Balance{
			Currency:  "USDT",
			Available: decimal.NewFromInt(10000),
		},
		maxSize: core.MaxOrderSize{
			MaxBuy:  decimal.NewFromInt(100),
			MaxSell: decimal.NewFromInt(100),
		},
		price:    decimal.NewFromInt(100),
		candles:  make(map[string][]core.Candle),
		failures: make(map[string]error),
	}
}

// FailWith makes the named method return err until cleared with a nil err
func (m *Exchange) FailWith(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, method)
		return
	}
	m.failures[method] = err
}

// SetPrice sets the latest traded price
func (m *Exchange) SetPrice(price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.price = price
}

// SetBalance sets the available balance
func (m *Exchange) SetBalance(balance core.Balance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balance = balance
}

// SetMaxSize sets the per-side order size limits
func (m *Exchange) SetMaxSize(maxSize core.MaxOrderSize) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxSize = maxSize
}

// SetPositions replaces the position list
func (m *Exchange) SetPositions(positions []core.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = positions
}

// SetCandles sets the candle series for a bar
func (m *Exchange) SetCandles(bar string, candles []core.Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candles[bar] = candles
}

// SeedOrder adds an open order directly, bypassing PlaceOrder
func (m *Exchange) SeedOrder(order core.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = order
}

// SeedAlgoOrder adds an open conditional order directly
func (m *Exchange) SeedAlgoOrder(order core.AlgoOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.algoOrders[order.AlgoID] = order
}

// Orders returns a copy of the open standard orders
func (m *Exchange) Orders() []core.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	orders := make([]core.Order, 0, len(m.orders))
	for _, o := range m.orders {
		orders = append(orders, o)
	}
	return orders
}

// OpenOrderCount reports how many standard orders remain open
func (m *Exchange) OpenOrderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// AlgoOrderCount reports how many conditional orders remain open
func (m *Exchange) AlgoOrderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.algoOrders)
}

func (m *Exchange) record(method string) error {
	m.Calls = append(m.Calls, method)
	if err, ok := m.failures[method]; ok {
		return err
	}
	return nil
}

func (m *Exchange) GetName() string {
	return "mock"
}

func (m *Exchange) PlaceOrder(ctx context.Context, req core.PlaceOrderRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("PlaceOrder"); err != nil {
		return "", err
	}
	m.nextID++
	id := fmt.Sprintf("order-%d", m.nextID)
	m.orders[id] = core.Order{
		ID:       id,
		Symbol:   req.Symbol,
		Side:     req.Side,
		Price:    req.Price,
		Quantity: req.Quantity,
		State:    "live",
	}
	return id, nil
}

func (m *Exchange) PlaceBracketOrder(ctx context.Context, req core.BracketOrderRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("PlaceBracketOrder"); err != nil {
		return "", err
	}
	m.Brackets = append(m.Brackets, req)
	m.nextID++
	id := fmt.Sprintf("algo-%d", m.nextID)
	m.algoOrders[id] = core.AlgoOrder{
		AlgoID:   id,
		Symbol:   req.Symbol,
		Type:     core.AlgoTypeOCO,
		Side:     req.Side,
		Quantity: req.Quantity,
		State:    "live",
	}
	return id, nil
}

func (m *Exchange) CancelOrder(ctx context.Context, symbol, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("CancelOrder"); err != nil {
		return err
	}
	if _, ok := m.orders[orderID]; !ok {
		return fmt.Errorf("cancel %s: %w", orderID, apperrors.ErrOrderNotFound)
	}
	delete(m.orders, orderID)
	return nil
}

func (m *Exchange) CancelAlgoOrder(ctx context.Context, symbol, algoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("CancelAlgoOrder"); err != nil {
		return err
	}
	if _, ok := m.algoOrders[algoID]; !ok {
		return fmt.Errorf("cancel algo %s: %w", algoID, apperrors.ErrOrderNotFound)
	}
	delete(m.algoOrders, algoID)
	return nil
}

func (m *Exchange) GetOpenOrders(ctx context.Context, symbol string) ([]core.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetOpenOrders"); err != nil {
		return nil, err
	}
	orders := make([]core.Order, 0, len(m.orders))
	for _, o := range m.orders {
		if symbol == "" || o.Symbol == symbol {
			orders = append(orders, o)
		}
	}
	return orders, nil
}

func (m *Exchange) GetAlgoOrders(ctx context.Context, symbol string, algoType core.AlgoOrderType) ([]core.AlgoOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetAlgoOrders"); err != nil {
		return nil, err
	}
	orders := make([]core.AlgoOrder, 0, len(m.algoOrders))
	for _, o := range m.algoOrders {
		if o.Type != algoType {
			continue
		}
		if symbol == "" || o.Symbol == symbol {
			orders = append(orders, o)
		}
	}
	return orders, nil
}

func (m *Exchange) CloseAllPositions(ctx context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("CloseAllPositions"); err != nil {
		return err
	}
	remaining := m.positions[:0]
	for _, p := range m.positions {
		if symbol != "" && p.Symbol != symbol {
			remaining = append(remaining, p)
		}
	}
	m.positions = remaining
	return nil
}

func (m *Exchange) GetPositions(ctx context.Context, symbol string) ([]core.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetPositions"); err != nil {
		return nil, err
	}
	positions := make([]core.Position, 0, len(m.positions))
	for _, p := range m.positions {
		if symbol == "" || p.Symbol == symbol {
			positions = append(positions, p)
		}
	}
	return positions, nil
}

func (m *Exchange) GetBalance(ctx context.Context, currency string) (core.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetBalance"); err != nil {
		return core.Balance{}, err
	}
	return m.balance, nil
}

func (m *Exchange) GetMaxOrderSize(ctx context.Context, symbol string) (core.MaxOrderSize, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetMaxOrderSize"); err != nil {
		return core.MaxOrderSize{}, err
	}
	return m.maxSize, nil
}

func (m *Exchange) GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetLatestPrice"); err != nil {
		return decimal.Zero, err
	}
	return m.price, nil
}

func (m *Exchange) GetCandles(ctx context.Context, symbol, bar string, limit int) ([]core.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetCandles"); err != nil {
		return nil, err
	}
	series := m.candles[bar]
	if limit > 0 && len(series) > limit {
		series = series[len(series)-limit:]
	}
	return series, nil
}
