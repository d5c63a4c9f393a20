// Package risk derives concrete order parameters from market context and
// configured policy. Two modes coexist: volatility-derived brackets for
// side-only entries, and slippage adjustment for fully-priced limit intents.
package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/danya2271/LocalLLMTradingBot/internal/core"
	apperrors "github.com/danya2271/LocalLLMTradingBot/pkg/errors"
)

var (
	hundred    = decimal.NewFromInt(100)
	one        = decimal.NewFromInt(1)
	maxSizeCap = decimal.RequireFromString("0.9")
)

// Context carries the per-cycle market state the calculator works from. It is
// built fresh each cycle and discarded after it.
type Context struct {
	Price   decimal.Decimal // current mark/last price
	ATR     decimal.Decimal // average true range over the configured window
	Balance decimal.Decimal // available quote-currency balance
	MaxBuy  decimal.Decimal // exchange-reported max order sizes
	MaxSell decimal.Decimal

	BuySlippagePct  decimal.Decimal
	SellSlippagePct decimal.Decimal
	TradeFraction   decimal.Decimal // fraction of balance committed per trade
}

// BracketPlan is a fully-derived bracket entry
type BracketPlan struct {
	Entry      decimal.Decimal
	TakeProfit decimal.Decimal
	StopLoss   decimal.Decimal
	Quantity   decimal.Decimal
}

// Calculator applies the configured sizing and exit policy
type Calculator struct {
	stopMultiplier   decimal.Decimal
	profitMultiplier decimal.Decimal
	minNotional      decimal.Decimal
	logger           core.ILogger
}

// NewCalculator creates a Calculator. minNotional is the smallest quote-value
// order worth sending; anything below it is skipped.
func NewCalculator(stopMultiplier, profitMultiplier, minNotional decimal.Decimal, logger core.ILogger) *Calculator {
	return &Calculator{
		stopMultiplier:   stopMultiplier,
		profitMultiplier: profitMultiplier,
		minNotional:      minNotional,
		logger:           logger.WithField("component", "risk_calculator"),
	}
}

// BracketFromVolatility derives entry, exits and size for a side-only entry.
// Entry is the current price, exits are ATR multiples, quantity is the
// balance fraction rounded down to two decimals. Degenerate inputs skip
// rather than divide by zero.
func (c *Calculator) BracketFromVolatility(side core.OrderSide, rc Context) (BracketPlan, error) {
	if rc.Price.IsZero() || rc.ATR.IsZero() {
		return BracketPlan{}, fmt.Errorf("%w: price=%s atr=%s", apperrors.ErrLimitsUnavailable, rc.Price, rc.ATR)
	}
	if rc.Balance.IsZero() || rc.Balance.IsNegative() {
		return BracketPlan{}, fmt.Errorf("%w: balance=%s", apperrors.ErrBalanceTooLow, rc.Balance)
	}

	entry := rc.Price
	stopDelta := rc.ATR.Mul(c.stopMultiplier)
	profitDelta := rc.ATR.Mul(c.profitMultiplier)

	var tp, sl decimal.Decimal
	switch side {
	case core.SideBuy:
		sl = entry.Sub(stopDelta)
		tp = entry.Add(profitDelta)
	case core.SideSell:
		sl = entry.Add(stopDelta)
		tp = entry.Sub(profitDelta)
	default:
		return BracketPlan{}, fmt.Errorf("%w: side %q", apperrors.ErrInvalidOrderParameter, side)
	}

	// Two-decimal lot rounding, always down
	qty := rc.Balance.Mul(rc.TradeFraction).Div(entry).Mul(hundred).Floor().Div(hundred)

	notional := qty.Mul(entry)
	if notional.LessThan(c.minNotional) {
		return BracketPlan{}, fmt.Errorf("%w: notional %s below minimum %s",
			apperrors.ErrBalanceTooLow, notional, c.minNotional)
	}

	plan := BracketPlan{Entry: entry, TakeProfit: tp, StopLoss: sl, Quantity: qty}
	if err := ValidateBracket(side, plan.Entry, plan.TakeProfit, plan.StopLoss); err != nil {
		return BracketPlan{}, err
	}
	return plan, nil
}

// AdjustLimit applies slippage to a fully-priced limit intent and clamps the
// quantity to 90% of the exchange-reported maximum for the side. The
// requested price is first pulled up to the current price when it sits below
// it, then shifted by the side's slippage percentage.
func (c *Calculator) AdjustLimit(side core.OrderSide, price, quantity decimal.Decimal, rc Context) (decimal.Decimal, decimal.Decimal, error) {
	if rc.Price.IsZero() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: current price unavailable", apperrors.ErrLimitsUnavailable)
	}
	if !quantity.IsPositive() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: quantity %s", apperrors.ErrInvalidOrderParameter, quantity)
	}

	anchor := price
	if anchor.LessThan(rc.Price) {
		anchor = rc.Price
	}

	var adjusted, maxSize decimal.Decimal
	switch side {
	case core.SideBuy:
		adjusted = anchor.Mul(one.Sub(rc.BuySlippagePct.Div(hundred)))
		maxSize = rc.MaxBuy
	case core.SideSell:
		adjusted = anchor.Mul(one.Add(rc.SellSlippagePct.Div(hundred)))
		maxSize = rc.MaxSell
	default:
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: side %q", apperrors.ErrInvalidOrderParameter, side)
	}

	if maxSize.IsZero() || maxSize.IsNegative() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: no max size for %s", apperrors.ErrLimitsUnavailable, side)
	}

	sizeCap := maxSize.Mul(maxSizeCap)
	if quantity.GreaterThan(sizeCap) {
		c.logger.Warn("clamping order size to exchange limit", "requested", quantity, "cap", sizeCap)
		quantity = sizeCap
	}

	return adjusted, quantity, nil
}

// ValidateBracket checks the exit ordering invariant: stop below entry below
// take-profit for longs, mirrored for shorts.
func ValidateBracket(side core.OrderSide, entry, takeProfit, stopLoss decimal.Decimal) error {
	switch side {
	case core.SideBuy:
		if !(stopLoss.LessThan(entry) && entry.LessThan(takeProfit)) {
			return fmt.Errorf("%w: long bracket must satisfy sl < entry < tp (sl=%s entry=%s tp=%s)",
				apperrors.ErrInvalidOrderParameter, stopLoss, entry, takeProfit)
		}
	case core.SideSell:
		if !(takeProfit.LessThan(entry) && entry.LessThan(stopLoss)) {
			return fmt.Errorf("%w: short bracket must satisfy tp < entry < sl (tp=%s entry=%s sl=%s)",
				apperrors.ErrInvalidOrderParameter, takeProfit, entry, stopLoss)
		}
	default:
		return fmt.Errorf("%w: side %q", apperrors.ErrInvalidOrderParameter, side)
	}
	return nil
}
