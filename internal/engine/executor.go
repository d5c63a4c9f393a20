// Package engine runs the decision cycle: it executes parsed directives
// against the exchange and drives the fetch-decide-execute loop.
package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/danya2271/LocalLLMTradingBot/internal/core"
	"github.com/danya2271/LocalLLMTradingBot/internal/directive"
	"github.com/danya2271/LocalLLMTradingBot/internal/risk"
	"github.com/danya2271/LocalLLMTradingBot/internal/telemetry"
)

// Outcome classifies how one directive ended
type Outcome string

const (
	OutcomePlaced       Outcome = "placed"
	OutcomeCanceled     Outcome = "canceled"
	OutcomeRejected     Outcome = "rejected"
	OutcomeParseError   Outcome = "parse-error"
	OutcomeSkipped      Outcome = "skipped"
	OutcomeAcknowledged Outcome = "acknowledged"
)

// ExecutionResult is the outcome of one directive
type ExecutionResult struct {
	Directive directive.Directive
	Outcome   Outcome
	Detail    string // order id, rejection reason, or skip reason
	Err       error
}

// BatchResult aggregates one cycle's directive outcomes
type BatchResult struct {
	Results []ExecutionResult

	// RequestedWait is the pause the model asked for, zero when no WAIT
	// directive appeared. With several WAITs the last one wins.
	RequestedWait int
}

// Executor turns directives into exchange calls. Each directive runs in
// isolation: a failure is recorded and the batch continues.
type Executor struct {
	exchange core.IExchange
	calc     *risk.Calculator
	metrics  *telemetry.Metrics
	logger   core.ILogger
}

// NewExecutor creates an executor
func NewExecutor(exchange core.IExchange, calc *risk.Calculator, metrics *telemetry.Metrics, logger core.ILogger) *Executor {
	return &Executor{
		exchange: exchange,
		calc:     calc,
		metrics:  metrics,
		logger:   logger.WithField("component", "executor"),
	}
}

// ExecuteBatch runs every directive in order. It never returns early: each
// result is recorded and the next directive runs regardless.
func (e *Executor) ExecuteBatch(ctx context.Context, pair string, directives []directive.Directive, rc risk.Context) BatchResult {
	batch := BatchResult{Results: make([]ExecutionResult, 0, len(directives))}

	for _, d := range directives {
		result := e.execute(ctx, pair, d, rc)
		if w, ok := d.(directive.Wait); ok && result.Outcome == OutcomeAcknowledged {
			batch.RequestedWait = w.Seconds
		}

		e.metrics.ObserveDirective(string(d.Kind()), string(result.Outcome))
		if result.Err != nil {
			e.logger.Warn("Directive failed",
				"directive", d.String(),
				"outcome", result.Outcome,
				"error", result.Err)
		} else {
			e.logger.Info("Directive executed",
				"directive", d.String(),
				"outcome", result.Outcome,
				"detail", result.Detail)
		}
		batch.Results = append(batch.Results, result)
	}
	return batch
}

func (e *Executor) execute(ctx context.Context, pair string, d directive.Directive, rc risk.Context) ExecutionResult {
	switch v := d.(type) {
	case directive.Buy:
		return e.placeLimit(ctx, pair, core.SideBuy, v.Price, v.Quantity, v.Pair, d, rc)
	case directive.Sell:
		return e.placeLimit(ctx, pair, core.SideSell, v.Price, v.Quantity, v.Pair, d, rc)
	case directive.EnterLong:
		return e.placeVolatilityBracket(ctx, pair, core.SideBuy, d, rc)
	case directive.EnterShort:
		return e.placeVolatilityBracket(ctx, pair, core.SideSell, d, rc)
	case directive.OpenLong:
		return e.placeBracket(ctx, pair, core.SideBuy, v.Entry, v.TakeProfit, v.StopLoss, v.Quantity, d)
	case directive.OpenShort:
		return e.placeBracket(ctx, pair, core.SideSell, v.Entry, v.TakeProfit, v.StopLoss, v.Quantity, d)
	case directive.Cancel:
		return e.cancel(ctx, pair, v)
	case directive.CloseAll:
		return e.closeAll(ctx, pair, d)
	case directive.Wait:
		if v.Seconds < 0 {
			return ExecutionResult{Directive: d, Outcome: OutcomeRejected, Detail: "negative wait"}
		}
		return ExecutionResult{Directive: d, Outcome: OutcomeAcknowledged, Detail: fmt.Sprintf("wait %ds", v.Seconds)}
	case directive.Hold:
		return ExecutionResult{Directive: d, Outcome: OutcomeAcknowledged, Detail: "hold"}
	case directive.Unknown:
		return ExecutionResult{Directive: d, Outcome: OutcomeParseError, Detail: string(v.Reason)}
	default:
		return ExecutionResult{Directive: d, Outcome: OutcomeParseError, Detail: "unhandled directive kind"}
	}
}

func (e *Executor) placeLimit(ctx context.Context, defaultPair string, side core.OrderSide, price, quantity decimal.Decimal, pairOverride string, d directive.Directive, rc risk.Context) ExecutionResult {
	pair := defaultPair
	if pairOverride != "" {
		pair = pairOverride
	}

	adjPrice, adjQty, err := e.calc.AdjustLimit(side, price, quantity, rc)
	if err != nil {
		return ExecutionResult{Directive: d, Outcome: OutcomeSkipped, Detail: err.Error(), Err: err}
	}

	orderID, err := e.exchange.PlaceOrder(ctx, core.PlaceOrderRequest{
		Symbol:   pair,
		Side:     side,
		Price:    adjPrice,
		Quantity: adjQty,
	})
	if err != nil {
		e.metrics.ExchangeErrorsTotal.Inc()
		return ExecutionResult{Directive: d, Outcome: OutcomeRejected, Detail: err.Error(), Err: err}
	}
	return ExecutionResult{Directive: d, Outcome: OutcomePlaced, Detail: orderID}
}

// placeVolatilityBracket serves the side-only entry words: the bracket is
// derived entirely from the cycle's market context.
func (e *Executor) placeVolatilityBracket(ctx context.Context, pair string, side core.OrderSide, d directive.Directive, rc risk.Context) ExecutionResult {
	plan, err := e.calc.BracketFromVolatility(side, rc)
	if err != nil {
		return ExecutionResult{Directive: d, Outcome: OutcomeSkipped, Detail: err.Error(), Err: err}
	}
	return e.placeBracket(ctx, pair, side, plan.Entry, plan.TakeProfit, plan.StopLoss, plan.Quantity, d)
}

func (e *Executor) placeBracket(ctx context.Context, pair string, side core.OrderSide, entry, tp, sl, quantity decimal.Decimal, d directive.Directive) ExecutionResult {
	if err := risk.ValidateBracket(side, entry, tp, sl); err != nil {
		return ExecutionResult{Directive: d, Outcome: OutcomeRejected, Detail: err.Error(), Err: err}
	}
	if !quantity.IsPositive() {
		return ExecutionResult{Directive: d, Outcome: OutcomeRejected, Detail: "non-positive quantity"}
	}

	algoID, err := e.exchange.PlaceBracketOrder(ctx, core.BracketOrderRequest{
		Symbol:     pair,
		Side:       side,
		Entry:      entry,
		TakeProfit: tp,
		StopLoss:   sl,
		Quantity:   quantity,
	})
	if err != nil {
		e.metrics.ExchangeErrorsTotal.Inc()
		return ExecutionResult{Directive: d, Outcome: OutcomeRejected, Detail: err.Error(), Err: err}
	}
	return ExecutionResult{Directive: d, Outcome: OutcomePlaced, Detail: algoID}
}

// cancel tries the standard order book first, then falls back to the
// conditional book under the same id. The two books share no id space, so a
// miss on the first is not conclusive.
func (e *Executor) cancel(ctx context.Context, defaultPair string, v directive.Cancel) ExecutionResult {
	pair := defaultPair
	if v.Pair != "" {
		pair = v.Pair
	}

	stdErr := e.exchange.CancelOrder(ctx, pair, v.ID)
	if stdErr == nil {
		return ExecutionResult{Directive: v, Outcome: OutcomeCanceled, Detail: "standard order " + v.ID}
	}

	algoErr := e.exchange.CancelAlgoOrder(ctx, pair, v.ID)
	if algoErr == nil {
		return ExecutionResult{Directive: v, Outcome: OutcomeCanceled, Detail: "algo order " + v.ID}
	}

	e.metrics.ExchangeErrorsTotal.Inc()
	err := multierr.Combine(
		fmt.Errorf("standard cancel: %w", stdErr),
		fmt.Errorf("algo cancel: %w", algoErr),
	)
	return ExecutionResult{Directive: v, Outcome: OutcomeRejected, Detail: "order not found in either book", Err: err}
}

// closeAll flattens the account in three sub-steps: conditional orders,
// standard orders, then positions. Sub-step failures are collected and never
// stop the remaining steps.
func (e *Executor) closeAll(ctx context.Context, pair string, d directive.Directive) ExecutionResult {
	var errs error

	for _, algoType := range []core.AlgoOrderType{core.AlgoTypeOCO, core.AlgoTypeTrigger} {
		orders, err := e.exchange.GetAlgoOrders(ctx, pair, algoType)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("list %s orders: %w", algoType, err))
			continue
		}
		for _, o := range orders {
			if err := e.exchange.CancelAlgoOrder(ctx, o.Symbol, o.AlgoID); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("cancel algo %s: %w", o.AlgoID, err))
			}
		}
	}

	orders, err := e.exchange.GetOpenOrders(ctx, pair)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("list open orders: %w", err))
	} else {
		for _, o := range orders {
			if err := e.exchange.CancelOrder(ctx, o.Symbol, o.ID); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("cancel %s: %w", o.ID, err))
			}
		}
	}

	if err := e.exchange.CloseAllPositions(ctx, pair); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("close positions: %w", err))
	}

	if errs != nil {
		e.metrics.ExchangeErrorsTotal.Inc()
		return ExecutionResult{Directive: d, Outcome: OutcomeRejected, Detail: "partial close", Err: errs}
	}
	return ExecutionResult{Directive: d, Outcome: OutcomeAcknowledged, Detail: "account flattened"}
}
