package engine

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danya2271/LocalLLMTradingBot/internal/core"
	"github.com/danya2271/LocalLLMTradingBot/internal/directive"
	"github.com/danya2271/LocalLLMTradingBot/internal/mock"
	"github.com/danya2271/LocalLLMTradingBot/internal/risk"
	"github.com/danya2271/LocalLLMTradingBot/internal/telemetry"
	apperrors "github.com/danya2271/LocalLLMTradingBot/pkg/errors"
	"github.com/danya2271/LocalLLMTradingBot/pkg/logging"
)

func newTestExecutor(t *testing.T) (*Executor, *mock.Exchange) {
	t.Helper()
	logger, err := logging.NewZapLogger("ERROR")
	require.NoError(t, err)

	ex := mock.NewExchange()
	calc := risk.NewCalculator(
		decimal.RequireFromString("1.5"),
		decimal.RequireFromString("3.0"),
		decimal.RequireFromString("2.0"),
		logger,
	)
	return NewExecutor(ex, calc, telemetry.GetMetrics(), logger), ex
}

func testRiskContext() risk.Context {
	return risk.Context{
		Price:           decimal.NewFromInt(100),
		ATR:             decimal.NewFromInt(2),
		Balance:         decimal.NewFromInt(10000),
		MaxBuy:          decimal.NewFromInt(100),
		MaxSell:         decimal.NewFromInt(100),
		BuySlippagePct:  decimal.RequireFromString("0.1"),
		SellSlippagePct: decimal.RequireFromString("0.2"),
		TradeFraction:   decimal.RequireFromString("0.1"),
	}
}

func TestExecuteBatch_IsolatesFailures(t *testing.T) {
	exec, ex := newTestExecutor(t)
	ex.FailWith("PlaceOrder", apperrors.ErrInsufficientFunds)

	batch := exec.ExecuteBatch(context.Background(), "BTC-USDT", []directive.Directive{
		directive.Buy{Price: decimal.NewFromInt(100), Quantity: decimal.NewFromInt(1)},
		directive.Wait{Seconds: 30},
	}, testRiskContext())

	require.Len(t, batch.Results, 2)
	assert.Equal(t, OutcomeRejected, batch.Results[0].Outcome)
	assert.ErrorIs(t, batch.Results[0].Err, apperrors.ErrInsufficientFunds)
	// The failure must not stop the rest of the batch
	assert.Equal(t, OutcomeAcknowledged, batch.Results[1].Outcome)
	assert.Equal(t, 30, batch.RequestedWait)
}

func TestExecuteBatch_AppliesSlippage(t *testing.T) {
	exec, ex := newTestExecutor(t)

	batch := exec.ExecuteBatch(context.Background(), "BTC-USDT", []directive.Directive{
		directive.Buy{Price: decimal.NewFromInt(99), Quantity: decimal.NewFromInt(1)},
	}, testRiskContext())

	require.Equal(t, OutcomePlaced, batch.Results[0].Outcome)
	orders := ex.Orders()
	require.Len(t, orders, 1)
	// Requested 99 below market 100: anchor to market, then 0.1% down
	assert.True(t, orders[0].Price.Equal(decimal.RequireFromString("99.9")),
		"got price %s", orders[0].Price)
}

func TestExecuteBatch_BracketValidation(t *testing.T) {
	exec, ex := newTestExecutor(t)

	batch := exec.ExecuteBatch(context.Background(), "BTC-USDT", []directive.Directive{
		// Long with stop above entry: rejected locally, never sent
		directive.OpenLong{
			Entry:      decimal.NewFromInt(100),
			TakeProfit: decimal.NewFromInt(110),
			StopLoss:   decimal.NewFromInt(105),
			Quantity:   decimal.NewFromInt(1),
		},
		directive.OpenShort{
			Entry:      decimal.NewFromInt(100),
			TakeProfit: decimal.NewFromInt(94),
			StopLoss:   decimal.NewFromInt(103),
			Quantity:   decimal.NewFromInt(1),
		},
	}, testRiskContext())

	assert.Equal(t, OutcomeRejected, batch.Results[0].Outcome)
	assert.Equal(t, OutcomePlaced, batch.Results[1].Outcome)
	assert.Equal(t, 1, ex.AlgoOrderCount())
	// The invalid bracket was rejected locally: only one call reached the exchange
	assert.Equal(t, []string{"PlaceBracketOrder"}, ex.Calls)
}

func TestExecuteBatch_SideOnlyEntryDerivesBracket(t *testing.T) {
	exec, ex := newTestExecutor(t)

	batch := exec.ExecuteBatch(context.Background(), "BTC-USDT", []directive.Directive{
		directive.EnterLong{},
	}, testRiskContext())

	require.Equal(t, OutcomePlaced, batch.Results[0].Outcome)
	require.Len(t, ex.Brackets, 1)
	got := ex.Brackets[0]
	// Price 100, ATR 2, multipliers 1.5/3.0: sl 97, tp 106
	assert.Equal(t, core.SideBuy, got.Side)
	assert.True(t, got.Entry.Equal(decimal.NewFromInt(100)), "got entry %s", got.Entry)
	assert.True(t, got.StopLoss.Equal(decimal.NewFromInt(97)), "got sl %s", got.StopLoss)
	assert.True(t, got.TakeProfit.Equal(decimal.NewFromInt(106)), "got tp %s", got.TakeProfit)
	// 10000 * 0.1 / 100, floored to two decimals
	assert.True(t, got.Quantity.Equal(decimal.NewFromInt(10)), "got qty %s", got.Quantity)
}

func TestExecuteBatch_SideOnlyShortMirrorsExits(t *testing.T) {
	exec, ex := newTestExecutor(t)

	batch := exec.ExecuteBatch(context.Background(), "BTC-USDT", []directive.Directive{
		directive.EnterShort{},
	}, testRiskContext())

	require.Equal(t, OutcomePlaced, batch.Results[0].Outcome)
	require.Len(t, ex.Brackets, 1)
	got := ex.Brackets[0]
	assert.Equal(t, core.SideSell, got.Side)
	assert.True(t, got.StopLoss.Equal(decimal.NewFromInt(103)), "got sl %s", got.StopLoss)
	assert.True(t, got.TakeProfit.Equal(decimal.NewFromInt(94)), "got tp %s", got.TakeProfit)
}

func TestExecuteBatch_SideOnlyEntrySkipsWithoutATR(t *testing.T) {
	exec, ex := newTestExecutor(t)

	rc := testRiskContext()
	rc.ATR = decimal.Zero

	batch := exec.ExecuteBatch(context.Background(), "BTC-USDT", []directive.Directive{
		directive.EnterLong{},
	}, rc)

	assert.Equal(t, OutcomeSkipped, batch.Results[0].Outcome)
	assert.ErrorIs(t, batch.Results[0].Err, apperrors.ErrLimitsUnavailable)
	assert.Empty(t, ex.Calls, "a skip never reaches the exchange")
}

func TestCancel_FallsBackToAlgoBook(t *testing.T) {
	exec, ex := newTestExecutor(t)
	ex.SeedAlgoOrder(core.AlgoOrder{AlgoID: "abc", Symbol: "BTC-USDT", Type: core.AlgoTypeOCO, State: "live"})

	batch := exec.ExecuteBatch(context.Background(), "BTC-USDT", []directive.Directive{
		directive.Cancel{ID: "abc"},
	}, testRiskContext())

	require.Equal(t, OutcomeCanceled, batch.Results[0].Outcome)
	assert.Equal(t, "algo order abc", batch.Results[0].Detail)
	assert.Equal(t, []string{"CancelOrder", "CancelAlgoOrder"}, ex.Calls,
		"standard book is tried first")
	assert.Equal(t, 0, ex.AlgoOrderCount())
}

func TestCancel_DuplicateBothExecuted(t *testing.T) {
	exec, ex := newTestExecutor(t)
	ex.SeedOrder(core.Order{ID: "dup", Symbol: "BTC-USDT", State: "live"})

	batch := exec.ExecuteBatch(context.Background(), "BTC-USDT", []directive.Directive{
		directive.Cancel{ID: "dup"},
		directive.Cancel{ID: "dup"},
	}, testRiskContext())

	require.Len(t, batch.Results, 2)
	assert.Equal(t, OutcomeCanceled, batch.Results[0].Outcome)
	// Second attempt runs anyway and misses both books
	assert.Equal(t, OutcomeRejected, batch.Results[1].Outcome)
	assert.ErrorIs(t, batch.Results[1].Err, apperrors.ErrOrderNotFound)
}

func TestCloseAll_FlattensEverything(t *testing.T) {
	exec, ex := newTestExecutor(t)
	ex.SeedOrder(core.Order{ID: "o1", Symbol: "BTC-USDT", State: "live"})
	ex.SeedAlgoOrder(core.AlgoOrder{AlgoID: "a1", Symbol: "BTC-USDT", Type: core.AlgoTypeOCO, State: "live"})
	ex.SeedAlgoOrder(core.AlgoOrder{AlgoID: "a2", Symbol: "BTC-USDT", Type: core.AlgoTypeTrigger, State: "live"})
	ex.SetPositions([]core.Position{{Symbol: "BTC-USDT", Size: decimal.NewFromInt(1)}})

	batch := exec.ExecuteBatch(context.Background(), "BTC-USDT", []directive.Directive{
		directive.CloseAll{},
	}, testRiskContext())

	require.Equal(t, OutcomeAcknowledged, batch.Results[0].Outcome)
	assert.Equal(t, 0, ex.OpenOrderCount())
	assert.Equal(t, 0, ex.AlgoOrderCount())
}

func TestCloseAll_SubStepFailuresDoNotAbort(t *testing.T) {
	exec, ex := newTestExecutor(t)
	ex.SeedOrder(core.Order{ID: "o1", Symbol: "BTC-USDT", State: "live"})
	ex.FailWith("GetAlgoOrders", apperrors.ErrNetwork)

	batch := exec.ExecuteBatch(context.Background(), "BTC-USDT", []directive.Directive{
		directive.CloseAll{},
	}, testRiskContext())

	require.Equal(t, OutcomeRejected, batch.Results[0].Outcome)
	assert.ErrorIs(t, batch.Results[0].Err, apperrors.ErrNetwork)
	// Later sub-steps still ran: the standard order is gone
	assert.Equal(t, 0, ex.OpenOrderCount())
	assert.Contains(t, ex.Calls, "CloseAllPositions")
}

func TestExecuteBatch_LastWaitWins(t *testing.T) {
	exec, _ := newTestExecutor(t)

	batch := exec.ExecuteBatch(context.Background(), "BTC-USDT", []directive.Directive{
		directive.Wait{Seconds: 900},
		directive.Hold{},
		directive.Wait{Seconds: 60},
	}, testRiskContext())

	assert.Equal(t, 60, batch.RequestedWait)
}

func TestExecuteBatch_UnknownDirective(t *testing.T) {
	exec, _ := newTestExecutor(t)

	batch := exec.ExecuteBatch(context.Background(), "BTC-USDT", []directive.Directive{
		directive.Unknown{RawText: "FROBNICATE", Reason: directive.ReasonNoGrammarMatch},
	}, testRiskContext())

	assert.Equal(t, OutcomeParseError, batch.Results[0].Outcome)
	assert.Equal(t, "no-grammar-match", batch.Results[0].Detail)
}
