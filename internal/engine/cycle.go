package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/danya2271/LocalLLMTradingBot/internal/alert"
	"github.com/danya2271/LocalLLMTradingBot/internal/core"
	"github.com/danya2271/LocalLLMTradingBot/internal/directive"
	"github.com/danya2271/LocalLLMTradingBot/internal/llm"
	"github.com/danya2271/LocalLLMTradingBot/internal/marketdata"
	"github.com/danya2271/LocalLLMTradingBot/internal/risk"
	"github.com/danya2271/LocalLLMTradingBot/internal/settings"
	"github.com/danya2271/LocalLLMTradingBot/internal/telemetry"
	apperrors "github.com/danya2271/LocalLLMTradingBot/pkg/errors"
)

// Cycle drives one fetch-decide-execute round and the loop around it.
type Cycle struct {
	store     settings.Store
	collector *marketdata.Collector
	prompt    *llm.PromptBuilder
	decider   core.DecisionClient
	executor  *Executor
	alerts    *alert.Manager
	metrics   *telemetry.Metrics
	logger    core.ILogger

	tradeFraction decimal.Decimal
	defaultWait   int
}

// NewCycle wires the decision loop together. defaultWait is the pause in
// seconds used when the model does not request one.
func NewCycle(
	store settings.Store,
	collector *marketdata.Collector,
	prompt *llm.PromptBuilder,
	decider core.DecisionClient,
	executor *Executor,
	alerts *alert.Manager,
	metrics *telemetry.Metrics,
	tradeFraction decimal.Decimal,
	defaultWait int,
	logger core.ILogger,
) *Cycle {
	return &Cycle{
		store:         store,
		collector:     collector,
		prompt:        prompt,
		decider:       decider,
		executor:      executor,
		alerts:        alerts,
		metrics:       metrics,
		tradeFraction: tradeFraction,
		defaultWait:   defaultWait,
		logger:        logger.WithField("component", "cycle"),
	}
}

// Run loops until the context is canceled, pausing between rounds for the
// model-requested or default wait.
func (c *Cycle) Run(ctx context.Context) error {
	for {
		waitSeconds, err := c.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("Cycle failed", "error", err)
			c.alerts.Alert(ctx, "Cycle failed", err.Error(), alert.Error, nil)
			waitSeconds = c.defaultWait
		}

		c.logger.Info("Pausing until next cycle", "seconds", waitSeconds)
		timer := time.NewTimer(time.Duration(waitSeconds) * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// RunOnce executes a single round and returns the pause to apply before the
// next one.
func (c *Cycle) RunOnce(ctx context.Context) (int, error) {
	pair, err := c.store.TradingPair(ctx)
	if err != nil {
		return c.defaultWait, fmt.Errorf("failed to read trading pair: %w", err)
	}
	windows, err := c.store.DataWindows(ctx)
	if err != nil {
		return c.defaultWait, fmt.Errorf("failed to read data windows: %w", err)
	}
	slippage, err := c.store.GetSlippage(ctx)
	if err != nil {
		return c.defaultWait, fmt.Errorf("failed to read slippage: %w", err)
	}
	defaultWait, err := c.store.WaitSeconds(ctx)
	if err != nil || defaultWait <= 0 {
		defaultWait = c.defaultWait
	}

	snapshot, err := c.collector.Collect(ctx, pair, windows)
	if err != nil {
		return defaultWait, fmt.Errorf("failed to collect market data: %w", err)
	}

	promptText := c.prompt.Build(snapshot)
	c.logger.Debug("Requesting decision", "pair", pair, "provider", c.decider.Name(), "prompt_chars", len(promptText))

	start := time.Now()
	reply, err := c.decider.Decide(ctx, promptText)
	c.metrics.DecisionLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return defaultWait, fmt.Errorf("decision service failed: %w", err)
	}

	// The raw answer goes out before interpretation so operators see exactly
	// what the model said even when parsing fails
	c.alerts.Alert(ctx, "Model reply", truncate(reply, 3500), alert.Info, map[string]string{"pair": pair})

	env, commands, ok := c.interpret(ctx, reply)
	if !ok {
		// No usable envelope: report and pause, never guess at execution
		return defaultWait, nil
	}

	directives := directive.ParseAll(commands)

	rc := risk.Context{
		Price:           snapshot.Price,
		ATR:             snapshot.ATR,
		Balance:         snapshot.Balance.Available,
		MaxBuy:          snapshot.MaxSize.MaxBuy,
		MaxSell:         snapshot.MaxSize.MaxSell,
		BuySlippagePct:  slippage.BuyPct,
		SellSlippagePct: slippage.SellPct,
		TradeFraction:   c.tradeFraction,
	}

	batch := c.executor.ExecuteBatch(ctx, pair, directives, rc)
	c.metrics.CyclesTotal.Inc()

	summary := Summarize(pair, env.Rationale, batch)
	c.alerts.Alert(ctx, "Cycle summary", summary, alert.Info, map[string]string{"pair": pair})

	if batch.RequestedWait > 0 {
		return batch.RequestedWait, nil
	}
	return defaultWait, nil
}

// interpret extracts the command list from the raw model reply. A reply with
// no JSON object at all gets one more chance as a bare command string; a
// malformed or incomplete envelope does not.
func (c *Cycle) interpret(ctx context.Context, reply string) (directive.Envelope, []string, bool) {
	env, err := directive.Extract(reply)
	if err == nil {
		return env, env.Commands, true
	}

	if errors.Is(err, apperrors.ErrNoEnvelopeFound) {
		bare := strings.TrimSpace(reply)
		if d := directive.Parse(bare); d.Kind() != directive.KindUnknown {
			c.logger.Warn("Reply had no envelope, accepting bare command", "command", d.String())
			return directive.Envelope{}, []string{bare}, true
		}
	}

	c.metrics.EnvelopeFailures.Inc()
	c.logger.Error("Unusable model reply", "error", err, "reply_chars", len(reply))
	c.alerts.Alert(ctx, "Unusable model reply", err.Error(), alert.Warning, nil)
	return directive.Envelope{}, nil, false
}

// truncate keeps text under the Telegram message limit, cutting on a rune
// boundary so a multi-byte character is never split.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

// Summarize renders one cycle's outcome as notification text.
func Summarize(pair, rationale string, batch BatchResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "pair: %s\n", pair)
	if rationale != "" {
		fmt.Fprintf(&sb, "reasoning: %s\n", rationale)
	}
	if len(batch.Results) == 0 {
		sb.WriteString("no directives")
		return sb.String()
	}
	for _, r := range batch.Results {
		fmt.Fprintf(&sb, "%s -> %s", r.Directive.String(), r.Outcome)
		if r.Detail != "" {
			fmt.Fprintf(&sb, " (%s)", r.Detail)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
