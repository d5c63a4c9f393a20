package llm

import (
	"fmt"
	"strings"

	"github.com/danya2271/LocalLLMTradingBot/internal/core"
	"github.com/danya2271/LocalLLMTradingBot/internal/marketdata"
	"github.com/danya2271/LocalLLMTradingBot/internal/position"
)

// PromptBuilder assembles the decision prompt from a market snapshot. The
// command list shown to the model mirrors the grammar the parser accepts.
type PromptBuilder struct {
	TradeFractionPct int
}

const commandReference = `You are a margin trading assistant. Reply with a single JSON object:
{"reasoning": "<short explanation>", "actions": ["<COMMAND>", ...]}

Available commands:
BUY[price][quantity] - place a limit buy order
SELL[price][quantity] - place a limit sell order
BUY - open a long; entry, exits and size derive from current volatility
SELL - open a short; entry, exits and size derive from current volatility
LONG_TP_SL[entry][tp][sl][quantity] - open a long with bracket exits
SHORT_TP_SL[entry][tp][sl][quantity] - open a short with bracket exits
CANCEL[order_id] - cancel an open order
CLOSE_ALL - close every position and cancel every order
WAIT[seconds] - pause before the next decision
WAIT - pause for the default interval
HOLD - do nothing this cycle`

// Build renders the full prompt text for one cycle.
func (b *PromptBuilder) Build(s *marketdata.Snapshot) string {
	var sb strings.Builder

	sb.WriteString(commandReference)
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "=== MARKET: %s ===\n", s.Pair)
	fmt.Fprintf(&sb, "Current price: %s\n", s.Price)
	if !s.ATR.IsZero() {
		fmt.Fprintf(&sb, "ATR: %s\n", s.ATR)
	}
	sb.WriteString("\n")

	for _, bar := range []string{"1m", "5m", "15m", "1H"} {
		series, ok := s.Candles[bar]
		if !ok || len(series) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "--- %s candles (oldest first, O/H/L/C/V) ---\n", bar)
		for _, c := range series {
			fmt.Fprintf(&sb, "%s %s %s %s %s\n", c.Open, c.High, c.Low, c.Close, c.Volume)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("=== ACCOUNT ===\n")
	fmt.Fprintf(&sb, "Available balance: %s %s\n", s.Balance.Available, s.Balance.Currency)
	if !s.MaxSize.MaxBuy.IsZero() || !s.MaxSize.MaxSell.IsZero() {
		fmt.Fprintf(&sb, "Max order size: buy %s, sell %s\n", s.MaxSize.MaxBuy, s.MaxSize.MaxSell)
	}
	fmt.Fprintf(&sb, "Trade fraction: %d%% of balance per entry\n", b.TradeFractionPct)
	sb.WriteString("\n")

	writePositions(&sb, s.Positions)
	writeOrders(&sb, s.OpenOrders)

	return sb.String()
}

func writePositions(sb *strings.Builder, positions []core.Position) {
	sb.WriteString("=== POSITIONS ===\n")
	if len(positions) == 0 {
		sb.WriteString("none\n\n")
		return
	}
	for _, p := range positions {
		side := position.Resolve(p)
		fmt.Fprintf(sb, "%s side=%s size=%s avg=%s mark=%s upl=%s\n",
			p.Symbol, side, p.Size, p.AvgPrice, p.MarkPrice, p.UnrealizedPnL)
	}
	sb.WriteString("\n")
}

func writeOrders(sb *strings.Builder, orders []core.Order) {
	sb.WriteString("=== OPEN ORDERS ===\n")
	if len(orders) == 0 {
		sb.WriteString("none\n\n")
		return
	}
	for _, o := range orders {
		fmt.Fprintf(sb, "id=%s %s %s price=%s size=%s state=%s\n",
			o.ID, o.Symbol, o.Side, o.Price, o.Quantity, o.State)
	}
	sb.WriteString("\n")
}
