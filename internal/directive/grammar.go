package directive

import (
	"regexp"
	"strconv"

	"github.com/shopspring/decimal"
)

// rule pairs a grammar pattern with its constructor. Rules are evaluated in
// order and the first match wins, so the forms carrying an instrument pair
// must come before their pair-less twins.
type rule struct {
	pattern *regexp.Regexp
	build   func(raw string, groups []string) Directive
}

var grammar = []rule{
	{
		pattern: regexp.MustCompile(`^(BUY|SELL)\[([\d.]+)\]\[([\d.]+)\]\[([A-Z0-9-]+)\]$`),
		build: func(raw string, g []string) Directive {
			price, err1 := decimal.NewFromString(g[2])
			qty, err2 := decimal.NewFromString(g[3])
			if err1 != nil || err2 != nil {
				return Unknown{RawText: raw, Reason: ReasonInvalidNumberFormat}
			}
			if g[1] == "BUY" {
				return Buy{Price: price, Quantity: qty, Pair: g[4]}
			}
			return Sell{Price: price, Quantity: qty, Pair: g[4]}
		},
	},
	{
		pattern: regexp.MustCompile(`^(BUY|SELL)\[([\d.]+)\]\[([\d.]+)\]$`),
		build: func(raw string, g []string) Directive {
			price, err1 := decimal.NewFromString(g[2])
			qty, err2 := decimal.NewFromString(g[3])
			if err1 != nil || err2 != nil {
				return Unknown{RawText: raw, Reason: ReasonInvalidNumberFormat}
			}
			if g[1] == "BUY" {
				return Buy{Price: price, Quantity: qty}
			}
			return Sell{Price: price, Quantity: qty}
		},
	},
	{
		pattern: regexp.MustCompile(`^(LONG|SHORT)_TP_SL\[([\d.]+)\]\[([\d.]+)\]\[([\d.]+)\]\[([\d.]+)\]$`),
		build: func(raw string, g []string) Directive {
			entry, err1 := decimal.NewFromString(g[2])
			tp, err2 := decimal.NewFromString(g[3])
			sl, err3 := decimal.NewFromString(g[4])
			qty, err4 := decimal.NewFromString(g[5])
			if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
				return Unknown{RawText: raw, Reason: ReasonInvalidNumberFormat}
			}
			if g[1] == "LONG" {
				return OpenLong{Entry: entry, TakeProfit: tp, StopLoss: sl, Quantity: qty}
			}
			return OpenShort{Entry: entry, TakeProfit: tp, StopLoss: sl, Quantity: qty}
		},
	},
	{
		pattern: regexp.MustCompile(`^CANCEL\[(\w+)\]\[([A-Z0-9-]+)\]$`),
		build: func(raw string, g []string) Directive {
			return Cancel{ID: g[1], Pair: g[2]}
		},
	},
	{
		pattern: regexp.MustCompile(`^CANCEL\[(\w+)\]$`),
		build: func(raw string, g []string) Directive {
			return Cancel{ID: g[1]}
		},
	},
	{
		pattern: regexp.MustCompile(`^WAIT\[(\d+)\]$`),
		build: func(raw string, g []string) Directive {
			secs, err := strconv.Atoi(g[1])
			if err != nil {
				// \d+ can still overflow int
				return Unknown{RawText: raw, Reason: ReasonInvalidNumberFormat}
			}
			return Wait{Seconds: secs}
		},
	},
	{
		// Bare side words: the single-decision form with no parameters.
		// Pricing and sizing come from the volatility policy downstream.
		pattern: regexp.MustCompile(`^(BUY|SELL)$`),
		build: func(raw string, g []string) Directive {
			if g[1] == "BUY" {
				return EnterLong{}
			}
			return EnterShort{}
		},
	},
	{
		// Bare WAIT defers to the configured default pause
		pattern: regexp.MustCompile(`^WAIT$`),
		build: func(raw string, g []string) Directive {
			return Wait{Seconds: 0}
		},
	},
	{
		pattern: regexp.MustCompile(`^CLOSE_ALL$`),
		build: func(raw string, g []string) Directive {
			return CloseAll{}
		},
	},
	{
		pattern: regexp.MustCompile(`^HOLD$`),
		build: func(raw string, g []string) Directive {
			return Hold{}
		},
	},
}
