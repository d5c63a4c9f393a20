// Package directive turns raw decision-service output into typed trading
// instructions. Extraction (finding the JSON envelope in free text) and
// parsing (matching one command string against the grammar) are both pure:
// same input, same result, no I/O.
package directive

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind tags a directive variant
type Kind string

const (
	KindBuy        Kind = "buy"
	KindSell       Kind = "sell"
	KindEnterLong  Kind = "enter_long"
	KindEnterShort Kind = "enter_short"
	KindOpenLong   Kind = "open_long"
	KindOpenShort  Kind = "open_short"
	KindCancel     Kind = "cancel"
	KindWait       Kind = "wait"
	KindCloseAll   Kind = "close_all"
	KindHold       Kind = "hold"
	KindUnknown    Kind = "unknown"
)

// Reason classifies why a command string failed to parse
type Reason string

const (
	ReasonNoGrammarMatch      Reason = "no-grammar-match"
	ReasonInvalidNumberFormat Reason = "invalid-number-format"
)

// Directive is one parsed trading instruction
type Directive interface {
	Kind() Kind
	String() string
}

// Buy is a limit buy intent. Pair may be empty when the grammar form without
// an instrument was used; the caller's configured pair applies then.
type Buy struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Pair     string
}

func (Buy) Kind() Kind { return KindBuy }

func (d Buy) String() string {
	if d.Pair == "" {
		return fmt.Sprintf("BUY[%s][%s]", d.Price, d.Quantity)
	}
	return fmt.Sprintf("BUY[%s][%s][%s]", d.Price, d.Quantity, d.Pair)
}

// Sell is a limit sell intent
type Sell struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Pair     string
}

func (Sell) Kind() Kind { return KindSell }

func (d Sell) String() string {
	if d.Pair == "" {
		return fmt.Sprintf("SELL[%s][%s]", d.Price, d.Quantity)
	}
	return fmt.Sprintf("SELL[%s][%s][%s]", d.Price, d.Quantity, d.Pair)
}

// EnterLong is a side-only long entry: the bare BUY word with no price or
// size. Entry, exits and quantity all derive from market volatility downstream.
type EnterLong struct{}

func (EnterLong) Kind() Kind { return KindEnterLong }

func (EnterLong) String() string { return "BUY" }

// EnterShort is a side-only short entry, the bare SELL word
type EnterShort struct{}

func (EnterShort) Kind() Kind { return KindEnterShort }

func (EnterShort) String() string { return "SELL" }

// OpenLong is a bracketed long entry with attached exits
type OpenLong struct {
	Entry      decimal.Decimal
	TakeProfit decimal.Decimal
	StopLoss   decimal.Decimal
	Quantity   decimal.Decimal
}

func (OpenLong) Kind() Kind { return KindOpenLong }

func (d OpenLong) String() string {
	return fmt.Sprintf("LONG_TP_SL[%s][%s][%s][%s]", d.Entry, d.TakeProfit, d.StopLoss, d.Quantity)
}

// OpenShort is a bracketed short entry with attached exits
type OpenShort struct {
	Entry      decimal.Decimal
	TakeProfit decimal.Decimal
	StopLoss   decimal.Decimal
	Quantity   decimal.Decimal
}

func (OpenShort) Kind() Kind { return KindOpenShort }

func (d OpenShort) String() string {
	return fmt.Sprintf("SHORT_TP_SL[%s][%s][%s][%s]", d.Entry, d.TakeProfit, d.StopLoss, d.Quantity)
}

// Cancel requests cancellation by identifier. Whether the id names a standard
// or an algorithmic order is unknown a priori.
type Cancel struct {
	ID   string
	Pair string
}

func (Cancel) Kind() Kind { return KindCancel }

func (d Cancel) String() string {
	if d.Pair == "" {
		return fmt.Sprintf("CANCEL[%s]", d.ID)
	}
	return fmt.Sprintf("CANCEL[%s][%s]", d.ID, d.Pair)
}

// Wait asks the caller to pause before the next cycle
type Wait struct {
	Seconds int
}

func (Wait) Kind() Kind { return KindWait }

func (d Wait) String() string { return fmt.Sprintf("WAIT[%d]", d.Seconds) }

// CloseAll liquidates every open order and position
type CloseAll struct{}

func (CloseAll) Kind() Kind { return KindCloseAll }

func (CloseAll) String() string { return "CLOSE_ALL" }

// Hold is an explicit no-op
type Hold struct{}

func (Hold) Kind() Kind { return KindHold }

func (Hold) String() string { return "HOLD" }

// Unknown is the terminal classification for anything outside the grammar
type Unknown struct {
	RawText string
	Reason  Reason
}

func (Unknown) Kind() Kind { return KindUnknown }

func (d Unknown) String() string {
	return fmt.Sprintf("UNKNOWN(%s: %q)", d.Reason, d.RawText)
}
