package alert

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danya2271/LocalLLMTradingBot/internal/settings"
	"github.com/danya2271/LocalLLMTradingBot/pkg/logging"
)

func newTestPoller(t *testing.T) (*Poller, settings.Store) {
	t.Helper()
	store, err := settings.OpenSQLiteStore(filepath.Join(t.TempDir(), "settings.db"), settings.Defaults{
		TradingPair: "BTC-USDT",
		Slippage: settings.Slippage{
			BuyPct:  decimal.RequireFromString("0.1"),
			SellPct: decimal.RequireFromString("0.2"),
		},
		WaitSeconds: 150,
		DataWindows: map[string]int{"1m": 40, "5m": 20},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger, err := logging.NewZapLogger("ERROR")
	require.NoError(t, err)

	poller := NewPoller("token", []int64{42}, 1, "http://127.0.0.1:1", nil, store, logger)
	return poller, store
}

func TestPoller_PairCommand(t *testing.T) {
	poller, store := newTestPoller(t)
	ctx := context.Background()

	reply := poller.execCommand(ctx, "/pair eth-usdt")
	assert.Equal(t, "trading pair set to ETH-USDT", reply)

	pair, err := store.TradingPair(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ETH-USDT", pair)
}

func TestPoller_SlippageCommand(t *testing.T) {
	poller, store := newTestPoller(t)
	ctx := context.Background()

	reply := poller.execCommand(ctx, "/slippage 0.5 0.7")
	assert.Contains(t, reply, "slippage set to")

	sl, err := store.GetSlippage(ctx)
	require.NoError(t, err)
	assert.True(t, sl.BuyPct.Equal(decimal.RequireFromString("0.5")))
	assert.True(t, sl.SellPct.Equal(decimal.RequireFromString("0.7")))

	assert.Equal(t, "slippage values must be numbers", poller.execCommand(ctx, "/slippage a b"))
	assert.Equal(t, "usage: /slippage <buy_pct> <sell_pct>", poller.execCommand(ctx, "/slippage 0.5"))
}

func TestPoller_WaitCommand(t *testing.T) {
	poller, store := newTestPoller(t)
	ctx := context.Background()

	assert.Equal(t, "default wait set to 600s", poller.execCommand(ctx, "/wait 600"))
	seconds, err := store.WaitSeconds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 600, seconds)

	// Store rejects negatives; the reply surfaces it
	assert.Contains(t, poller.execCommand(ctx, "/wait -5"), "error:")
}

func TestPoller_WindowsCommand(t *testing.T) {
	poller, store := newTestPoller(t)
	ctx := context.Background()

	assert.Equal(t, "data windows updated", poller.execCommand(ctx, "/windows 1m=10 1H=0"))
	windows, err := store.DataWindows(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"1m": 10, "1H": 0}, windows)

	assert.Equal(t, "each window must be <bar>=<count>", poller.execCommand(ctx, "/windows 1m"))
}

func TestPoller_StatusAndUnknown(t *testing.T) {
	poller, _ := newTestPoller(t)
	ctx := context.Background()

	status := poller.execCommand(ctx, "/status")
	assert.Contains(t, status, "pair: BTC-USDT")
	assert.Contains(t, status, "wait: 150s")
	assert.Contains(t, status, "1m=40")

	assert.Contains(t, poller.execCommand(ctx, "/reboot"), "unknown command")
}
