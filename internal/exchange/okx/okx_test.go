package okx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danya2271/LocalLLMTradingBot/internal/config"
	"github.com/danya2271/LocalLLMTradingBot/internal/core"
	apperrors "github.com/danya2271/LocalLLMTradingBot/pkg/errors"
	"github.com/danya2271/LocalLLMTradingBot/pkg/logging"
)

func newTestExchange(t *testing.T, handler http.HandlerFunc) (*Exchange, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger, err := logging.NewZapLogger("ERROR")
	require.NoError(t, err)

	ex, err := New(&config.ExchangeConfig{
		APIKey:     "test-key",
		SecretKey:  "test-secret",
		Passphrase: "test-phrase",
		BaseURL:    server.URL,
		Demo:       true,
	}, logger)
	require.NoError(t, err)
	return ex, server
}

func TestPlaceOrder_SignsAndParses(t *testing.T) {
	var gotBody map[string]interface{}
	ex, _ := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/trade/order", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("OK-ACCESS-KEY"))
		assert.NotEmpty(t, r.Header.Get("OK-ACCESS-SIGN"))
		assert.NotEmpty(t, r.Header.Get("OK-ACCESS-TIMESTAMP"))
		assert.Equal(t, "test-phrase", r.Header.Get("OK-ACCESS-PASSPHRASE"))
		assert.Equal(t, "1", r.Header.Get("x-simulated-trading"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"code":"0","msg":"","data":[{"ordId":"12345","sCode":"0","sMsg":""}]}`))
	})

	orderID, err := ex.PlaceOrder(context.Background(), core.PlaceOrderRequest{
		Symbol:   "BTC-USDT",
		Side:     core.SideBuy,
		Price:    decimal.RequireFromString("111535"),
		Quantity: decimal.RequireFromString("0.00006382"),
	})
	require.NoError(t, err)
	assert.Equal(t, "12345", orderID)

	assert.Equal(t, "BTC-USDT", gotBody["instId"])
	assert.Equal(t, "cross", gotBody["tdMode"])
	assert.Equal(t, "buy", gotBody["side"])
	assert.Equal(t, "limit", gotBody["ordType"])
	assert.Equal(t, "111535", gotBody["px"])
	assert.Equal(t, "0.00006382", gotBody["sz"])
	assert.NotEmpty(t, gotBody["clOrdId"])
}

func TestPlaceBracketOrder_AttachesExits(t *testing.T) {
	var gotBody map[string]interface{}
	ex, _ := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"code":"0","msg":"","data":[{"ordId":"777","sCode":"0"}]}`))
	})

	algoID, err := ex.PlaceBracketOrder(context.Background(), core.BracketOrderRequest{
		Symbol:     "BTC-USDT",
		Side:       core.SideBuy,
		Entry:      decimal.NewFromInt(100),
		TakeProfit: decimal.NewFromInt(106),
		StopLoss:   decimal.NewFromInt(97),
		Quantity:   decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	assert.Equal(t, "777", algoID)

	attached, ok := gotBody["attachAlgoOrds"].([]interface{})
	require.True(t, ok, "bracket order must carry attached exits")
	require.Len(t, attached, 1)
	exits := attached[0].(map[string]interface{})
	assert.Equal(t, "106", exits["tpTriggerPx"])
	assert.Equal(t, "97", exits["slTriggerPx"])
}

func TestCancelOrder_MapsUnknownID(t *testing.T) {
	ex, _ := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"51401","msg":"Order does not exist","data":[]}`))
	})

	err := ex.CancelOrder(context.Background(), "BTC-USDT", "nope")
	assert.ErrorIs(t, err, apperrors.ErrOrderNotFound)
}

func TestGetMaxOrderSize(t *testing.T) {
	ex, _ := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/account/max-size", r.URL.Path)
		assert.Equal(t, "BTC-USDT", r.URL.Query().Get("instId"))
		_, _ = w.Write([]byte(`{"code":"0","msg":"","data":[{"maxBuy":"1.5","maxSell":"2.5"}]}`))
	})

	limits, err := ex.GetMaxOrderSize(context.Background(), "BTC-USDT")
	require.NoError(t, err)
	assert.True(t, limits.MaxBuy.Equal(decimal.RequireFromString("1.5")))
	assert.True(t, limits.MaxSell.Equal(decimal.RequireFromString("2.5")))
}

func TestGetBalance(t *testing.T) {
	ex, _ := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"0","msg":"","data":[{"details":[
			{"ccy":"USDT","availBal":"1000.5","frozenBal":"10"},
			{"ccy":"BTC","availBal":"0.5","frozenBal":"0"}
		]}]}`))
	})

	bal, err := ex.GetBalance(context.Background(), "USDT")
	require.NoError(t, err)
	assert.Equal(t, "USDT", bal.Currency)
	assert.True(t, bal.Available.Equal(decimal.RequireFromString("1000.5")))
}

func TestGetPositions_SkipsFlat(t *testing.T) {
	ex, _ := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"0","msg":"","data":[
			{"instId":"BTC-USDT","posSide":"net","pos":"0.5","avgPx":"100","markPx":"110","upl":"5"},
			{"instId":"ETH-USDT","posSide":"net","pos":"0","avgPx":"","markPx":"","upl":""}
		]}`))
	})

	positions, err := ex.GetPositions(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, positions, 1, "flat positions are dropped")
	assert.Equal(t, "BTC-USDT", positions[0].Symbol)
	assert.Equal(t, "net", positions[0].PosSide)
	assert.Equal(t, "110", positions[0].MarkPrice)
}

func TestGetCandles_ReversesToOldestFirst(t *testing.T) {
	ex, _ := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5m", r.URL.Query().Get("bar"))
		// Newest first, as OKX sends them
		_, _ = w.Write([]byte(`{"code":"0","msg":"","data":[
			["1700000300000","101","102","100","101.5","10","0","0","1"],
			["1700000000000","100","101","99","100.5","12","0","0","1"]
		]}`))
	})

	candles, err := ex.GetCandles(context.Background(), "BTC-USDT", "5m", 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.True(t, candles[0].Timestamp.Before(candles[1].Timestamp), "candles must be oldest-first")
	assert.True(t, candles[0].Close.Equal(decimal.RequireFromString("100.5")))
}

func TestGetAlgoOrders_QueriesSingleType(t *testing.T) {
	ex, _ := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/trade/orders-algo-pending", r.URL.Path)
		assert.Equal(t, "oco", r.URL.Query().Get("ordType"))
		_, _ = w.Write([]byte(`{"code":"0","msg":"","data":[{"algoId":"a1","instId":"BTC-USDT","side":"sell","sz":"1","state":"live"}]}`))
	})

	orders, err := ex.GetAlgoOrders(context.Background(), "BTC-USDT", core.AlgoTypeOCO)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "a1", orders[0].AlgoID)
	assert.Equal(t, core.AlgoTypeOCO, orders[0].Type)
}
