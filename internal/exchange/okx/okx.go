// Package okx provides the OKX exchange implementation
package okx

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/danya2271/LocalLLMTradingBot/internal/config"
	"github.com/danya2271/LocalLLMTradingBot/internal/core"
	apperrors "github.com/danya2271/LocalLLMTradingBot/pkg/errors"
	"github.com/danya2271/LocalLLMTradingBot/pkg/retry"
)

const defaultOKXURL = "https://www.okx.com"

// tdMode is fixed: the bot trades cross-margin with USDT as the margin
// currency, matching the account setup the directives assume.
const (
	tradeMode      = "cross"
	marginCurrency = "USDT"
	instTypeMargin = "MARGIN"
)

// Exchange implements core.IExchange for OKX REST v5
type Exchange struct {
	cfg     *config.ExchangeConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  core.ILogger
}

// New creates a new OKX exchange instance
func New(cfg *config.ExchangeConfig, logger core.ILogger) (*Exchange, error) {
	if cfg.BaseURL != "" && !strings.HasPrefix(cfg.BaseURL, "https://") {
		// Allow http for local testing
		if !strings.Contains(cfg.BaseURL, "127.0.0.1") && !strings.Contains(cfg.BaseURL, "localhost") {
			return nil, fmt.Errorf("okx base URL must start with https://: %s", cfg.BaseURL)
		}
	}

	return &Exchange{
		cfg:     cfg,
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		logger:  logger.WithField("component", "okx"),
	}, nil
}

func (e *Exchange) GetName() string {
	return "okx"
}

// SignRequest adds authentication headers to the request
func (e *Exchange) SignRequest(req *http.Request, body string) error {
	// Timestamp: ISO 8601, e.g. 2020-12-08T09:08:57.715Z
	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	method := req.Method
	path := req.URL.Path
	if req.URL.RawQuery != "" {
		path += "?" + req.URL.RawQuery
	}

	// message = timestamp + method + requestPath + body
	message := timestamp + method + path + body

	mac := hmac.New(sha256.New, []byte(e.cfg.SecretKey))
	mac.Write([]byte(message))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set("OK-ACCESS-KEY", e.cfg.APIKey)
	req.Header.Set("OK-ACCESS-SIGN", signature)
	req.Header.Set("OK-ACCESS-TIMESTAMP", timestamp)
	req.Header.Set("OK-ACCESS-PASSPHRASE", e.cfg.Passphrase)
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.Demo {
		req.Header.Set("x-simulated-trading", "1")
	}

	return nil
}

// parseError maps OKX response codes to standardized errors
// https://www.okx.com/docs-v5/en/#error-code-details
func parseError(code, msg string) error {
	switch code {
	case "0":
		return nil
	case "50004", "50011", "50027", "51000":
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidOrderParameter, msg)
	case "50005", "50013", "50113":
		return fmt.Errorf("%w: %s", apperrors.ErrAuthenticationFailed, msg)
	case "50014", "50061":
		return fmt.Errorf("%w: %s", apperrors.ErrRateLimitExceeded, msg)
	case "51008", "59200":
		return fmt.Errorf("%w: %s", apperrors.ErrInsufficientFunds, msg)
	case "51400", "51401", "51402", "51603":
		return fmt.Errorf("%w: %s", apperrors.ErrOrderNotFound, msg)
	case "51020":
		return fmt.Errorf("%w: %s", apperrors.ErrOrderRejected, msg)
	case "50001", "50026":
		return fmt.Errorf("%w: %s", apperrors.ErrSystemOverload, msg)
	}
	return fmt.Errorf("okx error: %s (%s)", msg, code)
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, apperrors.ErrRateLimitExceeded) ||
		errors.Is(err, apperrors.ErrSystemOverload)
}

// apiResponse is the uniform OKX v5 envelope
type apiResponse struct {
	Code string            `json:"code"`
	Msg  string            `json:"msg"`
	Data []json.RawMessage `json:"data"`
}

func (e *Exchange) baseURL() string {
	if e.cfg.BaseURL != "" {
		return e.cfg.BaseURL
	}
	return defaultOKXURL
}

// request performs one signed REST call and unwraps the OKX envelope
func (e *Exchange) request(ctx context.Context, method, path string, query url.Values, body interface{}) (*apiResponse, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var bodyStr string
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	fullURL := e.baseURL() + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, err
	}

	if err := e.SignRequest(req, bodyStr); err != nil {
		return nil, err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrNetwork, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrNetwork, err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("okx response decode failed (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := parseError(parsed.Code, parsed.Msg); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// requestWithRetry retries only transient exchange failures. Order rejections
// and other business errors surface immediately; the engine decides what to
// do with them.
func (e *Exchange) requestWithRetry(ctx context.Context, method, path string, query url.Values, body interface{}) (*apiResponse, error) {
	var resp *apiResponse
	err := retry.Do(ctx, retry.DefaultPolicy, isTransientError, func() error {
		var err error
		resp, err = e.request(ctx, method, path, query, body)
		return err
	})
	return resp, err
}

func newClientOrderID() string {
	// OKX clOrdId: alphanumeric, max 32 chars
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (e *Exchange) PlaceOrder(ctx context.Context, req core.PlaceOrderRequest) (string, error) {
	clientID := req.ClientOrderID
	if clientID == "" {
		clientID = newClientOrderID()
	}

	body := map[string]interface{}{
		"instId":  req.Symbol,
		"tdMode":  tradeMode,
		"ccy":     marginCurrency,
		"side":    string(req.Side),
		"ordType": "limit",
		"px":      req.Price.String(),
		"sz":      req.Quantity.String(),
		"clOrdId": clientID,
	}

	resp, err := e.requestWithRetry(ctx, http.MethodPost, "/api/v5/trade/order", nil, body)
	if err != nil {
		return "", err
	}

	var placed struct {
		OrdID string `json:"ordId"`
		SCode string `json:"sCode"`
		SMsg  string `json:"sMsg"`
	}
	if err := firstData(resp, &placed); err != nil {
		return "", err
	}
	// Per-order status code inside the envelope
	if placed.SCode != "" && placed.SCode != "0" {
		return "", parseError(placed.SCode, placed.SMsg)
	}
	return placed.OrdID, nil
}

func (e *Exchange) PlaceBracketOrder(ctx context.Context, req core.BracketOrderRequest) (string, error) {
	body := map[string]interface{}{
		"instId":  req.Symbol,
		"tdMode":  tradeMode,
		"ccy":     marginCurrency,
		"side":    string(req.Side),
		"ordType": "limit",
		"px":      req.Entry.String(),
		"sz":      req.Quantity.String(),
		"clOrdId": newClientOrderID(),
		"attachAlgoOrds": []map[string]interface{}{
			{
				"tpTriggerPx": req.TakeProfit.String(),
				"tpOrdPx":     "-1", // market on trigger
				"slTriggerPx": req.StopLoss.String(),
				"slOrdPx":     "-1",
			},
		},
	}

	resp, err := e.requestWithRetry(ctx, http.MethodPost, "/api/v5/trade/order", nil, body)
	if err != nil {
		return "", err
	}

	var placed struct {
		OrdID string `json:"ordId"`
		SCode string `json:"sCode"`
		SMsg  string `json:"sMsg"`
	}
	if err := firstData(resp, &placed); err != nil {
		return "", err
	}
	if placed.SCode != "" && placed.SCode != "0" {
		return "", parseError(placed.SCode, placed.SMsg)
	}
	return placed.OrdID, nil
}

func (e *Exchange) CancelOrder(ctx context.Context, symbol, orderID string) error {
	body := map[string]interface{}{
		"instId": symbol,
		"ordId":  orderID,
	}
	resp, err := e.requestWithRetry(ctx, http.MethodPost, "/api/v5/trade/cancel-order", nil, body)
	if err != nil {
		return err
	}
	return firstDataStatus(resp)
}

func (e *Exchange) CancelAlgoOrder(ctx context.Context, symbol, algoID string) error {
	body := []map[string]interface{}{
		{
			"instId": symbol,
			"algoId": algoID,
		},
	}
	resp, err := e.requestWithRetry(ctx, http.MethodPost, "/api/v5/trade/cancel-algos", nil, body)
	if err != nil {
		return err
	}
	return firstDataStatus(resp)
}

func (e *Exchange) GetOpenOrders(ctx context.Context, symbol string) ([]core.Order, error) {
	query := url.Values{}
	query.Set("instType", instTypeMargin)
	if symbol != "" {
		query.Set("instId", symbol)
	}

	resp, err := e.requestWithRetry(ctx, http.MethodGet, "/api/v5/trade/orders-pending", query, nil)
	if err != nil {
		return nil, err
	}

	orders := make([]core.Order, 0, len(resp.Data))
	for _, raw := range resp.Data {
		var o struct {
			OrdID  string `json:"ordId"`
			InstID string `json:"instId"`
			Side   string `json:"side"`
			Px     string `json:"px"`
			Sz     string `json:"sz"`
			State  string `json:"state"`
		}
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, fmt.Errorf("okx order decode failed: %w", err)
		}
		orders = append(orders, core.Order{
			ID:       o.OrdID,
			Symbol:   o.InstID,
			Side:     core.OrderSide(o.Side),
			Price:    parseDecimal(o.Px),
			Quantity: parseDecimal(o.Sz),
			State:    o.State,
		})
	}
	return orders, nil
}

func (e *Exchange) GetAlgoOrders(ctx context.Context, symbol string, algoType core.AlgoOrderType) ([]core.AlgoOrder, error) {
	// The endpoint rejects a combined type query: one call per family
	query := url.Values{}
	query.Set("ordType", string(algoType))
	if symbol != "" {
		query.Set("instId", symbol)
	}

	resp, err := e.requestWithRetry(ctx, http.MethodGet, "/api/v5/trade/orders-algo-pending", query, nil)
	if err != nil {
		return nil, err
	}

	orders := make([]core.AlgoOrder, 0, len(resp.Data))
	for _, raw := range resp.Data {
		var o struct {
			AlgoID string `json:"algoId"`
			InstID string `json:"instId"`
			Side   string `json:"side"`
			Sz     string `json:"sz"`
			State  string `json:"state"`
		}
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, fmt.Errorf("okx algo order decode failed: %w", err)
		}
		orders = append(orders, core.AlgoOrder{
			AlgoID:   o.AlgoID,
			Symbol:   o.InstID,
			Type:     algoType,
			Side:     core.OrderSide(o.Side),
			Quantity: parseDecimal(o.Sz),
			State:    o.State,
		})
	}
	return orders, nil
}

func (e *Exchange) CloseAllPositions(ctx context.Context, symbol string) error {
	body := map[string]interface{}{
		"instId":  symbol,
		"mgnMode": tradeMode,
		"ccy":     marginCurrency,
	}
	_, err := e.requestWithRetry(ctx, http.MethodPost, "/api/v5/trade/close-position", nil, body)
	return err
}

func (e *Exchange) GetPositions(ctx context.Context, symbol string) ([]core.Position, error) {
	query := url.Values{}
	query.Set("instType", instTypeMargin)
	if symbol != "" {
		query.Set("instId", symbol)
	}

	resp, err := e.requestWithRetry(ctx, http.MethodGet, "/api/v5/account/positions", query, nil)
	if err != nil {
		return nil, err
	}

	positions := make([]core.Position, 0, len(resp.Data))
	for _, raw := range resp.Data {
		var p struct {
			InstID  string `json:"instId"`
			PosSide string `json:"posSide"`
			Pos     string `json:"pos"`
			AvgPx   string `json:"avgPx"`
			MarkPx  string `json:"markPx"`
			Upl     string `json:"upl"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("okx position decode failed: %w", err)
		}

		size := parseDecimal(p.Pos)
		if size.IsZero() {
			continue
		}
		positions = append(positions, core.Position{
			Symbol:        p.InstID,
			PosSide:       p.PosSide,
			Size:          size,
			AvgPrice:      p.AvgPx,
			MarkPrice:     p.MarkPx,
			UnrealizedPnL: p.Upl,
		})
	}
	return positions, nil
}

func (e *Exchange) GetBalance(ctx context.Context, currency string) (core.Balance, error) {
	query := url.Values{}
	query.Set("ccy", currency)

	resp, err := e.requestWithRetry(ctx, http.MethodGet, "/api/v5/account/balance", query, nil)
	if err != nil {
		return core.Balance{}, err
	}

	var account struct {
		Details []struct {
			Ccy       string `json:"ccy"`
			AvailBal  string `json:"availBal"`
			FrozenBal string `json:"frozenBal"`
		} `json:"details"`
	}
	if err := firstData(resp, &account); err != nil {
		return core.Balance{}, err
	}

	for _, d := range account.Details {
		if d.Ccy == currency {
			return core.Balance{
				Currency:  d.Ccy,
				Available: parseDecimal(d.AvailBal),
				Frozen:    parseDecimal(d.FrozenBal),
			}, nil
		}
	}
	// No entry means no funds in that currency
	return core.Balance{Currency: currency}, nil
}

func (e *Exchange) GetMaxOrderSize(ctx context.Context, symbol string) (core.MaxOrderSize, error) {
	query := url.Values{}
	query.Set("instId", symbol)
	query.Set("tdMode", tradeMode)
	query.Set("ccy", marginCurrency)

	resp, err := e.requestWithRetry(ctx, http.MethodGet, "/api/v5/account/max-size", query, nil)
	if err != nil {
		return core.MaxOrderSize{}, err
	}

	var limits struct {
		MaxBuy  string `json:"maxBuy"`
		MaxSell string `json:"maxSell"`
	}
	if err := firstData(resp, &limits); err != nil {
		return core.MaxOrderSize{}, err
	}
	return core.MaxOrderSize{
		MaxBuy:  parseDecimal(limits.MaxBuy),
		MaxSell: parseDecimal(limits.MaxSell),
	}, nil
}

func (e *Exchange) GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	query := url.Values{}
	query.Set("instId", symbol)

	resp, err := e.requestWithRetry(ctx, http.MethodGet, "/api/v5/market/ticker", query, nil)
	if err != nil {
		return decimal.Zero, err
	}

	var ticker struct {
		Last string `json:"last"`
	}
	if err := firstData(resp, &ticker); err != nil {
		return decimal.Zero, err
	}

	last, err := decimal.NewFromString(ticker.Last)
	if err != nil {
		return decimal.Zero, fmt.Errorf("okx ticker price %q: %w", ticker.Last, err)
	}
	return last, nil
}

func (e *Exchange) GetCandles(ctx context.Context, symbol, bar string, limit int) ([]core.Candle, error) {
	query := url.Values{}
	query.Set("instId", symbol)
	query.Set("bar", bar)
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	resp, err := e.requestWithRetry(ctx, http.MethodGet, "/api/v5/market/candles", query, nil)
	if err != nil {
		return nil, err
	}

	// OKX returns newest-first string arrays:
	// [ts, open, high, low, close, vol, volCcy, volCcyQuote, confirm]
	candles := make([]core.Candle, 0, len(resp.Data))
	for i := len(resp.Data) - 1; i >= 0; i-- {
		var row []string
		if err := json.Unmarshal(resp.Data[i], &row); err != nil {
			return nil, fmt.Errorf("okx candle decode failed: %w", err)
		}
		if len(row) < 6 {
			return nil, fmt.Errorf("okx candle row too short: %d fields", len(row))
		}

		ms, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("okx candle timestamp %q: %w", row[0], err)
		}
		candles = append(candles, core.Candle{
			Timestamp: time.UnixMilli(ms).UTC(),
			Open:      parseDecimal(row[1]),
			High:      parseDecimal(row[2]),
			Low:       parseDecimal(row[3]),
			Close:     parseDecimal(row[4]),
			Volume:    parseDecimal(row[5]),
		})
	}
	return candles, nil
}

// firstData decodes the first element of the response data array
func firstData(resp *apiResponse, out interface{}) error {
	if len(resp.Data) == 0 {
		return fmt.Errorf("okx response carried no data")
	}
	if err := json.Unmarshal(resp.Data[0], out); err != nil {
		return fmt.Errorf("okx data decode failed: %w", err)
	}
	return nil
}

// firstDataStatus checks the per-item sCode of a mutation response
func firstDataStatus(resp *apiResponse) error {
	var status struct {
		SCode string `json:"sCode"`
		SMsg  string `json:"sMsg"`
	}
	if err := firstData(resp, &status); err != nil {
		return err
	}
	if status.SCode != "" && status.SCode != "0" {
		return parseError(status.SCode, status.SMsg)
	}
	return nil
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
