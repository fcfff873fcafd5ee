package exchange_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mselser95/poloniex-ema-bot/internal/exchange"
	"github.com/mselser95/poloniex-ema-bot/internal/testutil"
	"github.com/mselser95/poloniex-ema-bot/pkg/types"
)

func newTestPoloniex(t *testing.T) (*exchange.Poloniex, *testutil.MockPoloniexAPI) {
	t.Helper()

	api := testutil.NewMockPoloniexAPI()
	t.Cleanup(api.Close)

	client := exchange.NewPoloniex(&exchange.PoloniexConfig{
		BaseURL: api.URL + "/",
		APIKey:  "test-key",
		Secret:  "test-secret",
		Timeout: 5 * time.Second,
		Logger:  zap.NewNop(),
	})
	return client, api
}

func TestPoloniex_Ticker(t *testing.T) {
	client, api := newTestPoloniex(t)
	api.SetResponse("returnTicker", map[string]interface{}{
		"BTC_ETH": map[string]string{"last": "0.0502", "lowestAsk": "0.05025", "highestBid": "0.0501"},
		"BTC_LTC": map[string]string{"last": "0.002", "lowestAsk": "0.0021", "highestBid": "0.0019"},
	})

	ticker, err := client.Ticker(context.Background(), "BTC_ETH")
	require.NoError(t, err)
	assert.Equal(t, 0.0501, ticker.HighestBid)
	assert.Equal(t, 0.05025, ticker.LowestAsk)
	assert.Equal(t, http.MethodGet, api.LastRequest().Method)
	assert.Equal(t, "/public", api.LastRequest().URL.Path)

	_, err = client.Ticker(context.Background(), "BTC_DOGE")
	assert.True(t, types.IsExchangeError(err))
}

func TestPoloniex_ChartPrices(t *testing.T) {
	client, api := newTestPoloniex(t)
	api.SetResponse("returnChartData", `[
		{"date": 1700000000, "weightedAverage": 0.05},
		{"date": 1700000300, "weightedAverage": "0.051"},
		{"date": 1700000600, "weightedAverage": 0.052}
	]`)

	since := time.Unix(1700000000, 0)
	prices, err := client.ChartPrices(context.Background(), "BTC_ETH", 5*time.Minute, since)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.05, 0.051, 0.052}, prices)

	form := api.LastForm()
	assert.Equal(t, "BTC_ETH", form["currencyPair"])
	assert.Equal(t, "300", form["period"])
	assert.Equal(t, "1700000000", form["start"])
}

func TestPoloniex_ChartPricesEmptyRange(t *testing.T) {
	client, api := newTestPoloniex(t)
	api.SetResponse("returnChartData", `[{"date": 0, "high": 0, "weightedAverage": 0}]`)

	prices, err := client.ChartPrices(context.Background(), "BTC_ETH", 5*time.Minute, time.Now())
	require.NoError(t, err)
	assert.Empty(t, prices)
}

func TestPoloniex_BalancesSigned(t *testing.T) {
	client, api := newTestPoloniex(t)
	api.SetResponse("returnBalances", map[string]string{"BTC": "0.51234567", "ETH": "10", "LTC": "0.00000000"})

	balances, err := client.Balances(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"BTC": 0.51234567, "ETH": 10, "LTC": 0}, balances)

	req := api.LastRequest()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/tradingApi", req.URL.Path)
	assert.Equal(t, "test-key", req.Header.Get("Key"))

	form := api.LastForm()
	assert.Equal(t, "returnBalances", form["command"])
	assert.NotEmpty(t, form["nonce"])

	values := url.Values{}
	for k, v := range form {
		values.Set(k, v)
	}
	mac := hmac.New(sha512.New, []byte("test-secret"))
	mac.Write([]byte(values.Encode()))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), req.Header.Get("Sign"))
}

func TestPoloniex_NonceIncreases(t *testing.T) {
	client, api := newTestPoloniex(t)
	api.SetResponse("returnBalances", map[string]string{"BTC": "1"})

	var last int64
	for i := 0; i < 5; i++ {
		_, err := client.Balances(context.Background())
		require.NoError(t, err)

		nonce, err := strconv.ParseInt(api.LastForm()["nonce"], 10, 64)
		require.NoError(t, err)
		assert.Greater(t, nonce, last)
		last = nonce
	}
}

func TestPoloniex_OrderHistorySortedOldestFirst(t *testing.T) {
	client, api := newTestPoloniex(t)
	api.SetResponse("returnTradeHistory", `[
		{"globalTradeID": 3, "tradeID": "3", "date": "2024-03-01 12:10:00", "rate": "0.052", "amount": "1", "total": "0.052", "fee": "0.0025", "orderNumber": "300", "type": "sell", "category": "exchange"},
		{"globalTradeID": 2, "tradeID": "2", "date": "2024-03-01 12:05:00", "rate": "0.051", "amount": "2", "total": "0.102", "fee": "0.0025", "orderNumber": 200, "type": "buy", "category": "exchange"},
		{"globalTradeID": 1, "tradeID": "1", "date": "2024-03-01 12:00:00", "rate": "0.05", "amount": "1", "total": "0.05", "fee": "0.0025", "orderNumber": "100", "type": "buy", "category": "exchange"}
	]`)

	records, err := client.OrderHistory(context.Background(), "BTC_ETH", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "100", records[0].OrderNumber)
	assert.Equal(t, "200", records[1].OrderNumber)
	assert.Equal(t, "300", records[2].OrderNumber)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), records[0].Date)
	assert.Equal(t, types.SideBuy, records[0].Type)
	assert.Equal(t, "0.102", records[1].Total)
	assert.Equal(t, types.SideSell, records[2].Type)

	assert.Equal(t, "returnTradeHistory", api.LastForm()["command"])
	assert.Equal(t, "BTC_ETH", api.LastForm()["currencyPair"])
}

func TestPoloniex_OrderHistorySameSecondKeepsExecutionOrder(t *testing.T) {
	client, api := newTestPoloniex(t)
	api.SetResponse("returnTradeHistory", `[
		{"globalTradeID": 13, "tradeID": "13", "date": "2024-03-01 12:05:00", "rate": "0.053", "amount": "1", "total": "0.053", "orderNumber": "103", "type": "buy"},
		{"globalTradeID": 12, "tradeID": "12", "date": "2024-03-01 12:00:00", "rate": "0.052", "amount": "1", "total": "0.052", "orderNumber": "102", "type": "buy"},
		{"globalTradeID": 11, "tradeID": "11", "date": "2024-03-01 12:00:00", "rate": "0.051", "amount": "1", "total": "0.051", "orderNumber": "101", "type": "buy"},
		{"globalTradeID": 10, "tradeID": "10", "date": "2024-03-01 12:00:00", "rate": "0.050", "amount": "1", "total": "0.050", "orderNumber": "100", "type": "buy"}
	]`)

	records, err := client.OrderHistory(context.Background(), "BTC_ETH", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, records, 4)

	got := make([]string, 0, len(records))
	for _, r := range records {
		got = append(got, r.OrderNumber)
	}
	assert.Equal(t, []string{"100", "101", "102", "103"}, got)
}

func TestPoloniex_OrderHistoryBadDate(t *testing.T) {
	client, api := newTestPoloniex(t)
	api.SetResponse("returnTradeHistory", `[{"date": "yesterday", "rate": "1", "amount": "1", "total": "1", "type": "buy", "orderNumber": "1"}]`)

	_, err := client.OrderHistory(context.Background(), "BTC_ETH", time.Now())
	assert.True(t, types.IsTransportError(err))
}

func TestPoloniex_PlaceOrders(t *testing.T) {
	client, api := newTestPoloniex(t)
	api.SetResponse("buy", `{"orderNumber": 31226040, "resultingTrades": [
		{"amount": "1.5", "date": "2024-03-01 12:00:00", "rate": "0.05", "total": "0.075", "tradeID": "16164", "type": "buy"}
	]}`)
	api.SetResponse("sell", `{"orderNumber": "31226041", "resultingTrades": []}`)

	res, err := client.PlaceBuy(context.Background(), "BTC_ETH", 0.05, 1.5)
	require.NoError(t, err)
	assert.Equal(t, "31226040", res.OrderNumber)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, "31226040", res.Trades[0].OrderNumber)
	assert.Equal(t, "0.075", res.Trades[0].Total)

	form := api.LastForm()
	assert.Equal(t, "buy", form["command"])
	assert.Equal(t, "0.05000000", form["rate"])
	assert.Equal(t, "1.50000000", form["amount"])

	res, err = client.PlaceSell(context.Background(), "BTC_ETH", 0.06, 0.123456789)
	require.NoError(t, err)
	assert.Equal(t, "31226041", res.OrderNumber)
	assert.Empty(t, res.Trades)
	assert.Equal(t, "0.12345679", api.LastForm()["amount"])
}

func TestPoloniex_Errors(t *testing.T) {
	tests := []struct {
		name          string
		body          interface{}
		status        int
		wantExchange  bool
		wantTransport bool
	}{
		{name: "error-payload", body: `{"error": "Not enough BTC."}`, wantExchange: true},
		{name: "error-payload-with-4xx", body: `{"error": "Invalid API key/secret pair."}`, status: http.StatusForbidden, wantExchange: true},
		{name: "server-error", body: `<html>bad gateway</html>`, status: http.StatusBadGateway, wantTransport: true},
		{name: "malformed-body", body: `{"orderNumber": [}`, wantTransport: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, api := newTestPoloniex(t)
			api.SetResponse("sell", tt.body)
			if tt.status != 0 {
				api.SetStatus("sell", tt.status)
			}

			_, err := client.PlaceSell(context.Background(), "BTC_ETH", 0.05, 1)
			require.Error(t, err)
			assert.Equal(t, tt.wantExchange, types.IsExchangeError(err))
			assert.Equal(t, tt.wantTransport, types.IsTransportError(err))
		})
	}
}

func TestPoloniex_Unreachable(t *testing.T) {
	client, api := newTestPoloniex(t)
	api.Close()

	_, err := client.Ticker(context.Background(), "BTC_ETH")
	require.Error(t, err)

	var te *types.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "returnTicker", te.Command)
	assert.Zero(t, te.Status)
}
