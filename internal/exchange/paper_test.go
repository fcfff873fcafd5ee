package exchange_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mselser95/poloniex-ema-bot/internal/exchange"
	"github.com/mselser95/poloniex-ema-bot/internal/position"
	"github.com/mselser95/poloniex-ema-bot/internal/testutil"
	"github.com/mselser95/poloniex-ema-bot/pkg/types"
)

func newTestPaper(t *testing.T) (*exchange.Paper, *testutil.MockExchange) {
	t.Helper()

	market := testutil.NewMockExchange()
	market.Tickers["BTC_ETH"] = types.Ticker{HighestBid: 0.05, LowestAsk: 0.051}
	market.Series["BTC_ETH"] = []float64{0.049, 0.05}

	paper := exchange.NewPaper(&exchange.PaperConfig{
		Market:   market,
		Balances: map[string]float64{"BTC": 1, "ETH": 10},
		Fee:      0.0025,
		Logger:   zap.NewNop(),
	})
	return paper, market
}

func TestPaper_MarketDataPassesThrough(t *testing.T) {
	paper, market := newTestPaper(t)

	ticker, err := paper.Ticker(context.Background(), "BTC_ETH")
	require.NoError(t, err)
	assert.Equal(t, 0.05, ticker.HighestBid)

	prices, err := paper.ChartPrices(context.Background(), "BTC_ETH", 5*time.Minute, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []float64{0.049, 0.05}, prices)
	assert.Equal(t, 1, market.ChartCalls())
}

func TestPaper_BuyMovesBalances(t *testing.T) {
	paper, _ := newTestPaper(t)
	ctx := context.Background()

	res, err := paper.PlaceBuy(ctx, "BTC_ETH", 0.05, 2)
	require.NoError(t, err)
	assert.NotEmpty(t, res.OrderNumber)
	require.Len(t, res.Trades, 1)

	balances, err := paper.Balances(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, balances["BTC"], 1e-12)
	assert.InDelta(t, 10+2*(1-0.0025), balances["ETH"], 1e-12)

	history, err := paper.OrderHistory(ctx, "BTC_ETH", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, res.OrderNumber, history[0].OrderNumber)

	fill, err := position.FromRecord(history[0], "BTC_ETH")
	require.NoError(t, err)
	assert.InDelta(t, -0.1, fill.Value, 1e-12)
	assert.InDelta(t, 2, fill.Quantity, 1e-12)
}

func TestPaper_SellMovesBalances(t *testing.T) {
	paper, _ := newTestPaper(t)
	ctx := context.Background()

	_, err := paper.PlaceSell(ctx, "BTC_ETH", 0.05, 4)
	require.NoError(t, err)

	balances, err := paper.Balances(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 6, balances["ETH"], 1e-12)
	assert.InDelta(t, 1+0.2*(1-0.0025), balances["BTC"], 1e-12)
}

func TestPaper_Rejections(t *testing.T) {
	paper, _ := newTestPaper(t)
	ctx := context.Background()

	_, err := paper.PlaceBuy(ctx, "BTC_ETH", 0.05, 100)
	assert.True(t, types.IsExchangeError(err))

	_, err = paper.PlaceSell(ctx, "BTC_ETH", 0.05, 11)
	assert.True(t, types.IsExchangeError(err))

	_, err = paper.PlaceSell(ctx, "BTC_ETH", 0, 1)
	assert.True(t, types.IsExchangeError(err))

	_, err = paper.PlaceBuy(ctx, "BTCETH", 0.05, 1)
	assert.True(t, types.IsExchangeError(err))

	history, err := paper.OrderHistory(ctx, "BTC_ETH", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, history)

	balances, err := paper.Balances(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, balances["BTC"])
	assert.Equal(t, 10.0, balances["ETH"])
}

func TestPaper_HistoryRespectsSince(t *testing.T) {
	paper, _ := newTestPaper(t)
	ctx := context.Background()

	_, err := paper.PlaceBuy(ctx, "BTC_ETH", 0.05, 1)
	require.NoError(t, err)

	history, err := paper.OrderHistory(ctx, "BTC_ETH", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, history)

	history, err = paper.OrderHistory(ctx, "BTC_LTC", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, history)
}
