package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mselser95/poloniex-ema-bot/internal/exchange"
	"github.com/mselser95/poloniex-ema-bot/pkg/types"
)

// MockExchange is a scripted exchange.Client for testing.
type MockExchange struct {
	mu sync.Mutex

	Tickers  map[string]types.Ticker
	Series   map[string][]float64
	Balance  map[string]float64
	History  map[string][]types.TradeRecord
	Now      func() time.Time
	NoFill   bool // Placed orders never show up in history

	TickerErr  error
	ChartErr   error
	BalanceErr error
	HistoryErr error
	PlaceErr   error

	placedOrders  []MockPlacedOrder
	orderCounter  int
	historyCalls  int
	balancesCalls int
	chartCalls    int
}

// MockPlacedOrder records details of a placed order for verification.
type MockPlacedOrder struct {
	Pair        string
	Side        types.Side
	Rate        float64
	Amount      float64
	OrderNumber string
}

var _ exchange.Client = (*MockExchange)(nil)

// NewMockExchange creates a mock exchange with empty books.
func NewMockExchange() *MockExchange {
	return &MockExchange{
		Tickers: make(map[string]types.Ticker),
		Series:  make(map[string][]float64),
		Balance: make(map[string]float64),
		History: make(map[string][]types.TradeRecord),
		Now:     time.Now,
	}
}

// Ticker implements exchange.Client.
func (m *MockExchange) Ticker(_ context.Context, pair string) (types.Ticker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.TickerErr != nil {
		return types.Ticker{}, m.TickerErr
	}
	t, ok := m.Tickers[pair]
	if !ok {
		return types.Ticker{}, &types.ExchangeError{Command: "returnTicker", Message: "unknown pair " + pair}
	}
	return t, nil
}

// ChartPrices implements exchange.Client.
func (m *MockExchange) ChartPrices(_ context.Context, pair string, _ time.Duration, _ time.Time) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.chartCalls++
	if m.ChartErr != nil {
		return nil, m.ChartErr
	}
	return append([]float64(nil), m.Series[pair]...), nil
}

// Balances implements exchange.Client.
func (m *MockExchange) Balances(_ context.Context) (map[string]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.balancesCalls++
	if m.BalanceErr != nil {
		return nil, m.BalanceErr
	}
	out := make(map[string]float64, len(m.Balance))
	for k, v := range m.Balance {
		out[k] = v
	}
	return out, nil
}

// OrderHistory implements exchange.Client.
func (m *MockExchange) OrderHistory(_ context.Context, pair string, since time.Time) ([]types.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.historyCalls++
	if m.HistoryErr != nil {
		return nil, m.HistoryErr
	}
	var out []types.TradeRecord
	for _, rec := range m.History[pair] {
		if !rec.Date.Before(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// PlaceBuy implements exchange.Client.
func (m *MockExchange) PlaceBuy(_ context.Context, pair string, rate, amount float64) (exchange.OrderResult, error) {
	return m.place(types.SideBuy, pair, rate, amount)
}

// PlaceSell implements exchange.Client.
func (m *MockExchange) PlaceSell(_ context.Context, pair string, rate, amount float64) (exchange.OrderResult, error) {
	return m.place(types.SideSell, pair, rate, amount)
}

func (m *MockExchange) place(side types.Side, pair string, rate, amount float64) (exchange.OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PlaceErr != nil {
		return exchange.OrderResult{}, m.PlaceErr
	}

	m.orderCounter++
	orderNumber := fmt.Sprintf("mock-order-%d", m.orderCounter)
	m.placedOrders = append(m.placedOrders, MockPlacedOrder{
		Pair:        pair,
		Side:        side,
		Rate:        rate,
		Amount:      amount,
		OrderNumber: orderNumber,
	})

	if !m.NoFill {
		rec := CreateTestTradeRecord(orderNumber, side, rate, amount, m.Now())
		m.History[pair] = append(m.History[pair], rec)
	}

	return exchange.OrderResult{OrderNumber: orderNumber}, nil
}

// GetPlacedOrders returns all orders placed during the test.
func (m *MockExchange) GetPlacedOrders() []MockPlacedOrder {
	m.mu.Lock()
	defer m.mu.Unlock()

	orders := make([]MockPlacedOrder, len(m.placedOrders))
	copy(orders, m.placedOrders)
	return orders
}

// HistoryCalls returns how many times OrderHistory was called.
func (m *MockExchange) HistoryCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.historyCalls
}

// BalancesCalls returns how many times Balances was called.
func (m *MockExchange) BalancesCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balancesCalls
}

// ChartCalls returns how many times ChartPrices was called.
func (m *MockExchange) ChartCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chartCalls
}

// SetBalance sets the available balance of one currency.
func (m *MockExchange) SetBalance(currency string, amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Balance[currency] = amount
}
