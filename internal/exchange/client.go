// Package exchange talks to the exchange: market data, balances, fill history and order placement.
package exchange

import (
	"context"
	"time"

	"github.com/mselser95/poloniex-ema-bot/pkg/types"
)

// Client is the exchange surface the bot depends on.
//
// Errors are either *types.TransportError (exchange unreachable, bad status, undecodable body) or
// *types.ExchangeError (the exchange answered with an error payload). Callers must check them
// before using a response.
type Client interface {
	Ticker(ctx context.Context, pair string) (types.Ticker, error)
	// ChartPrices returns weighted average prices per period since the given time, oldest first.
	ChartPrices(ctx context.Context, pair string, period time.Duration, since time.Time) ([]float64, error)
	// Balances returns the available amount per currency code.
	Balances(ctx context.Context) (map[string]float64, error)
	// OrderHistory returns the account's fills for pair since the given time, oldest first.
	OrderHistory(ctx context.Context, pair string, since time.Time) ([]types.TradeRecord, error)
	PlaceBuy(ctx context.Context, pair string, rate, amount float64) (OrderResult, error)
	PlaceSell(ctx context.Context, pair string, rate, amount float64) (OrderResult, error)
}

// OrderResult is the exchange's acknowledgement of a placed order.
type OrderResult struct {
	OrderNumber string
	// Trades holds fills reported synchronously with the order, if any.
	Trades []types.TradeRecord
}
