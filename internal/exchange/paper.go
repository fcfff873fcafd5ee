package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mselser95/poloniex-ema-bot/pkg/types"
)

// Paper simulates the trading half of the exchange in memory. Market data comes from a wrapped
// client; orders fill immediately and in full at their limit rate.
type Paper struct {
	market Client
	fee    decimal.Decimal
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	balances map[string]decimal.Decimal
	history  map[string][]types.TradeRecord
}

// PaperConfig holds configuration for the paper exchange.
type PaperConfig struct {
	Market   Client
	Balances map[string]float64
	Fee      float64 // Charged on the received currency
	Logger   *zap.Logger
}

// NewPaper creates a paper exchange seeded with the given balances.
func NewPaper(cfg *PaperConfig) *Paper {
	balances := make(map[string]decimal.Decimal, len(cfg.Balances))
	for currency, amount := range cfg.Balances {
		balances[currency] = decimal.NewFromFloat(amount)
	}

	return &Paper{
		market:   cfg.Market,
		fee:      decimal.NewFromFloat(cfg.Fee),
		logger:   cfg.Logger,
		now:      time.Now,
		balances: balances,
		history:  make(map[string][]types.TradeRecord),
	}
}

// Ticker implements Client.
func (p *Paper) Ticker(ctx context.Context, pair string) (types.Ticker, error) {
	return p.market.Ticker(ctx, pair)
}

// ChartPrices implements Client.
func (p *Paper) ChartPrices(ctx context.Context, pair string, period time.Duration, since time.Time) ([]float64, error) {
	return p.market.ChartPrices(ctx, pair, period, since)
}

// Balances implements Client.
func (p *Paper) Balances(_ context.Context) (map[string]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]float64, len(p.balances))
	for currency, amount := range p.balances {
		out[currency] = amount.InexactFloat64()
	}
	return out, nil
}

// OrderHistory implements Client.
func (p *Paper) OrderHistory(_ context.Context, pair string, since time.Time) ([]types.TradeRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []types.TradeRecord
	for _, rec := range p.history[pair] {
		if !rec.Date.Before(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// PlaceBuy implements Client.
func (p *Paper) PlaceBuy(_ context.Context, pair string, rate, amount float64) (OrderResult, error) {
	return p.fill(types.SideBuy, pair, rate, amount)
}

// PlaceSell implements Client.
func (p *Paper) PlaceSell(_ context.Context, pair string, rate, amount float64) (OrderResult, error) {
	return p.fill(types.SideSell, pair, rate, amount)
}

func (p *Paper) fill(side types.Side, pair string, rate, amount float64) (OrderResult, error) {
	command := string(side)
	main, alt := types.SplitPair(pair)
	if alt == "" {
		return OrderResult{}, &types.ExchangeError{Command: command, Message: "Invalid currency pair."}
	}

	r := decimal.NewFromFloat(rate)
	a := decimal.NewFromFloat(amount)
	if !r.IsPositive() || !a.IsPositive() {
		PaperOrdersTotal.WithLabelValues(command, "rejected").Inc()
		return OrderResult{}, &types.ExchangeError{Command: command, Message: "Invalid rate or amount."}
	}
	total := r.Mul(a)

	p.mu.Lock()
	defer p.mu.Unlock()

	var fee decimal.Decimal
	switch side {
	case types.SideBuy:
		if p.balances[main].LessThan(total) {
			PaperOrdersTotal.WithLabelValues(command, "rejected").Inc()
			return OrderResult{}, &types.ExchangeError{Command: command, Message: fmt.Sprintf("Not enough %s.", main)}
		}
		fee = a.Mul(p.fee)
		p.balances[main] = p.balances[main].Sub(total)
		p.balances[alt] = p.balances[alt].Add(a.Sub(fee))
	default:
		if p.balances[alt].LessThan(a) {
			PaperOrdersTotal.WithLabelValues(command, "rejected").Inc()
			return OrderResult{}, &types.ExchangeError{Command: command, Message: fmt.Sprintf("Not enough %s.", alt)}
		}
		fee = total.Mul(p.fee)
		p.balances[alt] = p.balances[alt].Sub(a)
		p.balances[main] = p.balances[main].Add(total.Sub(fee))
	}

	rec := types.TradeRecord{
		OrderNumber: uuid.New().String(),
		Date:        p.now().UTC(),
		Rate:        r.String(),
		Amount:      a.String(),
		Total:       total.String(),
		Fee:         fee.String(),
		Type:        side,
	}
	p.history[pair] = append(p.history[pair], rec)

	PaperOrdersTotal.WithLabelValues(command, "filled").Inc()
	p.logger.Info("paper-order-filled",
		zap.String("pair", pair),
		zap.String("side", command),
		zap.String("order-number", rec.OrderNumber),
		zap.String("rate", rec.Rate),
		zap.String("amount", rec.Amount))

	return OrderResult{OrderNumber: rec.OrderNumber, Trades: []types.TradeRecord{rec}}, nil
}
