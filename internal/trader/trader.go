// Package trader runs the decision cycle for one currency pair.
package trader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mselser95/poloniex-ema-bot/internal/exchange"
	"github.com/mselser95/poloniex-ema-bot/internal/execution"
	"github.com/mselser95/poloniex-ema-bot/internal/position"
	"github.com/mselser95/poloniex-ema-bot/internal/signal"
	"github.com/mselser95/poloniex-ema-bot/internal/storage"
	"github.com/mselser95/poloniex-ema-bot/internal/strategy"
	"github.com/mselser95/poloniex-ema-bot/pkg/types"
)

// Config holds trader configuration.
type Config struct {
	Pair       string // MAIN_ALT, e.g. BTC_ETH
	Strategy   strategy.Strategy
	Aggregator position.Aggregator
	Reserves   execution.Reserves

	HistoryWindow time.Duration // Base order history look-back, grows with uptime
	ChartPeriod   time.Duration
	ChartWindow   time.Duration

	Client   exchange.Client
	Executor *execution.Executor
	Storage  storage.Storage // Optional
	Logger   *zap.Logger
	Now      func() time.Time // Defaults to time.Now
}

// Report is the result of one completed cycle.
type Report struct {
	Decision *types.DecisionRecord
	Position position.Position
	Action   strategy.Action
	Result   execution.Result
}

// Status is a snapshot of a trader for the HTTP API.
type Status struct {
	Pair         string                `json:"pair"`
	Strategy     string                `json:"strategy"`
	Cycles       int                   `json:"cycles"`
	Errors       int                   `json:"errors"`
	LastError    string                `json:"last_error,omitempty"`
	LastDecision *types.DecisionRecord `json:"last_decision,omitempty"`
}

// Trader evaluates and acts on one pair. Cycle must not run concurrently with itself;
// Status may be called from any goroutine.
type Trader struct {
	cfg       Config
	main, alt string
	now       func() time.Time
	startedAt time.Time
	logger    *zap.Logger

	mu          sync.RWMutex
	cycles      int
	aborted     int
	lastOutcome types.Outcome
	lastErr     error
	last        *types.DecisionRecord
}

// New creates a new trader.
func New(cfg *Config) (*Trader, error) {
	main, alt := types.SplitPair(cfg.Pair)
	if main == "" || alt == "" {
		return nil, fmt.Errorf("invalid pair %q: want MAIN_ALT", cfg.Pair)
	}
	if cfg.Strategy == nil {
		return nil, errors.New("strategy is required")
	}
	if cfg.Client == nil || cfg.Executor == nil {
		return nil, errors.New("exchange client and executor are required")
	}
	if cfg.ChartPeriod <= 0 || cfg.ChartWindow < cfg.ChartPeriod {
		return nil, fmt.Errorf("chart window %s must cover at least one period of %s", cfg.ChartWindow, cfg.ChartPeriod)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Trader{
		cfg:       *cfg,
		main:      main,
		alt:       alt,
		now:       now,
		startedAt: now(),
		logger:    cfg.Logger.With(zap.String("pair", cfg.Pair)),
	}, nil
}

// Pair returns the traded pair.
func (t *Trader) Pair() string { return t.cfg.Pair }

// Cycle runs one decision cycle: rebuild the position from order history, compute the signal,
// evaluate the strategy, execute the resulting action and record the decision.
// An error means the cycle was aborted before a decision was made.
func (t *Trader) Cycle(ctx context.Context) (Report, error) {
	start := t.now()
	defer func() {
		CycleDurationSeconds.WithLabelValues(t.cfg.Pair).Observe(time.Since(start).Seconds())
	}()

	in, pos, err := t.gather(ctx, start)
	if err != nil {
		t.fail(err)
		return Report{}, err
	}

	act := t.cfg.Strategy.Evaluate(in)
	res := t.cfg.Executor.Execute(ctx, execution.Request{
		Pair:     t.cfg.Pair,
		Action:   act,
		Balances: execution.Balances{Main: in.MainBalance, Alt: in.AltBalance},
		Reserves: t.cfg.Reserves,
	})

	rec := t.record(start, in, act, res)
	if t.cfg.Storage != nil {
		if err := t.cfg.Storage.StoreDecision(ctx, rec); err != nil {
			t.logger.Error("failed-to-store-decision",
				zap.String("decision-id", rec.ID),
				zap.Error(err))
		}
	}

	CyclesTotal.WithLabelValues(t.cfg.Pair, string(res.Outcome)).Inc()
	if act.ProfitPercent != 0 {
		ProfitPercent.WithLabelValues(t.cfg.Pair).Set(act.ProfitPercent)
	}

	t.mu.Lock()
	prev := t.lastOutcome
	t.cycles++
	t.lastOutcome = res.Outcome
	t.lastErr = nil
	t.last = rec
	t.mu.Unlock()

	t.logOutcome(prev, rec, res)

	return Report{Decision: rec, Position: pos, Action: act, Result: res}, nil
}

// gather fetches everything the strategy needs for one cycle.
func (t *Trader) gather(ctx context.Context, now time.Time) (strategy.Inputs, position.Position, error) {
	balances, err := t.cfg.Client.Balances(ctx)
	if err != nil {
		CycleErrorsTotal.WithLabelValues(t.cfg.Pair, "balances").Inc()
		return strategy.Inputs{}, position.Position{}, fmt.Errorf("fetch balances: %w", err)
	}
	mainBalance, altBalance := balances[t.main], balances[t.alt]

	since := now.Add(-(t.cfg.HistoryWindow + now.Sub(t.startedAt)))
	records, err := t.cfg.Client.OrderHistory(ctx, t.cfg.Pair, since)
	if err != nil {
		CycleErrorsTotal.WithLabelValues(t.cfg.Pair, "history").Inc()
		return strategy.Inputs{}, position.Position{}, fmt.Errorf("fetch order history: %w", err)
	}
	fills, err := position.FromRecords(records, t.cfg.Pair)
	if err != nil {
		CycleErrorsTotal.WithLabelValues(t.cfg.Pair, "history").Inc()
		return strategy.Inputs{}, position.Position{}, fmt.Errorf("normalize order history: %w", err)
	}
	FillsInWindow.WithLabelValues(t.cfg.Pair).Set(float64(len(fills)))
	pos := t.cfg.Aggregator.Aggregate(fills, altBalance)

	ticker, err := t.cfg.Client.Ticker(ctx, t.cfg.Pair)
	if err != nil {
		CycleErrorsTotal.WithLabelValues(t.cfg.Pair, "ticker").Inc()
		return strategy.Inputs{}, position.Position{}, fmt.Errorf("fetch ticker: %w", err)
	}

	series, err := t.cfg.Client.ChartPrices(ctx, t.cfg.Pair, t.cfg.ChartPeriod, now.Add(-t.cfg.ChartWindow))
	if err != nil {
		CycleErrorsTotal.WithLabelValues(t.cfg.Pair, "chart").Inc()
		return strategy.Inputs{}, position.Position{}, fmt.Errorf("fetch chart data: %w", err)
	}

	sig, sigErr := signal.Generate(series, ticker.HighestBid, ticker.LowestAsk)
	if sigErr != nil {
		t.logger.Debug("signal-unavailable",
			zap.Int("series-length", len(series)),
			zap.Error(sigErr))
	}

	t.logger.Debug("cycle-inputs",
		zap.Float64("main-balance", mainBalance),
		zap.Float64("alt-balance", altBalance),
		zap.Int("fills", len(fills)),
		zap.Bool("position-canceled", pos.Canceled),
		zap.Float64("highest-bid", ticker.HighestBid),
		zap.Float64("lowest-ask", ticker.LowestAsk),
		zap.Float64("ema1", sig.EMA1),
		zap.Float64("ema2", sig.EMA2))

	return strategy.Inputs{
		Pair:        t.cfg.Pair,
		Signal:      sig,
		SignalErr:   sigErr,
		HighestBid:  ticker.HighestBid,
		LowestAsk:   ticker.LowestAsk,
		Position:    pos,
		MainBalance: mainBalance,
		AltBalance:  altBalance,
	}, pos, nil
}

func (t *Trader) record(at time.Time, in strategy.Inputs, act strategy.Action, res execution.Result) *types.DecisionRecord {
	rec := &types.DecisionRecord{
		ID:            uuid.New().String(),
		Pair:          t.cfg.Pair,
		EvaluatedAt:   at.UTC(),
		Strategy:      t.cfg.Strategy.Name(),
		HighestBid:    in.HighestBid,
		LowestAsk:     in.LowestAsk,
		EMA1:          in.Signal.EMA1,
		EMA2:          in.Signal.EMA2,
		CanBuy:        in.Signal.CanBuy,
		CanSell:       in.Signal.CanSell,
		MainBalance:   in.MainBalance,
		AltBalance:    in.AltBalance,
		Action:        string(act.Kind),
		State:         string(act.State),
		MainAmount:    act.MainAmount,
		AltAmount:     act.AltAmount,
		ProfitPercent: act.ProfitPercent,
		Outcome:       res.Outcome,
		OrderNumber:   res.OrderNumber,
		Reason:        res.Reason,
	}
	if in.Position.Buy != nil {
		rec.BuyRate = in.Position.Buy.Rate
	}
	if in.Position.Sell != nil {
		rec.SellRate = in.Position.Sell.Rate
	}
	return rec
}

// logOutcome is the only place that decides how loudly a cycle is reported. A failure
// following a failure is logged at debug level so a persistent condition such as an empty
// balance does not flood the log.
func (t *Trader) logOutcome(prev types.Outcome, rec *types.DecisionRecord, res execution.Result) {
	fields := []zap.Field{
		zap.String("decision-id", rec.ID),
		zap.String("action", rec.Action),
		zap.String("state", rec.State),
		zap.String("reason", res.Reason),
		zap.Float64("profit-percent", rec.ProfitPercent),
	}
	if res.OrderNumber != "" {
		fields = append(fields, zap.String("order-number", res.OrderNumber))
	}
	if res.Err != nil {
		fields = append(fields, zap.Error(res.Err))
	}

	switch res.Outcome {
	case types.OutcomeSuccess:
		t.logger.Info("cycle-traded", fields...)
	case types.OutcomeFailure:
		if prev == types.OutcomeFailure {
			t.logger.Debug("cycle-failed-again", fields...)
			return
		}
		t.logger.Warn("cycle-failed", fields...)
	default:
		t.logger.Debug("cycle-no-action", fields...)
	}
}

// fail records an aborted cycle. The outcome chain is reset so the next real failure is
// reported again.
func (t *Trader) fail(err error) {
	t.mu.Lock()
	repeated := t.lastErr != nil
	t.cycles++
	t.aborted++
	t.lastErr = err
	t.lastOutcome = ""
	t.mu.Unlock()

	if repeated {
		t.logger.Debug("cycle-aborted-again", zap.Error(err))
		return
	}
	t.logger.Warn("cycle-aborted", zap.Error(err))
}

// Status returns a snapshot of the trader.
func (t *Trader) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st := Status{
		Pair:     t.cfg.Pair,
		Strategy: t.cfg.Strategy.Name(),
		Cycles:   t.cycles,
		Errors:   t.aborted,
	}
	if t.lastErr != nil {
		st.LastError = t.lastErr.Error()
	}
	if t.last != nil {
		rec := *t.last
		st.LastDecision = &rec
	}
	return st
}
