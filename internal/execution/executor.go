// Package execution places the orders a strategy asks for and resolves them to fills.
package execution

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/poloniex-ema-bot/internal/exchange"
	"github.com/mselser95/poloniex-ema-bot/internal/position"
	"github.com/mselser95/poloniex-ema-bot/internal/strategy"
	"github.com/mselser95/poloniex-ema-bot/pkg/types"
)

// Mode selects how orders are executed.
type Mode string

const (
	ModeLive   Mode = "live"
	ModePaper  Mode = "paper"   // Orders go to a simulated exchange through the same path as live
	ModeDryRun Mode = "dry-run" // Orders are logged, never submitted
)

// Reasons recorded alongside an outcome.
const (
	ReasonFilled            = "filled"
	ReasonInsufficientFunds = "insufficient-funds"
	ReasonBreakerOpen       = "circuit-breaker-open"
	ReasonDryRun            = "dry-run"
	ReasonRejected          = "rejected"
	ReasonTransport         = "transport-error"
	ReasonNotFilled         = "not-filled"
	ReasonCanceled          = "canceled"
)

// Breaker gates buy submission. *circuitbreaker.BalanceCircuitBreaker satisfies it.
type Breaker interface {
	IsEnabled() bool
	RecordTrade(notional float64)
}

// Balances are the pair's balances read at the start of the cycle.
type Balances struct {
	Main float64
	Alt  float64
}

// Reserves are the per-pair balance floors a trade must leave untouched.
type Reserves struct {
	MinMain float64
	MinAlt  float64
}

// Request is one action to execute.
type Request struct {
	Pair     string
	Action   strategy.Action
	Balances Balances
	Reserves Reserves
}

// Result is what became of a request.
type Result struct {
	Outcome     types.Outcome
	Reason      string
	OrderNumber string
	Fill        *position.Fill // Combined fill of the order, set on success
	Err         error
}

// Executor executes trade actions against the exchange.
type Executor struct {
	mode        Mode
	client      exchange.Client
	tracker     *FillTracker
	breaker     Breaker
	gracePeriod time.Duration
	logger      *zap.Logger

	mu        sync.Mutex
	submitted int
	filled    int
}

// Config holds executor configuration.
type Config struct {
	Mode        Mode
	Client      exchange.Client
	Tracker     *FillTracker
	Breaker     Breaker // Optional
	GracePeriod time.Duration
	Logger      *zap.Logger
}

// New creates a new trade executor.
func New(cfg *Config) (*Executor, error) {
	switch cfg.Mode {
	case ModeLive, ModePaper:
		if cfg.Client == nil || cfg.Tracker == nil {
			return nil, fmt.Errorf("%s mode requires an exchange client and fill tracker", cfg.Mode)
		}
	case ModeDryRun:
	default:
		return nil, fmt.Errorf("unknown execution mode: %s", cfg.Mode)
	}

	return &Executor{
		mode:        cfg.Mode,
		client:      cfg.Client,
		tracker:     cfg.Tracker,
		breaker:     cfg.Breaker,
		gracePeriod: cfg.GracePeriod,
		logger:      cfg.Logger,
	}, nil
}

// Mode returns the execution mode.
func (e *Executor) Mode() Mode { return e.mode }

// Execute carries out req. Holds and skips resolve immediately to their pre-execution outcome.
// Trades are checked against the reserve floor and buys against the circuit breaker. Orders are
// then submitted and resolved against order history after the grace period. Exchange rejections
// and unresolved orders are failures, never errors returned to the caller.
func (e *Executor) Execute(ctx context.Context, req Request) Result {
	act := req.Action
	if !act.IsTrade() {
		return Result{Outcome: act.Outcome(), Reason: string(act.State)}
	}

	logger := e.logger.With(
		zap.String("pair", req.Pair),
		zap.String("side", string(act.Kind)),
		zap.String("state", string(act.State)))

	if !hasFunds(req) {
		return e.finish(Result{Outcome: types.OutcomeFailure, Reason: ReasonInsufficientFunds})
	}

	// The breaker watches the main currency, so only buys are gated. Sells bring it back.
	if act.Kind == strategy.KindBuy && e.breaker != nil && !e.breaker.IsEnabled() {
		logger.Warn("trade-blocked-by-circuit-breaker")
		return e.finish(Result{Outcome: types.OutcomeFailure, Reason: ReasonBreakerOpen})
	}

	if e.mode == ModeDryRun {
		logger.Info("dry-run-order",
			zap.Float64("rate", act.Rate),
			zap.Float64("alt-amount", act.AltAmount),
			zap.Float64("main-amount", act.MainAmount),
			zap.Float64("profit-percent", act.ProfitPercent))
		return e.finish(Result{Outcome: types.OutcomeNoAction, Reason: ReasonDryRun})
	}

	start := time.Now()
	defer func() {
		ExecutionDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	logger.Info("placing-order",
		zap.String("mode", string(e.mode)),
		zap.Float64("rate", act.Rate),
		zap.Float64("alt-amount", act.AltAmount),
		zap.Float64("main-amount", act.MainAmount),
		zap.Float64("profit-percent", act.ProfitPercent))

	order, err := e.submit(ctx, req.Pair, act)
	if err != nil {
		return e.finish(e.submissionFailure(logger, err))
	}
	TradesTotal.WithLabelValues(string(e.mode), string(act.Kind)).Inc()
	e.mu.Lock()
	e.submitted++
	e.mu.Unlock()

	records, err := e.resolve(ctx, req.Pair, order, start)
	if err != nil {
		reason := ReasonNotFilled
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			reason = ReasonCanceled
		}
		logger.Warn("order-unresolved",
			zap.String("order-number", order.OrderNumber),
			zap.Error(err))
		return e.finish(Result{Outcome: types.OutcomeFailure, Reason: reason, OrderNumber: order.OrderNumber, Err: err})
	}

	fills, err := position.FromRecords(records, req.Pair)
	if err != nil {
		return e.finish(Result{Outcome: types.OutcomeFailure, Reason: ReasonNotFilled, OrderNumber: order.OrderNumber, Err: err})
	}
	combined, _ := position.CombineAll(fills)

	if e.breaker != nil {
		e.breaker.RecordTrade(math.Abs(combined.Value))
	}
	e.mu.Lock()
	e.filled++
	e.mu.Unlock()

	logger.Info("order-executed",
		zap.String("order-number", order.OrderNumber),
		zap.Float64("fill-rate", combined.Rate),
		zap.Float64("fill-quantity", combined.Quantity),
		zap.Float64("fill-value", combined.Value))

	return e.finish(Result{
		Outcome:     types.OutcomeSuccess,
		Reason:      ReasonFilled,
		OrderNumber: order.OrderNumber,
		Fill:        &combined,
	})
}

func (e *Executor) submit(ctx context.Context, pair string, act strategy.Action) (exchange.OrderResult, error) {
	if act.Kind == strategy.KindBuy {
		return e.client.PlaceBuy(ctx, pair, act.Rate, act.AltAmount)
	}
	return e.client.PlaceSell(ctx, pair, act.Rate, act.AltAmount)
}

// resolve waits the grace period, then looks the order up in history. Trades the exchange
// reported with the order are used when history never shows it.
func (e *Executor) resolve(ctx context.Context, pair string, order exchange.OrderResult, submittedAt time.Time) ([]types.TradeRecord, error) {
	if e.gracePeriod > 0 {
		timer := time.NewTimer(e.gracePeriod)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	records, err := e.tracker.AwaitFill(ctx, pair, order.OrderNumber, submittedAt)
	if err != nil && errors.Is(err, ErrFillTimeout) && len(order.Trades) > 0 {
		return order.Trades, nil
	}
	return records, err
}

func (e *Executor) submissionFailure(logger *zap.Logger, err error) Result {
	var ee *types.ExchangeError
	if errors.As(err, &ee) {
		ExecutionErrorsTotal.WithLabelValues("exchange").Inc()
		logger.Warn("order-rejected", zap.String("message", ee.Message))
		return Result{Outcome: types.OutcomeFailure, Reason: ReasonRejected, Err: err}
	}

	ExecutionErrorsTotal.WithLabelValues("transport").Inc()
	logger.Error("order-submission-failed", zap.Error(err))
	return Result{Outcome: types.OutcomeFailure, Reason: ReasonTransport, Err: err}
}

func (e *Executor) finish(res Result) Result {
	OutcomesTotal.WithLabelValues(string(res.Outcome), res.Reason).Inc()
	return res
}

// Close logs execution totals.
func (e *Executor) Close() error {
	e.mu.Lock()
	submitted, filled := e.submitted, e.filled
	e.mu.Unlock()

	e.logger.Info("executor-closed",
		zap.String("mode", string(e.mode)),
		zap.Int("orders-submitted", submitted),
		zap.Int("orders-filled", filled))
	return nil
}

// hasFunds reports whether the trade leaves the spent currency at or above its reserve floor.
func hasFunds(req Request) bool {
	act := req.Action
	switch act.Kind {
	case strategy.KindSell:
		return act.AltAmount > 0 && req.Balances.Alt-act.AltAmount >= req.Reserves.MinAlt
	case strategy.KindBuy:
		return act.MainAmount > 0 && req.Balances.Main-act.MainAmount >= req.Reserves.MinMain
	default:
		return false
	}
}
