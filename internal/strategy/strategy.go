// Package strategy decides, once per cycle, whether to buy, sell or hold a pair.
package strategy

import (
	"fmt"
	"strings"

	"github.com/mselser95/poloniex-ema-bot/internal/position"
	"github.com/mselser95/poloniex-ema-bot/internal/signal"
	"github.com/mselser95/poloniex-ema-bot/pkg/types"
)

// Strategy names accepted by New.
const (
	NameEMACrossover = "ema-crossover"
	NameObserve      = "observe"
)

// Strategy turns one cycle's inputs into an action. Implementations hold no per-cycle state.
type Strategy interface {
	Name() string
	Evaluate(in Inputs) Action
}

// Inputs is everything a strategy may look at during one cycle.
type Inputs struct {
	Pair        string
	Signal      signal.Signal
	SignalErr   error // Non-nil when the price series was too short for a signal
	HighestBid  float64
	LowestAsk   float64
	Position    position.Position
	MainBalance float64
	AltBalance  float64
}

// Kind is what the action asks the executor to do.
type Kind string

const (
	KindHold Kind = "hold"
	KindBuy  Kind = "buy"
	KindSell Kind = "sell"
	KindSkip Kind = "skip" // Eligible, but blocked by an already open position
)

// State names the branch of the decision that produced an action.
type State string

const (
	StateNoSignal           State = "no-signal"
	StateInsufficientData   State = "insufficient-data"
	StateOpenPosition       State = "open-position"
	StateTakeProfit         State = "take-profit"
	StateStopLoss           State = "stop-loss"
	StateBelowThreshold     State = "below-threshold"
	StatePositionHedged     State = "position-hedged"
	StatePositionOpen       State = "position-open"
	StateInsufficientMargin State = "insufficient-margin"
	StateObserved           State = "observed"
)

// Action is the result of evaluating a strategy.
type Action struct {
	Kind          Kind
	State         State
	Rate          float64 // Limit rate for buy or sell
	MainAmount    float64 // Main currency notional
	AltAmount     float64 // Alt currency amount to buy or sell
	ProfitPercent float64 // Against the opposing synthetic position, 0 when opening
}

// IsTrade reports whether the action needs an order placed.
func (a Action) IsTrade() bool {
	return a.Kind == KindBuy || a.Kind == KindSell
}

// Outcome is the outcome of an action that does not reach the exchange.
// Trades get their outcome from execution.
func (a Action) Outcome() types.Outcome {
	if a.Kind == KindSkip {
		return types.OutcomeFailure
	}
	return types.OutcomeNoAction
}

func hold(state State) Action {
	return Action{Kind: KindHold, State: state}
}

// Params holds the per-pair tuning of the crossover strategy.
type Params struct {
	AltFraction          float64
	MainFraction         float64
	MinBuyProfit         float64
	MinSellProfit        float64
	NewOrderThreshold    float64
	NewCurrencyThreshold float64
}

// New returns the strategy registered under name.
func New(name string, params Params) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameEMACrossover:
		return NewCrossover(params), nil
	case NameObserve:
		return Observe{}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}
