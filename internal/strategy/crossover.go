package strategy

import (
	"math"

	"github.com/mselser95/poloniex-ema-bot/internal/position"
)

// Crossover trades when the EMA signal fires and the trade clears the recency-weighted
// entry rate of the opposing synthetic position by the configured margin.
//
// A sell is measured against the combined buy and a buy against the combined sell. With no
// opposing history a new position is opened, at most one per side. When the opposing
// position has fallen more than NewOrderThreshold underwater it is abandoned and a fresh
// position opened instead (stop-loss). Selling takes priority when both signals fire.
type Crossover struct {
	params Params
}

// NewCrossover creates the EMA crossover strategy.
func NewCrossover(params Params) *Crossover {
	return &Crossover{params: params}
}

// Name implements Strategy.
func (c *Crossover) Name() string { return NameEMACrossover }

// Evaluate implements Strategy.
func (c *Crossover) Evaluate(in Inputs) Action {
	if in.SignalErr != nil {
		return hold(StateInsufficientData)
	}

	switch {
	case in.Signal.CanSell:
		return c.evaluateSell(in)
	case in.Signal.CanBuy:
		return c.evaluateBuy(in)
	default:
		return hold(StateNoSignal)
	}
}

func (c *Crossover) evaluateSell(in Inputs) Action {
	mainAmount, altAmount := SellAmount(in.AltBalance, c.params.AltFraction, in.HighestBid)
	if altAmount <= 0 || mainAmount < MinMainNotional {
		return Action{Kind: KindSkip, State: StateInsufficientMargin}
	}
	sell := Action{Kind: KindSell, Rate: in.HighestBid, MainAmount: mainAmount, AltAmount: altAmount}

	buy, open := in.Position.Buy, in.Position.Sell
	if buy == nil {
		if open != nil && open.Value >= c.params.NewCurrencyThreshold {
			return Action{Kind: KindSkip, State: StatePositionOpen}
		}
		sell.State = StateOpenPosition
		return sell
	}
	if buy.Rate <= 0 {
		return hold(StateInsufficientData)
	}

	profit := in.HighestBid*(1-TakerFee)/buy.Rate - 1
	sell.ProfitPercent = profit

	switch {
	case profit < -c.params.NewOrderThreshold:
		sell.State = StateStopLoss
		return sell
	case profit > c.params.MinSellProfit:
		if hedged(buy, open) {
			return Action{Kind: KindHold, State: StatePositionHedged, ProfitPercent: profit}
		}
		sell.State = StateTakeProfit
		return sell
	default:
		return Action{Kind: KindHold, State: StateBelowThreshold, ProfitPercent: profit}
	}
}

func (c *Crossover) evaluateBuy(in Inputs) Action {
	mainAmount, altAmount := BuyAmount(in.MainBalance, c.params.MainFraction, in.LowestAsk)
	if altAmount <= 0 || mainAmount < MinMainNotional || in.MainBalance < mainAmount {
		return Action{Kind: KindSkip, State: StateInsufficientMargin}
	}
	buy := Action{Kind: KindBuy, Rate: in.LowestAsk, MainAmount: mainAmount, AltAmount: altAmount}

	sell, open := in.Position.Sell, in.Position.Buy
	if sell == nil {
		if open != nil && -open.Value >= c.params.NewCurrencyThreshold {
			return Action{Kind: KindSkip, State: StatePositionOpen}
		}
		buy.State = StateOpenPosition
		return buy
	}
	profit := sell.Rate/(in.LowestAsk*(1+TakerFee)) - 1
	buy.ProfitPercent = profit

	switch {
	case profit < -c.params.NewOrderThreshold:
		buy.State = StateStopLoss
		return buy
	case profit > c.params.MinBuyProfit:
		if hedged(sell, open) {
			return Action{Kind: KindHold, State: StatePositionHedged, ProfitPercent: profit}
		}
		buy.State = StateTakeProfit
		return buy
	default:
		return Action{Kind: KindHold, State: StateBelowThreshold, ProfitPercent: profit}
	}
}

// hedged reports whether the same-side position has already absorbed the whole opposing one.
func hedged(opposing, same *position.Fill) bool {
	if same == nil || opposing.Quantity == 0 {
		return false
	}
	return math.Abs(same.Quantity) >= math.Abs(opposing.Quantity)
}
