package strategy

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mselser95/poloniex-ema-bot/internal/position"
	"github.com/mselser95/poloniex-ema-bot/internal/signal"
	"github.com/mselser95/poloniex-ema-bot/pkg/types"
)

func testParams() Params {
	return Params{
		AltFraction:       0.1,
		MainFraction:      0.1,
		MinBuyProfit:      0.02,
		MinSellProfit:     0.02,
		NewOrderThreshold: 0.1,
	}
}

func combinedBuy(rate, qty float64) *position.Fill {
	return &position.Fill{Side: types.SideBuy, Rate: rate, Quantity: qty, Value: -rate * qty}
}

func combinedSell(rate, qty float64) *position.Fill {
	return &position.Fill{Side: types.SideSell, Rate: rate, Quantity: -qty, Value: rate * qty}
}

func sellInputs(bid float64, pos position.Position) Inputs {
	return Inputs{
		Pair:        "BTC_ETH",
		Signal:      signal.Signal{CanSell: true},
		HighestBid:  bid,
		LowestAsk:   bid * 1.001,
		Position:    pos,
		MainBalance: 1,
		AltBalance:  10,
	}
}

func buyInputs(ask float64, pos position.Position) Inputs {
	return Inputs{
		Pair:        "BTC_ETH",
		Signal:      signal.Signal{CanBuy: true},
		HighestBid:  ask * 0.999,
		LowestAsk:   ask,
		Position:    pos,
		MainBalance: 1,
		AltBalance:  10,
	}
}

func TestCrossover_NoSignal(t *testing.T) {
	c := NewCrossover(testParams())

	act := c.Evaluate(Inputs{Signal: signal.Signal{}, HighestBid: 10, LowestAsk: 10})
	assert.Equal(t, KindHold, act.Kind)
	assert.Equal(t, StateNoSignal, act.State)
	assert.Equal(t, types.OutcomeNoAction, act.Outcome())
	assert.False(t, act.IsTrade())
}

func TestCrossover_InsufficientData(t *testing.T) {
	c := NewCrossover(testParams())

	in := sellInputs(100, position.Position{})
	in.SignalErr = fmt.Errorf("short ema: %w", types.ErrInsufficientData)

	act := c.Evaluate(in)
	assert.Equal(t, KindHold, act.Kind)
	assert.Equal(t, StateInsufficientData, act.State)
}

func TestCrossover_OpenSellWithoutHistory(t *testing.T) {
	c := NewCrossover(testParams())

	act := c.Evaluate(sellInputs(0.05, position.Position{}))
	require.Equal(t, KindSell, act.Kind)
	assert.Equal(t, StateOpenPosition, act.State)
	assert.Equal(t, 0.05, act.Rate)
	assert.InDelta(t, 1.0, act.AltAmount, 1e-12)
	assert.Zero(t, act.ProfitPercent)
	assert.True(t, act.IsTrade())
}

func TestCrossover_OneSpeculativePositionPerSide(t *testing.T) {
	c := NewCrossover(testParams())

	act := c.Evaluate(sellInputs(0.05, position.Position{Sell: combinedSell(0.04, 1)}))
	assert.Equal(t, KindSkip, act.Kind)
	assert.Equal(t, StatePositionOpen, act.State)
	assert.Equal(t, types.OutcomeFailure, act.Outcome())

	act = c.Evaluate(buyInputs(0.05, position.Position{Buy: combinedBuy(0.06, 1)}))
	assert.Equal(t, KindSkip, act.Kind)
	assert.Equal(t, StatePositionOpen, act.State)
}

func TestCrossover_NewCurrencyThreshold(t *testing.T) {
	params := testParams()
	params.NewCurrencyThreshold = 0.5
	c := NewCrossover(params)

	// 0.06 BTC already spent on buys is below the threshold, another buy may open.
	act := c.Evaluate(buyInputs(0.05, position.Position{Buy: combinedBuy(0.06, 1)}))
	assert.Equal(t, KindBuy, act.Kind)
	assert.Equal(t, StateOpenPosition, act.State)

	act = c.Evaluate(buyInputs(0.05, position.Position{Buy: combinedBuy(0.06, 10)}))
	assert.Equal(t, KindSkip, act.Kind)
}

func TestCrossover_SellProfitBoundary(t *testing.T) {
	params := testParams()
	c := NewCrossover(params)
	const rate = 100.0
	const eps = 1e-6
	pos := position.Position{Buy: combinedBuy(rate, 1)}

	above := rate * (1 + params.MinSellProfit + eps) / (1 - TakerFee)
	act := c.Evaluate(sellInputs(above, pos))
	require.Equal(t, KindSell, act.Kind)
	assert.Equal(t, StateTakeProfit, act.State)
	assert.InDelta(t, params.MinSellProfit+eps, act.ProfitPercent, 1e-9)
	assert.Equal(t, above, act.Rate)

	below := rate * (1 + params.MinSellProfit - eps) / (1 - TakerFee)
	act = c.Evaluate(sellInputs(below, pos))
	assert.Equal(t, KindHold, act.Kind)
	assert.Equal(t, StateBelowThreshold, act.State)
	assert.Equal(t, types.OutcomeNoAction, act.Outcome())
}

func TestCrossover_BuyProfitBoundary(t *testing.T) {
	params := testParams()
	c := NewCrossover(params)
	const rate = 0.05
	const eps = 1e-6
	pos := position.Position{Sell: combinedSell(rate, 2)}

	// profit = sellRate / (ask * (1 + fee)) - 1
	above := rate / ((1 + params.MinBuyProfit + eps) * (1 + TakerFee))
	act := c.Evaluate(buyInputs(above, pos))
	require.Equal(t, KindBuy, act.Kind)
	assert.Equal(t, StateTakeProfit, act.State)
	assert.InDelta(t, 0.1, act.MainAmount, 1e-12)
	assert.InDelta(t, 0.1/above, act.AltAmount, 1e-9)

	below := rate / ((1 + params.MinBuyProfit - eps) * (1 + TakerFee))
	act = c.Evaluate(buyInputs(below, pos))
	assert.Equal(t, KindHold, act.Kind)
	assert.Equal(t, StateBelowThreshold, act.State)
}

func TestCrossover_StopLoss(t *testing.T) {
	c := NewCrossover(testParams())

	// bid far below the buy rate: -0.1 threshold crossed
	act := c.Evaluate(sellInputs(80, position.Position{Buy: combinedBuy(100, 1)}))
	require.Equal(t, KindSell, act.Kind)
	assert.Equal(t, StateStopLoss, act.State)
	assert.Less(t, act.ProfitPercent, -0.1)

	// ask far above the sell rate
	act = c.Evaluate(buyInputs(0.06, position.Position{Sell: combinedSell(0.05, 1)}))
	require.Equal(t, KindBuy, act.Kind)
	assert.Equal(t, StateStopLoss, act.State)

	// a small loss inside the threshold just holds
	act = c.Evaluate(sellInputs(95, position.Position{Buy: combinedBuy(100, 1)}))
	assert.Equal(t, KindHold, act.Kind)
	assert.Equal(t, StateBelowThreshold, act.State)
}

func TestCrossover_Hedged(t *testing.T) {
	c := NewCrossover(testParams())

	pos := position.Position{Buy: combinedBuy(100, 1), Sell: combinedSell(101, 1.5)}
	act := c.Evaluate(sellInputs(110, pos))
	assert.Equal(t, KindHold, act.Kind)
	assert.Equal(t, StatePositionHedged, act.State)

	pos = position.Position{Buy: combinedBuy(100, 1), Sell: combinedSell(101, 0.5)}
	act = c.Evaluate(sellInputs(110, pos))
	assert.Equal(t, KindSell, act.Kind)
	assert.Equal(t, StateTakeProfit, act.State)
}

func TestCrossover_PlaceholderPositionIsNeverHedged(t *testing.T) {
	c := NewCrossover(testParams())

	pos := position.Position{Buy: &position.Fill{Side: types.SideBuy, Rate: 100}, Sell: combinedSell(101, 1)}
	act := c.Evaluate(sellInputs(110, pos))
	assert.Equal(t, KindSell, act.Kind)
	assert.Equal(t, StateTakeProfit, act.State)
}

func TestCrossover_SellTakesPriority(t *testing.T) {
	c := NewCrossover(testParams())

	in := sellInputs(0.05, position.Position{})
	in.Signal.CanBuy = true
	in.LowestAsk = 0.01

	act := c.Evaluate(in)
	assert.Equal(t, KindSell, act.Kind)
}

func TestCrossover_InsufficientMargin(t *testing.T) {
	c := NewCrossover(testParams())
	bought := position.Position{Buy: combinedBuy(0.001, 1)}

	tests := []struct {
		name string
		in   Inputs
	}{
		{name: "buy-balance-below-floor", in: func() Inputs {
			in := buyInputs(0.05, position.Position{})
			in.MainBalance = 0.00005
			return in
		}()},
		{name: "sell-whole-balance-below-floor", in: func() Inputs {
			// 0.05 ETH at 0.0015 is 0.000075 BTC even when selling all of it.
			in := sellInputs(0.0015, bought)
			in.AltBalance = 0.05
			return in
		}()},
		{name: "sell-no-alt-balance", in: func() Inputs {
			in := sellInputs(0.05, position.Position{})
			in.AltBalance = 0
			return in
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			act := c.Evaluate(tt.in)
			assert.Equal(t, KindSkip, act.Kind)
			assert.Equal(t, StateInsufficientMargin, act.State)
			assert.Equal(t, types.OutcomeFailure, act.Outcome())
			assert.False(t, act.IsTrade())
		})
	}
}

func TestCrossover_EndToEndProfitScenario(t *testing.T) {
	agg := position.Aggregator{AltFraction: 0.1}
	fills := []position.Fill{{Side: types.SideBuy, Rate: 100, Quantity: 1, Value: -100}}
	pos := agg.Aggregate(fills, 10)

	c := NewCrossover(testParams())

	act := c.Evaluate(sellInputs(101, pos))
	assert.Equal(t, KindHold, act.Kind)
	assert.InDelta(t, 0.0075, act.ProfitPercent, 1e-4)

	act = c.Evaluate(sellInputs(110, pos))
	assert.Equal(t, KindSell, act.Kind)
	assert.Equal(t, StateTakeProfit, act.State)
	assert.InDelta(t, 0.09725, act.ProfitPercent, 1e-9)
}

func TestCrossover_FlatMarketEndToEnd(t *testing.T) {
	series := make([]float64, 48)
	for i := range series {
		series[i] = 10
	}
	sig, err := signal.Generate(series, 10, 10)
	require.NoError(t, err)

	act := NewCrossover(testParams()).Evaluate(Inputs{Signal: sig, HighestBid: 10, LowestAsk: 10, AltBalance: 1, MainBalance: 1})
	assert.Equal(t, KindHold, act.Kind)
	assert.Equal(t, StateNoSignal, act.State)
}

func TestObserve(t *testing.T) {
	var s Strategy = Observe{}
	assert.Equal(t, NameObserve, s.Name())

	act := s.Evaluate(sellInputs(0.05, position.Position{}))
	assert.Equal(t, KindHold, act.Kind)
	assert.Equal(t, StateObserved, act.State)

	act = s.Evaluate(Inputs{SignalErr: errors.New("x")})
	assert.Equal(t, StateInsufficientData, act.State)

	act = s.Evaluate(Inputs{})
	assert.Equal(t, StateNoSignal, act.State)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		wantName string
		wantErr  bool
	}{
		{name: "", wantName: NameEMACrossover},
		{name: "ema-crossover", wantName: NameEMACrossover},
		{name: " Observe ", wantName: NameObserve},
		{name: "martingale", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.name, testParams())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, s.Name())
		})
	}
}
