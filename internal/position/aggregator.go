package position

import (
	"math"

	"github.com/mselser95/poloniex-ema-bot/internal/indicator"
	"github.com/mselser95/poloniex-ema-bot/pkg/types"
)

// Position is the synthetic picture of a pair's history: every buy treated as one open buy
// and every sell as one open sell. Either side may be nil.
type Position struct {
	Buy  *Fill
	Sell *Fill
	// Canceled is set when both sides existed but netted out and were discarded.
	Canceled bool
}

// Flat reports whether neither side is open.
func (p Position) Flat() bool {
	return p.Buy == nil && p.Sell == nil
}

// Aggregator folds one pair's fills into a Position.
type Aggregator struct {
	// Pair is stamped on initial-rate placeholders.
	Pair string
	// AltFraction times the alt balance is the tolerance under which opposite positions are
	// considered to cancel out.
	AltFraction float64
	// InitialBuyRate and InitialSellRate seed an empty side with a zero-quantity placeholder.
	InitialBuyRate  float64
	InitialSellRate float64
}

// Aggregate partitions fills by side and combines each side. Fills must be in chronological
// order: the rate of each combined side is replaced by the EMA of the individual fill rates,
// which weights recent fills over total volume.
func (a Aggregator) Aggregate(fills []Fill, altBalance float64) Position {
	var buys, sells []Fill
	var buyRates, sellRates []float64

	for _, f := range fills {
		if f.IsBuy() {
			buys = append(buys, f)
			buyRates = append(buyRates, f.Rate)
		} else {
			sells = append(sells, f)
			sellRates = append(sellRates, f.Rate)
		}
	}

	var pos Position
	if combined, ok := CombineAll(buys); ok {
		combined.Rate = recencyRate(buyRates, combined.Rate)
		pos.Buy = &combined
	}
	if combined, ok := CombineAll(sells); ok {
		combined.Rate = recencyRate(sellRates, combined.Rate)
		pos.Sell = &combined
	}

	// Cancellation runs on real fills only. Placeholders are added afterwards, so a lone real
	// side within tolerance is never cancelled against a zero-quantity placeholder.
	if pos.Buy != nil && pos.Sell != nil && a.cancels(*pos.Buy, *pos.Sell, altBalance) {
		return Position{Canceled: true}
	}

	if pos.Buy == nil && a.InitialBuyRate > 0 {
		pos.Buy = &Fill{Pair: a.Pair, Side: types.SideBuy, Rate: a.InitialBuyRate}
	}
	if pos.Sell == nil && a.InitialSellRate > 0 {
		pos.Sell = &Fill{Pair: a.Pair, Side: types.SideSell, Rate: a.InitialSellRate}
	}

	return pos
}

// cancels reports whether the two sides net out within the configured tolerance.
func (a Aggregator) cancels(buy, sell Fill, altBalance float64) bool {
	return math.Abs(buy.Quantity+sell.Quantity) <= a.AltFraction*altBalance
}

func recencyRate(rates []float64, fallback float64) float64 {
	rate, err := indicator.EMA(rates, -1)
	if err != nil {
		return fallback
	}
	return rate
}
