package strategy

import "math"

const (
	// MinMainNotional is the smallest order the exchange accepts, in main currency.
	MinMainNotional = 0.0001
	// TakerFee is the fee assumed on every fill when measuring profit.
	TakerFee = 0.0025

	sellFractionStep = 0.01
)

// SellAmount sizes a sell from the alt balance. Starting at altFraction the fraction grows by
// one percentage point until the order reaches MinMainNotional or the whole balance is used.
func SellAmount(altBalance, altFraction, highestBid float64) (mainAmount, altAmount float64) {
	if altBalance <= 0 || highestBid <= 0 {
		return 0, 0
	}

	for i := 0; ; i++ {
		fraction := math.Min(altFraction+float64(i)*sellFractionStep, 1)
		altAmount = altBalance * fraction
		mainAmount = altAmount * highestBid
		if mainAmount >= MinMainNotional || fraction >= 1 {
			return mainAmount, altAmount
		}
	}
}

// BuyAmount sizes a buy as mainFraction of the main balance, raised to MinMainNotional.
func BuyAmount(mainBalance, mainFraction, lowestAsk float64) (mainAmount, altAmount float64) {
	if lowestAsk <= 0 {
		return 0, 0
	}

	mainAmount = math.Max(mainBalance*mainFraction, MinMainNotional)
	return mainAmount, mainAmount / lowestAsk
}
