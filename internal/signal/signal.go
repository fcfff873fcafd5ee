// Package signal derives buy and sell eligibility from two EMAs of the same price series.
package signal

import (
	"fmt"
	"math"

	"github.com/mselser95/poloniex-ema-bot/internal/indicator"
	"github.com/mselser95/poloniex-ema-bot/pkg/types"
)

// Signal is the eligibility to trade during one cycle.
type Signal struct {
	CanSell bool
	CanBuy  bool
	EMA1    float64 // Window len/2
	EMA2    float64 // Window len/4
}

// Generate compares the best bid and ask against the band formed by two EMAs of series.
// Selling is eligible when the bid is above the band, buying when the ask is below it.
// If either EMA cannot be computed the returned error wraps types.ErrInsufficientData and
// no flag is set.
func Generate(series []float64, highestBid, lowestAsk float64) (Signal, error) {
	n := len(series)

	ema1, err := indicator.EMA(series, n/2)
	if err != nil {
		return Signal{}, fmt.Errorf("long ema over %d prices: %w", n, err)
	}
	ema2, err := indicator.EMA(series, n/4)
	if err != nil {
		return Signal{}, fmt.Errorf("short ema over %d prices: %w", n, err)
	}

	sig := Signal{EMA1: ema1, EMA2: ema2}
	if ema1 <= 0 || ema2 <= 0 {
		return sig, fmt.Errorf("non-positive ema (%g, %g): %w", ema1, ema2, types.ErrInsufficientData)
	}

	sig.CanSell = highestBid > math.Max(ema1, ema2)
	sig.CanBuy = lowestAsk < math.Min(ema1, ema2)

	return sig, nil
}

// Active reports whether any trade is eligible.
func (s Signal) Active() bool {
	return s.CanSell || s.CanBuy
}
