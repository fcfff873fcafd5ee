// Package indicator implements the moving averages used by the signal generator and the
// position aggregator.
package indicator

import (
	"github.com/mselser95/poloniex-ema-bot/pkg/types"
)

// SMA returns the arithmetic mean of the final window values.
func SMA(values []float64, window int) (float64, error) {
	if window <= 0 || len(values) < window {
		return 0, types.ErrInsufficientData
	}

	sum := 0.0
	for _, v := range values[len(values)-window:] {
		sum += v
	}

	return sum / float64(window), nil
}

// EMA returns the exponential moving average of values over window elements.
// A negative window defaults to half the series length.
//
// The average is seeded with the SMA of the window immediately preceding the final window
// (values[len-2w : len-w]) and then recurs over the final window in chronological order, so
// the result only depends on the last 2*window values.
//
// An empty series returns (0, ErrInsufficientData) and a single value is returned as is.
func EMA(values []float64, window int) (float64, error) {
	switch len(values) {
	case 0:
		return 0, types.ErrInsufficientData
	case 1:
		return values[0], nil
	}

	if window < 0 {
		window = len(values) / 2
	}
	if window == 0 || 2*window > len(values) {
		return 0, types.ErrInsufficientData
	}

	n := len(values)
	current, err := SMA(values[n-2*window:n-window], window)
	if err != nil {
		return 0, err
	}

	c := 2.0 / float64(window+1)
	for _, v := range values[n-window:] {
		current = c*v + (1-c)*current
	}

	return current, nil
}
