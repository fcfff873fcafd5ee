package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mselser95/poloniex-ema-bot/pkg/types"
)

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func rising(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestGenerate_FlatMarket(t *testing.T) {
	sig, err := Generate(flat(48, 10), 10, 10)
	require.NoError(t, err)

	assert.InDelta(t, 10.0, sig.EMA1, 1e-12)
	assert.InDelta(t, 10.0, sig.EMA2, 1e-12)
	assert.False(t, sig.CanSell)
	assert.False(t, sig.CanBuy)
	assert.False(t, sig.Active())
}

func TestGenerate_Flags(t *testing.T) {
	series := rising(48, 100, 1)

	tests := []struct {
		name     string
		bid, ask float64
		wantSell bool
		wantBuy  bool
	}{
		{name: "bid-above-band", bid: 200, ask: 201, wantSell: true},
		{name: "ask-below-band", bid: 50, ask: 51, wantBuy: true},
		{name: "straddle", bid: 200, ask: 50, wantSell: true, wantBuy: true},
		{name: "inside-band", bid: 0, ask: 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := Generate(series, tt.bid, tt.ask)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSell, sig.CanSell)
			assert.Equal(t, tt.wantBuy, sig.CanBuy)
		})
	}
}

func TestGenerate_ShortWindowTracksRecentPrices(t *testing.T) {
	sig, err := Generate(rising(48, 100, 1), 0, 0)
	require.NoError(t, err)

	// On a rising series the shorter window sits closer to the latest price.
	assert.Greater(t, sig.EMA2, sig.EMA1)
	assert.Less(t, sig.EMA2, 147.0)
}

func TestGenerate_InsufficientData(t *testing.T) {
	tests := []struct {
		name   string
		series []float64
	}{
		{name: "empty", series: nil},
		{name: "too-short-for-short-window", series: []float64{1, 2, 3}},
		{name: "zero-prices", series: flat(8, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := Generate(tt.series, 100, 0.0001)
			assert.ErrorIs(t, err, types.ErrInsufficientData)
			assert.False(t, sig.CanSell)
			assert.False(t, sig.CanBuy)
		})
	}
}
