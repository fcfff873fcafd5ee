package position

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mselser95/poloniex-ema-bot/internal/indicator"
)

func TestAggregate_SingleBuy(t *testing.T) {
	agg := Aggregator{AltFraction: 0.1}

	pos := agg.Aggregate([]Fill{buyFill(100, 1)}, 10)

	require.NotNil(t, pos.Buy)
	assert.Nil(t, pos.Sell)
	assert.InDelta(t, 100.0, pos.Buy.Rate, 1e-12)
	assert.InDelta(t, 1.0, pos.Buy.Quantity, 1e-12)
	assert.InDelta(t, -100.0, pos.Buy.Value, 1e-12)
}

func TestAggregate_RateIsRecencyWeighted(t *testing.T) {
	agg := Aggregator{AltFraction: 0.01}
	fills := []Fill{
		buyFill(100, 10), // large but old
		buyFill(110, 0.1),
		buyFill(120, 0.1),
		buyFill(130, 0.1),
	}

	pos := agg.Aggregate(fills, 1)
	require.NotNil(t, pos.Buy)

	want, err := indicator.EMA([]float64{100, 110, 120, 130}, -1)
	require.NoError(t, err)
	assert.InDelta(t, want, pos.Buy.Rate, 1e-12)

	vwap := -pos.Buy.Value / pos.Buy.Quantity
	assert.NotEqual(t, vwap, pos.Buy.Rate)
	assert.InDelta(t, 10.3, pos.Buy.Quantity, 1e-9)
}

func TestAggregate_Partitions(t *testing.T) {
	agg := Aggregator{AltFraction: 0.01}
	fills := []Fill{buyFill(100, 5), sellFill(120, 1), buyFill(102, 1)}

	pos := agg.Aggregate(fills, 1)
	require.NotNil(t, pos.Buy)
	require.NotNil(t, pos.Sell)
	assert.InDelta(t, 6.0, pos.Buy.Quantity, 1e-12)
	assert.InDelta(t, -1.0, pos.Sell.Quantity, 1e-12)
	assert.InDelta(t, 120.0, pos.Sell.Rate, 1e-12)
	assert.False(t, pos.Canceled)
}

func TestAggregate_SelfCancellation(t *testing.T) {
	agg := Aggregator{AltFraction: 0.1}
	fills := []Fill{buyFill(100, 2), sellFill(105, 1.95)}

	// tolerance = 0.1 * 1 = 0.1 >= |2 - 1.95|
	pos := agg.Aggregate(fills, 1)
	assert.Nil(t, pos.Buy)
	assert.Nil(t, pos.Sell)
	assert.True(t, pos.Flat())
	assert.True(t, pos.Canceled)

	// tolerance = 0.1 * 0.1 = 0.01 < 0.05
	pos = agg.Aggregate(fills, 0.1)
	assert.NotNil(t, pos.Buy)
	assert.NotNil(t, pos.Sell)
}

func TestAggregate_InitialRates(t *testing.T) {
	agg := Aggregator{Pair: "BTC_ETH", AltFraction: 0.1, InitialBuyRate: 95, InitialSellRate: 130}

	pos := agg.Aggregate(nil, 10)
	require.NotNil(t, pos.Buy)
	require.NotNil(t, pos.Sell)
	assert.Equal(t, "BTC_ETH", pos.Buy.Pair)
	assert.Equal(t, "BTC_ETH", pos.Sell.Pair)
	assert.Equal(t, 95.0, pos.Buy.Rate)
	assert.Equal(t, 0.0, pos.Buy.Quantity)
	assert.Equal(t, 130.0, pos.Sell.Rate)
	assert.False(t, pos.Canceled)

	// a real side is never replaced by the placeholder, and a lone real side within the
	// cancellation tolerance is not cancelled against the opposite placeholder
	pos = agg.Aggregate([]Fill{buyFill(100, 1)}, 10)
	assert.False(t, pos.Canceled)
	require.NotNil(t, pos.Buy)
	assert.Equal(t, 100.0, pos.Buy.Rate)
	require.NotNil(t, pos.Sell)
	assert.Equal(t, 130.0, pos.Sell.Rate)
}

func TestAggregate_EmptyWithoutInitialRates(t *testing.T) {
	pos := Aggregator{AltFraction: 0.1}.Aggregate(nil, 10)
	assert.True(t, pos.Flat())
	assert.False(t, pos.Canceled)
}

func TestAggregate_Deterministic(t *testing.T) {
	agg := Aggregator{AltFraction: 0.05}
	fills := []Fill{buyFill(100, 1), sellFill(110, 0.3), buyFill(98, 0.7), sellFill(112, 0.2)}

	first := agg.Aggregate(fills, 2)
	second := agg.Aggregate(fills, 2)
	assert.Equal(t, first, second)
}
