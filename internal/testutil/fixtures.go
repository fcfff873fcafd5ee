package testutil

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mselser95/poloniex-ema-bot/pkg/types"
)

// CreateTestTradeRecord creates an exchange fill record with total = rate*amount and no fee.
func CreateTestTradeRecord(orderNumber string, side types.Side, rate, amount float64, at time.Time) types.TradeRecord {
	return types.TradeRecord{
		OrderNumber: orderNumber,
		Date:        at,
		Rate:        strconv.FormatFloat(rate, 'f', -1, 64),
		Amount:      strconv.FormatFloat(amount, 'f', -1, 64),
		Total:       strconv.FormatFloat(rate*amount, 'f', -1, 64),
		Fee:         "0",
		Type:        side,
	}
}

// CreateTestDecision creates a decision record for a pair.
func CreateTestDecision(pair string, outcome types.Outcome) *types.DecisionRecord {
	return &types.DecisionRecord{
		ID:            uuid.New().String(),
		Pair:          pair,
		EvaluatedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Strategy:      "ema-crossover",
		HighestBid:    0.0501,
		LowestAsk:     0.0502,
		EMA1:          0.049,
		EMA2:          0.0495,
		CanSell:       true,
		BuyRate:       0.048,
		MainBalance:   1,
		AltBalance:    10,
		Action:        "sell",
		State:         "take-profit",
		MainAmount:    0.0501,
		AltAmount:     1,
		ProfitPercent: 0.0411,
		Outcome:       outcome,
		OrderNumber:   "12345",
	}
}

// FlatSeries returns n copies of value.
func FlatSeries(n int, value float64) []float64 {
	series := make([]float64, n)
	for i := range series {
		series[i] = value
	}
	return series
}

// RisingSeries returns n values starting at start, each step higher than the previous.
func RisingSeries(n int, start, step float64) []float64 {
	series := make([]float64, n)
	for i := range series {
		series[i] = start + float64(i)*step
	}
	return series
}
