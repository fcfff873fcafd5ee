// Package position turns executed orders into the synthetic buy and sell positions the
// decision engine measures profitability against.
package position

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mselser95/poloniex-ema-bot/pkg/types"
)

// Fill is one executed order in signed form.
// Buys carry a negative Value (main currency spent) and a positive Quantity (alt received);
// sells the opposite. Summing two fills is therefore plain addition.
type Fill struct {
	ID       string
	Pair     string
	Side     types.Side
	Rate     float64 // Main per alt
	Value    float64 // Signed main-currency notional
	Quantity float64 // Signed alt-currency amount
	Fee      float64
	Time     time.Time
}

// FromRecord normalizes a raw exchange fill record.
func FromRecord(rec types.TradeRecord, pair string) (Fill, error) {
	rate, err := decimal.NewFromString(rec.Rate)
	if err != nil {
		return Fill{}, fmt.Errorf("parse rate %q: %w", rec.Rate, err)
	}
	amount, err := decimal.NewFromString(rec.Amount)
	if err != nil {
		return Fill{}, fmt.Errorf("parse amount %q: %w", rec.Amount, err)
	}
	total, err := decimal.NewFromString(rec.Total)
	if err != nil {
		return Fill{}, fmt.Errorf("parse total %q: %w", rec.Total, err)
	}
	fee := decimal.Zero
	if rec.Fee != "" {
		fee, err = decimal.NewFromString(rec.Fee)
		if err != nil {
			return Fill{}, fmt.Errorf("parse fee %q: %w", rec.Fee, err)
		}
	}

	switch rec.Type {
	case types.SideBuy:
		total = total.Neg()
	case types.SideSell:
		amount = amount.Neg()
	default:
		return Fill{}, fmt.Errorf("unknown order type %q", rec.Type)
	}

	return Fill{
		ID:       rec.OrderNumber,
		Pair:     pair,
		Side:     rec.Type,
		Rate:     rate.InexactFloat64(),
		Value:    total.InexactFloat64(),
		Quantity: amount.InexactFloat64(),
		Fee:      fee.InexactFloat64(),
		Time:     rec.Date,
	}, nil
}

// FromRecords converts records in order, failing on the first malformed one.
func FromRecords(recs []types.TradeRecord, pair string) ([]Fill, error) {
	fills := make([]Fill, 0, len(recs))
	for _, rec := range recs {
		f, err := FromRecord(rec, pair)
		if err != nil {
			return nil, fmt.Errorf("order %s: %w", rec.OrderNumber, err)
		}
		fills = append(fills, f)
	}

	return fills, nil
}

// IsBuy reports whether the fill received alt currency.
func (f Fill) IsBuy() bool {
	return f.Value < 0 || (f.Value == 0 && f.Side == types.SideBuy)
}

// Combine merges two fills into one. Quantity, Value and Fee are summed and the rate is the
// volume-weighted price of the totals.
func Combine(a, b Fill) Fill {
	out := Fill{
		ID:       a.ID,
		Pair:     a.Pair,
		Side:     a.Side,
		Value:    a.Value + b.Value,
		Quantity: a.Quantity + b.Quantity,
		Fee:      a.Fee + b.Fee,
		Time:     a.Time,
	}
	if b.Time.After(out.Time) {
		out.Time = b.Time
	}
	out.Rate = vwap(out.Value, out.Quantity)

	return out
}

// CombineAll folds fills with Combine. It returns false for an empty slice.
func CombineAll(fills []Fill) (Fill, bool) {
	if len(fills) == 0 {
		return Fill{}, false
	}

	out := fills[0]
	out.Rate = vwap(out.Value, out.Quantity)
	for _, f := range fills[1:] {
		out = Combine(out, f)
	}

	return out, true
}

func vwap(value, quantity float64) float64 {
	if quantity == 0 {
		return 0
	}
	return math.Abs(value / quantity)
}
