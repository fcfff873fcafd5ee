package types

import (
	"strings"
	"time"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Ticker holds the best prices currently quoted for a pair.
type Ticker struct {
	HighestBid float64
	LowestAsk  float64
}

// TradeRecord is one executed fill as reported by the exchange, numeric fields as sent on the wire.
type TradeRecord struct {
	OrderNumber string
	Date        time.Time
	Rate        string
	Amount      string // Base (alt) currency
	Total       string // Quote (main) currency
	Fee         string
	Type        Side
}

// SplitPair splits a pair such as BTC_ETH into its main (quote) and alt (base) currencies.
func SplitPair(pair string) (main, alt string) {
	parts := strings.SplitN(pair, "_", 2)
	if len(parts) != 2 {
		return pair, ""
	}

	return parts[0], parts[1]
}
