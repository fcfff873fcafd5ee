package types

import "time"

// Outcome classifies what happened during one decision cycle.
type Outcome string

const (
	OutcomeNoAction Outcome = "no-action"
	OutcomeSuccess  Outcome = "success"
	OutcomeFailure  Outcome = "failure"
)

// DecisionRecord is the audit entry written after every cycle.
type DecisionRecord struct {
	ID            string    `json:"id"`
	Pair          string    `json:"pair"`
	EvaluatedAt   time.Time `json:"evaluated_at"`
	Strategy      string    `json:"strategy"`
	HighestBid    float64   `json:"highest_bid"`
	LowestAsk     float64   `json:"lowest_ask"`
	EMA1          float64   `json:"ema1"`
	EMA2          float64   `json:"ema2"`
	CanBuy        bool      `json:"can_buy"`
	CanSell       bool      `json:"can_sell"`
	BuyRate       float64   `json:"buy_rate,omitempty"`
	SellRate      float64   `json:"sell_rate,omitempty"`
	MainBalance   float64   `json:"main_balance"`
	AltBalance    float64   `json:"alt_balance"`
	Action        string    `json:"action"`
	State         string    `json:"state"`
	MainAmount    float64   `json:"main_amount,omitempty"`
	AltAmount     float64   `json:"alt_amount,omitempty"`
	ProfitPercent float64   `json:"profit_percent"`
	Outcome       Outcome   `json:"outcome"`
	OrderNumber   string    `json:"order_number,omitempty"`
	Reason        string    `json:"reason,omitempty"`
}
