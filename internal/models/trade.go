package models

import "time"

// Side of a recorded trade.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Trade is an immutable entry of the audit trail.
// PnL is the realized profit of a SELL and zero for a BUY.
type Trade struct {
	ID         string    `json:"id"`
	Coin       string    `json:"coin"`
	Side       string    `json:"side"`
	Price      float64   `json:"price"`
	Quantity   float64   `json:"quantity"`
	Total      float64   `json:"total"`
	Timestamp  time.Time `json:"timestamp"`
	Reason     string    `json:"reason"`
	Indicators []string  `json:"indicators"`
	PnL        float64   `json:"pnl,omitempty"`
}
