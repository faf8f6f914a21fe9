package models

import "time"

// Position is an open holding of a single coin.
// CurrentPrice is zero until a live price has been observed.
type Position struct {
	Coin         string    `json:"coin"`
	EntryPrice   float64   `json:"entry_price"`
	Quantity     float64   `json:"quantity"`
	EntryTime    time.Time `json:"entry_time"`
	CurrentPrice float64   `json:"current_price,omitempty"`
	PnL          float64   `json:"pnl,omitempty"`
	PnLPercent   float64   `json:"pnl_percent,omitempty"`
}

// MarkPrice is the latest known price, falling back to the entry price.
func (p Position) MarkPrice() float64 {
	if p.CurrentPrice > 0 {
		return p.CurrentPrice
	}
	return p.EntryPrice
}

// MarketValue is quantity times MarkPrice.
func (p Position) MarketValue() float64 {
	return p.Quantity * p.MarkPrice()
}

// CostBasis is what was paid to open the position.
func (p Position) CostBasis() float64 {
	return p.Quantity * p.EntryPrice
}
