package models

import (
	"sort"
	"time"
)

// Portfolio is the capital, open positions and trade history of one run.
type Portfolio struct {
	Capital         float64             `json:"capital"`
	InitialCapital  float64             `json:"initial_capital"`
	Positions       map[string]Position `json:"positions"`
	Trades          []Trade             `json:"trades"`
	TotalPnL        float64             `json:"total_pnl"`
	TotalPnLPercent float64             `json:"total_pnl_percent"`
	LastUpdated     time.Time           `json:"last_updated"`
}

// NewPortfolio returns an empty portfolio holding only cash.
func NewPortfolio(initialCapital float64, now time.Time) Portfolio {
	return Portfolio{
		Capital:        initialCapital,
		InitialCapital: initialCapital,
		Positions:      make(map[string]Position),
		Trades:         []Trade{},
		LastUpdated:    now,
	}
}

// TotalValue is cash plus the market value of every open position.
func (p Portfolio) TotalValue() float64 {
	total := p.Capital
	for _, pos := range p.Positions {
		total += pos.MarketValue()
	}
	return total
}

// Coins returns the coins with an open position, sorted.
func (p Portfolio) Coins() []string {
	coins := make([]string, 0, len(p.Positions))
	for c := range p.Positions {
		coins = append(coins, c)
	}
	sort.Strings(coins)
	return coins
}

// Clone returns a deep copy.
func (p Portfolio) Clone() Portfolio {
	c := p
	c.Positions = make(map[string]Position, len(p.Positions))
	for k, v := range p.Positions {
		c.Positions[k] = v
	}
	c.Trades = make([]Trade, len(p.Trades))
	for i, t := range p.Trades {
		t.Indicators = append([]string(nil), t.Indicators...)
		c.Trades[i] = t
	}
	return c
}
