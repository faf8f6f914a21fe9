package database

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/models"
)

// PortfolioRecord is the cash side of a named portfolio.
// There should only ever be one row per name.
type PortfolioRecord struct {
	gorm.Model
	Name            string  `gorm:"uniqueIndex;not null"`
	Capital         float64 `gorm:"not null"`
	InitialCapital  float64 `gorm:"not null"`
	TotalPnL        float64
	TotalPnLPercent float64
	LastUpdated     time.Time
}

// PositionRecord is an open position. Rows mirror the current state and are
// replaced on every save.
type PositionRecord struct {
	gorm.Model
	PortfolioName string  `gorm:"uniqueIndex:idx_portfolio_coin;not null"`
	Coin          string  `gorm:"uniqueIndex:idx_portfolio_coin;not null"`
	EntryPrice    float64 `gorm:"not null"`
	Quantity      float64 `gorm:"not null"`
	EntryTime     time.Time
	CurrentPrice  float64
}

// TradeRecord is one entry of the trade log. Rows are inserted once and never updated.
type TradeRecord struct {
	ID            string `gorm:"primaryKey"`
	PortfolioName string `gorm:"index;not null"`
	Seq           int    `gorm:"not null"`
	Coin          string `gorm:"index;not null"`
	Side          string `gorm:"not null"`
	Price         float64
	Quantity      float64
	Total         float64
	PnL           float64
	Timestamp     time.Time `gorm:"index"`
	Reason        string
	Indicators    string
	CreatedAt     time.Time
}

func toTradeRecord(name string, seq int, t models.Trade) TradeRecord {
	return TradeRecord{
		ID:            t.ID,
		PortfolioName: name,
		Seq:           seq,
		Coin:          t.Coin,
		Side:          t.Side,
		Price:         t.Price,
		Quantity:      t.Quantity,
		Total:         t.Total,
		PnL:           t.PnL,
		Timestamp:     t.Timestamp,
		Reason:        t.Reason,
		Indicators:    strings.Join(t.Indicators, ","),
	}
}

// Trade converts the record back into the domain type.
func (r TradeRecord) Trade() models.Trade {
	var names []string
	if r.Indicators != "" {
		names = strings.Split(r.Indicators, ",")
	}
	return models.Trade{
		ID:         r.ID,
		Coin:       r.Coin,
		Side:       r.Side,
		Price:      r.Price,
		Quantity:   r.Quantity,
		Total:      r.Total,
		PnL:        r.PnL,
		Timestamp:  r.Timestamp.UTC(),
		Reason:     r.Reason,
		Indicators: names,
	}
}

func toPositionRecord(name string, p models.Position) PositionRecord {
	return PositionRecord{
		PortfolioName: name,
		Coin:          p.Coin,
		EntryPrice:    p.EntryPrice,
		Quantity:      p.Quantity,
		EntryTime:     p.EntryTime,
		CurrentPrice:  p.CurrentPrice,
	}
}

func (r PositionRecord) Position() models.Position {
	return models.Position{
		Coin:         r.Coin,
		EntryPrice:   r.EntryPrice,
		Quantity:     r.Quantity,
		EntryTime:    r.EntryTime.UTC(),
		CurrentPrice: r.CurrentPrice,
	}
}
