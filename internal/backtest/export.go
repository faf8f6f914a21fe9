package backtest

import (
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/models"
)

type tradeRow struct {
	Time       string  `csv:"time"`
	ID         string  `csv:"id"`
	Coin       string  `csv:"coin"`
	Side       string  `csv:"side"`
	Price      float64 `csv:"price"`
	Quantity   float64 `csv:"quantity"`
	Total      float64 `csv:"total"`
	PnL        float64 `csv:"pnl"`
	Indicators string  `csv:"indicators"`
	Reason     string  `csv:"reason"`
}

type equityRow struct {
	Time  string  `csv:"time"`
	Value float64 `csv:"value"`
}

// WriteTradesCSV writes the trade log as CSV with a header row.
func WriteTradesCSV(w io.Writer, trades []models.Trade) error {
	rows := make([]*tradeRow, len(trades))
	for i, t := range trades {
		rows[i] = &tradeRow{
			Time:       t.Timestamp.UTC().Format(time.RFC3339),
			ID:         t.ID,
			Coin:       t.Coin,
			Side:       t.Side,
			Price:      t.Price,
			Quantity:   t.Quantity,
			Total:      t.Total,
			PnL:        t.PnL,
			Indicators: strings.Join(t.Indicators, ";"),
			Reason:     t.Reason,
		}
	}
	return gocsv.Marshal(&rows, w)
}

// WriteEquityCSV writes the equity curve as CSV with a header row.
func WriteEquityCSV(w io.Writer, curve []EquityPoint) error {
	rows := make([]*equityRow, len(curve))
	for i, p := range curve {
		rows[i] = &equityRow{Time: p.Time.UTC().Format(time.RFC3339), Value: p.Value}
	}
	return gocsv.Marshal(&rows, w)
}
