package trader

import (
	"github.com/shopspring/decimal"

	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/models"
)

// CycleReport is the self-contained outcome of one auto-trade cycle.
type CycleReport struct {
	Timestamp string               `json:"timestamp"`
	Strategy  string               `json:"strategy"`
	Trades    []ExecutedTrade      `json:"trades"`
	Portfolio PortfolioSummary     `json:"portfolio"`
	Signals   []models.TradeSignal `json:"signals"`
	Errors    []string             `json:"errors"`
}

// ExecutedTrade is a trade made during the cycle. RealizedPnL is set for sells only.
type ExecutedTrade struct {
	Action      string   `json:"action"`
	Coin        string   `json:"coin"`
	Amount      float64  `json:"amount"`
	Quantity    float64  `json:"quantity"`
	Price       float64  `json:"price"`
	Rationale   string   `json:"rationale"`
	RealizedPnL *float64 `json:"realized_pnl,omitempty"`
}

type PositionSummary struct {
	Coin         string  `json:"coin"`
	Quantity     float64 `json:"quantity"`
	EntryPrice   float64 `json:"entry_price"`
	CurrentPrice float64 `json:"current_price"`
	Value        float64 `json:"value"`
	PnL          float64 `json:"pnl"`
	PnLPercent   float64 `json:"pnl_percent"`
}

type PortfolioSummary struct {
	InitialCapital  float64           `json:"initial_capital"`
	Capital         float64           `json:"capital"`
	TotalValue      float64           `json:"total_value"`
	TotalPnL        float64           `json:"total_pnl"`
	TotalPnLPercent float64           `json:"total_pnl_percent"`
	Positions       []PositionSummary `json:"positions"`
	TradeCount      int               `json:"trade_count"`
}

// cents rounds a money amount for display.
func cents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func executed(t models.Trade) ExecutedTrade {
	et := ExecutedTrade{
		Action:    t.Side,
		Coin:      t.Coin,
		Amount:    cents(t.Total),
		Quantity:  t.Quantity,
		Price:     t.Price,
		Rationale: t.Reason,
	}
	if t.Side == models.SideSell {
		pnl := cents(t.PnL)
		et.RealizedPnL = &pnl
	}
	return et
}

func summarize(p models.Portfolio) PortfolioSummary {
	s := PortfolioSummary{
		InitialCapital:  cents(p.InitialCapital),
		Capital:         cents(p.Capital),
		TotalValue:      cents(p.TotalValue()),
		TotalPnL:        cents(p.TotalPnL),
		TotalPnLPercent: cents(p.TotalPnLPercent),
		Positions:       make([]PositionSummary, 0, len(p.Positions)),
		TradeCount:      len(p.Trades),
	}
	for _, coin := range p.Coins() {
		pos := p.Positions[coin]
		s.Positions = append(s.Positions, PositionSummary{
			Coin:         coin,
			Quantity:     pos.Quantity,
			EntryPrice:   pos.EntryPrice,
			CurrentPrice: pos.MarkPrice(),
			Value:        cents(pos.MarketValue()),
			PnL:          cents(pos.PnL),
			PnLPercent:   cents(pos.PnLPercent),
		})
	}
	return s
}
