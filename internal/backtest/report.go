package backtest

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/models"
)

// EquityPoint is the portfolio value after one evaluation round.
type EquityPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Report is the outcome of a backtest run.
type Report struct {
	Strategy       string               `json:"strategy"`
	Coins          []string             `json:"coins"`
	DurationDays   int                  `json:"duration_days"`
	InitialCapital float64              `json:"initial_capital"`
	FinalValue     float64              `json:"final_value"`
	Portfolio      models.Portfolio     `json:"portfolio"`
	Signals        []models.TradeSignal `json:"signals"`
	StartDate      time.Time            `json:"start_date"`
	EndDate        time.Time            `json:"end_date"`
	TotalReturn    float64              `json:"total_return"`
	TotalReturnPct float64              `json:"total_return_pct"`
	MaxDrawdownPct float64              `json:"max_drawdown_pct"`
	WinRatePct     float64              `json:"win_rate_pct"`
	TotalTrades    int                  `json:"total_trades"`
	SellTrades     int                  `json:"sell_trades"`
	SharpeRatio    float64              `json:"sharpe_ratio"`
	Evaluations    int                  `json:"evaluations"`
	EquityCurve    []EquityPoint        `json:"equity_curve"`
	Errors         []string             `json:"errors"`
}

// addSignal keeps the most recent limit signals.
func (r *Report) addSignal(sig models.TradeSignal, limit int) {
	r.Signals = append(r.Signals, sig)
	if limit > 0 && len(r.Signals) > limit {
		r.Signals = append([]models.TradeSignal(nil), r.Signals[len(r.Signals)-limit:]...)
	}
}

func (r *Report) finish(p models.Portfolio, roundsPerDay float64) {
	r.Portfolio = p
	r.FinalValue = p.TotalValue()
	r.TotalReturn = r.FinalValue - r.InitialCapital
	r.TotalReturnPct = r.TotalReturn / r.InitialCapital * 100
	r.TotalTrades = len(p.Trades)
	r.WinRatePct = WinRate(p.Trades)
	for _, t := range p.Trades {
		if t.Side == models.SideSell {
			r.SellTrades++
		}
	}
	r.SharpeRatio = Sharpe(r.InitialCapital, r.EquityCurve, roundsPerDay*365)
}

// WinRate is the percentage of SELL trades priced above the most recent earlier
// BUY of the same coin. Equal prices count as losses; no SELL trades gives 0.
func WinRate(trades []models.Trade) float64 {
	var sells, wins int
	for i, t := range trades {
		if t.Side != models.SideSell {
			continue
		}
		sells++
		for j := i - 1; j >= 0; j-- {
			if trades[j].Side == models.SideBuy && trades[j].Coin == t.Coin {
				if t.Price > trades[j].Price {
					wins++
				}
				break
			}
		}
	}
	if sells == 0 {
		return 0
	}
	return float64(wins) / float64(sells) * 100
}

// Sharpe annualizes mean/stddev of the per-round returns of the equity curve.
// It is 0 when there are fewer than two returns or no variance.
func Sharpe(initial float64, curve []EquityPoint, periodsPerYear float64) float64 {
	if len(curve) < 2 || initial <= 0 {
		return 0
	}
	returns := make([]float64, 0, len(curve))
	prev := initial
	for _, p := range curve {
		if prev > 0 {
			returns = append(returns, p.Value/prev-1)
		}
		prev = p.Value
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return mean / std * math.Sqrt(periodsPerYear)
}
