package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/backtest"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/models"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/strategy"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/trader"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6"))

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 1)

	buyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	sellStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	holdStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444"))
)

func sideStyle(side string) lipgloss.Style {
	switch side {
	case models.SideBuy:
		return buyStyle
	case models.SideSell:
		return sellStyle
	default:
		return holdStyle
	}
}

// pnlStyle colours gains green and losses red.
func pnlStyle(v float64) lipgloss.Style {
	switch {
	case v > 0:
		return buyStyle
	case v < 0:
		return sellStyle
	default:
		return holdStyle
	}
}

// keyValues renders aligned "key  value" lines.
func keyValues(pairs [][2]string) string {
	width := 0
	for _, p := range pairs {
		width = max(width, len(p[0]))
	}
	lines := make([]string, len(pairs))
	for i, p := range pairs {
		lines[i] = headerStyle.Render(fmt.Sprintf("%-*s", width, p[0])) + "  " + p[1]
	}
	return strings.Join(lines, "\n")
}

func renderErrors(errs []string) string {
	if len(errs) == 0 {
		return ""
	}
	lines := make([]string, len(errs))
	for i, e := range errs {
		lines[i] = errorStyle.Render("! " + e)
	}
	return strings.Join(lines, "\n") + "\n"
}

func renderTrades(trades []models.Trade) string {
	if len(trades) == 0 {
		return holdStyle.Render("No trades.") + "\n"
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-17s %-4s %-6s %12s %12s %10s %10s  %s",
		"TIME", "SIDE", "COIN", "QUANTITY", "PRICE", "TOTAL", "PNL", "REASON")))
	b.WriteString("\n")
	for _, t := range trades {
		pnl := "-"
		if t.Side == models.SideSell {
			pnl = pnlStyle(t.PnL).Render(fmt.Sprintf("%10.2f", t.PnL))
		}
		fmt.Fprintf(&b, "%-17s %s %-6s %12.6f %12.2f %10.2f %10s  %s\n",
			t.Timestamp.Format("2006-01-02 15:04"),
			sideStyle(t.Side).Render(fmt.Sprintf("%-4s", t.Side)),
			t.Coin, t.Quantity, t.Price, t.Total, pnl, t.Reason)
	}
	return b.String()
}

func renderBacktest(r *backtest.Report) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Backtest: %s on %s over %d days",
		r.Strategy, strings.Join(r.Coins, ", "), r.DurationDays)))
	b.WriteString("\n")

	summary := keyValues([][2]string{
		{"Period", fmt.Sprintf("%s .. %s", r.StartDate.Format("2006-01-02 15:04"), r.EndDate.Format("2006-01-02 15:04"))},
		{"Initial capital", fmt.Sprintf("%.2f", r.InitialCapital)},
		{"Final value", fmt.Sprintf("%.2f", r.FinalValue)},
		{"Return", pnlStyle(r.TotalReturn).Render(fmt.Sprintf("%+.2f (%+.2f%%)", r.TotalReturn, r.TotalReturnPct))},
		{"Max drawdown", fmt.Sprintf("%.2f%%", r.MaxDrawdownPct)},
		{"Win rate", fmt.Sprintf("%.2f%% of %d closed trades", r.WinRatePct, r.SellTrades)},
		{"Sharpe ratio", fmt.Sprintf("%.2f", r.SharpeRatio)},
		{"Trades", fmt.Sprintf("%d", r.TotalTrades)},
		{"Evaluations", fmt.Sprintf("%d", r.Evaluations)},
	})
	b.WriteString(boxStyle.Render(summary))
	b.WriteString("\n")
	b.WriteString(renderTrades(r.Portfolio.Trades))
	b.WriteString(renderErrors(r.Errors))
	return b.String()
}

func renderSignals(strategyName string, signals []models.TradeSignal, errs []string) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Signals: " + strategyName))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-6s %-4s %5s %12s  %s", "COIN", "SIG", "SCORE", "PRICE", "REASONS")))
	b.WriteString("\n")
	for _, s := range signals {
		fmt.Fprintf(&b, "%-6s %s %5d %12.2f  %s\n",
			s.Coin,
			sideStyle(s.Signal.String()).Render(fmt.Sprintf("%-4s", s.Signal)),
			s.Score, s.Price, s.Rationale())
	}
	b.WriteString(renderErrors(errs))
	return b.String()
}

func renderCycle(r *trader.CycleReport) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Auto-trade cycle: %s at %s", r.Strategy, r.Timestamp)))
	b.WriteString("\n")

	if len(r.Trades) == 0 {
		b.WriteString(holdStyle.Render("No trades.") + "\n")
	}
	for _, t := range r.Trades {
		line := fmt.Sprintf("%s %-6s %.2f @ %.2f  %s", sideStyle(t.Action).Render(fmt.Sprintf("%-4s", t.Action)), t.Coin, t.Amount, t.Price, t.Rationale)
		if t.RealizedPnL != nil {
			line += "  pnl " + pnlStyle(*t.RealizedPnL).Render(fmt.Sprintf("%+.2f", *t.RealizedPnL))
		}
		b.WriteString(line + "\n")
	}

	p := r.Portfolio
	pairs := [][2]string{
		{"Capital", fmt.Sprintf("%.2f", p.Capital)},
		{"Total value", fmt.Sprintf("%.2f", p.TotalValue)},
		{"PnL", pnlStyle(p.TotalPnL).Render(fmt.Sprintf("%+.2f (%+.2f%%)", p.TotalPnL, p.TotalPnLPercent))},
		{"Trades", fmt.Sprintf("%d", p.TradeCount)},
	}
	for _, pos := range p.Positions {
		pairs = append(pairs, [2]string{pos.Coin, fmt.Sprintf("%.6f @ %.2f, value %.2f, pnl %s",
			pos.Quantity, pos.EntryPrice, pos.Value, pnlStyle(pos.PnL).Render(fmt.Sprintf("%+.2f%%", pos.PnLPercent)))})
	}
	b.WriteString(boxStyle.Render(keyValues(pairs)))
	b.WriteString("\n")
	b.WriteString(renderErrors(r.Errors))
	return b.String()
}

func renderStrategies(presets []strategy.Config) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Strategy presets"))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-13s %5s %5s %6s %6s %6s  %s", "NAME", "BUY", "SELL", "MAXPOS", "STOP", "TARGET", "INDICATORS")))
	b.WriteString("\n")
	for _, c := range presets {
		kinds := make([]string, len(c.Indicators))
		for i, k := range c.Indicators {
			kinds[i] = k.String()
		}
		fmt.Fprintf(&b, "%-13s %5.0f %5.0f %5.0f%% %5.0f%% %5.0f%%  %s\n",
			c.Name, c.BuyThreshold, c.SellThreshold, c.MaxPositionPct, c.StopLossPct, c.TakeProfitPct, strings.Join(kinds, ", "))
	}
	return b.String()
}
