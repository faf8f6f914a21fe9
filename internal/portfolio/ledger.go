package portfolio

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/clock"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/models"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/strategy"
)

// Ledger exclusively owns a Portfolio and exposes only the transitions that keep
// capital + sum(position value) == initialCapital + totalPnL.
// A Ledger is not safe for concurrent use; a driver owns it for one run or cycle.
type Ledger struct {
	logger   *zap.Logger
	clock    clock.Clock
	reserve  ReservePolicy
	minTrade float64
	p        models.Portfolio
}

// NewLedger takes ownership of a copy of p.
func NewLedger(logger *zap.Logger, p models.Portfolio, reserve ReservePolicy, minTrade float64, clk clock.Clock) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if reserve == nil {
		reserve = FixedReserve{}
	}
	p = p.Clone()
	if p.Positions == nil {
		p.Positions = make(map[string]models.Position)
	}
	l := &Ledger{
		logger:   logger.Named("ledger"),
		clock:    clk,
		reserve:  reserve,
		minTrade: minTrade,
		p:        p,
	}
	l.recompute()
	return l
}

// MarkPrice records the latest price of a held coin.
func (l *Ledger) MarkPrice(coin string, price float64) {
	pos, ok := l.p.Positions[coin]
	if !ok || price <= 0 {
		return
	}
	pos.CurrentPrice = price
	l.p.Positions[coin] = pos
	l.recompute()
}

// ApplyBuy opens a position sized by the strategy and the reserve policy.
// It returns nil when the BUY was not executed.
func (l *Ledger) ApplyBuy(sig models.TradeSignal, cfg strategy.Config) *models.Trade {
	log := l.logger.With(zap.String("coin", sig.Coin), zap.Float64("price", sig.Price))

	if _, held := l.p.Positions[sig.Coin]; held {
		log.Info("Position already open, skipping BUY")
		return nil
	}
	if sig.Price <= 0 {
		log.Warn("No valid price, skipping BUY")
		return nil
	}

	reserve := l.reserve.Reserve(l.p.Capital)
	available := math.Max(0, l.p.Capital-reserve)
	spend := available * cfg.MaxPositionPct / 100
	if spend < l.minTrade {
		log.Info("Spendable amount below minimum trade, skipping BUY",
			zap.Float64("capital", l.p.Capital),
			zap.Float64("reserve", reserve),
			zap.Float64("spend", spend),
			zap.Float64("min_trade", l.minTrade),
		)
		return nil
	}

	now := l.clock.Now()
	qty := spend / sig.Price
	l.p.Capital -= spend
	l.p.Positions[sig.Coin] = models.Position{
		Coin:         sig.Coin,
		EntryPrice:   sig.Price,
		Quantity:     qty,
		EntryTime:    now,
		CurrentPrice: sig.Price,
	}
	trade := l.record(models.Trade{
		Coin:       sig.Coin,
		Side:       models.SideBuy,
		Price:      sig.Price,
		Quantity:   qty,
		Total:      spend,
		Timestamp:  now,
		Reason:     sig.Rationale(),
		Indicators: sig.IndicatorNames(),
	})
	log.Info("Opened position",
		zap.Float64("quantity", qty),
		zap.Float64("spend", spend),
		zap.Float64("capital", l.p.Capital),
		zap.Int("score", sig.Score),
	)
	return trade
}

// ApplySell closes the position on sig.Coin at sig.Price.
// It returns nil when there was nothing to sell.
func (l *Ledger) ApplySell(sig models.TradeSignal) *models.Trade {
	return l.sell(sig.Coin, sig.Price, sig.Rationale(), sig.IndicatorNames())
}

func (l *Ledger) sell(coin string, price float64, reason string, names []string) *models.Trade {
	log := l.logger.With(zap.String("coin", coin), zap.Float64("price", price))

	pos, held := l.p.Positions[coin]
	if !held {
		log.Info("No open position, skipping SELL")
		return nil
	}
	if price <= 0 {
		price = pos.MarkPrice()
	}

	proceeds := pos.Quantity * price
	pnl := proceeds - pos.CostBasis()
	l.p.Capital += proceeds
	delete(l.p.Positions, coin)

	trade := l.record(models.Trade{
		Coin:       coin,
		Side:       models.SideSell,
		Price:      price,
		Quantity:   pos.Quantity,
		Total:      proceeds,
		Timestamp:  l.clock.Now(),
		Reason:     reason,
		Indicators: names,
		PnL:        pnl,
	})
	log.Info("Closed position",
		zap.Float64("quantity", pos.Quantity),
		zap.Float64("proceeds", proceeds),
		zap.Float64("pnl", pnl),
		zap.String("reason", reason),
	)
	return trade
}

// CheckStopTarget force-sells coin when its live PnL% crosses the strategy's
// stop-loss or take-profit.
func (l *Ledger) CheckStopTarget(coin string, cfg strategy.Config) *models.Trade {
	pos, held := l.p.Positions[coin]
	if !held {
		return nil
	}
	pct := pnlPercent(pos)
	var reason string
	switch {
	case pct <= -cfg.StopLossPct:
		reason = fmt.Sprintf("stop-loss: PnL %.2f%% <= -%.2f%%", pct, cfg.StopLossPct)
	case pct >= cfg.TakeProfitPct:
		reason = fmt.Sprintf("take-profit: PnL %.2f%% >= %.2f%%", pct, cfg.TakeProfitPct)
	default:
		return nil
	}
	l.logger.Info("Exit rule triggered", zap.String("coin", coin), zap.Float64("pnl_percent", pct), zap.String("reason", reason))
	return l.sell(coin, pos.MarkPrice(), reason, nil)
}

// CheckStopTargets runs CheckStopTarget over every open position, in coin order.
func (l *Ledger) CheckStopTargets(cfg strategy.Config) []models.Trade {
	var trades []models.Trade
	for _, coin := range l.p.Coins() {
		if t := l.CheckStopTarget(coin, cfg); t != nil {
			trades = append(trades, *t)
		}
	}
	return trades
}

// Apply presents a scored signal to the ledger: the price is marked, exit rules for
// the coin run first, then the signal itself is acted upon. A position closed by an
// exit rule can therefore be re-opened by the same signal.
func (l *Ledger) Apply(sig models.TradeSignal, cfg strategy.Config) []models.Trade {
	l.MarkPrice(sig.Coin, sig.Price)

	var trades []models.Trade
	if t := l.CheckStopTarget(sig.Coin, cfg); t != nil {
		trades = append(trades, *t)
	}

	var t *models.Trade
	switch sig.Signal {
	case models.Buy:
		t = l.ApplyBuy(sig, cfg)
	case models.Sell:
		t = l.ApplySell(sig)
	}
	if t != nil {
		trades = append(trades, *t)
	}
	return trades
}

// Snapshot returns a deep copy of the portfolio.
func (l *Ledger) Snapshot() models.Portfolio {
	return l.p.Clone()
}

func (l *Ledger) Capital() float64 { return l.p.Capital }

func (l *Ledger) TotalValue() float64 { return l.p.TotalValue() }

func (l *Ledger) Position(coin string) (models.Position, bool) {
	pos, ok := l.p.Positions[coin]
	return pos, ok
}

func (l *Ledger) HasPosition(coin string) bool {
	_, ok := l.p.Positions[coin]
	return ok
}

// Trades returns a copy of the trade log.
func (l *Ledger) Trades() []models.Trade {
	return l.Snapshot().Trades
}

func (l *Ledger) record(t models.Trade) *models.Trade {
	t.ID = uuid.NewString()
	l.p.Trades = append(l.p.Trades, t)
	l.recompute()
	return &t
}

// recompute restores the derived totals. It must run after every mutation.
func (l *Ledger) recompute() {
	for coin, pos := range l.p.Positions {
		pos.PnL = pos.MarketValue() - pos.CostBasis()
		pos.PnLPercent = pnlPercent(pos)
		l.p.Positions[coin] = pos
	}
	l.p.TotalPnL = l.p.TotalValue() - l.p.InitialCapital
	if l.p.InitialCapital > 0 {
		l.p.TotalPnLPercent = l.p.TotalPnL / l.p.InitialCapital * 100
	} else {
		l.p.TotalPnLPercent = 0
	}
	l.p.LastUpdated = l.clock.Now()
}

func pnlPercent(pos models.Position) float64 {
	if pos.EntryPrice <= 0 {
		return 0
	}
	return (pos.MarkPrice() - pos.EntryPrice) / pos.EntryPrice * 100
}
