package trader

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/clock"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/config"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/database"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/marketdata"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/models"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/portfolio"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/strategy"
)

// Engine runs auto-trade cycles against the persisted simulated portfolio.
type Engine struct {
	UUID      string
	Name      string
	StartTime time.Time

	logger   *zap.Logger
	cfg      *config.Config
	provider marketdata.Provider
	store    database.Store
	scorer   *strategy.Scorer
	clock    clock.Clock

	// cycleMu serializes cycles: the portfolio has a single writer.
	cycleMu sync.Mutex

	mu         sync.RWMutex
	lastReport *CycleReport
	cycles     int
}

// NewEngine creates a new trading engine.
func NewEngine(logger *zap.Logger, cfg *config.Config, provider marketdata.Provider, store database.Store, clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Engine{
		UUID:      uuid.NewString(),
		Name:      cfg.Database.Name,
		StartTime: clk.Now(),
		logger:    logger.Named("engine"),
		cfg:       cfg,
		provider:  provider,
		store:     store,
		scorer:    strategy.NewScorer(logger),
		clock:     clk,
	}
}

// Run executes a cycle right away and then on every tick until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	// Using the interval from config for the ticker.
	interval := time.Duration(e.cfg.Trading.TickInterval) * time.Second
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("Starting auto-trade loop",
		zap.Duration("interval", interval),
		zap.String("strategy", e.cfg.Trading.Strategy),
		zap.Strings("coins", e.cfg.Trading.Coins),
	)

	e.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Stopping trading engine...")
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	report, err := e.RunCycle(ctx, e.cfg.Trading.Coins, e.cfg.Trading.Strategy, e.cfg.Trading.InitialCapital)
	if err != nil {
		e.logger.Error("Cycle failed", zap.Error(err))
		return
	}
	e.logger.Info("Cycle complete",
		zap.Int("trades", len(report.Trades)),
		zap.Int("errors", len(report.Errors)),
		zap.Float64("total_value", report.Portfolio.TotalValue),
	)
}

// LastReport returns the report of the most recent successful cycle.
func (e *Engine) LastReport() (*CycleReport, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastReport, e.lastReport != nil
}

// Cycles is the number of successful cycles since start.
func (e *Engine) Cycles() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cycles
}

// RunCycle loads the portfolio, runs exit rules and scores every coin, then saves
// the portfolio once. Failures for one coin are reported and do not stop the others;
// an unknown strategy fails before anything is loaded.
func (e *Engine) RunCycle(ctx context.Context, coins []string, strategyName string, initialCapital float64) (*CycleReport, error) {
	cfg, err := strategy.Lookup(strategyName)
	if err != nil {
		return nil, err
	}
	reserve, err := portfolio.NewReservePolicy(e.cfg.Trading.Reserve)
	if err != nil {
		return nil, fmt.Errorf("invalid reserve configuration: %w", err)
	}

	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	stored, err := e.store.Load(initialCapital)
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio: %w", err)
	}
	ledger := portfolio.NewLedger(e.logger, stored, reserve, e.cfg.Trading.MinTrade, e.clock)

	log := e.logger.With(zap.String("strategy", cfg.Name))
	report := &CycleReport{
		Timestamp: e.clock.Now().Format(time.RFC3339),
		Strategy:  cfg.Name,
		Trades:    []ExecutedTrade{},
		Signals:   []models.TradeSignal{},
		Errors:    []string{},
	}
	record := func(trades []models.Trade) {
		for _, t := range trades {
			report.Trades = append(report.Trades, executed(t))
		}
	}

	watch := union(coins, stored.Coins())
	prices, err := e.provider.FetchLatestPrices(ctx, watch)
	if err != nil {
		log.Warn("Failed to fetch latest prices", zap.Error(err))
		report.Errors = append(report.Errors, fmt.Sprintf("prices: %v", err))
		prices = map[string]float64{}
	}
	for _, coin := range stored.Coins() {
		if price, ok := prices[coin]; ok {
			ledger.MarkPrice(coin, price)
		}
	}
	record(ledger.CheckStopTargets(cfg))

	for _, coin := range coins {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		candles, err := e.provider.FetchHistoricalSeries(ctx, coin, e.cfg.Trading.LookbackDays)
		if err != nil {
			log.Warn("Skipping coin", zap.String("coin", coin), zap.Error(err))
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", coin, err))
			continue
		}

		sig, err := e.scorer.ScoreCoin(coin, models.Tail(candles, e.cfg.Trading.Window), cfg)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", coin, err))
			continue
		}
		if price, ok := prices[coin]; ok {
			sig.Price = price
		}
		report.Signals = append(report.Signals, sig)
		record(ledger.Apply(sig, cfg))
	}

	snapshot := ledger.Snapshot()
	if err := e.store.Save(snapshot); err != nil {
		return nil, fmt.Errorf("failed to save portfolio: %w", err)
	}
	report.Portfolio = summarize(snapshot)

	e.mu.Lock()
	e.lastReport = report
	e.cycles++
	e.mu.Unlock()
	return report, nil
}

func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string(nil), a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
