// Package backtest replays historical candles through a strategy and a fresh
// portfolio ledger.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/clock"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/config"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/marketdata"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/models"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/portfolio"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/strategy"
)

// ErrInsufficientData aborts a run whose shortest usable series is below the warm-up.
var ErrInsufficientData = errors.New("insufficient historical data")

// Options are the simulation knobs that do not change between runs.
type Options struct {
	Warmup        int // candles skipped before the first evaluation
	EvalsPerDay   int
	Window        int // trailing candles handed to the indicators
	CandlesPerDay int
	SignalHistory int // signals kept in the report
	MinTrade      float64
	Reserve       portfolio.ReservePolicy
}

// DefaultOptions matches the defaults of the configuration file.
func DefaultOptions() Options {
	return Options{
		Warmup:        30,
		EvalsPerDay:   6,
		Window:        60,
		CandlesPerDay: 24,
		SignalHistory: 50,
		MinTrade:      1,
		Reserve:       portfolio.FractionReserve{Percent: 5},
	}
}

// OptionsFromConfig builds Options from the backtest section of the configuration.
func OptionsFromConfig(cfg config.Backtest) (Options, error) {
	reserve, err := portfolio.NewReservePolicy(cfg.Reserve)
	if err != nil {
		return Options{}, err
	}
	opts := Options{
		Warmup:        cfg.Warmup,
		EvalsPerDay:   cfg.EvalsPerDay,
		Window:        cfg.Window,
		CandlesPerDay: cfg.CandlesPerDay,
		SignalHistory: cfg.SignalHistory,
		MinTrade:      cfg.MinTrade,
		Reserve:       reserve,
	}
	if opts.Warmup <= 0 || opts.EvalsPerDay <= 0 || opts.Window <= 0 || opts.CandlesPerDay <= 0 {
		return Options{}, fmt.Errorf("backtest warmup, evals_per_day, window and candles_per_day must be positive")
	}
	return opts, nil
}

// Params describe one run.
type Params struct {
	Strategy       string
	InitialCapital float64
	Coins          []string
	DurationDays   int
}

// Runner executes backtests. It is safe to reuse across runs, each run owns its ledger.
type Runner struct {
	provider marketdata.Provider
	scorer   *strategy.Scorer
	logger   *zap.Logger
	opts     Options
}

func NewRunner(provider marketdata.Provider, scorer *strategy.Scorer, opts Options, logger *zap.Logger) *Runner {
	if opts.Reserve == nil {
		opts.Reserve = DefaultOptions().Reserve
	}
	return &Runner{
		provider: provider,
		scorer:   scorer,
		logger:   logger.Named("backtest"),
		opts:     opts,
	}
}

// FetchDays is how many days of history a run of durationDays needs, warm-up included.
func (r *Runner) FetchDays(durationDays int) int {
	return durationDays + int(math.Ceil(float64(r.opts.Warmup)/float64(r.opts.CandlesPerDay)))
}

// Step is the candle stride between evaluations, about EvalsPerDay per simulated day.
func (r *Runner) Step(windowLength, durationDays int) int {
	return max(1, windowLength/(durationDays*r.opts.EvalsPerDay))
}

// Run simulates params.Strategy over the last params.DurationDays days.
func (r *Runner) Run(ctx context.Context, params Params) (*Report, error) {
	cfg, err := strategy.Lookup(params.Strategy)
	if err != nil {
		return nil, err
	}
	if params.InitialCapital <= 0 {
		return nil, fmt.Errorf("initial capital must be positive, got %v", params.InitialCapital)
	}
	if params.DurationDays <= 0 {
		return nil, fmt.Errorf("duration must be at least one day, got %d", params.DurationDays)
	}
	if len(params.Coins) == 0 {
		return nil, errors.New("no coins to backtest")
	}

	log := r.logger.With(zap.String("strategy", cfg.Name))
	report := &Report{
		Strategy:       cfg.Name,
		InitialCapital: params.InitialCapital,
		DurationDays:   params.DurationDays,
		Errors:         []string{},
	}

	days := r.FetchDays(params.DurationDays)
	series := make(map[string][]models.Candle, len(params.Coins))
	minLen := math.MaxInt
	for _, coin := range params.Coins {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		candles, err := r.provider.FetchHistoricalSeries(ctx, coin, days)
		if err != nil {
			log.Warn("Skipping coin", zap.String("coin", coin), zap.Error(err))
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", coin, err))
			continue
		}
		series[coin] = candles
		report.Coins = append(report.Coins, coin)
		minLen = min(minLen, len(candles))
	}

	if len(series) == 0 {
		return nil, fmt.Errorf("%w: no data for %s", ErrInsufficientData, strings.Join(params.Coins, ", "))
	}
	if minLen < r.opts.Warmup {
		return nil, fmt.Errorf("%w: %d candles, need at least %d", ErrInsufficientData, minLen, r.opts.Warmup)
	}

	// Align every series on its most recent minLen candles so that an index
	// designates the same interval for every coin.
	for coin, candles := range series {
		series[coin] = candles[len(candles)-minLen:]
	}

	// With exactly Warmup candles the window [Warmup, minLen) is empty: the run
	// reports zero evaluations and leaves the portfolio untouched.
	first := series[report.Coins[0]]
	start := first[min(r.opts.Warmup, minLen-1)].Timestamp
	clk := clock.NewManual(start)
	ledger := portfolio.NewLedger(r.logger, models.NewPortfolio(params.InitialCapital, clk.Now()), r.opts.Reserve, r.opts.MinTrade, clk)

	step := r.Step(minLen-r.opts.Warmup, params.DurationDays)
	log.Info("Starting backtest",
		zap.Strings("coins", report.Coins),
		zap.Int("candles", minLen),
		zap.Int("step", step),
		zap.Float64("initial_capital", params.InitialCapital),
	)

	maxValue := params.InitialCapital
	report.StartDate = start
	report.EndDate = start
	for i := r.opts.Warmup; i < minLen; i += step {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, coin := range report.Coins {
			candles := series[coin][:i+1]
			clk.Set(candles[i].Timestamp)

			sig, err := r.scorer.ScoreCoin(coin, models.Tail(candles, r.opts.Window), cfg)
			if err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", coin, err))
				continue
			}
			ledger.Apply(sig, cfg)
			report.addSignal(sig, r.opts.SignalHistory)
		}

		value := ledger.TotalValue()
		maxValue = math.Max(maxValue, value)
		if maxValue > 0 {
			report.MaxDrawdownPct = math.Max(report.MaxDrawdownPct, (maxValue-value)/maxValue*100)
		}
		report.EquityCurve = append(report.EquityCurve, EquityPoint{Time: clk.Now(), Value: value})
		report.Evaluations++
		report.EndDate = clk.Now()
	}

	report.finish(ledger.Snapshot(), float64(r.opts.CandlesPerDay)/float64(step))
	log.Info("Backtest finished",
		zap.Float64("final_value", report.FinalValue),
		zap.Float64("total_return_pct", report.TotalReturnPct),
		zap.Float64("max_drawdown_pct", report.MaxDrawdownPct),
		zap.Float64("win_rate_pct", report.WinRatePct),
		zap.Int("trades", report.TotalTrades),
	)
	return report, nil
}
