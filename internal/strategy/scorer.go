package strategy

import (
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/models"
)

// ErrNoCandles is returned when there is nothing to score.
var ErrNoCandles = errors.New("no candles to score")

// Scorer evaluates a strategy's indicators and combines them into one decision.
type Scorer struct {
	logger *zap.Logger
}

// NewScorer creates a Scorer that logs every decision on logger.
func NewScorer(logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{logger: logger.Named("scorer")}
}

// Analyze runs the strategy's indicators over candles, in the configured order.
// An indicator whose minimum sample size is not met is skipped with a warning.
func (s *Scorer) Analyze(coin string, candles []models.Candle, cfg Config) []models.IndicatorOutput {
	outputs := make([]models.IndicatorOutput, 0, len(cfg.Indicators))
	for _, kind := range cfg.Indicators {
		if len(candles) < kind.MinSamples() {
			s.logger.Warn("Low sample size, skipping indicator",
				zap.String("coin", coin),
				zap.Stringer("indicator", kind),
				zap.Int("have", len(candles)),
				zap.Int("need", kind.MinSamples()),
			)
			continue
		}
		out, err := kind.Compute(candles)
		if err != nil {
			s.logger.Warn("Indicator failed, skipping", zap.String("coin", coin), zap.Stringer("indicator", kind), zap.Error(err))
			continue
		}
		outputs = append(outputs, out)
	}
	return outputs
}

// ComputeSignal averages direction x strength over outputs and applies the thresholds
// to the rounded score. No outputs means a score of 0 and HOLD.
func (s *Scorer) ComputeSignal(coin string, price float64, outputs []models.IndicatorOutput, cfg Config, ts time.Time) models.TradeSignal {
	var sum float64
	reasons := make([]string, 0, len(outputs))
	for _, o := range outputs {
		sum += o.Signal.Direction() * o.Strength
		reasons = append(reasons, o.Reason)
	}
	score := 0
	if len(outputs) > 0 {
		score = int(math.Round(sum / float64(len(outputs))))
	}

	signal := models.Hold
	switch {
	case float64(score) >= cfg.BuyThreshold:
		signal = models.Buy
	case float64(score) <= cfg.SellThreshold:
		signal = models.Sell
	}

	sig := models.TradeSignal{
		Coin:       coin,
		Signal:     signal,
		Score:      score,
		Reasons:    reasons,
		Indicators: outputs,
		Timestamp:  ts,
		Price:      price,
	}
	s.logger.Info("Scored coin",
		zap.String("coin", coin),
		zap.String("strategy", cfg.Name),
		zap.Stringer("signal", signal),
		zap.Int("score", score),
		zap.Float64("price", price),
		zap.Int("indicators", len(outputs)),
		zap.String("rationale", sig.Rationale()),
	)
	return sig
}

// ScoreCoin scores the latest candle of a series. It is the single-shot entry point
// shared by the backtest, the auto-trade cycle and ad-hoc analysis.
func (s *Scorer) ScoreCoin(coin string, candles []models.Candle, cfg Config) (models.TradeSignal, error) {
	if len(candles) == 0 {
		return models.TradeSignal{}, ErrNoCandles
	}
	last := candles[len(candles)-1]
	outputs := s.Analyze(coin, candles, cfg)
	return s.ComputeSignal(coin, last.Close, outputs, cfg, last.Timestamp), nil
}
