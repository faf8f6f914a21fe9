// Package strategy holds the named strategy presets and turns indicator
// outputs into a scored trade decision.
package strategy

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/indicators"
)

// ErrUnknownStrategy is returned for a strategy name outside the presets.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Config is an immutable strategy preset.
// BuyThreshold and SellThreshold are compared with the consensus score (-100..100).
type Config struct {
	Name           string            `json:"name"`
	Indicators     []indicators.Kind `json:"indicators"`
	BuyThreshold   float64           `json:"buy_threshold"`
	SellThreshold  float64           `json:"sell_threshold"`
	MaxPositionPct float64           `json:"max_position_pct"`
	StopLossPct    float64           `json:"stop_loss_pct"`
	TakeProfitPct  float64           `json:"take_profit_pct"`
}

// Validate checks buyThreshold > 0 > sellThreshold and 0 < maxPositionPct <= 100.
func (c Config) Validate() error {
	if !(c.BuyThreshold > 0 && c.SellThreshold < 0) {
		return fmt.Errorf("strategy %s: thresholds must satisfy buy > 0 > sell, got %v/%v", c.Name, c.BuyThreshold, c.SellThreshold)
	}
	if c.MaxPositionPct <= 0 || c.MaxPositionPct > 100 {
		return fmt.Errorf("strategy %s: max position pct must be in (0, 100], got %v", c.Name, c.MaxPositionPct)
	}
	if c.StopLossPct <= 0 || c.TakeProfitPct <= 0 {
		return fmt.Errorf("strategy %s: stop-loss and take-profit must be positive", c.Name)
	}
	if len(c.Indicators) == 0 {
		return fmt.Errorf("strategy %s: no indicators", c.Name)
	}
	return nil
}

// The three presets. Threshold and indicator-set size together encode risk appetite:
// conservative needs near-unanimous agreement across five indicators, aggressive
// reaches its lower bar with three.
var presets = map[string]Config{
	"conservative": {
		Name: "conservative",
		Indicators: []indicators.Kind{
			indicators.KindRSI, indicators.KindMACD, indicators.KindBollinger,
			indicators.KindTrend, indicators.KindVolume,
		},
		BuyThreshold:   60,
		SellThreshold:  -60,
		MaxPositionPct: 10,
		StopLossPct:    5,
		TakeProfitPct:  10,
	},
	"balanced": {
		Name: "balanced",
		Indicators: []indicators.Kind{
			indicators.KindRSI, indicators.KindMACD, indicators.KindBollinger, indicators.KindTrend,
		},
		BuyThreshold:   40,
		SellThreshold:  -40,
		MaxPositionPct: 20,
		StopLossPct:    8,
		TakeProfitPct:  15,
	},
	"aggressive": {
		Name:           "aggressive",
		Indicators:     []indicators.Kind{indicators.KindMACD, indicators.KindTrend, indicators.KindVolume},
		BuyThreshold:   25,
		SellThreshold:  -25,
		MaxPositionPct: 30,
		StopLossPct:    12,
		TakeProfitPct:  25,
	},
}

// Lookup returns a copy of the named preset.
func Lookup(name string) (Config, error) {
	cfg, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownStrategy, name, strings.Join(Names(), ", "))
	}
	cfg.Indicators = append([]indicators.Kind(nil), cfg.Indicators...)
	return cfg, nil
}

// Names lists the preset names, sorted.
func Names() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
