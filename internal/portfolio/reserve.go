// Package portfolio implements the ledger: the only place where capital,
// positions and the trade log of a simulated portfolio change.
package portfolio

import (
	"fmt"
	"strings"

	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/config"
)

// ReservePolicy decides how much of the current capital a BUY may never spend.
type ReservePolicy interface {
	Reserve(capital float64) float64
	String() string
}

// FractionReserve keeps Percent of the current capital aside.
type FractionReserve struct {
	Percent float64
}

func (r FractionReserve) Reserve(capital float64) float64 {
	if capital <= 0 {
		return 0
	}
	return capital * r.Percent / 100
}

func (r FractionReserve) String() string { return fmt.Sprintf("fraction(%.2f%%)", r.Percent) }

// FixedReserve keeps an absolute Amount aside.
type FixedReserve struct {
	Amount float64
}

func (r FixedReserve) Reserve(float64) float64 { return r.Amount }

func (r FixedReserve) String() string { return fmt.Sprintf("fixed(%.2f)", r.Amount) }

var (
	_ ReservePolicy = FractionReserve{}
	_ ReservePolicy = FixedReserve{}
)

// NewReservePolicy builds the policy named in cfg.
func NewReservePolicy(cfg config.Reserve) (ReservePolicy, error) {
	switch strings.ToLower(cfg.Policy) {
	case "fraction":
		if cfg.Percent < 0 || cfg.Percent >= 100 {
			return nil, fmt.Errorf("reserve percent must be in [0, 100), got %v", cfg.Percent)
		}
		return FractionReserve{Percent: cfg.Percent}, nil
	case "fixed":
		if cfg.Amount < 0 {
			return nil, fmt.Errorf("reserve amount must not be negative, got %v", cfg.Amount)
		}
		return FixedReserve{Amount: cfg.Amount}, nil
	default:
		return nil, fmt.Errorf("unknown reserve policy %q", cfg.Policy)
	}
}
