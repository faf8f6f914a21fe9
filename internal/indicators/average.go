// Package indicators computes technical indicators over a price and volume series.
// Every function is pure: no I/O and no state between calls.
package indicators

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientData is returned when a series is shorter than an indicator's minimum sample size.
var ErrInsufficientData = errors.New("insufficient data")

func requireLen(name string, got, want int) error {
	if got < want {
		return fmt.Errorf("%s needs %d values, got %d: %w", name, want, got, ErrInsufficientData)
	}
	return nil
}

// SMA is the arithmetic mean of the last period values.
func SMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("sma period must be positive, got %d", period)
	}
	if err := requireLen("sma", len(values), period); err != nil {
		return 0, err
	}
	return stat.Mean(values[len(values)-period:], nil), nil
}

// EMA returns the exponential moving average series, seeded with the first value
// and smoothed with k = 2/(period+1).
func EMA(values []float64, period int) []float64 {
	res := make([]float64, len(values))
	if len(values) == 0 {
		return res
	}
	k := 2.0 / (float64(period) + 1)
	res[0] = values[0]
	for i := 1; i < len(values); i++ {
		res[i] = values[i]*k + res[i-1]*(1-k)
	}
	return res
}
