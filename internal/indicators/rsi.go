package indicators

import (
	"fmt"

	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/models"
)

// RSIPeriod is the default look-back of the relative strength index.
const RSIPeriod = 14

// RSIValue computes the relative strength index of closes.
// The first period deltas are averaged, later ones are smoothed Wilder style.
func RSIValue(closes []float64, period int) (float64, error) {
	if period < 1 {
		return 0, fmt.Errorf("rsi period must be positive, got %d", period)
	}
	if err := requireLen("rsi", len(closes), period+1); err != nil {
		return 0, err
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)

	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
	}

	// No losses at all pins RS at 100, which keeps RSI just under the 100 boundary.
	rs := 100.0
	if avgLoss != 0 {
		rs = avgGain / avgLoss
	}
	return 100 - 100/(1+rs), nil
}

// RSI classifies the relative strength index into a signal.
func RSI(closes []float64, period int) (models.IndicatorOutput, error) {
	v, err := RSIValue(closes, period)
	if err != nil {
		return models.IndicatorOutput{}, err
	}

	out := models.IndicatorOutput{Name: NameRSI, Value: v}
	switch {
	case v < 30:
		out.Signal, out.Strength, out.Reason = models.Buy, 80, fmt.Sprintf("RSI=%.1f: oversold", v)
	case v < 40:
		out.Signal, out.Strength, out.Reason = models.Buy, 60, fmt.Sprintf("RSI=%.1f: approaching oversold", v)
	case v > 70:
		out.Signal, out.Strength, out.Reason = models.Sell, 80, fmt.Sprintf("RSI=%.1f: overbought", v)
	case v > 60:
		out.Signal, out.Strength, out.Reason = models.Sell, 60, fmt.Sprintf("RSI=%.1f: approaching overbought", v)
	default:
		out.Signal, out.Strength, out.Reason = models.Hold, 50, fmt.Sprintf("RSI=%.1f: neutral", v)
	}
	return out, nil
}
