package indicators

import (
	"fmt"

	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/models"
)

const (
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
	// MACDMinSamples covers EMA26 plus one extra close for the crossover comparison.
	MACDMinSamples = macdSlow + 1
)

// MACDValue is the raw MACD reading at the last close.
type MACDValue struct {
	MACD          float64 `json:"macd"`
	Signal        float64 `json:"signal"`
	Histogram     float64 `json:"histogram"`
	PrevHistogram float64 `json:"prev_histogram"`
}

// MACDSeries computes the MACD line, its signal line and the histogram for every close.
func MACDSeries(closes []float64) (line, signal, hist []float64) {
	fast := EMA(closes, macdFast)
	slow := EMA(closes, macdSlow)
	line = make([]float64, len(closes))
	for i := range closes {
		line[i] = fast[i] - slow[i]
	}
	signal = EMA(line, macdSignal)
	hist = make([]float64, len(closes))
	for i := range closes {
		hist[i] = line[i] - signal[i]
	}
	return line, signal, hist
}

// MACD classifies the histogram of the last two closes.
func MACD(closes []float64) (models.IndicatorOutput, error) {
	if err := requireLen("macd", len(closes), MACDMinSamples); err != nil {
		return models.IndicatorOutput{}, err
	}

	line, signal, hist := MACDSeries(closes)
	n := len(closes) - 1
	v := MACDValue{MACD: line[n], Signal: signal[n], Histogram: hist[n], PrevHistogram: hist[n-1]}
	cur, prev := v.Histogram, v.PrevHistogram

	out := models.IndicatorOutput{Name: NameMACD, Value: v}
	switch {
	case prev <= 0 && cur > 0:
		out.Signal, out.Strength = models.Buy, 85
		out.Reason = fmt.Sprintf("MACD histogram=%.4f (prev %.4f): bullish crossover", cur, prev)
	case prev >= 0 && cur < 0:
		out.Signal, out.Strength = models.Sell, 85
		out.Reason = fmt.Sprintf("MACD histogram=%.4f (prev %.4f): bearish crossover", cur, prev)
	case cur > 0 && cur > prev:
		out.Signal, out.Strength = models.Buy, 60
		out.Reason = fmt.Sprintf("MACD histogram=%.4f rising: bullish momentum", cur)
	case cur < 0 && cur < prev:
		out.Signal, out.Strength = models.Sell, 60
		out.Reason = fmt.Sprintf("MACD histogram=%.4f falling: bearish momentum", cur)
	default:
		out.Signal, out.Strength = models.Hold, 50
		out.Reason = fmt.Sprintf("MACD histogram=%.4f: no clear momentum", cur)
	}
	return out, nil
}
