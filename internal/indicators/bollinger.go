package indicators

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/models"
)

const (
	BollingerPeriod = 20
	BollingerStdDev = 2.0
)

// BollingerValue is the band geometry at the last close.
type BollingerValue struct {
	Upper    float64 `json:"upper"`
	Middle   float64 `json:"middle"`
	Lower    float64 `json:"lower"`
	PercentB float64 `json:"percent_b"`
}

// BollingerBands computes the bands over the last period closes and the %B of price.
// A zero-width band puts %B at 0.5.
func BollingerBands(closes []float64, period int, k float64, price float64) (BollingerValue, error) {
	if period <= 0 {
		return BollingerValue{}, fmt.Errorf("bollinger period must be positive, got %d", period)
	}
	if err := requireLen("bollinger", len(closes), period); err != nil {
		return BollingerValue{}, err
	}
	middle, std := stat.PopMeanStdDev(closes[len(closes)-period:], nil)
	v := BollingerValue{
		Upper:    middle + k*std,
		Middle:   middle,
		Lower:    middle - k*std,
		PercentB: 0.5,
	}
	if width := v.Upper - v.Lower; width > 0 {
		v.PercentB = (price - v.Lower) / width
	}
	return v, nil
}

// Bollinger classifies the %B of the last close.
func Bollinger(closes []float64) (models.IndicatorOutput, error) {
	if err := requireLen("bollinger", len(closes), BollingerPeriod+1); err != nil {
		return models.IndicatorOutput{}, err
	}
	price := closes[len(closes)-1]
	v, err := BollingerBands(closes, BollingerPeriod, BollingerStdDev, price)
	if err != nil {
		return models.IndicatorOutput{}, err
	}

	b := v.PercentB
	out := models.IndicatorOutput{Name: NameBollinger, Value: v}
	switch {
	case b < 0:
		out.Signal, out.Strength = models.Buy, 85
		out.Reason = fmt.Sprintf("%%B=%.2f: price below lower band %.2f", b, v.Lower)
	case b < 0.2:
		out.Signal, out.Strength = models.Buy, 65
		out.Reason = fmt.Sprintf("%%B=%.2f: price near lower band %.2f", b, v.Lower)
	case b > 1:
		out.Signal, out.Strength = models.Sell, 85
		out.Reason = fmt.Sprintf("%%B=%.2f: price above upper band %.2f", b, v.Upper)
	case b > 0.8:
		out.Signal, out.Strength = models.Sell, 65
		out.Reason = fmt.Sprintf("%%B=%.2f: price near upper band %.2f", b, v.Upper)
	default:
		out.Signal, out.Strength = models.Hold, 50
		out.Reason = fmt.Sprintf("%%B=%.2f: price inside bands", b)
	}
	return out, nil
}
