package indicators

import (
	"fmt"

	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/models"
)

const volumeWindow = 20

// VolumeValue compares the latest volume with its recent average.
type VolumeValue struct {
	Ratio          float64 `json:"ratio"`
	PriceChangePct float64 `json:"price_change_pct"`
}

// Volume flags volume spikes that confirm a price move.
func Volume(closes, volumes []float64) (models.IndicatorOutput, error) {
	n := len(closes)
	if len(volumes) < n {
		n = len(volumes)
	}
	if err := requireLen("volume", n, volumeWindow+1); err != nil {
		return models.IndicatorOutput{}, err
	}
	closes, volumes = closes[len(closes)-n:], volumes[len(volumes)-n:]

	avg, err := SMA(volumes, volumeWindow)
	if err != nil {
		return models.IndicatorOutput{}, err
	}
	var v VolumeValue
	if avg > 0 {
		v.Ratio = volumes[n-1] / avg
	}
	if prev := closes[n-2]; prev != 0 {
		v.PriceChangePct = (closes[n-1] - prev) / prev * 100
	}

	basis := fmt.Sprintf("Volume ratio=%.2fx, price change=%+.2f%%", v.Ratio, v.PriceChangePct)
	out := models.IndicatorOutput{Name: NameVolume, Value: v}
	switch {
	case v.Ratio > 2 && v.PriceChangePct > 2:
		out.Signal, out.Strength, out.Reason = models.Buy, 75, basis+": high-volume rally"
	case v.Ratio > 2 && v.PriceChangePct < -2:
		out.Signal, out.Strength, out.Reason = models.Sell, 75, basis+": high-volume selloff"
	case v.Ratio > 1.5 && v.PriceChangePct > 0:
		out.Signal, out.Strength, out.Reason = models.Buy, 55, basis+": buying pressure"
	case v.Ratio > 1.5 && v.PriceChangePct < 0:
		out.Signal, out.Strength, out.Reason = models.Sell, 55, basis+": selling pressure"
	default:
		out.Signal, out.Strength, out.Reason = models.Hold, 50, basis+": no volume confirmation"
	}
	return out, nil
}
