package indicators

import (
	"fmt"

	"github.com/sdcoffey/big"
	"github.com/sdcoffey/techan"

	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/models"
)

const (
	trendShort = 20
	trendLong  = 50
)

// TrendValue compares the last close with its short and long moving averages.
// SMA50Window is the window actually used, capped at the series length.
type TrendValue struct {
	Price       float64 `json:"price"`
	SMA20       float64 `json:"sma20"`
	SMA50       float64 `json:"sma50"`
	SMA50Window int     `json:"sma50_window"`
}

// TimeSeries converts candles into a techan series. Candles must be in time order.
func TimeSeries(candles []models.Candle) (*techan.TimeSeries, error) {
	series := techan.NewTimeSeries()
	for i, c := range candles {
		tc := techan.NewCandle(techan.NewTimePeriod(c.Timestamp, 0))
		tc.OpenPrice = big.NewDecimal(c.Open)
		tc.ClosePrice = big.NewDecimal(c.Close)
		tc.MaxPrice = big.NewDecimal(c.High)
		tc.MinPrice = big.NewDecimal(c.Low)
		tc.Volume = big.NewDecimal(c.Volume)
		if !series.AddCandle(tc) {
			return nil, fmt.Errorf("candle %d at %s is out of order", i, c.Timestamp)
		}
	}
	return series, nil
}

// Trend classifies the price against SMA20 and SMA50. With fewer than 50 candles the
// long average uses every candle available instead of failing.
func Trend(candles []models.Candle) (models.IndicatorOutput, error) {
	if err := requireLen("ma_trend", len(candles), trendShort+1); err != nil {
		return models.IndicatorOutput{}, err
	}
	series, err := TimeSeries(candles)
	if err != nil {
		return models.IndicatorOutput{}, err
	}

	last := len(candles) - 1
	longWindow := trendLong
	if len(candles) < longWindow {
		longWindow = len(candles)
	}
	closes := techan.NewClosePriceIndicator(series)
	v := TrendValue{
		Price:       candles[last].Close,
		SMA20:       techan.NewSimpleMovingAverage(closes, trendShort).Calculate(last).Float(),
		SMA50:       techan.NewSimpleMovingAverage(closes, longWindow).Calculate(last).Float(),
		SMA50Window: longWindow,
	}

	basis := fmt.Sprintf("Price=%.2f SMA20=%.2f SMA50=%.2f", v.Price, v.SMA20, v.SMA50)
	out := models.IndicatorOutput{Name: NameTrend, Value: v}
	switch {
	case v.Price > v.SMA20 && v.SMA20 > v.SMA50:
		out.Signal, out.Strength, out.Reason = models.Buy, 70, basis+": uptrend"
	case v.Price < v.SMA20 && v.SMA20 < v.SMA50:
		out.Signal, out.Strength, out.Reason = models.Sell, 70, basis+": downtrend"
	case v.Price > v.SMA20:
		out.Signal, out.Strength, out.Reason = models.Buy, 55, basis+": price above SMA20"
	case v.Price < v.SMA20:
		out.Signal, out.Strength, out.Reason = models.Sell, 55, basis+": price below SMA20"
	default:
		out.Signal, out.Strength, out.Reason = models.Hold, 50, basis+": no trend"
	}
	return out, nil
}
