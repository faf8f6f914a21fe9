package models

import "time"

// Candle is one sampled OHLCV interval.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Closes returns the close prices of the series in order.
func Closes(candles []Candle) []float64 {
	r := make([]float64, len(candles))
	for i := range candles {
		r[i] = candles[i].Close
	}
	return r
}

// Volumes returns the traded volumes of the series in order.
func Volumes(candles []Candle) []float64 {
	r := make([]float64, len(candles))
	for i := range candles {
		r[i] = candles[i].Volume
	}
	return r
}

// Tail returns at most the last n candles of the series.
func Tail(candles []Candle, n int) []Candle {
	if n <= 0 || len(candles) <= n {
		return candles
	}
	return candles[len(candles)-n:]
}
