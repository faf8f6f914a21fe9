package indicators

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/models"
)

// candlesFromCloses builds an hourly series with constant volume.
func candlesFromCloses(closes []float64) []models.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      c, High: c, Low: c, Close: c,
			Volume: 1000,
		}
	}
	return out
}

func geometric(n int, start, step float64) []float64 {
	out := make([]float64, n)
	p := start
	for i := range out {
		out[i] = p
		p *= step
	}
	return out
}

func TestSMA(t *testing.T) {
	v, err := SMA([]float64{1, 2, 3, 4, 5}, 2)
	require.NoError(t, err)
	assert.InDelta(t, 4.5, v, 1e-9)

	_, err = SMA([]float64{1, 2}, 3)
	assert.True(t, errors.Is(err, ErrInsufficientData))

	_, err = SMA([]float64{1, 2}, 0)
	assert.Error(t, err)
}

func TestEMA_SeededWithFirstValue(t *testing.T) {
	ema := EMA([]float64{10, 20, 30}, 3) // k = 0.5
	assert.Equal(t, []float64{10, 15, 22.5}, ema)
	assert.Empty(t, EMA(nil, 3))
}

func TestRSI_Bounds(t *testing.T) {
	series := [][]float64{
		{44, 44.3, 44.1, 43.6, 44.3, 44.8, 45.1, 45.4, 45.8, 46.1, 45.9, 46.2, 45.6, 46.3, 46.3, 46.0, 46.5},
		geometric(30, 100, 0.98),
		{1, 3, 2, 4, 3, 5, 4, 6, 5, 7, 6, 8, 7, 9, 8, 10, 9},
	}
	for _, s := range series {
		v, err := RSIValue(s, RSIPeriod)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
}

func TestRSI_MonotonicIncreaseApproachesUpperBoundary(t *testing.T) {
	short, err := RSIValue(geometric(15, 100, 1.01), RSIPeriod)
	require.NoError(t, err)
	long, err := RSIValue(geometric(200, 100, 1.01), RSIPeriod)
	require.NoError(t, err)

	assert.Greater(t, short, 99.0)
	assert.GreaterOrEqual(t, long, short)
	assert.Less(t, long, 100.0)
}

func TestRSI_Signals(t *testing.T) {
	falling, err := RSI(geometric(20, 100, 0.99), RSIPeriod)
	require.NoError(t, err)
	assert.Equal(t, models.Buy, falling.Signal)
	assert.Equal(t, 80.0, falling.Strength)
	assert.Contains(t, falling.Reason, "RSI=0.0")

	rising, err := RSI(geometric(20, 100, 1.01), RSIPeriod)
	require.NoError(t, err)
	assert.Equal(t, models.Sell, rising.Signal)
	assert.Equal(t, 80.0, rising.Strength)
	assert.Contains(t, rising.Reason, "RSI=99.0")

	_, err = RSI(geometric(14, 100, 1.01), RSIPeriod)
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

func TestMACD(t *testing.T) {
	_, err := MACD(geometric(26, 100, 1.01))
	assert.True(t, errors.Is(err, ErrInsufficientData))

	// A flat series never moves the histogram off zero.
	flat := make([]float64, 40)
	for i := range flat {
		flat[i] = 100
	}
	out, err := MACD(flat)
	require.NoError(t, err)
	assert.Equal(t, models.Hold, out.Signal)
	assert.Equal(t, 50.0, out.Strength)

	// A long decline followed by a sharp rebound crosses the histogram upwards.
	closes := append(geometric(40, 100, 0.99), 0)
	closes[len(closes)-1] = closes[len(closes)-2] * 1.08
	out, err = MACD(closes)
	require.NoError(t, err)
	v := out.Value.(MACDValue)
	assert.LessOrEqual(t, v.PrevHistogram, 0.0)
	assert.Greater(t, v.Histogram, 0.0)
	assert.Equal(t, models.Buy, out.Signal)
	assert.Equal(t, 85.0, out.Strength)
	assert.Contains(t, out.Reason, "bullish crossover")
}

func TestMACDSeries_HistogramIsLineMinusSignal(t *testing.T) {
	line, signal, hist := MACDSeries(geometric(30, 50, 1.02))
	for i := range hist {
		assert.InDelta(t, line[i]-signal[i], hist[i], 1e-12)
	}
}

func TestBollingerBands_PercentBAtMiddleIsHalf(t *testing.T) {
	closes := []float64{10, 12, 11, 13, 9, 14, 10, 12, 11, 13, 9, 14, 10, 12, 11, 13, 9, 14, 10, 12}
	mid, err := SMA(closes, BollingerPeriod)
	require.NoError(t, err)

	v, err := BollingerBands(closes, BollingerPeriod, BollingerStdDev, mid)
	require.NoError(t, err)
	assert.InDelta(t, mid, v.Middle, 1e-9)
	assert.InDelta(t, 0.5, v.PercentB, 1e-9)
	assert.Greater(t, v.Upper, v.Middle)
	assert.Less(t, v.Lower, v.Middle)

	// population standard deviation, not the sample one
	var sq float64
	for _, c := range closes {
		sq += (c - mid) * (c - mid)
	}
	assert.InDelta(t, mid+2*math.Sqrt(sq/20), v.Upper, 1e-9)
}

func TestBollinger_Signals(t *testing.T) {
	base := []float64{10, 12, 11, 13, 9, 14, 10, 12, 11, 13, 9, 14, 10, 12, 11, 13, 9, 14, 10, 12}

	below, err := Bollinger(append(append([]float64{}, base...), 2))
	require.NoError(t, err)
	assert.Equal(t, models.Buy, below.Signal)
	assert.Equal(t, 85.0, below.Strength)

	above, err := Bollinger(append(append([]float64{}, base...), 30))
	require.NoError(t, err)
	assert.Equal(t, models.Sell, above.Signal)
	assert.Equal(t, 85.0, above.Strength)
	assert.Contains(t, above.Reason, "%B=")

	flat := make([]float64, 21)
	for i := range flat {
		flat[i] = 5
	}
	out, err := Bollinger(flat)
	require.NoError(t, err)
	assert.Equal(t, 0.5, out.Value.(BollingerValue).PercentB)
	assert.Equal(t, models.Hold, out.Signal)

	_, err = Bollinger(base)
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

func TestVolume(t *testing.T) {
	closes := make([]float64, 21)
	volumes := make([]float64, 21)
	for i := range closes {
		closes[i] = 100
		volumes[i] = 100
	}

	testCases := []struct {
		name      string
		lastClose float64
		lastVol   float64
		signal    models.Signal
		strength  float64
	}{
		{name: "High volume rally", lastClose: 103, lastVol: 400, signal: models.Buy, strength: 75},
		{name: "High volume selloff", lastClose: 97, lastVol: 400, signal: models.Sell, strength: 75},
		{name: "Buying pressure", lastClose: 101, lastVol: 200, signal: models.Buy, strength: 55},
		{name: "Selling pressure", lastClose: 99, lastVol: 200, signal: models.Sell, strength: 55},
		{name: "Quiet market", lastClose: 101, lastVol: 100, signal: models.Hold, strength: 50},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := append([]float64{}, closes...)
			v := append([]float64{}, volumes...)
			c[20], v[20] = tc.lastClose, tc.lastVol

			out, err := Volume(c, v)
			require.NoError(t, err)
			assert.Equal(t, tc.signal, out.Signal)
			assert.Equal(t, tc.strength, out.Strength)
			assert.Contains(t, out.Reason, "Volume ratio=")
		})
	}

	_, err := Volume(closes[:20], volumes[:20])
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

func TestTrend(t *testing.T) {
	up, err := Trend(candlesFromCloses(geometric(40, 100, 1.01)))
	require.NoError(t, err)
	assert.Equal(t, models.Buy, up.Signal)
	assert.Equal(t, 70.0, up.Strength)
	assert.Contains(t, up.Reason, "uptrend")
	// fewer than 50 candles: the long average uses all of them
	assert.Equal(t, 40, up.Value.(TrendValue).SMA50Window)

	down, err := Trend(candlesFromCloses(geometric(60, 100, 0.99)))
	require.NoError(t, err)
	assert.Equal(t, models.Sell, down.Signal)
	assert.Equal(t, 70.0, down.Strength)
	assert.Equal(t, 50, down.Value.(TrendValue).SMA50Window)

	// long decline, then a jump above SMA20 only
	closes := geometric(40, 100, 0.99)
	closes = append(closes, 90)
	bounce, err := Trend(candlesFromCloses(closes))
	require.NoError(t, err)
	assert.Equal(t, models.Buy, bounce.Signal)
	assert.Equal(t, 55.0, bounce.Strength)

	_, err = Trend(candlesFromCloses(geometric(20, 100, 1.01)))
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

func TestTimeSeries_RejectsOutOfOrderCandles(t *testing.T) {
	c := candlesFromCloses([]float64{1, 2, 3})
	c[1], c[2] = c[2], c[1]
	_, err := TimeSeries(c)
	assert.Error(t, err)
}

func TestKind(t *testing.T) {
	for _, k := range Kinds() {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
		assert.Greater(t, k.MinSamples(), 0)
	}

	_, err := ParseKind("rsl")
	assert.True(t, errors.Is(err, ErrUnknownIndicator))

	k, err := ParseKind(" MA_TREND ")
	require.NoError(t, err)
	assert.Equal(t, KindTrend, k)

	assert.Equal(t, 15, KindRSI.MinSamples())
	assert.Equal(t, 27, KindMACD.MinSamples())
	assert.Equal(t, 21, KindBollinger.MinSamples())
	assert.Equal(t, 21, KindVolume.MinSamples())
	assert.Equal(t, 21, KindTrend.MinSamples())

	_, err = Kind(42).Compute(nil)
	assert.True(t, errors.Is(err, ErrUnknownIndicator))
}

func TestKind_ComputeMatchesDirectCall(t *testing.T) {
	candles := candlesFromCloses(geometric(40, 100, 1.01))
	viaKind, err := KindRSI.Compute(candles)
	require.NoError(t, err)
	direct, err := RSI(models.Closes(candles), RSIPeriod)
	require.NoError(t, err)
	assert.Equal(t, direct, viaKind)
}
