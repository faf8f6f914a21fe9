package backtest

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/config"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/marketdata"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/models"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/strategy"
)

// MockProvider is a mock implementation of the marketdata.Provider interface.
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) FetchHistoricalSeries(ctx context.Context, coin string, days int) ([]models.Candle, error) {
	args := m.Called(ctx, coin, days)
	candles, _ := args.Get(0).([]models.Candle)
	return candles, args.Error(1)
}

func (m *MockProvider) FetchLatestPrices(ctx context.Context, coins []string) (map[string]float64, error) {
	args := m.Called(ctx, coins)
	prices, _ := args.Get(0).(map[string]float64)
	return prices, args.Error(1)
}

var end = time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)

// hourly builds a series whose last candle opens one hour before end.
func hourly(closes, volumes []float64) []models.Candle {
	out := make([]models.Candle, len(closes))
	start := end.Add(-time.Duration(len(closes)) * time.Hour)
	for i, c := range closes {
		out[i] = models.Candle{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      c, High: c, Low: c, Close: c,
			Volume: volumes[i],
		}
	}
	return out
}

// wave oscillates +-8% over a 36-candle period with volume bursts twice a period.
func wave(n int) ([]float64, []float64) {
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 * (1 + 0.08*math.Sin(2*math.Pi*float64(i)/36))
		volumes[i] = 1000
		if i%36 == 9 || i%36 == 27 {
			volumes[i] = 1800
		}
	}
	return closes, volumes
}

func newRunner(p marketdata.Provider) *Runner {
	return NewRunner(p, strategy.NewScorer(zap.NewNop()), DefaultOptions(), zap.NewNop())
}

func TestFetchDaysAndStep(t *testing.T) {
	r := newRunner(new(MockProvider))
	assert.Equal(t, 32, r.FetchDays(30))
	assert.Equal(t, 3, r.FetchDays(1))

	assert.Equal(t, 4, r.Step(72, 3))
	assert.Equal(t, 1, r.Step(10, 30))
	assert.Equal(t, 4, r.Step(720, 30))
}

func TestRun_UnknownStrategyFailsBeforeFetching(t *testing.T) {
	p := new(MockProvider)
	_, err := newRunner(p).Run(context.Background(), Params{Strategy: "moon", InitialCapital: 100, Coins: []string{"BTC"}, DurationDays: 1})
	assert.True(t, errors.Is(err, strategy.ErrUnknownStrategy))
	p.AssertNotCalled(t, "FetchHistoricalSeries", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_InvalidParams(t *testing.T) {
	r := newRunner(new(MockProvider))
	ctx := context.Background()

	_, err := r.Run(ctx, Params{Strategy: "balanced", InitialCapital: 0, Coins: []string{"BTC"}, DurationDays: 1})
	assert.Error(t, err)
	_, err = r.Run(ctx, Params{Strategy: "balanced", InitialCapital: 100, DurationDays: 1})
	assert.Error(t, err)
	_, err = r.Run(ctx, Params{Strategy: "balanced", InitialCapital: 100, Coins: []string{"BTC"}})
	assert.Error(t, err)
}

func TestRun_InsufficientData(t *testing.T) {
	ctx := context.Background()
	closes, volumes := wave(20)
	p := new(MockProvider)
	p.On("FetchHistoricalSeries", ctx, "BTC", 3).Return(hourly(closes, volumes), nil)
	p.On("FetchHistoricalSeries", ctx, "ETH", 3).Return(hourly(closes[:12], volumes[:12]), nil)

	report, err := newRunner(p).Run(ctx, Params{Strategy: "balanced", InitialCapital: 1000, Coins: []string{"BTC", "ETH"}, DurationDays: 1})
	assert.True(t, errors.Is(err, ErrInsufficientData))
	assert.Contains(t, err.Error(), "12 candles")
	assert.Nil(t, report)
	p.AssertExpectations(t)
}

func TestRun_ExactlyWarmupCandles(t *testing.T) {
	ctx := context.Background()
	closes, volumes := wave(30)
	p := new(MockProvider)
	p.On("FetchHistoricalSeries", ctx, "BTC", 3).Return(hourly(closes, volumes), nil)

	var report *Report
	var err error
	require.NotPanics(t, func() {
		report, err = newRunner(p).Run(ctx, Params{Strategy: "aggressive", InitialCapital: 1000, Coins: []string{"BTC"}, DurationDays: 1})
	})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Evaluations)
	assert.Empty(t, report.EquityCurve)
	assert.Empty(t, report.Portfolio.Trades)
	assert.Empty(t, report.Portfolio.Positions)
	assert.Equal(t, 1000.0, report.FinalValue)
	assert.Equal(t, 0.0, report.TotalReturnPct)
	assert.Equal(t, end.Add(-time.Hour), report.StartDate)
	assert.Equal(t, report.StartDate, report.EndDate)
	p.AssertExpectations(t)
}

func TestRun_AllFetchesFail(t *testing.T) {
	ctx := context.Background()
	p := new(MockProvider)
	p.On("FetchHistoricalSeries", ctx, mock.Anything, 3).Return(nil, marketdata.ErrDataUnavailable)

	_, err := newRunner(p).Run(ctx, Params{Strategy: "balanced", InitialCapital: 1000, Coins: []string{"BTC", "ETH"}, DurationDays: 1})
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

func TestRun_Wave(t *testing.T) {
	ctx := context.Background()
	closes, volumes := wave(30 + 24*3)

	testCases := []struct {
		strategy string
		trades   int
	}{
		{strategy: "aggressive", trades: 4},
		{strategy: "balanced", trades: 0},
		{strategy: "conservative", trades: 0},
	}
	for _, tc := range testCases {
		t.Run(tc.strategy, func(t *testing.T) {
			p := new(MockProvider)
			p.On("FetchHistoricalSeries", ctx, "BTC", 5).Return(hourly(closes, volumes), nil)

			report, err := newRunner(p).Run(ctx, Params{Strategy: tc.strategy, InitialCapital: 1000, Coins: []string{"BTC"}, DurationDays: 3})
			require.NoError(t, err)

			assert.Equal(t, tc.strategy, report.Strategy)
			assert.Equal(t, []string{"BTC"}, report.Coins)
			assert.Empty(t, report.Errors)
			assert.Equal(t, 18, report.Evaluations)
			assert.Len(t, report.EquityCurve, 18)
			assert.Len(t, report.Signals, 18)
			assert.Equal(t, end.Add(-102*time.Hour+30*time.Hour), report.StartDate)
			assert.Equal(t, end.Add(-102*time.Hour+98*time.Hour), report.EndDate)
			assert.Equal(t, tc.trades, report.TotalTrades)

			assert.InDelta(t, report.Portfolio.TotalValue(), report.FinalValue, 1e-9)
			assert.InDelta(t, report.FinalValue-1000, report.TotalReturn, 1e-9)
			assert.GreaterOrEqual(t, report.MaxDrawdownPct, 0.0)
			assert.Less(t, report.MaxDrawdownPct, 100.0)
			if tc.trades == 0 {
				assert.Equal(t, 1000.0, report.FinalValue)
				assert.Equal(t, 0.0, report.WinRatePct)
				assert.Equal(t, 0.0, report.SharpeRatio)
			}
		})
	}
}

func TestRun_AggressiveWaveTrades(t *testing.T) {
	ctx := context.Background()
	closes, volumes := wave(102)
	p := new(MockProvider)
	p.On("FetchHistoricalSeries", ctx, "BTC", 5).Return(hourly(closes, volumes), nil)

	report, err := newRunner(p).Run(ctx, Params{Strategy: "aggressive", InitialCapital: 1000, Coins: []string{"BTC"}, DurationDays: 3})
	require.NoError(t, err)

	trades := report.Portfolio.Trades
	require.Len(t, trades, 4)
	assert.Equal(t, []string{"BUY", "SELL", "BUY", "SELL"}, []string{trades[0].Side, trades[1].Side, trades[2].Side, trades[3].Side})
	// bought in the trough of the wave, sold on the way down from the crest
	assert.Equal(t, end.Add(-102*time.Hour+34*time.Hour), trades[0].Timestamp)
	assert.Equal(t, end.Add(-102*time.Hour+54*time.Hour), trades[1].Timestamp)
	assert.Equal(t, 2, report.SellTrades)
	assert.Equal(t, 100.0, report.WinRatePct)
	assert.Greater(t, report.FinalValue, 1000.0)
	assert.Empty(t, report.Portfolio.Positions)
	assert.Equal(t, []string{"macd", "ma_trend", "volume"}, trades[0].Indicators)
}

func TestRun_SkipsFailingCoinAndAlignsSeries(t *testing.T) {
	ctx := context.Background()
	closes, volumes := wave(102)
	longer := append([]float64{90, 91, 92, 93, 94, 95, 96, 97}, closes...)
	longerVol := append([]float64{1, 1, 1, 1, 1, 1, 1, 1}, volumes...)

	p := new(MockProvider)
	p.On("FetchHistoricalSeries", ctx, "BTC", 5).Return(hourly(closes, volumes), nil)
	p.On("FetchHistoricalSeries", ctx, "ETH", 5).Return(hourly(longer, longerVol), nil)
	p.On("FetchHistoricalSeries", ctx, "XYZ", 5).Return(nil, marketdata.ErrDataUnavailable)

	report, err := newRunner(p).Run(ctx, Params{Strategy: "aggressive", InitialCapital: 1000, Coins: []string{"BTC", "XYZ", "ETH"}, DurationDays: 3})
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC", "ETH"}, report.Coins)
	require.Len(t, report.Errors, 1)
	assert.True(t, strings.HasPrefix(report.Errors[0], "XYZ: "))

	// both coins see the same trailing candles, so they trade in lockstep
	assert.Equal(t, 8, report.TotalTrades)
	for i := 0; i < len(report.Portfolio.Trades); i += 2 {
		a, b := report.Portfolio.Trades[i], report.Portfolio.Trades[i+1]
		assert.Equal(t, "BTC", a.Coin)
		assert.Equal(t, "ETH", b.Coin)
		assert.Equal(t, a.Timestamp, b.Timestamp)
		assert.Equal(t, a.Side, b.Side)
	}
	assert.Len(t, report.Signals, 36)
}

func TestRun_SignalHistoryIsBounded(t *testing.T) {
	ctx := context.Background()
	closes, volumes := wave(102)
	p := new(MockProvider)
	p.On("FetchHistoricalSeries", ctx, "BTC", 5).Return(hourly(closes, volumes), nil)

	opts := DefaultOptions()
	opts.SignalHistory = 5
	r := NewRunner(p, strategy.NewScorer(zap.NewNop()), opts, zap.NewNop())
	report, err := r.Run(ctx, Params{Strategy: "balanced", InitialCapital: 1000, Coins: []string{"BTC"}, DurationDays: 3})
	require.NoError(t, err)

	require.Len(t, report.Signals, 5)
	assert.Equal(t, report.EndDate, report.Signals[4].Timestamp)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newRunner(new(MockProvider)).Run(ctx, Params{Strategy: "balanced", InitialCapital: 1000, Coins: []string{"BTC"}, DurationDays: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWinRate(t *testing.T) {
	trade := func(coin, side string, price float64) models.Trade {
		return models.Trade{Coin: coin, Side: side, Price: price}
	}

	assert.Equal(t, 0.0, WinRate(nil))
	assert.Equal(t, 0.0, WinRate([]models.Trade{trade("BTC", models.SideBuy, 1)}))

	trades := []models.Trade{
		trade("BTC", models.SideBuy, 100),
		trade("ETH", models.SideBuy, 50),
		trade("BTC", models.SideSell, 110), // win
		trade("ETH", models.SideSell, 50),  // tie loses
		trade("BTC", models.SideBuy, 120),
		trade("BTC", models.SideSell, 100), // loss against the latest BUY, not the first
	}
	assert.InDelta(t, 100.0/3, WinRate(trades), 1e-9)

	assert.Equal(t, 0.0, WinRate([]models.Trade{trade("SOL", models.SideSell, 10)}))
}

func TestSharpe(t *testing.T) {
	flat := []EquityPoint{{Value: 100}, {Value: 100}, {Value: 100}}
	assert.Equal(t, 0.0, Sharpe(100, flat, 365))
	assert.Equal(t, 0.0, Sharpe(100, flat[:1], 365))

	up := []EquityPoint{{Value: 101}, {Value: 103}, {Value: 104}, {Value: 107}}
	assert.Greater(t, Sharpe(100, up, 365), 0.0)

	down := []EquityPoint{{Value: 99}, {Value: 96}, {Value: 95}, {Value: 91}}
	assert.Less(t, Sharpe(100, down, 365), 0.0)
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := OptionsFromConfig(config.Backtest{
		Warmup: 30, EvalsPerDay: 6, Window: 60, CandlesPerDay: 24, SignalHistory: 50, MinTrade: 1,
		Reserve: config.Reserve{Policy: "fraction", Percent: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), opts)

	_, err = OptionsFromConfig(config.Backtest{Warmup: 30, EvalsPerDay: 6, Window: 60, CandlesPerDay: 24, Reserve: config.Reserve{Policy: "bogus"}})
	assert.Error(t, err)

	_, err = OptionsFromConfig(config.Backtest{Reserve: config.Reserve{Policy: "fixed", Amount: 10}})
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	trades := []models.Trade{{
		ID: "abc", Coin: "BTC", Side: models.SideSell, Price: 110, Quantity: 0.5, Total: 55, PnL: 5,
		Timestamp: end, Reason: "RSI=75.0: overbought", Indicators: []string{"rsi", "macd"},
	}}
	var buf bytes.Buffer
	require.NoError(t, WriteTradesCSV(&buf, trades))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "time,id,coin,side,price,quantity,total,pnl,indicators,reason", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2024-08-01T00:00:00Z,abc,BTC,SELL,110,0.5,55,5,rsi;macd,"))

	buf.Reset()
	require.NoError(t, WriteEquityCSV(&buf, []EquityPoint{{Time: end, Value: 1000.5}}))
	assert.Equal(t, "time,value\n2024-08-01T00:00:00Z,1000.5\n", buf.String())
}
