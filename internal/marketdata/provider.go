// Package marketdata supplies historical candles and latest prices per coin.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/binance"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/clock"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/models"
)

// ErrDataUnavailable wraps every failure to obtain market data for a coin.
var ErrDataUnavailable = errors.New("market data unavailable")

// Provider is the market data collaborator of the backtest and the auto-trade cycle.
type Provider interface {
	// FetchHistoricalSeries returns the candles of the last days days, oldest first.
	FetchHistoricalSeries(ctx context.Context, coin string, days int) ([]models.Candle, error)
	// FetchLatestPrices returns the current price per coin. Coins without a
	// quote are left out of the result.
	FetchLatestPrices(ctx context.Context, coins []string) (map[string]float64, error)
}

// BinanceProvider reads market data from the Binance public API, quoting every
// coin against a single quote asset.
type BinanceProvider struct {
	client   binance.RestClientInterface
	quote    string
	interval string
	clock    clock.Clock
	logger   *zap.Logger
}

var _ Provider = (*BinanceProvider)(nil)

func NewBinanceProvider(client binance.RestClientInterface, quote, interval string, clk clock.Clock, logger *zap.Logger) *BinanceProvider {
	if clk == nil {
		clk = clock.Real{}
	}
	return &BinanceProvider{
		client:   client,
		quote:    quote,
		interval: interval,
		clock:    clk,
		logger:   logger.Named("marketdata"),
	}
}

func (p *BinanceProvider) FetchHistoricalSeries(ctx context.Context, coin string, days int) ([]models.Candle, error) {
	if days <= 0 {
		return nil, fmt.Errorf("%w: %s: lookback must be positive, got %d days", ErrDataUnavailable, coin, days)
	}
	end := p.clock.Now()
	start := end.Add(-time.Duration(days) * 24 * time.Hour)
	symbol := binance.Symbol(coin, p.quote)

	candles, err := p.client.GetKlines(ctx, symbol, p.interval, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDataUnavailable, coin, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: %s: no candles returned for %s", ErrDataUnavailable, coin, symbol)
	}
	p.logger.Debug("Fetched historical series", zap.String("coin", coin), zap.Int("days", days), zap.Int("candles", len(candles)))
	return candles, nil
}

func (p *BinanceProvider) FetchLatestPrices(ctx context.Context, coins []string) (map[string]float64, error) {
	if len(coins) == 0 {
		return map[string]float64{}, nil
	}
	symbols := make([]string, len(coins))
	for i, c := range coins {
		symbols[i] = binance.Symbol(c, p.quote)
	}

	prices, err := p.client.GetTickerPrices(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataUnavailable, err)
	}

	out := make(map[string]float64, len(coins))
	var missing []string
	for i, c := range coins {
		if price, ok := prices[symbols[i]]; ok && price > 0 {
			out[c] = price
			continue
		}
		missing = append(missing, c)
	}
	if len(missing) > 0 {
		p.logger.Warn("No price for coins", zap.String("quote", p.quote), zap.String("coins", strings.Join(missing, ",")))
	}
	return out, nil
}
