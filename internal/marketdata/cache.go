package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/clock"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/models"
)

type cachedSeries struct {
	candles   []models.Candle
	fetchedAt time.Time
}

// Cache keeps historical series in memory for ttl, keyed by coin and lookback.
// Latest prices are never cached.
type Cache struct {
	next   Provider
	ttl    time.Duration
	clock  clock.Clock
	logger *zap.Logger

	mu     sync.RWMutex
	series map[string]cachedSeries
}

var _ Provider = (*Cache)(nil)

func NewCache(next Provider, ttl time.Duration, clk clock.Clock, logger *zap.Logger) *Cache {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Cache{
		next:   next,
		ttl:    ttl,
		clock:  clk,
		logger: logger.Named("cache"),
		series: make(map[string]cachedSeries),
	}
}

func (c *Cache) FetchHistoricalSeries(ctx context.Context, coin string, days int) ([]models.Candle, error) {
	key := fmt.Sprintf("%s-%d", coin, days)

	c.mu.RLock()
	cached, ok := c.series[key]
	c.mu.RUnlock()
	if ok && c.clock.Now().Sub(cached.fetchedAt) <= c.ttl {
		c.logger.Debug("Using cached series", zap.String("coin", coin), zap.Int("days", days))
		return append([]models.Candle(nil), cached.candles...), nil
	}

	candles, err := c.next.FetchHistoricalSeries(ctx, coin, days)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.series[key] = cachedSeries{candles: candles, fetchedAt: c.clock.Now()}
	c.mu.Unlock()
	return append([]models.Candle(nil), candles...), nil
}

func (c *Cache) FetchLatestPrices(ctx context.Context, coins []string) (map[string]float64, error) {
	return c.next.FetchLatestPrices(ctx, coins)
}

// Clear drops every cached series.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.series = make(map[string]cachedSeries)
	c.mu.Unlock()
}
