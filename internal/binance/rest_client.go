package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/config"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/models"
)

const (
	defaultBaseURL = "https://api.binance.com/api/v3"
	// klinesLimit is the maximum page size of the /klines endpoint.
	klinesLimit = 1000
	maxRetries  = 3
)

// RestClientInterface defines the read-only market data calls used by the simulator.
type RestClientInterface interface {
	GetServerTime(ctx context.Context) (int64, error)
	GetTickerPrices(ctx context.Context, symbols []string) (map[string]float64, error)
	GetKlines(ctx context.Context, symbol, interval string, start, end time.Time) ([]models.Candle, error)
}

// RestClient is a client for the public Binance REST API.
// It implements the RestClientInterface.
type RestClient struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
	backoff time.Duration
}

// ensure RestClient implements the interface
var _ RestClientInterface = (*RestClient)(nil)

// NewRestClient creates a new Binance REST API client.
// The limiter paces every call, retries included.
func NewRestClient(cfg *config.Binance, logger *zap.Logger) *RestClient {
	url := cfg.BaseURL
	if url == "" {
		url = defaultBaseURL
	}
	logger.Info("Using Binance market data API", zap.String("url", url))

	client := resty.New().SetBaseURL(url)

	// Initialize the rate limiter
	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &RestClient{
		client:  client,
		logger:  logger,
		limiter: limiter,
		backoff: time.Second,
	}
}

// GetServerTime fetches the current server time from Binance.
// This is a good endpoint to test connectivity.
func (c *RestClient) GetServerTime(ctx context.Context) (int64, error) {
	type ServerTimeResponse struct {
		ServerTime int64 `json:"serverTime"`
	}

	req := c.client.R().
		SetContext(ctx).
		SetResult(&ServerTimeResponse{})

	resp, err := c.doRequest(ctx, http.MethodGet, "/time", req)
	if err != nil {
		c.logger.Error("Failed to get server time", zap.Error(err))
		return 0, fmt.Errorf("failed to get server time: %w", err)
	}

	result := resp.Result().(*ServerTimeResponse)
	return result.ServerTime, nil
}

// TickerPrice represents the response for a single ticker price.
type TickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// GetTickerPrices fetches the latest price of the given symbols, or of every symbol
// when none are given. Symbols unknown to the exchange are absent from the result.
func (c *RestClient) GetTickerPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	var prices []*TickerPrice

	req := c.client.R().
		SetContext(ctx).
		SetResult(&prices).
		SetHeader("Content-Type", "application/json")
	if len(symbols) > 0 {
		encoded, err := json.Marshal(symbols)
		if err != nil {
			return nil, err
		}
		req.SetQueryParam("symbols", string(encoded))
	}

	resp, err := c.doRequest(ctx, http.MethodGet, "/ticker/price", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticker prices: %w", err)
	}

	result := resp.Result().(*[]*TickerPrice)
	priceMap := make(map[string]float64, len(*result))
	for _, p := range *result {
		price, err := strconv.ParseFloat(p.Price, 64)
		if err != nil {
			c.logger.Warn("Skipping unparsable ticker price", zap.String("symbol", p.Symbol), zap.String("price", p.Price))
			continue
		}
		priceMap[p.Symbol] = price
	}

	return priceMap, nil
}

// GetKlines fetches the candles of symbol opened in [start, end), oldest first.
// Ranges longer than one page are fetched page by page.
func (c *RestClient) GetKlines(ctx context.Context, symbol, interval string, start, end time.Time) ([]models.Candle, error) {
	var candles []models.Candle
	from := start.UnixMilli()
	to := end.UnixMilli() - 1

	for from <= to {
		var rows [][]any
		req := c.client.R().
			SetContext(ctx).
			SetResult(&rows).
			SetQueryParams(map[string]string{
				"symbol":    symbol,
				"interval":  interval,
				"startTime": strconv.FormatInt(from, 10),
				"endTime":   strconv.FormatInt(to, 10),
				"limit":     strconv.Itoa(klinesLimit),
			})

		resp, err := c.doRequest(ctx, http.MethodGet, "/klines", req)
		if err != nil {
			return nil, fmt.Errorf("failed to get klines for %s: %w", symbol, err)
		}

		page := *resp.Result().(*[][]any)
		for _, row := range page {
			candle, err := parseKline(row)
			if err != nil {
				return nil, fmt.Errorf("failed to parse kline for %s: %w", symbol, err)
			}
			candles = append(candles, candle)
		}
		if len(page) < klinesLimit {
			break
		}
		next := candles[len(candles)-1].Timestamp.UnixMilli() + 1
		if next <= from {
			break
		}
		from = next
	}

	c.logger.Debug("Fetched klines",
		zap.String("symbol", symbol),
		zap.String("interval", interval),
		zap.Int("count", len(candles)),
	)
	return candles, nil
}

// parseKline converts one /klines row: [openTime, open, high, low, close, volume, closeTime, ...].
func parseKline(row []any) (models.Candle, error) {
	if len(row) < 6 {
		return models.Candle{}, fmt.Errorf("expected at least 6 fields, got %d", len(row))
	}
	openTime, ok := row[0].(float64)
	if !ok {
		return models.Candle{}, fmt.Errorf("open time %v is not a number", row[0])
	}

	var values [5]float64
	for i := range values {
		s, ok := row[i+1].(string)
		if !ok {
			return models.Candle{}, fmt.Errorf("field %d (%v) is not a string", i+1, row[i+1])
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.Candle{}, err
		}
		values[i] = v
	}

	return models.Candle{
		Timestamp: time.UnixMilli(int64(openTime)).UTC(),
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
	}, nil
}

// Symbol joins a coin and a quote asset into an exchange symbol, e.g. BTC + EUR = BTCEUR.
func Symbol(coin, quote string) string {
	return strings.ToUpper(coin) + strings.ToUpper(quote)
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if err == nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests || statusCode == 418 { // HTTP 429 or 418
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
			err = fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, err
		}

		// If we should retry, calculate wait time
		if retryAfter == 0 {
			// Exponential backoff: 1x, 2x, 4x the base delay
			retryAfter = time.Duration(math.Pow(2, float64(i))) * c.backoff
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}
