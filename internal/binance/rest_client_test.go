package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/config"
)

// setupTestServer creates a new test server and a RestClient configured to use it.
func setupTestServer(handler http.Handler) (*RestClient, *httptest.Server) {
	server := httptest.NewServer(handler)

	client := resty.New().SetBaseURL(server.URL)
	logger := zap.NewNop() // Use a no-op logger for tests

	rc := &RestClient{
		client:  client,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Inf, 1), // Allow all requests in tests
		backoff: time.Millisecond,
	}

	return rc, server
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func TestGetServerTime(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		expectedTime := time.Now().UnixMilli()
		mockResponse := fmt.Sprintf(`{"serverTime": %d}`, expectedTime)

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/time", r.URL.Path)
			writeJSON(w, mockResponse)
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		// Act
		serverTime, err := rc.GetServerTime(context.Background())

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, expectedTime, serverTime)
	})

	t.Run("APIError", func(t *testing.T) {
		// Arrange
		var calls int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			assert.Equal(t, "/time", r.URL.Path)
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"code": -1001, "msg": "Internal error"}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		// Act
		serverTime, err := rc.GetServerTime(context.Background())

		// Assert
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get server time")
		assert.Contains(t, err.Error(), "request failed") // Check for the error from doRequest
		assert.Equal(t, int64(0), serverTime)
		assert.Equal(t, int32(maxRetries), atomic.LoadInt32(&calls))
	})
}

func TestDoRequest_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code": -1121, "msg": "Invalid symbol."}`))
	})
	rc, server := setupTestServer(handler)
	defer server.Close()

	_, err := rc.GetTickerPrices(context.Background(), []string{"FOOEUR"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid symbol")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDoRequest_RetriesAfterRateLimit(t *testing.T) {
	var calls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeJSON(w, `{"serverTime": 42}`)
	})
	rc, server := setupTestServer(handler)
	defer server.Close()

	ts, err := rc.GetServerTime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), ts)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetTickerPrices(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ticker/price", r.URL.Path)
		assert.Equal(t, `["BTCEUR","ETHEUR"]`, r.URL.Query().Get("symbols"))
		writeJSON(w, `[{"symbol":"BTCEUR","price":"61234.50"},{"symbol":"ETHEUR","price":"oops"}]`)
	})
	rc, server := setupTestServer(handler)
	defer server.Close()

	prices, err := rc.GetTickerPrices(context.Background(), []string{"BTCEUR", "ETHEUR"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"BTCEUR": 61234.5}, prices)
}

func klineRow(openMs int64, close float64) string {
	c := strconv.FormatFloat(close, 'f', 2, 64)
	return fmt.Sprintf(`[%d,"%s","%s","%s","%s","12.5",%d,"0",10,"0","0","0"]`, openMs, c, c, c, c, openMs+3599999)
}

func TestGetKlines_Paginates(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	total := klinesLimit + 200
	var pages int32

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&pages, 1)
		q := r.URL.Query()
		assert.Equal(t, "/klines", r.URL.Path)
		assert.Equal(t, "BTCEUR", q.Get("symbol"))
		assert.Equal(t, "1h", q.Get("interval"))

		from, _ := strconv.ParseInt(q.Get("startTime"), 10, 64)
		first := int((from - start.UnixMilli() + time.Hour.Milliseconds() - 1) / time.Hour.Milliseconds())
		rows := make([]string, 0, klinesLimit)
		for i := first; i < total && len(rows) < klinesLimit; i++ {
			open := start.Add(time.Duration(i) * time.Hour).UnixMilli()
			rows = append(rows, klineRow(open, 100+float64(i)))
		}
		writeJSON(w, "["+strings.Join(rows, ",")+"]")
	})
	rc, server := setupTestServer(handler)
	defer server.Close()

	candles, err := rc.GetKlines(context.Background(), "BTCEUR", "1h", start, start.Add(time.Duration(total)*time.Hour))
	require.NoError(t, err)
	require.Len(t, candles, total)
	assert.Equal(t, int32(2), atomic.LoadInt32(&pages))

	assert.Equal(t, start, candles[0].Timestamp)
	assert.Equal(t, 100.0, candles[0].Close)
	assert.Equal(t, 12.5, candles[0].Volume)
	for i := 1; i < len(candles); i++ {
		assert.True(t, candles[i].Timestamp.After(candles[i-1].Timestamp))
	}
}

func TestGetKlines_MalformedRow(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `[[1700000000000,"1","2"]]`)
	})
	rc, server := setupTestServer(handler)
	defer server.Close()

	_, err := rc.GetKlines(context.Background(), "BTCEUR", "1h", time.Unix(0, 0), time.Now())
	assert.Error(t, err)
}

func TestSymbol(t *testing.T) {
	assert.Equal(t, "BTCEUR", Symbol("btc", "eur"))
}

func TestNewRestClient(t *testing.T) {
	t.Run("Default URL", func(t *testing.T) {
		rc := NewRestClient(&config.Binance{RateLimit: 5, RateLimitBurst: 1}, zap.NewNop())
		assert.NotNil(t, rc)
		assert.Equal(t, defaultBaseURL, rc.client.BaseURL)
		assert.Equal(t, time.Second, rc.backoff)
	})

	t.Run("Configured URL", func(t *testing.T) {
		rc := NewRestClient(&config.Binance{BaseURL: "http://localhost:9999", RateLimit: 5, RateLimitBurst: 1}, zap.NewNop())
		assert.Equal(t, "http://localhost:9999", rc.client.BaseURL)
	})
}
