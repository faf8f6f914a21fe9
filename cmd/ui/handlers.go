package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/clock"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/database"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/models"
)

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log   *zap.Logger
	db    *gorm.DB
	store database.Store
	clock clock.Clock
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, db *gorm.DB, store database.Store, clk clock.Clock) *APIHandler {
	return &APIHandler{log: log, db: db, store: store, clock: clk}
}

// Routes registers the API endpoints on mux.
func (h *APIHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/portfolio", h.PortfolioHandler)
	mux.HandleFunc("/api/trades", h.TradesHandler)
	mux.HandleFunc("/api/statistics", h.StatisticsHandler)
}

// PortfolioResponse is the structure for the /api/portfolio endpoint.
type PortfolioResponse struct {
	models.Portfolio
	TotalValue float64 `json:"total_value"`
}

// PortfolioHandler returns the stored portfolio. Nothing is created when none exists yet.
func (h *APIHandler) PortfolioHandler(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.Load(0)
	if err != nil {
		h.log.Error("Failed to load portfolio", zap.Error(err))
		http.Error(w, "Failed to load portfolio", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, PortfolioResponse{Portfolio: p, TotalValue: p.TotalValue()})
}

// TradesHandler returns historical trades, most recent first. ?limit=N bounds the list.
func (h *APIHandler) TradesHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := database.RecentTrades(h.db, limit)
	if err != nil {
		h.log.Error("Failed to get trades from database", zap.Error(err))
		http.Error(w, "Failed to get trades", http.StatusInternalServerError)
		return
	}

	trades := make([]models.Trade, len(records))
	for i, rec := range records {
		trades[i] = rec.Trade()
	}
	h.writeJSON(w, trades)
}

// StatsDetail holds calculated statistics for a given period.
type StatsDetail struct {
	TotalTrades      int64   `json:"total_trades"`
	ProfitableTrades int64   `json:"profitable_trades"`
	WinRate          float64 `json:"win_rate"`
	TotalProfit      float64 `json:"total_profit"`
}

func (s *StatsDetail) add(pnl float64) {
	s.TotalTrades++
	if pnl > 0 {
		s.ProfitableTrades++
	}
	s.TotalProfit += pnl
}

func (s *StatsDetail) finish() {
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.ProfitableTrades) / float64(s.TotalTrades)
	}
}

// StatisticsResponse is the structure for the /api/statistics endpoint.
type StatisticsResponse struct {
	Since24h StatsDetail `json:"since_24h"`
	AllTime  StatsDetail `json:"all_time"`
}

// StatisticsHandler calculates realized trading statistics over closed (SELL) trades.
func (h *APIHandler) StatisticsHandler(w http.ResponseWriter, r *http.Request) {
	closed, err := database.ClosedTrades(h.db)
	if err != nil {
		h.log.Error("Failed to get trades for statistics", zap.Error(err))
		http.Error(w, "Failed to calculate statistics", http.StatusInternalServerError)
		return
	}

	since24h := h.clock.Now().Add(-24 * time.Hour)
	var response StatisticsResponse
	for _, trade := range closed {
		response.AllTime.add(trade.PnL)
		if trade.Timestamp.After(since24h) {
			response.Since24h.add(trade.PnL)
		}
	}
	response.AllTime.finish()
	response.Since24h.finish()

	h.writeJSON(w, response)
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to write response", zap.Error(err))
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
