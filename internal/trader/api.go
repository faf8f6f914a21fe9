package trader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// APIServer provides an HTTP interface for the trading engine.
type APIServer struct {
	server *http.Server
	engine *Engine
	logger *zap.Logger
}

// NewAPIServer creates a new APIServer.
func NewAPIServer(engine *Engine, logger *zap.Logger) *APIServer {
	s := &APIServer{
		engine: engine,
		logger: logger.Named("api-server"),
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", engine.cfg.Trading.ApiPort),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler routes the API endpoints.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/report", s.reportHandler)
	return mux
}

// Start runs the HTTP server in a new goroutine.
func (s *APIServer) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}

func (s *APIServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := struct {
		UUID      string   `json:"uuid"`
		Name      string   `json:"name"`
		Strategy  string   `json:"strategy"`
		Coins     []string `json:"coins"`
		StartTime string   `json:"start_time"`
		Uptime    string   `json:"uptime"`
		Cycles    int      `json:"cycles"`
		LastCycle string   `json:"last_cycle,omitempty"`
	}{
		UUID:      s.engine.UUID,
		Name:      s.engine.Name,
		Strategy:  s.engine.cfg.Trading.Strategy,
		Coins:     s.engine.cfg.Trading.Coins,
		StartTime: s.engine.StartTime.Format(time.RFC3339),
		Uptime:    s.engine.clock.Now().Sub(s.engine.StartTime).String(),
		Cycles:    s.engine.Cycles(),
	}
	if report, ok := s.engine.LastReport(); ok {
		status.LastCycle = report.Timestamp
	}

	s.writeJSON(w, status)
}

func (s *APIServer) reportHandler(w http.ResponseWriter, r *http.Request) {
	report, ok := s.engine.LastReport()
	if !ok {
		http.Error(w, "No cycle has completed yet", http.StatusNotFound)
		return
	}
	s.writeJSON(w, report)
}

func (s *APIServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *APIServer) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
