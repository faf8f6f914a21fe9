package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/clock"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/config"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/database"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// The dashboard reads the sqlite store only.
	db, err := database.NewDatabase(&cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	clk := clock.Real{}
	store := database.NewPortfolioStore(db, cfg.Database.Name, clk, log)

	mux := http.NewServeMux()
	NewAPIHandler(log, db, store, clk).Routes(mux)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info("Starting web server", zap.String("address", addr))

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := server.ListenAndServe(); err != nil {
		log.Fatal("Web server failed", zap.Error(err))
	}
}
