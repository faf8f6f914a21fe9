package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/clock"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/config"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/models"
)

// Store loads and saves the simulated portfolio. Drivers call Load once at the
// start of a cycle and Save once at its end.
type Store interface {
	// Load returns the stored portfolio, or a fresh one holding initialCapital
	// when nothing has been stored yet.
	Load(initialCapital float64) (models.Portfolio, error)
	Save(p models.Portfolio) error
}

// NewDatabase creates a new database connection and performs auto-migration.
func NewDatabase(cfg *config.Config) (*gorm.DB, error) {
	dsn := cfg.Database.DSN
	if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto-migrate the schema
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate creates or updates the tables. Existing rows are never dropped:
// the trades table is an append-only audit log.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&PortfolioRecord{}, &PositionRecord{}, &TradeRecord{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

// NewStore builds the Store selected by cfg.Database.Driver.
func NewStore(cfg *config.Config, clk clock.Clock, log *zap.Logger) (Store, error) {
	switch strings.ToLower(cfg.Database.Driver) {
	case "", "sqlite":
		db, err := NewDatabase(cfg)
		if err != nil {
			return nil, err
		}
		return NewPortfolioStore(db, cfg.Database.Name, clk, log), nil
	case "file":
		return NewFileStore(cfg.Database.Path, clk, log), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}
