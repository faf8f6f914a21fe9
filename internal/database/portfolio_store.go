package database

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/clock"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/models"
)

// PortfolioStore persists one named portfolio in the SQL database.
type PortfolioStore struct {
	db     *gorm.DB
	name   string
	clock  clock.Clock
	logger *zap.Logger
}

var _ Store = (*PortfolioStore)(nil)

func NewPortfolioStore(db *gorm.DB, name string, clk clock.Clock, log *zap.Logger) *PortfolioStore {
	if name == "" {
		name = "default"
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &PortfolioStore{db: db, name: name, clock: clk, logger: log.Named("store")}
}

func (s *PortfolioStore) Load(initialCapital float64) (models.Portfolio, error) {
	var rec PortfolioRecord
	err := s.db.Where("name = ?", s.name).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Info("No stored portfolio, starting fresh",
			zap.String("portfolio", s.name),
			zap.Float64("initial_capital", initialCapital),
		)
		return models.NewPortfolio(initialCapital, s.clock.Now()), nil
	}
	if err != nil {
		return models.Portfolio{}, fmt.Errorf("failed to load portfolio %s: %w", s.name, err)
	}

	var positions []PositionRecord
	if err := s.db.Where("portfolio_name = ?", s.name).Find(&positions).Error; err != nil {
		return models.Portfolio{}, fmt.Errorf("failed to load positions: %w", err)
	}
	var trades []TradeRecord
	if err := s.db.Where("portfolio_name = ?", s.name).Order("seq asc").Find(&trades).Error; err != nil {
		return models.Portfolio{}, fmt.Errorf("failed to load trades: %w", err)
	}

	p := models.Portfolio{
		Capital:         rec.Capital,
		InitialCapital:  rec.InitialCapital,
		Positions:       make(map[string]models.Position, len(positions)),
		Trades:          make([]models.Trade, 0, len(trades)),
		TotalPnL:        rec.TotalPnL,
		TotalPnLPercent: rec.TotalPnLPercent,
		LastUpdated:     rec.LastUpdated.UTC(),
	}
	for _, pos := range positions {
		p.Positions[pos.Coin] = pos.Position()
	}
	for _, t := range trades {
		p.Trades = append(p.Trades, t.Trade())
	}
	return p, nil
}

// Save writes the portfolio in one transaction. Trades already stored are left
// untouched; only new ids are appended.
func (s *PortfolioStore) Save(p models.Portfolio) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var rec PortfolioRecord
		if err := tx.Where(PortfolioRecord{Name: s.name}).FirstOrCreate(&rec).Error; err != nil {
			return fmt.Errorf("failed to upsert portfolio: %w", err)
		}
		rec.Capital = p.Capital
		rec.InitialCapital = p.InitialCapital
		rec.TotalPnL = p.TotalPnL
		rec.TotalPnLPercent = p.TotalPnLPercent
		rec.LastUpdated = p.LastUpdated
		if err := tx.Save(&rec).Error; err != nil {
			return fmt.Errorf("failed to save portfolio: %w", err)
		}

		if err := tx.Unscoped().Where("portfolio_name = ?", s.name).Delete(&PositionRecord{}).Error; err != nil {
			return fmt.Errorf("failed to clear positions: %w", err)
		}
		for _, coin := range p.Coins() {
			pos := toPositionRecord(s.name, p.Positions[coin])
			if err := tx.Create(&pos).Error; err != nil {
				return fmt.Errorf("failed to save position %s: %w", coin, err)
			}
		}

		if len(p.Trades) == 0 {
			return nil
		}
		records := make([]TradeRecord, len(p.Trades))
		for i, t := range p.Trades {
			records[i] = toTradeRecord(s.name, i, t)
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&records, 100).Error; err != nil {
			return fmt.Errorf("failed to append trades: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to save portfolio", zap.String("portfolio", s.name), zap.Error(err))
		return err
	}
	s.logger.Debug("Saved portfolio",
		zap.String("portfolio", s.name),
		zap.Float64("capital", p.Capital),
		zap.Int("positions", len(p.Positions)),
		zap.Int("trades", len(p.Trades)),
	)
	return nil
}

// RecentTrades returns up to limit trades of every portfolio, newest first.
// A limit <= 0 returns all of them.
func RecentTrades(db *gorm.DB, limit int) ([]TradeRecord, error) {
	var trades []TradeRecord
	q := db.Order("timestamp desc").Order("seq desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}

// ClosedTrades returns every SELL trade, the ones carrying a realized PnL.
func ClosedTrades(db *gorm.DB) ([]TradeRecord, error) {
	var trades []TradeRecord
	if err := db.Where("side = ?", models.SideSell).Order("timestamp asc").Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}
