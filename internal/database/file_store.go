package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/clock"
	"github.com/manthis/openclaw-skill-crypto-trader-sim/internal/models"
)

// FileStore keeps the portfolio as a single JSON document.
type FileStore struct {
	path   string
	clock  clock.Clock
	logger *zap.Logger
	mu     sync.Mutex
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string, clk clock.Clock, log *zap.Logger) *FileStore {
	if clk == nil {
		clk = clock.Real{}
	}
	return &FileStore{path: path, clock: clk, logger: log.Named("store")}
}

func (s *FileStore) Load(initialCapital float64) (models.Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		return models.Portfolio{}, errors.New("empty portfolio path")
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(data) == 0) {
		s.logger.Info("No stored portfolio, starting fresh", zap.String("path", s.path), zap.Float64("initial_capital", initialCapital))
		return models.NewPortfolio(initialCapital, s.clock.Now()), nil
	}
	if err != nil {
		return models.Portfolio{}, err
	}

	var p models.Portfolio
	if err := json.Unmarshal(data, &p); err != nil {
		return models.Portfolio{}, fmt.Errorf("failed to decode %s: %w", s.path, err)
	}
	if p.Positions == nil {
		p.Positions = make(map[string]models.Position)
	}
	if p.Trades == nil {
		p.Trades = []models.Trade{}
	}
	return p, nil
}

// Save replaces the document atomically through a temporary file.
func (s *FileStore) Save(p models.Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		return errors.New("empty portfolio path")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
