package portfolio

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"stockwatch/internal/domain"
)

// Service exposes the explicit buy/sell operations of the user-facing surface.
// Automatic threshold closes go through the repository directly, driven by the
// alert evaluator.
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a new portfolio service
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "portfolio").Logger(),
	}
}

// Buy records a new purchase lot for the user
func (s *Service) Buy(userID, symbol string, entryPrice, quantity float64) (*domain.PositionLot, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	return s.repo.Insert(userID, symbol, entryPrice, quantity)
}

// Sell closes all open lots of the user+symbol at the given exit price.
// No alert flag is raised: this is an explicit user action, not a threshold
// trigger, so future positions still get both alerts.
func (s *Service) Sell(userID, symbol string, exitPrice float64) (int64, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return 0, fmt.Errorf("symbol is required")
	}
	if exitPrice <= 0 {
		return 0, fmt.Errorf("exit price must be positive")
	}

	closed, err := s.repo.CloseAllOpen(userID, symbol, exitPrice, CloseFlagNone)
	if err != nil {
		return 0, err
	}
	if closed == 0 {
		return 0, fmt.Errorf("no open lots for %s: %w", symbol, domain.ErrNotFound)
	}
	return closed, nil
}

// Holdings returns every lot of the user
func (s *Service) Holdings(userID string) ([]domain.PositionLot, error) {
	return s.repo.AllLots(userID)
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
