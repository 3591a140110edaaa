package watchlist

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"stockwatch/internal/domain"
)

// Service exposes the track / inbox operations of the user-facing surface
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a new watchlist service
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "watchlist").Logger(),
	}
}

// Track adds a symbol to the user's watchlist
func (s *Service) Track(userID, symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if err := s.repo.EnsureTracked(userID, symbol); err != nil {
		return err
	}
	s.log.Info().Str("user_id", userID).Str("symbol", symbol).Msg("Symbol tracked")
	return nil
}

// Symbols returns the user's watchlist
func (s *Service) Symbols(userID string) ([]string, error) {
	return s.repo.Symbols(userID)
}

// UnreadUpdates returns the pull-based inbox of undelivered updates
func (s *Service) UnreadUpdates(userID string) ([]domain.WatchTarget, error) {
	return s.repo.UnreadUpdates(userID)
}

// AcknowledgeRead clears the unread flag for one symbol
func (s *Service) AcknowledgeRead(userID, symbol string) error {
	return s.repo.MarkRead(userID, strings.ToUpper(strings.TrimSpace(symbol)))
}

// Chart returns the cached chart artifact for one tracked symbol, if any
func (s *Service) Chart(userID, symbol string) (*domain.ChartArtifact, error) {
	target, err := s.repo.Get(userID, strings.ToUpper(strings.TrimSpace(symbol)))
	if err != nil {
		return nil, err
	}
	if target.Chart == nil {
		return nil, domain.ErrNotFound
	}
	return target.Chart, nil
}
