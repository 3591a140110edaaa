// Package artifacts stores chart images produced by the oracle. Charts are
// written to the local data directory and, when configured, mirrored to an
// S3-compatible bucket so push payloads can carry a URL instead of bytes.
package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"stockwatch/internal/domain"
)

// Store persists a chart artifact and returns the reference to cache on the
// watch target. Implementations must be safe for concurrent use.
type Store interface {
	Save(ctx context.Context, symbol string, chart *domain.ChartArtifact) (*domain.ChartArtifact, error)
}

// LocalStore writes chart PNGs to a directory on disk
type LocalStore struct {
	dir string
	log zerolog.Logger
}

// NewLocalStore creates a local chart store rooted at dir
func NewLocalStore(dir string, log zerolog.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create chart directory: %w", err)
	}
	return &LocalStore{
		dir: dir,
		log: log.With().Str("store", "charts_local").Logger(),
	}, nil
}

// Save writes the chart to disk. The returned artifact keeps the image bytes
// so the pull-based retrieval endpoint can serve them from the database cache.
func (s *LocalStore) Save(_ context.Context, symbol string, chart *domain.ChartArtifact) (*domain.ChartArtifact, error) {
	if chart == nil || len(chart.Data) == 0 {
		return nil, fmt.Errorf("no chart data for %s", symbol)
	}

	filename := symbol + ".png"
	path := filepath.Join(s.dir, filename)
	if err := os.WriteFile(path, chart.Data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write chart for %s: %w", symbol, err)
	}

	s.log.Debug().Str("symbol", symbol).Str("path", path).Msg("Chart written")

	return &domain.ChartArtifact{
		Filename:    filename,
		ContentType: chart.ContentType,
		Data:        chart.Data,
	}, nil
}
