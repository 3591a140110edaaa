// Package watchlist manages watch targets: the durable last-known state per
// tracked user+symbol and the unread-update inbox for offline delivery.
package watchlist

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"stockwatch/internal/domain"
)

// Repository handles watch target database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new watch target repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "watchlist").Logger(),
	}
}

// EnsureTracked creates the watch target row if it does not exist yet.
// Called by the explicit track action and implicitly the first time a symbol
// is evaluated for a user.
func (r *Repository) EnsureTracked(userID, symbol string) error {
	_, err := r.db.Exec(
		`INSERT INTO watch_targets (user_id, symbol) VALUES (?, ?)
		 ON CONFLICT(user_id, symbol) DO NOTHING`,
		userID, symbol)
	if err != nil {
		return fmt.Errorf("failed to ensure watch target: %w", err)
	}
	return nil
}

// Get returns the watch target for one user+symbol, or domain.ErrNotFound
func (r *Repository) Get(userID, symbol string) (*domain.WatchTarget, error) {
	row := r.db.QueryRow(
		`SELECT user_id, symbol, last_known_price, last_known_change_percent,
			last_known_sentiment, last_update_summary, last_update_at,
			has_unread_update, chart_artifact, created_at
		 FROM watch_targets WHERE user_id = ? AND symbol = ?`,
		userID, symbol)

	target, err := scanTarget(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return target, err
}

// Symbols returns the symbols a user tracks
func (r *Repository) Symbols(userID string) ([]string, error) {
	rows, err := r.db.Query(
		`SELECT symbol FROM watch_targets WHERE user_id = ? ORDER BY symbol`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query watch symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan watch symbol: %w", err)
		}
		symbols = append(symbols, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating watch symbols: %w", err)
	}

	return symbols, nil
}

// StateUpdate is the last-known-state write performed after a notifiable change
type StateUpdate struct {
	Price         float64
	ChangePercent float64
	Sentiment     domain.SentimentType
	Summary       string
	Unread        bool // Set when delivery went through the durable path
	Chart         *domain.ChartArtifact
}

// SaveState persists the latest snapshot summary on the watch target.
// The unread flag is only ever raised here; it is cleared exclusively by an
// explicit read acknowledgment via MarkRead.
func (r *Repository) SaveState(userID, symbol string, update StateUpdate) error {
	var chartBlob []byte
	if update.Chart != nil {
		var err error
		chartBlob, err = msgpack.Marshal(update.Chart)
		if err != nil {
			return fmt.Errorf("failed to encode chart artifact: %w", err)
		}
	}

	query := `UPDATE watch_targets
		 SET last_known_price = ?, last_known_change_percent = ?,
		     last_known_sentiment = ?, last_update_summary = ?, last_update_at = ?`
	args := []interface{}{
		update.Price, update.ChangePercent, string(update.Sentiment),
		update.Summary, time.Now().UTC(),
	}
	if update.Unread {
		query += `, has_unread_update = 1`
	}
	if chartBlob != nil {
		query += `, chart_artifact = ?`
		args = append(args, chartBlob)
	}
	query += ` WHERE user_id = ? AND symbol = ?`
	args = append(args, userID, symbol)

	res, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("%w: failed to save watch state: %v", domain.ErrPersistence, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: watch target %s/%s missing", domain.ErrPersistence, userID, symbol)
	}

	return nil
}

// MarkRead clears the unread flag; the read acknowledgment from the user surface
func (r *Repository) MarkRead(userID, symbol string) error {
	res, err := r.db.Exec(
		`UPDATE watch_targets SET has_unread_update = 0 WHERE user_id = ? AND symbol = ?`,
		userID, symbol)
	if err != nil {
		return fmt.Errorf("failed to mark read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UnreadUpdates returns the watch targets of a user carrying unread updates
func (r *Repository) UnreadUpdates(userID string) ([]domain.WatchTarget, error) {
	rows, err := r.db.Query(
		`SELECT user_id, symbol, last_known_price, last_known_change_percent,
			last_known_sentiment, last_update_summary, last_update_at,
			has_unread_update, chart_artifact, created_at
		 FROM watch_targets
		 WHERE user_id = ? AND has_unread_update = 1 ORDER BY last_update_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unread updates: %w", err)
	}
	defer rows.Close()

	var targets []domain.WatchTarget
	for rows.Next() {
		target, err := scanTarget(rows.Scan)
		if err != nil {
			return nil, err
		}
		targets = append(targets, *target)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unread updates: %w", err)
	}

	return targets, nil
}

func scanTarget(scan func(...interface{}) error) (*domain.WatchTarget, error) {
	var t domain.WatchTarget
	var price, changePct sql.NullFloat64
	var sentiment sql.NullString
	var updateAt sql.NullTime
	var unread int
	var chartBlob []byte

	err := scan(&t.UserID, &t.Symbol, &price, &changePct, &sentiment,
		&t.LastUpdateSummary, &updateAt, &unread, &chartBlob, &t.CreatedAt)
	if err != nil {
		return nil, err
	}

	if price.Valid {
		v := price.Float64
		t.LastKnownPrice = &v
	}
	if changePct.Valid {
		v := changePct.Float64
		t.LastKnownChangePercent = &v
	}
	if sentiment.Valid && sentiment.String != "" {
		s := domain.ParseSentimentType(sentiment.String)
		t.LastKnownSentiment = &s
	}
	if updateAt.Valid {
		at := updateAt.Time
		t.LastUpdateAt = &at
	}
	t.HasUnreadUpdate = unread != 0

	if len(chartBlob) > 0 {
		var chart domain.ChartArtifact
		if err := msgpack.Unmarshal(chartBlob, &chart); err != nil {
			return nil, fmt.Errorf("failed to decode chart artifact: %w", err)
		}
		t.Chart = &chart
	}

	return &t, nil
}
