// Package portfolio manages position lots: discrete purchase records that are
// aggregated into one logical position per user+symbol at evaluation time.
package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stockwatch/internal/database"
	"stockwatch/internal/domain"
)

// CloseFlag selects which one-way alert flag a close operation raises
type CloseFlag string

const (
	CloseFlagStoploss CloseFlag = "stoploss_alert_sent"
	CloseFlagProfit   CloseFlag = "profit_alert_sent"
	CloseFlagNone     CloseFlag = "" // Explicit user sell, no alert flag raised
)

// Repository handles position lot database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new position lot repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "portfolio").Logger(),
	}
}

// Insert records a new purchase lot
func (r *Repository) Insert(userID, symbol string, entryPrice, quantity float64) (*domain.PositionLot, error) {
	if entryPrice <= 0 || quantity <= 0 {
		return nil, fmt.Errorf("entry price and quantity must be positive")
	}

	id := uuid.New().String()
	_, err := r.db.Exec(
		`INSERT INTO position_lots (id, user_id, symbol, entry_price, quantity)
		 VALUES (?, ?, ?, ?, ?)`,
		id, userID, symbol, entryPrice, quantity)
	if err != nil {
		return nil, fmt.Errorf("failed to insert lot: %w", err)
	}

	r.log.Info().
		Str("user_id", userID).
		Str("symbol", symbol).
		Float64("entry_price", entryPrice).
		Float64("quantity", quantity).
		Msg("Lot recorded")

	lots, err := r.lotsBy(`id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(lots) == 0 {
		return nil, domain.ErrNotFound
	}
	return &lots[0], nil
}

// OpenLots returns the open lots for one user+symbol
func (r *Repository) OpenLots(userID, symbol string) ([]domain.PositionLot, error) {
	return r.lotsBy(`user_id = ? AND symbol = ? AND status = 'open'`, userID, symbol)
}

// AllLots returns every lot of a user, open and closed
func (r *Repository) AllLots(userID string) ([]domain.PositionLot, error) {
	return r.lotsBy(`user_id = ?`, userID)
}

// OpenSymbols returns the distinct symbols a user holds open positions in
func (r *Repository) OpenSymbols(userID string) ([]string, error) {
	rows, err := r.db.Query(
		`SELECT DISTINCT symbol FROM position_lots WHERE user_id = ? AND status = 'open'`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query open symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating open symbols: %w", err)
	}

	return symbols, nil
}

// CloseAllOpen closes every open lot of a user+symbol in a single statement
// inside one transaction, setting the exit price, the closed status, and
// (when flag is not CloseFlagNone) the given one-way alert flag. A single
// UPDATE guarantees a crash can never leave a partially-closed position.
// Returns the number of lots closed.
func (r *Repository) CloseAllOpen(userID, symbol string, exitPrice float64, flag CloseFlag) (int64, error) {
	var closed int64

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		query := `UPDATE position_lots
			 SET exit_price = ?, status = 'closed', closed_at = ?`
		switch flag {
		case CloseFlagStoploss:
			query += `, stoploss_alert_sent = 1`
		case CloseFlagProfit:
			query += `, profit_alert_sent = 1`
		}
		query += ` WHERE user_id = ? AND symbol = ? AND status = 'open'`

		res, err := tx.Exec(query, exitPrice, time.Now().UTC(), userID, symbol)
		if err != nil {
			return fmt.Errorf("failed to close lots: %w", err)
		}

		closed, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	if closed > 0 {
		r.log.Info().
			Str("user_id", userID).
			Str("symbol", symbol).
			Float64("exit_price", exitPrice).
			Str("flag", string(flag)).
			Int64("lots", closed).
			Msg("Position closed")
	}

	return closed, nil
}

func (r *Repository) lotsBy(where string, args ...interface{}) ([]domain.PositionLot, error) {
	query := `SELECT id, user_id, symbol, entry_price, quantity, exit_price,
		status, stoploss_alert_sent, profit_alert_sent, created_at, closed_at
		FROM position_lots WHERE ` + where + ` ORDER BY created_at`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots: %w", err)
	}
	defer rows.Close()

	var lots []domain.PositionLot
	for rows.Next() {
		var lot domain.PositionLot
		var status string
		var stoploss, profit int
		var exitPrice sql.NullFloat64
		var closedAt sql.NullTime
		if err := rows.Scan(&lot.ID, &lot.UserID, &lot.Symbol, &lot.EntryPrice,
			&lot.Quantity, &exitPrice, &status, &stoploss, &profit,
			&lot.CreatedAt, &closedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}
		lot.Status = domain.LotStatus(status)
		lot.StoplossAlertSent = stoploss != 0
		lot.ProfitAlertSent = profit != 0
		if exitPrice.Valid {
			v := exitPrice.Float64
			lot.ExitPrice = &v
		}
		if closedAt.Valid {
			t := closedAt.Time
			lot.ClosedAt = &t
		}
		lots = append(lots, lot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lots: %w", err)
	}

	return lots, nil
}
