// Package users provides user storage and lookup.
package users

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stockwatch/internal/domain"
)

// Repository handles user database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new user repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "users").Logger(),
	}
}

// GetByID returns a single user, or domain.ErrNotFound
func (r *Repository) GetByID(id string) (*domain.User, error) {
	row := r.db.QueryRow(
		`SELECT id, handle, subscribed, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetOrCreateByHandle returns the user with the given contact handle,
// creating it if it does not exist yet.
func (r *Repository) GetOrCreateByHandle(handle string) (*domain.User, error) {
	row := r.db.QueryRow(
		`SELECT id, handle, subscribed, created_at FROM users WHERE handle = ?`, handle)

	user, err := scanUser(row)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	id := uuid.New().String()
	if _, err := r.db.Exec(
		`INSERT INTO users (id, handle) VALUES (?, ?)`, id, handle); err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	r.log.Info().Str("user_id", id).Str("handle", handle).Msg("User created")
	return r.GetByID(id)
}

// GetSubscribed returns all users that opted into alert sweeps
func (r *Repository) GetSubscribed() ([]domain.User, error) {
	rows, err := r.db.Query(
		`SELECT id, handle, subscribed, created_at FROM users WHERE subscribed = 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscribed users: %w", err)
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		var u domain.User
		var subscribed int
		if err := rows.Scan(&u.ID, &u.Handle, &subscribed, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.Subscribed = subscribed != 0
		result = append(result, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return result, nil
}

// SetSubscribed flips the subscription flag for a user
func (r *Repository) SetSubscribed(id string, subscribed bool) error {
	val := 0
	if subscribed {
		val = 1
	}
	res, err := r.db.Exec(`UPDATE users SET subscribed = ? WHERE id = ?`, val, id)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var subscribed int
	err := row.Scan(&u.ID, &u.Handle, &subscribed, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	u.Subscribed = subscribed != 0
	return &u, nil
}
