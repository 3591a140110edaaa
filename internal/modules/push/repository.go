// Package push manages durable Web Push registrations.
package push

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stockwatch/internal/domain"
)

// Repository handles push registration database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new push registration repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "push").Logger(),
	}
}

// Save upserts a registration keyed by its transport endpoint.
// Re-registering an existing endpoint moves it to the given user.
func (r *Repository) Save(userID, endpoint, p256dh, auth string) (*domain.PushRegistration, error) {
	if endpoint == "" || p256dh == "" || auth == "" {
		return nil, fmt.Errorf("endpoint and keys are required")
	}

	id := uuid.New().String()
	_, err := r.db.Exec(
		`INSERT INTO push_registrations (id, user_id, endpoint, p256dh, auth)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET user_id = excluded.user_id,
		     p256dh = excluded.p256dh, auth = excluded.auth`,
		id, userID, endpoint, p256dh, auth)
	if err != nil {
		return nil, fmt.Errorf("failed to save push registration: %w", err)
	}

	r.log.Info().Str("user_id", userID).Msg("Push registration saved")

	row := r.db.QueryRow(
		`SELECT id, user_id, endpoint, p256dh, auth, created_at
		 FROM push_registrations WHERE endpoint = ?`, endpoint)

	var reg domain.PushRegistration
	if err := row.Scan(&reg.ID, &reg.UserID, &reg.Endpoint, &reg.P256DH,
		&reg.Auth, &reg.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to read back registration: %w", err)
	}
	return &reg, nil
}

// ByUser returns all registrations of one user
func (r *Repository) ByUser(userID string) ([]domain.PushRegistration, error) {
	rows, err := r.db.Query(
		`SELECT id, user_id, endpoint, p256dh, auth, created_at
		 FROM push_registrations WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query push registrations: %w", err)
	}
	defer rows.Close()

	var regs []domain.PushRegistration
	for rows.Next() {
		var reg domain.PushRegistration
		if err := rows.Scan(&reg.ID, &reg.UserID, &reg.Endpoint, &reg.P256DH,
			&reg.Auth, &reg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan push registration: %w", err)
		}
		regs = append(regs, reg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating push registrations: %w", err)
	}

	return regs, nil
}
