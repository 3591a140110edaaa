// Package notify owns alert delivery: the live WebSocket channel registry,
// the durable Web Push sender, message rendering, and the router that picks
// between them.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"stockwatch/internal/domain"
)

const writeWait = 10 * time.Second

// Registry tracks live WebSocket connections per user. Connect/disconnect
// events arrive from the transport at arbitrary times while sweeps read the
// registry, so every access is synchronized. A connection dropping between
// the lookup and the emit surfaces as a delivery error on Emit, never a panic.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*websocket.Conn
	log   zerolog.Logger
}

// NewRegistry creates an empty live channel registry
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		conns: make(map[string]*websocket.Conn),
		log:   log.With().Str("component", "live_registry").Logger(),
	}
}

// Register binds a user to a live connection. An existing connection for the
// same user is closed; a user has at most one live channel.
func (r *Registry) Register(userID string, conn *websocket.Conn) {
	r.mu.Lock()
	old := r.conns[userID]
	r.conns[userID] = conn
	r.mu.Unlock()

	if old != nil && old != conn {
		_ = old.Close(websocket.StatusPolicyViolation, "replaced by newer connection")
	}

	r.log.Info().Str("user_id", userID).Msg("Live channel registered")
}

// Unregister removes the binding, but only if it still points at the given
// connection. A stale disconnect must not evict a newer connection.
func (r *Registry) Unregister(userID string, conn *websocket.Conn) {
	r.mu.Lock()
	if r.conns[userID] == conn {
		delete(r.conns, userID)
	}
	r.mu.Unlock()

	r.log.Info().Str("user_id", userID).Msg("Live channel unregistered")
}

// IsConnected reports whether the user currently has a live channel
func (r *Registry) IsConnected(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[userID] != nil
}

// Emit writes a JSON payload to the user's live channel.
// Returns domain.ErrNotConnected when no channel is registered, and
// domain.ErrDeliveryFailed when the write fails (including the race where the
// connection dropped after the lookup).
func (r *Registry) Emit(ctx context.Context, userID string, payload interface{}) error {
	r.mu.RLock()
	conn := r.conns[userID]
	r.mu.RUnlock()

	if conn == nil {
		return domain.ErrNotConnected
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()

	if err := wsjson.Write(writeCtx, conn, payload); err != nil {
		return fmt.Errorf("%w: live emit to %s: %v", domain.ErrDeliveryFailed, userID, err)
	}
	return nil
}
