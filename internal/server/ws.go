package server

import (
	"errors"
	"net/http"

	"nhooyr.io/websocket"

	"stockwatch/internal/domain"
)

// handleWebSocket upgrades GET /ws?user_id=... to the live alert channel.
// The connection is held open for server pushes; the read loop exists only to
// observe the close.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if _, err := s.users.GetByID(userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "user not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "user lookup failed")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("WebSocket accept failed")
		return
	}

	s.registry.Register(userID, conn)
	defer s.registry.Unregister(userID, conn)

	// Drain incoming frames until the peer goes away
	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			break
		}
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}
