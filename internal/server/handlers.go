package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"stockwatch/internal/domain"
)

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Handle string `json:"handle"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Handle == "" {
		s.writeError(w, http.StatusBadRequest, "handle is required")
		return
	}

	user, err := s.users.GetOrCreateByHandle(req.Handle)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to create user")
		s.writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":         user.ID,
		"handle":     user.Handle,
		"subscribed": user.Subscribed,
	})
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req struct {
		Subscribed bool `json:"subscribed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.users.SetSubscribed(userID, req.Subscribed); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "user not found")
			return
		}
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to update subscription")
		s.writeError(w, http.StatusInternalServerError, "failed to update subscription")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"subscribed": req.Subscribed})
}

func (s *Server) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	symbols, err := s.watchlist.Symbols(userID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to list watchlist")
		s.writeError(w, http.StatusInternalServerError, "failed to list watchlist")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"symbols": symbols})
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req struct {
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbol == "" {
		s.writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	if err := s.watchlist.Track(userID, req.Symbol); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Str("symbol", req.Symbol).Msg("Failed to track symbol")
		s.writeError(w, http.StatusInternalServerError, "failed to track symbol")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "tracking"})
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	lots, err := s.portfolio.Holdings(userID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to list holdings")
		s.writeError(w, http.StatusInternalServerError, "failed to list holdings")
		return
	}

	out := make([]map[string]interface{}, 0, len(lots))
	for _, lot := range lots {
		entry := map[string]interface{}{
			"id":          lot.ID,
			"symbol":      lot.Symbol,
			"entry_price": lot.EntryPrice,
			"quantity":    lot.Quantity,
			"status":      lot.Status,
			"created_at":  lot.CreatedAt,
		}
		if lot.ExitPrice != nil {
			entry["exit_price"] = *lot.ExitPrice
		}
		if lot.ClosedAt != nil {
			entry["closed_at"] = *lot.ClosedAt
		}
		out = append(out, entry)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"lots": out})
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req struct {
		Symbol   string  `json:"symbol"`
		Price    float64 `json:"price"`
		Quantity float64 `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbol == "" {
		s.writeError(w, http.StatusBadRequest, "symbol, price and quantity are required")
		return
	}

	lot, err := s.portfolio.Buy(userID, req.Symbol, req.Price, req.Quantity)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Str("symbol", req.Symbol).Msg("Buy failed")
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// A bought symbol is always watched too
	if err := s.watchlist.Track(userID, req.Symbol); err != nil {
		s.log.Warn().Err(err).Str("symbol", req.Symbol).Msg("Failed to track bought symbol")
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":          lot.ID,
		"symbol":      lot.Symbol,
		"entry_price": lot.EntryPrice,
		"quantity":    lot.Quantity,
	})
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbol == "" {
		s.writeError(w, http.StatusBadRequest, "symbol and price are required")
		return
	}

	closed, err := s.portfolio.Sell(userID, req.Symbol, req.Price)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "no open position for symbol")
			return
		}
		s.log.Error().Err(err).Str("user_id", userID).Str("symbol", req.Symbol).Msg("Sell failed")
		s.writeError(w, http.StatusInternalServerError, "sell failed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"lots_closed": closed})
}

func (s *Server) handleGetUpdates(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	targets, err := s.watchlist.UnreadUpdates(userID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to list updates")
		s.writeError(w, http.StatusInternalServerError, "failed to list updates")
		return
	}

	out := make([]map[string]interface{}, 0, len(targets))
	for _, t := range targets {
		entry := map[string]interface{}{
			"symbol":  t.Symbol,
			"summary": t.LastUpdateSummary,
		}
		if t.LastKnownPrice != nil {
			entry["price"] = *t.LastKnownPrice
		}
		if t.LastKnownChangePercent != nil {
			entry["change_percent"] = *t.LastKnownChangePercent
		}
		if t.LastUpdateAt != nil {
			entry["updated_at"] = *t.LastUpdateAt
		}
		entry["has_chart"] = t.Chart != nil
		out = append(out, entry)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"updates": out})
}

func (s *Server) handleAckRead(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	symbol := chi.URLParam(r, "symbol")

	if err := s.watchlist.AcknowledgeRead(userID, symbol); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "symbol not tracked")
			return
		}
		s.log.Error().Err(err).Str("user_id", userID).Str("symbol", symbol).Msg("Read ack failed")
		s.writeError(w, http.StatusInternalServerError, "read ack failed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

func (s *Server) handleGetChart(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	symbol := chi.URLParam(r, "symbol")

	chart, err := s.watchlist.Chart(userID, symbol)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "no chart for symbol")
			return
		}
		s.log.Error().Err(err).Str("symbol", symbol).Msg("Chart lookup failed")
		s.writeError(w, http.StatusInternalServerError, "chart lookup failed")
		return
	}

	if len(chart.Data) == 0 && chart.URL != "" {
		http.Redirect(w, r, chart.URL, http.StatusFound)
		return
	}

	contentType := chart.ContentType
	if contentType == "" {
		contentType = "image/png"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(chart.Data)
}

func (s *Server) handleRegisterPush(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256DH string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Endpoint == "" {
		s.writeError(w, http.StatusBadRequest, "endpoint and keys are required")
		return
	}

	reg, err := s.push.Save(userID, req.Endpoint, req.Keys.P256DH, req.Keys.Auth)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Push registration failed")
		s.writeError(w, http.StatusInternalServerError, "push registration failed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"id": reg.ID})
}
