// Package server exposes the HTTP API and the live WebSocket endpoint.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"stockwatch/internal/database"
	"stockwatch/internal/modules/portfolio"
	"stockwatch/internal/modules/push"
	"stockwatch/internal/modules/users"
	"stockwatch/internal/modules/watchlist"
	"stockwatch/internal/notify"
)

// Config holds server configuration
type Config struct {
	Port    int
	DevMode bool
	Log     zerolog.Logger

	DB        *database.DB
	Users     *users.Repository
	Watchlist *watchlist.Service
	Portfolio *portfolio.Service
	Push      *push.Repository
	Registry  *notify.Registry

	// TriggerSweep runs one alert sweep on demand
	TriggerSweep func() error
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger

	db           *database.DB
	users        *users.Repository
	watchlist    *watchlist.Service
	portfolio    *portfolio.Service
	push         *push.Repository
	registry     *notify.Registry
	triggerSweep func() error
	startedAt    time.Time
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		log:          cfg.Log.With().Str("component", "server").Logger(),
		db:           cfg.DB,
		users:        cfg.Users,
		watchlist:    cfg.Watchlist,
		portfolio:    cfg.Portfolio,
		push:         cfg.Push,
		registry:     cfg.Registry,
		triggerSweep: cfg.TriggerSweep,
		startedAt:    time.Now(),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/ws", s.handleWebSocket)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/users", s.handleCreateUser)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/subscribe", s.handleSubscribe)

			r.Get("/watchlist", s.handleGetWatchlist)
			r.Post("/watchlist", s.handleTrack)

			r.Get("/portfolio", s.handleGetPortfolio)
			r.Post("/portfolio/buy", s.handleBuy)
			r.Post("/portfolio/sell", s.handleSell)

			r.Get("/updates", s.handleGetUpdates)
			r.Post("/updates/{symbol}/read", s.handleAckRead)
			r.Get("/charts/{symbol}", s.handleGetChart)

			r.Post("/push", s.handleRegisterPush)
		})

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.handleSystemStatus)
			r.Post("/sweep", s.handleTriggerSweep)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
