package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockwatch/internal/config"
	"stockwatch/internal/di"
	"stockwatch/internal/server"
	"stockwatch/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info"})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting stockwatch")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	container, err := di.Build(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build application")
	}
	defer container.Close()

	// Sweeps stop between symbols when this context is cancelled
	sweepCtx, cancelSweeps := context.WithCancel(context.Background())
	defer cancelSweeps()

	if err := container.StartSweeps(sweepCtx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to start sweep scheduling")
	}

	srv := server.New(server.Config{
		Port:         cfg.Port,
		DevMode:      cfg.DevMode,
		Log:          log,
		DB:           container.DB,
		Users:        container.UsersRepo,
		Watchlist:    container.WatchlistService,
		Portfolio:    container.PortfolioService,
		Push:         container.PushRepo,
		Registry:     container.Registry,
		TriggerSweep: func() error { return container.Orchestrator.Sweep(sweepCtx) },
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancelSweeps()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
