// Package di wires the application graph: database, repositories, services,
// delivery, and the sweep orchestrator.
package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"stockwatch/internal/alerts"
	"stockwatch/internal/artifacts"
	"stockwatch/internal/clients/oracle"
	"stockwatch/internal/config"
	"stockwatch/internal/database"
	"stockwatch/internal/events"
	"stockwatch/internal/modules/portfolio"
	"stockwatch/internal/modules/push"
	"stockwatch/internal/modules/users"
	"stockwatch/internal/modules/watchlist"
	"stockwatch/internal/notify"
	"stockwatch/internal/scheduler"
)

// Container holds every constructed component
type Container struct {
	DB     *database.DB
	Events *events.Manager

	UsersRepo     *users.Repository
	PortfolioRepo *portfolio.Repository
	WatchlistRepo *watchlist.Repository
	PushRepo      *push.Repository

	PortfolioService *portfolio.Service
	WatchlistService *watchlist.Service

	Oracle       *oracle.Client
	Charts       artifacts.Store
	Registry     *notify.Registry
	Router       *notify.Router
	Orchestrator *alerts.Orchestrator
	Scheduler    *scheduler.Scheduler
}

// Build constructs the full application graph from configuration
func Build(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	c := &Container{}

	db, err := database.New(database.Config{
		Path: cfg.DatabasePath(),
		Name: "stockwatch",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	c.DB = db

	c.Events = events.NewManager(log)

	c.UsersRepo = users.NewRepository(db.Conn(), log)
	c.PortfolioRepo = portfolio.NewRepository(db.Conn(), log)
	c.WatchlistRepo = watchlist.NewRepository(db.Conn(), log)
	c.PushRepo = push.NewRepository(db.Conn(), log)

	c.PortfolioService = portfolio.NewService(c.PortfolioRepo, log)
	c.WatchlistService = watchlist.NewService(c.WatchlistRepo, log)

	c.Oracle = oracle.NewClient(cfg.OracleURL, cfg.OracleTimeout, log)

	local, err := artifacts.NewLocalStore(cfg.ChartDir(), log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize chart store: %w", err)
	}
	c.Charts = local
	if cfg.S3Enabled() {
		s3Store, err := artifacts.NewS3Store(local, artifacts.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		}, log)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize S3 chart mirror: %w", err)
		}
		c.Charts = s3Store
	}

	c.Registry = notify.NewRegistry(log)

	var sender notify.PushSender
	if cfg.PushEnabled() {
		sender = notify.NewWebPushSender(cfg.VAPIDSubscriber, cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, log)
	}
	c.Router = notify.NewRouter(c.Registry, sender, c.PushRepo, c.Events, log)

	evaluator := alerts.NewEvaluator(c.PortfolioRepo, alerts.Thresholds{
		Profit:  cfg.ProfitThreshold,
		Loss:    cfg.LossThreshold,
		BuyDown: cfg.BuyDownThreshold,
	}, c.Events, log)

	c.Orchestrator = alerts.NewOrchestrator(
		c.UsersRepo,
		c.PortfolioRepo,
		c.WatchlistRepo,
		c.Oracle,
		evaluator,
		c.Router,
		c.Charts,
		c.Events,
		alerts.OrchestratorConfig{
			Workers:       cfg.SweepWorkers,
			OracleTimeout: cfg.OracleTimeout,
		},
		log,
	)

	c.Scheduler = scheduler.New(log)

	return c, nil
}

// StartSweeps registers the recurring sweep job and runs one sweep immediately
func (c *Container) StartSweeps(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	job := scheduler.NewSweepJob(ctx, c.Orchestrator, log)

	schedule := fmt.Sprintf("@every %s", cfg.SweepInterval)
	if err := c.Scheduler.AddJob(schedule, job); err != nil {
		return fmt.Errorf("failed to register sweep job: %w", err)
	}
	c.Scheduler.Start()

	go func() {
		if err := c.Scheduler.RunNow(job); err != nil {
			log.Error().Err(err).Msg("Startup sweep failed")
		}
	}()

	return nil
}

// Close releases held resources
func (c *Container) Close() {
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.DB != nil {
		c.DB.Close()
	}
}
