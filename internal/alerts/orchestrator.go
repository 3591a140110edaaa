package alerts

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stockwatch/internal/artifacts"
	"stockwatch/internal/domain"
	"stockwatch/internal/events"
	"stockwatch/internal/modules/watchlist"
	"stockwatch/internal/notify"
	"stockwatch/internal/signals"
)

// Consumer-side contracts so the orchestrator can be exercised against fakes.

type userLister interface {
	GetSubscribed() ([]domain.User, error)
}

type lotReader interface {
	OpenLots(userID, symbol string) ([]domain.PositionLot, error)
	OpenSymbols(userID string) ([]string, error)
}

type watchStore interface {
	Symbols(userID string) ([]string, error)
	Get(userID, symbol string) (*domain.WatchTarget, error)
	EnsureTracked(userID, symbol string) error
	SaveState(userID, symbol string, update watchlist.StateUpdate) error
}

type snapshotFetcher interface {
	Fetch(ctx context.Context, symbol string, refEntry *float64) (*domain.MarketSnapshot, error)
}

type deliverer interface {
	Deliver(ctx context.Context, n *domain.Notification) (notify.Outcome, error)
}

// Orchestrator drives one full sweep across subscribed users. Users run on a
// bounded worker pool; a user's symbols run sequentially under a per
// user+symbol lock so two overlapping sweeps cannot race on close flags or
// state writes.
type Orchestrator struct {
	users     userLister
	lots      lotReader
	watch     watchStore
	oracle    snapshotFetcher
	evaluator *Evaluator
	router    deliverer
	charts    artifacts.Store
	events    *events.Manager
	log       zerolog.Logger

	workers       int
	oracleTimeout time.Duration
	locks         *keyedLocks
}

type OrchestratorConfig struct {
	Workers       int
	OracleTimeout time.Duration
}

func NewOrchestrator(
	users userLister,
	lots lotReader,
	watch watchStore,
	oracle snapshotFetcher,
	evaluator *Evaluator,
	router deliverer,
	charts artifacts.Store,
	ev *events.Manager,
	cfg OrchestratorConfig,
	log zerolog.Logger,
) *Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Orchestrator{
		users:         users,
		lots:          lots,
		watch:         watch,
		oracle:        oracle,
		evaluator:     evaluator,
		router:        router,
		charts:        charts,
		events:        ev,
		workers:       cfg.Workers,
		oracleTimeout: cfg.OracleTimeout,
		locks:         newKeyedLocks(),
		log:           log.With().Str("component", "orchestrator").Logger(),
	}
}

// Sweep runs the full pipeline once. Per-symbol failures are logged and
// skipped; nothing here is fatal. Cancelling ctx stops the sweep between
// symbols; in-flight evaluations finish or time out.
func (o *Orchestrator) Sweep(ctx context.Context) error {
	started := time.Now()
	o.events.Emit(events.SweepStarted, "alerts", nil)

	users, err := o.users.GetSubscribed()
	if err != nil {
		o.events.EmitError("alerts", err, map[string]interface{}{"stage": "list_users"})
		return err
	}

	sem := make(chan struct{}, o.workers)
	var wg sync.WaitGroup
	for i := range users {
		if ctx.Err() != nil {
			break
		}
		user := users[i]
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			o.sweepUser(ctx, user)
		}()
	}
	wg.Wait()

	o.events.Emit(events.SweepCompleted, "alerts", map[string]interface{}{
		"users":       len(users),
		"duration_ms": time.Since(started).Milliseconds(),
	})
	return ctx.Err()
}

func (o *Orchestrator) sweepUser(ctx context.Context, user domain.User) {
	symbols, err := o.symbolsFor(user.ID)
	if err != nil {
		o.log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to resolve sweep symbols")
		return
	}

	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return
		}
		if err := o.sweepSymbol(ctx, user, symbol); err != nil {
			o.log.Warn().Err(err).
				Str("user_id", user.ID).
				Str("symbol", symbol).
				Msg("Symbol skipped")
			o.events.Emit(events.SymbolSkipped, "alerts", map[string]interface{}{
				"user_id": user.ID,
				"symbol":  symbol,
				"error":   err.Error(),
			})
		}
	}
}

// symbolsFor is the union of the user's watchlist and open-position symbols
func (o *Orchestrator) symbolsFor(userID string) ([]string, error) {
	watched, err := o.watch.Symbols(userID)
	if err != nil {
		return nil, err
	}
	held, err := o.lots.OpenSymbols(userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(watched)+len(held))
	union := make([]string, 0, len(watched)+len(held))
	for _, s := range append(watched, held...) {
		if !seen[s] {
			seen[s] = true
			union = append(union, s)
		}
	}
	return union, nil
}

func (o *Orchestrator) sweepSymbol(ctx context.Context, user domain.User, symbol string) error {
	unlock := o.locks.lock(user.ID + "|" + symbol)
	defer unlock()

	lots, err := o.lots.OpenLots(user.ID, symbol)
	if err != nil {
		return err
	}
	pos := Aggregate(lots)

	var refEntry *float64
	if pos.HasOpenPosition() {
		refEntry = &pos.AvgEntryPrice
	}

	fetchCtx, cancel := context.WithTimeout(ctx, o.oracleTimeout)
	snap, err := o.oracle.Fetch(fetchCtx, symbol, refEntry)
	cancel()
	if err != nil {
		return err
	}

	eval, err := o.evaluator.Evaluate(user.ID, snap, pos, lots)
	if err != nil {
		return err
	}

	// A symbol reached through an open position alone becomes tracked the
	// first time it is evaluated.
	if err := o.watch.EnsureTracked(user.ID, symbol); err != nil {
		return err
	}
	target, err := o.watch.Get(user.ID, symbol)
	if err != nil {
		return err
	}

	reasons := Diff(snap, target.State())
	if len(reasons) == 0 {
		return nil
	}

	if snap.Chart != nil && o.charts != nil {
		stored, err := o.charts.Save(ctx, symbol, snap.Chart)
		if err != nil {
			o.log.Warn().Err(err).Str("symbol", symbol).Msg("Chart store failed")
		} else {
			snap.Chart = stored
		}
	}

	source := domain.SourceWatchlist
	if pos.HasOpenPosition() {
		source = domain.SourcePortfolio
	}

	n := notify.Render(notify.RenderInput{
		Symbol:         symbol,
		Source:         source,
		Snapshot:       snap,
		Position:       pos,
		PnLPercent:     eval.PnLPercent,
		Recommendation: eval.Recommendation,
		Reasons:        reasons,
		ClosedLots:     eval.ClosedLots,
		ExitPrice:      eval.ExitPrice,
		Indicators:     signals.Compute(snap.Closes),
	})
	n.UserID = user.ID

	out, err := o.router.Deliver(ctx, n)
	if err != nil {
		// Delivery trouble must not block the state write; the alert was
		// already attempted and must not repeat next sweep.
		o.log.Warn().Err(err).Str("user_id", user.ID).Str("symbol", symbol).Msg("Delivery error")
	}

	saveErr := o.watch.SaveState(user.ID, symbol, watchlist.StateUpdate{
		Price:         snap.Price,
		ChangePercent: snap.ChangePercent,
		Sentiment:     snap.SentimentType,
		Summary:       n.Summary,
		Unread:        out.Durable,
		Chart:         snap.Chart,
	})
	if saveErr != nil && errors.Is(saveErr, domain.ErrPersistence) {
		// At-most-once: the notification may already be out. Logged, not retried.
		o.log.Error().Err(saveErr).Str("user_id", user.ID).Str("symbol", symbol).Msg("State write failed after delivery")
		return nil
	}
	return saveErr
}
