package scheduler

import (
	"context"

	"github.com/rs/zerolog"

	"stockwatch/internal/alerts"
)

// SweepJob runs one full alert sweep across all subscribed users.
// The orchestrator's per user+symbol locking makes an overlapping run safe,
// so the job does not hold its own exclusion lock.
type SweepJob struct {
	orchestrator *alerts.Orchestrator
	baseCtx      context.Context
	log          zerolog.Logger
}

func NewSweepJob(ctx context.Context, orchestrator *alerts.Orchestrator, log zerolog.Logger) *SweepJob {
	return &SweepJob{
		orchestrator: orchestrator,
		baseCtx:      ctx,
		log:          log.With().Str("job", "alert_sweep").Logger(),
	}
}

// Name returns the job name
func (j *SweepJob) Name() string {
	return "alert_sweep"
}

// Run executes one sweep. Cancelling the base context (shutdown) stops the
// sweep between symbols.
func (j *SweepJob) Run() error {
	return j.orchestrator.Sweep(j.baseCtx)
}
