package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Scheduler runs a pass at startup, then on every tick and on every value
// received from Trigger.
type Scheduler struct {
	Runner   Runner
	Interval time.Duration
	Trigger  <-chan struct{}
}

func (s *Scheduler) Run(ctx context.Context) {
	if s.Runner == nil || s.Interval <= 0 {
		return
	}

	s.runOnce(ctx, "initial sync failed")

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, "scheduled sync failed")
		case <-s.Trigger:
			s.runOnce(ctx, "requested sync failed")
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, failure string) {
	err := s.Runner.RunOnce(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrNoEnabledSystems):
		slog.Info("no enabled resource systems to sync")
	case errors.Is(err, ErrSyncAlreadyRunning):
		slog.Info("sync pass already running elsewhere, skipping")
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
	default:
		slog.Error(failure, "err", err)
	}
}
