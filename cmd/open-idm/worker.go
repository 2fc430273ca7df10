package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/open-sspm/open-idm/internal/config"
	"github.com/open-sspm/open-idm/internal/metrics"
	"github.com/open-sspm/open-idm/internal/sync"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the startup tasks, then sync on a schedule and on request.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorker()
	},
}

func runWorker() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.SyncInterval <= 0 {
		return errors.New("SYNC_INTERVAL must be > 0 to run the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	_, metricsErrs := metrics.StartServer(ctx, cfg.MetricsAddr, a.pool.Ping)

	// Failed startup tasks are logged; syncing still works off inline servers.
	_ = a.startupRunner().Run(ctx)

	orchestrator, connectors := a.orchestrator()
	defer func() { _ = connectors.Close() }()

	requests := make(chan struct{}, 1)
	scheduler := sync.Scheduler{
		Runner:   sync.NewTryRunOnceLockRunner(a.locks, orchestrator),
		Interval: cfg.SyncInterval,
		Trigger:  requests,
	}

	slog.Info("sync worker started", "interval", cfg.SyncInterval, "workers", cfg.SyncWorkers, "lock_mode", cfg.LockMode)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		listenForRequests(gctx, a, requests)
		return nil
	})
	g.Go(func() error {
		scheduler.Run(gctx)
		return nil
	})
	if metricsErrs != nil {
		g.Go(func() error {
			select {
			case err := <-metricsErrs:
				return err
			case <-gctx.Done():
				return nil
			}
		})
	}
	return runError(g.Wait())
}

// listenForRequests keeps a LISTEN connection open until ctx ends,
// reconnecting after failures.
func listenForRequests(ctx context.Context, a *app, out chan<- struct{}) {
	const retryDelay = 5 * time.Second
	for {
		err := sync.ListenForSyncRequests(ctx, a.pool, out)
		if ctx.Err() != nil {
			return
		}
		slog.Warn("sync request listener stopped, reconnecting", "err", err, "retry_in", retryDelay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
		}
	}
}
