package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/open-sspm/open-idm/internal/config"
	"github.com/open-sspm/open-idm/internal/sync"
	"github.com/spf13/cobra"
)

var syncQueue bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run the startup tasks and one sync pass over every enabled resource system.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync()
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncQueue, "queue", false, "ask running workers for a pass instead of running one here")
}

func runSync() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if syncQueue {
		err := sync.NewRequestRunner(a.pool, a.locks).RunOnce(ctx)
		switch {
		case errors.Is(err, sync.ErrSyncQueued):
			slog.Info("sync requested from workers")
			return nil
		case errors.Is(err, sync.ErrSyncAlreadyRunning):
			slog.Info("a sync pass is already running")
			return nil
		}
		return runError(err)
	}

	if err := a.startupRunner().Run(ctx); err != nil {
		return runError(err)
	}

	orchestrator, connectors := a.orchestrator()
	defer func() { _ = connectors.Close() }()

	syncErr := sync.NewBlockingRunOnceLockRunner(a.locks, orchestrator).RunOnce(ctx)
	if errors.Is(syncErr, sync.ErrNoEnabledSystems) {
		slog.Info("no enabled resource systems to sync")
		return nil
	}
	return runError(syncErr)
}
