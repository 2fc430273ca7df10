package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/open-sspm/open-idm/internal/config"
	"github.com/spf13/cobra"
)

var startupCmd = &cobra.Command{
	Use:   "startup",
	Short: "Run the startup tasks once: cancel stale sync runs and consolidate remote servers.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStartup()
	},
}

func runStartup() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return runError(a.startupRunner().Run(ctx))
}
