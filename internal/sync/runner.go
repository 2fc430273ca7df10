package sync

import (
	"context"
	"errors"
)

// Runner executes a single sync pass.
type Runner interface {
	RunOnce(context.Context) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(context.Context) error

func (f RunnerFunc) RunOnce(ctx context.Context) error { return f(ctx) }

var (
	ErrNoEnabledSystems = errors.New("no enabled resource systems are configured")

	// ErrSyncAlreadyRunning is returned by a try-lock runner while another
	// process holds the run-once lock.
	ErrSyncAlreadyRunning = errors.New("sync is already running")

	// ErrSyncQueued means the request was handed to the workers over
	// NOTIFY rather than run here.
	ErrSyncQueued = errors.New("sync queued")
)
