package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const lockReleaseTimeout = 5 * time.Second

// lostLease records the first heartbeat failure of a held lock.
type lostLease struct {
	mu  sync.Mutex
	err error
}

func (l *lostLease) set(err error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false
	}
	l.err = err
	return true
}

func (l *lostLease) get() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// holdLock runs fn while lock is kept alive by its heartbeat and releases it
// afterwards. A lost lock cancels fn and is reported as errSyncLockLost
// alongside whatever fn returned.
func holdLock(ctx context.Context, lock Lock, fn func(context.Context) error) error {
	switch {
	case lock == nil:
		return errors.New("sync lock is nil")
	case fn == nil:
		return errors.New("sync run function is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logger := slog.With("scope_kind", lock.ScopeKind(), "scope_name", lock.ScopeName())

	fnCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer releaseLock(ctx, lock, logger)

	var lost lostLease
	stop := lock.StartHeartbeat(fnCtx, func(err error) {
		if lost.set(err) {
			logger.Error("lost sync lock, canceling run", "err", err)
		}
		cancel()
	})
	err := fn(fnCtx)
	stop()

	if lostErr := lost.get(); lostErr != nil {
		return errors.Join(err, fmt.Errorf("%w: %w", errSyncLockLost, lostErr))
	}
	return err
}

func releaseLock(ctx context.Context, lock Lock, logger *slog.Logger) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseTimeout)
	defer cancel()
	if err := lock.Release(releaseCtx); err != nil {
		logger.Warn("release sync lock", "err", err)
	}
}
