package sync

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/open-sspm/open-idm/internal/db/gen"
)

// SyncRequestChannel is the Postgres notification channel workers listen on.
const SyncRequestChannel = "open_idm_sync_requested"

type syncNotifier interface {
	NotifySyncRequested(ctx context.Context) error
}

// RequestRunner asks running workers for a sync pass instead of running one
// in this process. It refuses while a pass already holds the run-once lock.
type RequestRunner struct {
	pool  *pgxpool.Pool
	locks LockManager
	// notifier overrides the query used on the lock connection; tests set it.
	notifier syncNotifier
}

func NewRequestRunner(pool *pgxpool.Pool, locks LockManager) *RequestRunner {
	return &RequestRunner{pool: pool, locks: locks}
}

func (r *RequestRunner) RunOnce(ctx context.Context) error {
	if r == nil || r.locks == nil {
		return errors.New("sync runner is not configured")
	}

	lock, ok, err := r.locks.TryAcquire(ctx, lockScopeSync, runOnceScopeName)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSyncAlreadyRunning
	}
	defer func() { _ = lock.Release(context.WithoutCancel(ctx)) }()

	notifier := r.notifier
	if notifier == nil {
		if al, isAdvisory := lock.(*advisoryLock); isAdvisory {
			notifier = al.q
		} else if r.pool != nil {
			notifier = gen.New(r.pool)
		} else {
			return errors.New("sync pool is nil")
		}
	}
	if err := notifier.NotifySyncRequested(ctx); err != nil {
		return err
	}
	return ErrSyncQueued
}

// ListenForSyncRequests forwards every sync request notification to out until
// ctx ends. Requests arriving while one is pending are coalesced.
func ListenForSyncRequests(ctx context.Context, pool *pgxpool.Pool, out chan<- struct{}) error {
	if pool == nil {
		return errors.New("sync pool is nil")
	}
	if out == nil {
		return errors.New("sync signal channel is nil")
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+SyncRequestChannel); err != nil {
		return err
	}

	for {
		_, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		select {
		case out <- struct{}{}:
		default:
		}
	}
}
