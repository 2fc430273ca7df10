package sync

import (
	"context"
	"errors"
)

// runOnceScopeName is the lock scope held for a whole sync pass, so only one
// process runs passes at a time.
const runOnceScopeName = "runonce"

type runOnceLockRunner struct {
	locks   LockManager
	inner   Runner
	tryLock bool
}

// NewBlockingRunOnceLockRunner waits for any running pass to finish before
// running inner.
func NewBlockingRunOnceLockRunner(locks LockManager, inner Runner) Runner {
	return &runOnceLockRunner{locks: locks, inner: inner}
}

// NewTryRunOnceLockRunner returns ErrSyncAlreadyRunning instead of waiting.
func NewTryRunOnceLockRunner(locks LockManager, inner Runner) Runner {
	return &runOnceLockRunner{locks: locks, inner: inner, tryLock: true}
}

func (r *runOnceLockRunner) RunOnce(ctx context.Context) error {
	if r == nil || r.locks == nil || r.inner == nil {
		return errors.New("sync runner is not configured")
	}

	var (
		lock Lock
		err  error
	)
	if r.tryLock {
		var ok bool
		lock, ok, err = r.locks.TryAcquire(ctx, lockScopeSync, runOnceScopeName)
		if err == nil && !ok {
			return ErrSyncAlreadyRunning
		}
	} else {
		lock, err = r.locks.Acquire(ctx, lockScopeSync, runOnceScopeName)
	}
	if err != nil {
		return err
	}

	return holdLock(ctx, lock, r.inner.RunOnce)
}
