package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/open-sspm/open-idm/internal/connectors/configstore"
	"github.com/open-sspm/open-idm/internal/connectors/facade"
	"github.com/open-sspm/open-idm/internal/connectors/model"
	"github.com/open-sspm/open-idm/internal/connectors/registry"
	"github.com/open-sspm/open-idm/internal/db/gen"
	"github.com/open-sspm/open-idm/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// Sync run statuses as stored in sync_runs.
const (
	RunStatusRunning  = "running"
	RunStatusSuccess  = "success"
	RunStatusError    = "error"
	RunStatusCanceled = "canceled"
)

const (
	lockScopeSync = "sync"

	defaultWorkers              = 4
	defaultTimeoutRetryAttempts = 2
	defaultTimeoutRetryDelay    = 2 * time.Second
	defaultTimeoutRetryMaxDelay = 30 * time.Second
)

var errSyncLockLost = errors.New("sync lock lost")

// Store is the persistence the orchestrator needs. *gen.Queries satisfies it.
type Store interface {
	ListEnabledResourceSystems(ctx context.Context) ([]gen.ResourceSystem, error)
	remoteServerGetter
	CreateSyncRun(ctx context.Context, arg gen.CreateSyncRunParams) (int64, error)
	FinishSyncRun(ctx context.Context, arg gen.FinishSyncRunParams) error
}

// Resolver opens connectors for resolved instances. *facade.Manager
// satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, inst configstore.ConnectorInstance, cfg configstore.ConnectorConfiguration) (*facade.Connector, error)
	Release(*facade.Connector)
}

// sweeper is implemented by resolvers that retire idle connectors.
type sweeper interface {
	Sweep() error
}

// Orchestrator runs a sync pass for every object class of every enabled
// resource system. Systems are isolated: one failing does not stop the rest.
type Orchestrator struct {
	store      Store
	connectors Resolver
	engine     *Engine
	decrypt    func(string) (string, error)
	reporter   registry.Reporter
	locks      LockManager
	workers    int

	timeoutRetryAttempts int
	timeoutRetryDelay    time.Duration
}

func NewOrchestrator(store Store, connectors Resolver, engine *Engine, decrypt func(string) (string, error)) *Orchestrator {
	return &Orchestrator{
		store:                store,
		connectors:           connectors,
		engine:               engine,
		decrypt:              decrypt,
		workers:              defaultWorkers,
		timeoutRetryAttempts: defaultTimeoutRetryAttempts,
		timeoutRetryDelay:    defaultTimeoutRetryDelay,
	}
}

func (o *Orchestrator) SetReporter(r registry.Reporter) {
	o.reporter = r
	if o.engine != nil {
		o.engine.Reporter = r
	}
}

func (o *Orchestrator) SetLockManager(m LockManager) {
	o.locks = m
}

// SetWorkers bounds the number of passes running at once.
func (o *Orchestrator) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	o.workers = n
}

// SetTimeoutRetryAttempts sets how many times a pass that timed out is tried.
func (o *Orchestrator) SetTimeoutRetryAttempts(n int) {
	if n < 1 {
		n = 1
	}
	o.timeoutRetryAttempts = n
}

func (o *Orchestrator) report(e registry.Event) {
	if o.reporter == nil {
		return
	}
	o.reporter.Report(e)
}

type passTask struct {
	system System
	class  string
}

func (o *Orchestrator) RunOnce(ctx context.Context) error {
	if o.store == nil || o.connectors == nil || o.engine == nil {
		return errors.New("sync orchestrator is not configured")
	}

	rows, err := o.store.ListEnabledResourceSystems(ctx)
	if err != nil {
		return fmt.Errorf("list resource systems: %w", err)
	}
	if len(rows) == 0 {
		return ErrNoEnabledSystems
	}

	var (
		errs  []error
		mu    sync.Mutex
		tasks []passTask
	)
	for _, row := range rows {
		sys, err := LoadSystem(ctx, o.store, row, o.decrypt)
		if err != nil {
			slog.Error("resource system could not be loaded", "system", row.Code, "err", err)
			o.report(registry.Event{Source: row.Code, Stage: "load", Err: err})
			errs = append(errs, err)
			continue
		}
		if len(sys.ObjectClasses) == 0 {
			slog.Info("resource system has no object classes to sync", "system", sys.Code)
			continue
		}
		for _, class := range sys.ObjectClasses {
			tasks = append(tasks, passTask{system: sys, class: class})
		}
	}

	var g errgroup.Group
	g.SetLimit(o.workers)
	for _, task := range tasks {
		g.Go(func() error {
			start := time.Now()
			runErr := o.runPassWithRetry(ctx, task)
			metrics.SyncDuration.WithLabelValues(task.system.Code, task.class).Observe(time.Since(start).Seconds())

			status := runStatus(ctx, runErr)
			metrics.SyncRunsTotal.WithLabelValues(task.system.Code, task.class, status).Inc()
			if runErr != nil {
				slog.Error("resource system sync failed", "system", task.system.Code, "object_class", task.class, "err", runErr)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s/%s sync: %w", task.system.Code, task.class, runErr))
				mu.Unlock()
				return nil
			}
			metrics.SyncLastSuccessTimestamp.WithLabelValues(task.system.Code, task.class).Set(float64(time.Now().Unix()))
			return nil
		})
	}
	_ = g.Wait()

	if sw, ok := o.connectors.(sweeper); ok {
		if err := sw.Sweep(); err != nil {
			slog.Warn("failed to close idle connectors", "err", err)
		}
	}

	err = errors.Join(errs...)
	o.report(registry.Event{Source: "sync", Stage: "done", Done: true, Err: err})
	return err
}

func (o *Orchestrator) runPassWithRetry(ctx context.Context, task passTask) error {
	attempts := o.timeoutRetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var runErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt > 1 {
			delay := failureBackoffDelay(o.timeoutRetryDelay, attempt-1, defaultTimeoutRetryMaxDelay)
			slog.Warn(
				"retrying sync after timeout",
				"system", task.system.Code,
				"object_class", task.class,
				"attempt", attempt,
				"max_attempts", attempts,
				"retry_delay", delay,
				"err", runErr,
			)
			if err := sleepWithContext(ctx, delay); err != nil {
				return errors.Join(runErr, err)
			}
		}

		runErr = o.withSyncLock(ctx, task.system.Code+"/"+task.class, func(lockCtx context.Context) error {
			return o.runPass(lockCtx, task)
		})
		if runErr == nil {
			return nil
		}
		if !isRetryableTimeoutError(runErr) {
			return runErr
		}
	}
	return runErr
}

func (o *Orchestrator) runPass(ctx context.Context, task passTask) error {
	sys := task.system
	conn, err := o.connectors.Resolve(ctx, sys.Instance, sys.Configuration)
	if err != nil {
		return err
	}
	defer o.connectors.Release(conn)
	if err := conn.Guard(ctx, model.OpSync, task.class); err != nil {
		return err
	}

	runID, err := o.store.CreateSyncRun(ctx, gen.CreateSyncRunParams{SystemCode: sys.Code, ObjectClass: task.class})
	if err != nil {
		return fmt.Errorf("create sync run: %w", err)
	}

	result, passErr := o.engine.Pass(ctx, conn.Capabilities().Syncer, PassRequest{
		System:             sys.Code,
		ObjectClass:        model.Class(task.class),
		InitializeToLatest: sys.InitializeToLatest,
	})

	message := fmt.Sprintf("deltas=%d", result.Deltas)
	if result.Initialized {
		message = "initialized to latest token"
	}
	if passErr != nil {
		message = passErr.Error()
	}
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	finishErr := o.store.FinishSyncRun(finishCtx, gen.FinishSyncRunParams{
		ID:        runID,
		Status:    runStatus(ctx, passErr),
		Deltas:    result.Deltas,
		Message:   message,
		ErrorKind: errorKind(passErr),
	})
	if finishErr != nil {
		finishErr = fmt.Errorf("finish sync run %d: %w", runID, finishErr)
	}
	return errors.Join(passErr, finishErr)
}

func runStatus(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return RunStatusSuccess
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return RunStatusCanceled
	default:
		return RunStatusError
	}
}

// errorKind classifies a failed pass for sync_runs.error_kind.
func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, errSyncLockLost):
		return "lock_lost"
	case errors.Is(err, model.ErrUnsupportedOperation):
		return "unsupported"
	case errors.Is(err, model.ErrInvalidCredential):
		return "credential"
	case errors.Is(err, model.ErrConnectionFailed):
		return "connection"
	case isRetryableTimeoutError(err):
		return "timeout"
	default:
		return "error"
	}
}

func isRetryableTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	// Lock-loss errors may wrap context.DeadlineExceeded; do not retry them.
	if errors.Is(err, errSyncLockLost) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if os.IsTimeout(err) {
		return true
	}

	var timeoutErr interface {
		Timeout() bool
	}
	return errors.As(err, &timeoutErr) && timeoutErr.Timeout()
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// failureBackoffDelay doubles base for every failure after the first, capped
// at max.
func failureBackoffDelay(base time.Duration, failures int, max time.Duration) time.Duration {
	if failures <= 0 || base <= 0 {
		return 0
	}

	delay := base
	for i := 1; i < failures; i++ {
		if delay > max/2 && max > 0 {
			delay = max
			break
		}
		delay *= 2
	}

	if max > 0 && delay > max {
		return max
	}
	return delay
}

func (o *Orchestrator) withSyncLock(ctx context.Context, name string, fn func(context.Context) error) error {
	if o.locks == nil {
		return errors.New("sync lock manager is nil")
	}

	lock, err := o.locks.Acquire(ctx, lockScopeSync, name)
	if err != nil {
		return err
	}

	return holdLock(ctx, lock, fn)
}
