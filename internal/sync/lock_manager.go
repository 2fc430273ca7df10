package sync

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/open-sspm/open-idm/internal/db/gen"
)

const (
	LockModeLease    = "lease"
	LockModeAdvisory = "advisory"

	defaultLockMode              = LockModeLease
	defaultLockTTL               = 60 * time.Second
	defaultLockHeartbeatInterval = 15 * time.Second
	defaultLockHeartbeatTimeout  = 15 * time.Second

	lockRetryInitialDelay = 250 * time.Millisecond
	lockRetryMaxDelay     = 5 * time.Second
)

type LockManagerConfig struct {
	Mode              string
	InstanceID        string
	TTL               time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
}

// Lock guards one scope, such as one (system, object class) pair.
type Lock interface {
	ScopeKind() string
	ScopeName() string
	StartHeartbeat(ctx context.Context, onLost func(error)) (stop func())
	Release(ctx context.Context) error
}

type LockManager interface {
	TryAcquire(ctx context.Context, scopeKind, scopeName string) (Lock, bool, error)
	Acquire(ctx context.Context, scopeKind, scopeName string) (Lock, error)
}

// NewLockManager returns a lease manager, which survives connection loss and
// works across poolers, or an advisory-lock manager, which holds a pooled
// connection for the lifetime of each lock.
func NewLockManager(pool *pgxpool.Pool, cfg LockManagerConfig) (LockManager, error) {
	if pool == nil {
		return nil, errors.New("lock pool is nil")
	}

	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = defaultLockMode
	}

	switch mode {
	case LockModeLease:
		return &leaseLockManager{
			q:                gen.New(pool),
			instanceID:       lockInstanceID(cfg.InstanceID),
			ttlSeconds:       durationSecondsCeil(positiveOr(cfg.TTL, defaultLockTTL)),
			heartbeatEvery:   positiveOr(cfg.HeartbeatInterval, defaultLockHeartbeatInterval),
			heartbeatTimeout: positiveOr(cfg.HeartbeatTimeout, defaultLockHeartbeatTimeout),
		}, nil
	case LockModeAdvisory:
		return &advisoryLockManager{pool: pool}, nil
	default:
		return nil, fmt.Errorf("unknown lock mode %q", mode)
	}
}

func lockInstanceID(configured string) string {
	if id := strings.TrimSpace(configured); id != "" {
		return id
	}
	if h := strings.TrimSpace(os.Getenv("HOSTNAME")); h != "" {
		return h
	}
	if h, err := os.Hostname(); err == nil && strings.TrimSpace(h) != "" {
		return strings.TrimSpace(h)
	}
	return "unknown"
}

func positiveOr(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func normalizeScope(kind, name string) (string, string, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	name = strings.ToLower(strings.TrimSpace(name))
	if kind == "" {
		return "", "", errors.New("scope kind is required")
	}
	if name == "" {
		return "", "", errors.New("scope name is required")
	}
	return kind, name, nil
}

func durationSecondsCeil(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}

// lockKey maps a scope onto a Postgres advisory lock key.
func lockKey(kind, name string) int64 {
	kind = strings.ToLower(strings.TrimSpace(kind))
	name = strings.ToLower(strings.TrimSpace(name))

	h := fnv.New64a()
	_, _ = h.Write([]byte(kind))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}

type leaseQueries interface {
	TryAcquireSyncLockLease(ctx context.Context, arg gen.TryAcquireSyncLockLeaseParams) (pgtype.UUID, error)
	RenewSyncLockLease(ctx context.Context, arg gen.RenewSyncLockLeaseParams) (pgtype.Timestamptz, error)
	ReleaseSyncLockLease(ctx context.Context, arg gen.ReleaseSyncLockLeaseParams) error
}

type leaseLockManager struct {
	q                leaseQueries
	instanceID       string
	ttlSeconds       int64
	heartbeatEvery   time.Duration
	heartbeatTimeout time.Duration
}

// tryLease takes the lease when it is free or expired. A lease held by
// someone else yields pgx.ErrNoRows, reported here as false.
func (m *leaseLockManager) tryLease(ctx context.Context, kind, name string, token pgtype.UUID) (bool, error) {
	_, err := m.q.TryAcquireSyncLockLease(ctx, gen.TryAcquireSyncLockLeaseParams{
		ScopeKind:        kind,
		ScopeName:        name,
		HolderInstanceID: m.instanceID,
		HolderToken:      token,
		LeaseSeconds:     m.ttlSeconds,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (m *leaseLockManager) TryAcquire(ctx context.Context, scopeKind, scopeName string) (Lock, bool, error) {
	scopeKind, scopeName, err := normalizeScope(scopeKind, scopeName)
	if err != nil {
		return nil, false, err
	}
	if m == nil || m.q == nil {
		return nil, false, errors.New("lock manager is not configured")
	}

	token := pgUUID(uuid.New())
	ok, err := m.tryLease(ctx, scopeKind, scopeName, token)
	if err != nil || !ok {
		return nil, false, err
	}
	return &leaseLock{m: m, scopeKind: scopeKind, scopeName: scopeName, token: token}, true, nil
}

// Acquire polls for the lease with jittered exponential backoff until it is
// taken or ctx ends.
func (m *leaseLockManager) Acquire(ctx context.Context, scopeKind, scopeName string) (Lock, error) {
	scopeKind, scopeName, err := normalizeScope(scopeKind, scopeName)
	if err != nil {
		return nil, err
	}
	if m == nil || m.q == nil {
		return nil, errors.New("lock manager is not configured")
	}

	token := pgUUID(uuid.New())
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for attempt := 1; ; attempt++ {
		ok, err := m.tryLease(ctx, scopeKind, scopeName, token)
		if err != nil {
			return nil, err
		}
		if ok {
			return &leaseLock{m: m, scopeKind: scopeKind, scopeName: scopeName, token: token}, nil
		}

		delay := failureBackoffDelay(lockRetryInitialDelay, attempt, lockRetryMaxDelay)
		delay += time.Duration(rng.Int63n(int64(delay/2) + 1))
		if err := sleepWithContext(ctx, delay); err != nil {
			return nil, err
		}
	}
}

type leaseLock struct {
	m         *leaseLockManager
	scopeKind string
	scopeName string
	token     pgtype.UUID
}

func (l *leaseLock) ScopeKind() string { return l.scopeKind }
func (l *leaseLock) ScopeName() string { return l.scopeName }

// StartHeartbeat renews the lease until stop is called. The first renewal
// that fails reports the lease lost and ends the heartbeat.
func (l *leaseLock) StartHeartbeat(ctx context.Context, onLost func(error)) (stop func()) {
	if l == nil || l.m == nil || l.m.q == nil {
		return func() {}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if onLost == nil {
		onLost = func(error) {}
	}

	hbCtx, cancel := context.WithCancel(ctx)
	var once sync.Once
	stop = func() { once.Do(cancel) }

	// Spread the first renewal of locks taken together.
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	initialJitter := time.Duration(rng.Int63n(int64(l.m.heartbeatEvery/3) + 1))

	go func() {
		if sleepWithContext(hbCtx, initialJitter) != nil {
			return
		}

		ticker := time.NewTicker(l.m.heartbeatEvery)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
			}

			queryCtx, cancel := context.WithTimeout(hbCtx, l.m.heartbeatTimeout)
			_, err := l.m.q.RenewSyncLockLease(queryCtx, gen.RenewSyncLockLeaseParams{
				LeaseSeconds: l.m.ttlSeconds,
				ScopeKind:    l.scopeKind,
				ScopeName:    l.scopeName,
				HolderToken:  l.token,
			})
			cancel()
			if err != nil {
				if hbCtx.Err() != nil {
					return
				}
				onLost(err)
				return
			}
		}
	}()

	return stop
}

func (l *leaseLock) Release(ctx context.Context) error {
	if l == nil || l.m == nil || l.m.q == nil {
		return errors.New("lock is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return l.m.q.ReleaseSyncLockLease(ctx, gen.ReleaseSyncLockLeaseParams{
		ScopeKind:   l.scopeKind,
		ScopeName:   l.scopeName,
		HolderToken: l.token,
	})
}

type advisoryLockManager struct {
	pool *pgxpool.Pool
}

func (m *advisoryLockManager) acquire(ctx context.Context, scopeKind, scopeName string, wait bool) (Lock, bool, error) {
	scopeKind, scopeName, err := normalizeScope(scopeKind, scopeName)
	if err != nil {
		return nil, false, err
	}
	if m == nil || m.pool == nil {
		return nil, false, errors.New("lock manager is not configured")
	}

	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, false, err
	}
	q := gen.New(conn)
	key := lockKey(scopeKind, scopeName)

	if wait {
		err = q.AcquireAdvisoryLock(ctx, key)
	} else {
		var ok bool
		ok, err = q.TryAcquireAdvisoryLock(ctx, key)
		if err == nil && !ok {
			conn.Release()
			return nil, false, nil
		}
	}
	if err != nil {
		conn.Release()
		return nil, false, err
	}
	return &advisoryLock{conn: conn, q: q, key: key, scopeKind: scopeKind, scopeName: scopeName}, true, nil
}

func (m *advisoryLockManager) TryAcquire(ctx context.Context, scopeKind, scopeName string) (Lock, bool, error) {
	return m.acquire(ctx, scopeKind, scopeName, false)
}

func (m *advisoryLockManager) Acquire(ctx context.Context, scopeKind, scopeName string) (Lock, error) {
	lock, _, err := m.acquire(ctx, scopeKind, scopeName, true)
	return lock, err
}

type advisoryLock struct {
	conn      *pgxpool.Conn
	q         *gen.Queries
	key       int64
	scopeKind string
	scopeName string

	releaseOnce sync.Once
}

func (l *advisoryLock) ScopeKind() string { return l.scopeKind }
func (l *advisoryLock) ScopeName() string { return l.scopeName }

// StartHeartbeat is a no-op: the session holding the lock keeps it.
func (l *advisoryLock) StartHeartbeat(_ context.Context, _ func(error)) func() { return func() {} }

func (l *advisoryLock) Release(ctx context.Context) error {
	if l == nil || l.q == nil || l.conn == nil {
		return errors.New("lock is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var unlockErr error
	l.releaseOnce.Do(func() {
		unlockErr = l.q.ReleaseAdvisoryLock(ctx, l.key)
		l.conn.Release()
	})
	return unlockErr
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}
