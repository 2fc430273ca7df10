// Package pool keeps warm connector sessions. The number of live objects
// never exceeds Config.MaxObjects; a borrower that finds the pool exhausted
// waits up to Config.MaxWait.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/open-sspm/open-idm/internal/metrics"
)

var (
	ErrTimeout = errors.New("timed out waiting for a pooled object")
	ErrClosed  = errors.New("pool closed")
)

type Config struct {
	// Name labels the pool in logs and metrics.
	Name       string
	MaxObjects int
	MinIdle    int
	MaxIdle    int
	// MaxWait bounds Borrow when every object is in use. Zero waits until
	// the caller's context is done.
	MaxWait time.Duration
	// MinEvictableIdle is how long an object may sit idle before eviction.
	// Zero disables eviction.
	MinEvictableIdle time.Duration
	// EvictionInterval is the period of the background evictor. Zero
	// disables it; Evict can still be called directly.
	EvictionInterval time.Duration
}

// Factory creates, checks and destroys pooled objects.
type Factory[T any] struct {
	New func(ctx context.Context) (T, error)
	// Validate is run on an idle object before it is handed out again. Nil
	// means idle objects are always reused.
	Validate func(ctx context.Context, obj T) error
	Destroy  func(obj T)
}

type idleObject[T any] struct {
	obj   T
	since time.Time
}

type Pool[T any] struct {
	cfg     Config
	factory Factory[T]
	slots   *semaphore.Weighted
	now     func() time.Time

	mu     sync.Mutex
	idle   []idleObject[T]
	active int
	// live counts idle, borrowed and in-construction objects.
	live   int
	closed bool

	stop chan struct{}
	done chan struct{}
}

// New builds a pool and starts its evictor when EvictionInterval is set.
func New[T any](cfg Config, factory Factory[T]) (*Pool[T], error) {
	if cfg.MaxObjects <= 0 {
		return nil, fmt.Errorf("pool %s: max objects must be positive", cfg.Name)
	}
	if factory.New == nil {
		return nil, fmt.Errorf("pool %s: factory has no constructor", cfg.Name)
	}
	if cfg.MaxIdle <= 0 || cfg.MaxIdle > cfg.MaxObjects {
		cfg.MaxIdle = cfg.MaxObjects
	}
	if cfg.MinIdle > cfg.MaxIdle {
		cfg.MinIdle = cfg.MaxIdle
	}
	p := &Pool[T]{
		cfg:     cfg,
		factory: factory,
		slots:   semaphore.NewWeighted(int64(cfg.MaxObjects)),
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if cfg.EvictionInterval > 0 {
		go p.runEvictor()
	} else {
		close(p.done)
	}
	return p, nil
}

// Borrow hands out an idle object or creates one. The caller must pass the
// object back with Return or Invalidate.
func (p *Pool[T]) Borrow(ctx context.Context) (T, error) {
	var zero T
	if p.isClosed() {
		return zero, ErrClosed
	}

	waitCtx := ctx
	if p.cfg.MaxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.cfg.MaxWait)
		defer cancel()
	}
	if err := p.slots.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		metrics.ConnectorPoolWaitTimeoutsTotal.WithLabelValues(p.cfg.Name).Inc()
		return zero, fmt.Errorf("pool %s: %w after %s", p.cfg.Name, ErrTimeout, p.cfg.MaxWait)
	}

	for {
		obj, ok, reserved := p.takeIdleOrReserve()
		if ok {
			if p.factory.Validate != nil {
				if err := p.factory.Validate(ctx, obj); err != nil {
					slog.Debug("discarding pooled object that failed validation", "pool", p.cfg.Name, "err", err)
					p.discard(obj)
					continue
				}
			}
			p.markActive()
			return obj, nil
		}
		if !reserved {
			p.slots.Release(1)
			return zero, fmt.Errorf("pool %s: %w", p.cfg.Name, ErrTimeout)
		}
		break
	}

	obj, err := p.factory.New(ctx)
	if err != nil {
		p.unreserve()
		p.slots.Release(1)
		return zero, err
	}
	p.markActive()
	return obj, nil
}

// Return puts obj back for reuse, or destroys it when the idle set is full
// or the pool is closed.
func (p *Pool[T]) Return(obj T) {
	p.mu.Lock()
	p.active--
	keep := !p.closed && len(p.idle) < p.cfg.MaxIdle
	if keep {
		p.idle = append(p.idle, idleObject[T]{obj: obj, since: p.now()})
	} else {
		p.live--
	}
	p.mu.Unlock()
	if !keep {
		p.destroy(obj)
	}
	p.slots.Release(1)
	p.report()
}

// Invalidate destroys a borrowed object that must not be reused.
func (p *Pool[T]) Invalidate(obj T) {
	p.mu.Lock()
	p.active--
	p.live--
	p.mu.Unlock()
	p.destroy(obj)
	p.slots.Release(1)
	p.report()
}

// Evict destroys objects idle for longer than MinEvictableIdle while keeping
// MinIdle objects, then creates objects to refill MinIdle.
func (p *Pool[T]) Evict(ctx context.Context) {
	if p.cfg.MinEvictableIdle > 0 {
		cutoff := p.now().Add(-p.cfg.MinEvictableIdle)
		var expired []T
		p.mu.Lock()
		kept := p.idle[:0]
		for i, it := range p.idle {
			remaining := len(kept) + len(p.idle) - i - 1
			if it.since.Before(cutoff) && remaining >= p.cfg.MinIdle {
				expired = append(expired, it.obj)
				continue
			}
			kept = append(kept, it)
		}
		p.idle = kept
		p.live -= len(expired)
		p.mu.Unlock()
		for _, obj := range expired {
			p.destroy(obj)
		}
	}

	for p.slots.TryAcquire(1) {
		p.mu.Lock()
		need := !p.closed && len(p.idle) < p.cfg.MinIdle && p.live < p.cfg.MaxObjects
		if need {
			p.live++
		}
		p.mu.Unlock()
		if !need {
			p.slots.Release(1)
			break
		}
		obj, err := p.factory.New(ctx)
		if err != nil {
			p.unreserve()
			p.slots.Release(1)
			slog.Warn("failed to refill connector pool", "pool", p.cfg.Name, "err", err)
			break
		}
		p.mu.Lock()
		p.idle = append(p.idle, idleObject[T]{obj: obj, since: p.now()})
		p.mu.Unlock()
		p.slots.Release(1)
	}
	p.report()
}

// Stats reports the idle, borrowed and live object counts.
func (p *Pool[T]) Stats() (idle, active, live int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle), p.active, p.live
}

// Close destroys idle objects and stops the evictor. Borrowed objects are
// destroyed when they are returned.
func (p *Pool[T]) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.live -= len(idle)
	p.mu.Unlock()

	close(p.stop)
	<-p.done
	for _, it := range idle {
		p.destroy(it.obj)
	}
	p.report()
}

func (p *Pool[T]) runEvictor() {
	defer close(p.done)
	ticker := time.NewTicker(p.cfg.EvictionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.Evict(context.Background())
		}
	}
}

// takeIdleOrReserve pops the most recently returned idle object or, when
// none is idle, reserves room for a new one.
func (p *Pool[T]) takeIdleOrReserve() (obj T, ok, reserved bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.idle); n > 0 {
		obj = p.idle[n-1].obj
		p.idle = p.idle[:n-1]
		return obj, true, false
	}
	if p.live >= p.cfg.MaxObjects {
		return obj, false, false
	}
	p.live++
	return obj, false, true
}

func (p *Pool[T]) unreserve() {
	p.mu.Lock()
	p.live--
	p.mu.Unlock()
}

func (p *Pool[T]) discard(obj T) {
	p.unreserve()
	p.destroy(obj)
}

func (p *Pool[T]) markActive() {
	p.mu.Lock()
	p.active++
	p.mu.Unlock()
	p.report()
}

func (p *Pool[T]) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Pool[T]) destroy(obj T) {
	if p.factory.Destroy != nil {
		p.factory.Destroy(obj)
	}
}

func (p *Pool[T]) report() {
	if p.cfg.Name == "" {
		return
	}
	idle, active, _ := p.Stats()
	metrics.ConnectorPoolObjects.WithLabelValues(p.cfg.Name, "idle").Set(float64(idle))
	metrics.ConnectorPoolObjects.WithLabelValues(p.cfg.Name, "active").Set(float64(active))
}
