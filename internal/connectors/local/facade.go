// Package local runs connector bundles in process.
package local

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/open-sspm/open-idm/internal/connectors/framework"
	"github.com/open-sspm/open-idm/internal/connectors/pool"
)

const evictionInterval = 30 * time.Second

// Facade executes operations on in-process connector instances. Pooled
// configurations reuse initialized instances; others create and dispose an
// instance per call.
type Facade struct {
	bundle framework.Bundle
	cfg    framework.APIConfiguration
	init   framework.Configuration
	ops    []framework.OperationType
	pool   *pool.Pool[framework.Connector]
}

// NewFacade binds bundle to one configuration. poolName labels the pool in
// metrics.
func NewFacade(bundle framework.Bundle, cfg framework.APIConfiguration, poolName string) (*Facade, error) {
	if bundle.New == nil {
		return nil, fmt.Errorf("bundle %s has no constructor", bundle.Key.FullName())
	}
	f := &Facade{
		bundle: bundle,
		cfg:    cfg,
		init:   framework.Configuration{Properties: mergeProperties(bundle.ConfigurationProperties, cfg.Properties)},
		ops:    bundle.Operations,
	}
	if f.ops == nil {
		probe := bundle.New()
		f.ops = framework.SupportedOperations(probe)
	}
	if !cfg.ConnectorPoolingSupported {
		return f, nil
	}

	pc := framework.DefaultObjectPoolConfiguration()
	if cfg.PoolConfiguration != nil {
		pc = *cfg.PoolConfiguration
	}
	p, err := pool.New(pool.Config{
		Name:             poolName,
		MaxObjects:       pc.MaxObjects,
		MinIdle:          pc.MinIdle,
		MaxIdle:          pc.MaxIdle,
		MaxWait:          pc.MaxWait,
		MinEvictableIdle: pc.MinEvictableIdleTime,
		EvictionInterval: evictionInterval,
	}, pool.Factory[framework.Connector]{
		New: f.newConnector,
		Validate: func(ctx context.Context, c framework.Connector) error {
			if pc, ok := c.(framework.PoolableConnector); ok {
				return pc.CheckAlive(ctx)
			}
			return nil
		},
		Destroy: func(c framework.Connector) { c.Dispose() },
	})
	if err != nil {
		return nil, err
	}
	f.pool = p
	return f, nil
}

// mergeProperties fills properties missing from configured with the bundle
// defaults, keeping the bundle's order.
func mergeProperties(defaults, configured []framework.ConfigurationProperty) []framework.ConfigurationProperty {
	out := make([]framework.ConfigurationProperty, 0, len(defaults)+len(configured))
	seen := make(map[string]struct{}, len(configured))
	for _, d := range defaults {
		idx := slices.IndexFunc(configured, func(p framework.ConfigurationProperty) bool { return p.Name == d.Name })
		if idx < 0 {
			out = append(out, d)
			continue
		}
		out = append(out, configured[idx])
		seen[d.Name] = struct{}{}
	}
	for _, p := range configured {
		if _, ok := seen[p.Name]; !ok {
			out = append(out, p)
		}
	}
	return out
}

func (f *Facade) newConnector(ctx context.Context) (framework.Connector, error) {
	c := f.bundle.New()
	if err := c.Init(ctx, f.init); err != nil {
		c.Dispose()
		return nil, fmt.Errorf("init %s: %w", f.bundle.Key.FullName(), err)
	}
	return c, nil
}

// with runs fn on a pooled or fresh connector. Connectors that fail with
// ErrConnectionFailed are not reused.
func (f *Facade) with(ctx context.Context, op framework.OperationType, fn func(framework.Connector) error) error {
	if !slices.Contains(f.ops, op) {
		return fmt.Errorf("%s: %w", op, framework.ErrUnsupportedOperation)
	}
	if f.pool == nil {
		c, err := f.newConnector(ctx)
		if err != nil {
			return err
		}
		defer c.Dispose()
		return fn(c)
	}
	c, err := f.pool.Borrow(ctx)
	if err != nil {
		return err
	}
	err = fn(c)
	if errors.Is(err, framework.ErrConnectionFailed) {
		f.pool.Invalidate(c)
	} else {
		f.pool.Return(c)
	}
	return err
}

// Warm initializes a connector instance ahead of the first operation so
// configuration errors surface early. Pooled instances stay idle.
func (f *Facade) Warm(ctx context.Context) error {
	if f.pool == nil {
		c, err := f.newConnector(ctx)
		if err != nil {
			return err
		}
		c.Dispose()
		return nil
	}
	c, err := f.pool.Borrow(ctx)
	if err != nil {
		return err
	}
	f.pool.Return(c)
	return nil
}

func (f *Facade) options(opts framework.OperationOptions) framework.OperationOptions {
	if len(f.cfg.DefaultOperationOptions) == 0 {
		return opts
	}
	out := make(framework.OperationOptions, len(f.cfg.DefaultOperationOptions)+len(opts))
	for k, v := range f.cfg.DefaultOperationOptions {
		out[k] = v
	}
	for k, v := range opts {
		out[k] = v
	}
	return out
}

func (f *Facade) SupportedOperations() []framework.OperationType {
	return slices.Clone(f.ops)
}

func (f *Facade) Create(ctx context.Context, oc framework.ObjectClass, attrs []framework.Attribute, opts framework.OperationOptions) (framework.Uid, error) {
	var uid framework.Uid
	err := f.with(ctx, framework.CreateOperation, func(c framework.Connector) error {
		var err error
		uid, err = c.(framework.CreateOp).Create(ctx, oc, attrs, f.options(opts))
		return err
	})
	return uid, err
}

func (f *Facade) Get(ctx context.Context, oc framework.ObjectClass, uid framework.Uid, opts framework.OperationOptions) (framework.ConnectorObject, error) {
	var obj framework.ConnectorObject
	err := f.with(ctx, framework.GetOperation, func(c framework.Connector) error {
		var err error
		obj, err = c.(framework.GetOp).Get(ctx, oc, uid, f.options(opts))
		return err
	})
	return obj, err
}

func (f *Facade) Update(ctx context.Context, oc framework.ObjectClass, uid framework.Uid, attrs []framework.Attribute, opts framework.OperationOptions) (framework.Uid, error) {
	var out framework.Uid
	err := f.with(ctx, framework.UpdateOperation, func(c framework.Connector) error {
		var err error
		out, err = c.(framework.UpdateOp).Update(ctx, oc, uid, attrs, f.options(opts))
		return err
	})
	return out, err
}

func (f *Facade) Delete(ctx context.Context, oc framework.ObjectClass, uid framework.Uid, opts framework.OperationOptions) error {
	return f.with(ctx, framework.DeleteOperation, func(c framework.Connector) error {
		return c.(framework.DeleteOp).Delete(ctx, oc, uid, f.options(opts))
	})
}

func (f *Facade) Schema(ctx context.Context) (framework.Schema, error) {
	var s framework.Schema
	err := f.with(ctx, framework.SchemaOperation, func(c framework.Connector) error {
		var err error
		s, err = c.(framework.SchemaOp).Schema(ctx)
		return err
	})
	return s, err
}

func (f *Facade) Sync(ctx context.Context, oc framework.ObjectClass, token *framework.SyncToken, handler framework.SyncResultsHandler, opts framework.OperationOptions) error {
	return f.with(ctx, framework.SyncOperation, func(c framework.Connector) error {
		return relay(f.cfg.ProducerBufferSize, func(emit func(framework.SyncDelta) bool) error {
			return c.(framework.SyncOp).Sync(ctx, oc, token, emit, f.options(opts))
		}, handler)
	})
}

func (f *Facade) LatestSyncToken(ctx context.Context, oc framework.ObjectClass) (*framework.SyncToken, error) {
	var t *framework.SyncToken
	err := f.with(ctx, framework.SyncOperation, func(c framework.Connector) error {
		var err error
		t, err = c.(framework.SyncOp).LatestSyncToken(ctx, oc)
		return err
	})
	return t, err
}

func (f *Facade) Search(ctx context.Context, oc framework.ObjectClass, filter framework.Filter, handler framework.ResultsHandler, opts framework.OperationOptions) error {
	return f.with(ctx, framework.SearchOperation, func(c framework.Connector) error {
		return relay(f.cfg.ProducerBufferSize, func(emit func(framework.ConnectorObject) bool) error {
			return c.(framework.SearchOp).Search(ctx, oc, filter, emit, f.options(opts))
		}, handler)
	})
}

func (f *Facade) Test(ctx context.Context) error {
	return f.with(ctx, framework.TestOperation, func(c framework.Connector) error {
		return c.(framework.TestOp).Test(ctx)
	})
}

// Close disposes pooled instances.
func (f *Facade) Close() error {
	if f.pool != nil {
		f.pool.Close()
	}
	return nil
}

var _ framework.Facade = (*Facade)(nil)
