package facade

import (
	"context"
	"sync"
	"time"

	"github.com/open-sspm/open-idm/internal/connectors/adapter"
	"github.com/open-sspm/open-idm/internal/connectors/model"
	"github.com/open-sspm/open-idm/internal/connectors/spi"
	"github.com/open-sspm/open-idm/internal/metrics"
)

const locationLocal = "local"

// Connector is a resolved connector instance. Every call is timed, counted
// and, on failure, wrapped in an InvocationError.
type Connector struct {
	key      string
	host     string
	cacheKey string
	inner    *adapter.Connector
	caps     spi.Capabilities

	schemaMu sync.Mutex
	schema   *model.Schema
}

func newConnector(key, host string, inner *adapter.Connector) *Connector {
	c := &Connector{key: key, host: host, inner: inner}
	in := inner.Capabilities()
	if in.Creator != nil {
		c.caps.Creator = c
	}
	if in.Reader != nil {
		c.caps.Reader = c
	}
	if in.Updater != nil {
		c.caps.Updater = c
	}
	if in.Deleter != nil {
		c.caps.Deleter = c
	}
	if in.SchemaProvider != nil {
		c.caps.SchemaProvider = c
	}
	if in.Syncer != nil {
		c.caps.Syncer = c
	}
	if in.Searcher != nil {
		c.caps.Searcher = c
	}
	if in.Tester != nil {
		c.caps.Tester = c
	}
	return c
}

// Key is the full name of the connector key.
func (c *Connector) Key() string { return c.key }

// Host is empty for in-process instances.
func (c *Connector) Host() string { return c.host }

func (c *Connector) Capabilities() spi.Capabilities { return c.caps }

func (c *Connector) location() string {
	if c.host == "" {
		return locationLocal
	}
	return c.host
}

func (c *Connector) invoke(op model.Operation, fn func() error) error {
	start := time.Now()
	err := fn()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ConnectorOperationDuration.WithLabelValues(c.key, string(op), c.location()).Observe(time.Since(start).Seconds())
	metrics.ConnectorOperationsTotal.WithLabelValues(c.key, string(op), c.location(), status).Inc()
	if err != nil {
		return &InvocationError{Op: op, Key: c.key, Host: c.host, Err: err}
	}
	return nil
}

// Guard checks op against the capabilities and, when the connector exposes
// a schema, against the classes the schema advertises for op. The schema is
// fetched once per instance.
func (c *Connector) Guard(ctx context.Context, op model.Operation, objectType string) error {
	if !c.caps.Supports(op) {
		return c.caps.Guard(op, nil, objectType)
	}
	if c.caps.SchemaProvider == nil {
		return nil
	}
	schema, err := c.cachedSchema(ctx)
	if err != nil {
		return err
	}
	return c.caps.Guard(op, &schema, objectType)
}

func (c *Connector) cachedSchema(ctx context.Context) (model.Schema, error) {
	c.schemaMu.Lock()
	defer c.schemaMu.Unlock()
	if c.schema != nil {
		return *c.schema, nil
	}
	s, err := c.Schema(ctx)
	if err != nil {
		return model.Schema{}, err
	}
	c.schema = &s
	return s, nil
}

func (c *Connector) Create(ctx context.Context, oc model.ObjectClass, attrs []model.Attribute, opts model.OperationOptions) (model.Attribute, error) {
	var uid model.Attribute
	err := c.invoke(model.OpCreate, func() error {
		var err error
		uid, err = c.inner.Create(ctx, oc, attrs, opts)
		return err
	})
	return uid, err
}

func (c *Connector) Read(ctx context.Context, oc model.ObjectClass, uid model.Attribute, opts model.OperationOptions) (model.ConnectorObject, error) {
	var obj model.ConnectorObject
	err := c.invoke(model.OpRead, func() error {
		var err error
		obj, err = c.inner.Read(ctx, oc, uid, opts)
		return err
	})
	return obj, err
}

// Update returns the identifier after the update, which differs from uid
// when the resource renamed the object.
func (c *Connector) Update(ctx context.Context, oc model.ObjectClass, uid model.Attribute, attrs []model.Attribute, opts model.OperationOptions) (model.Attribute, error) {
	var out model.Attribute
	err := c.invoke(model.OpUpdate, func() error {
		var err error
		out, err = c.inner.Update(ctx, oc, uid, attrs, opts)
		return err
	})
	return out, err
}

func (c *Connector) Delete(ctx context.Context, oc model.ObjectClass, uid model.Attribute, opts model.OperationOptions) error {
	return c.invoke(model.OpDelete, func() error {
		return c.inner.Delete(ctx, oc, uid, opts)
	})
}

func (c *Connector) Schema(ctx context.Context) (model.Schema, error) {
	var s model.Schema
	err := c.invoke(model.OpSchema, func() error {
		var err error
		s, err = c.inner.Schema(ctx)
		return err
	})
	return s, err
}

func (c *Connector) Sync(ctx context.Context, oc model.ObjectClass, token model.SyncToken, handler model.SyncHandler, opts model.OperationOptions) error {
	return c.invoke(model.OpSync, func() error {
		return c.inner.Sync(ctx, oc, token, handler, opts)
	})
}

func (c *Connector) LatestSyncToken(ctx context.Context, oc model.ObjectClass) (model.SyncToken, error) {
	var t model.SyncToken
	err := c.invoke(model.OpSync, func() error {
		var err error
		t, err = c.inner.LatestSyncToken(ctx, oc)
		return err
	})
	return t, err
}

func (c *Connector) Search(ctx context.Context, oc model.ObjectClass, filter model.Filter, handler model.ResultsHandler, opts model.OperationOptions) error {
	return c.invoke(model.OpSearch, func() error {
		return c.inner.Search(ctx, oc, filter, handler, opts)
	})
}

func (c *Connector) Test(ctx context.Context) error {
	return c.invoke(model.OpTest, func() error {
		return c.inner.Test(ctx)
	})
}

func (c *Connector) close() error {
	return c.inner.Close()
}
