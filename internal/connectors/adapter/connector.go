package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/open-sspm/open-idm/internal/connectors/framework"
	"github.com/open-sspm/open-idm/internal/connectors/model"
	"github.com/open-sspm/open-idm/internal/connectors/spi"
)

// Connector exposes a framework.Facade through the neutral capability
// interfaces. Every call converts its arguments and results at the boundary.
type Connector struct {
	facade framework.Facade
	caps   spi.Capabilities
}

// NewConnector resolves the capabilities of f once.
func NewConnector(f framework.Facade) *Connector {
	c := &Connector{facade: f}
	for _, op := range f.SupportedOperations() {
		switch op {
		case framework.CreateOperation:
			c.caps.Creator = c
		case framework.GetOperation:
			c.caps.Reader = c
		case framework.UpdateOperation:
			c.caps.Updater = c
		case framework.DeleteOperation:
			c.caps.Deleter = c
		case framework.SchemaOperation:
			c.caps.SchemaProvider = c
		case framework.SyncOperation:
			c.caps.Syncer = c
		case framework.SearchOperation:
			c.caps.Searcher = c
		case framework.TestOperation:
			c.caps.Tester = c
		}
	}
	return c
}

// Capabilities returns only the capabilities the underlying connector has.
func (c *Connector) Capabilities() spi.Capabilities { return c.caps }

func (c *Connector) Create(ctx context.Context, oc model.ObjectClass, attrs []model.Attribute, opts model.OperationOptions) (model.Attribute, error) {
	native, err := EncodeAttributes(attrs)
	if err != nil {
		return model.Attribute{}, err
	}
	uid, err := c.facade.Create(ctx, EncodeObjectClass(oc), native, EncodeOptions(opts))
	if err != nil {
		return model.Attribute{}, err
	}
	return DecodeUid(uid), nil
}

func (c *Connector) Read(ctx context.Context, oc model.ObjectClass, uid model.Attribute, opts model.OperationOptions) (model.ConnectorObject, error) {
	nuid, err := EncodeUid(uid)
	if err != nil {
		return model.ConnectorObject{}, err
	}
	obj, err := c.facade.Get(ctx, EncodeObjectClass(oc), nuid, EncodeOptions(opts))
	if err != nil {
		return model.ConnectorObject{}, err
	}
	return DecodeObject(obj)
}

func (c *Connector) Update(ctx context.Context, oc model.ObjectClass, uid model.Attribute, attrs []model.Attribute, opts model.OperationOptions) (model.Attribute, error) {
	nuid, err := EncodeUid(uid)
	if err != nil {
		return model.Attribute{}, err
	}
	native, err := EncodeAttributes(attrs)
	if err != nil {
		return model.Attribute{}, err
	}
	updated, err := c.facade.Update(ctx, EncodeObjectClass(oc), nuid, native, EncodeOptions(opts))
	if err != nil {
		return model.Attribute{}, err
	}
	return DecodeUid(updated), nil
}

func (c *Connector) Delete(ctx context.Context, oc model.ObjectClass, uid model.Attribute, opts model.OperationOptions) error {
	nuid, err := EncodeUid(uid)
	if err != nil {
		return err
	}
	return c.facade.Delete(ctx, EncodeObjectClass(oc), nuid, EncodeOptions(opts))
}

func (c *Connector) Schema(ctx context.Context) (model.Schema, error) {
	s, err := c.facade.Schema(ctx)
	if err != nil {
		return model.Schema{}, err
	}
	return DecodeSchema(s)
}

// Sync stops delivery and returns the conversion error when a delta cannot
// be decoded.
func (c *Connector) Sync(ctx context.Context, oc model.ObjectClass, token model.SyncToken, handler model.SyncHandler, opts model.OperationOptions) error {
	var decodeErr error
	err := c.facade.Sync(ctx, EncodeObjectClass(oc), EncodeSyncToken(token), func(d framework.SyncDelta) bool {
		delta, err := DecodeSyncDelta(d)
		if err != nil {
			decodeErr = fmt.Errorf("decode sync delta: %w", err)
			return false
		}
		return handler(delta)
	}, EncodeOptions(opts))
	return errors.Join(err, decodeErr)
}

func (c *Connector) LatestSyncToken(ctx context.Context, oc model.ObjectClass) (model.SyncToken, error) {
	t, err := c.facade.LatestSyncToken(ctx, EncodeObjectClass(oc))
	if err != nil {
		return model.SyncToken{}, err
	}
	return DecodeSyncToken(t), nil
}

func (c *Connector) Search(ctx context.Context, oc model.ObjectClass, filter model.Filter, handler model.ResultsHandler, opts model.OperationOptions) error {
	nf, err := EncodeFilter(filter)
	if err != nil {
		return err
	}
	var decodeErr error
	err = c.facade.Search(ctx, EncodeObjectClass(oc), nf, func(o framework.ConnectorObject) bool {
		obj, err := DecodeObject(o)
		if err != nil {
			decodeErr = fmt.Errorf("decode search result: %w", err)
			return false
		}
		return handler(obj)
	}, EncodeOptions(opts))
	return errors.Join(err, decodeErr)
}

func (c *Connector) Test(ctx context.Context) error {
	return c.facade.Test(ctx)
}

// Close releases the underlying facade.
func (c *Connector) Close() error {
	return c.facade.Close()
}
