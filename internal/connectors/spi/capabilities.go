// Package spi defines the optional capabilities a connector may expose. A
// connector advertises a capability by implementing its interface; callers
// resolve the set once with Resolve and check it before invoking.
package spi

import (
	"context"
	"fmt"

	"github.com/open-sspm/open-idm/internal/connectors/model"
)

// Creator creates objects. The returned identifier is the one assigned by the
// resource.
type Creator interface {
	Create(ctx context.Context, oc model.ObjectClass, attrs []model.Attribute, opts model.OperationOptions) (model.Attribute, error)
}

// Reader fetches one object by identifier.
type Reader interface {
	Read(ctx context.Context, oc model.ObjectClass, uid model.Attribute, opts model.OperationOptions) (model.ConnectorObject, error)
}

// Updater replaces the given attributes of an object. The returned identifier
// may differ from uid when the resource renamed the object; callers must
// propagate it to their stored records.
type Updater interface {
	Update(ctx context.Context, oc model.ObjectClass, uid model.Attribute, attrs []model.Attribute, opts model.OperationOptions) (model.Attribute, error)
}

// Deleter removes an object.
type Deleter interface {
	Delete(ctx context.Context, oc model.ObjectClass, uid model.Attribute, opts model.OperationOptions) error
}

// SchemaProvider describes what the resource exposes.
type SchemaProvider interface {
	Schema(ctx context.Context) (model.Schema, error)
}

// Syncer delivers the changes since token to handler. The call blocks until
// every change available at invocation time has been delivered or handler
// returned false. A zero token requests a full initial sync.
type Syncer interface {
	Sync(ctx context.Context, oc model.ObjectClass, token model.SyncToken, handler model.SyncHandler, opts model.OperationOptions) error
	LatestSyncToken(ctx context.Context, oc model.ObjectClass) (model.SyncToken, error)
}

// Searcher streams the objects matching filter to handler. A nil filter
// matches every object of the class.
type Searcher interface {
	Search(ctx context.Context, oc model.ObjectClass, filter model.Filter, handler model.ResultsHandler, opts model.OperationOptions) error
}

// Tester checks that the configured instance can reach its resource.
type Tester interface {
	Test(ctx context.Context) error
}

// Capabilities is the resolved capability set of one connector instance. A
// nil field means the capability is absent.
type Capabilities struct {
	Creator        Creator
	Reader         Reader
	Updater        Updater
	Deleter        Deleter
	SchemaProvider SchemaProvider
	Syncer         Syncer
	Searcher       Searcher
	Tester         Tester
}

// Resolve inspects c once and records every capability it implements.
func Resolve(c any) Capabilities {
	var caps Capabilities
	caps.Creator, _ = c.(Creator)
	caps.Reader, _ = c.(Reader)
	caps.Updater, _ = c.(Updater)
	caps.Deleter, _ = c.(Deleter)
	caps.SchemaProvider, _ = c.(SchemaProvider)
	caps.Syncer, _ = c.(Syncer)
	caps.Searcher, _ = c.(Searcher)
	caps.Tester, _ = c.(Tester)
	return caps
}

// Supports reports whether the capability backing op is present.
func (c Capabilities) Supports(op model.Operation) bool {
	switch op {
	case model.OpCreate:
		return c.Creator != nil
	case model.OpRead:
		return c.Reader != nil
	case model.OpUpdate:
		return c.Updater != nil
	case model.OpDelete:
		return c.Deleter != nil
	case model.OpSchema:
		return c.SchemaProvider != nil
	case model.OpSync:
		return c.Syncer != nil
	case model.OpSearch:
		return c.Searcher != nil
	case model.OpTest:
		return c.Tester != nil
	default:
		return false
	}
}

// Operations lists the supported operations in model.AllOperations order.
func (c Capabilities) Operations() []model.Operation {
	var out []model.Operation
	for _, op := range model.AllOperations {
		if c.Supports(op) {
			out = append(out, op)
		}
	}
	return out
}

// Guard rejects op when the capability is absent or, if schema is non-nil,
// when the schema does not advertise op for the object class. Schema and test
// are class independent and only need the capability.
func (c Capabilities) Guard(op model.Operation, schema *model.Schema, objectType string) error {
	if !c.Supports(op) {
		return fmt.Errorf("%s: %w", op, model.ErrUnsupportedOperation)
	}
	if schema == nil || op == model.OpSchema || op == model.OpTest {
		return nil
	}
	return schema.Guard(op, objectType)
}
