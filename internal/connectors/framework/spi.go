package framework

import (
	"context"
	"errors"
)

var (
	ErrUnknownUID           = errors.New("unknown uid")
	ErrAlreadyExists        = errors.New("object already exists")
	ErrUnsupportedOperation = errors.New("operation not supported by connector")
	ErrInvalidCredential    = errors.New("invalid credential")
	ErrConnectionFailed     = errors.New("connection failed")
)

// Connector is implemented by every connector. Init is called once per
// instance before any operation; Dispose releases its resources.
type Connector interface {
	Init(ctx context.Context, cfg Configuration) error
	Dispose()
}

// PoolableConnector instances are kept warm between calls. CheckAlive is
// run before an idle instance is handed out again.
type PoolableConnector interface {
	Connector
	CheckAlive(ctx context.Context) error
}

type CreateOp interface {
	Create(ctx context.Context, oc ObjectClass, attrs []Attribute, opts OperationOptions) (Uid, error)
}

// GetOp returns ErrUnknownUID when the object does not exist.
type GetOp interface {
	Get(ctx context.Context, oc ObjectClass, uid Uid, opts OperationOptions) (ConnectorObject, error)
}

type UpdateOp interface {
	Update(ctx context.Context, oc ObjectClass, uid Uid, attrs []Attribute, opts OperationOptions) (Uid, error)
}

type DeleteOp interface {
	Delete(ctx context.Context, oc ObjectClass, uid Uid, opts OperationOptions) error
}

type SchemaOp interface {
	Schema(ctx context.Context) (Schema, error)
}

// SyncOp delivers the changes after token, or every object when token is nil.
type SyncOp interface {
	Sync(ctx context.Context, oc ObjectClass, token *SyncToken, handler SyncResultsHandler, opts OperationOptions) error
	LatestSyncToken(ctx context.Context, oc ObjectClass) (*SyncToken, error)
}

type SearchOp interface {
	Search(ctx context.Context, oc ObjectClass, filter Filter, handler ResultsHandler, opts OperationOptions) error
}

type TestOp interface {
	Test(ctx context.Context) error
}

// SupportedOperations lists the operations c implements.
func SupportedOperations(c Connector) []OperationType {
	var ops []OperationType
	if _, ok := c.(CreateOp); ok {
		ops = append(ops, CreateOperation)
	}
	if _, ok := c.(GetOp); ok {
		ops = append(ops, GetOperation)
	}
	if _, ok := c.(UpdateOp); ok {
		ops = append(ops, UpdateOperation)
	}
	if _, ok := c.(DeleteOp); ok {
		ops = append(ops, DeleteOperation)
	}
	if _, ok := c.(SchemaOp); ok {
		ops = append(ops, SchemaOperation)
	}
	if _, ok := c.(SyncOp); ok {
		ops = append(ops, SyncOperation)
	}
	if _, ok := c.(SearchOp); ok {
		ops = append(ops, SearchOperation)
	}
	if _, ok := c.(TestOp); ok {
		ops = append(ops, TestOperation)
	}
	return ops
}

// Bundle is an independently packaged connector implementation.
type Bundle struct {
	Key         ConnectorKey
	DisplayName string
	// ConfigurationProperties lists the properties in display order, with
	// default values where the connector has one.
	ConfigurationProperties []ConfigurationProperty
	// Operations lists what instances of the connector implement.
	Operations []OperationType
	New        func() Connector
}

// Facade runs operations against one configured connector, wherever it
// executes. Operations the connector lacks return ErrUnsupportedOperation.
type Facade interface {
	SupportedOperations() []OperationType
	Create(ctx context.Context, oc ObjectClass, attrs []Attribute, opts OperationOptions) (Uid, error)
	Get(ctx context.Context, oc ObjectClass, uid Uid, opts OperationOptions) (ConnectorObject, error)
	Update(ctx context.Context, oc ObjectClass, uid Uid, attrs []Attribute, opts OperationOptions) (Uid, error)
	Delete(ctx context.Context, oc ObjectClass, uid Uid, opts OperationOptions) error
	Schema(ctx context.Context) (Schema, error)
	Sync(ctx context.Context, oc ObjectClass, token *SyncToken, handler SyncResultsHandler, opts OperationOptions) error
	LatestSyncToken(ctx context.Context, oc ObjectClass) (*SyncToken, error)
	Search(ctx context.Context, oc ObjectClass, filter Filter, handler ResultsHandler, opts OperationOptions) error
	Test(ctx context.Context) error
	Close() error
}
