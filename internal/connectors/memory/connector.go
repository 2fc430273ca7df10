package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/open-sspm/open-idm/internal/connectors/framework"
)

// Connector is one configured instance bound to a Directory.
type Connector struct {
	dir        *Directory
	credential *framework.GuardedString
}

func (c *Connector) Init(_ context.Context, cfg framework.Configuration) error {
	name := cfg.String(PropertyDirectory)
	if name == "" {
		return fmt.Errorf("%s is required", PropertyDirectory)
	}
	c.dir = Open(name)
	c.credential = cfg.Guarded(PropertyCredential)
	return nil
}

func (c *Connector) Dispose() {
	c.dir = nil
}

func (c *Connector) CheckAlive(context.Context) error {
	if c.dir == nil {
		return errors.New("connector disposed")
	}
	return c.dir.alive()
}

func (c *Connector) Create(_ context.Context, oc framework.ObjectClass, attrs []framework.Attribute, _ framework.OperationOptions) (framework.Uid, error) {
	return c.dir.create(oc.Type, attrs)
}

func (c *Connector) Get(_ context.Context, oc framework.ObjectClass, uid framework.Uid, opts framework.OperationOptions) (framework.ConnectorObject, error) {
	obj, err := c.dir.get(oc.Type, uid.Value)
	if err != nil {
		return framework.ConnectorObject{}, err
	}
	return project(obj, opts), nil
}

func (c *Connector) Update(_ context.Context, oc framework.ObjectClass, uid framework.Uid, attrs []framework.Attribute, _ framework.OperationOptions) (framework.Uid, error) {
	return c.dir.update(oc.Type, uid.Value, attrs)
}

func (c *Connector) Delete(_ context.Context, oc framework.ObjectClass, uid framework.Uid, _ framework.OperationOptions) error {
	return c.dir.delete(oc.Type, uid.Value)
}

func (c *Connector) Schema(context.Context) (framework.Schema, error) {
	if err := c.dir.alive(); err != nil {
		return framework.Schema{}, err
	}
	return schema(), nil
}

// Sync replays the journal after token. A nil token replays everything.
func (c *Connector) Sync(ctx context.Context, oc framework.ObjectClass, token *framework.SyncToken, handler framework.SyncResultsHandler, opts framework.OperationOptions) error {
	after, err := sequence(token)
	if err != nil {
		return err
	}
	changes, _, err := c.dir.changesAfter(oc.Type, after)
	if err != nil {
		return err
	}
	for _, ch := range changes {
		if err := ctx.Err(); err != nil {
			return err
		}
		delta := framework.SyncDelta{
			Token:       framework.SyncToken{Value: ch.seq},
			DeltaType:   ch.kind,
			Uid:         framework.Uid{Value: ch.uid},
			ObjectClass: framework.ObjectClass{Type: ch.class},
		}
		if ch.previous != "" {
			delta.PreviousUid = &framework.Uid{Value: ch.previous}
		}
		if ch.object != nil {
			obj := project(*ch.object, opts)
			delta.Object = &obj
			delta.Uid = obj.Uid
		}
		if !handler(delta) {
			return nil
		}
	}
	return nil
}

func (c *Connector) LatestSyncToken(_ context.Context, _ framework.ObjectClass) (*framework.SyncToken, error) {
	seq, err := c.dir.latest()
	if err != nil {
		return nil, err
	}
	return &framework.SyncToken{Value: seq}, nil
}

func (c *Connector) Search(ctx context.Context, oc framework.ObjectClass, filter framework.Filter, handler framework.ResultsHandler, opts framework.OperationOptions) error {
	objects, err := c.dir.snapshot(oc.Type)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !matches(filter, obj) {
			continue
		}
		if !handler(project(obj, opts)) {
			return nil
		}
	}
	return nil
}

// Test checks the directory is reachable and, when the instance was
// configured with a credential, that it matches the directory's.
func (c *Connector) Test(context.Context) error {
	if err := c.dir.alive(); err != nil {
		return err
	}
	want := c.dir.Credential()
	if want == nil {
		return nil
	}
	if !want.Equal(c.credential) {
		return framework.ErrInvalidCredential
	}
	return nil
}

func sequence(token *framework.SyncToken) (int64, error) {
	if token == nil || token.Value == nil {
		return 0, nil
	}
	switch v := token.Value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("unexpected sync token %T", token.Value)
	}
}

// project keeps only the attributes listed under ATTRS_TO_GET, when set.
func project(obj framework.ConnectorObject, opts framework.OperationOptions) framework.ConnectorObject {
	var names []string
	switch v := opts["ATTRS_TO_GET"].(type) {
	case []string:
		names = v
	case []any:
		for _, n := range v {
			if s, ok := n.(string); ok {
				names = append(names, s)
			}
		}
	default:
		return obj
	}
	obj.Attributes = slices.DeleteFunc(obj.Attributes, func(a framework.Attribute) bool {
		return !slices.Contains(names, a.Name)
	})
	return obj
}

func schema() framework.Schema {
	account := framework.ObjectClassInfo{
		Type: framework.AccountClass,
		AttributeInfos: []framework.AttributeInfo{
			{Name: framework.NameName, Type: framework.StringType, Flags: framework.FlagRequired},
			{Name: framework.PasswordName, Type: framework.GuardedStringType, Flags: framework.FlagNotReadable | framework.FlagNotReturnedByDefault | framework.FlagOperational},
			{Name: framework.EnableName, Type: framework.BoolType, Flags: framework.FlagOperational},
			{Name: framework.EnableDateName, Type: framework.Int64Type, Flags: framework.FlagOperational},
			{Name: framework.DisableDateName, Type: framework.Int64Type, Flags: framework.FlagOperational},
			{Name: "email", Type: framework.StringType},
			{Name: "displayName", Type: framework.StringType},
			{Name: "groups", Type: framework.StringType, Flags: framework.FlagMultiValued},
		},
	}
	group := framework.ObjectClassInfo{
		Type: framework.GroupClass,
		AttributeInfos: []framework.AttributeInfo{
			{Name: framework.NameName, Type: framework.StringType, Flags: framework.FlagRequired},
			{Name: "description", Type: framework.StringType},
			{Name: "members", Type: framework.StringType, Flags: framework.FlagMultiValued},
		},
	}
	all := []string{framework.AccountClass, framework.GroupClass}
	ops := map[framework.OperationType][]string{}
	for _, op := range []framework.OperationType{
		framework.CreateOperation, framework.GetOperation, framework.UpdateOperation, framework.DeleteOperation,
		framework.SyncOperation, framework.SearchOperation,
	} {
		ops[op] = all
	}
	return framework.Schema{
		ObjectClassInfos:                  []framework.ObjectClassInfo{account, group},
		SupportedObjectClassesByOperation: ops,
	}
}

var (
	_ framework.PoolableConnector = (*Connector)(nil)
	_ framework.CreateOp          = (*Connector)(nil)
	_ framework.GetOp             = (*Connector)(nil)
	_ framework.UpdateOp          = (*Connector)(nil)
	_ framework.DeleteOp          = (*Connector)(nil)
	_ framework.SchemaOp          = (*Connector)(nil)
	_ framework.SyncOp            = (*Connector)(nil)
	_ framework.SearchOp          = (*Connector)(nil)
	_ framework.TestOp            = (*Connector)(nil)
)
