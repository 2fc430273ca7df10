package local

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/open-sspm/open-idm/internal/connectors/framework"
	"github.com/open-sspm/open-idm/internal/connectors/memory"
)

var account = framework.ObjectClass{Type: framework.AccountClass}

type countingConnector struct {
	*memory.Connector
	inits    *atomic.Int64
	disposes *atomic.Int64
}

func (c *countingConnector) Init(ctx context.Context, cfg framework.Configuration) error {
	c.inits.Add(1)
	return c.Connector.Init(ctx, cfg)
}

func (c *countingConnector) Dispose() {
	c.disposes.Add(1)
	c.Connector.Dispose()
}

func countingBundle(inits, disposes *atomic.Int64) framework.Bundle {
	b := memory.Bundle()
	b.New = func() framework.Connector {
		return &countingConnector{Connector: &memory.Connector{}, inits: inits, disposes: disposes}
	}
	return b
}

func directory(name string) framework.ConfigurationProperty {
	return framework.ConfigurationProperty{Name: memory.PropertyDirectory, Values: []any{name}}
}

func TestPooledFacadeReusesInstances(t *testing.T) {
	t.Parallel()

	var inits, disposes atomic.Int64
	f, err := NewFacade(countingBundle(&inits, &disposes), framework.APIConfiguration{
		Properties:                []framework.ConfigurationProperty{directory(t.Name())},
		ConnectorPoolingSupported: true,
		PoolConfiguration:         &framework.ObjectPoolConfiguration{MaxObjects: 2, MaxIdle: 2, MaxWait: time.Second},
	}, "")
	if err != nil {
		t.Fatalf("NewFacade() error = %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := f.Test(ctx); err != nil {
			t.Fatalf("Test() error = %v", err)
		}
	}
	if got := inits.Load(); got != 1 {
		t.Fatalf("inits = %d, want 1", got)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := disposes.Load(); got != 1 {
		t.Fatalf("disposes = %d, want 1", got)
	}
}

func TestUnpooledFacadeDisposesPerCall(t *testing.T) {
	t.Parallel()

	var inits, disposes atomic.Int64
	f, err := NewFacade(countingBundle(&inits, &disposes), framework.APIConfiguration{
		Properties: []framework.ConfigurationProperty{directory(t.Name())},
	}, "")
	if err != nil {
		t.Fatalf("NewFacade() error = %v", err)
	}
	defer f.Close()

	ctx := context.Background()
	if _, err := f.Create(ctx, account, []framework.Attribute{{Name: framework.NameName, Values: []any{"alice"}}}, nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := f.Get(ctx, account, framework.Uid{Value: "alice"}, nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if inits.Load() != 2 || disposes.Load() != 2 {
		t.Fatalf("inits, disposes = %d, %d, want 2, 2", inits.Load(), disposes.Load())
	}
}

func TestConnectionFailureInvalidatesInstance(t *testing.T) {
	t.Parallel()

	var inits, disposes atomic.Int64
	f, err := NewFacade(countingBundle(&inits, &disposes), framework.APIConfiguration{
		Properties:                []framework.ConfigurationProperty{directory(t.Name())},
		ConnectorPoolingSupported: true,
	}, "")
	if err != nil {
		t.Fatalf("NewFacade() error = %v", err)
	}
	defer f.Close()

	ctx := context.Background()
	dir := memory.Open(t.Name())
	dir.SetUnavailable(true)
	if err := f.Test(ctx); !errors.Is(err, framework.ErrConnectionFailed) {
		t.Fatalf("Test() error = %v, want %v", err, framework.ErrConnectionFailed)
	}
	if got := disposes.Load(); got != 1 {
		t.Fatalf("disposes = %d, want 1", got)
	}
	dir.SetUnavailable(false)
	if err := f.Test(ctx); err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	if got := inits.Load(); got != 2 {
		t.Fatalf("inits = %d, want 2", got)
	}
}

// searchOnly exposes Search and nothing else of memory.Connector.
type searchOnly struct {
	inner *memory.Connector
}

func (s *searchOnly) Init(ctx context.Context, cfg framework.Configuration) error {
	return s.inner.Init(ctx, cfg)
}
func (s *searchOnly) Dispose() { s.inner.Dispose() }
func (s *searchOnly) Search(ctx context.Context, oc framework.ObjectClass, f framework.Filter, h framework.ResultsHandler, o framework.OperationOptions) error {
	return s.inner.Search(ctx, oc, f, h, o)
}

func TestUnsupportedOperation(t *testing.T) {
	t.Parallel()

	b := memory.Bundle()
	b.New = func() framework.Connector { return &searchOnly{inner: &memory.Connector{}} }
	f, err := NewFacade(b, framework.APIConfiguration{Properties: []framework.ConfigurationProperty{directory(t.Name())}}, "")
	if err != nil {
		t.Fatalf("NewFacade() error = %v", err)
	}
	defer f.Close()

	if ops := f.SupportedOperations(); len(ops) != 1 || ops[0] != framework.SearchOperation {
		t.Fatalf("SupportedOperations() = %v, want [%s]", ops, framework.SearchOperation)
	}
	if err := f.Delete(context.Background(), account, framework.Uid{Value: "x"}, nil); !errors.Is(err, framework.ErrUnsupportedOperation) {
		t.Fatalf("Delete() error = %v, want %v", err, framework.ErrUnsupportedOperation)
	}
}

func TestBufferedSearchStopsOnHandlerFalse(t *testing.T) {
	t.Parallel()

	dir := memory.Open(t.Name())
	for _, n := range []string{"a", "b", "c", "d", "e"} {
		dir.Seed(framework.AccountClass, n, []framework.Attribute{{Name: framework.NameName, Values: []any{n}}})
	}
	f, err := NewFacade(memory.Bundle(), framework.APIConfiguration{
		Properties:         []framework.ConfigurationProperty{directory(t.Name())},
		ProducerBufferSize: 2,
	}, "")
	if err != nil {
		t.Fatalf("NewFacade() error = %v", err)
	}
	defer f.Close()

	var seen []string
	err = f.Search(context.Background(), account, nil, func(o framework.ConnectorObject) bool {
		seen = append(seen, o.Uid.Value)
		return len(seen) < 2
	}, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(seen) != 2 || seen[0] != "a" || seen[1] != "b" {
		t.Fatalf("Search() delivered %v, want [a b]", seen)
	}
}

func TestBundleDefaultsFillMissingProperties(t *testing.T) {
	t.Parallel()

	got := mergeProperties(
		[]framework.ConfigurationProperty{
			{Name: "directory", Values: []any{"default"}},
			{Name: "credential"},
		},
		[]framework.ConfigurationProperty{
			{Name: "credential", Values: []any{"x"}},
			{Name: "extra", Values: []any{true}},
		},
	)
	if len(got) != 3 {
		t.Fatalf("mergeProperties() = %+v, want 3 properties", got)
	}
	if got[0].Values[0] != "default" || got[1].Values[0] != "x" || got[2].Name != "extra" {
		t.Fatalf("mergeProperties() = %+v", got)
	}
}
