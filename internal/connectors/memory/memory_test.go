package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/open-sspm/open-idm/internal/connectors/framework"
)

var account = framework.ObjectClass{Type: framework.AccountClass}

func newConnector(t *testing.T) *Connector {
	t.Helper()
	c := &Connector{}
	cfg := framework.Configuration{Properties: []framework.ConfigurationProperty{
		{Name: PropertyDirectory, Values: []any{t.Name()}},
	}}
	if err := c.Init(context.Background(), cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return c
}

func nameAttr(v string) framework.Attribute {
	return framework.Attribute{Name: framework.NameName, Values: []any{v}}
}

func TestCreateGetUpdateDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newConnector(t)
	uid, err := c.Create(ctx, account, []framework.Attribute{nameAttr("alice"), {Name: "email", Values: []any{"alice@example.com"}}}, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if uid.Value != "alice" || uid.Revision != "1" {
		t.Fatalf("Create() = %+v, want alice rev 1", uid)
	}
	if _, err := c.Create(ctx, account, []framework.Attribute{nameAttr("ALICE")}, nil); !errors.Is(err, framework.ErrAlreadyExists) {
		t.Fatalf("Create() duplicate error = %v, want %v", err, framework.ErrAlreadyExists)
	}

	renamed, err := c.Update(ctx, account, uid, []framework.Attribute{nameAttr("alice2")}, nil)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if renamed.Value != "alice2" || renamed.Revision != "2" {
		t.Fatalf("Update() = %+v, want alice2 rev 2", renamed)
	}
	if _, err := c.Get(ctx, account, uid, nil); !errors.Is(err, framework.ErrUnknownUID) {
		t.Fatalf("Get() old uid error = %v, want %v", err, framework.ErrUnknownUID)
	}
	obj, err := c.Get(ctx, account, renamed, nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if a, ok := obj.Attribute("email"); !ok || a.SingleValue() != "alice@example.com" {
		t.Fatalf("Get() email = %+v, want alice@example.com", a)
	}

	if err := c.Delete(ctx, account, renamed, nil); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := c.Delete(ctx, account, renamed, nil); !errors.Is(err, framework.ErrUnknownUID) {
		t.Fatalf("Delete() twice error = %v, want %v", err, framework.ErrUnknownUID)
	}
}

func TestSearchFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newConnector(t)
	for _, n := range []string{"alice", "bob", "alfred"} {
		if _, err := c.Create(ctx, account, []framework.Attribute{nameAttr(n)}, nil); err != nil {
			t.Fatalf("Create(%s) error = %v", n, err)
		}
	}

	tests := []struct {
		name   string
		filter framework.Filter
		want   []string
	}{
		{name: "all", filter: nil, want: []string{"alice", "bob", "alfred"}},
		{name: "starts with", filter: framework.StartsWithFilter{Attribute: nameAttr("al")}, want: []string{"alice", "alfred"}},
		{name: "not", filter: framework.NotFilter{Filter: framework.EqualsFilter{Attribute: nameAttr("bob")}}, want: []string{"alice", "alfred"}},
		{
			name: "and or",
			filter: framework.AndFilter{Filters: []framework.Filter{
				framework.OrFilter{Filters: []framework.Filter{
					framework.EqualsFilter{Attribute: nameAttr("bob")},
					framework.EndsWithFilter{Attribute: nameAttr("red")},
				}},
				framework.LessThanFilter{Attribute: nameAttr("c")},
			}},
			want: []string{"bob", "alfred"},
		},
		{name: "uid", filter: framework.EqualsFilter{Attribute: framework.Attribute{Name: framework.UIDName, Values: []any{"bob"}}}, want: []string{"bob"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			err := c.Search(ctx, account, tt.filter, func(o framework.ConnectorObject) bool {
				got = append(got, o.Uid.Value)
				return true
			}, nil)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Search() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Search() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestSyncResumesFromToken(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newConnector(t)
	uid, _ := c.Create(ctx, account, []framework.Attribute{nameAttr("alice")}, nil)
	if _, err := c.Create(ctx, account, []framework.Attribute{nameAttr("bob")}, nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	var first []framework.SyncDelta
	err := c.Sync(ctx, account, nil, func(d framework.SyncDelta) bool {
		first = append(first, d)
		return false
	}, nil)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if len(first) != 1 || first[0].Uid.Value != "alice" || first[0].DeltaType != framework.DeltaCreate {
		t.Fatalf("Sync() stopped delivery = %+v, want only alice create", first)
	}

	if _, err := c.Update(ctx, account, uid, []framework.Attribute{nameAttr("alice2")}, nil); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	var rest []framework.SyncDelta
	token := first[0].Token
	if err := c.Sync(ctx, account, &token, func(d framework.SyncDelta) bool {
		rest = append(rest, d)
		return true
	}, nil); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if len(rest) != 2 {
		t.Fatalf("Sync() = %d deltas, want 2", len(rest))
	}
	rename := rest[1]
	if rename.PreviousUid == nil || rename.PreviousUid.Value != "alice" || rename.Uid.Value != "alice2" {
		t.Fatalf("Sync() rename delta = %+v, want alice -> alice2", rename)
	}

	latest, err := c.LatestSyncToken(ctx, account)
	if err != nil {
		t.Fatalf("LatestSyncToken() error = %v", err)
	}
	if latest.Value != rename.Token.Value {
		t.Fatalf("LatestSyncToken() = %v, want %v", latest.Value, rename.Token.Value)
	}
}

func TestTestChecksCredential(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	Open(t.Name()).SetCredential(framework.NewGuardedString("pw"))

	c := newConnector(t)
	if err := c.Test(ctx); !errors.Is(err, framework.ErrInvalidCredential) {
		t.Fatalf("Test() error = %v, want %v", err, framework.ErrInvalidCredential)
	}
	c.credential = framework.NewGuardedString("pw")
	if err := c.Test(ctx); err != nil {
		t.Fatalf("Test() error = %v", err)
	}

	Open(t.Name()).SetUnavailable(true)
	if err := c.Test(ctx); !errors.Is(err, framework.ErrConnectionFailed) {
		t.Fatalf("Test() error = %v, want %v", err, framework.ErrConnectionFailed)
	}
}

func TestGetHonoursAttributesToGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newConnector(t)
	uid, _ := c.Create(ctx, account, []framework.Attribute{nameAttr("alice"), {Name: "email", Values: []any{"a@example.com"}}}, nil)
	obj, err := c.Get(ctx, account, uid, framework.OperationOptions{"ATTRS_TO_GET": []any{"email"}})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(obj.Attributes) != 1 || obj.Attributes[0].Name != "email" {
		t.Fatalf("Get() attributes = %+v, want only email", obj.Attributes)
	}
}
