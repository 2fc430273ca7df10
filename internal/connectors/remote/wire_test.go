package remote

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/open-sspm/open-idm/internal/connectors/framework"
)

func TestValueRoundTrip(t *testing.T) {
	t.Parallel()

	when := time.Date(2024, 3, 1, 12, 30, 0, 500, time.UTC)
	tests := []struct {
		name string
		in   any
		want any
	}{
		{name: "nil", in: nil, want: nil},
		{name: "string", in: "alice", want: "alice"},
		{name: "int widens", in: 7, want: int64(7)},
		{name: "int64", in: int64(1) << 40, want: int64(1) << 40},
		{name: "float", in: 1.5, want: 1.5},
		{name: "bool", in: true, want: true},
		{name: "bytes", in: []byte{0, 1, 2}, want: []byte{0, 1, 2}},
		{name: "strings become list", in: []string{"a", "b"}, want: []any{"a", "b"}},
		{name: "nested list", in: []any{int64(1), []any{"x"}}, want: []any{int64(1), []any{"x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w, err := encodeValue(tt.in)
			if err != nil {
				t.Fatalf("encodeValue() error = %v", err)
			}
			got, err := decodeValue(w)
			if err != nil {
				t.Fatalf("decodeValue() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("round trip = %#v, want %#v", got, tt.want)
			}
		})
	}

	t.Run("time", func(t *testing.T) {
		t.Parallel()
		w, err := encodeValue(when)
		if err != nil {
			t.Fatalf("encodeValue() error = %v", err)
		}
		got, err := decodeValue(w)
		if err != nil {
			t.Fatalf("decodeValue() error = %v", err)
		}
		if ts, ok := got.(time.Time); !ok || !ts.Equal(when) {
			t.Fatalf("round trip = %v, want %v", got, when)
		}
	})

	t.Run("guarded", func(t *testing.T) {
		t.Parallel()
		w, err := encodeValue(framework.NewGuardedString("pw"))
		if err != nil {
			t.Fatalf("encodeValue() error = %v", err)
		}
		got, err := decodeValue(w)
		if err != nil {
			t.Fatalf("decodeValue() error = %v", err)
		}
		g, ok := got.(*framework.GuardedString)
		if !ok {
			t.Fatalf("round trip type = %T, want *GuardedString", got)
		}
		if clear, _ := g.Reveal(); clear != "pw" {
			t.Fatalf("round trip clear = %q, want pw", clear)
		}
	})
}

func TestEncodeValueRejectsUnknownTypes(t *testing.T) {
	t.Parallel()

	if _, err := encodeValue(struct{}{}); err == nil {
		t.Fatalf("encodeValue(struct{}) error = nil, want error")
	}
	if _, err := decodeValue(wireValue{Kind: "nope"}); err == nil {
		t.Fatalf("decodeValue(nope) error = nil, want error")
	}
}

func TestValuesKeepNil(t *testing.T) {
	t.Parallel()

	w, err := encodeValues(nil)
	if err != nil || w != nil {
		t.Fatalf("encodeValues(nil) = %v, %v; want nil, nil", w, err)
	}
	got, err := decodeValues([]wireValue{})
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("decodeValues(empty) = %#v, %v; want empty non-nil", got, err)
	}
}

func leaf(name string, v any) framework.Attribute {
	return framework.Attribute{Name: name, Values: []any{v}}
}

func TestFilterRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   framework.Filter
	}{
		{name: "nil", in: nil},
		{name: "leaf", in: framework.EqualsFilter{Attribute: leaf("email", "a@example.com")}},
		{name: "composite", in: framework.AndFilter{Filters: []framework.Filter{
			framework.StartsWithFilter{Attribute: leaf("name", "al")},
			framework.NotFilter{Filter: framework.OrFilter{Filters: []framework.Filter{
				framework.GreaterThanFilter{Attribute: leaf("age", int64(30))},
				framework.ContainsAllValuesFilter{Attribute: framework.Attribute{Name: "groups", Values: []any{"a", "b"}}},
			}}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			nodes, err := encodeFilter(tt.in)
			if err != nil {
				t.Fatalf("encodeFilter() error = %v", err)
			}
			got, err := decodeFilter(nodes)
			if err != nil {
				t.Fatalf("decodeFilter() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.in) {
				t.Fatalf("round trip = %#v, want %#v", got, tt.in)
			}
		})
	}
}

func TestDeepFilterStaysFlat(t *testing.T) {
	t.Parallel()

	var f framework.Filter = framework.EqualsFilter{Attribute: leaf("name", "x")}
	const depth = 20000
	for i := 0; i < depth; i++ {
		f = framework.NotFilter{Filter: f}
	}
	nodes, err := encodeFilter(f)
	if err != nil {
		t.Fatalf("encodeFilter() error = %v", err)
	}
	if len(nodes) != depth+1 {
		t.Fatalf("encodeFilter() nodes = %d, want %d", len(nodes), depth+1)
	}
	b, err := json.Marshal(opRequest{Filter: nodes})
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	var req opRequest
	if err := json.NewDecoder(bytes.NewReader(b)).Decode(&req); err != nil {
		t.Fatalf("json decode error = %v", err)
	}
	got, err := decodeFilter(req.Filter)
	if err != nil {
		t.Fatalf("decodeFilter() error = %v", err)
	}
	for i := 0; i < depth; i++ {
		n, ok := got.(framework.NotFilter)
		if !ok {
			t.Fatalf("level %d = %T, want NotFilter", i, got)
		}
		got = n.Filter
	}
	if _, ok := got.(framework.EqualsFilter); !ok {
		t.Fatalf("innermost = %T, want EqualsFilter", got)
	}
}

func TestDecodeFilterRejectsMalformed(t *testing.T) {
	t.Parallel()

	bad := [][]wireFilterNode{
		{{Op: opAnd, Children: 2}},
		{{Op: opEquals}},
		{{Op: "between", Attribute: &wireAttribute{Name: "x"}}},
	}
	for i, nodes := range bad {
		if _, err := decodeFilter(nodes); err == nil {
			t.Fatalf("decodeFilter(case %d) error = nil, want error", i)
		}
	}
}

func TestSyncDeltaRoundTrip(t *testing.T) {
	t.Parallel()

	obj := framework.ConnectorObject{
		ObjectClass: framework.ObjectClass{Type: framework.AccountClass},
		Uid:         framework.Uid{Value: "bob", Revision: "3"},
		Attributes:  []framework.Attribute{{Name: framework.NameName, Values: []any{"bob"}}},
	}
	in := framework.SyncDelta{
		Token:       framework.SyncToken{Value: int64(42)},
		DeltaType:   framework.DeltaUpdate,
		Uid:         obj.Uid,
		PreviousUid: &framework.Uid{Value: "robert"},
		ObjectClass: obj.ObjectClass,
		Object:      &obj,
	}
	w, err := encodeSyncDelta(in)
	if err != nil {
		t.Fatalf("encodeSyncDelta() error = %v", err)
	}
	got, err := decodeSyncDelta(w)
	if err != nil {
		t.Fatalf("decodeSyncDelta() error = %v", err)
	}
	if !reflect.DeepEqual(got, in) {
		t.Fatalf("round trip = %#v, want %#v", got, in)
	}
}

func TestSchemaRoundTrip(t *testing.T) {
	t.Parallel()

	in := framework.Schema{
		ObjectClassInfos: []framework.ObjectClassInfo{{
			Type: framework.AccountClass,
			AttributeInfos: []framework.AttributeInfo{
				{Name: framework.NameName, Type: framework.StringType, Flags: framework.FlagRequired},
				{Name: framework.PasswordName, Type: framework.GuardedStringType, Flags: framework.FlagNotReadable | framework.FlagOperational},
				{Name: "groups", Type: framework.StringType, Flags: framework.FlagMultiValued},
			},
		}},
		SupportedObjectClassesByOperation: map[framework.OperationType][]string{
			framework.SyncOperation: {framework.AccountClass},
		},
	}
	w, err := encodeSchema(in)
	if err != nil {
		t.Fatalf("encodeSchema() error = %v", err)
	}
	b, err := json.Marshal(w)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	var back wireSchema
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	got, err := decodeSchema(back)
	if err != nil {
		t.Fatalf("decodeSchema() error = %v", err)
	}
	if !reflect.DeepEqual(got, in) {
		t.Fatalf("round trip = %#v, want %#v", got, in)
	}
}

func TestWireErrorKeepsSentinel(t *testing.T) {
	t.Parallel()

	for _, k := range errorKinds {
		w, status := toWireError(k.err)
		if status != k.status || w.Kind != k.kind {
			t.Fatalf("toWireError(%v) = %s/%d, want %s/%d", k.err, w.Kind, status, k.kind, k.status)
		}
		if err := fromWireError(w); !errors.Is(err, k.err) {
			t.Fatalf("fromWireError(%s) = %v, want %v", w.Kind, err, k.err)
		}
	}
}
