package model

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Errors a connector invocation may be matched against with errors.Is,
// whatever runtime executed it.
var (
	// ErrUnsupportedOperation is returned when a capability is invoked that
	// the connector does not expose for the object class.
	ErrUnsupportedOperation = errors.New("operation not supported")
	ErrUnknownUID           = errors.New("unknown uid")
	ErrAlreadyExists        = errors.New("object already exists")
	ErrInvalidCredential    = errors.New("invalid credential")
	ErrConnectionFailed     = errors.New("connection failed")
)

// SyncToken is an opaque resume point. Callers persist it verbatim and never
// interpret its content.
type SyncToken struct {
	value any
}

// NewSyncToken wraps a connector-defined token value.
func NewSyncToken(value any) SyncToken { return SyncToken{value: value} }

// Value returns the wrapped value, for connector implementations and adapters.
func (t SyncToken) Value() any { return t.value }

// IsZero reports whether the token carries no value.
func (t SyncToken) IsZero() bool { return t.value == nil }

// Equal compares the wrapped values.
func (t SyncToken) Equal(o SyncToken) bool { return valueEqual(t.value, o.value) }

type tokenJSON struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON records the value's kind so the token is restored with the same
// Go type it was issued with.
func (t SyncToken) MarshalJSON() ([]byte, error) {
	var (
		kind string
		v    any
	)
	switch x := t.value.(type) {
	case nil:
		return []byte("null"), nil
	case string:
		kind, v = "string", x
	case int:
		kind, v = "int64", int64(x)
	case int64:
		kind, v = "int64", x
	case float64:
		kind, v = "float64", x
	case bool:
		kind, v = "bool", x
	case []byte:
		kind, v = "bytes", base64.StdEncoding.EncodeToString(x)
	case time.Time:
		kind, v = "time", x.Format(time.RFC3339Nano)
	default:
		return nil, fmt.Errorf("sync token: unsupported value type %T", t.value)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(tokenJSON{Kind: kind, Value: raw})
}

func (t *SyncToken) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.value = nil
		return nil
	}
	var env tokenJSON
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	switch env.Kind {
	case "string":
		var s string
		if err := json.Unmarshal(env.Value, &s); err != nil {
			return err
		}
		t.value = s
	case "int64":
		var n int64
		if err := json.Unmarshal(env.Value, &n); err != nil {
			return err
		}
		t.value = n
	case "float64":
		var f float64
		if err := json.Unmarshal(env.Value, &f); err != nil {
			return err
		}
		t.value = f
	case "bool":
		var b bool
		if err := json.Unmarshal(env.Value, &b); err != nil {
			return err
		}
		t.value = b
	case "bytes":
		var s string
		if err := json.Unmarshal(env.Value, &s); err != nil {
			return err
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return err
		}
		t.value = b
	case "time":
		var s string
		if err := json.Unmarshal(env.Value, &s); err != nil {
			return err
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
		t.value = ts
	default:
		return fmt.Errorf("sync token: unknown kind %q", env.Kind)
	}
	return nil
}

// DeltaType is the kind of change reported by a SyncDelta.
type DeltaType string

const (
	DeltaCreate DeltaType = "CREATE"
	DeltaUpdate DeltaType = "UPDATE"
	DeltaDelete DeltaType = "DELETE"
)

// SyncDelta is one change delivered by a sync pass. Object is nil for DELETE
// or when the resource only knows the identifier and class. PreviousUID is set
// only when the change renamed the identifier.
type SyncDelta struct {
	Token       SyncToken
	DeltaType   DeltaType
	UID         Attribute
	PreviousUID *Attribute
	ObjectClass ObjectClass
	Object      *ConnectorObject
}

// Equal compares every field of two deltas.
func (d SyncDelta) Equal(o SyncDelta) bool {
	if !d.Token.Equal(o.Token) || d.DeltaType != o.DeltaType || !d.UID.Equal(o.UID) || d.ObjectClass != o.ObjectClass {
		return false
	}
	if (d.PreviousUID == nil) != (o.PreviousUID == nil) {
		return false
	}
	if d.PreviousUID != nil && !d.PreviousUID.Equal(*o.PreviousUID) {
		return false
	}
	if (d.Object == nil) != (o.Object == nil) {
		return false
	}
	return d.Object == nil || d.Object.Equal(*o.Object)
}

// SyncHandler receives deltas in order. Returning false asks the connector to
// stop issuing further deltas for this call.
type SyncHandler func(SyncDelta) bool

// ResultsHandler receives search results in order. Returning false stops the
// search.
type ResultsHandler func(ConnectorObject) bool
