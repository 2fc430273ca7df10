// Package model is the resource-agnostic attribute, object, schema, filter and
// sync model exchanged between the platform and connector implementations.
//
// Every value in this package is immutable after construction and safe to share
// between goroutines.
package model

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"
)

var (
	// ErrMultiValued is returned by Attribute.Value when the attribute holds a value list.
	ErrMultiValued = errors.New("attribute is multi-valued")
	// ErrSingleValued is returned by Attribute.Values when the attribute holds a single value.
	ErrSingleValued = errors.New("attribute is single-valued")
)

// Tag marks an attribute with a capability facet. Tags are orthogonal: the
// framework adapter inspects them to route an attribute through the runtime's
// special-cased native names.
type Tag uint8

const (
	TagIdentifier Tag = 1 << iota
	TagSecret
	TagEnabledState
	TagLoginName
)

func (t Tag) String() string {
	var parts []string
	if t&TagIdentifier != 0 {
		parts = append(parts, "identifier")
	}
	if t&TagSecret != 0 {
		parts = append(parts, "secret")
	}
	if t&TagEnabledState != 0 {
		parts = append(parts, "enabled_state")
	}
	if t&TagLoginName != 0 {
		parts = append(parts, "login_name")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Attribute is a named, possibly multi-valued attribute. Callers must check
// IsMultiValue before choosing Value or Values; reading the wrong accessor is
// rejected with an error.
type Attribute struct {
	name     string
	multi    bool
	value    any
	values   []any
	tags     Tag
	revision string
}

// Single builds a single-valued attribute. A nil value is allowed and means
// "no value".
func Single(name string, value any) Attribute {
	return Attribute{name: name, value: value}
}

// Multi builds a multi-valued attribute. The value order is preserved.
func Multi(name string, values ...any) Attribute {
	out := make([]any, len(values))
	copy(out, values)
	return Attribute{name: name, multi: true, values: out}
}

// Identifier builds the identifier attribute of an object. Revision is the
// opaque optimistic-concurrency token and may be empty.
func Identifier(name, uid, revision string) Attribute {
	return Attribute{name: name, value: uid, tags: TagIdentifier, revision: revision}
}

// LoginName builds the login-name attribute of an object.
func LoginName(name, value string) Attribute {
	return Attribute{name: name, value: value, tags: TagLoginName}
}

// SecretAttribute builds the secret (password) attribute of an object.
func SecretAttribute(name string, secret Secret) Attribute {
	return Attribute{name: name, value: secret, tags: TagSecret}
}

// EnabledState is the value of the logical enabled-state attribute. Each facet
// is optional; only the facets present are exchanged with a resource.
type EnabledState struct {
	Enabled    *bool
	EnabledAt  *time.Time
	DisabledAt *time.Time
}

// IsZero reports whether no facet is set.
func (s EnabledState) IsZero() bool {
	return s.Enabled == nil && s.EnabledAt == nil && s.DisabledAt == nil
}

// Equal compares facet presence and values.
func (s EnabledState) Equal(o EnabledState) bool {
	if (s.Enabled == nil) != (o.Enabled == nil) || (s.Enabled != nil && *s.Enabled != *o.Enabled) {
		return false
	}
	if (s.EnabledAt == nil) != (o.EnabledAt == nil) || (s.EnabledAt != nil && !s.EnabledAt.Equal(*o.EnabledAt)) {
		return false
	}
	if (s.DisabledAt == nil) != (o.DisabledAt == nil) || (s.DisabledAt != nil && !s.DisabledAt.Equal(*o.DisabledAt)) {
		return false
	}
	return true
}

// Enabled builds the enabled-state attribute.
func Enabled(name string, state EnabledState) Attribute {
	return Attribute{name: name, value: state, tags: TagEnabledState}
}

// Bool returns a pointer to b, for building EnabledState literals.
func Bool(b bool) *bool { return &b }

// Time returns a pointer to t, for building EnabledState literals.
func Time(t time.Time) *time.Time { return &t }

func (a Attribute) Name() string { return a.name }
func (a Attribute) IsMultiValue() bool { return a.multi }
func (a Attribute) Tags() Tag { return a.tags }
func (a Attribute) IsIdentifier() bool { return a.tags&TagIdentifier != 0 }
func (a Attribute) IsSecret() bool { return a.tags&TagSecret != 0 }
func (a Attribute) IsEnabledState() bool {
	return a.tags&TagEnabledState != 0
}
func (a Attribute) IsLoginName() bool { return a.tags&TagLoginName != 0 }

// Revision returns the optimistic-concurrency token of an identifier attribute.
func (a Attribute) Revision() string { return a.revision }

// Value returns the single value of a single-valued attribute.
func (a Attribute) Value() (any, error) {
	if a.multi {
		return nil, fmt.Errorf("%s: %w", a.name, ErrMultiValued)
	}
	return a.value, nil
}

// Values returns a copy of the value list of a multi-valued attribute.
func (a Attribute) Values() ([]any, error) {
	if !a.multi {
		return nil, fmt.Errorf("%s: %w", a.name, ErrSingleValued)
	}
	out := make([]any, len(a.values))
	copy(out, a.values)
	return out, nil
}

// UID returns the identifier value of an identifier attribute.
func (a Attribute) UID() (string, error) {
	if !a.IsIdentifier() {
		return "", fmt.Errorf("%s: attribute is not an identifier", a.name)
	}
	uid, _ := a.value.(string)
	return uid, nil
}

// EnabledState returns the state value of an enabled-state attribute.
func (a Attribute) EnabledState() (EnabledState, error) {
	if !a.IsEnabledState() {
		return EnabledState{}, fmt.Errorf("%s: attribute is not an enabled state", a.name)
	}
	state, _ := a.value.(EnabledState)
	return state, nil
}

// Secret returns the secret value of a secret attribute.
func (a Attribute) Secret() (Secret, error) {
	if !a.IsSecret() {
		return Secret{}, fmt.Errorf("%s: attribute is not a secret", a.name)
	}
	s, _ := a.value.(Secret)
	return s, nil
}

// Equal reports whether two attributes carry the same name, cardinality, tags,
// revision and values.
func (a Attribute) Equal(o Attribute) bool {
	if a.name != o.name || a.multi != o.multi || a.tags != o.tags || a.revision != o.revision {
		return false
	}
	if a.multi {
		return slices.EqualFunc(a.values, o.values, valueEqual)
	}
	return valueEqual(a.value, o.value)
}

func valueEqual(x, y any) bool {
	switch xv := x.(type) {
	case []byte:
		yv, ok := y.([]byte)
		return ok && string(xv) == string(yv)
	case time.Time:
		yv, ok := y.(time.Time)
		return ok && xv.Equal(yv)
	case EnabledState:
		yv, ok := y.(EnabledState)
		return ok && xv.Equal(yv)
	case Secret:
		yv, ok := y.(Secret)
		return ok && xv.Equal(yv)
	default:
		return reflect.DeepEqual(x, y)
	}
}

func (a Attribute) String() string {
	if a.IsSecret() {
		return a.name + "=" + redacted
	}
	if a.multi {
		return fmt.Sprintf("%s=%v", a.name, a.values)
	}
	return fmt.Sprintf("%s=%v", a.name, a.value)
}

// Find returns the first attribute with the given name.
func Find(attrs []Attribute, name string) (Attribute, bool) {
	for _, a := range attrs {
		if a.name == name {
			return a, true
		}
	}
	return Attribute{}, false
}
