// Package framework is the connector runtime that connector bundles are
// written against. Bundles implement Connector plus any of the operation
// interfaces; callers drive them through a Facade, in process or on a
// remote connector host.
//
// Operational attributes travel under reserved names (UIDName, NameName,
// PasswordName, EnableName, EnableDateName, DisableDateName). Enable and
// disable dates are epoch milliseconds.
package framework

import (
	"strings"
)

// Reserved attribute names.
const (
	UIDName         = "__UID__"
	NameName        = "__NAME__"
	PasswordName    = "__PASSWORD__"
	EnableName      = "__ENABLE__"
	EnableDateName  = "__ENABLE_DATE__"
	DisableDateName = "__DISABLE_DATE__"
)

// Well-known object classes.
const (
	AccountClass = "__ACCOUNT__"
	GroupClass   = "__GROUP__"
	AllClass     = "__ALL__"
)

// IsOperational reports whether name is one of the reserved attribute names.
func IsOperational(name string) bool {
	return strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")
}

// Attribute is a named value list. MultiValued distinguishes a one-element
// multi-valued attribute from a single value. NameHint carries the caller's
// attribute name when Name is a reserved name.
type Attribute struct {
	Name        string
	Values      []any
	MultiValued bool
	NameHint    string
	// Revision is only set on the UIDName attribute.
	Revision string
}

// SingleValue returns the first value, or nil.
func (a Attribute) SingleValue() any {
	if len(a.Values) == 0 {
		return nil
	}
	return a.Values[0]
}

// Uid identifies an object within an object class.
type Uid struct {
	Value    string
	Revision string
	NameHint string
}

// Attribute renders the uid as the UIDName attribute.
func (u Uid) Attribute() Attribute {
	return Attribute{Name: UIDName, Values: []any{u.Value}, NameHint: u.NameHint, Revision: u.Revision}
}

// UidFromAttribute reads a UIDName attribute back into a Uid.
func UidFromAttribute(a Attribute) Uid {
	v, _ := a.SingleValue().(string)
	return Uid{Value: v, Revision: a.Revision, NameHint: a.NameHint}
}

type ObjectClass struct {
	Type        string
	DisplayName string
	RequestID   string
}

// ConnectorObject is an object as returned by a connector. Attributes never
// contain UIDName.
type ConnectorObject struct {
	ObjectClass ObjectClass
	Uid         Uid
	Attributes  []Attribute
}

// Attribute returns the named attribute.
func (o ConnectorObject) Attribute(name string) (Attribute, bool) {
	if name == UIDName {
		return o.Uid.Attribute(), true
	}
	for _, a := range o.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// OperationOptions are passed through to the connector unchanged.
type OperationOptions map[string]any
