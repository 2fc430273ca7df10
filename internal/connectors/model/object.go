package model

// ObjectClass names a resource-defined object type. Type is case-sensitive.
type ObjectClass struct {
	Type        string
	DisplayName string
	// RequestID correlates the call with an in-flight request on virtual or
	// stateful resources. Empty when unused.
	RequestID string
}

// Class is shorthand for an ObjectClass with only a type.
func Class(objectType string) ObjectClass {
	return ObjectClass{Type: objectType}
}

// ConnectorObject is one object read from a resource. UID is the identifier
// attribute; Attributes never repeat it.
type ConnectorObject struct {
	ObjectClass ObjectClass
	UID         Attribute
	Attributes  []Attribute
}

// Attribute returns the named attribute of the object.
func (o ConnectorObject) Attribute(name string) (Attribute, bool) {
	if o.UID.Name() == name {
		return o.UID, true
	}
	return Find(o.Attributes, name)
}

// Equal compares class, identifier and attributes in order.
func (o ConnectorObject) Equal(x ConnectorObject) bool {
	if o.ObjectClass != x.ObjectClass || !o.UID.Equal(x.UID) || len(o.Attributes) != len(x.Attributes) {
		return false
	}
	for i := range o.Attributes {
		if !o.Attributes[i].Equal(x.Attributes[i]) {
			return false
		}
	}
	return true
}

// OperationOptions carries per-call hints to a connector (page size, attributes
// to get, run-as user, ...). Keys are connector-defined.
type OperationOptions map[string]any

const (
	OptionAttributesToGet = "ATTRS_TO_GET"
	OptionPageSize        = "PAGE_SIZE"
	OptionRunAsUser       = "RUN_AS_USER"
)
