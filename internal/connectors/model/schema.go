package model

import (
	"fmt"
	"slices"
)

// Operation names a connector capability.
type Operation string

const (
	OpCreate Operation = "create"
	OpRead   Operation = "read"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpSchema Operation = "schema"
	OpSync   Operation = "sync"
	OpSearch Operation = "search"
	OpTest   Operation = "test"
)

// AllOperations lists every operation in a stable order.
var AllOperations = []Operation{OpCreate, OpRead, OpUpdate, OpDelete, OpSchema, OpSync, OpSearch, OpTest}

// ValueType is the logical type of attribute values.
type ValueType string

const (
	TypeString  ValueType = "string"
	TypeInt64   ValueType = "int64"
	TypeFloat64 ValueType = "float64"
	TypeBool    ValueType = "bool"
	TypeBytes   ValueType = "bytes"
	TypeTime    ValueType = "time"
	TypeSecret  ValueType = "secret"
	TypeState   ValueType = "enabled_state"
)

// AttributeInfo describes one attribute exposed by an object class.
type AttributeInfo struct {
	Name              string
	NativeName        string
	ClassType         ValueType
	Required          bool
	Multivalued       bool
	Createable        bool
	Updateable        bool
	Readable          bool
	ReturnedByDefault bool
}

// ObjectClassInfo describes one object class exposed by a resource.
type ObjectClassInfo struct {
	Type           string
	AttributeInfos []AttributeInfo
	IsContainer    bool
	IsAuxiliary    bool
}

// Attribute returns the named attribute description.
func (i ObjectClassInfo) Attribute(name string) (AttributeInfo, bool) {
	for _, a := range i.AttributeInfos {
		if a.Name == name {
			return a, true
		}
	}
	return AttributeInfo{}, false
}

// Schema is what a resource exposes. SupportedOperationsByObjectClass maps an
// operation to the object-class types it may be invoked with.
type Schema struct {
	ObjectClasses                    []ObjectClassInfo
	SupportedOperationsByObjectClass map[Operation][]string
}

// ObjectClass returns the description of the given object-class type.
func (s Schema) ObjectClass(objectType string) (ObjectClassInfo, bool) {
	for _, oc := range s.ObjectClasses {
		if oc.Type == objectType {
			return oc, true
		}
	}
	return ObjectClassInfo{}, false
}

// Supports reports whether op may be invoked for the object-class type.
func (s Schema) Supports(op Operation, objectType string) bool {
	return slices.Contains(s.SupportedOperationsByObjectClass[op], objectType)
}

// Guard returns ErrUnsupportedOperation when op is not advertised for the
// object-class type.
func (s Schema) Guard(op Operation, objectType string) error {
	if s.Supports(op, objectType) {
		return nil
	}
	return fmt.Errorf("%s on %q: %w", op, objectType, ErrUnsupportedOperation)
}
