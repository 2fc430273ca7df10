package framework

import (
	"reflect"
	"time"
)

// OperationType names a runtime operation.
type OperationType string

const (
	CreateOperation OperationType = "CreateApiOp"
	GetOperation    OperationType = "GetApiOp"
	UpdateOperation OperationType = "UpdateApiOp"
	DeleteOperation OperationType = "DeleteApiOp"
	SchemaOperation OperationType = "SchemaApiOp"
	SyncOperation   OperationType = "SyncApiOp"
	SearchOperation OperationType = "SearchApiOp"
	TestOperation   OperationType = "TestApiOp"
)

// AttributeFlag modifies an AttributeInfo. The zero value describes an
// optional, single-valued, fully writable attribute returned by default.
type AttributeFlag uint16

const (
	FlagRequired AttributeFlag = 1 << iota
	FlagMultiValued
	FlagNotCreateable
	FlagNotUpdateable
	FlagNotReadable
	FlagNotReturnedByDefault
	// FlagOperational marks the enable and password attributes.
	FlagOperational
)

func (f AttributeFlag) Has(flag AttributeFlag) bool { return f&flag != 0 }

// Value types accepted in AttributeInfo.Type.
var (
	StringType        = reflect.TypeOf("")
	Int64Type         = reflect.TypeOf(int64(0))
	Float64Type       = reflect.TypeOf(float64(0))
	BoolType          = reflect.TypeOf(false)
	BytesType         = reflect.TypeOf([]byte(nil))
	TimeType          = reflect.TypeOf(time.Time{})
	GuardedStringType = reflect.TypeOf((*GuardedString)(nil))
)

type AttributeInfo struct {
	Name       string
	NativeName string
	Type       reflect.Type
	Flags      AttributeFlag
}

type ObjectClassInfo struct {
	Type           string
	AttributeInfos []AttributeInfo
	Container      bool
	Auxiliary      bool
}

type Schema struct {
	ObjectClassInfos                  []ObjectClassInfo
	SupportedObjectClassesByOperation map[OperationType][]string
}
