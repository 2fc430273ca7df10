package adapter

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/open-sspm/open-idm/internal/connectors/framework"
	"github.com/open-sspm/open-idm/internal/connectors/model"
)

var operationTypes = map[model.Operation]framework.OperationType{
	model.OpCreate: framework.CreateOperation,
	model.OpRead:   framework.GetOperation,
	model.OpUpdate: framework.UpdateOperation,
	model.OpDelete: framework.DeleteOperation,
	model.OpSchema: framework.SchemaOperation,
	model.OpSync:   framework.SyncOperation,
	model.OpSearch: framework.SearchOperation,
	model.OpTest:   framework.TestOperation,
}

var operations = func() map[framework.OperationType]model.Operation {
	out := make(map[framework.OperationType]model.Operation, len(operationTypes))
	for op, native := range operationTypes {
		out[native] = op
	}
	return out
}()

func EncodeOperation(op model.Operation) (framework.OperationType, error) {
	native, ok := operationTypes[op]
	if !ok {
		return "", fmt.Errorf("unknown operation %q", op)
	}
	return native, nil
}

func DecodeOperation(op framework.OperationType) (model.Operation, error) {
	out, ok := operations[op]
	if !ok {
		return "", fmt.Errorf("unknown operation type %q", op)
	}
	return out, nil
}

var valueTypes = map[model.ValueType]reflect.Type{
	model.TypeString:  framework.StringType,
	model.TypeInt64:   framework.Int64Type,
	model.TypeFloat64: framework.Float64Type,
	model.TypeBool:    framework.BoolType,
	model.TypeBytes:   framework.BytesType,
	model.TypeTime:    framework.TimeType,
	model.TypeSecret:  framework.GuardedStringType,
	// model.TypeState is BoolType plus FlagOperational.
}

func EncodeAttributeInfo(info model.AttributeInfo) (framework.AttributeInfo, error) {
	out := framework.AttributeInfo{Name: info.Name, NativeName: info.NativeName}
	if info.ClassType == model.TypeState {
		out.Type = framework.BoolType
		out.Flags |= framework.FlagOperational
	} else {
		t, ok := valueTypes[info.ClassType]
		if !ok {
			return framework.AttributeInfo{}, fmt.Errorf("attribute %q: unknown value type %q", info.Name, info.ClassType)
		}
		out.Type = t
	}
	if info.Required {
		out.Flags |= framework.FlagRequired
	}
	if info.Multivalued {
		out.Flags |= framework.FlagMultiValued
	}
	if !info.Createable {
		out.Flags |= framework.FlagNotCreateable
	}
	if !info.Updateable {
		out.Flags |= framework.FlagNotUpdateable
	}
	if !info.Readable {
		out.Flags |= framework.FlagNotReadable
	}
	if !info.ReturnedByDefault {
		out.Flags |= framework.FlagNotReturnedByDefault
	}
	return out, nil
}

func DecodeAttributeInfo(info framework.AttributeInfo) (model.AttributeInfo, error) {
	out := model.AttributeInfo{
		Name:              info.Name,
		NativeName:        info.NativeName,
		Required:          info.Flags.Has(framework.FlagRequired),
		Multivalued:       info.Flags.Has(framework.FlagMultiValued),
		Createable:        !info.Flags.Has(framework.FlagNotCreateable),
		Updateable:        !info.Flags.Has(framework.FlagNotUpdateable),
		Readable:          !info.Flags.Has(framework.FlagNotReadable),
		ReturnedByDefault: !info.Flags.Has(framework.FlagNotReturnedByDefault),
	}
	if info.Type == framework.BoolType && info.Flags.Has(framework.FlagOperational) {
		out.ClassType = model.TypeState
		return out, nil
	}
	for vt, t := range valueTypes {
		if t == info.Type {
			out.ClassType = vt
			return out, nil
		}
	}
	return model.AttributeInfo{}, fmt.Errorf("attribute %q: unsupported type %v", info.Name, info.Type)
}

func EncodeSchema(s model.Schema) (framework.Schema, error) {
	out := framework.Schema{}
	if s.ObjectClasses != nil {
		out.ObjectClassInfos = make([]framework.ObjectClassInfo, 0, len(s.ObjectClasses))
	}
	for _, oc := range s.ObjectClasses {
		info := framework.ObjectClassInfo{Type: oc.Type, Container: oc.IsContainer, Auxiliary: oc.IsAuxiliary}
		if oc.AttributeInfos != nil {
			info.AttributeInfos = make([]framework.AttributeInfo, 0, len(oc.AttributeInfos))
		}
		for _, ai := range oc.AttributeInfos {
			native, err := EncodeAttributeInfo(ai)
			if err != nil {
				return framework.Schema{}, fmt.Errorf("object class %q: %w", oc.Type, err)
			}
			info.AttributeInfos = append(info.AttributeInfos, native)
		}
		out.ObjectClassInfos = append(out.ObjectClassInfos, info)
	}
	if s.SupportedOperationsByObjectClass != nil {
		out.SupportedObjectClassesByOperation = make(map[framework.OperationType][]string, len(s.SupportedOperationsByObjectClass))
		for op, classes := range s.SupportedOperationsByObjectClass {
			native, err := EncodeOperation(op)
			if err != nil {
				return framework.Schema{}, err
			}
			out.SupportedObjectClassesByOperation[native] = slices.Clone(classes)
		}
	}
	return out, nil
}

func DecodeSchema(s framework.Schema) (model.Schema, error) {
	out := model.Schema{}
	if s.ObjectClassInfos != nil {
		out.ObjectClasses = make([]model.ObjectClassInfo, 0, len(s.ObjectClassInfos))
	}
	for _, oc := range s.ObjectClassInfos {
		info := model.ObjectClassInfo{Type: oc.Type, IsContainer: oc.Container, IsAuxiliary: oc.Auxiliary}
		if oc.AttributeInfos != nil {
			info.AttributeInfos = make([]model.AttributeInfo, 0, len(oc.AttributeInfos))
		}
		for _, ai := range oc.AttributeInfos {
			decoded, err := DecodeAttributeInfo(ai)
			if err != nil {
				return model.Schema{}, fmt.Errorf("object class %q: %w", oc.Type, err)
			}
			info.AttributeInfos = append(info.AttributeInfos, decoded)
		}
		out.ObjectClasses = append(out.ObjectClasses, info)
	}
	if s.SupportedObjectClassesByOperation != nil {
		out.SupportedOperationsByObjectClass = make(map[model.Operation][]string, len(s.SupportedObjectClassesByOperation))
		for native, classes := range s.SupportedObjectClassesByOperation {
			op, err := DecodeOperation(native)
			if err != nil {
				return model.Schema{}, err
			}
			out.SupportedOperationsByObjectClass[op] = slices.Clone(classes)
		}
	}
	return out, nil
}
