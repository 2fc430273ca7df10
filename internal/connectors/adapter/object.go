package adapter

import (
	"fmt"

	"github.com/open-sspm/open-idm/internal/connectors/framework"
	"github.com/open-sspm/open-idm/internal/connectors/model"
)

func EncodeObjectClass(oc model.ObjectClass) framework.ObjectClass {
	return framework.ObjectClass{Type: oc.Type, DisplayName: oc.DisplayName, RequestID: oc.RequestID}
}

func DecodeObjectClass(oc framework.ObjectClass) model.ObjectClass {
	return model.ObjectClass{Type: oc.Type, DisplayName: oc.DisplayName, RequestID: oc.RequestID}
}

// EncodeUid converts an identifier attribute.
func EncodeUid(a model.Attribute) (framework.Uid, error) {
	uid, err := a.UID()
	if err != nil {
		return framework.Uid{}, err
	}
	return framework.Uid{Value: uid, Revision: a.Revision(), NameHint: hint(a.Name(), framework.UIDName)}, nil
}

// DecodeUid converts a native uid. A missing revision stays empty.
func DecodeUid(u framework.Uid) model.Attribute {
	return model.Identifier(unhint(u.NameHint, framework.UIDName), u.Value, u.Revision)
}

func EncodeObject(o model.ConnectorObject) (framework.ConnectorObject, error) {
	uid, err := EncodeUid(o.UID)
	if err != nil {
		return framework.ConnectorObject{}, fmt.Errorf("object uid: %w", err)
	}
	attrs, err := EncodeAttributes(o.Attributes)
	if err != nil {
		return framework.ConnectorObject{}, err
	}
	return framework.ConnectorObject{ObjectClass: EncodeObjectClass(o.ObjectClass), Uid: uid, Attributes: attrs}, nil
}

func DecodeObject(o framework.ConnectorObject) (model.ConnectorObject, error) {
	attrs, err := DecodeAttributes(o.Attributes)
	if err != nil {
		return model.ConnectorObject{}, err
	}
	return model.ConnectorObject{ObjectClass: DecodeObjectClass(o.ObjectClass), UID: DecodeUid(o.Uid), Attributes: attrs}, nil
}

func EncodeOptions(opts model.OperationOptions) framework.OperationOptions {
	if opts == nil {
		return nil
	}
	out := make(framework.OperationOptions, len(opts))
	for k, v := range opts {
		out[k] = v
	}
	return out
}
