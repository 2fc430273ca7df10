package adapter

import (
	"fmt"

	"github.com/open-sspm/open-idm/internal/connectors/framework"
	"github.com/open-sspm/open-idm/internal/connectors/model"
)

// EncodeSyncToken returns nil for the zero token.
func EncodeSyncToken(t model.SyncToken) *framework.SyncToken {
	if t.IsZero() {
		return nil
	}
	return &framework.SyncToken{Value: t.Value()}
}

func DecodeSyncToken(t *framework.SyncToken) model.SyncToken {
	if t == nil {
		return model.SyncToken{}
	}
	return model.NewSyncToken(t.Value)
}

func EncodeDeltaType(t model.DeltaType) (framework.SyncDeltaType, error) {
	switch t {
	case model.DeltaCreate:
		return framework.DeltaCreate, nil
	case model.DeltaUpdate:
		return framework.DeltaUpdate, nil
	case model.DeltaDelete:
		return framework.DeltaDelete, nil
	default:
		return "", fmt.Errorf("unknown delta type %q", t)
	}
}

// DecodeDeltaType maps CREATE_OR_UPDATE to UPDATE.
func DecodeDeltaType(t framework.SyncDeltaType) (model.DeltaType, error) {
	switch t {
	case framework.DeltaCreate:
		return model.DeltaCreate, nil
	case framework.DeltaUpdate, framework.DeltaCreateOrUpdate:
		return model.DeltaUpdate, nil
	case framework.DeltaDelete:
		return model.DeltaDelete, nil
	default:
		return "", fmt.Errorf("unknown sync delta type %q", t)
	}
}

func EncodeSyncDelta(d model.SyncDelta) (framework.SyncDelta, error) {
	dt, err := EncodeDeltaType(d.DeltaType)
	if err != nil {
		return framework.SyncDelta{}, err
	}
	uid, err := EncodeUid(d.UID)
	if err != nil {
		return framework.SyncDelta{}, fmt.Errorf("delta uid: %w", err)
	}
	out := framework.SyncDelta{DeltaType: dt, Uid: uid, ObjectClass: EncodeObjectClass(d.ObjectClass)}
	if !d.Token.IsZero() {
		out.Token = framework.SyncToken{Value: d.Token.Value()}
	}
	if d.PreviousUID != nil {
		prev, err := EncodeUid(*d.PreviousUID)
		if err != nil {
			return framework.SyncDelta{}, fmt.Errorf("delta previous uid: %w", err)
		}
		out.PreviousUid = &prev
	}
	if d.Object != nil {
		obj, err := EncodeObject(*d.Object)
		if err != nil {
			return framework.SyncDelta{}, err
		}
		out.Object = &obj
	}
	return out, nil
}

func DecodeSyncDelta(d framework.SyncDelta) (model.SyncDelta, error) {
	dt, err := DecodeDeltaType(d.DeltaType)
	if err != nil {
		return model.SyncDelta{}, err
	}
	out := model.SyncDelta{
		Token:       model.NewSyncToken(d.Token.Value),
		DeltaType:   dt,
		UID:         DecodeUid(d.Uid),
		ObjectClass: DecodeObjectClass(d.ObjectClass),
	}
	if d.PreviousUid != nil {
		prev := DecodeUid(*d.PreviousUid)
		out.PreviousUID = &prev
	}
	if d.Object != nil {
		obj, err := DecodeObject(*d.Object)
		if err != nil {
			return model.SyncDelta{}, err
		}
		out.Object = &obj
	}
	return out, nil
}
