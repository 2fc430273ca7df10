package remote

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/open-sspm/open-idm/internal/connectors/framework"
)

// Values are tagged with their Go type so the host rebuilds exactly what
// the client sent.
const (
	kindNull    = "null"
	kindString  = "string"
	kindInt     = "int"
	kindFloat   = "float"
	kindBool    = "bool"
	kindTime    = "time"
	kindBytes   = "bytes"
	kindGuarded = "guarded"
	kindList    = "list"
)

type wireValue struct {
	Kind  string          `json:"t"`
	Value json.RawMessage `json:"v,omitempty"`
}

func encodeValue(v any) (wireValue, error) {
	var (
		kind string
		raw  any
	)
	switch x := v.(type) {
	case nil:
		return wireValue{Kind: kindNull}, nil
	case string:
		kind, raw = kindString, x
	case int64:
		kind, raw = kindInt, x
	case int:
		kind, raw = kindInt, int64(x)
	case float64:
		kind, raw = kindFloat, x
	case bool:
		kind, raw = kindBool, x
	case time.Time:
		kind, raw = kindTime, x.Format(time.RFC3339Nano)
	case []byte:
		kind, raw = kindBytes, base64.StdEncoding.EncodeToString(x)
	case *framework.GuardedString:
		clear, err := x.Reveal()
		if err != nil {
			return wireValue{}, err
		}
		kind, raw = kindGuarded, clear
	case []string:
		items := make([]any, len(x))
		for i, s := range x {
			items[i] = s
		}
		return encodeValue(items)
	case []any:
		items := make([]wireValue, 0, len(x))
		for _, item := range x {
			w, err := encodeValue(item)
			if err != nil {
				return wireValue{}, err
			}
			items = append(items, w)
		}
		kind, raw = kindList, items
	default:
		return wireValue{}, fmt.Errorf("unsupported value type %T", v)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return wireValue{}, err
	}
	return wireValue{Kind: kind, Value: b}, nil
}

func decodeValue(w wireValue) (any, error) {
	switch w.Kind {
	case kindNull:
		return nil, nil
	case kindString:
		var s string
		err := json.Unmarshal(w.Value, &s)
		return s, err
	case kindInt:
		var n int64
		err := json.Unmarshal(w.Value, &n)
		return n, err
	case kindFloat:
		var f float64
		err := json.Unmarshal(w.Value, &f)
		return f, err
	case kindBool:
		var b bool
		err := json.Unmarshal(w.Value, &b)
		return b, err
	case kindTime:
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return nil, err
		}
		return time.Parse(time.RFC3339Nano, s)
	case kindBytes:
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return nil, err
		}
		return base64.StdEncoding.DecodeString(s)
	case kindGuarded:
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return nil, err
		}
		return framework.NewGuardedString(s), nil
	case kindList:
		var items []wireValue
		if err := json.Unmarshal(w.Value, &items); err != nil {
			return nil, err
		}
		out := make([]any, 0, len(items))
		for _, item := range items {
			v, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown value kind %q", w.Kind)
	}
}

func encodeValues(vs []any) ([]wireValue, error) {
	if vs == nil {
		return nil, nil
	}
	out := make([]wireValue, 0, len(vs))
	for _, v := range vs {
		w, err := encodeValue(v)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func decodeValues(ws []wireValue) ([]any, error) {
	if ws == nil {
		return nil, nil
	}
	out := make([]any, 0, len(ws))
	for _, w := range ws {
		v, err := decodeValue(w)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

type wireAttribute struct {
	Name        string      `json:"name"`
	Values      []wireValue `json:"values"`
	MultiValued bool        `json:"multi,omitempty"`
	NameHint    string      `json:"hint,omitempty"`
	Revision    string      `json:"rev,omitempty"`
}

func encodeAttributes(attrs []framework.Attribute) ([]wireAttribute, error) {
	out := make([]wireAttribute, 0, len(attrs))
	for _, a := range attrs {
		w, err := encodeAttribute(a)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func encodeAttribute(a framework.Attribute) (wireAttribute, error) {
	values, err := encodeValues(a.Values)
	if err != nil {
		return wireAttribute{}, fmt.Errorf("attribute %s: %w", a.Name, err)
	}
	return wireAttribute{Name: a.Name, Values: values, MultiValued: a.MultiValued, NameHint: a.NameHint, Revision: a.Revision}, nil
}

func decodeAttributes(ws []wireAttribute) ([]framework.Attribute, error) {
	out := make([]framework.Attribute, 0, len(ws))
	for _, w := range ws {
		a, err := decodeAttribute(w)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func decodeAttribute(w wireAttribute) (framework.Attribute, error) {
	values, err := decodeValues(w.Values)
	if err != nil {
		return framework.Attribute{}, fmt.Errorf("attribute %s: %w", w.Name, err)
	}
	return framework.Attribute{Name: w.Name, Values: values, MultiValued: w.MultiValued, NameHint: w.NameHint, Revision: w.Revision}, nil
}

type wireUid struct {
	Value    string `json:"value"`
	Revision string `json:"rev,omitempty"`
	NameHint string `json:"hint,omitempty"`
}

func encodeUid(u framework.Uid) wireUid {
	return wireUid{Value: u.Value, Revision: u.Revision, NameHint: u.NameHint}
}

func (w wireUid) uid() framework.Uid {
	return framework.Uid{Value: w.Value, Revision: w.Revision, NameHint: w.NameHint}
}

type wireObjectClass struct {
	Type        string `json:"type"`
	DisplayName string `json:"display_name,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}

func encodeObjectClass(oc framework.ObjectClass) wireObjectClass {
	return wireObjectClass{Type: oc.Type, DisplayName: oc.DisplayName, RequestID: oc.RequestID}
}

func (w wireObjectClass) objectClass() framework.ObjectClass {
	return framework.ObjectClass{Type: w.Type, DisplayName: w.DisplayName, RequestID: w.RequestID}
}

type wireObject struct {
	ObjectClass wireObjectClass `json:"object_class"`
	Uid         wireUid         `json:"uid"`
	Attributes  []wireAttribute `json:"attributes"`
}

func encodeObject(o framework.ConnectorObject) (wireObject, error) {
	attrs, err := encodeAttributes(o.Attributes)
	if err != nil {
		return wireObject{}, err
	}
	return wireObject{ObjectClass: encodeObjectClass(o.ObjectClass), Uid: encodeUid(o.Uid), Attributes: attrs}, nil
}

func decodeObject(w wireObject) (framework.ConnectorObject, error) {
	attrs, err := decodeAttributes(w.Attributes)
	if err != nil {
		return framework.ConnectorObject{}, err
	}
	return framework.ConnectorObject{ObjectClass: w.ObjectClass.objectClass(), Uid: w.Uid.uid(), Attributes: attrs}, nil
}

func encodeOptions(opts framework.OperationOptions) (map[string]wireValue, error) {
	if len(opts) == 0 {
		return nil, nil
	}
	out := make(map[string]wireValue, len(opts))
	for k, v := range opts {
		w, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("option %s: %w", k, err)
		}
		out[k] = w
	}
	return out, nil
}

func decodeOptions(ws map[string]wireValue) (framework.OperationOptions, error) {
	if len(ws) == 0 {
		return nil, nil
	}
	out := make(framework.OperationOptions, len(ws))
	for k, w := range ws {
		v, err := decodeValue(w)
		if err != nil {
			return nil, fmt.Errorf("option %s: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// Filters travel as a post-order node list: composite nodes follow their
// children and record how many they take from the stack.
type wireFilterNode struct {
	Op        string         `json:"op"`
	Children  int            `json:"n,omitempty"`
	Attribute *wireAttribute `json:"attr,omitempty"`
}

const (
	opAnd               = "and"
	opOr                = "or"
	opNot               = "not"
	opEquals            = "equals"
	opContains          = "contains"
	opStartsWith        = "starts_with"
	opEndsWith          = "ends_with"
	opGreaterThan       = "greater_than"
	opLessThan          = "less_than"
	opContainsAllValues = "contains_all_values"
)

func leafOp(f framework.Filter) (string, bool) {
	switch f.(type) {
	case framework.EqualsFilter:
		return opEquals, true
	case framework.ContainsFilter:
		return opContains, true
	case framework.StartsWithFilter:
		return opStartsWith, true
	case framework.EndsWithFilter:
		return opEndsWith, true
	case framework.GreaterThanFilter:
		return opGreaterThan, true
	case framework.LessThanFilter:
		return opLessThan, true
	case framework.ContainsAllValuesFilter:
		return opContainsAllValues, true
	}
	return "", false
}

func encodeFilter(f framework.Filter) ([]wireFilterNode, error) {
	if f == nil {
		return nil, nil
	}
	type frame struct {
		f        framework.Filter
		expanded bool
	}
	var out []wireFilterNode
	stack := []frame{{f: f}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var children []framework.Filter
		var op string
		switch x := top.f.(type) {
		case framework.AndFilter:
			op, children = opAnd, x.Filters
		case framework.OrFilter:
			op, children = opOr, x.Filters
		case framework.NotFilter:
			op, children = opNot, []framework.Filter{x.Filter}
		default:
			lop, ok := leafOp(top.f)
			if !ok {
				return nil, fmt.Errorf("unsupported filter %T", top.f)
			}
			a, _ := framework.LeafAttribute(top.f)
			w, err := encodeAttribute(a)
			if err != nil {
				return nil, err
			}
			out = append(out, wireFilterNode{Op: lop, Attribute: &w})
			continue
		}
		if top.expanded {
			out = append(out, wireFilterNode{Op: op, Children: len(children)})
			continue
		}
		stack = append(stack, frame{f: top.f, expanded: true})
		for i := len(children) - 1; i >= 0; i-- {
			if children[i] == nil {
				return nil, errors.New("nil filter child")
			}
			stack = append(stack, frame{f: children[i]})
		}
	}
	return out, nil
}

func decodeFilter(nodes []wireFilterNode) (framework.Filter, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	var stack []framework.Filter
	for _, n := range nodes {
		switch n.Op {
		case opAnd, opOr, opNot:
			if n.Children > len(stack) || (n.Op == opNot && n.Children != 1) {
				return nil, fmt.Errorf("malformed %s filter", n.Op)
			}
			children := make([]framework.Filter, n.Children)
			copy(children, stack[len(stack)-n.Children:])
			stack = stack[:len(stack)-n.Children]
			switch n.Op {
			case opAnd:
				stack = append(stack, framework.AndFilter{Filters: children})
			case opOr:
				stack = append(stack, framework.OrFilter{Filters: children})
			default:
				stack = append(stack, framework.NotFilter{Filter: children[0]})
			}
			continue
		}
		if n.Attribute == nil {
			return nil, fmt.Errorf("%s filter without attribute", n.Op)
		}
		a, err := decodeAttribute(*n.Attribute)
		if err != nil {
			return nil, err
		}
		var leaf framework.Filter
		switch n.Op {
		case opEquals:
			leaf = framework.EqualsFilter{Attribute: a}
		case opContains:
			leaf = framework.ContainsFilter{Attribute: a}
		case opStartsWith:
			leaf = framework.StartsWithFilter{Attribute: a}
		case opEndsWith:
			leaf = framework.EndsWithFilter{Attribute: a}
		case opGreaterThan:
			leaf = framework.GreaterThanFilter{Attribute: a}
		case opLessThan:
			leaf = framework.LessThanFilter{Attribute: a}
		case opContainsAllValues:
			leaf = framework.ContainsAllValuesFilter{Attribute: a}
		default:
			return nil, fmt.Errorf("unknown filter op %q", n.Op)
		}
		stack = append(stack, leaf)
	}
	if len(stack) != 1 {
		return nil, errors.New("malformed filter")
	}
	return stack[0], nil
}

type wireSyncToken struct {
	Value wireValue `json:"value"`
}

func encodeSyncToken(t *framework.SyncToken) (*wireSyncToken, error) {
	if t == nil {
		return nil, nil
	}
	v, err := encodeValue(t.Value)
	if err != nil {
		return nil, err
	}
	return &wireSyncToken{Value: v}, nil
}

func decodeSyncToken(w *wireSyncToken) (*framework.SyncToken, error) {
	if w == nil {
		return nil, nil
	}
	v, err := decodeValue(w.Value)
	if err != nil {
		return nil, err
	}
	return &framework.SyncToken{Value: v}, nil
}

type wireSyncDelta struct {
	Token       wireSyncToken   `json:"token"`
	DeltaType   string          `json:"delta_type"`
	Uid         wireUid         `json:"uid"`
	PreviousUid *wireUid        `json:"previous_uid,omitempty"`
	ObjectClass wireObjectClass `json:"object_class"`
	Object      *wireObject     `json:"object,omitempty"`
}

func encodeSyncDelta(d framework.SyncDelta) (wireSyncDelta, error) {
	token, err := encodeSyncToken(&d.Token)
	if err != nil {
		return wireSyncDelta{}, err
	}
	out := wireSyncDelta{
		Token:       *token,
		DeltaType:   string(d.DeltaType),
		Uid:         encodeUid(d.Uid),
		ObjectClass: encodeObjectClass(d.ObjectClass),
	}
	if d.PreviousUid != nil {
		p := encodeUid(*d.PreviousUid)
		out.PreviousUid = &p
	}
	if d.Object != nil {
		o, err := encodeObject(*d.Object)
		if err != nil {
			return wireSyncDelta{}, err
		}
		out.Object = &o
	}
	return out, nil
}

func decodeSyncDelta(w wireSyncDelta) (framework.SyncDelta, error) {
	token, err := decodeSyncToken(&w.Token)
	if err != nil {
		return framework.SyncDelta{}, err
	}
	out := framework.SyncDelta{
		Token:       *token,
		DeltaType:   framework.SyncDeltaType(w.DeltaType),
		Uid:         w.Uid.uid(),
		ObjectClass: w.ObjectClass.objectClass(),
	}
	if w.PreviousUid != nil {
		p := w.PreviousUid.uid()
		out.PreviousUid = &p
	}
	if w.Object != nil {
		o, err := decodeObject(*w.Object)
		if err != nil {
			return framework.SyncDelta{}, err
		}
		out.Object = &o
	}
	return out, nil
}

var typeNames = map[reflect.Type]string{
	framework.StringType:        "string",
	framework.Int64Type:         "int64",
	framework.Float64Type:       "float64",
	framework.BoolType:          "bool",
	framework.BytesType:         "bytes",
	framework.TimeType:          "time",
	framework.GuardedStringType: "guarded_string",
}

func typeByName(name string) (reflect.Type, bool) {
	for t, n := range typeNames {
		if n == name {
			return t, true
		}
	}
	return nil, false
}

type wireAttributeInfo struct {
	Name       string `json:"name"`
	NativeName string `json:"native_name,omitempty"`
	Type       string `json:"type"`
	Flags      uint16 `json:"flags,omitempty"`
}

type wireObjectClassInfo struct {
	Type           string              `json:"type"`
	AttributeInfos []wireAttributeInfo `json:"attributes"`
	Container      bool                `json:"container,omitempty"`
	Auxiliary      bool                `json:"auxiliary,omitempty"`
}

type wireSchema struct {
	ObjectClassInfos []wireObjectClassInfo `json:"object_classes"`
	// Classes by operation; a nil list is sent as null and kept nil.
	SupportedObjectClassesByOperation map[string][]string `json:"supported_by_operation"`
}

func encodeSchema(s framework.Schema) (wireSchema, error) {
	out := wireSchema{}
	if s.ObjectClassInfos != nil {
		out.ObjectClassInfos = make([]wireObjectClassInfo, 0, len(s.ObjectClassInfos))
	}
	for _, oci := range s.ObjectClassInfos {
		w := wireObjectClassInfo{Type: oci.Type, Container: oci.Container, Auxiliary: oci.Auxiliary}
		if oci.AttributeInfos != nil {
			w.AttributeInfos = make([]wireAttributeInfo, 0, len(oci.AttributeInfos))
		}
		for _, ai := range oci.AttributeInfos {
			name, ok := typeNames[ai.Type]
			if !ok {
				return wireSchema{}, fmt.Errorf("attribute %s: unsupported type %v", ai.Name, ai.Type)
			}
			w.AttributeInfos = append(w.AttributeInfos, wireAttributeInfo{Name: ai.Name, NativeName: ai.NativeName, Type: name, Flags: uint16(ai.Flags)})
		}
		out.ObjectClassInfos = append(out.ObjectClassInfos, w)
	}
	if s.SupportedObjectClassesByOperation != nil {
		out.SupportedObjectClassesByOperation = make(map[string][]string, len(s.SupportedObjectClassesByOperation))
		for op, classes := range s.SupportedObjectClassesByOperation {
			out.SupportedObjectClassesByOperation[string(op)] = classes
		}
	}
	return out, nil
}

func decodeSchema(w wireSchema) (framework.Schema, error) {
	out := framework.Schema{}
	if w.ObjectClassInfos != nil {
		out.ObjectClassInfos = make([]framework.ObjectClassInfo, 0, len(w.ObjectClassInfos))
	}
	for _, oci := range w.ObjectClassInfos {
		info := framework.ObjectClassInfo{Type: oci.Type, Container: oci.Container, Auxiliary: oci.Auxiliary}
		if oci.AttributeInfos != nil {
			info.AttributeInfos = make([]framework.AttributeInfo, 0, len(oci.AttributeInfos))
		}
		for _, ai := range oci.AttributeInfos {
			t, ok := typeByName(ai.Type)
			if !ok {
				return framework.Schema{}, fmt.Errorf("attribute %s: unknown type %q", ai.Name, ai.Type)
			}
			info.AttributeInfos = append(info.AttributeInfos, framework.AttributeInfo{Name: ai.Name, NativeName: ai.NativeName, Type: t, Flags: framework.AttributeFlag(ai.Flags)})
		}
		out.ObjectClassInfos = append(out.ObjectClassInfos, info)
	}
	if w.SupportedObjectClassesByOperation != nil {
		out.SupportedObjectClassesByOperation = make(map[framework.OperationType][]string, len(w.SupportedObjectClassesByOperation))
		for op, classes := range w.SupportedObjectClassesByOperation {
			out.SupportedObjectClassesByOperation[framework.OperationType(op)] = classes
		}
	}
	return out, nil
}

type wireProperty struct {
	Name         string      `json:"name"`
	Type         string      `json:"type,omitempty"`
	Required     bool        `json:"required,omitempty"`
	Confidential bool        `json:"confidential,omitempty"`
	DisplayName  string      `json:"display_name,omitempty"`
	HelpMessage  string      `json:"help_message,omitempty"`
	Group        string      `json:"group,omitempty"`
	Order        int         `json:"order,omitempty"`
	Values       []wireValue `json:"values"`
}

func encodeProperties(props []framework.ConfigurationProperty) ([]wireProperty, error) {
	out := make([]wireProperty, 0, len(props))
	for _, p := range props {
		values, err := encodeValues(p.Values)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", p.Name, err)
		}
		out = append(out, wireProperty{
			Name: p.Name, Type: p.Type, Required: p.Required, Confidential: p.Confidential,
			DisplayName: p.DisplayName, HelpMessage: p.HelpMessage, Group: p.Group, Order: p.Order,
			Values: values,
		})
	}
	return out, nil
}

func decodeProperties(ws []wireProperty) ([]framework.ConfigurationProperty, error) {
	out := make([]framework.ConfigurationProperty, 0, len(ws))
	for _, w := range ws {
		values, err := decodeValues(w.Values)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", w.Name, err)
		}
		out = append(out, framework.ConfigurationProperty{
			Name: w.Name, Type: w.Type, Required: w.Required, Confidential: w.Confidential,
			DisplayName: w.DisplayName, HelpMessage: w.HelpMessage, Group: w.Group, Order: w.Order,
			Values: values,
		})
	}
	return out, nil
}
