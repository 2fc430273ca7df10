// Package adapter translates between the neutral connector model and the
// framework runtime. Every conversion has an inverse, and decoding an
// encoded value yields the original.
package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/open-sspm/open-idm/internal/connectors/framework"
	"github.com/open-sspm/open-idm/internal/connectors/model"
)

var errUnsupportedValue = errors.New("unsupported attribute value")

// EncodeAttribute converts one neutral attribute. An enabled-state attribute
// becomes one native attribute per facet present.
func EncodeAttribute(a model.Attribute) ([]framework.Attribute, error) {
	switch {
	case a.IsIdentifier():
		uid, err := a.UID()
		if err != nil {
			return nil, err
		}
		return []framework.Attribute{{
			Name:     framework.UIDName,
			Values:   []any{uid},
			NameHint: hint(a.Name(), framework.UIDName),
			Revision: a.Revision(),
		}}, nil
	case a.IsEnabledState():
		state, err := a.EnabledState()
		if err != nil {
			return nil, err
		}
		return encodeEnabled(a.Name(), state), nil
	case a.IsSecret():
		s, err := a.Secret()
		if err != nil {
			return nil, err
		}
		out := framework.Attribute{Name: framework.PasswordName, NameHint: hint(a.Name(), framework.PasswordName)}
		if s.IsSet() {
			out.Values = []any{framework.NewGuardedString(s.Reveal())}
		}
		return []framework.Attribute{out}, nil
	case a.IsLoginName():
		v, err := a.Value()
		if err != nil {
			return nil, err
		}
		out := framework.Attribute{Name: framework.NameName, NameHint: hint(a.Name(), framework.NameName)}
		if v != nil {
			out.Values = []any{v}
		}
		return []framework.Attribute{out}, nil
	}

	out := framework.Attribute{Name: a.Name(), MultiValued: a.IsMultiValue()}
	var values []any
	if a.IsMultiValue() {
		values, _ = a.Values()
	} else if v, _ := a.Value(); v != nil {
		values = []any{v}
	}
	for _, v := range values {
		nv, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", a.Name(), err)
		}
		out.Values = append(out.Values, nv)
	}
	return []framework.Attribute{out}, nil
}

// EncodeAttributes converts an attribute list, keeping order.
func EncodeAttributes(attrs []model.Attribute) ([]framework.Attribute, error) {
	out := make([]framework.Attribute, 0, len(attrs))
	for _, a := range attrs {
		native, err := EncodeAttribute(a)
		if err != nil {
			return nil, err
		}
		out = append(out, native...)
	}
	return out, nil
}

// DecodeAttributes converts native attributes back. The enable facets that
// share a name hint are folded into a single enabled-state attribute placed
// where the first facet appeared.
func DecodeAttributes(native []framework.Attribute) ([]model.Attribute, error) {
	out := make([]model.Attribute, 0, len(native))
	states := map[string]int{}
	for _, na := range native {
		switch na.Name {
		case framework.EnableName, framework.EnableDateName, framework.DisableDateName:
			name := unhint(na.NameHint, framework.EnableName)
			idx, seen := states[name]
			if !seen {
				idx = len(out)
				states[name] = idx
				out = append(out, model.Enabled(name, model.EnabledState{}))
			}
			state, _ := out[idx].EnabledState()
			if err := mergeFacet(&state, na); err != nil {
				return nil, err
			}
			out[idx] = model.Enabled(name, state)
		default:
			a, err := DecodeAttribute(na)
			if err != nil {
				return nil, err
			}
			out = append(out, a)
		}
	}
	return out, nil
}

// DecodeAttribute converts one native attribute. Enable facets are decoded
// as an enabled-state attribute holding only that facet.
func DecodeAttribute(na framework.Attribute) (model.Attribute, error) {
	switch na.Name {
	case framework.UIDName:
		uid := framework.UidFromAttribute(na)
		return model.Identifier(unhint(na.NameHint, framework.UIDName), uid.Value, uid.Revision), nil
	case framework.NameName:
		name := unhint(na.NameHint, framework.NameName)
		if len(na.Values) != 1 {
			return model.Attribute{}, fmt.Errorf("attribute %q: login name needs one value, got %d", name, len(na.Values))
		}
		v, ok := na.Values[0].(string)
		if !ok {
			return model.Attribute{}, fmt.Errorf("attribute %q: login name must be a string, got %T", name, na.Values[0])
		}
		return model.LoginName(name, v), nil
	case framework.PasswordName:
		name := unhint(na.NameHint, framework.PasswordName)
		g, _ := na.SingleValue().(*framework.GuardedString)
		if g == nil {
			return model.SecretAttribute(name, model.Secret{}), nil
		}
		s, ok := revealSecret(name, g)
		if !ok {
			return model.SecretAttribute(name, model.Secret{}), nil
		}
		return model.SecretAttribute(name, s), nil
	case framework.EnableName, framework.EnableDateName, framework.DisableDateName:
		var state model.EnabledState
		if err := mergeFacet(&state, na); err != nil {
			return model.Attribute{}, err
		}
		return model.Enabled(unhint(na.NameHint, framework.EnableName), state), nil
	}

	values := make([]any, 0, len(na.Values))
	for _, v := range na.Values {
		mv, ok := decodeValue(na.Name, v)
		if !ok {
			continue
		}
		values = append(values, mv)
	}
	// Several values without the flag are kept rather than truncated.
	if na.MultiValued || len(values) > 1 {
		return model.Multi(na.Name, values...), nil
	}
	if len(values) == 0 {
		return model.Single(na.Name, nil), nil
	}
	return model.Single(na.Name, values[0]), nil
}

func encodeEnabled(name string, state model.EnabledState) []framework.Attribute {
	var out []framework.Attribute
	if state.Enabled != nil {
		out = append(out, framework.Attribute{Name: framework.EnableName, Values: []any{*state.Enabled}, NameHint: hint(name, framework.EnableName)})
	}
	if state.EnabledAt != nil {
		out = append(out, framework.Attribute{Name: framework.EnableDateName, Values: []any{state.EnabledAt.UnixMilli()}, NameHint: hint(name, framework.EnableName)})
	}
	if state.DisabledAt != nil {
		out = append(out, framework.Attribute{Name: framework.DisableDateName, Values: []any{state.DisabledAt.UnixMilli()}, NameHint: hint(name, framework.EnableName)})
	}
	if len(out) == 0 {
		out = append(out, framework.Attribute{Name: framework.EnableName, NameHint: hint(name, framework.EnableName)})
	}
	return out
}

func mergeFacet(state *model.EnabledState, na framework.Attribute) error {
	if len(na.Values) == 0 {
		return nil
	}
	switch na.Name {
	case framework.EnableName:
		b, ok := na.Values[0].(bool)
		if !ok {
			return fmt.Errorf("%s: want bool, got %T", na.Name, na.Values[0])
		}
		state.Enabled = model.Bool(b)
	case framework.EnableDateName, framework.DisableDateName:
		ms, ok := na.Values[0].(int64)
		if !ok {
			return fmt.Errorf("%s: want epoch millis, got %T", na.Name, na.Values[0])
		}
		at := time.UnixMilli(ms).UTC()
		if na.Name == framework.EnableDateName {
			state.EnabledAt = &at
		} else {
			state.DisabledAt = &at
		}
	}
	return nil
}

func encodeValue(v any) (any, error) {
	switch x := v.(type) {
	case string, int64, float64, bool, time.Time:
		return x, nil
	case []byte:
		out := make([]byte, len(x))
		copy(out, x)
		return out, nil
	case model.Secret:
		return framework.NewGuardedString(x.Reveal()), nil
	default:
		return nil, fmt.Errorf("%w: %T", errUnsupportedValue, v)
	}
}

// decodeValue reports false when the value must be treated as absent.
func decodeValue(name string, v any) (any, bool) {
	if g, ok := v.(*framework.GuardedString); ok {
		s, ok := revealSecret(name, g)
		return s, ok
	}
	return v, true
}

func revealSecret(name string, g *framework.GuardedString) (model.Secret, bool) {
	clear, err := g.Reveal()
	if err != nil {
		slog.Warn("secret attribute value unreadable, treating as absent", "attribute", name, "err", err)
		return model.Secret{}, false
	}
	return model.NewSecret(clear), true
}

func hint(name, reserved string) string {
	if name == reserved {
		return ""
	}
	return name
}

func unhint(nameHint, reserved string) string {
	if nameHint == "" {
		return reserved
	}
	return nameHint
}
