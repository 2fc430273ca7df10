package memory

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/open-sspm/open-idm/internal/connectors/framework"
)

// matches evaluates f against obj. A nil filter matches everything.
func matches(f framework.Filter, obj framework.ConnectorObject) bool {
	switch x := f.(type) {
	case nil:
		return true
	case framework.AndFilter:
		for _, c := range x.Filters {
			if !matches(c, obj) {
				return false
			}
		}
		return true
	case framework.OrFilter:
		for _, c := range x.Filters {
			if matches(c, obj) {
				return true
			}
		}
		return false
	case framework.NotFilter:
		return !matches(x.Filter, obj)
	}

	want, _ := framework.LeafAttribute(f)
	have, ok := obj.Attribute(want.Name)
	if !ok {
		return false
	}
	switch f.(type) {
	case framework.EqualsFilter:
		return slices.EqualFunc(have.Values, want.Values, func(a, b any) bool { return compare(a, b) == 0 })
	case framework.ContainsAllValuesFilter:
		for _, w := range want.Values {
			if !slices.ContainsFunc(have.Values, func(h any) bool { return compare(h, w) == 0 }) {
				return false
			}
		}
		return true
	}

	h, okH := have.SingleValue().(string)
	w, okW := want.SingleValue().(string)
	switch f.(type) {
	case framework.ContainsFilter:
		return okH && okW && strings.Contains(strings.ToLower(h), strings.ToLower(w))
	case framework.StartsWithFilter:
		return okH && okW && strings.HasPrefix(strings.ToLower(h), strings.ToLower(w))
	case framework.EndsWithFilter:
		return okH && okW && strings.HasSuffix(strings.ToLower(h), strings.ToLower(w))
	case framework.GreaterThanFilter:
		return sameType(have.SingleValue(), want.SingleValue()) && compare(have.SingleValue(), want.SingleValue()) > 0
	case framework.LessThanFilter:
		return sameType(have.SingleValue(), want.SingleValue()) && compare(have.SingleValue(), want.SingleValue()) < 0
	}
	return false
}

func sameType(a, b any) bool {
	return a != nil && b != nil && fmt.Sprintf("%T", a) == fmt.Sprintf("%T", b)
}

// compare orders values of the same type. Values of different types compare
// by their type names so the result is stable.
func compare(a, b any) int {
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case int64:
		if y, ok := b.(int64); ok {
			return cmp.Compare(x, y)
		}
	case float64:
		if y, ok := b.(float64); ok {
			return cmp.Compare(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case []byte:
		if y, ok := b.([]byte); ok {
			return strings.Compare(string(x), string(y))
		}
	case *framework.GuardedString:
		if y, ok := b.(*framework.GuardedString); ok {
			if x.Equal(y) {
				return 0
			}
			return -1
		}
	}
	return strings.Compare(fmt.Sprintf("%T", a), fmt.Sprintf("%T", b))
}
