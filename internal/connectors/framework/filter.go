package framework

// Filter is a search or sync predicate. The concrete types below are the
// complete set.
type Filter interface {
	filter()
}

type EqualsFilter struct{ Attribute Attribute }
type ContainsFilter struct{ Attribute Attribute }
type StartsWithFilter struct{ Attribute Attribute }
type EndsWithFilter struct{ Attribute Attribute }
type GreaterThanFilter struct{ Attribute Attribute }
type LessThanFilter struct{ Attribute Attribute }
type ContainsAllValuesFilter struct{ Attribute Attribute }

type AndFilter struct{ Filters []Filter }
type OrFilter struct{ Filters []Filter }
type NotFilter struct{ Filter Filter }

func (EqualsFilter) filter() {}
func (ContainsFilter) filter() {}
func (StartsWithFilter) filter() {}
func (EndsWithFilter) filter() {}
func (GreaterThanFilter) filter() {}
func (LessThanFilter) filter() {}
func (ContainsAllValuesFilter) filter() {}
func (AndFilter) filter() {}
func (OrFilter) filter() {}
func (NotFilter) filter() {}

// LeafAttribute returns the attribute of a leaf filter.
func LeafAttribute(f Filter) (Attribute, bool) {
	switch x := f.(type) {
	case EqualsFilter:
		return x.Attribute, true
	case ContainsFilter:
		return x.Attribute, true
	case StartsWithFilter:
		return x.Attribute, true
	case EndsWithFilter:
		return x.Attribute, true
	case GreaterThanFilter:
		return x.Attribute, true
	case LessThanFilter:
		return x.Attribute, true
	case ContainsAllValuesFilter:
		return x.Attribute, true
	default:
		return Attribute{}, false
	}
}
