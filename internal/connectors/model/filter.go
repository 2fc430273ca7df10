package model

import (
	"errors"
	"fmt"
)

// Filter is a predicate tree pushed down to a resource. It is either a
// Composite or a Leaf.
type Filter interface {
	isFilter()
}

// CompositeOp combines child filters.
type CompositeOp string

const (
	And CompositeOp = "and"
	Or  CompositeOp = "or"
	Not CompositeOp = "not"
)

// LeafOp compares one attribute against the resource's live value.
type LeafOp string

const (
	Equals            LeafOp = "equals"
	Contains          LeafOp = "contains"
	StartsWith        LeafOp = "starts_with"
	EndsWith          LeafOp = "ends_with"
	GreaterThan       LeafOp = "greater_than"
	LessThan          LeafOp = "less_than"
	ContainsAllValues LeafOp = "contains_all_values"
)

// Composite is an And, Or or Not node. Not has exactly one child.
type Composite struct {
	Op       CompositeOp
	Children []Filter
}

// Leaf compares Attribute's expected value using Op.
type Leaf struct {
	Op        LeafOp
	Attribute Attribute
}

func (Composite) isFilter() {}
func (Leaf) isFilter() {}

func AndOf(children ...Filter) Composite { return Composite{Op: And, Children: children} }
func OrOf(children ...Filter) Composite { return Composite{Op: Or, Children: children} }
func NotOf(child Filter) Composite { return Composite{Op: Not, Children: []Filter{child}} }

func EqualTo(a Attribute) Leaf { return Leaf{Op: Equals, Attribute: a} }
func ContainsValue(a Attribute) Leaf { return Leaf{Op: Contains, Attribute: a} }
func StartingWith(a Attribute) Leaf { return Leaf{Op: StartsWith, Attribute: a} }
func EndingWith(a Attribute) Leaf { return Leaf{Op: EndsWith, Attribute: a} }
func Greater(a Attribute) Leaf { return Leaf{Op: GreaterThan, Attribute: a} }
func Less(a Attribute) Leaf { return Leaf{Op: LessThan, Attribute: a} }
func ContainingAll(a Attribute) Leaf { return Leaf{Op: ContainsAllValues, Attribute: a} }

var errInvalidFilter = errors.New("invalid filter")

// ValidateFilter checks the structure of a filter tree without recursion.
// A nil filter is valid and means "match everything".
func ValidateFilter(f Filter) error {
	if f == nil {
		return nil
	}
	stack := []Filter{f}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch node := n.(type) {
		case Composite:
			switch node.Op {
			case And, Or:
				if len(node.Children) == 0 {
					return fmt.Errorf("%w: %s has no children", errInvalidFilter, node.Op)
				}
			case Not:
				if len(node.Children) != 1 {
					return fmt.Errorf("%w: not has %d children, want 1", errInvalidFilter, len(node.Children))
				}
			default:
				return fmt.Errorf("%w: unknown composite op %q", errInvalidFilter, node.Op)
			}
			for _, c := range node.Children {
				if c == nil {
					return fmt.Errorf("%w: nil child in %s", errInvalidFilter, node.Op)
				}
				stack = append(stack, c)
			}
		case Leaf:
			if node.Attribute.Name() == "" {
				return fmt.Errorf("%w: %s without attribute name", errInvalidFilter, node.Op)
			}
			switch node.Op {
			case ContainsAllValues:
				if !node.Attribute.IsMultiValue() {
					return fmt.Errorf("%w: %s on %q needs a multi-valued attribute", errInvalidFilter, node.Op, node.Attribute.Name())
				}
			case Equals, Contains, StartsWith, EndsWith, GreaterThan, LessThan:
				if node.Attribute.IsMultiValue() {
					return fmt.Errorf("%w: %s on %q needs a single-valued attribute", errInvalidFilter, node.Op, node.Attribute.Name())
				}
			default:
				return fmt.Errorf("%w: unknown leaf op %q", errInvalidFilter, node.Op)
			}
		default:
			return fmt.Errorf("%w: unexpected node %T", errInvalidFilter, n)
		}
	}
	return nil
}

// FilterDepth returns the number of levels in the tree; a single leaf is 1.
func FilterDepth(f Filter) int {
	if f == nil {
		return 0
	}
	type frame struct {
		f     Filter
		depth int
	}
	maxDepth := 0
	stack := []frame{{f: f, depth: 1}}
	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if fr.depth > maxDepth {
			maxDepth = fr.depth
		}
		if c, ok := fr.f.(Composite); ok {
			for _, child := range c.Children {
				stack = append(stack, frame{f: child, depth: fr.depth + 1})
			}
		}
	}
	return maxDepth
}

// FilterEqual compares two trees for node type, operator, attribute and child
// order.
func FilterEqual(a, b Filter) bool {
	type pair struct{ a, b Filter }
	stack := []pair{{a, b}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if p.a == nil || p.b == nil {
			if p.a != nil || p.b != nil {
				return false
			}
			continue
		}
		switch x := p.a.(type) {
		case Composite:
			y, ok := p.b.(Composite)
			if !ok || x.Op != y.Op || len(x.Children) != len(y.Children) {
				return false
			}
			for i := range x.Children {
				stack = append(stack, pair{x.Children[i], y.Children[i]})
			}
		case Leaf:
			y, ok := p.b.(Leaf)
			if !ok || x.Op != y.Op || !x.Attribute.Equal(y.Attribute) {
				return false
			}
		default:
			return false
		}
	}
	return true
}
