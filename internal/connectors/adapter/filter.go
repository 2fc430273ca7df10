package adapter

import (
	"fmt"

	"github.com/open-sspm/open-idm/internal/connectors/framework"
	"github.com/open-sspm/open-idm/internal/connectors/model"
)

// EncodeFilter converts a filter tree without recursion. Children keep their
// order. A nil filter stays nil.
func EncodeFilter(f model.Filter) (framework.Filter, error) {
	if f == nil {
		return nil, nil
	}
	if err := model.ValidateFilter(f); err != nil {
		return nil, err
	}

	// Post-order walk: a composite is emitted once all of its children have
	// been converted and pushed onto results.
	type frame struct {
		node     model.Filter
		expanded bool
	}
	var results []framework.Filter
	stack := []frame{{node: f}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		switch node := top.node.(type) {
		case model.Leaf:
			stack = stack[:len(stack)-1]
			leaf, err := encodeLeaf(node)
			if err != nil {
				return nil, err
			}
			results = append(results, leaf)
		case model.Composite:
			if !top.expanded {
				top.expanded = true
				for i := len(node.Children) - 1; i >= 0; i-- {
					stack = append(stack, frame{node: node.Children[i]})
				}
				continue
			}
			stack = stack[:len(stack)-1]
			n := len(node.Children)
			children := make([]framework.Filter, n)
			copy(children, results[len(results)-n:])
			results = results[:len(results)-n]
			switch node.Op {
			case model.And:
				results = append(results, framework.AndFilter{Filters: children})
			case model.Or:
				results = append(results, framework.OrFilter{Filters: children})
			case model.Not:
				results = append(results, framework.NotFilter{Filter: children[0]})
			}
		}
	}
	return results[0], nil
}

func encodeLeaf(l model.Leaf) (framework.Filter, error) {
	attrs, err := EncodeAttribute(l.Attribute)
	if err != nil {
		return nil, err
	}
	if len(attrs) != 1 {
		return nil, fmt.Errorf("filter on %q: enabled state must carry exactly one facet", l.Attribute.Name())
	}
	a := attrs[0]
	switch l.Op {
	case model.Equals:
		return framework.EqualsFilter{Attribute: a}, nil
	case model.Contains:
		return framework.ContainsFilter{Attribute: a}, nil
	case model.StartsWith:
		return framework.StartsWithFilter{Attribute: a}, nil
	case model.EndsWith:
		return framework.EndsWithFilter{Attribute: a}, nil
	case model.GreaterThan:
		return framework.GreaterThanFilter{Attribute: a}, nil
	case model.LessThan:
		return framework.LessThanFilter{Attribute: a}, nil
	case model.ContainsAllValues:
		return framework.ContainsAllValuesFilter{Attribute: a}, nil
	default:
		return nil, fmt.Errorf("unknown filter operator %q", l.Op)
	}
}

// DecodeFilter is the inverse of EncodeFilter.
func DecodeFilter(f framework.Filter) (model.Filter, error) {
	if f == nil {
		return nil, nil
	}
	type frame struct {
		node     framework.Filter
		expanded bool
	}
	var results []model.Filter
	stack := []frame{{node: f}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		var children []framework.Filter
		switch node := top.node.(type) {
		case framework.AndFilter:
			children = node.Filters
		case framework.OrFilter:
			children = node.Filters
		case framework.NotFilter:
			children = []framework.Filter{node.Filter}
		default:
			stack = stack[:len(stack)-1]
			leaf, err := decodeLeaf(node)
			if err != nil {
				return nil, err
			}
			results = append(results, leaf)
			continue
		}
		if !top.expanded {
			top.expanded = true
			for i := len(children) - 1; i >= 0; i-- {
				if children[i] == nil {
					return nil, fmt.Errorf("nil child in %T", top.node)
				}
				stack = append(stack, frame{node: children[i]})
			}
			continue
		}
		node := top.node
		stack = stack[:len(stack)-1]
		n := len(children)
		converted := make([]model.Filter, n)
		copy(converted, results[len(results)-n:])
		results = results[:len(results)-n]
		switch node.(type) {
		case framework.AndFilter:
			results = append(results, model.AndOf(converted...))
		case framework.OrFilter:
			results = append(results, model.OrOf(converted...))
		case framework.NotFilter:
			results = append(results, model.NotOf(converted[0]))
		}
	}
	return results[0], nil
}

func decodeLeaf(f framework.Filter) (model.Filter, error) {
	na, ok := framework.LeafAttribute(f)
	if !ok {
		return nil, fmt.Errorf("unknown filter type %T", f)
	}
	a, err := DecodeAttribute(na)
	if err != nil {
		return nil, err
	}
	switch f.(type) {
	case framework.EqualsFilter:
		return model.EqualTo(a), nil
	case framework.ContainsFilter:
		return model.ContainsValue(a), nil
	case framework.StartsWithFilter:
		return model.StartingWith(a), nil
	case framework.EndsWithFilter:
		return model.EndingWith(a), nil
	case framework.GreaterThanFilter:
		return model.Greater(a), nil
	case framework.LessThanFilter:
		return model.Less(a), nil
	default:
		return model.ContainingAll(a), nil
	}
}
