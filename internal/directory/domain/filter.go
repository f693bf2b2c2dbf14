package domain

import (
	"fmt"
	"strings"
)

// FilterKind tags the variant held by a Filter.
type FilterKind int

// Filter variants.
const (
	FilterAnd FilterKind = iota
	FilterOr
	FilterNot
	FilterEquality
	FilterPresent
	FilterSubstring
)

// String returns the kind name.
func (k FilterKind) String() string {
	switch k {
	case FilterAnd:
		return "and"
	case FilterOr:
		return "or"
	case FilterNot:
		return "not"
	case FilterEquality:
		return "equality"
	case FilterPresent:
		return "present"
	case FilterSubstring:
		return "substring"
	default:
		return fmt.Sprintf("FilterKind(%d)", int(k))
	}
}

// Filter is a recursive predicate over entry attributes. And, Or and Not use Children;
// Equality uses Attribute and Value; Present uses Attribute; Substring uses Attribute,
// Initial, Any and Final.
//
// And with no children matches every entry, Or with no children matches none.
type Filter struct {
	Kind      FilterKind
	Attribute string
	Value     string
	Initial   string
	Any       []string
	Final     string
	Children  []*Filter
}

// And matches entries matching every child.
func And(children ...*Filter) *Filter {
	return &Filter{Kind: FilterAnd, Children: children}
}

// Or matches entries matching at least one child.
func Or(children ...*Filter) *Filter {
	return &Filter{Kind: FilterOr, Children: children}
}

// Not matches entries not matching inner.
func Not(inner *Filter) *Filter {
	return &Filter{Kind: FilterNot, Children: []*Filter{inner}}
}

// Eq matches entries whose attribute equals value.
func Eq(attribute, value string) *Filter {
	return &Filter{Kind: FilterEquality, Attribute: attribute, Value: value}
}

// Present matches entries having a value for attribute.
func Present(attribute string) *Filter {
	return &Filter{Kind: FilterPresent, Attribute: attribute}
}

// Substring matches entries whose attribute starts with initial, contains every element
// of anyParts in order, and ends with final. Empty parts are ignored.
func Substring(attribute, initial string, anyParts []string, final string) *Filter {
	return &Filter{Kind: FilterSubstring, Attribute: attribute, Initial: initial, Any: anyParts, Final: final}
}

// MatchAll returns a filter matching every entry.
func MatchAll() *Filter {
	return And()
}

// MatchNone returns a filter matching no entry.
func MatchNone() *Filter {
	return Or()
}

// String renders the filter in a prefix notation for logs.
func (f *Filter) String() string {
	if f == nil {
		return "*"
	}
	switch f.Kind {
	case FilterAnd, FilterOr, FilterNot:
		parts := make([]string, 0, len(f.Children))
		for _, c := range f.Children {
			parts = append(parts, c.String())
		}
		return f.Kind.String() + "(" + strings.Join(parts, ",") + ")"
	case FilterEquality:
		return f.Attribute + "=" + f.Value
	case FilterPresent:
		return f.Attribute + "=*"
	case FilterSubstring:
		return f.Attribute + "=" + f.Initial + "*" + strings.Join(f.Any, "*") + "*" + f.Final
	default:
		return f.Kind.String()
	}
}
