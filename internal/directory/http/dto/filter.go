package dto

import (
	"encoding/json"

	"github.com/allisson/lightldap/internal/directory/domain"
	apperrors "github.com/allisson/lightldap/internal/errors"
)

// maxFilterDepth bounds the nesting accepted from clients.
const maxFilterDepth = 32

// FilterRequest is the JSON form of a directory filter. Exactly one field must be set:
//
//	{"and": [{"equality": {"attribute": "member_of", "value": "eng"}}, {"present": "email"}]}
//	{"not": {"substring": {"attribute": "display_name", "initial": "al"}}}
type FilterRequest struct {
	And       []*FilterRequest `json:"and,omitempty"`
	Or        []*FilterRequest `json:"or,omitempty"`
	Not       *FilterRequest   `json:"not,omitempty"`
	Equality  *EqualityFilter  `json:"equality,omitempty"`
	Present   *string          `json:"present,omitempty"`
	Substring *SubstringFilter `json:"substring,omitempty"`
	raw       map[string]json.RawMessage
}

// EqualityFilter matches an attribute value exactly.
type EqualityFilter struct {
	Attribute string `json:"attribute"`
	Value     string `json:"value"`
}

// SubstringFilter matches an attribute value by prefix, inner parts and suffix.
type SubstringFilter struct {
	Attribute string   `json:"attribute"`
	Initial   string   `json:"initial"`
	Any       []string `json:"any"`
	Final     string   `json:"final"`
}

// UnmarshalJSON keeps the raw keys so that an empty "and" or "or" array is told apart from
// an absent one.
func (f *FilterRequest) UnmarshalJSON(data []byte) error {
	type plain FilterRequest
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = FilterRequest(p)
	f.raw = raw
	return nil
}

// ParseFilter decodes the "filter" query parameter. An empty string yields a nil filter,
// which matches every entry.
func ParseFilter(s string) (*domain.Filter, error) {
	if s == "" {
		return nil, nil
	}
	var req FilterRequest
	if err := json.Unmarshal([]byte(s), &req); err != nil {
		return nil, apperrors.Wrapf(domain.ErrInvalidFilter, "malformed filter: %v", err)
	}
	return req.ToDomain()
}

// ToDomain converts the request into a domain filter.
func (f *FilterRequest) ToDomain() (*domain.Filter, error) {
	return f.toDomain(0)
}

func (f *FilterRequest) toDomain(depth int) (*domain.Filter, error) {
	if f == nil {
		return nil, apperrors.Wrap(domain.ErrInvalidFilter, "empty filter node")
	}
	if depth > maxFilterDepth {
		return nil, apperrors.Wrap(domain.ErrInvalidFilter, "filter nested too deeply")
	}
	if len(f.raw) != 1 {
		return nil, apperrors.Wrap(domain.ErrInvalidFilter, "each filter node needs exactly one operator")
	}

	switch {
	case f.has("and"):
		children, err := toDomainAll(f.And, depth)
		if err != nil {
			return nil, err
		}
		return domain.And(children...), nil
	case f.has("or"):
		children, err := toDomainAll(f.Or, depth)
		if err != nil {
			return nil, err
		}
		return domain.Or(children...), nil
	case f.Not != nil:
		inner, err := f.Not.toDomain(depth + 1)
		if err != nil {
			return nil, err
		}
		return domain.Not(inner), nil
	case f.Equality != nil:
		return domain.Eq(f.Equality.Attribute, f.Equality.Value), nil
	case f.Present != nil:
		return domain.Present(*f.Present), nil
	case f.Substring != nil:
		return domain.Substring(f.Substring.Attribute, f.Substring.Initial, f.Substring.Any, f.Substring.Final), nil
	default:
		return nil, apperrors.Wrap(domain.ErrInvalidFilter, "unknown filter operator")
	}
}

func (f *FilterRequest) has(key string) bool {
	_, ok := f.raw[key]
	return ok
}

func toDomainAll(nodes []*FilterRequest, depth int) ([]*domain.Filter, error) {
	var children []*domain.Filter
	for _, node := range nodes {
		child, err := node.toDomain(depth + 1)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}
