package ldap

import (
	"strings"

	ber "github.com/go-asn1-ber/asn1-ber"

	"github.com/allisson/lightldap/internal/directory/domain"
)

// Context tags of the Filter CHOICE.
const (
	filterAnd             ber.Tag = 0
	filterOr              ber.Tag = 1
	filterNot             ber.Tag = 2
	filterEquality        ber.Tag = 3
	filterSubstrings      ber.Tag = 4
	filterGreaterOrEqual  ber.Tag = 5
	filterLessOrEqual     ber.Tag = 6
	filterPresent         ber.Tag = 7
	filterApprox          ber.Tag = 8
	filterExtensibleMatch ber.Tag = 9
)

// Context tags of the SubstringFilter components.
const (
	substringInitial ber.Tag = 0
	substringAny     ber.Tag = 1
	substringFinal   ber.Tag = 2
)

const maxProtocolFilterDepth = 32

// substrings is a decoded SubstringFilter.
type substrings struct {
	attr    string
	initial string
	middle  []string
	final   string
}

func parseSubstrings(f *ber.Packet) (substrings, bool) {
	if len(f.Children) != 2 {
		return substrings{}, false
	}
	sub := substrings{attr: packetString(f.Children[0])}
	for _, part := range f.Children[1].Children {
		switch part.Tag {
		case substringInitial:
			sub.initial = packetString(part)
		case substringAny:
			sub.middle = append(sub.middle, packetString(part))
		case substringFinal:
			sub.final = packetString(part)
		default:
			return substrings{}, false
		}
	}
	return sub, true
}

// match evaluates the substring assertion case-insensitively.
func (s substrings) match(value string) bool {
	v := strings.ToLower(value)
	initial := strings.ToLower(s.initial)
	if !strings.HasPrefix(v, initial) {
		return false
	}
	v = v[len(initial):]
	for _, part := range s.middle {
		part = strings.ToLower(part)
		idx := strings.Index(v, part)
		if idx < 0 {
			return false
		}
		v = v[idx+len(part):]
	}
	return strings.HasSuffix(v, strings.ToLower(s.final))
}

// entity is the kind of stored entry a filter is translated for.
type entity int

const (
	entityUser entity = iota
	entityGroup
)

// filterTranslator turns a protocol filter into a directory filter. Attributes the
// directory cannot answer translate to a non-matching filter instead of an error, so a
// client asking for an unknown attribute gets no entries.
type filterTranslator struct {
	tree   *tree
	entity entity
	// declared holds the lowercased names of the custom user attributes.
	declared map[string]string
}

func (t *filterTranslator) translate(f *ber.Packet) (*domain.Filter, error) {
	return t.node(f, 0)
}

func (t *filterTranslator) node(f *ber.Packet, depth int) (*domain.Filter, error) {
	if f == nil || f.ClassType != ber.ClassContext {
		return nil, newError(ResultProtocolError, "invalid filter")
	}
	if depth > maxProtocolFilterDepth {
		return nil, newError(ResultUnwillingToPerform, "filter nested too deeply")
	}

	switch f.Tag {
	case filterAnd, filterOr:
		var children []*domain.Filter
		for _, child := range f.Children {
			c, err := t.node(child, depth+1)
			if err != nil {
				return nil, err
			}
			children = append(children, c)
		}
		if f.Tag == filterAnd {
			return domain.And(children...), nil
		}
		return domain.Or(children...), nil
	case filterNot:
		if len(f.Children) != 1 {
			return nil, newError(ResultProtocolError, "not filter requires one operand")
		}
		inner, err := t.node(f.Children[0], depth+1)
		if err != nil {
			return nil, err
		}
		return domain.Not(inner), nil
	case filterEquality, filterApprox:
		if len(f.Children) != 2 {
			return nil, newError(ResultProtocolError, "invalid attribute value assertion")
		}
		return t.equality(packetString(f.Children[0]), packetString(f.Children[1])), nil
	case filterPresent:
		return t.present(packetString(f)), nil
	case filterSubstrings:
		sub, ok := parseSubstrings(f)
		if !ok {
			return nil, newError(ResultProtocolError, "invalid substring filter")
		}
		return t.substring(sub), nil
	case filterGreaterOrEqual, filterLessOrEqual, filterExtensibleMatch:
		return domain.MatchNone(), nil
	default:
		return nil, newError(ResultProtocolError, "unknown filter type %d", f.Tag)
	}
}

// field maps a protocol attribute onto a directory attribute. ok is false for attributes
// the entity does not have.
func (t *filterTranslator) field(attr string) (string, bool) {
	attr = strings.ToLower(strings.TrimSpace(attr))
	if t.entity == entityGroup {
		switch attr {
		case "cn", "displayname", "uid", "id":
			return domain.AttrDisplayName, true
		case "member", "uniquemember":
			return domain.AttrMember, true
		case "entryuuid":
			return domain.AttrUUID, true
		}
		return "", false
	}

	switch attr {
	case "uid", "user_id", "id":
		return domain.AttrUserID, true
	case "cn", "displayname":
		return domain.AttrDisplayName, true
	case "mail", "email":
		return domain.AttrEmail, true
	case "givenname", "first_name":
		return domain.AttrFirstName, true
	case "sn", "last_name":
		return domain.AttrLastName, true
	case "memberof":
		return domain.AttrMemberOf, true
	case "entryuuid":
		return domain.AttrUUID, true
	}
	if name, ok := t.declared[attr]; ok {
		return name, true
	}
	return "", false
}

func (t *filterTranslator) objectClasses() []string {
	if t.entity == entityGroup {
		return groupObjectClasses
	}
	return userObjectClasses
}

func (t *filterTranslator) equality(attr, value string) *domain.Filter {
	if strings.EqualFold(attr, "objectClass") {
		for _, class := range t.objectClasses() {
			if strings.EqualFold(class, value) {
				return domain.MatchAll()
			}
		}
		return domain.MatchNone()
	}

	field, ok := t.field(attr)
	if !ok {
		return domain.MatchNone()
	}

	switch field {
	case domain.AttrMemberOf:
		name, ok := t.tree.groupNameFromDN(value)
		if !ok {
			return domain.MatchNone()
		}
		return domain.Eq(domain.AttrMemberOf, name)
	case domain.AttrMember:
		userID, ok := t.tree.userIDFromDN(value)
		if !ok {
			return domain.MatchNone()
		}
		return domain.Eq(domain.AttrMember, userID)
	default:
		return domain.Eq(field, value)
	}
}

func (t *filterTranslator) present(attr string) *domain.Filter {
	if strings.EqualFold(attr, "objectClass") {
		return domain.MatchAll()
	}
	field, ok := t.field(attr)
	if !ok {
		return domain.MatchNone()
	}
	return domain.Present(field)
}

func (t *filterTranslator) substring(sub substrings) *domain.Filter {
	field, ok := t.field(sub.attr)
	if !ok || field == domain.AttrMemberOf || field == domain.AttrMember {
		return domain.MatchNone()
	}
	return domain.Substring(field, sub.initial, sub.middle, sub.final)
}
