package ldap

import (
	"sort"
	"strings"
	"time"

	ber "github.com/go-asn1-ber/asn1-ber"

	"github.com/allisson/lightldap/internal/directory/domain"
)

// OIDs of the supported extended operations.
const (
	PasswordModifyOID = "1.3.6.1.4.1.4203.1.11.1"
	WhoAmIOID         = "1.3.6.1.4.1.4203.1.11.3"
)

const generalizedTimeLayout = "20060102150405Z"

var (
	userObjectClasses  = []string{"inetOrgPerson", "posixAccount", "mailAccount", "person"}
	groupObjectClasses = []string{"groupOfUniqueNames", "groupOfNames"}
)

// attribute is one attribute of an entry. Operational attributes are only returned when
// asked for by name or with "+".
type attribute struct {
	name        string
	values      []string
	operational bool
}

// entry is a search result before projection.
type entry struct {
	dn         string
	attributes []attribute
}

func (e *entry) add(name string, values ...string) {
	e.attributes = append(e.attributes, attribute{name: name, values: values})
}

func (e *entry) addOperational(name string, values ...string) {
	e.attributes = append(e.attributes, attribute{name: name, values: values, operational: true})
}

// values returns the values of the named attribute, matched case-insensitively.
func (e *entry) values(name string) ([]string, bool) {
	for _, a := range e.attributes {
		if strings.EqualFold(a.name, name) {
			return a.values, true
		}
	}
	return nil, false
}

// selection is the attribute list of a search request.
type selection struct {
	user        bool
	operational bool
	names       map[string]struct{}
}

// newSelection interprets the requested attributes: an empty list or "*" selects every
// user attribute, "+" every operational one and "1.1" alone selects none.
func newSelection(requested []string) selection {
	sel := selection{names: make(map[string]struct{})}
	if len(requested) == 0 {
		sel.user = true
		return sel
	}
	for _, name := range requested {
		switch name = strings.ToLower(strings.TrimSpace(name)); name {
		case "*":
			sel.user = true
		case "+":
			sel.operational = true
		case "1.1", "":
		default:
			sel.names[name] = struct{}{}
		}
	}
	return sel
}

func (s selection) includes(a attribute) bool {
	if _, ok := s.names[strings.ToLower(a.name)]; ok {
		return true
	}
	if a.operational {
		return s.operational
	}
	return s.user
}

// wantsMemberOf reports whether computing memberOf is needed.
func (s selection) wantsMemberOf() bool {
	_, ok := s.names["memberof"]
	return s.user || ok
}

// packet serializes the entry as a SearchResultEntry, keeping the selected attributes.
func (e *entry) packet(sel selection, typesOnly bool) *ber.Packet {
	attrs := ber.NewSequence("attributes")
	for _, a := range e.attributes {
		if !sel.includes(a) {
			continue
		}
		attr := ber.NewSequence("PartialAttribute")
		attr.AppendChild(octetString(a.name, "type"))
		vals := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSet, nil, "vals")
		if !typesOnly {
			for _, v := range a.values {
				vals.AppendChild(octetString(v, "value"))
			}
		}
		attr.AppendChild(vals)
		attrs.AppendChild(attr)
	}

	op := ber.Encode(ber.ClassApplication, ber.TypeConstructed, tagSearchEntry, nil, "SearchResultEntry")
	op.AppendChild(octetString(e.dn, "objectName"))
	op.AppendChild(attrs)
	return op
}

func generalizedTime(t time.Time) string {
	return t.UTC().Format(generalizedTimeLayout)
}

// userEntry renders a user. groupNames maps group ids to display names for memberOf.
func (t *tree) userEntry(user *domain.User, groupNames map[string]string) *entry {
	e := &entry{dn: t.userDN(user.ID)}
	e.add("objectClass", userObjectClasses...)
	e.add("uid", user.ID)
	if user.Email != "" {
		e.add("mail", user.Email)
	}
	if user.FirstName != "" {
		e.add("givenName", user.FirstName)
	}
	if user.LastName != "" {
		e.add("sn", user.LastName)
	}
	cn := user.DisplayName
	if cn == "" {
		cn = user.ID
	}
	e.add("cn", cn)
	if user.DisplayName != "" {
		e.add("displayName", user.DisplayName)
	}
	if groupNames != nil && len(user.Groups) > 0 {
		memberOf := make([]string, 0, len(user.Groups))
		for _, groupID := range user.Groups {
			if name, ok := groupNames[groupID]; ok {
				memberOf = append(memberOf, t.groupDN(name))
			}
		}
		sort.Strings(memberOf)
		e.add("memberOf", memberOf...)
	}

	names := make([]string, 0, len(user.Attributes))
	for name := range user.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		e.add(name, user.Attributes[name])
	}

	e.addOperational("entryUUID", user.UUID.String())
	e.addOperational("createTimestamp", generalizedTime(user.CreatedAt))
	e.addOperational("modifyTimestamp", generalizedTime(user.UpdatedAt))
	return e
}

// groupEntry renders a group. Members are user ids.
func (t *tree) groupEntry(group *domain.Group) *entry {
	e := &entry{dn: t.groupDN(group.DisplayName)}
	e.add("objectClass", groupObjectClasses...)
	e.add("cn", group.DisplayName)
	e.add("displayName", group.DisplayName)

	members := make([]string, 0, len(group.Members))
	for _, userID := range group.Members {
		members = append(members, t.userDN(userID))
	}
	if len(members) > 0 {
		e.add("member", members...)
		e.add("uniqueMember", members...)
	}

	e.addOperational("entryUUID", group.UUID.String())
	e.addOperational("createTimestamp", generalizedTime(group.CreatedAt))
	return e
}

func (t *tree) rootDSE() *entry {
	e := &entry{}
	e.add("objectClass", "top")
	e.add("namingContexts", t.baseDN())
	e.add("supportedLDAPVersion", "3")
	e.add("supportedExtension", PasswordModifyOID, WhoAmIOID)
	e.add("vendorName", "lightldap")
	return e
}

func (t *tree) baseEntry() *entry {
	e := &entry{dn: t.baseDN()}
	e.add("objectClass", "top", "domain")
	e.add(t.base[0].attr, t.base[0].value)
	return e
}

func (t *tree) peopleEntry() *entry {
	e := &entry{dn: t.peopleDN()}
	e.add("objectClass", "top", "organizationalUnit")
	e.add("ou", "people")
	return e
}

func (t *tree) groupsEntry() *entry {
	e := &entry{dn: t.groupsDN()}
	e.add("objectClass", "top", "organizationalUnit")
	e.add("ou", "groups")
	return e
}

// matchEntry evaluates a protocol filter against an in-memory entry. Used for the fixed
// entries of the tree, which do not live in the store.
func matchEntry(e *entry, f *ber.Packet) bool {
	if f == nil || f.ClassType != ber.ClassContext {
		return false
	}
	switch f.Tag {
	case filterAnd:
		for _, child := range f.Children {
			if !matchEntry(e, child) {
				return false
			}
		}
		return true
	case filterOr:
		for _, child := range f.Children {
			if matchEntry(e, child) {
				return true
			}
		}
		return false
	case filterNot:
		return len(f.Children) == 1 && !matchEntry(e, f.Children[0])
	case filterPresent:
		_, ok := e.values(packetString(f))
		return ok
	case filterEquality, filterApprox:
		if len(f.Children) != 2 {
			return false
		}
		values, _ := e.values(packetString(f.Children[0]))
		want := packetString(f.Children[1])
		for _, v := range values {
			if strings.EqualFold(v, want) {
				return true
			}
		}
		return false
	case filterSubstrings:
		sub, ok := parseSubstrings(f)
		if !ok {
			return false
		}
		values, _ := e.values(sub.attr)
		for _, v := range values {
			if sub.match(v) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
