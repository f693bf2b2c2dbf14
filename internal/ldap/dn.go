package ldap

import (
	"strings"

	goldap "github.com/go-ldap/ldap/v3"

	"github.com/allisson/lightldap/internal/directory/domain"
)

// rdn is one attribute=value component of a distinguished name. attr is lowercased.
type rdn struct {
	attr  string
	value string
}

// dn is a parsed distinguished name, most specific component first.
type dn []rdn

// parseDN parses the string form of a DN (RFC 4514). The empty string is the root DSE.
// Multi-valued RDNs never name a directory entry and are rejected.
func parseDN(s string) (dn, error) {
	parsed, err := goldap.ParseDN(s)
	if err != nil {
		return nil, newError(ResultInvalidDNSyntax, "invalid DN %q", s)
	}

	out := make(dn, 0, len(parsed.RDNs))
	for _, r := range parsed.RDNs {
		if len(r.Attributes) != 1 {
			return nil, newError(ResultInvalidDNSyntax, "invalid DN %q", s)
		}
		attr := strings.ToLower(r.Attributes[0].Type)
		if attr == "" || r.Attributes[0].Value == "" {
			return nil, newError(ResultInvalidDNSyntax, "invalid DN %q", s)
		}
		out = append(out, rdn{attr: attr, value: r.Attributes[0].Value})
	}
	return out, nil
}

// String renders the DN with lowercased attribute types.
func (d dn) String() string {
	parts := make([]string, len(d))
	for i, r := range d {
		parts[i] = r.attr + "=" + goldap.EscapeDN(r.value)
	}
	return strings.Join(parts, ",")
}

// equal compares two DNs case-insensitively.
func (d dn) equal(other dn) bool {
	return len(d) == len(other) && d.hasSuffix(other)
}

// hasSuffix reports whether d ends with suffix.
func (d dn) hasSuffix(suffix dn) bool {
	if len(suffix) > len(d) {
		return false
	}
	offset := len(d) - len(suffix)
	for i, r := range suffix {
		c := d[offset+i]
		if c.attr != r.attr || !strings.EqualFold(c.value, r.value) {
			return false
		}
	}
	return true
}

// dnKind classifies a DN against the directory tree.
type dnKind int

const (
	dnRootDSE dnKind = iota
	dnBase
	dnPeople
	dnGroups
	dnUser
	dnGroup
	dnOutside
)

// tree is the fixed layout of the directory:
//
//	<base>
//	├── ou=people   uid=<user id>
//	└── ou=groups   cn=<group display name>
type tree struct {
	base   dn
	people dn
	groups dn
}

func newTree(baseDN string) (*tree, error) {
	base, err := parseDN(baseDN)
	if err != nil {
		return nil, err
	}
	if len(base) == 0 {
		return nil, newError(ResultInvalidDNSyntax, "base DN must not be empty")
	}
	return &tree{
		base:   base,
		people: append(dn{{attr: "ou", value: "people"}}, base...),
		groups: append(dn{{attr: "ou", value: "groups"}}, base...),
	}, nil
}

func (t *tree) baseDN() string {
	return t.base.String()
}

func (t *tree) peopleDN() string {
	return t.people.String()
}

func (t *tree) groupsDN() string {
	return t.groups.String()
}

func (t *tree) userDN(userID string) string {
	return "uid=" + goldap.EscapeDN(userID) + "," + t.peopleDN()
}

func (t *tree) groupDN(displayName string) string {
	return "cn=" + goldap.EscapeDN(displayName) + "," + t.groupsDN()
}

// classify locates d in the tree. For user and group entries it also returns the naming
// value: the normalized user id or the group display name.
func (t *tree) classify(d dn) (dnKind, string) {
	switch {
	case len(d) == 0:
		return dnRootDSE, ""
	case d.equal(t.base):
		return dnBase, ""
	case d.equal(t.people):
		return dnPeople, ""
	case d.equal(t.groups):
		return dnGroups, ""
	case len(d) == len(t.people)+1 && d.hasSuffix(t.people) && (d[0].attr == "uid" || d[0].attr == "cn"):
		return dnUser, domain.NormalizeUserID(d[0].value)
	case len(d) == len(t.groups)+1 && d.hasSuffix(t.groups) && d[0].attr == "cn":
		return dnGroup, d[0].value
	default:
		return dnOutside, ""
	}
}

// userIDFromDN resolves the user named by a DN string.
func (t *tree) userIDFromDN(s string) (string, bool) {
	d, err := parseDN(s)
	if err != nil {
		return "", false
	}
	if kind, id := t.classify(d); kind == dnUser {
		return id, true
	}
	return "", false
}

// groupNameFromDN resolves the group named by a DN string.
func (t *tree) groupNameFromDN(s string) (string, bool) {
	d, err := parseDN(s)
	if err != nil {
		return "", false
	}
	if kind, name := t.classify(d); kind == dnGroup {
		return name, true
	}
	return "", false
}

// bindUserID resolves the name of a bind request. Besides the user DN, a user may bind
// with cn=<id>,ou=people,<base> or the bare user id.
func (t *tree) bindUserID(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	if !strings.Contains(name, "=") {
		return domain.NormalizeUserID(name), true
	}
	return t.userIDFromDN(name)
}
