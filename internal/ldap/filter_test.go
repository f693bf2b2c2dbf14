package ldap

import (
	"testing"

	goldap "github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/lightldap/internal/directory/domain"
)

func translateFilter(t *testing.T, tr *filterTranslator, filter string) *domain.Filter {
	t.Helper()
	packet, err := goldap.CompileFilter(filter)
	require.NoError(t, err)
	f, err := tr.translate(packet)
	require.NoError(t, err)
	return f
}

func TestFilterTranslator_Users(t *testing.T) {
	tr := &filterTranslator{
		tree:     newTestTree(t),
		entity:   entityUser,
		declared: map[string]string{"phone": "phone"},
	}

	tests := []struct {
		name     string
		filter   string
		expected *domain.Filter
	}{
		{"uid", "(uid=Alice)", domain.Eq(domain.AttrUserID, "Alice")},
		{"mail", "(mail=alice@example.com)", domain.Eq(domain.AttrEmail, "alice@example.com")},
		{"given name", "(givenName=Alice)", domain.Eq(domain.AttrFirstName, "Alice")},
		{"surname", "(sn=Doe)", domain.Eq(domain.AttrLastName, "Doe")},
		{"cn is the display name", "(cn=Alice Doe)", domain.Eq(domain.AttrDisplayName, "Alice Doe")},
		{"entryUUID", "(entryUUID=abc)", domain.Eq(domain.AttrUUID, "abc")},
		{"custom attribute", "(phone=123)", domain.Eq("phone", "123")},
		{"matching object class", "(objectClass=inetOrgPerson)", domain.MatchAll()},
		{"foreign object class", "(objectClass=groupOfUniqueNames)", domain.MatchNone()},
		{"object class presence", "(objectClass=*)", domain.MatchAll()},
		{"unknown attribute", "(shoeSize=42)", domain.MatchNone()},
		{"unknown attribute presence", "(shoeSize=*)", domain.MatchNone()},
		{"presence", "(mail=*)", domain.Present(domain.AttrEmail)},
		{
			"memberOf group DN",
			"(memberOf=cn=eng,ou=groups,dc=example,dc=com)",
			domain.Eq(domain.AttrMemberOf, "eng"),
		},
		{"memberOf outside the tree", "(memberOf=cn=eng,dc=other)", domain.MatchNone()},
		{"memberOf substring", "(memberOf=cn=eng*)", domain.MatchNone()},
		{"substring", "(cn=al*i*ce)", domain.Substring(domain.AttrDisplayName, "al", []string{"i"}, "ce")},
		{"ordering is unsupported", "(uid>=m)", domain.MatchNone()},
		{"approximate match is equality", "(uid~=alice)", domain.Eq(domain.AttrUserID, "alice")},
		{
			"composite",
			"(&(objectClass=person)(|(uid=alice)(uid=bob))(!(mail=*)))",
			domain.And(
				domain.MatchAll(),
				domain.Or(domain.Eq(domain.AttrUserID, "alice"), domain.Eq(domain.AttrUserID, "bob")),
				domain.Not(domain.Present(domain.AttrEmail)),
			),
		},
		{
			"double negation",
			"(!(!(uid=alice)))",
			domain.Not(domain.Not(domain.Eq(domain.AttrUserID, "alice"))),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, translateFilter(t, tr, tt.filter))
		})
	}
}

func TestFilterTranslator_Groups(t *testing.T) {
	tr := &filterTranslator{tree: newTestTree(t), entity: entityGroup}

	tests := []struct {
		name     string
		filter   string
		expected *domain.Filter
	}{
		{"cn", "(cn=eng)", domain.Eq(domain.AttrDisplayName, "eng")},
		{
			"member DN",
			"(member=uid=Alice,ou=people,dc=example,dc=com)",
			domain.Eq(domain.AttrMember, "alice"),
		},
		{
			"uniqueMember DN",
			"(uniqueMember=uid=bob,ou=people,dc=example,dc=com)",
			domain.Eq(domain.AttrMember, "bob"),
		},
		{"member that is not a user", "(member=cn=eng,ou=groups,dc=example,dc=com)", domain.MatchNone()},
		{"group object class", "(objectClass=groupOfNames)", domain.MatchAll()},
		{"user object class", "(objectClass=person)", domain.MatchNone()},
		{"user attribute", "(mail=a@b.c)", domain.MatchNone()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, translateFilter(t, tr, tt.filter))
		})
	}
}

func TestSubstrings_Match(t *testing.T) {
	sub := substrings{initial: "Al", middle: []string{"i"}, final: "CE"}
	assert.True(t, sub.match("alice"))
	assert.True(t, sub.match("ALIxxICE"))
	assert.False(t, sub.match("bob"))
	assert.False(t, sub.match("alce"))
}
