package ldap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/lightldap/internal/directory/domain"
)

func TestSession_Transitions(t *testing.T) {
	s := NewSession()
	assert.Equal(t, StateUnbound, s.State())

	_, err := s.Principal()
	assert.ErrorIs(t, err, ErrNotBound)

	alice := &Principal{UserID: "alice"}
	require.NoError(t, s.Bind(alice))
	assert.Equal(t, StateBound, s.State())

	p, err := s.Principal()
	require.NoError(t, err)
	assert.Equal(t, alice, p)

	bob := &Principal{UserID: "bob"}
	require.NoError(t, s.Bind(bob))
	p, err = s.Principal()
	require.NoError(t, err)
	assert.Equal(t, "bob", p.UserID)

	require.NoError(t, s.Reset())
	assert.Equal(t, StateUnbound, s.State())

	s.Unbind()
	assert.Equal(t, StateClosed, s.State())
	_, err = s.Principal()
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, s.Bind(alice), ErrSessionClosed)
	assert.ErrorIs(t, s.Reset(), ErrSessionClosed)
}

func TestSession_BindNilPrincipal(t *testing.T) {
	s := NewSession()
	require.Error(t, s.Bind(nil))
	assert.Equal(t, StateUnbound, s.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unbound", StateUnbound.String())
	assert.Equal(t, "bound", StateBound.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(9).String())
}

func TestPrincipal_Roles(t *testing.T) {
	tests := []struct {
		name            string
		groups          []string
		admin           bool
		passwordManager bool
		readonly        bool
		readAll         bool
	}{
		{"regular user", []string{"eng"}, false, false, false, false},
		{"admin", []string{domain.AdminGroup}, true, true, false, true},
		{"password manager", []string{domain.PasswordManagerGroup}, false, true, false, true},
		{"strict readonly", []string{domain.ReadonlyGroup}, false, false, true, true},
		{"admin wins over readonly", []string{domain.ReadonlyGroup, domain.AdminGroup}, true, true, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Principal{UserID: "u", Groups: tt.groups}
			assert.Equal(t, tt.admin, p.IsAdmin())
			assert.Equal(t, tt.passwordManager, p.IsPasswordManager())
			assert.Equal(t, tt.readonly, p.IsReadonly())
			assert.Equal(t, tt.readAll, p.CanReadAll())
		})
	}
}
