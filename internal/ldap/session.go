package ldap

import (
	"errors"
	"sync"

	"github.com/allisson/lightldap/internal/directory/domain"
)

// State is the bind state of a connection.
type State int

// Connection states. A connection starts Unbound, becomes Bound after a successful
// simple bind and ends Closed after an unbind or a disconnect.
const (
	StateUnbound State = iota
	StateBound
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateBound:
		return "bound"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session errors.
var (
	ErrSessionClosed = errors.New("ldap: session closed")
	ErrNotBound      = errors.New("ldap: session not bound")
)

// Principal is the identity a connection is bound as.
type Principal struct {
	UserID string
	// Groups holds the display names of the groups the user belonged to at bind time.
	Groups []string
}

func (p *Principal) inGroup(group string) bool {
	for _, g := range p.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the principal has full read/write access.
func (p *Principal) IsAdmin() bool {
	return p.inGroup(domain.AdminGroup)
}

// IsPasswordManager reports whether the principal may reset passwords of non-admins.
func (p *Principal) IsPasswordManager() bool {
	return p.IsAdmin() || p.inGroup(domain.PasswordManagerGroup)
}

// IsReadonly reports whether the principal is restricted to reads.
func (p *Principal) IsReadonly() bool {
	return !p.IsAdmin() && p.inGroup(domain.ReadonlyGroup)
}

// CanReadAll reports whether the principal sees every entry of the directory.
func (p *Principal) CanReadAll() bool {
	return p.IsAdmin() || p.inGroup(domain.PasswordManagerGroup) || p.inGroup(domain.ReadonlyGroup)
}

// Session tracks the bind state of one connection.
type Session struct {
	mu        sync.Mutex
	state     State
	principal *Principal
}

// NewSession returns an Unbound session.
func NewSession() *Session {
	return &Session{state: StateUnbound}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Bind moves the session to Bound as principal. Binding again replaces the principal.
func (s *Session) Bind(principal *Principal) error {
	if principal == nil {
		return errors.New("ldap: nil principal")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	s.state = StateBound
	s.principal = principal
	return nil
}

// Reset drops the current identity, as a new bind attempt does before it completes.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	s.state = StateUnbound
	s.principal = nil
	return nil
}

// Unbind closes the session. Further transitions fail with ErrSessionClosed.
func (s *Session) Unbind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateClosed
	s.principal = nil
}

// Principal returns the bound identity.
func (s *Session) Principal() (*Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateBound:
		return s.principal, nil
	case StateClosed:
		return nil, ErrSessionClosed
	default:
		return nil, ErrNotBound
	}
}
