package domain

import (
	"time"

	"github.com/google/uuid"
)

// Groups created at bootstrap that gate access to the directory.
const (
	// AdminGroup members have full read/write access.
	AdminGroup = "lldap_admin"
	// PasswordManagerGroup members may reset passwords of non-admin users.
	PasswordManagerGroup = "lldap_password_manager"
	// ReadonlyGroup members may read the whole directory but never write.
	ReadonlyGroup = "lldap_strict_readonly"
)

// Group is a directory entry under ou=groups.
type Group struct {
	ID          string
	DisplayName string
	UUID        uuid.UUID
	// Members holds the ids of the member users, sorted.
	Members   []string
	CreatedAt time.Time
}

// HasMember reports whether userID is a member of the group.
func (g *Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// IsPrivileged reports whether the group is one of the bootstrap access groups.
func IsPrivileged(displayName string) bool {
	switch displayName {
	case AdminGroup, PasswordManagerGroup, ReadonlyGroup:
		return true
	default:
		return false
	}
}
