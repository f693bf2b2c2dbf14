// Package domain defines the directory entities: users, groups, the attribute schema and
// the filter language used to select them.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is a directory entry under ou=people.
type User struct {
	ID          string
	Email       string
	DisplayName string
	FirstName   string
	LastName    string
	UUID        uuid.UUID
	// Attributes holds the values of schema-declared attributes, keyed by attribute name.
	Attributes map[string]string
	// Groups holds the ids of the groups the user belongs to. Filled by list and get
	// operations, ignored on writes.
	Groups    []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateUserInput carries the fields of a new user.
type CreateUserInput struct {
	ID          string
	Email       string
	DisplayName string
	FirstName   string
	LastName    string
	Attributes  map[string]string
}

// AttributePatch changes one attribute. Unset removes the attribute, otherwise Value replaces it.
type AttributePatch struct {
	Value string
	Unset bool
}

// SetAttribute returns a patch assigning value.
func SetAttribute(value string) AttributePatch {
	return AttributePatch{Value: value}
}

// UnsetAttribute returns a patch removing the attribute.
func UnsetAttribute() AttributePatch {
	return AttributePatch{Unset: true}
}

// UpdateUserInput is a partial update. Nil fields and absent attribute keys are left untouched.
type UpdateUserInput struct {
	Email       *string
	DisplayName *string
	FirstName   *string
	LastName    *string
	Attributes  map[string]AttributePatch
}

// IsEmpty reports whether the patch changes nothing.
func (in *UpdateUserInput) IsEmpty() bool {
	return in == nil ||
		(in.Email == nil && in.DisplayName == nil && in.FirstName == nil && in.LastName == nil &&
			len(in.Attributes) == 0)
}

// NormalizeUserID lowercases and trims a user identifier. User ids are case-insensitive.
func NormalizeUserID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// IsMemberOf reports whether the user belongs to groupID.
func (u *User) IsMemberOf(groupID string) bool {
	for _, g := range u.Groups {
		if g == groupID {
			return true
		}
	}
	return false
}
