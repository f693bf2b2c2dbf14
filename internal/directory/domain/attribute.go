package domain

import "time"

// AttributeSchema declares a custom user attribute.
type AttributeSchema struct {
	Name string
	// IsEditable allows users to change the attribute on their own entry.
	IsEditable bool
	CreatedAt  time.Time
}

// Built-in user attribute names, usable in filters.
const (
	AttrUserID      = "user_id"
	AttrEmail       = "email"
	AttrDisplayName = "display_name"
	AttrFirstName   = "first_name"
	AttrLastName    = "last_name"
	AttrUUID        = "uuid"
	AttrMemberOf    = "member_of"
	AttrMemberOfID  = "member_of_id"
)

// Built-in group attribute names, usable in filters.
const (
	AttrGroupID = "group_id"
	AttrMember  = "member"
)

// reservedAttributeNames cannot be declared in the attribute schema.
var reservedAttributeNames = map[string]struct{}{
	AttrUserID:      {},
	AttrEmail:       {},
	AttrDisplayName: {},
	AttrFirstName:   {},
	AttrLastName:    {},
	AttrUUID:        {},
	AttrMemberOf:    {},
	AttrMemberOfID:  {},
	AttrGroupID:     {},
	AttrMember:      {},
	"password":      {},
	"creation_date": {},
}

// IsReservedAttribute reports whether name collides with a built-in field.
func IsReservedAttribute(name string) bool {
	_, ok := reservedAttributeNames[name]
	return ok
}

// UserSelfEditableFields are the built-in fields a user may change on their own entry.
var UserSelfEditableFields = []string{AttrDisplayName, AttrFirstName, AttrLastName}
