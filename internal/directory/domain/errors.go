package domain

import (
	"github.com/allisson/lightldap/internal/errors"
)

// Directory errors.
var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.Wrap(errors.ErrNotFound, "user not found")

	// ErrUserAlreadyExists indicates the user id or email is taken.
	ErrUserAlreadyExists = errors.Wrap(errors.ErrConflict, "user already exists")

	// ErrGroupNotFound indicates the requested group does not exist.
	ErrGroupNotFound = errors.Wrap(errors.ErrNotFound, "group not found")

	// ErrGroupAlreadyExists indicates the group display name is taken.
	ErrGroupAlreadyExists = errors.Wrap(errors.ErrConflict, "group already exists")

	// ErrAttributeNotFound indicates the attribute is not declared in the schema.
	ErrAttributeNotFound = errors.Wrap(errors.ErrNotFound, "attribute not found")

	// ErrAttributeAlreadyExists indicates the attribute is already declared.
	ErrAttributeAlreadyExists = errors.Wrap(errors.ErrConflict, "attribute already exists")

	// ErrInvalidUserID indicates a malformed user identifier.
	ErrInvalidUserID = errors.Wrap(errors.ErrInvalidInput, "invalid user id")

	// ErrInvalidEmail indicates a malformed email.
	ErrInvalidEmail = errors.Wrap(errors.ErrInvalidInput, "invalid email")

	// ErrInvalidGroupName indicates an empty or oversized group name.
	ErrInvalidGroupName = errors.Wrap(errors.ErrInvalidInput, "invalid group name")

	// ErrInvalidAttributeName indicates a malformed or reserved attribute name.
	ErrInvalidAttributeName = errors.Wrap(errors.ErrInvalidInput, "invalid attribute name")

	// ErrUnknownAttribute indicates an attribute absent from the schema or the entity.
	ErrUnknownAttribute = errors.Wrap(errors.ErrInvalidInput, "unknown attribute")

	// ErrInvalidFilter indicates a structurally invalid filter.
	ErrInvalidFilter = errors.Wrap(errors.ErrInvalidInput, "invalid filter")
)
