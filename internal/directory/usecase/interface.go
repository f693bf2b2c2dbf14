// Package usecase implements the directory capability interface shared by the LDAP and
// HTTP front-ends.
package usecase

import (
	"context"

	"github.com/allisson/lightldap/internal/directory/domain"
)

// UserRepository defines persistence operations for users.
// Implementations must support transaction-aware operations via context propagation.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	Exists(ctx context.Context, userID string) (bool, error)
	List(ctx context.Context, filter *domain.Filter, declared map[string]struct{}) ([]*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	// Delete removes the user with its memberships, attributes, envelope and tokens.
	Delete(ctx context.Context, userID string) error
	SetAttribute(ctx context.Context, userID, name, value string) error
	UnsetAttribute(ctx context.Context, userID, name string) error
}

// GroupRepository defines persistence operations for groups and memberships.
type GroupRepository interface {
	Create(ctx context.Context, group *domain.Group) error
	Get(ctx context.Context, groupID string) (*domain.Group, error)
	GetByName(ctx context.Context, displayName string) (*domain.Group, error)
	Exists(ctx context.Context, groupID string) (bool, error)
	List(ctx context.Context, filter *domain.Filter) ([]*domain.Group, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Group, error)
	Delete(ctx context.Context, groupID string) error
	// AddMember is a no-op when the membership exists.
	AddMember(ctx context.Context, userID, groupID string) error
	// RemoveMember is a no-op when the membership is absent.
	RemoveMember(ctx context.Context, userID, groupID string) error
}

// AttributeSchemaRepository defines persistence operations for custom attribute declarations.
type AttributeSchemaRepository interface {
	Create(ctx context.Context, attribute *domain.AttributeSchema) error
	List(ctx context.Context) ([]*domain.AttributeSchema, error)
	Delete(ctx context.Context, name string) error
}

// BackendHandler is the capability interface over the directory store. Every read and
// write issued by the LDAP server and the HTTP API goes through it.
//
// User ids are case-insensitive: every method normalizes them before use.
type BackendHandler interface {
	// CreateUser stores a new user. Returns ErrUserAlreadyExists when the id or email is
	// taken and an ErrInvalidInput error for a malformed id, email or undeclared attribute.
	CreateUser(ctx context.Context, input *domain.CreateUserInput) (*domain.User, error)

	// GetUserDetails returns the user with attributes and group ids.
	GetUserDetails(ctx context.Context, userID string) (*domain.User, error)

	// UpdateUser applies a partial update. Nil fields and absent attribute keys are
	// left untouched; an AttributePatch with Unset removes the attribute.
	UpdateUser(ctx context.Context, userID string, input *domain.UpdateUserInput) (*domain.User, error)

	// DeleteUser removes the user and every membership in one transaction.
	DeleteUser(ctx context.Context, userID string) error

	// ListUsers returns the users matching filter ordered by id. A nil filter matches all.
	ListUsers(ctx context.Context, filter *domain.Filter) ([]*domain.User, error)

	// CreateGroup stores a new group. Returns ErrGroupAlreadyExists when the name is taken.
	CreateGroup(ctx context.Context, displayName string) (*domain.Group, error)

	// GetGroupDetails returns the group with its members.
	GetGroupDetails(ctx context.Context, groupID string) (*domain.Group, error)

	// ListGroups returns the groups matching filter ordered by display name.
	ListGroups(ctx context.Context, filter *domain.Filter) ([]*domain.Group, error)

	// AddUserToGroup adds a membership. Adding an existing membership succeeds.
	AddUserToGroup(ctx context.Context, userID, groupID string) error

	// RemoveUserFromGroup removes a membership. Removing an absent membership succeeds.
	RemoveUserFromGroup(ctx context.Context, userID, groupID string) error

	// DeleteGroup removes the group and its memberships.
	DeleteGroup(ctx context.Context, groupID string) error

	// GetUserGroups returns the groups the user belongs to ordered by display name.
	GetUserGroups(ctx context.Context, userID string) ([]*domain.Group, error)

	// CreateAttribute declares a custom user attribute.
	CreateAttribute(ctx context.Context, name string, isEditable bool) (*domain.AttributeSchema, error)

	// ListAttributes returns the declared attributes ordered by name.
	ListAttributes(ctx context.Context) ([]*domain.AttributeSchema, error)

	// DeleteAttribute removes a declaration and every stored value of it.
	DeleteAttribute(ctx context.Context, name string) error
}

// PasswordRegistrar stores a password for a user through the in-process registration flow.
type PasswordRegistrar interface {
	RegisterPassword(ctx context.Context, userID, password string) error
}

// BootstrapUseCase prepares the directory for first use.
type BootstrapUseCase interface {
	// Run creates the administrator and the privileged groups when missing. Running it
	// again changes nothing.
	Run(ctx context.Context, input *BootstrapInput) error
}
