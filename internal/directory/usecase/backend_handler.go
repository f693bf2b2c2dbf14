package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	"github.com/allisson/lightldap/internal/database"
	"github.com/allisson/lightldap/internal/directory/domain"
	apperrors "github.com/allisson/lightldap/internal/errors"
	customValidation "github.com/allisson/lightldap/internal/validation"
)

// backendHandler implements BackendHandler on top of the SQL repositories.
type backendHandler struct {
	txManager     database.TxManager
	userRepo      UserRepository
	groupRepo     GroupRepository
	attributeRepo AttributeSchemaRepository
}

// NewBackendHandler creates a new BackendHandler with the provided dependencies.
func NewBackendHandler(
	txManager database.TxManager,
	userRepo UserRepository,
	groupRepo GroupRepository,
	attributeRepo AttributeSchemaRepository,
) BackendHandler {
	return &backendHandler{
		txManager:     txManager,
		userRepo:      userRepo,
		groupRepo:     groupRepo,
		attributeRepo: attributeRepo,
	}
}

// CreateUser validates the input and stores the user with its attributes in one transaction.
func (b *backendHandler) CreateUser(ctx context.Context, input *domain.CreateUserInput) (*domain.User, error) {
	if input == nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "missing user input")
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:          domain.NormalizeUserID(input.ID),
		Email:       strings.TrimSpace(input.Email),
		DisplayName: input.DisplayName,
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		UUID:        uuid.New(),
		Attributes:  make(map[string]string, len(input.Attributes)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for name, value := range input.Attributes {
		user.Attributes[strings.ToLower(name)] = value
	}

	if err := validateUserID(user.ID); err != nil {
		return nil, err
	}
	if err := validateEmail(user.Email); err != nil {
		return nil, err
	}

	err := b.txManager.WithTx(ctx, func(ctx context.Context) error {
		declared, err := b.declaredAttributes(ctx)
		if err != nil {
			return err
		}
		for name := range user.Attributes {
			if _, ok := declared[name]; !ok {
				return apperrors.Wrapf(domain.ErrUnknownAttribute, "user attribute %q", name)
			}
		}
		return b.userRepo.Create(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	return b.userRepo.Get(ctx, user.ID)
}

// GetUserDetails retrieves a user by id.
func (b *backendHandler) GetUserDetails(ctx context.Context, userID string) (*domain.User, error) {
	return b.userRepo.Get(ctx, domain.NormalizeUserID(userID))
}

// UpdateUser applies the patch inside one transaction and returns the updated user.
func (b *backendHandler) UpdateUser(
	ctx context.Context,
	userID string,
	input *domain.UpdateUserInput,
) (*domain.User, error) {
	userID = domain.NormalizeUserID(userID)
	if input.IsEmpty() {
		return b.userRepo.Get(ctx, userID)
	}

	if input.Email != nil {
		if err := validateEmail(strings.TrimSpace(*input.Email)); err != nil {
			return nil, err
		}
	}

	err := b.txManager.WithTx(ctx, func(ctx context.Context) error {
		user, err := b.userRepo.Get(ctx, userID)
		if err != nil {
			return err
		}

		if len(input.Attributes) > 0 {
			declared, err := b.declaredAttributes(ctx)
			if err != nil {
				return err
			}
			for _, name := range sortedPatchKeys(input.Attributes) {
				key := strings.ToLower(name)
				if _, ok := declared[key]; !ok {
					return apperrors.Wrapf(domain.ErrUnknownAttribute, "user attribute %q", name)
				}
				patch := input.Attributes[name]
				if patch.Unset {
					err = b.userRepo.UnsetAttribute(ctx, userID, key)
				} else {
					err = b.userRepo.SetAttribute(ctx, userID, key, patch.Value)
				}
				if err != nil {
					return err
				}
			}
		}

		if input.Email != nil {
			user.Email = strings.TrimSpace(*input.Email)
		}
		if input.DisplayName != nil {
			user.DisplayName = *input.DisplayName
		}
		if input.FirstName != nil {
			user.FirstName = *input.FirstName
		}
		if input.LastName != nil {
			user.LastName = *input.LastName
		}
		user.UpdatedAt = time.Now().UTC()

		return b.userRepo.Update(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	return b.userRepo.Get(ctx, userID)
}

// DeleteUser removes the user and everything referencing it atomically.
func (b *backendHandler) DeleteUser(ctx context.Context, userID string) error {
	userID = domain.NormalizeUserID(userID)
	return b.txManager.WithTx(ctx, func(ctx context.Context) error {
		return b.userRepo.Delete(ctx, userID)
	})
}

// ListUsers returns the users matching filter.
func (b *backendHandler) ListUsers(ctx context.Context, filter *domain.Filter) ([]*domain.User, error) {
	declared, err := b.declaredAttributes(ctx)
	if err != nil {
		return nil, err
	}
	return b.userRepo.List(ctx, filter, declared)
}

// CreateGroup stores a new group with a fresh id.
func (b *backendHandler) CreateGroup(ctx context.Context, displayName string) (*domain.Group, error) {
	displayName = strings.TrimSpace(displayName)
	err := validation.Validate(displayName,
		validation.Required,
		validation.RuneLength(1, 255),
		validation.By(func(value interface{}) error {
			if strings.ContainsAny(value.(string), ",=+<>#;\\\"") {
				return validation.NewError("validation_group_name", "must not contain DN special characters")
			}
			return nil
		}),
	)
	if err != nil {
		return nil, apperrors.Wrap(domain.ErrInvalidGroupName, err.Error())
	}

	group := &domain.Group{
		ID:          uuid.Must(uuid.NewV7()).String(),
		DisplayName: displayName,
		UUID:        uuid.New(),
		Members:     []string{},
		CreatedAt:   time.Now().UTC(),
	}
	if err := b.groupRepo.Create(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

// GetGroupDetails retrieves a group by id.
func (b *backendHandler) GetGroupDetails(ctx context.Context, groupID string) (*domain.Group, error) {
	return b.groupRepo.Get(ctx, strings.ToLower(strings.TrimSpace(groupID)))
}

// ListGroups returns the groups matching filter.
func (b *backendHandler) ListGroups(ctx context.Context, filter *domain.Filter) ([]*domain.Group, error) {
	return b.groupRepo.List(ctx, filter)
}

// AddUserToGroup checks both endpoints exist and adds the membership.
func (b *backendHandler) AddUserToGroup(ctx context.Context, userID, groupID string) error {
	userID = domain.NormalizeUserID(userID)
	groupID = strings.ToLower(strings.TrimSpace(groupID))

	return b.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := b.requireEndpoints(ctx, userID, groupID); err != nil {
			return err
		}
		return b.groupRepo.AddMember(ctx, userID, groupID)
	})
}

// RemoveUserFromGroup removes the membership when present.
func (b *backendHandler) RemoveUserFromGroup(ctx context.Context, userID, groupID string) error {
	return b.groupRepo.RemoveMember(ctx, domain.NormalizeUserID(userID), strings.ToLower(strings.TrimSpace(groupID)))
}

// DeleteGroup removes the group and its memberships atomically.
func (b *backendHandler) DeleteGroup(ctx context.Context, groupID string) error {
	groupID = strings.ToLower(strings.TrimSpace(groupID))
	return b.txManager.WithTx(ctx, func(ctx context.Context) error {
		return b.groupRepo.Delete(ctx, groupID)
	})
}

// GetUserGroups returns the groups of an existing user.
func (b *backendHandler) GetUserGroups(ctx context.Context, userID string) ([]*domain.Group, error) {
	userID = domain.NormalizeUserID(userID)
	exists, err := b.userRepo.Exists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrUserNotFound
	}
	return b.groupRepo.ListByUser(ctx, userID)
}

// CreateAttribute declares a custom attribute after checking its name.
func (b *backendHandler) CreateAttribute(
	ctx context.Context,
	name string,
	isEditable bool,
) (*domain.AttributeSchema, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if err := validation.Validate(name, validation.Required, customValidation.AttributeName); err != nil {
		return nil, apperrors.Wrap(domain.ErrInvalidAttributeName, err.Error())
	}
	if domain.IsReservedAttribute(name) {
		return nil, apperrors.Wrapf(domain.ErrInvalidAttributeName, "%q is a built-in attribute", name)
	}

	attribute := &domain.AttributeSchema{
		Name:       name,
		IsEditable: isEditable,
		CreatedAt:  time.Now().UTC(),
	}
	if err := b.attributeRepo.Create(ctx, attribute); err != nil {
		return nil, err
	}
	return attribute, nil
}

// ListAttributes returns every declared attribute.
func (b *backendHandler) ListAttributes(ctx context.Context) ([]*domain.AttributeSchema, error) {
	return b.attributeRepo.List(ctx)
}

// DeleteAttribute removes a declaration and its values atomically.
func (b *backendHandler) DeleteAttribute(ctx context.Context, name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	return b.txManager.WithTx(ctx, func(ctx context.Context) error {
		return b.attributeRepo.Delete(ctx, name)
	})
}

func (b *backendHandler) declaredAttributes(ctx context.Context) (map[string]struct{}, error) {
	attributes, err := b.attributeRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	declared := make(map[string]struct{}, len(attributes))
	for _, attribute := range attributes {
		declared[attribute.Name] = struct{}{}
	}
	return declared, nil
}

func (b *backendHandler) requireEndpoints(ctx context.Context, userID, groupID string) error {
	userExists, err := b.userRepo.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if !userExists {
		return domain.ErrUserNotFound
	}

	groupExists, err := b.groupRepo.Exists(ctx, groupID)
	if err != nil {
		return err
	}
	if !groupExists {
		return domain.ErrGroupNotFound
	}
	return nil
}

func validateUserID(userID string) error {
	if err := validation.Validate(userID, validation.Required, customValidation.UserID); err != nil {
		return apperrors.Wrap(domain.ErrInvalidUserID, err.Error())
	}
	return nil
}

func validateEmail(email string) error {
	if err := validation.Validate(email, validation.Required, customValidation.Email); err != nil {
		return apperrors.Wrap(domain.ErrInvalidEmail, err.Error())
	}
	return nil
}
