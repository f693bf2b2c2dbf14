package usecase

import (
	"context"
	"errors"
	"log/slog"

	validation "github.com/jellydator/validation"

	"github.com/allisson/lightldap/internal/directory/domain"
	apperrors "github.com/allisson/lightldap/internal/errors"
	customValidation "github.com/allisson/lightldap/internal/validation"
)

// BootstrapInput describes the administrator created on first start.
type BootstrapInput struct {
	AdminUserID   string
	AdminEmail    string
	AdminPassword string
}

// Validate checks the bootstrap settings.
func (in *BootstrapInput) Validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.AdminUserID, validation.Required),
		validation.Field(&in.AdminEmail, validation.Required, customValidation.Email),
		validation.Field(&in.AdminPassword, validation.Required, customValidation.Password),
	)
}

// bootstrapUseCase implements BootstrapUseCase.
type bootstrapUseCase struct {
	backend  BackendHandler
	password PasswordRegistrar
	logger   *slog.Logger
}

// NewBootstrapUseCase creates a new BootstrapUseCase.
func NewBootstrapUseCase(backend BackendHandler, password PasswordRegistrar, logger *slog.Logger) BootstrapUseCase {
	return &bootstrapUseCase{
		backend:  backend,
		password: password,
		logger:   logger,
	}
}

// Run makes sure the privileged groups exist and the administrator belongs to lldap_admin.
// The administrator password is only registered when the account is created.
func (b *bootstrapUseCase) Run(ctx context.Context, input *BootstrapInput) error {
	if err := input.Validate(); err != nil {
		return customValidation.WrapValidationError(err)
	}

	adminID := domain.NormalizeUserID(input.AdminUserID)
	if _, err := b.backend.GetUserDetails(ctx, adminID); err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			return err
		}

		b.logger.Info("creating administrator", slog.String("user_id", adminID))
		if _, err := b.backend.CreateUser(ctx, &domain.CreateUserInput{
			ID:          adminID,
			Email:       input.AdminEmail,
			DisplayName: "Administrator",
		}); err != nil {
			return err
		}
		if err := b.password.RegisterPassword(ctx, adminID, input.AdminPassword); err != nil {
			// A later run must be able to retry the registration.
			if delErr := b.backend.DeleteUser(ctx, adminID); delErr != nil {
				err = errors.Join(err, delErr)
			}
			return apperrors.Wrap(err, "failed to register administrator password")
		}
	}

	var adminGroup *domain.Group
	for _, name := range []string{domain.AdminGroup, domain.PasswordManagerGroup, domain.ReadonlyGroup} {
		group, err := b.ensureGroup(ctx, name)
		if err != nil {
			return err
		}
		if name == domain.AdminGroup {
			adminGroup = group
		}
	}

	return b.backend.AddUserToGroup(ctx, adminID, adminGroup.ID)
}

func (b *bootstrapUseCase) ensureGroup(ctx context.Context, name string) (*domain.Group, error) {
	groups, err := b.backend.ListGroups(ctx, domain.Eq(domain.AttrDisplayName, name))
	if err != nil {
		return nil, err
	}
	if len(groups) > 0 {
		return groups[0], nil
	}

	b.logger.Info("creating group", slog.String("group", name))
	group, err := b.backend.CreateGroup(ctx, name)
	if err != nil {
		return nil, err
	}
	return group, nil
}
