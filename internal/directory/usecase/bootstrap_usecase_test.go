package usecase_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/lightldap/internal/directory/domain"
	"github.com/allisson/lightldap/internal/directory/usecase"
	usecaseMocks "github.com/allisson/lightldap/internal/directory/usecase/mocks"
	apperrors "github.com/allisson/lightldap/internal/errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBootstrapUseCase_Run(t *testing.T) {
	ctx := context.Background()
	input := &usecase.BootstrapInput{
		AdminUserID:   "admin",
		AdminEmail:    "admin@example.com",
		AdminPassword: "abc123!",
	}

	t.Run("Success_IsIdempotent", func(t *testing.T) {
		backend := newBackendHandler(t)
		registrar := &usecaseMocks.MockPasswordRegistrar{}
		registrar.On("RegisterPassword", mock.Anything, "admin", "abc123!").Return(nil).Once()

		bootstrap := usecase.NewBootstrapUseCase(backend, registrar, discardLogger())
		require.NoError(t, bootstrap.Run(ctx, input))
		require.NoError(t, bootstrap.Run(ctx, input))

		users, err := backend.ListUsers(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"admin"}, userIDs(users))

		groups, err := backend.ListGroups(ctx, nil)
		require.NoError(t, err)
		require.Len(t, groups, 3)
		assert.Equal(t, domain.AdminGroup, groups[0].DisplayName)
		assert.Equal(t, []string{"admin"}, groups[0].Members)
		assert.Equal(t, domain.PasswordManagerGroup, groups[1].DisplayName)
		assert.Equal(t, domain.ReadonlyGroup, groups[2].DisplayName)

		registrar.AssertExpectations(t)
	})

	t.Run("Error_ShortPassword", func(t *testing.T) {
		backend := newBackendHandler(t)
		registrar := &usecaseMocks.MockPasswordRegistrar{}
		bootstrap := usecase.NewBootstrapUseCase(backend, registrar, discardLogger())

		err := bootstrap.Run(ctx, &usecase.BootstrapInput{
			AdminUserID:   "admin",
			AdminEmail:    "admin@example.com",
			AdminPassword: "abc",
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

		users, err := backend.ListUsers(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, users)
		registrar.AssertNotCalled(t, "RegisterPassword", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Error_RegistrationFailureRemovesAdmin", func(t *testing.T) {
		backend := newBackendHandler(t)
		registrar := &usecaseMocks.MockPasswordRegistrar{}
		registrar.On("RegisterPassword", mock.Anything, "admin", "abc123!").Return(errors.New("ksf failed")).Once()
		bootstrap := usecase.NewBootstrapUseCase(backend, registrar, discardLogger())

		err := bootstrap.Run(ctx, input)
		assert.Error(t, err)

		_, err = backend.GetUserDetails(ctx, "admin")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("Error_StorageFailure", func(t *testing.T) {
		backend := &usecaseMocks.MockBackendHandler{}
		registrar := &usecaseMocks.MockPasswordRegistrar{}
		storageErr := apperrors.Storage(errors.New("disk full"), "failed to get user")
		backend.On("GetUserDetails", ctx, "admin").Return(nil, storageErr).Once()

		bootstrap := usecase.NewBootstrapUseCase(backend, registrar, discardLogger())
		err := bootstrap.Run(ctx, input)
		assert.ErrorIs(t, err, apperrors.ErrStorage)
		backend.AssertExpectations(t)
	})
}
