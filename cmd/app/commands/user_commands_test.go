package commands

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/lightldap/internal/directory/domain"
	directoryMocks "github.com/allisson/lightldap/internal/directory/usecase/mocks"
	"github.com/allisson/lightldap/internal/mail"
)

func TestRunCreateUser(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	userUUID := uuid.New()

	input := &domain.CreateUserInput{
		ID:          "alice",
		Email:       "alice@example.com",
		DisplayName: "Alice",
	}
	created := &domain.User{ID: "alice", Email: "alice@example.com", DisplayName: "Alice", UUID: userUUID}

	t.Run("with-password-and-group", func(t *testing.T) {
		backend := &directoryMocks.MockBackendHandler{}
		passwords := &directoryMocks.MockPasswordRegistrar{}
		engGroup := &domain.Group{ID: "g-eng", DisplayName: "eng"}

		backend.On("ListGroups", ctx, domain.Eq(domain.AttrDisplayName, "eng")).
			Return([]*domain.Group{engGroup}, nil)
		backend.On("CreateUser", ctx, input).Return(created, nil)
		passwords.On("RegisterPassword", ctx, "alice", "password123").Return(nil)
		backend.On("AddUserToGroup", ctx, "alice", "g-eng").Return(nil)

		var out bytes.Buffer
		err := RunCreateUser(ctx, backend, passwords, logger, CreateUserParams{
			UserID:      "alice",
			Email:       "alice@example.com",
			DisplayName: "Alice",
			Password:    "password123",
			Groups:      []string{"eng"},
		}, "text", IOTuple{Writer: &out})

		require.NoError(t, err)
		assert.Contains(t, out.String(), "User ID: alice")
		assert.Contains(t, out.String(), userUUID.String())
		assert.NotContains(t, out.String(), "No password set")
		backend.AssertExpectations(t)
		passwords.AssertExpectations(t)
	})

	t.Run("without-password-json", func(t *testing.T) {
		backend := &directoryMocks.MockBackendHandler{}
		passwords := &directoryMocks.MockPasswordRegistrar{}
		backend.On("CreateUser", ctx, input).Return(created, nil)

		var out bytes.Buffer
		err := RunCreateUser(ctx, backend, passwords, logger, CreateUserParams{
			UserID:      "alice",
			Email:       "alice@example.com",
			DisplayName: "Alice",
		}, "json", IOTuple{Writer: &out})

		require.NoError(t, err)
		assert.Contains(t, out.String(), `"has_password": false`)
		passwords.AssertNotCalled(t, "RegisterPassword", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown-group", func(t *testing.T) {
		backend := &directoryMocks.MockBackendHandler{}
		passwords := &directoryMocks.MockPasswordRegistrar{}
		backend.On("ListGroups", ctx, mock.Anything).Return([]*domain.Group{}, nil)

		err := RunCreateUser(ctx, backend, passwords, logger, CreateUserParams{
			UserID: "alice",
			Email:  "alice@example.com",
			Groups: []string{"missing"},
		}, "text", IOTuple{Writer: &bytes.Buffer{}})

		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrGroupNotFound))
		backend.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
	})

	t.Run("create-error", func(t *testing.T) {
		backend := &directoryMocks.MockBackendHandler{}
		passwords := &directoryMocks.MockPasswordRegistrar{}
		backend.On("CreateUser", ctx, input).Return(nil, domain.ErrUserAlreadyExists)

		err := RunCreateUser(ctx, backend, passwords, logger, CreateUserParams{
			UserID:      "alice",
			Email:       "alice@example.com",
			DisplayName: "Alice",
		}, "text", IOTuple{Writer: &bytes.Buffer{}})

		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrUserAlreadyExists))
	})
}

func TestRunSetPassword(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("flag", func(t *testing.T) {
		passwords := &directoryMocks.MockPasswordRegistrar{}
		passwords.On("RegisterPassword", ctx, "alice", "password123").Return(nil)

		var out bytes.Buffer
		err := RunSetPassword(ctx, passwords, logger, "alice", "password123", IOTuple{Writer: &out})

		require.NoError(t, err)
		assert.Contains(t, out.String(), "Password set for alice")
		passwords.AssertExpectations(t)
	})

	t.Run("prompt", func(t *testing.T) {
		passwords := &directoryMocks.MockPasswordRegistrar{}
		passwords.On("RegisterPassword", ctx, "alice", "from stdin").Return(nil)

		var out bytes.Buffer
		err := RunSetPassword(ctx, passwords, logger, "alice", "", IOTuple{
			Reader: strings.NewReader("from stdin\n"),
			Writer: &out,
		})

		require.NoError(t, err)
		assert.Contains(t, out.String(), "Password: ")
		passwords.AssertExpectations(t)
	})

	t.Run("empty-prompt", func(t *testing.T) {
		passwords := &directoryMocks.MockPasswordRegistrar{}

		err := RunSetPassword(ctx, passwords, logger, "alice", "", IOTuple{
			Reader: strings.NewReader("\n"),
			Writer: &bytes.Buffer{},
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "password cannot be empty")
	})

	t.Run("register-error", func(t *testing.T) {
		passwords := &directoryMocks.MockPasswordRegistrar{}
		passwords.On("RegisterPassword", ctx, "ghost", "password123").Return(domain.ErrUserNotFound)

		err := RunSetPassword(ctx, passwords, logger, "ghost", "password123", IOTuple{Writer: &bytes.Buffer{}})

		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrUserNotFound))
	})
}

func TestRunSendTestEmail(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	mailer := mail.NewLogMailer(mail.RelayConfig{Host: "smtp.example.com", Port: 587}, logger)

	t.Run("success", func(t *testing.T) {
		var out bytes.Buffer
		err := RunSendTestEmail(ctx, mailer, logger, &out, "sender@example.com", "alice@example.com")

		require.NoError(t, err)
		assert.Contains(t, out.String(), "alice@example.com")
		assert.Contains(t, out.String(), "SMTP delivery is not enabled")
		assert.Contains(t, logs.String(), testEmailSubject)
	})

	t.Run("invalid-recipient", func(t *testing.T) {
		err := RunSendTestEmail(ctx, mailer, logger, &bytes.Buffer{}, "sender@example.com", "nobody")
		require.Error(t, err)
	})
}
