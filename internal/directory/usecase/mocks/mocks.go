// Package mocks provides mock implementations of the directory use cases for testing.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/lightldap/internal/directory/domain"
	"github.com/allisson/lightldap/internal/directory/usecase"
)

// MockBackendHandler is a mock implementation of usecase.BackendHandler.
type MockBackendHandler struct {
	mock.Mock
}

// CreateUser mocks the CreateUser method.
func (m *MockBackendHandler) CreateUser(ctx context.Context, input *domain.CreateUserInput) (*domain.User, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// GetUserDetails mocks the GetUserDetails method.
func (m *MockBackendHandler) GetUserDetails(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// UpdateUser mocks the UpdateUser method.
func (m *MockBackendHandler) UpdateUser(
	ctx context.Context,
	userID string,
	input *domain.UpdateUserInput,
) (*domain.User, error) {
	args := m.Called(ctx, userID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// DeleteUser mocks the DeleteUser method.
func (m *MockBackendHandler) DeleteUser(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// ListUsers mocks the ListUsers method.
func (m *MockBackendHandler) ListUsers(ctx context.Context, filter *domain.Filter) ([]*domain.User, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

// CreateGroup mocks the CreateGroup method.
func (m *MockBackendHandler) CreateGroup(ctx context.Context, displayName string) (*domain.Group, error) {
	args := m.Called(ctx, displayName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Group), args.Error(1)
}

// GetGroupDetails mocks the GetGroupDetails method.
func (m *MockBackendHandler) GetGroupDetails(ctx context.Context, groupID string) (*domain.Group, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Group), args.Error(1)
}

// ListGroups mocks the ListGroups method.
func (m *MockBackendHandler) ListGroups(ctx context.Context, filter *domain.Filter) ([]*domain.Group, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Group), args.Error(1)
}

// AddUserToGroup mocks the AddUserToGroup method.
func (m *MockBackendHandler) AddUserToGroup(ctx context.Context, userID, groupID string) error {
	args := m.Called(ctx, userID, groupID)
	return args.Error(0)
}

// RemoveUserFromGroup mocks the RemoveUserFromGroup method.
func (m *MockBackendHandler) RemoveUserFromGroup(ctx context.Context, userID, groupID string) error {
	args := m.Called(ctx, userID, groupID)
	return args.Error(0)
}

// DeleteGroup mocks the DeleteGroup method.
func (m *MockBackendHandler) DeleteGroup(ctx context.Context, groupID string) error {
	args := m.Called(ctx, groupID)
	return args.Error(0)
}

// GetUserGroups mocks the GetUserGroups method.
func (m *MockBackendHandler) GetUserGroups(ctx context.Context, userID string) ([]*domain.Group, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Group), args.Error(1)
}

// CreateAttribute mocks the CreateAttribute method.
func (m *MockBackendHandler) CreateAttribute(
	ctx context.Context,
	name string,
	isEditable bool,
) (*domain.AttributeSchema, error) {
	args := m.Called(ctx, name, isEditable)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AttributeSchema), args.Error(1)
}

// ListAttributes mocks the ListAttributes method.
func (m *MockBackendHandler) ListAttributes(ctx context.Context) ([]*domain.AttributeSchema, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.AttributeSchema), args.Error(1)
}

// DeleteAttribute mocks the DeleteAttribute method.
func (m *MockBackendHandler) DeleteAttribute(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

// MockPasswordRegistrar is a mock implementation of usecase.PasswordRegistrar.
type MockPasswordRegistrar struct {
	mock.Mock
}

// RegisterPassword mocks the RegisterPassword method.
func (m *MockPasswordRegistrar) RegisterPassword(ctx context.Context, userID, password string) error {
	args := m.Called(ctx, userID, password)
	return args.Error(0)
}

var (
	_ usecase.BackendHandler    = (*MockBackendHandler)(nil)
	_ usecase.PasswordRegistrar = (*MockPasswordRegistrar)(nil)
)
