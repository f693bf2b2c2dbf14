// Package mocks provides mock implementations of the authentication use cases for testing.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	authDomain "github.com/allisson/lightldap/internal/auth/domain"
	"github.com/allisson/lightldap/internal/auth/usecase"
)

// MockPasswordUseCase is a mock implementation of usecase.PasswordUseCase.
type MockPasswordUseCase struct {
	mock.Mock
}

// RegisterPassword mocks the RegisterPassword method.
func (m *MockPasswordUseCase) RegisterPassword(ctx context.Context, userID, password string) error {
	args := m.Called(ctx, userID, password)
	return args.Error(0)
}

// VerifyPassword mocks the VerifyPassword method.
func (m *MockPasswordUseCase) VerifyPassword(ctx context.Context, userID, password string) error {
	args := m.Called(ctx, userID, password)
	return args.Error(0)
}

// StartRegistration mocks the StartRegistration method.
func (m *MockPasswordUseCase) StartRegistration(ctx context.Context, userID string, request []byte) ([]byte, error) {
	args := m.Called(ctx, userID, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// FinishRegistration mocks the FinishRegistration method.
func (m *MockPasswordUseCase) FinishRegistration(ctx context.Context, userID string, record []byte) error {
	args := m.Called(ctx, userID, record)
	return args.Error(0)
}

// StartLogin mocks the StartLogin method.
func (m *MockPasswordUseCase) StartLogin(
	ctx context.Context,
	userID string,
	ke1 []byte,
) (*authDomain.LoginStartOutput, error) {
	args := m.Called(ctx, userID, ke1)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.LoginStartOutput), args.Error(1)
}

// FinishLogin mocks the FinishLogin method.
func (m *MockPasswordUseCase) FinishLogin(ctx context.Context, userID string, serverData, ke3 []byte) error {
	args := m.Called(ctx, userID, serverData, ke3)
	return args.Error(0)
}

// MockSessionUseCase is a mock implementation of usecase.SessionUseCase.
type MockSessionUseCase struct {
	mock.Mock
}

// Issue mocks the Issue method.
func (m *MockSessionUseCase) Issue(ctx context.Context, userID string) (*authDomain.TokenPair, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.TokenPair), args.Error(1)
}

// Validate mocks the Validate method.
func (m *MockSessionUseCase) Validate(ctx context.Context, accessToken string) (*authDomain.Claims, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.Claims), args.Error(1)
}

// Refresh mocks the Refresh method.
func (m *MockSessionUseCase) Refresh(ctx context.Context, refreshToken string) (*authDomain.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.TokenPair), args.Error(1)
}

// Logout mocks the Logout method.
func (m *MockSessionUseCase) Logout(ctx context.Context, refreshToken string, claims *authDomain.Claims) error {
	args := m.Called(ctx, refreshToken, claims)
	return args.Error(0)
}

// CleanupExpired mocks the CleanupExpired method.
func (m *MockSessionUseCase) CleanupExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

var (
	_ usecase.PasswordUseCase = (*MockPasswordUseCase)(nil)
	_ usecase.SessionUseCase  = (*MockSessionUseCase)(nil)
)
