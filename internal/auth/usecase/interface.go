// Package usecase implements password registration and verification on top of the OPAQUE
// protocol, and the session tokens issued after a successful login.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/lightldap/internal/auth/domain"
	directoryDomain "github.com/allisson/lightldap/internal/directory/domain"
)

// TokenRepository defines persistence operations for refresh token records.
// Implementations must support transaction-aware operations via context propagation.
type TokenRepository interface {
	Create(ctx context.Context, token *authDomain.SessionToken) error

	// GetByTokenHash returns ErrTokenNotFound if no record matches.
	GetByTokenHash(ctx context.Context, tokenHash string) (*authDomain.SessionToken, error)

	// Delete returns ErrTokenNotFound if the record was already removed.
	Delete(ctx context.Context, id uuid.UUID) error

	Revoke(ctx context.Context, id uuid.UUID, revokedAt time.Time) error

	// DeleteExpired removes every record expired before the given time.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// PasswordRepository defines persistence operations for password envelopes.
type PasswordRepository interface {
	// Upsert replaces the envelope of a user. Must run inside a transaction.
	Upsert(ctx context.Context, envelope *authDomain.PasswordEnvelope) error

	// Get returns ErrEnvelopeNotFound when the user has no password.
	Get(ctx context.Context, userID string) (*authDomain.PasswordEnvelope, error)
}

// UserDirectory is the part of the directory capability interface the session layer reads.
type UserDirectory interface {
	GetUserDetails(ctx context.Context, userID string) (*directoryDomain.User, error)
	GetUserGroups(ctx context.Context, userID string) ([]*directoryDomain.Group, error)
}

// PasswordUseCase stores and checks passwords without ever handling a password hash.
//
// Unknown users and wrong passwords fail identically with ErrAuthenticationFailed.
type PasswordUseCase interface {
	// RegisterPassword runs a complete registration in-process and stores the record.
	RegisterPassword(ctx context.Context, userID, password string) error

	// VerifyPassword runs a complete login in-process against the stored record.
	VerifyPassword(ctx context.Context, userID, password string) error

	// StartRegistration answers the client's first registration message.
	StartRegistration(ctx context.Context, userID string, request []byte) ([]byte, error)

	// FinishRegistration stores the record produced by the client.
	FinishRegistration(ctx context.Context, userID string, record []byte) error

	// StartLogin answers KE1. The returned server data must be handed back to FinishLogin.
	StartLogin(ctx context.Context, userID string, ke1 []byte) (*authDomain.LoginStartOutput, error)

	// FinishLogin checks KE3 against the sealed server data.
	FinishLogin(ctx context.Context, userID string, serverData, ke3 []byte) error
}

// SessionUseCase issues, validates, rotates and revokes session tokens.
type SessionUseCase interface {
	// Issue creates an access token and a refresh token for an existing user.
	Issue(ctx context.Context, userID string) (*authDomain.TokenPair, error)

	// Validate verifies an access token. Errors wrap ErrUnauthorized.
	Validate(ctx context.Context, accessToken string) (*authDomain.Claims, error)

	// Refresh consumes a refresh token and issues a new pair. A refresh token works once.
	Refresh(ctx context.Context, refreshToken string) (*authDomain.TokenPair, error)

	// Logout revokes the refresh token, when given, and denies the access token.
	Logout(ctx context.Context, refreshToken string, claims *authDomain.Claims) error

	// CleanupExpired deletes every expired refresh token record.
	CleanupExpired(ctx context.Context) (int64, error)
}
