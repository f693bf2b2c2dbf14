// Package service provides the cryptographic building blocks of the session layer:
// refresh token generation, access token signing, the access token denylist and the
// storage of the server identity key.
package service

import (
	"context"
	"time"

	authDomain "github.com/allisson/lightldap/internal/auth/domain"
	"github.com/allisson/lightldap/internal/opaque"
)

// TokenService generates refresh tokens and hashes them for storage.
type TokenService interface {
	// GenerateToken creates a new random refresh token. Returns the plain token, handed to
	// the client once, and its hash, the only form that is persisted.
	GenerateToken() (plainToken string, tokenHash string, err error)

	// HashToken hashes a plain refresh token for lookup.
	HashToken(plainToken string) string
}

// JWTService signs and verifies access tokens.
type JWTService interface {
	// Sign issues an access token for userID carrying the given group names.
	Sign(userID string, groups []string) (string, *authDomain.Claims, error)

	// Parse verifies the signature and expiry of an access token. Returns ErrTokenExpired
	// for an expired token and ErrTokenInvalid for anything else.
	Parse(accessToken string) (*authDomain.Claims, error)
}

// AccessTokenDenylist remembers access tokens revoked before their expiry.
type AccessTokenDenylist interface {
	// Add denies the token id until expiresAt.
	Add(ctx context.Context, tokenID string, expiresAt time.Time) error

	// Contains reports whether the token id was denied.
	Contains(ctx context.Context, tokenID string) (bool, error)
}

// ServerKeyService persists the server identity key used by the password protocol.
type ServerKeyService interface {
	// Load reads the key. Returns ErrServerKeyNotFound when no key was generated yet.
	Load(ctx context.Context) (*opaque.ServerKey, error)

	// Generate creates and stores a new key. An existing key is kept unless overwrite is set.
	Generate(ctx context.Context, overwrite bool) (*opaque.ServerKey, error)

	// LoadOrGenerate loads the key, generating it on first start.
	LoadOrGenerate(ctx context.Context) (*opaque.ServerKey, error)
}
