// Package domain defines the session and password entities of the authentication layer.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionToken is the persisted side of a refresh token. Only the hash of the token is stored.
type SessionToken struct {
	ID        uuid.UUID
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// IsExpired reports whether the token expired at now.
func (t *SessionToken) IsExpired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// IsRevoked reports whether the token was revoked by a logout.
func (t *SessionToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// TokenPair is handed to a client after a successful login or refresh.
type TokenPair struct {
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
}

// Claims is the verified content of an access token.
type Claims struct {
	// ID is the token's jti, used to revoke it before expiry.
	ID        string
	UserID    string
	Groups    []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HasGroup reports whether the token was issued to a member of group.
func (c *Claims) HasGroup(group string) bool {
	for _, g := range c.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// PasswordEnvelope is the stored OPAQUE registration record of a user.
type PasswordEnvelope struct {
	UserID    string
	Envelope  []byte
	UpdatedAt time.Time
}

// LoginStartOutput is the server's answer to the first login message.
type LoginStartOutput struct {
	KE2 []byte
	// ServerData is the sealed server login state, opaque to the client.
	ServerData []byte
}
