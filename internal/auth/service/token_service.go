package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	apperrors "github.com/allisson/lightldap/internal/errors"
)

// refreshTokenBytes is the entropy of a refresh token.
const refreshTokenBytes = 32

// tokenService implements TokenService with random refresh tokens hashed by SHA-256.
type tokenService struct{}

// GenerateToken returns a base64url encoded random refresh token and its hash.
func (t *tokenService) GenerateToken() (string, string, error) {
	raw := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", apperrors.Wrap(err, "failed to generate refresh token")
	}

	plainToken := base64.URLEncoding.EncodeToString(raw)
	return plainToken, t.HashToken(plainToken), nil
}

// HashToken returns the hex encoded SHA-256 of the token. Refresh tokens carry enough
// entropy for a fast hash.
func (t *tokenService) HashToken(plainToken string) string {
	sum := sha256.Sum256([]byte(plainToken))
	return hex.EncodeToString(sum[:])
}

// NewTokenService creates a new TokenService.
func NewTokenService() TokenService {
	return &tokenService{}
}
