package domain

import (
	"github.com/allisson/lightldap/internal/errors"
)

// Authentication errors.
var (
	// ErrTokenNotFound indicates no refresh token matches the presented value.
	ErrTokenNotFound = errors.Wrap(errors.ErrNotFound, "token not found")

	// ErrTokenInvalid indicates a malformed token or a bad signature.
	ErrTokenInvalid = errors.Wrap(errors.ErrUnauthorized, "invalid token")

	// ErrTokenExpired indicates the token lifetime has elapsed.
	ErrTokenExpired = errors.Wrap(errors.ErrUnauthorized, "token expired")

	// ErrTokenRevoked indicates the token was revoked by a logout or already used.
	ErrTokenRevoked = errors.Wrap(errors.ErrUnauthorized, "token revoked")

	// ErrEnvelopeNotFound indicates the user never registered a password.
	ErrEnvelopeNotFound = errors.Wrap(errors.ErrNotFound, "password envelope not found")

	// ErrAuthenticationFailed is returned for unknown users and wrong passwords alike.
	ErrAuthenticationFailed = errors.Wrap(errors.ErrUnauthorized, "authentication failed")

	// ErrForbidden indicates the principal may not act on the target user.
	ErrForbidden = errors.Wrap(errors.ErrForbidden, "operation not permitted")
)
