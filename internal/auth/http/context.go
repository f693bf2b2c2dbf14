// Package http provides the authentication endpoints and the middleware that guards the
// administrative API.
package http

import (
	"context"

	authDomain "github.com/allisson/lightldap/internal/auth/domain"
	directoryDomain "github.com/allisson/lightldap/internal/directory/domain"
)

// claimsKey is a context key type for storing validated access token claims.
type claimsKey struct{}

// WithClaims stores validated access token claims in the context.
// This is typically called by the authentication middleware after successful token validation.
func WithClaims(ctx context.Context, claims *authDomain.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// GetClaims retrieves the access token claims from the context.
// Returns (claims, true) if present, or (nil, false) if no claims were set.
func GetClaims(ctx context.Context) (*authDomain.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*authDomain.Claims)
	return claims, ok && claims != nil
}

// IsAdmin reports whether the principal belongs to the administrator group.
func IsAdmin(claims *authDomain.Claims) bool {
	return claims != nil && claims.HasGroup(directoryDomain.AdminGroup)
}

// IsPasswordManager reports whether the principal may reset passwords of non-admin users.
func IsPasswordManager(claims *authDomain.Claims) bool {
	return IsAdmin(claims) || (claims != nil && claims.HasGroup(directoryDomain.PasswordManagerGroup))
}

// IsReadonly reports whether the principal is restricted to reads. Administrators are never
// readonly.
func IsReadonly(claims *authDomain.Claims) bool {
	return claims != nil && !IsAdmin(claims) && claims.HasGroup(directoryDomain.ReadonlyGroup)
}

// CanReadAll reports whether the principal may read every entry of the directory.
func CanReadAll(claims *authDomain.Claims) bool {
	if claims == nil {
		return false
	}
	return IsAdmin(claims) ||
		claims.HasGroup(directoryDomain.PasswordManagerGroup) ||
		claims.HasGroup(directoryDomain.ReadonlyGroup)
}

// IsSelf reports whether the principal is the user identified by userID.
func IsSelf(claims *authDomain.Claims, userID string) bool {
	return claims != nil && claims.UserID == directoryDomain.NormalizeUserID(userID)
}
