package dto

import (
	"encoding/base64"
	"time"

	authDomain "github.com/allisson/lightldap/internal/auth/domain"
)

// TokenResponse contains a freshly issued token pair.
// SECURITY: The refresh token is only returned once and must be saved securely.
type TokenResponse struct {
	Token                 string    `json:"token"`
	ExpiresAt             time.Time `json:"expires_at"`
	RefreshToken          string    `json:"refresh_token"` //nolint:gosec // returned once on login
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
}

// MapTokenPairToResponse converts a token pair to an API response.
func MapTokenPairToResponse(pair *authDomain.TokenPair) TokenResponse {
	return TokenResponse{
		Token:                 pair.AccessToken,
		ExpiresAt:             pair.AccessTokenExpiresAt,
		RefreshToken:          pair.RefreshToken,
		RefreshTokenExpiresAt: pair.RefreshTokenExpiresAt,
	}
}

// LoginStartResponse contains the server's login message (KE2) and the sealed server data
// the client returns in the finish step.
type LoginStartResponse struct {
	CredentialResponse string `json:"credential_response"`
	ServerData         string `json:"server_data"`
}

// MapLoginStartToResponse converts a login start output to an API response.
func MapLoginStartToResponse(output *authDomain.LoginStartOutput) LoginStartResponse {
	return LoginStartResponse{
		CredentialResponse: base64.StdEncoding.EncodeToString(output.KE2),
		ServerData:         base64.StdEncoding.EncodeToString(output.ServerData),
	}
}

// RegisterStartResponse contains the server's registration response.
type RegisterStartResponse struct {
	RegistrationResponse string `json:"registration_response"`
}
