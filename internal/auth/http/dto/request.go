// Package dto provides data transfer objects for the authentication endpoints.
package dto

import (
	"encoding/base64"

	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/lightldap/internal/validation"
)

// SimpleLoginRequest authenticates with a password sent over TLS. The server runs both
// sides of the password exchange in-process.
type SimpleLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"` //nolint:gosec // request field
}

// Validate checks if the simple login request is valid.
func (r *SimpleLoginRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Username, validation.Required, customValidation.NotBlank),
		validation.Field(&r.Password, validation.Required),
	)
}

// LoginStartRequest carries the first client message of a login (KE1).
type LoginStartRequest struct {
	Username          string `json:"username"`
	LoginStartRequest string `json:"login_start_request"`
}

// Validate checks if the login start request is valid.
func (r *LoginStartRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Username, validation.Required, customValidation.NotBlank),
		validation.Field(&r.LoginStartRequest, validation.Required, customValidation.Base64),
	)
}

// LoginFinishRequest carries the final client message of a login (KE3) together with the
// server data returned by the start step.
type LoginFinishRequest struct {
	Username               string `json:"username"`
	ServerData             string `json:"server_data"`
	CredentialFinalization string `json:"credential_finalization"`
}

// Validate checks if the login finish request is valid.
func (r *LoginFinishRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Username, validation.Required, customValidation.NotBlank),
		validation.Field(&r.ServerData, validation.Required, customValidation.Base64),
		validation.Field(&r.CredentialFinalization, validation.Required, customValidation.Base64),
	)
}

// RegisterStartRequest carries the blinded registration request of a client.
type RegisterStartRequest struct {
	Username                 string `json:"username"`
	RegistrationStartRequest string `json:"registration_start_request"`
}

// Validate checks if the registration start request is valid.
func (r *RegisterStartRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Username, validation.Required, customValidation.NotBlank),
		validation.Field(&r.RegistrationStartRequest, validation.Required, customValidation.Base64),
	)
}

// RegisterFinishRequest carries the registration record produced by the client.
type RegisterFinishRequest struct {
	Username           string `json:"username"`
	RegistrationUpload string `json:"registration_upload"`
}

// Validate checks if the registration finish request is valid.
func (r *RegisterFinishRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Username, validation.Required, customValidation.NotBlank),
		validation.Field(&r.RegistrationUpload, validation.Required, customValidation.Base64),
	)
}

// RefreshRequest exchanges a refresh token for a new token pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"` //nolint:gosec // request field
}

// Validate checks if the refresh request is valid.
func (r *RefreshRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.RefreshToken, validation.Required, customValidation.NotBlank),
	)
}

// LogoutRequest optionally names the refresh token to revoke with the access token.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"` //nolint:gosec // request field
}

// DecodeBase64 decodes a field already checked by the Base64 rule.
func DecodeBase64(s string) []byte {
	b, _ := base64.StdEncoding.DecodeString(s)
	return b
}
