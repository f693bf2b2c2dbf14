package dto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimpleLoginRequest_Validate(t *testing.T) {
	t.Run("Success_ValidRequest", func(t *testing.T) {
		req := SimpleLoginRequest{Username: "alice", Password: "secret1"}
		assert.NoError(t, req.Validate())
	})

	t.Run("Error_BlankUsername", func(t *testing.T) {
		req := SimpleLoginRequest{Username: "   ", Password: "secret1"}
		assert.Error(t, req.Validate())
	})

	t.Run("Error_MissingPassword", func(t *testing.T) {
		req := SimpleLoginRequest{Username: "alice"}
		assert.Error(t, req.Validate())
	})
}

func TestLoginStartRequest_Validate(t *testing.T) {
	t.Run("Success_ValidRequest", func(t *testing.T) {
		req := LoginStartRequest{
			Username:          "alice",
			LoginStartRequest: base64.StdEncoding.EncodeToString([]byte("ke1")),
		}
		assert.NoError(t, req.Validate())
	})

	t.Run("Error_InvalidBase64", func(t *testing.T) {
		req := LoginStartRequest{Username: "alice", LoginStartRequest: "not base64!"}
		assert.Error(t, req.Validate())
	})
}

func TestLoginFinishRequest_Validate(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("data"))

	t.Run("Success_ValidRequest", func(t *testing.T) {
		req := LoginFinishRequest{Username: "alice", ServerData: encoded, CredentialFinalization: encoded}
		assert.NoError(t, req.Validate())
	})

	t.Run("Error_MissingServerData", func(t *testing.T) {
		req := LoginFinishRequest{Username: "alice", CredentialFinalization: encoded}
		assert.Error(t, req.Validate())
	})
}

func TestRegisterRequests_Validate(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("data"))

	assert.NoError(t, (&RegisterStartRequest{Username: "bob", RegistrationStartRequest: encoded}).Validate())
	assert.Error(t, (&RegisterStartRequest{Username: "bob"}).Validate())
	assert.NoError(t, (&RegisterFinishRequest{Username: "bob", RegistrationUpload: encoded}).Validate())
	assert.Error(t, (&RegisterFinishRequest{Username: "", RegistrationUpload: encoded}).Validate())
}

func TestRefreshRequest_Validate(t *testing.T) {
	assert.NoError(t, (&RefreshRequest{RefreshToken: "abc"}).Validate())
	assert.Error(t, (&RefreshRequest{RefreshToken: " "}).Validate())
}

func TestDecodeBase64(t *testing.T) {
	assert.Equal(t, []byte("hello"), DecodeBase64(base64.StdEncoding.EncodeToString([]byte("hello"))))
}
