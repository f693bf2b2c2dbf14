package opaque

import (
	"crypto/rand"
	"encoding/binary"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

// LoginStateTTL bounds the time between KE2 and KE3 in the stateless login flow.
const LoginStateTTL = 5 * time.Minute

// SealLoginState encrypts state for the client to hand back with KE3, so the server keeps
// nothing between the two requests. The credential id is bound as additional data.
func (s *Server) SealLoginState(state *ServerLoginState, credentialID string, now time.Time) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.stateKey())
	if err != nil {
		return nil, err
	}

	plaintext, err := state.MarshalBinary()
	if err != nil {
		return nil, err
	}
	plaintext = binary.BigEndian.AppendUint64(plaintext, uint64(now.Add(LoginStateTTL).Unix()))

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, []byte(credentialID)), nil
}

// OpenLoginState decrypts a sealed state. A tampered, foreign or expired state yields
// ErrAuthenticationFailed.
func (s *Server) OpenLoginState(sealed []byte, credentialID string, now time.Time) (*ServerLoginState, error) {
	aead, err := chacha20poly1305.NewX(s.stateKey())
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrAuthenticationFailed
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(credentialID))
	if err != nil || len(plaintext) != 2*hashLength+8 {
		return nil, ErrAuthenticationFailed
	}

	expiresAt := int64(binary.BigEndian.Uint64(plaintext[2*hashLength:]))
	if now.Unix() > expiresAt {
		return nil, ErrAuthenticationFailed
	}

	var state ServerLoginState
	if err := state.UnmarshalBinary(plaintext[:2*hashLength]); err != nil {
		return nil, ErrAuthenticationFailed
	}
	return &state, nil
}

func (s *Server) stateKey() []byte {
	return expand(s.key.privateKey.Encode(nil), []byte("LoginStateKey"), chacha20poly1305.KeySize)
}
