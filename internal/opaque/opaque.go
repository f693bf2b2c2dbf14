// Package opaque implements the OPAQUE-3DH asymmetric password-authenticated key
// exchange over ristretto255 with SHA-512, HKDF and Argon2id as key stretching function.
// The OPRF and key derivation use the ristretto255-SHA512 suite from circl.
//
// The server stores a RegistrationRecord per credential and never sees the password.
// Registration is two messages (RegistrationRequest, RegistrationResponse) followed by the
// client uploading the record. Login is KE1, KE2 and KE3, after which both sides share a
// session key. A wrong password and an unknown credential fail in the same way.
package opaque

import (
	"crypto/rand"
	"fmt"

	"github.com/cloudflare/circl/oprf"
	"github.com/gtank/ristretto255"

	apperrors "github.com/allisson/lightldap/internal/errors"
)

const (
	elementLength = 32
	scalarLength  = 32
	hashLength    = 64
	nonceLength   = 32
	seedLength    = 32

	envelopeLength           = nonceLength + hashLength
	maskedResponseLength     = elementLength + envelopeLength
	credentialResponseLength = elementLength + nonceLength + maskedResponseLength

	// RecordLength is the size of a marshaled RegistrationRecord.
	RecordLength = elementLength + hashLength + envelopeLength
	// KE1Length is the size of a marshaled KE1.
	KE1Length = elementLength + nonceLength + elementLength
	// KE2Length is the size of a marshaled KE2.
	KE2Length = credentialResponseLength + nonceLength + elementLength + hashLength
	// KE3Length is the size of a marshaled KE3.
	KE3Length = hashLength
	// ServerKeyLength is the size of a marshaled ServerKey.
	ServerKeyLength = scalarLength + seedLength
)

const protocolContext = "lightldap-opaque-v1"

var (
	// ErrAuthenticationFailed is returned for a wrong password, an unknown credential and a
	// tampered message alike.
	ErrAuthenticationFailed = apperrors.Wrap(apperrors.ErrUnauthorized, "authentication failed")

	// ErrInvalidMessage indicates a message with a wrong length or an invalid group element.
	ErrInvalidMessage = apperrors.Wrap(apperrors.ErrInvalidInput, "invalid opaque message")

	// ErrInvalidServerKey indicates a corrupted server key.
	ErrInvalidServerKey = apperrors.New("invalid opaque server key")
)

// KSFParams configures the Argon2id key stretching applied to the OPRF output. Client and
// server must agree on it, since it changes the derived envelope keys.
type KSFParams struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

// DefaultKSFParams follows the Argon2id recommendation for interactive logins.
var DefaultKSFParams = KSFParams{Time: 1, Memory: 64 * 1024, Threads: 4}

// ServerKey is the long-term server secret: the 3DH private key and the OPRF seed from
// which per-credential OPRF keys are derived.
type ServerKey struct {
	privateKey *ristretto255.Scalar
	publicKey  *ristretto255.Element
	oprfSeed   []byte
}

// GenerateServerKey creates a new random ServerKey.
func GenerateServerKey() (*ServerKey, error) {
	sk, err := randomScalar()
	if err != nil {
		return nil, err
	}
	seed := make([]byte, seedLength)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("failed to generate oprf seed: %w", err)
	}
	return &ServerKey{
		privateKey: sk,
		publicKey:  ristretto255.NewElement().ScalarBaseMult(sk),
		oprfSeed:   seed,
	}, nil
}

// PublicKey returns the encoded server public key.
func (k *ServerKey) PublicKey() []byte {
	return k.publicKey.Encode(nil)
}

// MarshalBinary encodes the key as private key followed by OPRF seed.
func (k *ServerKey) MarshalBinary() ([]byte, error) {
	out := k.privateKey.Encode(make([]byte, 0, ServerKeyLength))
	return append(out, k.oprfSeed...), nil
}

// UnmarshalBinary decodes a key produced by MarshalBinary.
func (k *ServerKey) UnmarshalBinary(data []byte) error {
	if len(data) != ServerKeyLength {
		return ErrInvalidServerKey
	}
	sk := ristretto255.NewScalar()
	if err := sk.Decode(data[:scalarLength]); err != nil {
		return ErrInvalidServerKey
	}
	if sk.Equal(ristretto255.NewScalar()) == 1 {
		return ErrInvalidServerKey
	}
	k.privateKey = sk
	k.publicKey = ristretto255.NewElement().ScalarBaseMult(sk)
	k.oprfSeed = append([]byte(nil), data[scalarLength:]...)
	return nil
}

// Server runs the server side of registration and login. It is safe for concurrent use.
type Server struct {
	key *ServerKey
	ksf KSFParams
}

// NewServer creates a Server bound to key.
func NewServer(key *ServerKey, ksf KSFParams) *Server {
	return &Server{key: key, ksf: ksf}
}

// KSF returns the key stretching parameters clients must use.
func (s *Server) KSF() KSFParams {
	return s.ksf
}

// PublicKey returns the encoded server public key.
func (s *Server) PublicKey() []byte {
	return s.key.PublicKey()
}

// RegistrationResponse evaluates the blinded password under the credential's OPRF key.
func (s *Server) RegistrationResponse(req *RegistrationRequest, credentialID string) (*RegistrationResponse, error) {
	evaluated, err := evaluate(s.oprfKey(credentialID), req.BlindedMessage)
	if err != nil {
		return nil, err
	}
	return &RegistrationResponse{
		EvaluatedMessage: evaluated,
		ServerPublicKey:  s.key.PublicKey(),
	}, nil
}

// LoginInit answers KE1. A nil record is replaced by a fake record derived from the
// credential id, so an unknown credential produces a well-formed KE2 and fails only at
// LoginFinish.
func (s *Server) LoginInit(
	record *RegistrationRecord,
	credentialID string,
	ke1 *KE1,
) (*KE2, *ServerLoginState, error) {
	evaluated, err := evaluate(s.oprfKey(credentialID), ke1.BlindedMessage)
	if err != nil {
		return nil, nil, err
	}
	clientKeyshare, err := decodeElement(ke1.ClientKeyshare)
	if err != nil {
		return nil, nil, err
	}
	if len(ke1.ClientNonce) != nonceLength {
		return nil, nil, ErrInvalidMessage
	}

	if record == nil {
		record = s.fakeRecord(credentialID)
	}
	if len(record.MaskingKey) != hashLength || len(record.Envelope) != envelopeLength {
		return nil, nil, ErrInvalidMessage
	}
	clientPublicKey, err := decodeElement(record.ClientPublicKey)
	if err != nil {
		return nil, nil, err
	}

	maskingNonce, err := randomBytes(nonceLength)
	if err != nil {
		return nil, nil, err
	}
	pad := expand(record.MaskingKey, concat(maskingNonce, []byte("CredentialResponsePad")), maskedResponseLength)
	maskedResponse := xor(pad, concat(s.key.PublicKey(), record.Envelope))

	serverNonce, err := randomBytes(nonceLength)
	if err != nil {
		return nil, nil, err
	}
	esk, err := randomScalar()
	if err != nil {
		return nil, nil, err
	}

	ke2 := &KE2{
		EvaluatedMessage: evaluated,
		MaskingNonce:     maskingNonce,
		MaskedResponse:   maskedResponse,
		ServerNonce:      serverNonce,
		ServerKeyshare:   ristretto255.NewElement().ScalarBaseMult(esk).Encode(nil),
	}

	ikm := concat(
		dh(esk, clientKeyshare),
		dh(s.key.privateKey, clientKeyshare),
		dh(esk, clientPublicKey),
	)
	keys := deriveSessionKeys(ikm, preamble(credentialID, s.key.PublicKey(), ke1, ke2))
	ke2.ServerMAC = keys.serverMAC

	return ke2, &ServerLoginState{
		ExpectedClientMAC: keys.clientMAC,
		SessionKey:        keys.sessionKey,
	}, nil
}

// LoginFinish checks the client MAC and returns the session key.
func (s *Server) LoginFinish(state *ServerLoginState, ke3 *KE3) ([]byte, error) {
	if state == nil || ke3 == nil || !macEqual(state.ExpectedClientMAC, ke3.ClientMAC) {
		return nil, ErrAuthenticationFailed
	}
	return state.SessionKey, nil
}

func (s *Server) oprfKey(credentialID string) *oprf.PrivateKey {
	seed := expand(s.key.oprfSeed, concat([]byte(credentialID), []byte("OprfKey")), seedLength)
	return derivePrivateKey(seed, "OPAQUE-DeriveKeyPair")
}

func (s *Server) fakeRecord(credentialID string) *RegistrationRecord {
	seed := expand(s.key.oprfSeed, concat([]byte(credentialID), []byte("FakeClientKey")), seedLength)
	_, pk := deriveKeyPair(seed, "OPAQUE-DeriveDiffieHellmanKeyPair")
	return &RegistrationRecord{
		ClientPublicKey: pk.Encode(nil),
		MaskingKey:      expand(s.key.oprfSeed, concat([]byte(credentialID), []byte("FakeMaskingKey")), hashLength),
		Envelope:        expand(s.key.oprfSeed, concat([]byte(credentialID), []byte("FakeEnvelope")), envelopeLength),
	}
}
