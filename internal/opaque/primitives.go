package opaque

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cloudflare/circl/group"
	"github.com/cloudflare/circl/oprf"
	"github.com/gtank/ristretto255"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

var ksfSalt = make([]byte, 16)

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return b, nil
}

// randomScalar returns a uniformly random non-zero scalar.
func randomScalar() (*ristretto255.Scalar, error) {
	zero := ristretto255.NewScalar()
	for {
		b, err := randomBytes(64)
		if err != nil {
			return nil, err
		}
		s := ristretto255.NewScalar().FromUniformBytes(b)
		if s.Equal(zero) == 0 {
			return s, nil
		}
	}
}

// decodeElement decodes a canonical non-identity element.
func decodeElement(b []byte) (*ristretto255.Element, error) {
	e := ristretto255.NewElement()
	if err := e.Decode(b); err != nil {
		return nil, ErrInvalidMessage
	}
	if e.Equal(ristretto255.NewElement()) == 1 {
		return nil, ErrInvalidMessage
	}
	return e, nil
}

var oprfSuite = oprf.SuiteRistretto255

// deriveKeyPair maps a 32-byte seed to a non-zero scalar and its public element.
func deriveKeyPair(seed []byte, info string) (*ristretto255.Scalar, *ristretto255.Element) {
	b, err := derivePrivateKey(seed, info).MarshalBinary()
	if err != nil {
		panic("opaque: marshal derived key: " + err.Error())
	}
	s := ristretto255.NewScalar()
	if err := s.Decode(b); err != nil {
		panic("opaque: decode derived key: " + err.Error())
	}
	return s, ristretto255.NewElement().ScalarBaseMult(s)
}

func derivePrivateKey(seed []byte, info string) *oprf.PrivateKey {
	k, err := oprf.DeriveKey(oprfSuite, oprf.BaseMode, seed, []byte(info))
	if err != nil {
		panic("opaque: derive key pair: " + err.Error())
	}
	return k
}

// decodeGroupElement decodes a canonical non-identity element of the OPRF group.
func decodeGroupElement(b []byte) (group.Element, error) {
	if len(b) != elementLength {
		return nil, ErrInvalidMessage
	}
	e := oprfSuite.Group().NewElement()
	if err := e.UnmarshalBinary(b); err != nil || e.IsIdentity() {
		return nil, ErrInvalidMessage
	}
	return e, nil
}

// blind starts the OPRF on password. The returned data is needed to finalize it.
func blind(password []byte) (*oprf.FinalizeData, []byte, error) {
	finData, req, err := oprf.NewClient(oprfSuite).Blind([][]byte{password})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to blind password: %w", err)
	}
	blinded, err := req.Elements[0].MarshalBinaryCompress()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode blinded element: %w", err)
	}
	return finData, blinded, nil
}

// evaluate applies k to an encoded blinded element.
func evaluate(k *oprf.PrivateKey, blindedMessage []byte) ([]byte, error) {
	blinded, err := decodeGroupElement(blindedMessage)
	if err != nil {
		return nil, err
	}
	eval, err := oprf.NewServer(oprfSuite, k).Evaluate(&oprf.EvaluationRequest{
		Elements: []oprf.Blinded{blinded},
	})
	if err != nil {
		return nil, ErrInvalidMessage
	}
	return eval.Elements[0].MarshalBinaryCompress()
}

// finalize unblinds the evaluated element into the OPRF output.
func finalize(finData *oprf.FinalizeData, evaluatedMessage []byte) ([]byte, error) {
	evaluated, err := decodeGroupElement(evaluatedMessage)
	if err != nil {
		return nil, err
	}
	outputs, err := oprf.NewClient(oprfSuite).Finalize(finData, &oprf.Evaluation{
		Elements: []oprf.Evaluated{evaluated},
	})
	if err != nil {
		return nil, ErrInvalidMessage
	}
	return outputs[0], nil
}

// stretch applies the KSF and returns the randomized password.
func stretch(oprfOutput []byte, params KSFParams) []byte {
	stretched := argon2.IDKey(oprfOutput, ksfSalt, params.Time, params.Memory, params.Threads, hashLength)
	return hkdf.Extract(sha512.New, concat(oprfOutput, stretched), nil)
}

func dh(sk *ristretto255.Scalar, pk *ristretto255.Element) []byte {
	return ristretto255.NewElement().ScalarMult(sk, pk).Encode(nil)
}

func expand(prk, info []byte, length int) []byte {
	out := make([]byte, length)
	if _, err := io.ReadFull(hkdf.Expand(sha512.New, prk, info), out); err != nil {
		panic("opaque: hkdf expand: " + err.Error())
	}
	return out
}

func expandLabel(secret []byte, label string, context []byte, length int) []byte {
	fullLabel := "OPAQUE-" + label
	info := make([]byte, 0, 4+len(fullLabel)+len(context))
	info = binary.BigEndian.AppendUint16(info, uint16(length))
	info = append(info, byte(len(fullLabel)))
	info = append(info, fullLabel...)
	info = append(info, byte(len(context)))
	info = append(info, context...)
	return expand(secret, info, length)
}

func mac(key []byte, parts ...[]byte) []byte {
	h := hmac.New(sha512.New, key)
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

func macEqual(a, b []byte) bool {
	return len(a) == hashLength && hmac.Equal(a, b)
}

func lengthPrefixed(b []byte) []byte {
	out := make([]byte, 0, 2+len(b))
	out = binary.BigEndian.AppendUint16(out, uint16(len(b)))
	return append(out, b...)
}

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func xor(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

type sessionKeys struct {
	serverMAC  []byte
	clientMAC  []byte
	sessionKey []byte
}

// preamble binds the whole transcript up to the server keyshare.
func preamble(credentialID string, serverIdentity []byte, ke1 *KE1, ke2 *KE2) []byte {
	ke1Bytes, _ := ke1.MarshalBinary()
	return concat(
		[]byte("OPAQUEv1-"),
		lengthPrefixed([]byte(protocolContext)),
		lengthPrefixed([]byte(credentialID)),
		ke1Bytes,
		lengthPrefixed(serverIdentity),
		ke2.EvaluatedMessage,
		ke2.MaskingNonce,
		ke2.MaskedResponse,
		ke2.ServerNonce,
		ke2.ServerKeyshare,
	)
}

func deriveSessionKeys(ikm, preamble []byte) sessionKeys {
	prk := hkdf.Extract(sha512.New, ikm, nil)
	transcript := sha512.Sum512(preamble)
	handshakeSecret := expandLabel(prk, "HandshakeSecret", transcript[:], hashLength)
	sessionKey := expandLabel(prk, "SessionKey", transcript[:], hashLength)
	km2 := expandLabel(handshakeSecret, "ServerMAC", nil, hashLength)
	km3 := expandLabel(handshakeSecret, "ClientMAC", nil, hashLength)

	serverMAC := mac(km2, transcript[:])
	withMAC := sha512.Sum512(concat(preamble, serverMAC))

	return sessionKeys{
		serverMAC:  serverMAC,
		clientMAC:  mac(km3, withMAC[:]),
		sessionKey: sessionKey,
	}
}

// cleartextCredentials is authenticated by the envelope tag.
func cleartextCredentials(serverPublicKey []byte, credentialID string) []byte {
	return concat(serverPublicKey, lengthPrefixed(serverPublicKey), lengthPrefixed([]byte(credentialID)))
}
