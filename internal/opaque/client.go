package opaque

import (
	"crypto/hmac"

	"github.com/cloudflare/circl/oprf"
	"github.com/gtank/ristretto255"
)

// Client runs the client side of one registration or one login. A Client must not be
// reused across flows.
type Client struct {
	ksf      KSFParams
	password []byte
	finData  *oprf.FinalizeData

	// login only
	ke1 *KE1
	esk *ristretto255.Scalar
}

// NewClient creates a Client using the server's key stretching parameters.
func NewClient(ksf KSFParams) *Client {
	return &Client{ksf: ksf}
}

// RegistrationStart blinds the password.
func (c *Client) RegistrationStart(password []byte) (*RegistrationRequest, error) {
	finData, blinded, err := blind(password)
	if err != nil {
		return nil, err
	}
	c.password = append([]byte(nil), password...)
	c.finData = finData
	return &RegistrationRequest{BlindedMessage: blinded}, nil
}

// RegistrationFinalize derives the client key pair from the OPRF output and seals it in an
// envelope bound to the server public key and the credential id.
func (c *Client) RegistrationFinalize(resp *RegistrationResponse, credentialID string) (*RegistrationRecord, error) {
	if c.finData == nil {
		return nil, ErrInvalidMessage
	}
	defer c.clear()

	if _, err := decodeElement(resp.ServerPublicKey); err != nil {
		return nil, err
	}
	oprfOutput, err := finalize(c.finData, resp.EvaluatedMessage)
	if err != nil {
		return nil, err
	}

	randomizedPassword := stretch(oprfOutput, c.ksf)
	defer zero(randomizedPassword)

	nonce, err := randomBytes(nonceLength)
	if err != nil {
		return nil, err
	}
	clientPublicKey, authTag := c.sealEnvelope(randomizedPassword, nonce, resp.ServerPublicKey, credentialID)

	return &RegistrationRecord{
		ClientPublicKey: clientPublicKey,
		MaskingKey:      expand(randomizedPassword, []byte("MaskingKey"), hashLength),
		Envelope:        concat(nonce, authTag),
	}, nil
}

// LoginStart blinds the password and creates the ephemeral keyshare.
func (c *Client) LoginStart(password []byte) (*KE1, error) {
	finData, blinded, err := blind(password)
	if err != nil {
		return nil, err
	}
	nonce, err := randomBytes(nonceLength)
	if err != nil {
		return nil, err
	}
	esk, err := randomScalar()
	if err != nil {
		return nil, err
	}

	c.password = append([]byte(nil), password...)
	c.finData = finData
	c.esk = esk
	c.ke1 = &KE1{
		BlindedMessage: blinded,
		ClientNonce:    nonce,
		ClientKeyshare: ristretto255.NewElement().ScalarBaseMult(esk).Encode(nil),
	}
	return c.ke1, nil
}

// LoginFinish opens the envelope, authenticates the server and returns KE3 with the
// session key. Any mismatch yields ErrAuthenticationFailed.
func (c *Client) LoginFinish(ke2 *KE2, credentialID string) (*KE3, []byte, error) {
	if c.ke1 == nil {
		return nil, nil, ErrInvalidMessage
	}
	defer c.clear()

	if err := ke2.validate(); err != nil {
		return nil, nil, err
	}
	oprfOutput, err := finalize(c.finData, ke2.EvaluatedMessage)
	if err != nil {
		return nil, nil, err
	}
	serverKeyshare, err := decodeElement(ke2.ServerKeyshare)
	if err != nil {
		return nil, nil, err
	}

	randomizedPassword := stretch(oprfOutput, c.ksf)
	defer zero(randomizedPassword)

	maskingKey := expand(randomizedPassword, []byte("MaskingKey"), hashLength)
	pad := expand(maskingKey, concat(ke2.MaskingNonce, []byte("CredentialResponsePad")), maskedResponseLength)
	unmasked := xor(pad, ke2.MaskedResponse)
	serverPublicKeyBytes := unmasked[:elementLength]
	envelopeNonce := unmasked[elementLength : elementLength+nonceLength]
	authTag := unmasked[elementLength+nonceLength:]

	serverPublicKey, err := decodeElement(serverPublicKeyBytes)
	if err != nil {
		return nil, nil, ErrAuthenticationFailed
	}

	clientSecretKey, expectedTag := c.openEnvelope(randomizedPassword, envelopeNonce, serverPublicKeyBytes, credentialID)
	if !hmac.Equal(authTag, expectedTag) {
		return nil, nil, ErrAuthenticationFailed
	}

	ikm := concat(
		dh(c.esk, serverKeyshare),
		dh(c.esk, serverPublicKey),
		dh(clientSecretKey, serverKeyshare),
	)
	keys := deriveSessionKeys(ikm, preamble(credentialID, serverPublicKeyBytes, c.ke1, ke2))
	if !macEqual(keys.serverMAC, ke2.ServerMAC) {
		return nil, nil, ErrAuthenticationFailed
	}

	return &KE3{ClientMAC: keys.clientMAC}, keys.sessionKey, nil
}

// sealEnvelope derives the client key pair for nonce and returns the public key and the
// envelope authentication tag.
func (c *Client) sealEnvelope(randomizedPassword, nonce, serverPublicKey []byte, credentialID string) ([]byte, []byte) {
	_, pk := c.envelopeKeyPair(randomizedPassword, nonce)
	authKey := expand(randomizedPassword, concat(nonce, []byte("AuthKey")), hashLength)
	return pk.Encode(nil), mac(authKey, nonce, cleartextCredentials(serverPublicKey, credentialID))
}

// openEnvelope recomputes the client secret key and the tag the envelope must carry.
func (c *Client) openEnvelope(
	randomizedPassword, nonce, serverPublicKey []byte,
	credentialID string,
) (*ristretto255.Scalar, []byte) {
	sk, _ := c.envelopeKeyPair(randomizedPassword, nonce)
	authKey := expand(randomizedPassword, concat(nonce, []byte("AuthKey")), hashLength)
	return sk, mac(authKey, nonce, cleartextCredentials(serverPublicKey, credentialID))
}

func (c *Client) envelopeKeyPair(randomizedPassword, nonce []byte) (*ristretto255.Scalar, *ristretto255.Element) {
	seed := expand(randomizedPassword, concat(nonce, []byte("PrivateKey")), seedLength)
	return deriveKeyPair(seed, "OPAQUE-DeriveDiffieHellmanKeyPair")
}

func (c *Client) clear() {
	zero(c.password)
	c.password = nil
	c.finData = nil
	c.esk = nil
	c.ke1 = nil
}
