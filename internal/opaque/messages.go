package opaque

// RegistrationRequest carries the blinded password.
type RegistrationRequest struct {
	BlindedMessage []byte
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (m *RegistrationRequest) MarshalBinary() ([]byte, error) {
	return append([]byte(nil), m.BlindedMessage...), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *RegistrationRequest) UnmarshalBinary(data []byte) error {
	parts, err := split(data, elementLength)
	if err != nil {
		return err
	}
	m.BlindedMessage = parts[0]
	return nil
}

// RegistrationResponse carries the OPRF evaluation and the server public key.
type RegistrationResponse struct {
	EvaluatedMessage []byte
	ServerPublicKey  []byte
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (m *RegistrationResponse) MarshalBinary() ([]byte, error) {
	return concat(m.EvaluatedMessage, m.ServerPublicKey), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *RegistrationResponse) UnmarshalBinary(data []byte) error {
	parts, err := split(data, elementLength, elementLength)
	if err != nil {
		return err
	}
	m.EvaluatedMessage, m.ServerPublicKey = parts[0], parts[1]
	return nil
}

// RegistrationRecord is what the server stores for a credential: the client public key,
// the masking key and the envelope (nonce and authentication tag).
type RegistrationRecord struct {
	ClientPublicKey []byte
	MaskingKey      []byte
	Envelope        []byte
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (m *RegistrationRecord) MarshalBinary() ([]byte, error) {
	return concat(m.ClientPublicKey, m.MaskingKey, m.Envelope), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *RegistrationRecord) UnmarshalBinary(data []byte) error {
	parts, err := split(data, elementLength, hashLength, envelopeLength)
	if err != nil {
		return err
	}
	if _, err := decodeElement(parts[0]); err != nil {
		return err
	}
	m.ClientPublicKey, m.MaskingKey, m.Envelope = parts[0], parts[1], parts[2]
	return nil
}

// KE1 is the first login message.
type KE1 struct {
	BlindedMessage []byte
	ClientNonce    []byte
	ClientKeyshare []byte
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (m *KE1) MarshalBinary() ([]byte, error) {
	return concat(m.BlindedMessage, m.ClientNonce, m.ClientKeyshare), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *KE1) UnmarshalBinary(data []byte) error {
	parts, err := split(data, elementLength, nonceLength, elementLength)
	if err != nil {
		return err
	}
	m.BlindedMessage, m.ClientNonce, m.ClientKeyshare = parts[0], parts[1], parts[2]
	return nil
}

// KE2 is the server login response: the masked credential response and the server
// half of the 3DH exchange.
type KE2 struct {
	EvaluatedMessage []byte
	MaskingNonce     []byte
	MaskedResponse   []byte
	ServerNonce      []byte
	ServerKeyshare   []byte
	ServerMAC        []byte
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (m *KE2) MarshalBinary() ([]byte, error) {
	return concat(m.EvaluatedMessage, m.MaskingNonce, m.MaskedResponse, m.ServerNonce, m.ServerKeyshare, m.ServerMAC), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *KE2) UnmarshalBinary(data []byte) error {
	parts, err := split(data, elementLength, nonceLength, maskedResponseLength, nonceLength, elementLength, hashLength)
	if err != nil {
		return err
	}
	m.EvaluatedMessage, m.MaskingNonce, m.MaskedResponse = parts[0], parts[1], parts[2]
	m.ServerNonce, m.ServerKeyshare, m.ServerMAC = parts[3], parts[4], parts[5]
	return nil
}

func (m *KE2) validate() error {
	if len(m.EvaluatedMessage) != elementLength || len(m.MaskingNonce) != nonceLength ||
		len(m.MaskedResponse) != maskedResponseLength || len(m.ServerNonce) != nonceLength ||
		len(m.ServerKeyshare) != elementLength || len(m.ServerMAC) != hashLength {
		return ErrInvalidMessage
	}
	return nil
}

// KE3 is the client key confirmation.
type KE3 struct {
	ClientMAC []byte
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (m *KE3) MarshalBinary() ([]byte, error) {
	return append([]byte(nil), m.ClientMAC...), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *KE3) UnmarshalBinary(data []byte) error {
	parts, err := split(data, hashLength)
	if err != nil {
		return err
	}
	m.ClientMAC = parts[0]
	return nil
}

// ServerLoginState is kept by the server between KE2 and KE3.
type ServerLoginState struct {
	ExpectedClientMAC []byte
	SessionKey        []byte
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (m *ServerLoginState) MarshalBinary() ([]byte, error) {
	return concat(m.ExpectedClientMAC, m.SessionKey), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *ServerLoginState) UnmarshalBinary(data []byte) error {
	parts, err := split(data, hashLength, hashLength)
	if err != nil {
		return err
	}
	m.ExpectedClientMAC, m.SessionKey = parts[0], parts[1]
	return nil
}

// split cuts data into copies of the given sizes, which must add up to len(data).
func split(data []byte, sizes ...int) ([][]byte, error) {
	total := 0
	for _, s := range sizes {
		total += s
	}
	if len(data) != total {
		return nil, ErrInvalidMessage
	}
	parts := make([][]byte, 0, len(sizes))
	offset := 0
	for _, s := range sizes {
		parts = append(parts, append([]byte(nil), data[offset:offset+s]...))
		offset += s
	}
	return parts, nil
}
