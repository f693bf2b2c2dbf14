package opaque

import "crypto/subtle"

// Register runs a complete registration in-process and returns the record to store.
func Register(server *Server, credentialID, password string) (*RegistrationRecord, error) {
	client := NewClient(server.KSF())

	req, err := client.RegistrationStart([]byte(password))
	if err != nil {
		return nil, err
	}
	resp, err := server.RegistrationResponse(req, credentialID)
	if err != nil {
		return nil, err
	}
	return client.RegistrationFinalize(resp, credentialID)
}

// Login runs a complete login in-process against record, which may be nil for an unknown
// credential. It returns nil only when password matches the one registered.
func Login(server *Server, credentialID, password string, record *RegistrationRecord) error {
	client := NewClient(server.KSF())

	ke1, err := client.LoginStart([]byte(password))
	if err != nil {
		return err
	}
	ke2, state, err := server.LoginInit(record, credentialID, ke1)
	if err != nil {
		return err
	}
	ke3, clientSessionKey, err := client.LoginFinish(ke2, credentialID)
	if err != nil {
		return ErrAuthenticationFailed
	}
	serverSessionKey, err := server.LoginFinish(state, ke3)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(clientSessionKey, serverSessionKey) != 1 {
		return ErrAuthenticationFailed
	}
	return nil
}
