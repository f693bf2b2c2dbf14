package usecase

import (
	"context"
	"errors"
	"time"

	authDomain "github.com/allisson/lightldap/internal/auth/domain"
	"github.com/allisson/lightldap/internal/database"
	directoryDomain "github.com/allisson/lightldap/internal/directory/domain"
	apperrors "github.com/allisson/lightldap/internal/errors"
	"github.com/allisson/lightldap/internal/opaque"
)

// ErrEmptyPassword indicates a registration with an empty password.
var ErrEmptyPassword = apperrors.Wrap(apperrors.ErrInvalidInput, "password must not be empty")

// passwordUseCase implements PasswordUseCase with the OPAQUE server.
type passwordUseCase struct {
	txManager    database.TxManager
	passwordRepo PasswordRepository
	directory    UserDirectory
	server       *opaque.Server
	now          func() time.Time
}

// RegisterPassword replaces the password of an existing user.
func (p *passwordUseCase) RegisterPassword(ctx context.Context, userID, password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	userID, err := p.requireUser(ctx, userID)
	if err != nil {
		return err
	}

	record, err := opaque.Register(p.server, userID, password)
	if err != nil {
		return err
	}
	return p.store(ctx, userID, record)
}

// VerifyPassword checks password against the stored record. Missing users, missing records
// and wrong passwords all run the same protocol steps and return ErrAuthenticationFailed.
func (p *passwordUseCase) VerifyPassword(ctx context.Context, userID, password string) error {
	if password == "" {
		return authDomain.ErrAuthenticationFailed
	}
	userID = directoryDomain.NormalizeUserID(userID)

	record, err := p.loadRecord(ctx, userID)
	if err != nil {
		return err
	}
	if err := opaque.Login(p.server, userID, password, record); err != nil {
		return authDomain.ErrAuthenticationFailed
	}
	return nil
}

// StartRegistration evaluates the blinded password of the client.
func (p *passwordUseCase) StartRegistration(ctx context.Context, userID string, request []byte) ([]byte, error) {
	userID, err := p.requireUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var req opaque.RegistrationRequest
	if err := req.UnmarshalBinary(request); err != nil {
		return nil, err
	}
	resp, err := p.server.RegistrationResponse(&req, userID)
	if err != nil {
		return nil, err
	}
	return resp.MarshalBinary()
}

// FinishRegistration stores the record the client built from the registration response.
func (p *passwordUseCase) FinishRegistration(ctx context.Context, userID string, record []byte) error {
	userID, err := p.requireUser(ctx, userID)
	if err != nil {
		return err
	}

	var rec opaque.RegistrationRecord
	if err := rec.UnmarshalBinary(record); err != nil {
		return err
	}
	return p.store(ctx, userID, &rec)
}

// StartLogin answers KE1 and seals the server state for FinishLogin.
func (p *passwordUseCase) StartLogin(
	ctx context.Context,
	userID string,
	ke1 []byte,
) (*authDomain.LoginStartOutput, error) {
	userID = directoryDomain.NormalizeUserID(userID)

	var msg opaque.KE1
	if err := msg.UnmarshalBinary(ke1); err != nil {
		return nil, err
	}

	record, err := p.loadRecord(ctx, userID)
	if err != nil {
		return nil, err
	}
	ke2, state, err := p.server.LoginInit(record, userID, &msg)
	if err != nil {
		return nil, err
	}

	ke2Bytes, err := ke2.MarshalBinary()
	if err != nil {
		return nil, err
	}
	serverData, err := p.server.SealLoginState(state, userID, p.now())
	if err != nil {
		return nil, err
	}
	return &authDomain.LoginStartOutput{KE2: ke2Bytes, ServerData: serverData}, nil
}

// FinishLogin checks the client's proof. Every failure is ErrAuthenticationFailed.
func (p *passwordUseCase) FinishLogin(ctx context.Context, userID string, serverData, ke3 []byte) error {
	userID = directoryDomain.NormalizeUserID(userID)

	state, err := p.server.OpenLoginState(serverData, userID, p.now())
	if err != nil {
		return authDomain.ErrAuthenticationFailed
	}
	var msg opaque.KE3
	if err := msg.UnmarshalBinary(ke3); err != nil {
		return authDomain.ErrAuthenticationFailed
	}
	if _, err := p.server.LoginFinish(state, &msg); err != nil {
		return authDomain.ErrAuthenticationFailed
	}
	return nil
}

func (p *passwordUseCase) requireUser(ctx context.Context, userID string) (string, error) {
	user, err := p.directory.GetUserDetails(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// loadRecord returns nil when the user has no usable record, so the caller runs the
// protocol against a fake one. Only storage failures are returned.
func (p *passwordUseCase) loadRecord(ctx context.Context, userID string) (*opaque.RegistrationRecord, error) {
	envelope, err := p.passwordRepo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, authDomain.ErrEnvelopeNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var record opaque.RegistrationRecord
	if err := record.UnmarshalBinary(envelope.Envelope); err != nil {
		return nil, nil
	}
	return &record, nil
}

func (p *passwordUseCase) store(ctx context.Context, userID string, record *opaque.RegistrationRecord) error {
	data, err := record.MarshalBinary()
	if err != nil {
		return err
	}
	return p.txManager.WithTx(ctx, func(ctx context.Context) error {
		return p.passwordRepo.Upsert(ctx, &authDomain.PasswordEnvelope{
			UserID:    userID,
			Envelope:  data,
			UpdatedAt: p.now().UTC(),
		})
	})
}

// NewPasswordUseCase creates a new PasswordUseCase.
func NewPasswordUseCase(
	txManager database.TxManager,
	passwordRepo PasswordRepository,
	directory UserDirectory,
	server *opaque.Server,
) PasswordUseCase {
	return &passwordUseCase{
		txManager:    txManager,
		passwordRepo: passwordRepo,
		directory:    directory,
		server:       server,
		now:          time.Now,
	}
}
