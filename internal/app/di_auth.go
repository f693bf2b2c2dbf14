package app

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"sync"

	authHTTP "github.com/allisson/lightldap/internal/auth/http"
	authRepository "github.com/allisson/lightldap/internal/auth/repository"
	authService "github.com/allisson/lightldap/internal/auth/service"
	authUseCase "github.com/allisson/lightldap/internal/auth/usecase"
	"github.com/allisson/lightldap/internal/opaque"
)

// jwtSecretSize is the length of the signing secret generated when JWT_SECRET is unset.
const jwtSecretSize = 32

// authComponents holds the password and session components of the container.
type authComponents struct {
	serverKeyService authService.ServerKeyService
	opaqueServer     *opaque.Server
	jwtService       authService.JWTService
	tokenService     authService.TokenService
	denylist         authService.AccessTokenDenylist
	tokenRepository  authUseCase.TokenRepository
	passwordRepo     authUseCase.PasswordRepository
	passwordUseCase  authUseCase.PasswordUseCase
	sessionUseCase   authUseCase.SessionUseCase
	authHandler      *authHTTP.AuthHandler

	serverKeyServiceInit sync.Once
	opaqueServerInit     sync.Once
	jwtServiceInit       sync.Once
	tokenServiceInit     sync.Once
	denylistInit         sync.Once
	tokenRepositoryInit  sync.Once
	passwordRepoInit     sync.Once
	passwordUseCaseInit  sync.Once
	sessionUseCaseInit   sync.Once
	authHandlerInit      sync.Once
}

// ServerKeyService returns the service persisting the server identity key.
func (c *Container) ServerKeyService() authService.ServerKeyService {
	c.serverKeyServiceInit.Do(func() {
		c.serverKeyService = authService.NewServerKeyService(
			c.config.ServerKeyFile,
			c.config.ServerKeyKMSURI,
			c.Logger(),
		)
	})
	return c.serverKeyService
}

// OpaqueServer returns the password protocol server. The identity key is loaded from
// disk, or generated on first start.
func (c *Container) OpaqueServer() (*opaque.Server, error) {
	var err error
	c.opaqueServerInit.Do(func() {
		c.opaqueServer, err = c.initOpaqueServer()
		if err != nil {
			c.initErrors["opaqueServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["opaqueServer"]; exists {
		return nil, storedErr
	}
	return c.opaqueServer, nil
}

// JWTService returns the access token signer.
func (c *Container) JWTService() (authService.JWTService, error) {
	var err error
	c.jwtServiceInit.Do(func() {
		c.jwtService, err = c.initJWTService()
		if err != nil {
			c.initErrors["jwtService"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["jwtService"]; exists {
		return nil, storedErr
	}
	return c.jwtService, nil
}

// TokenService returns the refresh token generator.
func (c *Container) TokenService() authService.TokenService {
	c.tokenServiceInit.Do(func() {
		c.tokenService = authService.NewTokenService()
	})
	return c.tokenService
}

// AccessTokenDenylist returns the Redis backed denylist, or a no-op one without Redis.
func (c *Container) AccessTokenDenylist() (authService.AccessTokenDenylist, error) {
	var err error
	c.denylistInit.Do(func() {
		c.denylist, err = c.initDenylist()
		if err != nil {
			c.initErrors["denylist"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["denylist"]; exists {
		return nil, storedErr
	}
	return c.denylist, nil
}

// TokenRepository returns the refresh token repository.
func (c *Container) TokenRepository() (authUseCase.TokenRepository, error) {
	var err error
	c.tokenRepositoryInit.Do(func() {
		c.tokenRepository, err = c.initTokenRepository()
		if err != nil {
			c.initErrors["tokenRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["tokenRepository"]; exists {
		return nil, storedErr
	}
	return c.tokenRepository, nil
}

// PasswordRepository returns the password envelope repository.
func (c *Container) PasswordRepository() (authUseCase.PasswordRepository, error) {
	var err error
	c.passwordRepoInit.Do(func() {
		c.passwordRepo, err = c.initPasswordRepository()
		if err != nil {
			c.initErrors["passwordRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["passwordRepo"]; exists {
		return nil, storedErr
	}
	return c.passwordRepo, nil
}

// PasswordUseCase returns the password use case.
func (c *Container) PasswordUseCase() (authUseCase.PasswordUseCase, error) {
	var err error
	c.passwordUseCaseInit.Do(func() {
		c.passwordUseCase, err = c.initPasswordUseCase()
		if err != nil {
			c.initErrors["passwordUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["passwordUseCase"]; exists {
		return nil, storedErr
	}
	return c.passwordUseCase, nil
}

// SessionUseCase returns the session use case.
func (c *Container) SessionUseCase() (authUseCase.SessionUseCase, error) {
	var err error
	c.sessionUseCaseInit.Do(func() {
		c.sessionUseCase, err = c.initSessionUseCase()
		if err != nil {
			c.initErrors["sessionUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["sessionUseCase"]; exists {
		return nil, storedErr
	}
	return c.sessionUseCase, nil
}

// AuthHandler returns the HTTP handler for the login and session endpoints.
func (c *Container) AuthHandler() (*authHTTP.AuthHandler, error) {
	var err error
	c.authHandlerInit.Do(func() {
		c.authHandler, err = c.initAuthHandler()
		if err != nil {
			c.initErrors["authHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["authHandler"]; exists {
		return nil, storedErr
	}
	return c.authHandler, nil
}

// initOpaqueServer loads the identity key and builds the protocol server.
func (c *Container) initOpaqueServer() (*opaque.Server, error) {
	key, err := c.ServerKeyService().LoadOrGenerate(c.ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load server key: %w", err)
	}
	return opaque.NewServer(key, c.ksfParams()), nil
}

// ksfParams returns the key stretching parameters, falling back to the defaults for
// values that are not positive.
func (c *Container) ksfParams() opaque.KSFParams {
	params := opaque.DefaultKSFParams
	if c.config.OpaqueKSFTime > 0 {
		params.Time = uint32(c.config.OpaqueKSFTime)
	}
	if c.config.OpaqueKSFMemory > 0 {
		params.Memory = uint32(c.config.OpaqueKSFMemory)
	}
	if c.config.OpaqueKSFThreads > 0 && c.config.OpaqueKSFThreads <= 255 {
		params.Threads = uint8(c.config.OpaqueKSFThreads)
	}
	return params
}

// initJWTService creates the signer. Without JWT_SECRET a random secret is used, so
// access tokens do not survive a restart.
func (c *Container) initJWTService() (authService.JWTService, error) {
	secret := []byte(c.config.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, jwtSecretSize)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate jwt secret: %w", err)
		}
		c.Logger().Warn("JWT_SECRET is not set, using a random secret",
			slog.Int("size", jwtSecretSize))
	}
	return authService.NewJWTService(secret, c.config.JWTAccessTokenExpiration), nil
}

// initDenylist picks the Redis denylist when a Redis client is configured.
func (c *Container) initDenylist() (authService.AccessTokenDenylist, error) {
	client, err := c.Redis()
	if err != nil {
		return nil, fmt.Errorf("failed to get redis for denylist: %w", err)
	}
	if client == nil {
		return authService.NewNoopDenylist(), nil
	}
	return authService.NewRedisDenylist(client), nil
}

// initTokenRepository creates the token repository for the configured dialect.
func (c *Container) initTokenRepository() (authUseCase.TokenRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for token repository: %w", err)
	}
	dialect, err := c.Dialect()
	if err != nil {
		return nil, err
	}
	return authRepository.NewSQLTokenRepository(db, dialect), nil
}

// initPasswordRepository creates the password repository for the configured dialect.
func (c *Container) initPasswordRepository() (authUseCase.PasswordRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for password repository: %w", err)
	}
	dialect, err := c.Dialect()
	if err != nil {
		return nil, err
	}
	return authRepository.NewSQLPasswordRepository(db, dialect), nil
}

// initPasswordUseCase creates the password use case with all its dependencies.
func (c *Container) initPasswordUseCase() (authUseCase.PasswordUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for password use case: %w", err)
	}

	passwordRepo, err := c.PasswordRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get password repository for password use case: %w", err)
	}

	backend, err := c.BackendHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get backend handler for password use case: %w", err)
	}

	server, err := c.OpaqueServer()
	if err != nil {
		return nil, fmt.Errorf("failed to get opaque server for password use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for password use case: %w", err)
	}

	useCase := authUseCase.NewPasswordUseCase(txManager, passwordRepo, backend, server)
	return authUseCase.NewPasswordUseCaseWithMetrics(useCase, businessMetrics), nil
}

// initSessionUseCase creates the session use case with all its dependencies.
func (c *Container) initSessionUseCase() (authUseCase.SessionUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for session use case: %w", err)
	}

	tokenRepository, err := c.TokenRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get token repository for session use case: %w", err)
	}

	backend, err := c.BackendHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get backend handler for session use case: %w", err)
	}

	jwtService, err := c.JWTService()
	if err != nil {
		return nil, fmt.Errorf("failed to get jwt service for session use case: %w", err)
	}

	denylist, err := c.AccessTokenDenylist()
	if err != nil {
		return nil, fmt.Errorf("failed to get denylist for session use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for session use case: %w", err)
	}

	useCase := authUseCase.NewSessionUseCase(
		txManager,
		tokenRepository,
		backend,
		jwtService,
		c.TokenService(),
		denylist,
		c.config.JWTRefreshTokenExpiration,
	)
	return authUseCase.NewSessionUseCaseWithMetrics(useCase, businessMetrics), nil
}

// initAuthHandler creates the authentication HTTP handler.
func (c *Container) initAuthHandler() (*authHTTP.AuthHandler, error) {
	passwordUseCase, err := c.PasswordUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get password use case for auth handler: %w", err)
	}

	sessionUseCase, err := c.SessionUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get session use case for auth handler: %w", err)
	}

	backend, err := c.BackendHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get backend handler for auth handler: %w", err)
	}

	return authHTTP.NewAuthHandler(passwordUseCase, sessionUseCase, backend, c.Logger()), nil
}
