package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/lightldap/internal/auth/domain"
	authService "github.com/allisson/lightldap/internal/auth/service"
	"github.com/allisson/lightldap/internal/database"
	directoryDomain "github.com/allisson/lightldap/internal/directory/domain"
)

// sessionUseCase implements SessionUseCase with JWT access tokens and stored refresh tokens.
type sessionUseCase struct {
	txManager    database.TxManager
	tokenRepo    TokenRepository
	directory    UserDirectory
	jwtService   authService.JWTService
	tokenService authService.TokenService
	denylist     authService.AccessTokenDenylist
	refreshTTL   time.Duration
	now          func() time.Time
}

// Issue creates a token pair carrying the user's current group names.
func (s *sessionUseCase) Issue(ctx context.Context, userID string) (*authDomain.TokenPair, error) {
	return s.issue(ctx, directoryDomain.NormalizeUserID(userID))
}

// Validate checks the signature, the expiry, the denylist and that the user still exists.
func (s *sessionUseCase) Validate(ctx context.Context, accessToken string) (*authDomain.Claims, error) {
	claims, err := s.jwtService.Parse(accessToken)
	if err != nil {
		return nil, err
	}

	denied, err := s.denylist.Contains(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if denied {
		return nil, authDomain.ErrTokenRevoked
	}

	if _, err := s.directory.GetUserDetails(ctx, claims.UserID); err != nil {
		if errors.Is(err, directoryDomain.ErrUserNotFound) {
			return nil, authDomain.ErrTokenInvalid
		}
		return nil, err
	}
	return claims, nil
}

// Refresh rotates a refresh token. The old record is deleted in the same transaction that
// stores the new one, so a refresh token can be redeemed at most once.
func (s *sessionUseCase) Refresh(ctx context.Context, refreshToken string) (*authDomain.TokenPair, error) {
	if refreshToken == "" {
		return nil, authDomain.ErrTokenInvalid
	}
	tokenHash := s.tokenService.HashToken(refreshToken)

	var pair *authDomain.TokenPair
	err := s.txManager.WithTx(ctx, func(ctx context.Context) error {
		record, err := s.tokenRepo.GetByTokenHash(ctx, tokenHash)
		if err != nil {
			if errors.Is(err, authDomain.ErrTokenNotFound) {
				return authDomain.ErrTokenInvalid
			}
			return err
		}
		if record.IsRevoked() {
			return authDomain.ErrTokenRevoked
		}
		if record.IsExpired(s.now().UTC()) {
			return authDomain.ErrTokenExpired
		}

		if err := s.tokenRepo.Delete(ctx, record.ID); err != nil {
			if errors.Is(err, authDomain.ErrTokenNotFound) {
				return authDomain.ErrTokenRevoked
			}
			return err
		}

		pair, err = s.issue(ctx, record.UserID)
		if errors.Is(err, directoryDomain.ErrUserNotFound) {
			return authDomain.ErrTokenInvalid
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Logout revokes the refresh token, which must belong to the same user as the access token,
// and denies the access token until it expires.
func (s *sessionUseCase) Logout(ctx context.Context, refreshToken string, claims *authDomain.Claims) error {
	if claims == nil {
		return authDomain.ErrTokenInvalid
	}

	if refreshToken != "" {
		record, err := s.tokenRepo.GetByTokenHash(ctx, s.tokenService.HashToken(refreshToken))
		if err != nil {
			if errors.Is(err, authDomain.ErrTokenNotFound) {
				return authDomain.ErrTokenInvalid
			}
			return err
		}
		if record.UserID != claims.UserID {
			return authDomain.ErrTokenInvalid
		}
		if !record.IsRevoked() {
			if err := s.tokenRepo.Revoke(ctx, record.ID, s.now().UTC()); err != nil {
				return err
			}
		}
	}

	return s.denylist.Add(ctx, claims.ID, claims.ExpiresAt)
}

// CleanupExpired deletes the refresh token records that expired before now.
func (s *sessionUseCase) CleanupExpired(ctx context.Context) (int64, error) {
	return s.tokenRepo.DeleteExpired(ctx, s.now().UTC())
}

func (s *sessionUseCase) issue(ctx context.Context, userID string) (*authDomain.TokenPair, error) {
	groups, err := s.directory.GetUserGroups(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(groups))
	for _, group := range groups {
		names = append(names, group.DisplayName)
	}

	accessToken, claims, err := s.jwtService.Sign(userID, names)
	if err != nil {
		return nil, err
	}

	plainToken, tokenHash, err := s.tokenService.GenerateToken()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	record := &authDomain.SessionToken{
		ID:        uuid.Must(uuid.NewV7()),
		TokenHash: tokenHash,
		UserID:    userID,
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}
	if err := s.tokenRepo.Create(ctx, record); err != nil {
		return nil, err
	}

	return &authDomain.TokenPair{
		AccessToken:           accessToken,
		AccessTokenExpiresAt:  claims.ExpiresAt,
		RefreshToken:          plainToken,
		RefreshTokenExpiresAt: record.ExpiresAt,
	}, nil
}

// NewSessionUseCase creates a new SessionUseCase. Refresh tokens live for refreshTTL.
func NewSessionUseCase(
	txManager database.TxManager,
	tokenRepo TokenRepository,
	directory UserDirectory,
	jwtService authService.JWTService,
	tokenService authService.TokenService,
	denylist authService.AccessTokenDenylist,
	refreshTTL time.Duration,
) SessionUseCase {
	return &sessionUseCase{
		txManager:    txManager,
		tokenRepo:    tokenRepo,
		directory:    directory,
		jwtService:   jwtService,
		tokenService: tokenService,
		denylist:     denylist,
		refreshTTL:   refreshTTL,
		now:          time.Now,
	}
}
