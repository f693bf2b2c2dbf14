package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	authDomain "github.com/allisson/lightldap/internal/auth/domain"
	apperrors "github.com/allisson/lightldap/internal/errors"
)

// accessClaims is the JWT body of an access token.
type accessClaims struct {
	jwt.RegisteredClaims
	Groups []string `json:"groups"`
}

// jwtService implements JWTService with HMAC-SHA512 signed tokens.
type jwtService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTService creates a JWTService signing with secret. Tokens live for ttl.
func NewJWTService(secret []byte, ttl time.Duration) JWTService {
	return &jwtService{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Sign issues a new access token with a fresh jti.
func (s *jwtService) Sign(userID string, groups []string) (string, *authDomain.Claims, error) {
	issuedAt := s.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(s.ttl)

	id, err := uuid.NewV7()
	if err != nil {
		return "", nil, apperrors.Wrap(err, "failed to generate token id")
	}
	if groups == nil {
		groups = []string{}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.String(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Groups: groups,
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, apperrors.Wrap(err, "failed to sign access token")
	}

	return signed, &authDomain.Claims{
		ID:        id.String(),
		UserID:    userID,
		Groups:    groups,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Parse verifies an access token and returns its claims.
func (s *jwtService) Parse(accessToken string) (*authDomain.Claims, error) {
	claims := &accessClaims{}

	token, err := jwt.ParseWithClaims(accessToken, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, authDomain.ErrTokenExpired
		}
		return nil, authDomain.ErrTokenInvalid
	}
	if !token.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, authDomain.ErrTokenInvalid
	}

	result := &authDomain.Claims{
		ID:        claims.ID,
		UserID:    claims.Subject,
		Groups:    claims.Groups,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	return result, nil
}
