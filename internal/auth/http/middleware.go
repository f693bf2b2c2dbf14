package http

import (
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	authUseCase "github.com/allisson/lightldap/internal/auth/usecase"
	apperrors "github.com/allisson/lightldap/internal/errors"
	"github.com/allisson/lightldap/internal/httputil"
)

// AuthenticationMiddleware validates the access token sent as "Authorization: Bearer <token>"
// (case-insensitive "bearer") and stores its claims in the request context.
//
// Missing or malformed headers answer 401. Invalid, expired and revoked tokens answer 401
// through SessionUseCase.Validate. Storage failures answer 500.
//
// Usage:
//
//	router.Use(AuthenticationMiddleware(sessionUseCase, logger))
//	router.GET("/protected", func(c *gin.Context) {
//	    claims, _ := GetClaims(c.Request.Context())
//	    ...
//	})
func AuthenticationMiddleware(sessionUseCase authUseCase.SessionUseCase, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			logger.Debug("authentication failed: missing or malformed authorization header")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		claims, err := sessionUseCase.Validate(c.Request.Context(), token)
		if err != nil {
			logger.Debug("authentication failed", slog.String("error", err.Error()))
			httputil.HandleErrorGin(c, err, logger)
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(WithClaims(c.Request.Context(), claims))

		logger.Debug("authentication successful", slog.String("user_id", claims.UserID))

		c.Next()
	}
}

// RequireGroupMiddleware only lets through principals belonging to at least one of groups.
// Must run after AuthenticationMiddleware.
//
//	router.POST("/api/v1/users",
//	    AuthenticationMiddleware(sessionUseCase, logger),
//	    RequireGroupMiddleware(logger, domain.AdminGroup),
//	    handler)
func RequireGroupMiddleware(logger *slog.Logger, groups ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c.Request.Context())
		if !ok {
			logger.Debug("authorization failed: no claims in context")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		for _, group := range groups {
			if claims.HasGroup(group) {
				c.Next()
				return
			}
		}

		logger.Debug("authorization failed: insufficient permissions",
			slog.String("user_id", claims.UserID),
			slog.String("path", c.Request.URL.Path))
		httputil.HandleErrorGin(c, apperrors.ErrForbidden, logger)
		c.Abort()
	}
}

// bearerToken extracts the token of a bearer authorization header.
func bearerToken(header string) (string, bool) {
	const bearerPrefix = "bearer "
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}
