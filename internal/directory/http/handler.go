// Package http provides the administrative HTTP handlers for users, groups and the
// attribute schema.
package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	authDomain "github.com/allisson/lightldap/internal/auth/domain"
	authHTTP "github.com/allisson/lightldap/internal/auth/http"
	"github.com/allisson/lightldap/internal/directory/domain"
	"github.com/allisson/lightldap/internal/directory/http/dto"
	apperrors "github.com/allisson/lightldap/internal/errors"
	"github.com/allisson/lightldap/internal/httputil"
	customValidation "github.com/allisson/lightldap/internal/validation"
)

// validatable is implemented by every request DTO.
type validatable interface {
	Validate() error
}

// bind parses the JSON body into req and validates it, writing the error response on failure.
func bind(c *gin.Context, req validatable, logger *slog.Logger) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httputil.HandleBadRequestGin(c, err, logger)
		return false
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), logger)
		return false
	}
	return true
}

// principal returns the claims of the caller, writing 401 when absent.
func principal(c *gin.Context, logger *slog.Logger) (*authDomain.Claims, bool) {
	claims, ok := authHTTP.GetClaims(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
		return nil, false
	}
	return claims, true
}

// parseListQuery reads the filter and pagination query parameters.
func parseListQuery(c *gin.Context, logger *slog.Logger) (*domain.Filter, int, int, bool) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, logger)
		return nil, 0, 0, false
	}
	filter, err := dto.ParseFilter(c.Query("filter"))
	if err != nil {
		httputil.HandleErrorGin(c, err, logger)
		return nil, 0, 0, false
	}
	return filter, offset, limit, true
}

// restrict narrows filter with an extra predicate.
func restrict(filter, extra *domain.Filter) *domain.Filter {
	if filter == nil {
		return extra
	}
	return domain.And(filter, extra)
}
