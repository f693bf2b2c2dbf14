package http

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	authDomain "github.com/allisson/lightldap/internal/auth/domain"
	"github.com/allisson/lightldap/internal/auth/http/dto"
	authUseCase "github.com/allisson/lightldap/internal/auth/usecase"
	directoryDomain "github.com/allisson/lightldap/internal/directory/domain"
	apperrors "github.com/allisson/lightldap/internal/errors"
	"github.com/allisson/lightldap/internal/httputil"
	customValidation "github.com/allisson/lightldap/internal/validation"
)

// AuthHandler handles login, token rotation, logout and password registration.
type AuthHandler struct {
	passwordUseCase authUseCase.PasswordUseCase
	sessionUseCase  authUseCase.SessionUseCase
	directory       authUseCase.UserDirectory
	logger          *slog.Logger
}

// NewAuthHandler creates a new authentication handler with required dependencies.
func NewAuthHandler(
	passwordUseCase authUseCase.PasswordUseCase,
	sessionUseCase authUseCase.SessionUseCase,
	directory authUseCase.UserDirectory,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		passwordUseCase: passwordUseCase,
		sessionUseCase:  sessionUseCase,
		directory:       directory,
		logger:          logger,
	}
}

// SimpleLoginHandler checks a username and password and issues a token pair.
// POST /auth/simple/login - No authentication required.
func (h *AuthHandler) SimpleLoginHandler(c *gin.Context) {
	var req dto.SimpleLoginRequest
	if !h.bind(c, &req) {
		return
	}

	userID := directoryDomain.NormalizeUserID(req.Username)
	if err := h.passwordUseCase.VerifyPassword(c.Request.Context(), userID, req.Password); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.issue(c, userID)
}

// LoginStartHandler answers the first message of a login.
// POST /auth/opaque/login/start - No authentication required.
func (h *AuthHandler) LoginStartHandler(c *gin.Context) {
	var req dto.LoginStartRequest
	if !h.bind(c, &req) {
		return
	}

	output, err := h.passwordUseCase.StartLogin(
		c.Request.Context(),
		directoryDomain.NormalizeUserID(req.Username),
		dto.DecodeBase64(req.LoginStartRequest),
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapLoginStartToResponse(output))
}

// LoginFinishHandler checks the final login message and issues a token pair.
// POST /auth/opaque/login/finish - No authentication required.
func (h *AuthHandler) LoginFinishHandler(c *gin.Context) {
	var req dto.LoginFinishRequest
	if !h.bind(c, &req) {
		return
	}

	userID := directoryDomain.NormalizeUserID(req.Username)
	err := h.passwordUseCase.FinishLogin(
		c.Request.Context(),
		userID,
		dto.DecodeBase64(req.ServerData),
		dto.DecodeBase64(req.CredentialFinalization),
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.issue(c, userID)
}

// RefreshHandler exchanges a refresh token for a new token pair. The old refresh token
// stops working.
// POST /auth/refresh - No authentication required.
func (h *AuthHandler) RefreshHandler(c *gin.Context) {
	var req dto.RefreshRequest
	if !h.bind(c, &req) {
		return
	}

	pair, err := h.sessionUseCase.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapTokenPairToResponse(pair))
}

// LogoutHandler revokes the refresh token, when sent, and denies the current access token.
// POST /auth/logout - Requires authentication.
func (h *AuthHandler) LogoutHandler(c *gin.Context) {
	claims, ok := GetClaims(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	var req dto.LogoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httputil.HandleBadRequestGin(c, err, h.logger)
			return
		}
	}

	if err := h.sessionUseCase.Logout(c.Request.Context(), req.RefreshToken, claims); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// RegisterStartHandler answers the first message of a password registration.
// POST /auth/opaque/register/start - Requires authentication.
func (h *AuthHandler) RegisterStartHandler(c *gin.Context) {
	var req dto.RegisterStartRequest
	if !h.bind(c, &req) {
		return
	}

	userID := directoryDomain.NormalizeUserID(req.Username)
	if err := h.authorizePasswordChange(c.Request.Context(), userID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	response, err := h.passwordUseCase.StartRegistration(
		c.Request.Context(),
		userID,
		dto.DecodeBase64(req.RegistrationStartRequest),
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.RegisterStartResponse{
		RegistrationResponse: base64.StdEncoding.EncodeToString(response),
	})
}

// RegisterFinishHandler stores the registration record produced by the client.
// POST /auth/opaque/register/finish - Requires authentication.
func (h *AuthHandler) RegisterFinishHandler(c *gin.Context) {
	var req dto.RegisterFinishRequest
	if !h.bind(c, &req) {
		return
	}

	userID := directoryDomain.NormalizeUserID(req.Username)
	if err := h.authorizePasswordChange(c.Request.Context(), userID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	err := h.passwordUseCase.FinishRegistration(
		c.Request.Context(),
		userID,
		dto.DecodeBase64(req.RegistrationUpload),
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.logger.Info("password changed", slog.String("user_id", userID))
	c.Data(http.StatusNoContent, "application/json", nil)
}

// authorizePasswordChange lets a user change their own password, an administrator change
// any password, and a password manager change the password of a non-admin user. Readonly
// principals change nothing, not even their own password.
func (h *AuthHandler) authorizePasswordChange(ctx context.Context, target string) error {
	claims, ok := GetClaims(ctx)
	if !ok {
		return apperrors.ErrUnauthorized
	}
	if IsReadonly(claims) {
		return authDomain.ErrForbidden
	}
	if IsSelf(claims, target) || IsAdmin(claims) {
		return nil
	}
	if !IsPasswordManager(claims) {
		return authDomain.ErrForbidden
	}

	groups, err := h.directory.GetUserGroups(ctx, target)
	if err != nil {
		return err
	}
	for _, group := range groups {
		if group.DisplayName == directoryDomain.AdminGroup {
			return authDomain.ErrForbidden
		}
	}
	return nil
}

func (h *AuthHandler) issue(c *gin.Context, userID string) {
	pair, err := h.sessionUseCase.Issue(c.Request.Context(), userID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.logger.Info("user logged in", slog.String("user_id", userID))
	c.JSON(http.StatusOK, dto.MapTokenPairToResponse(pair))
}

// validatable is implemented by every request DTO.
type validatable interface {
	Validate() error
}

// bind parses the JSON body into req and validates it, writing the error response on failure.
func (h *AuthHandler) bind(c *gin.Context, req validatable) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return false
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return false
	}
	return true
}
