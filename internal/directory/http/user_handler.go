package http

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	authDomain "github.com/allisson/lightldap/internal/auth/domain"
	authHTTP "github.com/allisson/lightldap/internal/auth/http"
	"github.com/allisson/lightldap/internal/directory/domain"
	"github.com/allisson/lightldap/internal/directory/http/dto"
	"github.com/allisson/lightldap/internal/directory/usecase"
	"github.com/allisson/lightldap/internal/httputil"
)

// UserHandler handles HTTP requests for user management.
type UserHandler struct {
	directory usecase.BackendHandler
	logger    *slog.Logger
}

// NewUserHandler creates a new user handler with required dependencies.
func NewUserHandler(directory usecase.BackendHandler, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		directory: directory,
		logger:    logger,
	}
}

// ListHandler lists users matching the optional "filter" query parameter.
// GET /api/v1/users - Readers see every user, others only themselves.
func (h *UserHandler) ListHandler(c *gin.Context) {
	claims, ok := principal(c, h.logger)
	if !ok {
		return
	}
	filter, offset, limit, ok := parseListQuery(c, h.logger)
	if !ok {
		return
	}
	if !authHTTP.CanReadAll(claims) {
		filter = restrict(filter, domain.Eq(domain.AttrUserID, claims.UserID))
	}

	users, err := h.directory.ListUsers(c.Request.Context(), filter)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapUsersToListResponse(httputil.Paginate(users, offset, limit)))
}

// CreateHandler creates a user.
// POST /api/v1/users - Requires the admin group.
func (h *UserHandler) CreateHandler(c *gin.Context) {
	var req dto.CreateUserRequest
	if !bind(c, &req, h.logger) {
		return
	}

	user, err := h.directory.CreateUser(c.Request.Context(), req.ToDomain())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.logger.Info("user created", slog.String("user_id", user.ID))
	c.JSON(http.StatusCreated, dto.MapUserToResponse(user))
}

// GetHandler returns one user.
// GET /api/v1/users/:id - The user themselves or a reader.
func (h *UserHandler) GetHandler(c *gin.Context) {
	userID, ok := h.authorizeRead(c)
	if !ok {
		return
	}

	user, err := h.directory.GetUserDetails(c.Request.Context(), userID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapUserToResponse(user))
}

// UpdateHandler applies a partial update.
// PATCH /api/v1/users/:id - Admins change anything; users change their own editable fields.
func (h *UserHandler) UpdateHandler(c *gin.Context) {
	claims, ok := principal(c, h.logger)
	if !ok {
		return
	}
	userID := domain.NormalizeUserID(c.Param("id"))

	var req dto.UpdateUserRequest
	if !bind(c, &req, h.logger) {
		return
	}

	if authHTTP.IsReadonly(claims) {
		httputil.HandleErrorGin(c, authDomain.ErrForbidden, h.logger)
		return
	}
	if !authHTTP.IsAdmin(claims) {
		if !authHTTP.IsSelf(claims, userID) {
			httputil.HandleErrorGin(c, authDomain.ErrForbidden, h.logger)
			return
		}
		if err := h.checkSelfEditable(c, &req); err != nil {
			httputil.HandleErrorGin(c, err, h.logger)
			return
		}
	}

	user, err := h.directory.UpdateUser(c.Request.Context(), userID, req.ToDomain())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapUserToResponse(user))
}

// DeleteHandler deletes a user with its memberships, password and sessions.
// DELETE /api/v1/users/:id - Requires the admin group.
func (h *UserHandler) DeleteHandler(c *gin.Context) {
	userID := domain.NormalizeUserID(c.Param("id"))

	if err := h.directory.DeleteUser(c.Request.Context(), userID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.logger.Info("user deleted", slog.String("user_id", userID))
	c.Data(http.StatusNoContent, "application/json", nil)
}

// ListGroupsHandler returns the groups of one user.
// GET /api/v1/users/:id/groups - The user themselves or a reader.
func (h *UserHandler) ListGroupsHandler(c *gin.Context) {
	userID, ok := h.authorizeRead(c)
	if !ok {
		return
	}

	groups, err := h.directory.GetUserGroups(c.Request.Context(), userID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapGroupsToListResponse(groups))
}

// authorizeRead allows the user named by the path and directory readers.
func (h *UserHandler) authorizeRead(c *gin.Context) (string, bool) {
	claims, ok := principal(c, h.logger)
	if !ok {
		return "", false
	}
	userID := domain.NormalizeUserID(c.Param("id"))
	if !authHTTP.IsSelf(claims, userID) && !authHTTP.CanReadAll(claims) {
		httputil.HandleErrorGin(c, authDomain.ErrForbidden, h.logger)
		return "", false
	}
	return userID, true
}

// checkSelfEditable rejects changes a user may not make on their own entry.
func (h *UserHandler) checkSelfEditable(c *gin.Context, req *dto.UpdateUserRequest) error {
	fields, attributes := req.ChangedFields()
	for _, field := range fields {
		if !slices.Contains(domain.UserSelfEditableFields, field) {
			return authDomain.ErrForbidden
		}
	}
	if len(attributes) == 0 {
		return nil
	}

	schema, err := h.directory.ListAttributes(c.Request.Context())
	if err != nil {
		return err
	}
	editable := make(map[string]bool, len(schema))
	for _, attribute := range schema {
		editable[attribute.Name] = attribute.IsEditable
	}
	for _, name := range attributes {
		if !editable[name] {
			return authDomain.ErrForbidden
		}
	}
	return nil
}
