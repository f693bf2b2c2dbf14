package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	authDomain "github.com/allisson/lightldap/internal/auth/domain"
	authHTTP "github.com/allisson/lightldap/internal/auth/http"
	"github.com/allisson/lightldap/internal/directory/domain"
	"github.com/allisson/lightldap/internal/directory/http/dto"
	"github.com/allisson/lightldap/internal/directory/usecase"
	"github.com/allisson/lightldap/internal/httputil"
)

// GroupHandler handles HTTP requests for groups and memberships.
type GroupHandler struct {
	directory usecase.BackendHandler
	logger    *slog.Logger
}

// NewGroupHandler creates a new group handler with required dependencies.
func NewGroupHandler(directory usecase.BackendHandler, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{
		directory: directory,
		logger:    logger,
	}
}

// ListHandler lists groups matching the optional "filter" query parameter.
// GET /api/v1/groups - Readers see every group, others the groups they belong to.
func (h *GroupHandler) ListHandler(c *gin.Context) {
	claims, ok := principal(c, h.logger)
	if !ok {
		return
	}
	filter, offset, limit, ok := parseListQuery(c, h.logger)
	if !ok {
		return
	}
	if !authHTTP.CanReadAll(claims) {
		filter = restrict(filter, domain.Eq(domain.AttrMember, claims.UserID))
	}

	groups, err := h.directory.ListGroups(c.Request.Context(), filter)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapGroupsToListResponse(httputil.Paginate(groups, offset, limit)))
}

// CreateHandler creates a group.
// POST /api/v1/groups - Requires the admin group.
func (h *GroupHandler) CreateHandler(c *gin.Context) {
	var req dto.CreateGroupRequest
	if !bind(c, &req, h.logger) {
		return
	}

	group, err := h.directory.CreateGroup(c.Request.Context(), req.DisplayName)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.logger.Info("group created",
		slog.String("group_id", group.ID),
		slog.String("display_name", group.DisplayName))
	c.JSON(http.StatusCreated, dto.MapGroupToResponse(group))
}

// GetHandler returns one group with its members.
// GET /api/v1/groups/:id - Readers and members.
func (h *GroupHandler) GetHandler(c *gin.Context) {
	claims, ok := principal(c, h.logger)
	if !ok {
		return
	}

	group, err := h.directory.GetGroupDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	if !authHTTP.CanReadAll(claims) && !group.HasMember(claims.UserID) {
		httputil.HandleErrorGin(c, authDomain.ErrForbidden, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapGroupToResponse(group))
}

// DeleteHandler deletes a group and its memberships.
// DELETE /api/v1/groups/:id - Requires the admin group.
func (h *GroupHandler) DeleteHandler(c *gin.Context) {
	groupID := c.Param("id")

	if err := h.directory.DeleteGroup(c.Request.Context(), groupID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.logger.Info("group deleted", slog.String("group_id", groupID))
	c.Data(http.StatusNoContent, "application/json", nil)
}

// AddMemberHandler adds a user to a group. Adding an existing member succeeds.
// PUT /api/v1/groups/:id/members/:user_id - Requires the admin group.
func (h *GroupHandler) AddMemberHandler(c *gin.Context) {
	err := h.directory.AddUserToGroup(c.Request.Context(), c.Param("user_id"), c.Param("id"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.Data(http.StatusNoContent, "application/json", nil)
}

// RemoveMemberHandler removes a user from a group. Removing a non-member succeeds.
// DELETE /api/v1/groups/:id/members/:user_id - Requires the admin group.
func (h *GroupHandler) RemoveMemberHandler(c *gin.Context) {
	err := h.directory.RemoveUserFromGroup(c.Request.Context(), c.Param("user_id"), c.Param("id"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.Data(http.StatusNoContent, "application/json", nil)
}
