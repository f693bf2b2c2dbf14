package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/lightldap/internal/directory/http/dto"
	"github.com/allisson/lightldap/internal/directory/usecase"
	"github.com/allisson/lightldap/internal/httputil"
)

// AttributeHandler handles HTTP requests for the custom attribute schema.
type AttributeHandler struct {
	directory usecase.BackendHandler
	logger    *slog.Logger
}

// NewAttributeHandler creates a new attribute handler with required dependencies.
func NewAttributeHandler(directory usecase.BackendHandler, logger *slog.Logger) *AttributeHandler {
	return &AttributeHandler{
		directory: directory,
		logger:    logger,
	}
}

// ListHandler returns every declared attribute.
// GET /api/v1/attributes
func (h *AttributeHandler) ListHandler(c *gin.Context) {
	attributes, err := h.directory.ListAttributes(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, dto.MapAttributesToListResponse(attributes))
}

// CreateHandler declares an attribute.
// POST /api/v1/attributes - Requires the admin group.
func (h *AttributeHandler) CreateHandler(c *gin.Context) {
	var req dto.CreateAttributeRequest
	if !bind(c, &req, h.logger) {
		return
	}

	attribute, err := h.directory.CreateAttribute(c.Request.Context(), req.Name, req.IsEditable)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapAttributeToResponse(attribute))
}

// DeleteHandler removes a declaration together with every stored value.
// DELETE /api/v1/attributes/:name - Requires the admin group.
func (h *AttributeHandler) DeleteHandler(c *gin.Context) {
	if err := h.directory.DeleteAttribute(c.Request.Context(), c.Param("name")); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.Data(http.StatusNoContent, "application/json", nil)
}
