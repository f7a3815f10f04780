package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/masedocs/mase-audit-api/internal/models"
	"github.com/masedocs/mase-audit-api/internal/service"
	appErrors "github.com/masedocs/mase-audit-api/pkg/errors"
	"github.com/masedocs/mase-audit-api/pkg/response"
)

// RegistryHandler exposes the per-user document registry.
type RegistryHandler struct {
	service *service.RegistryService
}

// NewRegistryHandler creates a new handler.
func NewRegistryHandler(svc *service.RegistryService) *RegistryHandler {
	return &RegistryHandler{service: svc}
}

// List godoc
// @Summary List registry entries
// @Description Document registry filtered by session, source or axis, newest first
// @Tags Registry
// @Produce json
// @Param session_id query string false "Session ID"
// @Param source query string false "Entry source (upload, generated, derived)"
// @Param axis query string false "Axis label"
// @Param parent_id query string false "Original document ID for derivatives"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /registry [get]
func (h *RegistryHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.RegistryFilter{
		SessionID: c.Query("session_id"),
		Source:    c.Query("source"),
		AxisLabel: c.Query("axis"),
		ParentID:  c.Query("parent_id"),
	}

	entries, err := h.service.List(c.Request.Context(), claims.UserID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, entries, nil)
}

// Remove godoc
// @Summary Remove registry entries for a session
// @Description Drops every registry entry belonging to the given session
// @Tags Registry
// @Produce json
// @Param session_id query string true "Session ID"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /registry [delete]
func (h *RegistryHandler) Remove(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	sessionID := c.Query("session_id")
	if sessionID == "" {
		response.Error(c, appErrors.New(appErrors.ErrValidation.Code, http.StatusBadRequest, "session_id is required"))
		return
	}

	if err := h.service.RemoveBySession(c.Request.Context(), claims.UserID, sessionID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
