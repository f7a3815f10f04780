package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/masedocs/mase-audit-api/internal/service"
	appErrors "github.com/masedocs/mase-audit-api/pkg/errors"
	"github.com/masedocs/mase-audit-api/pkg/response"
)

// HistoryHandler owns full-history deletion across audits, generations and
// the document registry.
type HistoryHandler struct {
	audits      *service.AuditHistoryService
	generations *service.GenerationHistoryService
	registry    *service.RegistryService
	dashboard   *service.DashboardService
}

// NewHistoryHandler creates a new handler.
func NewHistoryHandler(audits *service.AuditHistoryService, generations *service.GenerationHistoryService, registry *service.RegistryService, dashboard *service.DashboardService) *HistoryHandler {
	return &HistoryHandler{audits: audits, generations: generations, registry: registry, dashboard: dashboard}
}

// Clear godoc
// @Summary Clear all history
// @Description Remove stored objects, audit and generation rows, mirrors and registry entries for the current user
// @Tags History
// @Produce json
// @Success 204 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /history [delete]
func (h *HistoryHandler) Clear(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	ctx := c.Request.Context()
	if err := h.audits.Clear(ctx, claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.generations.Clear(ctx, claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.registry.Clear(ctx, claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	h.dashboard.Invalidate(ctx, claims.UserID)

	response.NoContent(c)
}
