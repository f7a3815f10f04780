package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/masedocs/mase-audit-api/internal/middleware"
	"github.com/masedocs/mase-audit-api/internal/service"
	appErrors "github.com/masedocs/mase-audit-api/pkg/errors"
	"github.com/masedocs/mase-audit-api/pkg/response"
)

// DashboardHandler serves the aggregated compliance overview.
type DashboardHandler struct {
	service *service.DashboardService
}

// NewDashboardHandler creates a new handler.
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Overview godoc
// @Summary Dashboard overview
// @Description Latest audit scores, priority actions and recent activity for the current user
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Overview(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	overview, cached, err := h.service.Overview(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, overview, nil, middleware.ExtractMeta(c))
}
