package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/masedocs/mase-audit-api/internal/models"
	"github.com/masedocs/mase-audit-api/internal/service"
	appErrors "github.com/masedocs/mase-audit-api/pkg/errors"
	"github.com/masedocs/mase-audit-api/pkg/response"
)

// OnboardingHandler exposes the company questionnaire endpoints.
type OnboardingHandler struct {
	service *service.OnboardingService
}

// NewOnboardingHandler creates a new handler.
func NewOnboardingHandler(svc *service.OnboardingService) *OnboardingHandler {
	return &OnboardingHandler{service: svc}
}

// Status godoc
// @Summary Onboarding status
// @Description Returns the questionnaire state for the current user
// @Tags Onboarding
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /onboarding [get]
func (h *OnboardingHandler) Status(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	status, err := h.service.Status(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, status, nil)
}

// Submit godoc
// @Summary Submit onboarding questionnaire
// @Description Persist the company questionnaire; all fields are required
// @Tags Onboarding
// @Accept json
// @Produce json
// @Param payload body models.OnboardingRequest true "Questionnaire"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /onboarding [post]
func (h *OnboardingHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.OnboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid questionnaire payload"))
		return
	}

	status, err := h.service.Submit(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, status, nil)
}

// Reset godoc
// @Summary Reset a user's onboarding gate
// @Description Support operation reopening the questionnaire for a user
// @Tags Onboarding
// @Produce json
// @Param userId path string true "User ID"
// @Success 204 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /onboarding/{userId} [delete]
func (h *OnboardingHandler) Reset(c *gin.Context) {
	if err := h.service.Reset(c.Request.Context(), c.Param("userId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
