package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/masedocs/mase-audit-api/internal/dto"
	"github.com/masedocs/mase-audit-api/internal/models"
	"github.com/masedocs/mase-audit-api/internal/service"
	appErrors "github.com/masedocs/mase-audit-api/pkg/errors"
	"github.com/masedocs/mase-audit-api/pkg/response"
)

// GenerationHandler manages document generation sessions and their history.
type GenerationHandler struct {
	generations *service.GenerationHistoryService
	registry    *service.RegistryService
}

// NewGenerationHandler creates a new handler.
func NewGenerationHandler(generations *service.GenerationHistoryService, registry *service.RegistryService) *GenerationHandler {
	return &GenerationHandler{generations: generations, registry: registry}
}

// History godoc
// @Summary Generation history
// @Description Completed generation runs, newest first
// @Tags Generations
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /generations [get]
func (h *GenerationHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	history, err := h.generations.History(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, history, nil)
}

// Latest godoc
// @Summary Latest completed generation run
// @Tags Generations
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /generations/latest [get]
func (h *GenerationHandler) Latest(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	entry, err := h.generations.Latest(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, entry, nil)
}

// Start godoc
// @Summary Start a generation session
// @Description Open a generation run, post-audit mode requires a completed audit
// @Tags Generations
// @Accept json
// @Produce json
// @Param payload body dto.CreateGenerationRequest true "Generation payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /generations [post]
func (h *GenerationHandler) Start(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generation payload"))
		return
	}

	session, err := h.generations.StartSession(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, session)
}

// AddDocument godoc
// @Summary Attach a generated document
// @Description Store generated document content on an open session; parent_id links a derivative to its original document
// @Tags Generations
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body object true "Document name, axis label, base64 content and optional parent document ID"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /generations/{id}/documents [post]
func (h *GenerationHandler) AddDocument(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Name      string `json:"name" binding:"required"`
		AxisLabel string `json:"axis_label"`
		Content   []byte `json:"content" binding:"required"`
		ParentID  string `json:"parent_id"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid document payload"))
		return
	}

	sessionID := c.Param("id")
	doc, err := h.generations.AddDocument(c.Request.Context(), claims.UserID, sessionID, payload.Name, payload.AxisLabel, payload.Content)
	if err != nil {
		response.Error(c, err)
		return
	}

	source := models.RegistrySourceGenerated
	if payload.ParentID != "" {
		source = models.RegistrySourceDerived
	}
	if regErr := h.registry.Add(c.Request.Context(), models.RegistryEntry{
		UserID:     claims.UserID,
		SessionID:  sessionID,
		DocumentID: doc.ID,
		ParentID:   payload.ParentID,
		Name:       doc.Name,
		Source:     source,
		AxisLabel:  doc.AxisLabel,
	}); regErr != nil {
		// The document row is already stored; the registry entry is best effort.
		response.JSON(c, http.StatusCreated, doc, nil)
		return
	}

	response.Created(c, doc)
}

// Complete godoc
// @Summary Complete a generation session
// @Tags Generations
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /generations/{id}/complete [post]
func (h *GenerationHandler) Complete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	session, err := h.generations.CompleteSession(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, session, nil)
}
