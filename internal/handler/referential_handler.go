package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/masedocs/mase-audit-api/internal/service"
	"github.com/masedocs/mase-audit-api/pkg/response"
)

// ReferentialHandler serves the read-only MASE referential.
type ReferentialHandler struct {
	service *service.ReferentialService
}

// NewReferentialHandler creates a new handler.
func NewReferentialHandler(svc *service.ReferentialService) *ReferentialHandler {
	return &ReferentialHandler{service: svc}
}

// Chapters godoc
// @Summary List referential chapters
// @Tags Referential
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /referential/chapters [get]
func (h *ReferentialHandler) Chapters(c *gin.Context) {
	chapters, err := h.service.Chapters(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, chapters, nil)
}

// Criteria godoc
// @Summary List chapter criteria
// @Tags Referential
// @Produce json
// @Param id path string true "Chapter ID"
// @Success 200 {object} response.Envelope
// @Router /referential/chapters/{id}/criteria [get]
func (h *ReferentialHandler) Criteria(c *gin.Context) {
	criteria, err := h.service.Criteria(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, criteria, nil)
}

// KeyDocuments godoc
// @Summary List key documents
// @Tags Referential
// @Produce json
// @Param axis query string false "Axis label"
// @Success 200 {object} response.Envelope
// @Router /referential/key-documents [get]
func (h *ReferentialHandler) KeyDocuments(c *gin.Context) {
	docs, err := h.service.KeyDocuments(c.Request.Context(), c.Query("axis"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// KeyDocumentContent godoc
// @Summary Key document content sections
// @Tags Referential
// @Produce json
// @Param id path string true "Key document ID"
// @Success 200 {object} response.Envelope
// @Router /referential/key-documents/{id}/content [get]
func (h *ReferentialHandler) KeyDocumentContent(c *gin.Context) {
	content, err := h.service.KeyDocumentContent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, content, nil)
}
