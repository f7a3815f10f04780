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

// AuditHandler manages audit sessions, their documents and history.
type AuditHandler struct {
	audits    *service.AuditHistoryService
	registry  *service.RegistryService
	dashboard *service.DashboardService
}

// NewAuditHandler creates a new handler.
func NewAuditHandler(audits *service.AuditHistoryService, registry *service.RegistryService, dashboard *service.DashboardService) *AuditHandler {
	return &AuditHandler{audits: audits, registry: registry, dashboard: dashboard}
}

// History godoc
// @Summary Audit history
// @Description Completed audit sessions enriched with per-axis scores, newest first
// @Tags Audits
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /audits [get]
func (h *AuditHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	history, err := h.audits.History(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, history, nil)
}

// Start godoc
// @Summary Start an audit session
// @Description Open a new in-progress audit session for the current user
// @Tags Audits
// @Produce json
// @Success 201 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /audits [post]
func (h *AuditHandler) Start(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	session, err := h.audits.StartSession(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, session)
}

// Latest godoc
// @Summary Latest completed audit
// @Description Most recent completed session enriched with per-axis scores
// @Tags Audits
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /audits/latest [get]
func (h *AuditHandler) Latest(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	entry, err := h.audits.Latest(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, entry, nil)
}

// Session godoc
// @Summary Audit session detail
// @Description Session with its documents and per-axis results
// @Tags Audits
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /audits/{id} [get]
func (h *AuditHandler) Session(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	detail, err := h.audits.Session(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, detail, nil)
}

// UploadDocument godoc
// @Summary Upload an audit document
// @Description Store a document on an in-progress session and register it
// @Tags Audits
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Session ID"
// @Param file formData file true "Document"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /audits/{id}/documents [post]
func (h *AuditHandler) UploadDocument(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}

	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload"))
		return
	}
	defer file.Close()

	sessionID := c.Param("id")
	uploaded, err := h.audits.UploadDocument(c.Request.Context(), claims.UserID, sessionID,
		header.Filename, header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		response.Error(c, err)
		return
	}

	if regErr := h.registry.Add(c.Request.Context(), models.RegistryEntry{
		UserID:     claims.UserID,
		SessionID:  sessionID,
		DocumentID: uploaded.Document.ID,
		Name:       uploaded.Document.Name,
		Source:     models.RegistrySourceUpload,
	}); regErr != nil {
		// The upload already succeeded; the registry entry is best effort.
		response.JSON(c, http.StatusCreated, uploaded, nil)
		return
	}

	response.Created(c, uploaded)
}

// SubmitDocumentResult godoc
// @Summary Record a document analysis result
// @Description Attach conformity score, gaps and recommendations to a document
// @Tags Audits
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param documentId path string true "Document ID"
// @Param payload body dto.DocumentResultRequest true "Analysis result"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /audits/{id}/documents/{documentId}/result [post]
func (h *AuditHandler) SubmitDocumentResult(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.DocumentResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid result payload"))
		return
	}

	if err := h.audits.SubmitDocumentResult(c.Request.Context(), claims.UserID, c.Param("id"), c.Param("documentId"), req); err != nil {
		response.Error(c, err)
		return
	}

	h.dashboard.Invalidate(c.Request.Context(), claims.UserID)
	response.NoContent(c)
}

// Complete godoc
// @Summary Complete an audit session
// @Description Finalize the session with the analyzer's global score
// @Tags Audits
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.CompleteSessionRequest true "Completion payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /audits/{id}/complete [post]
func (h *AuditHandler) Complete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CompleteSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid completion payload"))
		return
	}

	session, err := h.audits.CompleteSession(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.dashboard.Invalidate(c.Request.Context(), claims.UserID)
	response.JSON(c, http.StatusOK, session, nil)
}
