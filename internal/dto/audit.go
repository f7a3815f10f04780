package dto

import (
	"time"

	"github.com/masedocs/mase-audit-api/internal/models"
)

// AuditHistoryResponse lists enriched completed sessions, newest first.
type AuditHistoryResponse struct {
	Entries []models.AuditHistoryEntry `json:"entries"`
	Stale   bool                       `json:"stale"`
}

// AuditSessionResponse is the detail view of one session.
type AuditSessionResponse struct {
	Session   models.AuditSession    `json:"session"`
	Documents []models.AuditDocument `json:"documents"`
	Results   []models.AuditResult   `json:"results"`
}

// UploadDocumentResponse confirms a stored upload.
type UploadDocumentResponse struct {
	Document models.AuditDocument `json:"document"`
	URL      string               `json:"url"`
}

// DocumentResultRequest is posted by the analyzer once a document is scored.
type DocumentResultRequest struct {
	ConformityScore float64  `json:"conformity_score" validate:"min=0"`
	AxisLabel       string   `json:"axis_label" validate:"required"`
	Gaps            []string `json:"gaps"`
	Recommendations []string `json:"recommendations"`
}

// CompleteSessionRequest finalizes a session with the analyzer's global score.
type CompleteSessionRequest struct {
	GlobalScore float64   `json:"global_score" validate:"min=0,max=100"`
	CompletedAt time.Time `json:"completed_at"`
}
