package dto

import "github.com/masedocs/mase-audit-api/internal/models"

// GenerationHistoryResponse lists completed generation runs, newest first.
type GenerationHistoryResponse struct {
	Entries []models.GenerationHistoryEntry `json:"entries"`
	Stale   bool                            `json:"stale"`
}

// CreateGenerationRequest starts a generation session.
type CreateGenerationRequest struct {
	Mode           models.GenerationMode `json:"mode" validate:"required,oneof=post-audit from-scratch"`
	AuditSessionID string                `json:"audit_session_id,omitempty"`
}
