package dto

import "github.com/masedocs/mase-audit-api/internal/models"

// ExportRequest queues an audit-report export.
type ExportRequest struct {
	SessionID string              `json:"session_id" validate:"required"`
	Format    models.ReportFormat `json:"format" validate:"required,oneof=pdf csv"`
}

// ExportJobResponse returns the queued job reference.
type ExportJobResponse struct {
	ID     string              `json:"id"`
	Status models.ReportStatus `json:"status"`
}

// ExportStatusResponse reports job progress and the signed download URL.
type ExportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ReportStatus `json:"status"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
