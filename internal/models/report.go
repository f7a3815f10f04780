package models

import "time"

// ReportFormat enumerates supported export formats.
type ReportFormat string

const (
	ReportFormatPDF ReportFormat = "pdf"
	ReportFormatCSV ReportFormat = "csv"
)

// ReportStatus tracks an export job lifecycle.
type ReportStatus string

const (
	ReportStatusQueued     ReportStatus = "queued"
	ReportStatusProcessing ReportStatus = "processing"
	ReportStatusDone       ReportStatus = "done"
	ReportStatusFailed     ReportStatus = "failed"
)

// ExportJob is a queued audit-report export.
type ExportJob struct {
	ID           string       `db:"id" json:"id"`
	UserID       string       `db:"user_id" json:"user_id"`
	SessionID    string       `db:"session_id" json:"session_id"`
	Format       ReportFormat `db:"format" json:"format"`
	Status       ReportStatus `db:"status" json:"status"`
	FilePath     *string      `db:"file_path" json:"file_path,omitempty"`
	ResultURL    *string      `db:"result_url" json:"result_url,omitempty"`
	ErrorMessage *string      `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time   `db:"finished_at" json:"finished_at,omitempty"`
}
