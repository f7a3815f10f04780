package models

import "time"

// GenerationMode distinguishes the two ways a generation run can start.
type GenerationMode string

const (
	// GenerationModePostAudit derives documents from a prior audit session.
	GenerationModePostAudit GenerationMode = "post-audit"
	// GenerationModeFromScratch starts without an originating audit.
	GenerationModeFromScratch GenerationMode = "from-scratch"
)

// GenerationSessionStatus tracks the lifecycle of a generation run.
type GenerationSessionStatus string

const (
	GenerationStatusDraft     GenerationSessionStatus = "draft"
	GenerationStatusRunning   GenerationSessionStatus = "running"
	GenerationStatusCompleted GenerationSessionStatus = "completed"
)

// GenerationSession is one run of producing compliance documents.
type GenerationSession struct {
	ID             string                  `db:"id" json:"id"`
	UserID         string                  `db:"user_id" json:"user_id"`
	Mode           GenerationMode          `db:"mode" json:"mode"`
	AuditSessionID *string                 `db:"audit_session_id" json:"audit_session_id,omitempty"`
	Status         GenerationSessionStatus `db:"status" json:"status"`
	CreatedAt      time.Time               `db:"created_at" json:"created_at"`
	CompletedAt    *time.Time              `db:"completed_at" json:"completed_at,omitempty"`
}

// GeneratedDocument is one document produced by a generation session.
type GeneratedDocument struct {
	ID          string    `db:"id" json:"id"`
	SessionID   string    `db:"session_id" json:"session_id"`
	Name        string    `db:"name" json:"name"`
	AxisLabel   string    `db:"axis_label" json:"axis_label"`
	StoragePath string    `db:"storage_path" json:"storage_path"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// GenerationHistoryEntry is a completed generation session with its documents.
type GenerationHistoryEntry struct {
	Session        GenerationSession   `json:"session"`
	Documents      []GeneratedDocument `json:"documents"`
	DocumentsCount int                 `json:"documents_count"`
}
