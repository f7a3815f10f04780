package models

import "time"

// AuditSessionStatus tracks the lifecycle of an audit run.
type AuditSessionStatus string

const (
	AuditStatusUpload    AuditSessionStatus = "upload"
	AuditStatusAnalysis  AuditSessionStatus = "analysis"
	AuditStatusCompleted AuditSessionStatus = "completed"
)

// AuditDocumentStatus tracks one uploaded file inside a session.
type AuditDocumentStatus string

const (
	DocumentStatusUploaded  AuditDocumentStatus = "uploaded"
	DocumentStatusAnalyzing AuditDocumentStatus = "analyzing"
	DocumentStatusAnalyzed  AuditDocumentStatus = "analyzed"
	DocumentStatusError     AuditDocumentStatus = "error"
)

// AuditSession is one run of uploading and scoring a batch of documents.
// Once status reaches completed the row is immutable.
type AuditSession struct {
	ID          string             `db:"id" json:"id"`
	UserID      string             `db:"user_id" json:"user_id"`
	Status      AuditSessionStatus `db:"status" json:"status"`
	GlobalScore *int               `db:"global_score" json:"global_score,omitempty"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
	CompletedAt *time.Time         `db:"completed_at" json:"completed_at,omitempty"`
}

// AuditDocument is one uploaded file belonging to exactly one session. Only
// documents with status analyzed contribute to the session aggregates.
type AuditDocument struct {
	ID            string              `db:"id" json:"id"`
	SessionID     string              `db:"session_id" json:"session_id"`
	Name          string              `db:"name" json:"name"`
	StoragePath   string              `db:"storage_path" json:"storage_path"`
	SizeBytes     int64               `db:"size_bytes" json:"size_bytes"`
	Status        AuditDocumentStatus `db:"status" json:"status"`
	ConformityRaw *float64            `db:"conformity_score" json:"conformity_score,omitempty"`
	AxisLabel     string              `db:"axis_label" json:"axis_label"`
	CreatedAt     time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time           `db:"updated_at" json:"updated_at"`
}

// AuditResult carries the analysis output for one document.
type AuditResult struct {
	ID              string    `db:"id" json:"id"`
	DocumentID      string    `db:"document_id" json:"document_id"`
	SessionID       string    `db:"session_id" json:"session_id"`
	AxisLabel       string    `db:"axis_label" json:"axis_label"`
	Gaps            []byte    `db:"gaps" json:"gaps,omitempty"`
	Recommendations []byte    `db:"recommendations" json:"recommendations,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// AuditHistoryEntry is a completed session enriched with derived aggregates.
// MissingDocuments lists the analyzed documents scoring under the conformity
// mark; MissingKeyDocuments lists mandatory referential documents the session
// never saw.
type AuditHistoryEntry struct {
	Session             AuditSession    `json:"session"`
	Documents           []AuditDocument `json:"documents"`
	DocumentsAnalyzed   int             `json:"documents_analyzed"`
	AxisScores          []AxisScore     `json:"axis_scores"`
	MissingDocuments    []string        `json:"missing_documents"`
	MissingKeyDocuments []string        `json:"missing_key_documents"`
}
