package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/masedocs/mase-audit-api/internal/models"
)

// AuditRepository provides database access for audit sessions, documents and
// per-document results.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates an audit repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// CreateSession inserts a new audit session in the upload stage.
func (r *AuditRepository) CreateSession(ctx context.Context, session *models.AuditSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.Status == "" {
		session.Status = models.AuditStatusUpload
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_sessions (id, user_id, status, global_score, created_at, completed_at) VALUES (:id, :user_id, :status, :global_score, :created_at, :completed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create audit session: %w", err)
	}
	return nil
}

// FindSession returns a session by id scoped to its owner.
func (r *AuditRepository) FindSession(ctx context.Context, userID, sessionID string) (*models.AuditSession, error) {
	const query = `SELECT id, user_id, status, global_score, created_at, completed_at FROM audit_sessions WHERE id = $1 AND user_id = $2 LIMIT 1`
	var session models.AuditSession
	if err := r.db.GetContext(ctx, &session, query, sessionID, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find audit session: %w", err)
	}
	return &session, nil
}

// ListCompletedSessions returns the user's completed sessions, newest first.
func (r *AuditRepository) ListCompletedSessions(ctx context.Context, userID string, limit int) ([]models.AuditSession, error) {
	const query = `SELECT id, user_id, status, global_score, created_at, completed_at FROM audit_sessions WHERE user_id = $1 AND status = 'completed' ORDER BY completed_at DESC LIMIT $2`
	sessions := []models.AuditSession{}
	if err := r.db.SelectContext(ctx, &sessions, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list completed audit sessions: %w", err)
	}
	return sessions, nil
}

// LatestCompletedSession returns the most recent completed session, or
// sql.ErrNoRows when the user has none.
func (r *AuditRepository) LatestCompletedSession(ctx context.Context, userID string) (*models.AuditSession, error) {
	const query = `SELECT id, user_id, status, global_score, created_at, completed_at FROM audit_sessions WHERE user_id = $1 AND status = 'completed' ORDER BY completed_at DESC LIMIT 1`
	var session models.AuditSession
	if err := r.db.GetContext(ctx, &session, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("latest completed audit session: %w", err)
	}
	return &session, nil
}

// CountCompletedSessions returns how many completed sessions the user has.
func (r *AuditRepository) CountCompletedSessions(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM audit_sessions WHERE user_id = $1 AND status = 'completed'`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("count completed audit sessions: %w", err)
	}
	return count, nil
}

// UpdateSessionStatus moves a session through its lifecycle.
func (r *AuditRepository) UpdateSessionStatus(ctx context.Context, sessionID string, status models.AuditSessionStatus) error {
	const query = `UPDATE audit_sessions SET status = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, sessionID, status); err != nil {
		return fmt.Errorf("update audit session status: %w", err)
	}
	return nil
}

// CompleteSession finalizes a session with its global score.
func (r *AuditRepository) CompleteSession(ctx context.Context, sessionID string, globalScore int, completedAt time.Time) error {
	const query = `UPDATE audit_sessions SET status = 'completed', global_score = $2, completed_at = $3 WHERE id = $1 AND status <> 'completed'`
	if _, err := r.db.ExecContext(ctx, query, sessionID, globalScore, completedAt); err != nil {
		return fmt.Errorf("complete audit session: %w", err)
	}
	return nil
}

// CreateDocument inserts an uploaded document row.
func (r *AuditRepository) CreateDocument(ctx context.Context, doc *models.AuditDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Status == "" {
		doc.Status = models.DocumentStatusUploaded
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	const query = `INSERT INTO audit_documents (id, session_id, name, storage_path, size_bytes, status, conformity_score, axis_label, created_at, updated_at) VALUES (:id, :session_id, :name, :storage_path, :size_bytes, :status, :conformity_score, :axis_label, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create audit document: %w", err)
	}
	return nil
}

// FindDocument returns a document by id.
func (r *AuditRepository) FindDocument(ctx context.Context, documentID string) (*models.AuditDocument, error) {
	const query = `SELECT id, session_id, name, storage_path, size_bytes, status, conformity_score, axis_label, created_at, updated_at FROM audit_documents WHERE id = $1 LIMIT 1`
	var doc models.AuditDocument
	if err := r.db.GetContext(ctx, &doc, query, documentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find audit document: %w", err)
	}
	return &doc, nil
}

// ListDocumentsBySession returns every document of a session in upload order.
func (r *AuditRepository) ListDocumentsBySession(ctx context.Context, sessionID string) ([]models.AuditDocument, error) {
	const query = `SELECT id, session_id, name, storage_path, size_bytes, status, conformity_score, axis_label, created_at, updated_at FROM audit_documents WHERE session_id = $1 ORDER BY created_at ASC`
	docs := []models.AuditDocument{}
	if err := r.db.SelectContext(ctx, &docs, query, sessionID); err != nil {
		return nil, fmt.Errorf("list audit documents: %w", err)
	}
	return docs, nil
}

// ListDocumentsByUser returns every document across the user's sessions.
func (r *AuditRepository) ListDocumentsByUser(ctx context.Context, userID string) ([]models.AuditDocument, error) {
	const query = `SELECT d.id, d.session_id, d.name, d.storage_path, d.size_bytes, d.status, d.conformity_score, d.axis_label, d.created_at, d.updated_at FROM audit_documents d JOIN audit_sessions s ON s.id = d.session_id WHERE s.user_id = $1 ORDER BY d.created_at ASC`
	docs := []models.AuditDocument{}
	if err := r.db.SelectContext(ctx, &docs, query, userID); err != nil {
		return nil, fmt.Errorf("list user audit documents: %w", err)
	}
	return docs, nil
}

// ListDocumentPaths returns the storage keys of every document belonging to
// the user, used to purge the bucket before deleting the rows.
func (r *AuditRepository) ListDocumentPaths(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT d.storage_path FROM audit_documents d JOIN audit_sessions s ON s.id = d.session_id WHERE s.user_id = $1 AND d.storage_path <> ''`
	paths := []string{}
	if err := r.db.SelectContext(ctx, &paths, query, userID); err != nil {
		return nil, fmt.Errorf("list audit document paths: %w", err)
	}
	return paths, nil
}

// UpdateDocumentResult records the analysis outcome for one document.
func (r *AuditRepository) UpdateDocumentResult(ctx context.Context, documentID string, status models.AuditDocumentStatus, conformity *float64, axisLabel string) error {
	const query = `UPDATE audit_documents SET status = $2, conformity_score = $3, axis_label = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, documentID, status, conformity, axisLabel, time.Now().UTC()); err != nil {
		return fmt.Errorf("update audit document result: %w", err)
	}
	return nil
}

// CreateResult inserts the detailed analysis output for one document.
func (r *AuditRepository) CreateResult(ctx context.Context, result *models.AuditResult) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_results (id, document_id, session_id, axis_label, gaps, recommendations, created_at) VALUES (:id, :document_id, :session_id, :axis_label, :gaps, :recommendations, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, result); err != nil {
		return fmt.Errorf("create audit result: %w", err)
	}
	return nil
}

// ListResultsBySession returns the analysis results of a session.
func (r *AuditRepository) ListResultsBySession(ctx context.Context, sessionID string) ([]models.AuditResult, error) {
	const query = `SELECT id, document_id, session_id, axis_label, gaps, recommendations, created_at FROM audit_results WHERE session_id = $1 ORDER BY created_at ASC`
	results := []models.AuditResult{}
	if err := r.db.SelectContext(ctx, &results, query, sessionID); err != nil {
		return nil, fmt.Errorf("list audit results: %w", err)
	}
	return results, nil
}

// DeleteUserAuditData removes the user's audit rows children first so no
// step can orphan a row pointing at a deleted parent. Each step is labeled
// in its error so a partial failure reports exactly where it stopped.
func (r *AuditRepository) DeleteUserAuditData(ctx context.Context, userID string) error {
	const deleteResults = `DELETE FROM audit_results WHERE session_id IN (SELECT id FROM audit_sessions WHERE user_id = $1)`
	if _, err := r.db.ExecContext(ctx, deleteResults, userID); err != nil {
		return fmt.Errorf("delete audit results: %w", err)
	}

	const deleteDocuments = `DELETE FROM audit_documents WHERE session_id IN (SELECT id FROM audit_sessions WHERE user_id = $1)`
	if _, err := r.db.ExecContext(ctx, deleteDocuments, userID); err != nil {
		return fmt.Errorf("delete audit documents: %w", err)
	}

	const deleteSessions = `DELETE FROM audit_sessions WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, deleteSessions, userID); err != nil {
		return fmt.Errorf("delete audit sessions: %w", err)
	}

	return nil
}
