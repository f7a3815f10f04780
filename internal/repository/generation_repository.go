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

// GenerationRepository provides database access for generation sessions and
// the documents they produce.
type GenerationRepository struct {
	db *sqlx.DB
}

// NewGenerationRepository creates a generation repository.
func NewGenerationRepository(db *sqlx.DB) *GenerationRepository {
	return &GenerationRepository{db: db}
}

// CreateSession inserts a new generation session.
func (r *GenerationRepository) CreateSession(ctx context.Context, session *models.GenerationSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.Status == "" {
		session.Status = models.GenerationStatusDraft
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO generation_sessions (id, user_id, mode, audit_session_id, status, created_at, completed_at) VALUES (:id, :user_id, :mode, :audit_session_id, :status, :created_at, :completed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create generation session: %w", err)
	}
	return nil
}

// FindSession returns a session by id scoped to its owner.
func (r *GenerationRepository) FindSession(ctx context.Context, userID, sessionID string) (*models.GenerationSession, error) {
	const query = `SELECT id, user_id, mode, audit_session_id, status, created_at, completed_at FROM generation_sessions WHERE id = $1 AND user_id = $2 LIMIT 1`
	var session models.GenerationSession
	if err := r.db.GetContext(ctx, &session, query, sessionID, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find generation session: %w", err)
	}
	return &session, nil
}

// ListCompletedSessions returns the user's completed sessions, newest first.
func (r *GenerationRepository) ListCompletedSessions(ctx context.Context, userID string, limit int) ([]models.GenerationSession, error) {
	const query = `SELECT id, user_id, mode, audit_session_id, status, created_at, completed_at FROM generation_sessions WHERE user_id = $1 AND status = 'completed' ORDER BY completed_at DESC LIMIT $2`
	sessions := []models.GenerationSession{}
	if err := r.db.SelectContext(ctx, &sessions, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list completed generation sessions: %w", err)
	}
	return sessions, nil
}

// CompleteSession finalizes a generation run.
func (r *GenerationRepository) CompleteSession(ctx context.Context, sessionID string, completedAt time.Time) error {
	const query = `UPDATE generation_sessions SET status = 'completed', completed_at = $2 WHERE id = $1 AND status <> 'completed'`
	if _, err := r.db.ExecContext(ctx, query, sessionID, completedAt); err != nil {
		return fmt.Errorf("complete generation session: %w", err)
	}
	return nil
}

// CreateDocument inserts a generated document row.
func (r *GenerationRepository) CreateDocument(ctx context.Context, doc *models.GeneratedDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO generated_documents (id, session_id, name, axis_label, storage_path, created_at) VALUES (:id, :session_id, :name, :axis_label, :storage_path, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create generated document: %w", err)
	}
	return nil
}

// ListDocumentsBySession returns the documents of a generation run.
func (r *GenerationRepository) ListDocumentsBySession(ctx context.Context, sessionID string) ([]models.GeneratedDocument, error) {
	const query = `SELECT id, session_id, name, axis_label, storage_path, created_at FROM generated_documents WHERE session_id = $1 ORDER BY created_at ASC`
	docs := []models.GeneratedDocument{}
	if err := r.db.SelectContext(ctx, &docs, query, sessionID); err != nil {
		return nil, fmt.Errorf("list generated documents: %w", err)
	}
	return docs, nil
}

// ListDocumentPaths returns the storage keys of every generated document
// belonging to the user.
func (r *GenerationRepository) ListDocumentPaths(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT d.storage_path FROM generated_documents d JOIN generation_sessions s ON s.id = d.session_id WHERE s.user_id = $1 AND d.storage_path <> ''`
	paths := []string{}
	if err := r.db.SelectContext(ctx, &paths, query, userID); err != nil {
		return nil, fmt.Errorf("list generated document paths: %w", err)
	}
	return paths, nil
}

// DeleteUserGenerationData removes the user's generation rows children first.
func (r *GenerationRepository) DeleteUserGenerationData(ctx context.Context, userID string) error {
	const deleteDocuments = `DELETE FROM generated_documents WHERE session_id IN (SELECT id FROM generation_sessions WHERE user_id = $1)`
	if _, err := r.db.ExecContext(ctx, deleteDocuments, userID); err != nil {
		return fmt.Errorf("delete generated documents: %w", err)
	}

	const deleteSessions = `DELETE FROM generation_sessions WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, deleteSessions, userID); err != nil {
		return fmt.Errorf("delete generation sessions: %w", err)
	}

	return nil
}
