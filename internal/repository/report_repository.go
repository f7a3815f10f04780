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

// ReportRepository tracks queued export jobs.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository creates a report repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// CreateJob inserts a queued export job.
func (r *ReportRepository) CreateJob(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ReportStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO export_jobs (id, user_id, session_id, format, status, file_path, result_url, error_message, created_at, finished_at) VALUES (:id, :user_id, :session_id, :format, :status, :file_path, :result_url, :error_message, :created_at, :finished_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create export job: %w", err)
	}
	return nil
}

// FindJob returns a job by id scoped to its owner.
func (r *ReportRepository) FindJob(ctx context.Context, userID, jobID string) (*models.ExportJob, error) {
	const query = `SELECT id, user_id, session_id, format, status, file_path, result_url, error_message, created_at, finished_at FROM export_jobs WHERE id = $1 AND user_id = $2 LIMIT 1`
	var job models.ExportJob
	if err := r.db.GetContext(ctx, &job, query, jobID, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find export job: %w", err)
	}
	return &job, nil
}

// FindJobByID returns a job regardless of owner, for queue workers.
func (r *ReportRepository) FindJobByID(ctx context.Context, jobID string) (*models.ExportJob, error) {
	const query = `SELECT id, user_id, session_id, format, status, file_path, result_url, error_message, created_at, finished_at FROM export_jobs WHERE id = $1 LIMIT 1`
	var job models.ExportJob
	if err := r.db.GetContext(ctx, &job, query, jobID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find export job by id: %w", err)
	}
	return &job, nil
}

// MarkProcessing transitions a queued job to processing.
func (r *ReportRepository) MarkProcessing(ctx context.Context, jobID string) error {
	const query = `UPDATE export_jobs SET status = 'processing' WHERE id = $1 AND status = 'queued'`
	if _, err := r.db.ExecContext(ctx, query, jobID); err != nil {
		return fmt.Errorf("mark export job processing: %w", err)
	}
	return nil
}

// MarkDone records the produced file and signed URL.
func (r *ReportRepository) MarkDone(ctx context.Context, jobID, filePath, resultURL string, finishedAt time.Time) error {
	const query = `UPDATE export_jobs SET status = 'done', file_path = $2, result_url = $3, finished_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, jobID, filePath, resultURL, finishedAt); err != nil {
		return fmt.Errorf("mark export job done: %w", err)
	}
	return nil
}

// MarkFailed records the failure reason.
func (r *ReportRepository) MarkFailed(ctx context.Context, jobID, message string, finishedAt time.Time) error {
	const query = `UPDATE export_jobs SET status = 'failed', error_message = $2, finished_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, jobID, message, finishedAt); err != nil {
		return fmt.Errorf("mark export job failed: %w", err)
	}
	return nil
}
