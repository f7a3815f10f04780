package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/masedocs/mase-audit-api/internal/dto"
	"github.com/masedocs/mase-audit-api/internal/models"
	appErrors "github.com/masedocs/mase-audit-api/pkg/errors"
	"github.com/masedocs/mase-audit-api/pkg/export"
	"github.com/masedocs/mase-audit-api/pkg/jobs"
)

type exportJobStore interface {
	CreateJob(ctx context.Context, job *models.ExportJob) error
	FindJob(ctx context.Context, userID, jobID string) (*models.ExportJob, error)
	FindJobByID(ctx context.Context, jobID string) (*models.ExportJob, error)
	MarkProcessing(ctx context.Context, jobID string) error
	MarkDone(ctx context.Context, jobID, filePath, resultURL string, finishedAt time.Time) error
	MarkFailed(ctx context.Context, jobID, message string, finishedAt time.Time) error
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type reportAuditSource interface {
	FindSession(ctx context.Context, userID, sessionID string) (*models.AuditSession, error)
	ListDocumentsBySession(ctx context.Context, sessionID string) ([]models.AuditDocument, error)
}

type exportObjectStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	PresignedGetURL(ctx context.Context, key string, expiry time.Duration, filename string) (string, error)
}

// ReportServiceConfig governs export rendering and link lifetime.
type ReportServiceConfig struct {
	SignedURLTTL time.Duration
}

// ReportService queues and renders audit report exports. Jobs are processed
// by the in-memory queue; the rendered file lands in the bucket and the job
// row carries a presigned download URL.
type ReportService struct {
	repo      exportJobStore
	audits    reportAuditSource
	queue     jobDispatcher
	objects   exportObjectStore
	pdf       *export.PDFExporter
	csv       *export.CSVExporter
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ReportServiceConfig
}

// NewReportService constructs the report service.
func NewReportService(repo exportJobStore, audits reportAuditSource, queue jobDispatcher, objects exportObjectStore, validate *validator.Validate, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = 24 * time.Hour
	}
	return &ReportService{
		repo:      repo,
		audits:    audits,
		queue:     queue,
		objects:   objects,
		pdf:       export.NewPDFExporter(),
		csv:       export.NewCSVExporter(),
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// CreateExport validates the request, persists the job and enqueues it.
// Exports are only available for completed sessions.
func (s *ReportService) CreateExport(ctx context.Context, userID string, req dto.ExportRequest) (*dto.ExportJobResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}

	session, err := s.audits.FindSession(ctx, userID, req.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "audit session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit session")
	}
	if session.Status != models.AuditStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "audit session is not completed")
	}

	job := &models.ExportJob{
		UserID:    userID,
		SessionID: req.SessionID,
		Format:    req.Format,
		Status:    models.ReportStatusQueued,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "audit-report"}); err != nil {
		if failErr := s.repo.MarkFailed(ctx, job.ID, "failed to enqueue job", time.Now().UTC()); failErr != nil {
			s.logger.Warn("failed to mark unqueued job failed", zap.Error(failErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}

	return &dto.ExportJobResponse{ID: job.ID, Status: job.Status}, nil
}

// Status exposes job progress and the signed download URL once done.
func (s *ReportService) Status(ctx context.Context, userID, jobID string) (*dto.ExportStatusResponse, error) {
	job, err := s.repo.FindJob(ctx, userID, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}

	resp := &dto.ExportStatusResponse{ID: job.ID, Status: job.Status, ResultURL: job.ResultURL}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// Handle processes one queued export: render, upload, presign, mark done.
// Wired as the queue handler.
func (s *ReportService) Handle(ctx context.Context, queued jobs.Job) error {
	job, err := s.repo.FindJobByID(ctx, queued.ID)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", queued.ID, err)
	}

	if err := s.repo.MarkProcessing(ctx, job.ID); err != nil {
		return fmt.Errorf("mark export job processing: %w", err)
	}

	payload, contentType, ext, err := s.render(ctx, job)
	if err != nil {
		if failErr := s.repo.MarkFailed(ctx, job.ID, err.Error(), time.Now().UTC()); failErr != nil {
			s.logger.Warn("failed to mark export job failed", zap.Error(failErr))
		}
		return err
	}

	key := fmt.Sprintf("%s/exports/%s.%s", job.UserID, job.ID, ext)
	if err := s.objects.Upload(ctx, key, bytes.NewReader(payload), int64(len(payload)), contentType); err != nil {
		if failErr := s.repo.MarkFailed(ctx, job.ID, "failed to store export", time.Now().UTC()); failErr != nil {
			s.logger.Warn("failed to mark export job failed", zap.Error(failErr))
		}
		return err
	}

	filename := fmt.Sprintf("rapport-audit-%s.%s", job.SessionID, ext)
	url, err := s.objects.PresignedGetURL(ctx, key, s.cfg.SignedURLTTL, filename)
	if err != nil {
		if failErr := s.repo.MarkFailed(ctx, job.ID, "failed to sign download url", time.Now().UTC()); failErr != nil {
			s.logger.Warn("failed to mark export job failed", zap.Error(failErr))
		}
		return err
	}

	if err := s.repo.MarkDone(ctx, job.ID, key, url, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark export job done: %w", err)
	}
	return nil
}

func (s *ReportService) render(ctx context.Context, job *models.ExportJob) ([]byte, string, string, error) {
	session, err := s.audits.FindSession(ctx, job.UserID, job.SessionID)
	if err != nil {
		return nil, "", "", fmt.Errorf("load session for export: %w", err)
	}
	docs, err := s.audits.ListDocumentsBySession(ctx, session.ID)
	if err != nil {
		return nil, "", "", fmt.Errorf("load documents for export: %w", err)
	}

	dataset := buildReportDataset(session, docs)
	title := fmt.Sprintf("Rapport d'audit MASE du %s", session.CreatedAt.Format("02/01/2006"))

	switch job.Format {
	case models.ReportFormatPDF:
		payload, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, "", "", err
		}
		return payload, "application/pdf", "pdf", nil
	case models.ReportFormatCSV:
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", "", err
		}
		return payload, "text/csv", "csv", nil
	default:
		return nil, "", "", fmt.Errorf("unsupported export format %q", job.Format)
	}
}

func buildReportDataset(session *models.AuditSession, docs []models.AuditDocument) export.Dataset {
	dataset := export.Dataset{
		Headers: []string{"Document", "Axe", "Statut", "Conformité"},
	}
	for _, doc := range docs {
		conformity := "—"
		if score, ok := models.ParseScore(doc.ConformityRaw); ok && doc.Status == models.DocumentStatusAnalyzed {
			conformity = fmt.Sprintf("%d%%", score.Int())
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Document":   doc.Name,
			"Axe":        models.NormalizeAxis(doc.AxisLabel),
			"Statut":     string(doc.Status),
			"Conformité": conformity,
		})
	}
	if session.GlobalScore != nil {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Document":   "Score global",
			"Axe":        "",
			"Statut":     "",
			"Conformité": fmt.Sprintf("%d%%", *session.GlobalScore),
		})
	}
	return dataset
}
