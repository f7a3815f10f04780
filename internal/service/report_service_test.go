package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masedocs/mase-audit-api/internal/dto"
	"github.com/masedocs/mase-audit-api/internal/models"
	appErrors "github.com/masedocs/mase-audit-api/pkg/errors"
	"github.com/masedocs/mase-audit-api/pkg/jobs"
)

type fakeJobStore struct {
	jobs map[string]*models.ExportJob
	seq  int
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: map[string]*models.ExportJob{}}
}

func (f *fakeJobStore) CreateJob(_ context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		f.seq++
		job.ID = fmt.Sprintf("job-%d", f.seq)
	}
	job.CreatedAt = time.Now().UTC()
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeJobStore) FindJob(_ context.Context, userID, jobID string) (*models.ExportJob, error) {
	job, ok := f.jobs[jobID]
	if !ok || job.UserID != userID {
		return nil, sql.ErrNoRows
	}
	return job, nil
}

func (f *fakeJobStore) FindJobByID(_ context.Context, jobID string) (*models.ExportJob, error) {
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return job, nil
}

func (f *fakeJobStore) MarkProcessing(_ context.Context, jobID string) error {
	f.jobs[jobID].Status = models.ReportStatusProcessing
	return nil
}

func (f *fakeJobStore) MarkDone(_ context.Context, jobID, filePath, resultURL string, finishedAt time.Time) error {
	job := f.jobs[jobID]
	job.Status = models.ReportStatusDone
	job.FilePath = &filePath
	job.ResultURL = &resultURL
	job.FinishedAt = &finishedAt
	return nil
}

func (f *fakeJobStore) MarkFailed(_ context.Context, jobID, message string, finishedAt time.Time) error {
	job := f.jobs[jobID]
	job.Status = models.ReportStatusFailed
	job.ErrorMessage = &message
	job.FinishedAt = &finishedAt
	return nil
}

type fakeDispatcher struct {
	queued []jobs.Job
	err    error
}

func (f *fakeDispatcher) Enqueue(job jobs.Job) error {
	if f.err != nil {
		return f.err
	}
	f.queued = append(f.queued, job)
	return nil
}

type fakeReportAudits struct {
	session *models.AuditSession
	docs    []models.AuditDocument
}

func (f *fakeReportAudits) FindSession(_ context.Context, userID, sessionID string) (*models.AuditSession, error) {
	if f.session == nil || f.session.UserID != userID || f.session.ID != sessionID {
		return nil, sql.ErrNoRows
	}
	return f.session, nil
}

func (f *fakeReportAudits) ListDocumentsBySession(context.Context, string) ([]models.AuditDocument, error) {
	return f.docs, nil
}

type fakeExportObjects struct {
	uploads map[string][]byte
}

func (f *fakeExportObjects) Upload(_ context.Context, key string, reader io.Reader, _ int64, _ string) error {
	if f.uploads == nil {
		f.uploads = map[string][]byte{}
	}
	payload, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.uploads[key] = payload
	return nil
}

func (f *fakeExportObjects) PresignedGetURL(_ context.Context, key string, _ time.Duration, _ string) (string, error) {
	return "https://storage.example.com/" + key + "?signed", nil
}

func completedReportSession(userID, sessionID string, score int) *models.AuditSession {
	now := time.Now().UTC()
	return &models.AuditSession{
		ID:          sessionID,
		UserID:      userID,
		Status:      models.AuditStatusCompleted,
		GlobalScore: &score,
		CreatedAt:   now.Add(-time.Hour),
		CompletedAt: &now,
	}
}

func TestCreateExportQueuesJob(t *testing.T) {
	store := newFakeJobStore()
	dispatcher := &fakeDispatcher{}
	audits := &fakeReportAudits{session: completedReportSession("u1", "s1", 72)}
	svc := NewReportService(store, audits, dispatcher, &fakeExportObjects{}, nil, nil, ReportServiceConfig{})

	resp, err := svc.CreateExport(context.Background(), "u1", dto.ExportRequest{
		SessionID: "s1",
		Format:    models.ReportFormatCSV,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	require.Len(t, dispatcher.queued, 1)
	assert.Equal(t, resp.ID, dispatcher.queued[0].ID)
}

func TestCreateExportRejectsUnfinishedSession(t *testing.T) {
	store := newFakeJobStore()
	session := completedReportSession("u1", "s1", 72)
	session.Status = models.AuditStatusAnalysis
	svc := NewReportService(store, &fakeReportAudits{session: session}, &fakeDispatcher{}, &fakeExportObjects{}, nil, nil, ReportServiceConfig{})

	_, err := svc.CreateExport(context.Background(), "u1", dto.ExportRequest{
		SessionID: "s1",
		Format:    models.ReportFormatPDF,
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
	assert.Empty(t, store.jobs)
}

func TestCreateExportMarksJobFailedWhenQueueRefuses(t *testing.T) {
	store := newFakeJobStore()
	dispatcher := &fakeDispatcher{err: fmt.Errorf("queue full")}
	svc := NewReportService(store, &fakeReportAudits{session: completedReportSession("u1", "s1", 72)}, dispatcher, &fakeExportObjects{}, nil, nil, ReportServiceConfig{})

	_, err := svc.CreateExport(context.Background(), "u1", dto.ExportRequest{
		SessionID: "s1",
		Format:    models.ReportFormatCSV,
	})
	require.Error(t, err)
	require.Len(t, store.jobs, 1)
	for _, job := range store.jobs {
		assert.Equal(t, models.ReportStatusFailed, job.Status)
	}
}

func TestHandleRendersUploadsAndSigns(t *testing.T) {
	store := newFakeJobStore()
	objects := &fakeExportObjects{}
	score := 55.0
	audits := &fakeReportAudits{
		session: completedReportSession("u1", "s1", 72),
		docs: []models.AuditDocument{
			{ID: "d1", SessionID: "s1", Name: "duer.pdf", Status: models.DocumentStatusAnalyzed, ConformityRaw: &score, AxisLabel: models.AxisManagementCommitment},
		},
	}
	svc := NewReportService(store, audits, &fakeDispatcher{}, objects, nil, nil, ReportServiceConfig{})

	job := &models.ExportJob{UserID: "u1", SessionID: "s1", Format: models.ReportFormatCSV, Status: models.ReportStatusQueued}
	require.NoError(t, store.CreateJob(context.Background(), job))

	require.NoError(t, svc.Handle(context.Background(), jobs.Job{ID: job.ID, Type: "audit-report"}))

	assert.Equal(t, models.ReportStatusDone, job.Status)
	require.NotNil(t, job.ResultURL)
	assert.Contains(t, *job.ResultURL, "signed")

	key := fmt.Sprintf("u1/exports/%s.csv", job.ID)
	payload, ok := objects.uploads[key]
	require.True(t, ok, "rendered export must land in the bucket")
	content := string(payload)
	assert.True(t, strings.Contains(content, "duer.pdf"))
	assert.True(t, strings.Contains(content, "Score global"))
	assert.True(t, strings.Contains(content, "72%"))
}

func TestHandleMarksFailureOnUnsupportedFormat(t *testing.T) {
	store := newFakeJobStore()
	audits := &fakeReportAudits{session: completedReportSession("u1", "s1", 72)}
	svc := NewReportService(store, audits, &fakeDispatcher{}, &fakeExportObjects{}, nil, nil, ReportServiceConfig{})

	job := &models.ExportJob{UserID: "u1", SessionID: "s1", Format: models.ReportFormat("xlsx"), Status: models.ReportStatusQueued}
	require.NoError(t, store.CreateJob(context.Background(), job))

	require.Error(t, svc.Handle(context.Background(), jobs.Job{ID: job.ID}))
	assert.Equal(t, models.ReportStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
}
