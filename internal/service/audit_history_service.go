package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/masedocs/mase-audit-api/internal/dto"
	"github.com/masedocs/mase-audit-api/internal/models"
	appErrors "github.com/masedocs/mase-audit-api/pkg/errors"
)

type auditStore interface {
	CreateSession(ctx context.Context, session *models.AuditSession) error
	FindSession(ctx context.Context, userID, sessionID string) (*models.AuditSession, error)
	ListCompletedSessions(ctx context.Context, userID string, limit int) ([]models.AuditSession, error)
	CreateDocument(ctx context.Context, doc *models.AuditDocument) error
	FindDocument(ctx context.Context, documentID string) (*models.AuditDocument, error)
	ListDocumentsBySession(ctx context.Context, sessionID string) ([]models.AuditDocument, error)
	ListDocumentPaths(ctx context.Context, userID string) ([]string, error)
	UpdateDocumentResult(ctx context.Context, documentID string, status models.AuditDocumentStatus, conformity *float64, axisLabel string) error
	UpdateSessionStatus(ctx context.Context, sessionID string, status models.AuditSessionStatus) error
	CompleteSession(ctx context.Context, sessionID string, globalScore int, completedAt time.Time) error
	CreateResult(ctx context.Context, result *models.AuditResult) error
	ListResultsBySession(ctx context.Context, sessionID string) ([]models.AuditResult, error)
	DeleteUserAuditData(ctx context.Context, userID string) error
}

type keyDocumentSource interface {
	ListKeyDocuments(ctx context.Context, axisLabel string) ([]models.KeyDocument, error)
}

type historyMirror interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type objectRemover interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, key string) error
	PublicURL(key string) string
}

type actionRecorder interface {
	CreateActionLog(ctx context.Context, log *models.ActionLog) error
}

const auditMirrorKeyPrefix = "history:audit:"

// Analyzed documents scoring under this mark are reported as missing in
// history entries. Matches the conforme tier boundary.
const missingScoreThreshold = 80

// AuditHistoryParams bundles the dependencies of AuditHistoryService.
type AuditHistoryParams struct {
	Audits     auditStore
	KeyDocs    keyDocumentSource
	Mirror     historyMirror
	Objects    objectRemover
	Actions    actionRecorder
	Validator  *validator.Validate
	Logger     *zap.Logger
	ListLimit  int
	MirrorSize int
	MirrorTTL  time.Duration
}

// AuditHistoryService owns the audit session lifecycle and the completed
// history. Postgres is authoritative; a small Redis mirror of recent entries
// is written after every successful load and is only ever read when the
// database itself fails.
type AuditHistoryService struct {
	audits     auditStore
	keyDocs    keyDocumentSource
	mirror     historyMirror
	objects    objectRemover
	actions    actionRecorder
	validator  *validator.Validate
	logger     *zap.Logger
	listLimit  int
	mirrorSize int
	mirrorTTL  time.Duration
}

// NewAuditHistoryService constructs an AuditHistoryService applying defaults
// for unset parameters.
func NewAuditHistoryService(params AuditHistoryParams) *AuditHistoryService {
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.Validator == nil {
		params.Validator = validator.New()
	}
	if params.ListLimit <= 0 {
		params.ListLimit = 50
	}
	if params.MirrorSize <= 0 {
		params.MirrorSize = 5
	}
	if params.MirrorTTL <= 0 {
		params.MirrorTTL = 24 * time.Hour
	}
	return &AuditHistoryService{
		audits:     params.Audits,
		keyDocs:    params.KeyDocs,
		mirror:     params.Mirror,
		objects:    params.Objects,
		actions:    params.Actions,
		validator:  params.Validator,
		logger:     params.Logger,
		listLimit:  params.ListLimit,
		mirrorSize: params.MirrorSize,
		mirrorTTL:  params.MirrorTTL,
	}
}

// StartSession opens a new audit session in the upload stage.
func (s *AuditHistoryService) StartSession(ctx context.Context, userID string) (*models.AuditSession, error) {
	session := &models.AuditSession{UserID: userID, Status: models.AuditStatusUpload}
	if err := s.audits.CreateSession(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create audit session")
	}
	return session, nil
}

// Session returns the detail view of one session with documents and results.
func (s *AuditHistoryService) Session(ctx context.Context, userID, sessionID string) (*dto.AuditSessionResponse, error) {
	session, err := s.audits.FindSession(ctx, userID, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "audit session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit session")
	}

	docs, err := s.audits.ListDocumentsBySession(ctx, session.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session documents")
	}
	results, err := s.audits.ListResultsBySession(ctx, session.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session results")
	}

	return &dto.AuditSessionResponse{Session: *session, Documents: docs, Results: results}, nil
}

// UploadDocument stores the file in the bucket and records the row. Uploads
// against a completed session are rejected: completed sessions are immutable.
func (s *AuditHistoryService) UploadDocument(ctx context.Context, userID, sessionID, name, contentType string, reader io.Reader, size int64) (*dto.UploadDocumentResponse, error) {
	session, err := s.audits.FindSession(ctx, userID, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "audit session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit session")
	}
	if session.Status == models.AuditStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrSessionFinalized, "")
	}

	key := fmt.Sprintf("%s/%s/%s", userID, sessionID, sanitizeObjectName(name))
	if err := s.objects.Upload(ctx, key, reader, size, contentType); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document")
	}

	doc := &models.AuditDocument{
		SessionID:   sessionID,
		Name:        name,
		StoragePath: key,
		SizeBytes:   size,
		Status:      models.DocumentStatusUploaded,
	}
	if err := s.audits.CreateDocument(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record document")
	}

	if s.actions != nil {
		if err := s.actions.CreateActionLog(ctx, &models.ActionLog{
			UserID:     &userID,
			Action:     models.ActionDocumentUpload,
			Resource:   "audit_document",
			ResourceID: &doc.ID,
			NewValues:  []byte(fmt.Sprintf(`{"name":%q}`, name)),
		}); err != nil {
			s.logger.Warn("failed to record upload action", zap.Error(err))
		}
	}

	return &dto.UploadDocumentResponse{Document: *doc, URL: s.objects.PublicURL(key)}, nil
}

// SubmitDocumentResult records the analyzer outcome for one document.
func (s *AuditHistoryService) SubmitDocumentResult(ctx context.Context, userID, sessionID, documentID string, req dto.DocumentResultRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document result payload")
	}

	session, err := s.audits.FindSession(ctx, userID, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "audit session not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit session")
	}
	if session.Status == models.AuditStatusCompleted {
		return appErrors.Clone(appErrors.ErrSessionFinalized, "")
	}

	doc, err := s.audits.FindDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "audit document not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit document")
	}
	if doc.SessionID != sessionID {
		return appErrors.Clone(appErrors.ErrNotFound, "document does not belong to session")
	}

	axis := models.NormalizeAxis(req.AxisLabel)
	conformity := req.ConformityScore
	if err := s.audits.UpdateDocumentResult(ctx, documentID, models.DocumentStatusAnalyzed, &conformity, axis); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update document result")
	}

	gaps, _ := json.Marshal(req.Gaps)
	recommendations, _ := json.Marshal(req.Recommendations)
	if err := s.audits.CreateResult(ctx, &models.AuditResult{
		DocumentID:      documentID,
		SessionID:       sessionID,
		AxisLabel:       axis,
		Gaps:            gaps,
		Recommendations: recommendations,
	}); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record analysis result")
	}

	if session.Status == models.AuditStatusUpload {
		if err := s.audits.UpdateSessionStatus(ctx, sessionID, models.AuditStatusAnalysis); err != nil {
			s.logger.Warn("failed to advance session status", zap.Error(err))
		}
	}

	return nil
}

// CompleteSession finalizes a session, freezing its global score.
func (s *AuditHistoryService) CompleteSession(ctx context.Context, userID, sessionID string, req dto.CompleteSessionRequest) (*models.AuditSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid completion payload")
	}

	session, err := s.audits.FindSession(ctx, userID, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "audit session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit session")
	}
	if session.Status == models.AuditStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrSessionFinalized, "")
	}

	score, ok := models.ParseScore(&req.GlobalScore)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "global score is not a finite number")
	}

	completedAt := req.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}
	if err := s.audits.CompleteSession(ctx, sessionID, score.Int(), completedAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete audit session")
	}

	if s.mirror != nil {
		if err := s.mirror.Delete(ctx, auditMirrorKeyPrefix+userID); err != nil {
			s.logger.Warn("failed to invalidate history mirror", zap.Error(err))
		}
	}

	globalScore := score.Int()
	session.Status = models.AuditStatusCompleted
	session.GlobalScore = &globalScore
	session.CompletedAt = &completedAt
	return session, nil
}

// History returns the completed sessions newest first, each enriched with
// analyzed counts, per-axis scores and missing documents. Completed sessions
// without a single analyzed document are orphans and are left out. When the
// database is unreachable the Redis mirror serves the most recent entries
// with the stale flag set, degrading to an empty stale listing when the
// mirror has nothing; the mirror is never preferred over a healthy database.
func (s *AuditHistoryService) History(ctx context.Context, userID string) (*dto.AuditHistoryResponse, error) {
	sessions, err := s.audits.ListCompletedSessions(ctx, userID, s.listLimit)
	if err != nil {
		return s.historyFromMirror(ctx, userID, err)
	}

	keyDocs := s.mandatoryKeyDocuments(ctx)

	entries := make([]models.AuditHistoryEntry, 0, len(sessions))
	for _, session := range sessions {
		docs, docErr := s.audits.ListDocumentsBySession(ctx, session.ID)
		if docErr != nil {
			// A session whose documents cannot be loaded is skipped rather
			// than failing the whole listing.
			s.logger.Warn("skipping audit session with unreadable documents",
				zap.String("session_id", session.ID), zap.Error(docErr))
			continue
		}
		entry := buildHistoryEntry(session, docs, keyDocs)
		if entry.DocumentsAnalyzed == 0 {
			// Orphaned session: completed but nothing was ever analyzed.
			continue
		}
		entries = append(entries, entry)
	}

	s.writeMirror(ctx, userID, entries)

	return &dto.AuditHistoryResponse{Entries: entries, Stale: false}, nil
}

// Latest returns the most recent completed session, enriched the same way as
// the history listing. Orphaned sessions never surface here, so the result is
// the newest entry that actually analyzed something.
func (s *AuditHistoryService) Latest(ctx context.Context, userID string) (*models.AuditHistoryEntry, error) {
	history, err := s.History(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(history.Entries) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no completed audit yet")
	}
	entry := history.Entries[0]
	return &entry, nil
}

// Clear deletes every audit artifact of the user: bucket objects first, then
// results, documents and sessions, children before parents. Each step labels
// its own error. Clearing an already-empty history succeeds.
func (s *AuditHistoryService) Clear(ctx context.Context, userID string) error {
	paths, err := s.audits.ListDocumentPaths(ctx, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list stored documents")
	}
	for _, path := range paths {
		if err := s.objects.Remove(ctx, path); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove stored document")
		}
	}

	if err := s.audits.DeleteUserAuditData(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete audit history")
	}

	if s.mirror != nil {
		if err := s.mirror.Delete(ctx, auditMirrorKeyPrefix+userID); err != nil {
			s.logger.Warn("failed to drop history mirror", zap.Error(err))
		}
	}

	if s.actions != nil {
		if err := s.actions.CreateActionLog(ctx, &models.ActionLog{
			UserID:    &userID,
			Action:    models.ActionHistoryClear,
			Resource:  "audit_history",
			NewValues: []byte(fmt.Sprintf(`{"objects_removed":%d}`, len(paths))),
		}); err != nil {
			s.logger.Warn("failed to record history clear action", zap.Error(err))
		}
	}

	return nil
}

// historyFromMirror is the degraded read path: mirror entries when they
// exist, otherwise an empty stale listing. The database failure is logged,
// never propagated.
func (s *AuditHistoryService) historyFromMirror(ctx context.Context, userID string, cause error) (*dto.AuditHistoryResponse, error) {
	empty := &dto.AuditHistoryResponse{Entries: []models.AuditHistoryEntry{}, Stale: true}

	if s.mirror == nil {
		s.logger.Warn("audit history degraded to empty", zap.String("user_id", userID), zap.Error(cause))
		return empty, nil
	}

	var entries []models.AuditHistoryEntry
	if err := s.mirror.Get(ctx, auditMirrorKeyPrefix+userID, &entries); err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("history mirror unavailable", zap.Error(err))
		}
		s.logger.Warn("audit history degraded to empty", zap.String("user_id", userID), zap.Error(cause))
		return empty, nil
	}

	s.logger.Warn("serving audit history from mirror", zap.String("user_id", userID), zap.Error(cause))
	return &dto.AuditHistoryResponse{Entries: entries, Stale: true}, nil
}

func (s *AuditHistoryService) writeMirror(ctx context.Context, userID string, entries []models.AuditHistoryEntry) {
	if s.mirror == nil {
		return
	}
	recent := entries
	if len(recent) > s.mirrorSize {
		recent = recent[:s.mirrorSize]
	}
	if err := s.mirror.Set(ctx, auditMirrorKeyPrefix+userID, recent, s.mirrorTTL); err != nil {
		s.logger.Warn("failed to refresh history mirror", zap.Error(err))
	}
}

func (s *AuditHistoryService) mandatoryKeyDocuments(ctx context.Context) []models.KeyDocument {
	if s.keyDocs == nil {
		return nil
	}
	docs, err := s.keyDocs.ListKeyDocuments(ctx, "")
	if err != nil {
		s.logger.Warn("failed to load key documents", zap.Error(err))
		return nil
	}
	mandatory := docs[:0]
	for _, doc := range docs {
		if doc.Mandatory {
			mandatory = append(mandatory, doc)
		}
	}
	return mandatory
}

func buildHistoryEntry(session models.AuditSession, docs []models.AuditDocument, keyDocs []models.KeyDocument) models.AuditHistoryEntry {
	analyzed := 0
	missing := []string{}
	present := make(map[string]bool, len(docs))
	for _, doc := range docs {
		present[strings.ToLower(doc.Name)] = true
		if doc.Status != models.DocumentStatusAnalyzed {
			continue
		}
		analyzed++
		if score, ok := models.ParseScore(doc.ConformityRaw); ok && score.Int() < missingScoreThreshold {
			missing = append(missing, doc.Name)
		}
	}

	missingKeyDocs := []string{}
	for _, keyDoc := range keyDocs {
		if !present[strings.ToLower(keyDoc.Name)] {
			missingKeyDocs = append(missingKeyDocs, keyDoc.Name)
		}
	}

	return models.AuditHistoryEntry{
		Session:             session,
		Documents:           docs,
		DocumentsAnalyzed:   analyzed,
		AxisScores:          models.AggregateAxisScores(docs),
		MissingDocuments:    missing,
		MissingKeyDocuments: missingKeyDocs,
	}
}

// sanitizeObjectName keeps object keys flat: path separators and control
// characters in user-supplied file names are replaced.
func sanitizeObjectName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\':
			b.WriteRune('_')
		case r < 0x20 || r == 0x7f:
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "document"
	}
	return b.String()
}
