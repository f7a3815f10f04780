package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/masedocs/mase-audit-api/internal/dto"
	"github.com/masedocs/mase-audit-api/internal/models"
	appErrors "github.com/masedocs/mase-audit-api/pkg/errors"
)

type generationStore interface {
	CreateSession(ctx context.Context, session *models.GenerationSession) error
	FindSession(ctx context.Context, userID, sessionID string) (*models.GenerationSession, error)
	ListCompletedSessions(ctx context.Context, userID string, limit int) ([]models.GenerationSession, error)
	CompleteSession(ctx context.Context, sessionID string, completedAt time.Time) error
	CreateDocument(ctx context.Context, doc *models.GeneratedDocument) error
	ListDocumentsBySession(ctx context.Context, sessionID string) ([]models.GeneratedDocument, error)
	ListDocumentPaths(ctx context.Context, userID string) ([]string, error)
	DeleteUserGenerationData(ctx context.Context, userID string) error
}

type auditSessionFinder interface {
	FindSession(ctx context.Context, userID, sessionID string) (*models.AuditSession, error)
}

const generationMirrorKeyPrefix = "history:generation:"

// GenerationHistoryParams bundles the dependencies of GenerationHistoryService.
type GenerationHistoryParams struct {
	Generations generationStore
	Audits      auditSessionFinder
	Mirror      historyMirror
	Objects     objectRemover
	Validator   *validator.Validate
	Logger      *zap.Logger
	ListLimit   int
	MirrorSize  int
	MirrorTTL   time.Duration
}

// GenerationHistoryService owns generation runs and their completed history.
// The database is authoritative with the same Redis mirror fallback as the
// audit history.
type GenerationHistoryService struct {
	generations generationStore
	audits      auditSessionFinder
	mirror      historyMirror
	objects     objectRemover
	validator   *validator.Validate
	logger      *zap.Logger
	listLimit   int
	mirrorSize  int
	mirrorTTL   time.Duration
}

// NewGenerationHistoryService constructs a GenerationHistoryService.
func NewGenerationHistoryService(params GenerationHistoryParams) *GenerationHistoryService {
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
	return &GenerationHistoryService{
		generations: params.Generations,
		audits:      params.Audits,
		mirror:      params.Mirror,
		objects:     params.Objects,
		validator:   params.Validator,
		logger:      params.Logger,
		listLimit:   params.ListLimit,
		mirrorSize:  params.MirrorSize,
		mirrorTTL:   params.MirrorTTL,
	}
}

// StartSession opens a generation run. Post-audit mode requires a completed
// audit session belonging to the same user.
func (s *GenerationHistoryService) StartSession(ctx context.Context, userID string, req dto.CreateGenerationRequest) (*models.GenerationSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation payload")
	}

	session := &models.GenerationSession{
		UserID: userID,
		Mode:   req.Mode,
		Status: models.GenerationStatusDraft,
	}

	if req.Mode == models.GenerationModePostAudit {
		if req.AuditSessionID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "post-audit generation requires an audit session")
		}
		audit, err := s.audits.FindSession(ctx, userID, req.AuditSessionID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "audit session not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit session")
		}
		if audit.Status != models.AuditStatusCompleted {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "audit session is not completed")
		}
		session.AuditSessionID = &audit.ID
	}

	if err := s.generations.CreateSession(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create generation session")
	}
	return session, nil
}

// AddDocument stores one generated document and records its row.
func (s *GenerationHistoryService) AddDocument(ctx context.Context, userID, sessionID, name, axisLabel string, content []byte) (*models.GeneratedDocument, error) {
	session, err := s.generations.FindSession(ctx, userID, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "generation session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load generation session")
	}
	if session.Status == models.GenerationStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrSessionFinalized, "generation session is completed and immutable")
	}

	key := fmt.Sprintf("%s/generated/%s/%s", userID, sessionID, sanitizeObjectName(name))
	if err := s.objects.Upload(ctx, key, bytes.NewReader(content), int64(len(content)), "application/octet-stream"); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store generated document")
	}

	doc := &models.GeneratedDocument{
		SessionID:   sessionID,
		Name:        name,
		AxisLabel:   models.NormalizeAxis(axisLabel),
		StoragePath: key,
	}
	if err := s.generations.CreateDocument(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record generated document")
	}
	return doc, nil
}

// CompleteSession finalizes a generation run.
func (s *GenerationHistoryService) CompleteSession(ctx context.Context, userID, sessionID string) (*models.GenerationSession, error) {
	session, err := s.generations.FindSession(ctx, userID, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "generation session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load generation session")
	}
	if session.Status == models.GenerationStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrSessionFinalized, "generation session is completed and immutable")
	}

	completedAt := time.Now().UTC()
	if err := s.generations.CompleteSession(ctx, sessionID, completedAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete generation session")
	}

	if s.mirror != nil {
		if err := s.mirror.Delete(ctx, generationMirrorKeyPrefix+userID); err != nil {
			s.logger.Warn("failed to invalidate generation mirror", zap.Error(err))
		}
	}

	session.Status = models.GenerationStatusCompleted
	session.CompletedAt = &completedAt
	return session, nil
}

// History returns completed generation runs newest first with their
// documents, falling back to the mirror only when the database fails.
func (s *GenerationHistoryService) History(ctx context.Context, userID string) (*dto.GenerationHistoryResponse, error) {
	sessions, err := s.generations.ListCompletedSessions(ctx, userID, s.listLimit)
	if err != nil {
		return s.historyFromMirror(ctx, userID, err)
	}

	entries := make([]models.GenerationHistoryEntry, 0, len(sessions))
	for _, session := range sessions {
		docs, docErr := s.generations.ListDocumentsBySession(ctx, session.ID)
		if docErr != nil {
			s.logger.Warn("skipping generation session with unreadable documents",
				zap.String("session_id", session.ID), zap.Error(docErr))
			continue
		}
		entries = append(entries, models.GenerationHistoryEntry{
			Session:        session,
			Documents:      docs,
			DocumentsCount: len(docs),
		})
	}

	if s.mirror != nil {
		recent := entries
		if len(recent) > s.mirrorSize {
			recent = recent[:s.mirrorSize]
		}
		if err := s.mirror.Set(ctx, generationMirrorKeyPrefix+userID, recent, s.mirrorTTL); err != nil {
			s.logger.Warn("failed to refresh generation mirror", zap.Error(err))
		}
	}

	return &dto.GenerationHistoryResponse{Entries: entries, Stale: false}, nil
}

// Latest returns the most recent completed generation run with its documents.
func (s *GenerationHistoryService) Latest(ctx context.Context, userID string) (*models.GenerationHistoryEntry, error) {
	sessions, err := s.generations.ListCompletedSessions(ctx, userID, 1)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load latest generation")
	}
	if len(sessions) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no completed generation yet")
	}

	docs, err := s.generations.ListDocumentsBySession(ctx, sessions[0].ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load generated documents")
	}

	return &models.GenerationHistoryEntry{
		Session:        sessions[0],
		Documents:      docs,
		DocumentsCount: len(docs),
	}, nil
}

// Clear deletes every generation artifact of the user, objects first then
// rows children before parents. Idempotent.
func (s *GenerationHistoryService) Clear(ctx context.Context, userID string) error {
	paths, err := s.generations.ListDocumentPaths(ctx, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list generated documents")
	}
	for _, path := range paths {
		if err := s.objects.Remove(ctx, path); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove generated document")
		}
	}

	if err := s.generations.DeleteUserGenerationData(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete generation history")
	}

	if s.mirror != nil {
		if err := s.mirror.Delete(ctx, generationMirrorKeyPrefix+userID); err != nil {
			s.logger.Warn("failed to drop generation mirror", zap.Error(err))
		}
	}

	return nil
}

// historyFromMirror mirrors the audit history degradation: stale mirror
// entries when present, an empty stale listing otherwise, never an error.
func (s *GenerationHistoryService) historyFromMirror(ctx context.Context, userID string, cause error) (*dto.GenerationHistoryResponse, error) {
	empty := &dto.GenerationHistoryResponse{Entries: []models.GenerationHistoryEntry{}, Stale: true}

	if s.mirror == nil {
		s.logger.Warn("generation history degraded to empty", zap.String("user_id", userID), zap.Error(cause))
		return empty, nil
	}

	var entries []models.GenerationHistoryEntry
	if err := s.mirror.Get(ctx, generationMirrorKeyPrefix+userID, &entries); err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("generation mirror unavailable", zap.Error(err))
		}
		s.logger.Warn("generation history degraded to empty", zap.String("user_id", userID), zap.Error(cause))
		return empty, nil
	}

	s.logger.Warn("serving generation history from mirror", zap.String("user_id", userID), zap.Error(cause))
	return &dto.GenerationHistoryResponse{Entries: entries, Stale: true}, nil
}
