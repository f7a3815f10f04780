package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/masedocs/mase-audit-api/internal/models"
	appErrors "github.com/masedocs/mase-audit-api/pkg/errors"
)

type referentialSource interface {
	ListChapters(ctx context.Context) ([]models.MaseChapter, error)
	ListCriteria(ctx context.Context, chapterID string) ([]models.MaseCriterion, error)
	ListKeyDocuments(ctx context.Context, axisLabel string) ([]models.KeyDocument, error)
	ListKeyDocumentContent(ctx context.Context, keyDocumentID string) ([]models.KeyDocumentContent, error)
}

// ReferentialService serves the seeded MASE referential. The tables never
// change at runtime so every read goes through the cache with a long TTL.
type ReferentialService struct {
	repo   referentialSource
	cache  *CacheService
	logger *zap.Logger
	ttl    time.Duration
}

// NewReferentialService constructs a ReferentialService.
func NewReferentialService(repo referentialSource, cache *CacheService, logger *zap.Logger) *ReferentialService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferentialService{repo: repo, cache: cache, logger: logger, ttl: 12 * time.Hour}
}

// Chapters lists the referential chapters.
func (s *ReferentialService) Chapters(ctx context.Context) ([]models.MaseChapter, error) {
	var chapters []models.MaseChapter
	if hit, err := s.cachedGet(ctx, "referential:chapters", &chapters); err == nil && hit {
		return chapters, nil
	}
	chapters, err := s.repo.ListChapters(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load chapters")
	}
	s.cachedSet(ctx, "referential:chapters", chapters)
	return chapters, nil
}

// Criteria lists the criteria of one chapter.
func (s *ReferentialService) Criteria(ctx context.Context, chapterID string) ([]models.MaseCriterion, error) {
	key := "referential:criteria:" + chapterID
	var criteria []models.MaseCriterion
	if hit, err := s.cachedGet(ctx, key, &criteria); err == nil && hit {
		return criteria, nil
	}
	criteria, err := s.repo.ListCriteria(ctx, chapterID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load criteria")
	}
	s.cachedSet(ctx, key, criteria)
	return criteria, nil
}

// KeyDocuments lists key documents, optionally filtered by axis.
func (s *ReferentialService) KeyDocuments(ctx context.Context, axisLabel string) ([]models.KeyDocument, error) {
	if axisLabel != "" {
		axisLabel = models.NormalizeAxis(axisLabel)
	}
	key := "referential:keydocs:" + axisLabel
	var docs []models.KeyDocument
	if hit, err := s.cachedGet(ctx, key, &docs); err == nil && hit {
		return docs, nil
	}
	docs, err := s.repo.ListKeyDocuments(ctx, axisLabel)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load key documents")
	}
	s.cachedSet(ctx, key, docs)
	return docs, nil
}

// KeyDocumentContent lists the template sections of one key document.
func (s *ReferentialService) KeyDocumentContent(ctx context.Context, keyDocumentID string) ([]models.KeyDocumentContent, error) {
	key := "referential:keydoc-content:" + keyDocumentID
	var sections []models.KeyDocumentContent
	if hit, err := s.cachedGet(ctx, key, &sections); err == nil && hit {
		return sections, nil
	}
	sections, err := s.repo.ListKeyDocumentContent(ctx, keyDocumentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load key document content")
	}
	s.cachedSet(ctx, key, sections)
	return sections, nil
}

func (s *ReferentialService) cachedGet(ctx context.Context, key string, dest interface{}) (bool, error) {
	if s.cache == nil {
		return false, nil
	}
	return s.cache.Get(ctx, key, dest)
}

func (s *ReferentialService) cachedSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Warn("failed to cache referential payload", zap.String("key", key), zap.Error(err))
	}
}
