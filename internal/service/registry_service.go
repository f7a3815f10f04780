package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/masedocs/mase-audit-api/internal/models"
	appErrors "github.com/masedocs/mase-audit-api/pkg/errors"
)

const registryKeyPrefix = "registry:documents:"

// RegistryService maintains the per-user document registry: a compact index
// of every document seen across audit and generation sessions. Entries older
// than the retention window are swept lazily on load; the sweep only rewrites
// the stored set when it actually dropped something.
type RegistryService struct {
	store     historyMirror
	logger    *zap.Logger
	retention time.Duration
	now       func() time.Time
}

// NewRegistryService constructs a RegistryService.
func NewRegistryService(store historyMirror, logger *zap.Logger, retentionDays int) *RegistryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &RegistryService{
		store:     store,
		logger:    logger,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Add records a document in the registry. Registry failures are surfaced to
// the caller but never block the authoritative write that preceded them.
func (s *RegistryService) Add(ctx context.Context, entry models.RegistryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.AddedAt.IsZero() {
		entry.AddedAt = s.now()
	}

	entries, err := s.load(ctx, entry.UserID)
	if err != nil {
		return err
	}

	entries = append(entries, entry)
	return s.save(ctx, entry.UserID, entries)
}

// List returns the registry entries matching the filter, newest first. The
// retention sweep runs before filtering.
func (s *RegistryService) List(ctx context.Context, userID string, filter models.RegistryFilter) ([]models.RegistryEntry, error) {
	entries, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	kept, swept := s.sweep(entries)
	if swept > 0 {
		if err := s.save(ctx, userID, kept); err != nil {
			s.logger.Warn("failed to persist registry sweep", zap.Error(err))
		} else {
			s.logger.Info("registry sweep removed expired entries",
				zap.String("user_id", userID), zap.Int("removed", swept))
		}
	}

	matched := []models.RegistryEntry{}
	for _, entry := range kept {
		if filter.Matches(entry) {
			matched = append(matched, entry)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].AddedAt.After(matched[j].AddedAt)
	})
	return matched, nil
}

// RemoveBySession drops every registry entry belonging to one session.
func (s *RegistryService) RemoveBySession(ctx context.Context, userID, sessionID string) error {
	entries, err := s.load(ctx, userID)
	if err != nil {
		return err
	}

	kept := entries[:0]
	for _, entry := range entries {
		if entry.SessionID != sessionID {
			kept = append(kept, entry)
		}
	}
	return s.save(ctx, userID, kept)
}

// Clear drops the whole registry for a user.
func (s *RegistryService) Clear(ctx context.Context, userID string) error {
	if err := s.store.Delete(ctx, registryKeyPrefix+userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear document registry")
	}
	return nil
}

func (s *RegistryService) sweep(entries []models.RegistryEntry) ([]models.RegistryEntry, int) {
	cutoff := s.now().Add(-s.retention)
	kept := make([]models.RegistryEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.AddedAt.After(cutoff) {
			kept = append(kept, entry)
		}
	}
	return kept, len(entries) - len(kept)
}

func (s *RegistryService) load(ctx context.Context, userID string) ([]models.RegistryEntry, error) {
	var entries []models.RegistryEntry
	if err := s.store.Get(ctx, registryKeyPrefix+userID, &entries); err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return []models.RegistryEntry{}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document registry")
	}
	return entries, nil
}

func (s *RegistryService) save(ctx context.Context, userID string, entries []models.RegistryEntry) error {
	// TTL zero: the registry persists and is pruned by the sweep, not by
	// Redis expiry.
	if err := s.store.Set(ctx, registryKeyPrefix+userID, entries, 0); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save document registry")
	}
	return nil
}
