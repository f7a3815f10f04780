package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/masedocs/mase-audit-api/internal/dto"
	"github.com/masedocs/mase-audit-api/internal/models"
	appErrors "github.com/masedocs/mase-audit-api/pkg/errors"
)

type dashboardAuditSource interface {
	LatestCompletedSession(ctx context.Context, userID string) (*models.AuditSession, error)
	CountCompletedSessions(ctx context.Context, userID string) (int, error)
	ListCompletedSessions(ctx context.Context, userID string, limit int) ([]models.AuditSession, error)
	ListDocumentsBySession(ctx context.Context, sessionID string) ([]models.AuditDocument, error)
}

type dashboardGenerationSource interface {
	ListCompletedSessions(ctx context.Context, userID string, limit int) ([]models.GenerationSession, error)
}

type dashboardProfileSource interface {
	Get(ctx context.Context, userID string) (*models.UserProfile, error)
}

// DashboardServiceParams bundles the dependencies of DashboardService.
type DashboardServiceParams struct {
	Audits            dashboardAuditSource
	Generations       dashboardGenerationSource
	Profiles          dashboardProfileSource
	Cache             *CacheService
	Logger            *zap.Logger
	CacheTTL          time.Duration
	StaleAuditAfter   time.Duration
	ConformityTarget  int
	HighPriorityBelow int
	MaxActions        int
	ActivityLimit     int
}

// DashboardService composes the dashboard overview: global score, per-axis
// aggregates, priority actions and the activity feed. Everything here is
// derived read-only state; the service never writes domain rows.
type DashboardService struct {
	audits            dashboardAuditSource
	generations       dashboardGenerationSource
	profiles          dashboardProfileSource
	cache             *CacheService
	logger            *zap.Logger
	cacheTTL          time.Duration
	staleAuditAfter   time.Duration
	conformityTarget  int
	highPriorityBelow int
	maxActions        int
	activityLimit     int
}

// NewDashboardService constructs a DashboardService applying defaults for
// unset parameters.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.CacheTTL <= 0 {
		params.CacheTTL = 5 * time.Minute
	}
	if params.StaleAuditAfter <= 0 {
		params.StaleAuditAfter = 180 * 24 * time.Hour
	}
	if params.ConformityTarget <= 0 {
		params.ConformityTarget = 80
	}
	if params.HighPriorityBelow <= 0 {
		params.HighPriorityBelow = 60
	}
	if params.MaxActions <= 0 {
		params.MaxActions = 5
	}
	if params.ActivityLimit <= 0 {
		params.ActivityLimit = 10
	}
	return &DashboardService{
		audits:            params.Audits,
		generations:       params.Generations,
		profiles:          params.Profiles,
		cache:             params.Cache,
		logger:            params.Logger,
		cacheTTL:          params.CacheTTL,
		staleAuditAfter:   params.StaleAuditAfter,
		conformityTarget:  params.ConformityTarget,
		highPriorityBelow: params.HighPriorityBelow,
		maxActions:        params.MaxActions,
		activityLimit:     params.ActivityLimit,
	}
}

type dashboardInputs struct {
	latest      *models.AuditSession
	latestDocs  []models.AuditDocument
	audits      int
	profile     *models.UserProfile
	auditFeed   []models.AuditSession
	generations []models.GenerationSession
}

// Overview builds the dashboard payload for a user. Sub-queries run
// concurrently; the cached copy is used when fresh.
func (s *DashboardService) Overview(ctx context.Context, userID string) (*dto.DashboardOverviewResponse, bool, error) {
	cacheKey := dashboardCacheKey(userID)
	if s.cache != nil {
		var cached dto.DashboardOverviewResponse
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	inputs, err := s.collect(ctx, userID)
	if err != nil {
		return nil, false, err
	}

	overview := s.compose(inputs)

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, overview, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache dashboard overview", zap.Error(err))
		}
	}

	return overview, false, nil
}

// Invalidate drops the cached overview, called after any write that changes
// what the dashboard would show.
func (s *DashboardService) Invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, dashboardCacheKey(userID)); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

func (s *DashboardService) collect(ctx context.Context, userID string) (*dashboardInputs, error) {
	inputs := &dashboardInputs{}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		session, err := s.audits.LatestCompletedSession(gctx, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("latest audit: %w", err)
		}
		docs, err := s.audits.ListDocumentsBySession(gctx, session.ID)
		if err != nil {
			return fmt.Errorf("latest audit documents: %w", err)
		}
		inputs.latest = session
		inputs.latestDocs = docs
		return nil
	})

	g.Go(func() error {
		count, err := s.audits.CountCompletedSessions(gctx, userID)
		if err != nil {
			return fmt.Errorf("count audits: %w", err)
		}
		inputs.audits = count
		return nil
	})

	g.Go(func() error {
		profile, err := s.profiles.Get(gctx, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("profile: %w", err)
		}
		inputs.profile = profile
		return nil
	})

	g.Go(func() error {
		sessions, err := s.audits.ListCompletedSessions(gctx, userID, s.activityLimit)
		if err != nil {
			return fmt.Errorf("audit feed: %w", err)
		}
		inputs.auditFeed = sessions
		return nil
	})

	g.Go(func() error {
		sessions, err := s.generations.ListCompletedSessions(gctx, userID, s.activityLimit)
		if err != nil {
			return fmt.Errorf("generation feed: %w", err)
		}
		inputs.generations = sessions
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assemble dashboard")
	}
	return inputs, nil
}

func (s *DashboardService) compose(inputs *dashboardInputs) *dto.DashboardOverviewResponse {
	overview := &dto.DashboardOverviewResponse{
		AxisScores:         models.AggregateAxisScores(inputs.latestDocs),
		PriorityActions:    s.priorityActions(inputs),
		Activity:           s.activityFeed(inputs),
		AuditsCompleted:    inputs.audits,
		OnboardingRequired: inputs.profile.State() != models.OnboardingCompleted,
	}

	if inputs.latest != nil {
		// The stored global score is reported verbatim, never recomputed
		// from the per-axis averages.
		overview.GlobalScore = inputs.latest.GlobalScore
		overview.LastAuditAt = inputs.latest.CompletedAt
	}

	return overview
}

// priorityActions derives the recommendation list. Candidates are generated
// in a fixed order (profile, audit freshness, weakest documents ascending by
// score), then stable-sorted by priority so high entries surface first while
// equal priorities keep their generation order.
func (s *DashboardService) priorityActions(inputs *dashboardInputs) []models.PriorityAction {
	actions := []models.PriorityAction{}

	if inputs.profile.State() != models.OnboardingCompleted {
		actions = append(actions, models.PriorityAction{
			Type:        models.ActionTypeCompleteProfile,
			Priority:    models.PriorityMedium,
			Title:       "Compléter le profil entreprise",
			Description: "Renseignez le questionnaire entreprise pour personnaliser vos recommandations.",
		})
	}

	if inputs.latest == nil {
		actions = append(actions, models.PriorityAction{
			Type:        models.ActionTypeRunFirstAudit,
			Priority:    models.PriorityHigh,
			Title:       "Lancer votre premier audit",
			Description: "Téléversez vos documents HSE pour obtenir un premier score de conformité.",
		})
		return s.finalizeActions(actions)
	}

	if inputs.latest.CompletedAt != nil && time.Since(*inputs.latest.CompletedAt) > s.staleAuditAfter {
		actions = append(actions, models.PriorityAction{
			Type:        models.ActionTypeAuditOutdated,
			Priority:    models.PriorityMedium,
			Title:       "Relancer un audit",
			Description: "Votre dernier audit date de plus de six mois; refaites le point sur votre conformité.",
		})
	}

	actions = append(actions, s.documentActions(inputs.latestDocs)...)

	return s.finalizeActions(actions)
}

func (s *DashboardService) documentActions(docs []models.AuditDocument) []models.PriorityAction {
	type weakDoc struct {
		name  string
		score int
	}
	weak := []weakDoc{}
	for _, doc := range docs {
		if doc.Status != models.DocumentStatusAnalyzed {
			continue
		}
		score, ok := models.ParseScore(doc.ConformityRaw)
		if !ok {
			continue
		}
		if score.Int() < s.conformityTarget {
			weak = append(weak, weakDoc{name: doc.Name, score: score.Int()})
		}
	}

	sort.SliceStable(weak, func(i, j int) bool { return weak[i].score < weak[j].score })

	actions := make([]models.PriorityAction, 0, len(weak))
	for _, doc := range weak {
		priority := models.PriorityMedium
		if doc.score < s.highPriorityBelow {
			priority = models.PriorityHigh
		}
		score := doc.score
		actions = append(actions, models.PriorityAction{
			Type:         models.ActionTypeImproveDocument,
			Priority:     priority,
			Title:        fmt.Sprintf("Améliorer « %s »", doc.name),
			Description:  fmt.Sprintf("Ce document est à %d%% de conformité, sous l'objectif de %d%%.", doc.score, s.conformityTarget),
			DocumentName: doc.name,
			Score:        &score,
		})
	}
	return actions
}

func (s *DashboardService) finalizeActions(actions []models.PriorityAction) []models.PriorityAction {
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Priority.Rank() < actions[j].Priority.Rank()
	})
	if len(actions) > s.maxActions {
		actions = actions[:s.maxActions]
	}
	return actions
}

func (s *DashboardService) activityFeed(inputs *dashboardInputs) []models.ActivityItem {
	items := make([]models.ActivityItem, 0, len(inputs.auditFeed)+len(inputs.generations))

	for _, session := range inputs.auditFeed {
		if session.CompletedAt == nil {
			continue
		}
		items = append(items, models.ActivityItem{
			Type:       models.ActivityAuditCompleted,
			Label:      "Audit de conformité terminé",
			SessionID:  session.ID,
			Score:      session.GlobalScore,
			OccurredAt: *session.CompletedAt,
		})
	}

	for _, session := range inputs.generations {
		if session.CompletedAt == nil {
			continue
		}
		items = append(items, models.ActivityItem{
			Type:       models.ActivityGenerationCompleted,
			Label:      "Génération de documents terminée",
			SessionID:  session.ID,
			OccurredAt: *session.CompletedAt,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].OccurredAt.After(items[j].OccurredAt)
	})
	if len(items) > s.activityLimit {
		items = items[:s.activityLimit]
	}
	return items
}

func dashboardCacheKey(userID string) string {
	return "dashboard:overview:" + userID
}
