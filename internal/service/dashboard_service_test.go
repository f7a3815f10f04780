package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/masedocs/mase-audit-api/internal/models"
	appErrors "github.com/masedocs/mase-audit-api/pkg/errors"
)

func sqlNoRows() error { return sql.ErrNoRows }

type stubCacheRepo struct {
	data map[string][]byte
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	if s.data == nil {
		return appErrors.ErrCacheMiss
	}
	raw, ok := s.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.data == nil {
		s.data = map[string][]byte{}
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.data[key] = raw
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	delete(s.data, pattern)
	return nil
}

type fakeDashboardAudits struct {
	latest     *models.AuditSession
	latestDocs []models.AuditDocument
	count      int
	sessions   []models.AuditSession
	err        error
}

func (f *fakeDashboardAudits) LatestCompletedSession(context.Context, string) (*models.AuditSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.latest == nil {
		return nil, sqlNoRows()
	}
	return f.latest, nil
}

func (f *fakeDashboardAudits) CountCompletedSessions(context.Context, string) (int, error) {
	return f.count, f.err
}

func (f *fakeDashboardAudits) ListCompletedSessions(context.Context, string, int) ([]models.AuditSession, error) {
	return f.sessions, f.err
}

func (f *fakeDashboardAudits) ListDocumentsBySession(context.Context, string) ([]models.AuditDocument, error) {
	return f.latestDocs, f.err
}

type fakeDashboardGenerations struct {
	sessions []models.GenerationSession
}

func (f *fakeDashboardGenerations) ListCompletedSessions(context.Context, string, int) ([]models.GenerationSession, error) {
	return f.sessions, nil
}

type fakeDashboardProfiles struct {
	profile *models.UserProfile
}

func (f *fakeDashboardProfiles) Get(context.Context, string) (*models.UserProfile, error) {
	if f.profile == nil {
		return nil, sqlNoRows()
	}
	return f.profile, nil
}

func analyzedDoc(name string, score float64) models.AuditDocument {
	return models.AuditDocument{
		Name:          name,
		Status:        models.DocumentStatusAnalyzed,
		ConformityRaw: &score,
		AxisLabel:     models.AxisManagementCommitment,
	}
}

func TestDashboardOverviewComposesAndCaches(t *testing.T) {
	cacheSvc := NewCacheService(&stubCacheRepo{}, nil, time.Minute, zap.NewNop(), true)

	completedAt := time.Now().Add(-24 * time.Hour)
	score := 72
	svc := NewDashboardService(DashboardServiceParams{
		Audits: &fakeDashboardAudits{
			latest: &models.AuditSession{
				ID:          "s1",
				Status:      models.AuditStatusCompleted,
				GlobalScore: &score,
				CompletedAt: &completedAt,
			},
			latestDocs: []models.AuditDocument{analyzedDoc("duer.pdf", 85)},
			count:      3,
			sessions: []models.AuditSession{
				{ID: "s1", GlobalScore: &score, CompletedAt: &completedAt},
			},
		},
		Generations: &fakeDashboardGenerations{},
		Profiles: &fakeDashboardProfiles{
			profile: &models.UserProfile{UserID: "u1", IsOnboardingCompleted: true},
		},
		Cache: cacheSvc,
	})

	overview, cached, err := svc.Overview(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, cached)
	require.NotNil(t, overview.GlobalScore)
	assert.Equal(t, 72, *overview.GlobalScore)
	assert.Equal(t, 3, overview.AuditsCompleted)
	assert.False(t, overview.OnboardingRequired)
	assert.Len(t, overview.AxisScores, 5)
	assert.Equal(t, models.Score(85), overview.AxisScores[0].Score)
	require.Len(t, overview.Activity, 1)
	assert.Equal(t, models.ActivityAuditCompleted, overview.Activity[0].Type)

	again, cached, err := svc.Overview(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, overview.GlobalScore, again.GlobalScore)
}

func TestDashboardGlobalScoreReportedVerbatim(t *testing.T) {
	// The stored global score differs from any recomputed average on
	// purpose; the dashboard must not second-guess it.
	completedAt := time.Now().Add(-time.Hour)
	stored := 42
	svc := NewDashboardService(DashboardServiceParams{
		Audits: &fakeDashboardAudits{
			latest: &models.AuditSession{
				ID:          "s1",
				GlobalScore: &stored,
				CompletedAt: &completedAt,
			},
			latestDocs: []models.AuditDocument{analyzedDoc("a.pdf", 95), analyzedDoc("b.pdf", 90)},
		},
		Generations: &fakeDashboardGenerations{},
		Profiles:    &fakeDashboardProfiles{profile: &models.UserProfile{IsOnboardingCompleted: true}},
	})

	overview, _, err := svc.Overview(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, overview.GlobalScore)
	assert.Equal(t, 42, *overview.GlobalScore)
}

func TestDashboardPriorityActionOrdering(t *testing.T) {
	// Pending profile, an audit older than the staleness window, and two
	// weak documents at 55% and 75%. High entries surface first; equal
	// priorities keep generation order.
	oldCompletion := time.Now().Add(-8 * 30 * 24 * time.Hour)
	score := 65
	svc := NewDashboardService(DashboardServiceParams{
		Audits: &fakeDashboardAudits{
			latest: &models.AuditSession{
				ID:          "s1",
				GlobalScore: &score,
				CompletedAt: &oldCompletion,
			},
			latestDocs: []models.AuditDocument{
				analyzedDoc("plan-prevention.pdf", 75),
				analyzedDoc("duer.pdf", 55),
			},
		},
		Generations:     &fakeDashboardGenerations{},
		Profiles:        &fakeDashboardProfiles{},
		StaleAuditAfter: 180 * 24 * time.Hour,
	})

	overview, _, err := svc.Overview(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, overview.PriorityActions, 4)

	assert.Equal(t, models.ActionTypeImproveDocument, overview.PriorityActions[0].Type)
	assert.Equal(t, models.PriorityHigh, overview.PriorityActions[0].Priority)
	assert.Equal(t, "duer.pdf", overview.PriorityActions[0].DocumentName)

	assert.Equal(t, models.ActionTypeCompleteProfile, overview.PriorityActions[1].Type)
	assert.Equal(t, models.PriorityMedium, overview.PriorityActions[1].Priority)

	assert.Equal(t, models.ActionTypeAuditOutdated, overview.PriorityActions[2].Type)

	assert.Equal(t, models.ActionTypeImproveDocument, overview.PriorityActions[3].Type)
	assert.Equal(t, "plan-prevention.pdf", overview.PriorityActions[3].DocumentName)
	assert.Equal(t, models.PriorityMedium, overview.PriorityActions[3].Priority)
}

func TestDashboardNoAuditShortCircuits(t *testing.T) {
	svc := NewDashboardService(DashboardServiceParams{
		Audits:      &fakeDashboardAudits{},
		Generations: &fakeDashboardGenerations{},
		Profiles:    &fakeDashboardProfiles{},
	})

	overview, _, err := svc.Overview(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, overview.GlobalScore)
	assert.True(t, overview.OnboardingRequired)
	require.Len(t, overview.PriorityActions, 2)
	assert.Equal(t, models.ActionTypeRunFirstAudit, overview.PriorityActions[0].Type)
	assert.Equal(t, models.PriorityHigh, overview.PriorityActions[0].Priority)
	assert.Equal(t, models.ActionTypeCompleteProfile, overview.PriorityActions[1].Type)
}

func TestDashboardActionsTruncated(t *testing.T) {
	completedAt := time.Now().Add(-time.Hour)
	score := 50
	docs := []models.AuditDocument{}
	for _, d := range []struct {
		name  string
		score float64
	}{
		{"a.pdf", 10}, {"b.pdf", 20}, {"c.pdf", 30}, {"d.pdf", 40}, {"e.pdf", 50}, {"f.pdf", 55},
	} {
		docs = append(docs, analyzedDoc(d.name, d.score))
	}
	svc := NewDashboardService(DashboardServiceParams{
		Audits: &fakeDashboardAudits{
			latest:     &models.AuditSession{ID: "s1", GlobalScore: &score, CompletedAt: &completedAt},
			latestDocs: docs,
		},
		Generations: &fakeDashboardGenerations{},
		Profiles:    &fakeDashboardProfiles{profile: &models.UserProfile{IsOnboardingCompleted: true}},
		MaxActions:  5,
	})

	overview, _, err := svc.Overview(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, overview.PriorityActions, 5)
	assert.Equal(t, "a.pdf", overview.PriorityActions[0].DocumentName)
}
