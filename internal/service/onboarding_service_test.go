package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masedocs/mase-audit-api/internal/models"
)

type fakeProfileRepo struct {
	profile *models.UserProfile
	saved   *models.UserProfile
}

func (f *fakeProfileRepo) Get(context.Context, string) (*models.UserProfile, error) {
	if f.profile == nil {
		return nil, sqlNoRows()
	}
	return f.profile, nil
}

func (f *fakeProfileRepo) Upsert(_ context.Context, profile *models.UserProfile) error {
	f.saved = profile
	f.profile = profile
	return nil
}

func (f *fakeProfileRepo) ResetOnboarding(context.Context, string) error {
	if f.profile != nil {
		f.profile.IsOnboardingCompleted = false
	}
	return nil
}

func validOnboarding() models.OnboardingRequest {
	return models.OnboardingRequest{
		FullName:       "Marie Durand",
		CompanyName:    "BTP Services",
		Sector:         "Construction",
		CompanySize:    "10-49",
		MainActivities: "Gros oeuvre et second oeuvre",
	}
}

func TestOnboardingStatusMissingProfileIsPending(t *testing.T) {
	svc := NewOnboardingService(&fakeProfileRepo{}, nil, nil, nil)

	status, err := svc.Status(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.OnboardingPending, status.State)
	assert.Nil(t, status.Profile)
}

func TestOnboardingSubmitRejectsPartialQuestionnaire(t *testing.T) {
	repo := &fakeProfileRepo{}
	svc := NewOnboardingService(repo, nil, nil, nil)

	req := validOnboarding()
	req.Sector = ""
	_, err := svc.Submit(context.Background(), "u1", req)
	require.Error(t, err)
	assert.Nil(t, repo.saved, "a partial submission must not be persisted")

	status, err := svc.Status(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.OnboardingPending, status.State)
}

func TestOnboardingSubmitCompletesGate(t *testing.T) {
	repo := &fakeProfileRepo{}
	svc := NewOnboardingService(repo, nil, nil, nil)

	status, err := svc.Submit(context.Background(), "u1", validOnboarding())
	require.NoError(t, err)
	assert.Equal(t, models.OnboardingCompleted, status.State)
	require.NotNil(t, repo.saved)
	assert.True(t, repo.saved.IsOnboardingCompleted)

	completed, err := svc.Completed(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, completed)
}

func TestOnboardingResubmissionUpdatesDetails(t *testing.T) {
	repo := &fakeProfileRepo{}
	svc := NewOnboardingService(repo, nil, nil, nil)

	_, err := svc.Submit(context.Background(), "u1", validOnboarding())
	require.NoError(t, err)

	updated := validOnboarding()
	updated.CompanyName = "BTP Services SAS"
	status, err := svc.Submit(context.Background(), "u1", updated)
	require.NoError(t, err)
	assert.Equal(t, models.OnboardingCompleted, status.State)
	assert.Equal(t, "BTP Services SAS", repo.saved.CompanyName)
}
