package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masedocs/mase-audit-api/internal/middleware"
	"github.com/masedocs/mase-audit-api/internal/models"
	"github.com/masedocs/mase-audit-api/internal/service"
)

type profileRepoMock struct {
	profile *models.UserProfile
}

func (m *profileRepoMock) Get(context.Context, string) (*models.UserProfile, error) {
	if m.profile == nil {
		return nil, sql.ErrNoRows
	}
	return m.profile, nil
}

func (m *profileRepoMock) Upsert(_ context.Context, profile *models.UserProfile) error {
	m.profile = profile
	return nil
}

func (m *profileRepoMock) ResetOnboarding(context.Context, string) error {
	if m.profile != nil {
		m.profile.IsOnboardingCompleted = false
	}
	return nil
}

func authedContext(t *testing.T, method, target string, body []byte) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body != nil {
		req, _ = http.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, target, nil)
	}
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleUser})
	return w, c
}

func TestOnboardingHandlerStatusPending(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := service.NewOnboardingService(&profileRepoMock{}, nil, nil, nil)
	handler := NewOnboardingHandler(svc)

	w, c := authedContext(t, http.MethodGet, "/onboarding", nil)
	handler.Status(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data struct {
			State models.OnboardingState `json:"state"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, models.OnboardingPending, envelope.Data.State)
}

func TestOnboardingHandlerSubmitRejectsPartialPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &profileRepoMock{}
	handler := NewOnboardingHandler(service.NewOnboardingService(repo, nil, nil, nil))

	payload := []byte(`{"full_name":"Marie Durand","company_name":"BTP Services"}`)
	w, c := authedContext(t, http.MethodPost, "/onboarding", payload)
	handler.Submit(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, repo.profile, "a partial questionnaire must not be persisted")
}

func TestOnboardingHandlerSubmitCompletes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &profileRepoMock{}
	handler := NewOnboardingHandler(service.NewOnboardingService(repo, nil, nil, nil))

	payload := []byte(`{
		"full_name": "Marie Durand",
		"company_name": "BTP Services",
		"sector": "Construction",
		"company_size": "10-49",
		"main_activities": "Gros oeuvre"
	}`)
	w, c := authedContext(t, http.MethodPost, "/onboarding", payload)
	handler.Submit(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, repo.profile)
	assert.True(t, repo.profile.IsOnboardingCompleted)
}
