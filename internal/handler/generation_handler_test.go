package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masedocs/mase-audit-api/internal/middleware"
	"github.com/masedocs/mase-audit-api/internal/models"
	"github.com/masedocs/mase-audit-api/internal/service"
)

type generationStoreMock struct {
	sessions []models.GenerationSession
	docs     map[string][]models.GeneratedDocument
	seq      int
}

func (m *generationStoreMock) CreateSession(_ context.Context, session *models.GenerationSession) error {
	m.seq++
	session.ID = fmt.Sprintf("g%d", m.seq)
	m.sessions = append(m.sessions, *session)
	return nil
}

func (m *generationStoreMock) FindSession(_ context.Context, _ string, sessionID string) (*models.GenerationSession, error) {
	for i := range m.sessions {
		if m.sessions[i].ID == sessionID {
			return &m.sessions[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *generationStoreMock) ListCompletedSessions(context.Context, string, int) ([]models.GenerationSession, error) {
	return nil, nil
}

func (m *generationStoreMock) CompleteSession(context.Context, string, time.Time) error { return nil }

func (m *generationStoreMock) CreateDocument(_ context.Context, doc *models.GeneratedDocument) error {
	m.seq++
	doc.ID = fmt.Sprintf("gd%d", m.seq)
	if m.docs == nil {
		m.docs = map[string][]models.GeneratedDocument{}
	}
	m.docs[doc.SessionID] = append(m.docs[doc.SessionID], *doc)
	return nil
}

func (m *generationStoreMock) ListDocumentsBySession(_ context.Context, sessionID string) ([]models.GeneratedDocument, error) {
	return m.docs[sessionID], nil
}

func (m *generationStoreMock) ListDocumentPaths(context.Context, string) ([]string, error) {
	return nil, nil
}

func (m *generationStoreMock) DeleteUserGenerationData(context.Context, string) error { return nil }

type objectStoreMock struct {
	stored map[string]bool
}

func (m *objectStoreMock) Upload(_ context.Context, key string, _ io.Reader, _ int64, _ string) error {
	if m.stored == nil {
		m.stored = map[string]bool{}
	}
	m.stored[key] = true
	return nil
}

func (m *objectStoreMock) Remove(_ context.Context, key string) error {
	delete(m.stored, key)
	return nil
}

func (m *objectStoreMock) PublicURL(key string) string { return "http://objects.local/" + key }

func TestGenerationHandlerAddDocumentLinksDerivative(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := &generationStoreMock{
		sessions: []models.GenerationSession{{
			ID:     "g1",
			UserID: "u1",
			Mode:   models.GenerationModeFromScratch,
			Status: models.GenerationStatusDraft,
		}},
	}
	generations := service.NewGenerationHistoryService(service.GenerationHistoryParams{
		Generations: store,
		Objects:     &objectStoreMock{},
	})
	registry := service.NewRegistryService(&kvStoreMock{}, nil, 30)
	handler := NewGenerationHandler(generations, registry)

	payload := map[string]string{
		"name":      "duer-v2.pdf",
		"content":   base64.StdEncoding.EncodeToString([]byte("contenu")),
		"parent_id": "orig-1",
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/generations/g1/documents", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "g1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleUser})

	handler.AddDocument(c)
	require.Equal(t, http.StatusCreated, w.Code)

	entries, err := registry.List(context.Background(), "u1", models.RegistryFilter{ParentID: "orig-1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.RegistrySourceDerived, entries[0].Source)
	assert.Equal(t, "orig-1", entries[0].ParentID)
	assert.NotEmpty(t, entries[0].DocumentID)
}

func TestGenerationHandlerAddDocumentWithoutParentIsGenerated(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := &generationStoreMock{
		sessions: []models.GenerationSession{{
			ID:     "g1",
			UserID: "u1",
			Mode:   models.GenerationModeFromScratch,
			Status: models.GenerationStatusDraft,
		}},
	}
	generations := service.NewGenerationHistoryService(service.GenerationHistoryParams{
		Generations: store,
		Objects:     &objectStoreMock{},
	})
	registry := service.NewRegistryService(&kvStoreMock{}, nil, 30)
	handler := NewGenerationHandler(generations, registry)

	payload := map[string]string{
		"name":    "politique-sse.pdf",
		"content": base64.StdEncoding.EncodeToString([]byte("contenu")),
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/generations/g1/documents", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "g1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleUser})

	handler.AddDocument(c)
	require.Equal(t, http.StatusCreated, w.Code)

	entries, err := registry.List(context.Background(), "u1", models.RegistryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.RegistrySourceGenerated, entries[0].Source)
	assert.Empty(t, entries[0].ParentID)
}
