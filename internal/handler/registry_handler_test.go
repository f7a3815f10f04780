package handler

import (
	"context"
	"encoding/json"
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
	appErrors "github.com/masedocs/mase-audit-api/pkg/errors"
	"github.com/masedocs/mase-audit-api/pkg/response"
)

type kvStoreMock struct {
	data map[string][]byte
}

func (m *kvStoreMock) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *kvStoreMock) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func (m *kvStoreMock) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func TestRegistryHandlerListFiltersBySource(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := service.NewRegistryService(&kvStoreMock{}, nil, 30)
	require.NoError(t, svc.Add(context.Background(), models.RegistryEntry{
		UserID: "u1", SessionID: "s1", Name: "duer.pdf", Source: models.RegistrySourceUpload,
	}))
	require.NoError(t, svc.Add(context.Background(), models.RegistryEntry{
		UserID: "u1", SessionID: "s1", Name: "plan.pdf", Source: models.RegistrySourceGenerated,
	}))
	handler := NewRegistryHandler(svc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/registry?source=upload", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleUser})

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data []models.RegistryEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "duer.pdf", envelope.Data[0].Name)
}

func TestRegistryHandlerRemoveBySession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := service.NewRegistryService(&kvStoreMock{}, nil, 30)
	require.NoError(t, svc.Add(context.Background(), models.RegistryEntry{
		UserID: "u1", SessionID: "s1", Name: "duer.pdf", Source: models.RegistrySourceUpload,
	}))
	require.NoError(t, svc.Add(context.Background(), models.RegistryEntry{
		UserID: "u1", SessionID: "s2", Name: "plan.pdf", Source: models.RegistrySourceGenerated,
	}))
	handler := NewRegistryHandler(svc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodDelete, "/registry?session_id=s1", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleUser})

	handler.Remove(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)

	remaining, err := svc.List(context.Background(), "u1", models.RegistryFilter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "plan.pdf", remaining[0].Name)
}

func TestRegistryHandlerRemoveRequiresSessionID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRegistryHandler(service.NewRegistryService(&kvStoreMock{}, nil, 30))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodDelete, "/registry", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleUser})

	handler.Remove(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegistryHandlerListUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRegistryHandler(service.NewRegistryService(&kvStoreMock{}, nil, 30))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/registry", nil)
	c.Request = req

	handler.List(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
}
