package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masedocs/mase-audit-api/internal/service"
)

type pingerMock struct {
	err error
}

func (p *pingerMock) PingContext(context.Context) error { return p.err }

func TestReadyDegradedWhenDatabaseDown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewMetricsHandler(service.NewMetricsService(), &pingerMock{err: errors.New("connection refused")})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/ready", nil)
	c.Request = req

	handler.Ready(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReadyObservesDatabasePing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	handler := NewMetricsHandler(metrics, &pingerMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/ready", nil)
	c.Request = req

	handler.Ready(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint64(1), metrics.Snapshot().DBQueryCount)
}
