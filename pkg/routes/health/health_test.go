package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(e *echo.Echo, path string) (*httptest.ResponseRecorder, Response) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var resp Response
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	return rec, resp
}

func TestHealthEndpoints(t *testing.T) {
	checker := NewChecker("test")
	checker.AddCheck("database", func(context.Context) error { return nil })

	e := echo.New()
	checker.RegisterRoutes(e)

	rec, _ := serve(e, "/api/v1/health/live")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp := serve(e, "/api/v1/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, StatusUnhealthy, resp.Checks["startup"].Status)

	checker.SetReady(true)
	rec, resp = serve(e, "/api/v1/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusHealthy, resp.Checks["database"].Status)
}

func TestHealthReportsFailingCheck(t *testing.T) {
	checker := NewChecker("test")
	checker.AddCheck("database", func(context.Context) error { return nil })
	checker.AddCheck("redis", func(context.Context) error { return errors.New("connection refused") })

	e := echo.New()
	checker.RegisterRoutes(e)

	rec, resp := serve(e, "/api/v1/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, "connection refused", resp.Checks["redis"].Message)
	assert.Equal(t, StatusHealthy, resp.Checks["database"].Status)
}
