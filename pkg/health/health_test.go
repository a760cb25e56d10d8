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

func ok(context.Context) error { return nil }

func failing(context.Context) error { return errors.New("connection refused") }

func get(t *testing.T, c *Checker, path string) (int, Response) {
	t.Helper()
	e := echo.New()
	c.RegisterRoutes(e)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestChecker_Statuses(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*Checker)
		status Status
		code   int
	}{
		{"healthy", func(c *Checker) { c.Require("database", ok).Optional("kafka", ok) }, StatusHealthy, http.StatusOK},
		{"degraded", func(c *Checker) { c.Require("database", ok).Optional("kafka", failing) }, StatusDegraded, http.StatusOK},
		{"unhealthy", func(c *Checker) { c.Require("database", failing).Optional("kafka", ok) }, StatusUnhealthy, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker("test")
			tt.setup(c)
			c.SetReady(true)

			code, resp := get(t, c, "/api/v1/health/ready")
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.status, resp.Status)
			assert.Len(t, resp.Checks, 2)
		})
	}
}

func TestChecker_NotReady(t *testing.T) {
	c := NewChecker("test").Require("database", ok)

	code, resp := get(t, c, "/api/v1/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, StatusUnhealthy, resp.Checks["startup"].Status)

	code, resp = get(t, c, "/api/v1/health/live")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusHealthy, resp.Status)
}
