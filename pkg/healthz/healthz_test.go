package healthz

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthzAllPassingReturnsHealthy(t *testing.T) {
	s := New([]CheckFunc{{Name: "db", Run: func() error { return nil }}}, nil, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)
}

func TestHealthzHardFailureReturnsUnhealthy(t *testing.T) {
	s := New([]CheckFunc{{Name: "db", Run: func() error { return errors.New("connection refused") }}}, nil, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), StatusUnhealthy)
}

func TestHealthzSoftFailureDegradesNotFails(t *testing.T) {
	s := New([]CheckFunc{{Name: "cache", Soft: true, Run: func() error { return errors.New("slow") }}}, nil, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), StatusDegraded)
}

func TestReadyzUsesReadinessChecksIndependently(t *testing.T) {
	s := New(
		[]CheckFunc{{Name: "live", Run: func() error { return nil }}},
		[]CheckFunc{{Name: "ready", Run: func() error { return errors.New("warming up") }}},
		nil,
	)

	healthRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(healthRec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, healthRec.Code)

	readyRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(readyRec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, readyRec.Code)
}

func TestMetricsHandlerMountedWhenProvided(t *testing.T) {
	s := New(nil, nil, func(c *gin.Context) { c.String(http.StatusOK, "metrics_output") })

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "metrics_output", rec.Body.String())
}

func TestMetricsNotMountedWhenNil(t *testing.T) {
	s := New(nil, nil, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
