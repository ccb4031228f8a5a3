package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cuemby/clusterupgrade/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHealthHandler tests the /health endpoint
func TestHealthHandler(t *testing.T) {
	f := newAPIFixture(t, false)

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{
			name:           "GET request succeeds",
			method:         http.MethodGet,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "POST request fails",
			method:         http.MethodPost,
			expectedStatus: http.StatusMethodNotAllowed,
		},
		{
			name:           "DELETE request fails",
			method:         http.MethodDelete,
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, tt.method, "/health", nil)
			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectedStatus == http.StatusOK {
				var response metrics.HealthStatus
				require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
				assert.Equal(t, "healthy", response.Status)
				assert.NotZero(t, response.Timestamp)
				assert.Equal(t, "healthy", response.Components[metrics.ComponentStorage])
				assert.Equal(t, "healthy", response.Components[metrics.ComponentTransformations])
			}
		})
	}
}

// TestReadyHandler tests the /ready endpoint once the listener is reported up
func TestReadyHandler(t *testing.T) {
	f := newAPIFixture(t, false)
	metrics.RegisterComponent(metrics.ComponentAPI, true, "")

	w := f.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response metrics.HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "ready", response.Status)
	assert.Equal(t, map[string]string{
		metrics.ComponentStorage:         "ready",
		metrics.ComponentTransformations: "ready",
		metrics.ComponentAPI:             "ready",
	}, response.Components)
}

// TestReadyHandlerNotInitialized tests readiness without storage or helper
func TestReadyHandlerNotInitialized(t *testing.T) {
	s := NewServer(Config{})
	metrics.RegisterComponent(metrics.ComponentAPI, true, "")

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var response metrics.HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "not_ready", response.Status)
	assert.Equal(t, "not ready: not initialized", response.Components[metrics.ComponentStorage])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newAPIFixture(t, false)

	f.do(t, http.MethodGet, "/api/v1/clusters", nil)
	w := f.do(t, http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `clusterupgrade_api_requests_total{method="list_clusters",status="200"}`)
}

func BenchmarkHealthHandler(b *testing.B) {
	s := NewServer(Config{})
	req := httptest.NewRequest(http.MethodGet, "/livez", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		s.ServeHTTP(w, req)
	}
}
