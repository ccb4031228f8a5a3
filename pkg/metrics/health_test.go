package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetHealth(t *testing.T) {
	t.Helper()
	healthChecker = newHealthChecker()
}

func registerCritical(healthy bool) {
	for _, name := range CriticalComponents {
		RegisterComponent(name, healthy, "")
	}
}

func TestRegisterComponent(t *testing.T) {
	resetHealth(t)

	RegisterComponent(ComponentStorage, true, "opened")
	RegisterComponent(ComponentStorage, false, "closed")

	require.Len(t, healthChecker.components, 1)
	comp := healthChecker.components[ComponentStorage]
	assert.False(t, comp.Healthy)
	assert.Equal(t, "closed", comp.Message)
}

func TestGetHealth(t *testing.T) {
	tests := []struct {
		name       string
		components map[string]bool
		wantStatus string
	}{
		{
			name:       "no components",
			components: map[string]bool{},
			wantStatus: "healthy",
		},
		{
			name:       "all healthy",
			components: map[string]bool{ComponentAPI: true, ComponentStorage: true},
			wantStatus: "healthy",
		},
		{
			name:       "one unhealthy",
			components: map[string]bool{ComponentAPI: true, ComponentStorage: false},
			wantStatus: "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetHealth(t)
			SetVersion("1.0.0")
			for name, healthy := range tt.components {
				RegisterComponent(name, healthy, "broken")
			}

			health := GetHealth()
			assert.Equal(t, tt.wantStatus, health.Status)
			assert.Len(t, health.Components, len(tt.components))
			assert.Equal(t, "1.0.0", health.Version)
		})
	}
}

func TestGetReadiness(t *testing.T) {
	t.Run("all critical components ready", func(t *testing.T) {
		resetHealth(t)
		registerCritical(true)

		readiness := GetReadiness()
		assert.Equal(t, "ready", readiness.Status)
		assert.Empty(t, readiness.Message)
	})

	t.Run("critical component missing", func(t *testing.T) {
		resetHealth(t)
		RegisterComponent(ComponentAPI, true, "")

		readiness := GetReadiness()
		assert.Equal(t, "not_ready", readiness.Status)
		assert.Equal(t, "not registered", readiness.Components[ComponentStorage])
		assert.NotEmpty(t, readiness.Message)
	})

	t.Run("critical component unhealthy", func(t *testing.T) {
		resetHealth(t)
		registerCritical(true)
		RegisterComponent(ComponentTransformations, false, "missing transformer")

		readiness := GetReadiness()
		assert.Equal(t, "not_ready", readiness.Status)
		assert.Equal(t, "not ready: missing transformer", readiness.Components[ComponentTransformations])
	})
}

func TestHandlers(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		healthy    bool
		wantCode   int
		wantStatus string
	}{
		{"health ok", HealthHandler(), true, http.StatusOK, "healthy"},
		{"health failing", HealthHandler(), false, http.StatusServiceUnavailable, "unhealthy"},
		{"ready ok", ReadyHandler(), true, http.StatusOK, "ready"},
		{"ready failing", ReadyHandler(), false, http.StatusServiceUnavailable, "not_ready"},
		{"liveness", LivenessHandler(), false, http.StatusOK, "alive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetHealth(t)
			registerCritical(tt.healthy)

			w := httptest.NewRecorder()
			tt.handler(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.wantStatus, body["status"])
			assert.NotEmpty(t, body["uptime"])
		})
	}
}
