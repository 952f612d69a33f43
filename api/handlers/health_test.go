package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 测试辅助类型
// =============================================================================

// mockHealthCheck 模拟健康检查
type mockHealthCheck struct {
	name string
	err  error
}

func (m *mockHealthCheck) Name() string { return m.name }

func (m *mockHealthCheck) Check(ctx context.Context) error { return m.err }

func decodeHealthStatus(t *testing.T, w *httptest.ResponseRecorder) HealthStatus {
	t.Helper()
	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	return status
}

// =============================================================================
// 🧪 HealthHandler 测试
// =============================================================================

func TestHealthHandler_HandleHealth(t *testing.T) {
	handler := NewHealthHandler(zap.NewNop())

	w := httptest.NewRecorder()
	handler.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	status := decodeHealthStatus(t, w)
	assert.Equal(t, "healthy", status.Status)
	assert.False(t, status.Timestamp.IsZero())
	assert.NotEmpty(t, status.Uptime)
}

func TestHealthHandler_HandleHealthz(t *testing.T) {
	handler := NewHealthHandler(zap.NewNop())

	w := httptest.NewRecorder()
	handler.HandleHealthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	status := decodeHealthStatus(t, w)
	assert.Equal(t, "healthy", status.Status)
}

func TestHealthHandler_HandleReady(t *testing.T) {
	tests := []struct {
		name           string
		setupChecks    func(*HealthHandler)
		expectedStatus int
		checkStatus    func(*testing.T, HealthStatus)
	}{
		{
			name:           "no checks - ready",
			setupChecks:    func(h *HealthHandler) {},
			expectedStatus: http.StatusOK,
			checkStatus: func(t *testing.T, status HealthStatus) {
				assert.Equal(t, "healthy", status.Status)
			},
		},
		{
			name: "all checks pass",
			setupChecks: func(h *HealthHandler) {
				h.RegisterCheck(&mockHealthCheck{name: "index"})
				h.RegisterOptionalCheck(&mockHealthCheck{name: "utility_store"})
			},
			expectedStatus: http.StatusOK,
			checkStatus: func(t *testing.T, status HealthStatus) {
				assert.Equal(t, "healthy", status.Status)
				assert.Len(t, status.Checks, 2)
				assert.Equal(t, "pass", status.Checks["index"].Status)
				assert.Equal(t, "pass", status.Checks["utility_store"].Status)
			},
		},
		{
			name: "critical check fails",
			setupChecks: func(h *HealthHandler) {
				h.RegisterCheck(&mockHealthCheck{name: "index", err: errors.New("index unreachable")})
			},
			expectedStatus: http.StatusServiceUnavailable,
			checkStatus: func(t *testing.T, status HealthStatus) {
				assert.Equal(t, "unhealthy", status.Status)
				assert.Equal(t, "fail", status.Checks["index"].Status)
				assert.Equal(t, "index unreachable", status.Checks["index"].Message)
			},
		},
		{
			name: "optional check failure only degrades",
			setupChecks: func(h *HealthHandler) {
				h.RegisterOptionalCheck(&mockHealthCheck{name: "utility_store", err: errors.New("store down")})
				h.RegisterOptionalCheck(&mockHealthCheck{name: "result_cache"})
			},
			expectedStatus: http.StatusOK,
			checkStatus: func(t *testing.T, status HealthStatus) {
				assert.Equal(t, "degraded", status.Status)
				assert.Equal(t, "fail", status.Checks["utility_store"].Status)
				assert.Equal(t, "pass", status.Checks["result_cache"].Status)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(zap.NewNop())
			tt.setupChecks(h)

			w := httptest.NewRecorder()
			h.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			tt.checkStatus(t, decodeHealthStatus(t, w))
		})
	}
}

func TestHealthHandler_HandleVersion(t *testing.T) {
	handler := NewHealthHandler(zap.NewNop())

	w := httptest.NewRecorder()
	handler.HandleVersion("1.0.0", "2026-01-01T00:00:00Z", "abc123")(
		w, httptest.NewRequest(http.MethodGet, "/version", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1.0.0", data["version"])
	assert.Equal(t, "2026-01-01T00:00:00Z", data["build_time"])
	assert.Equal(t, "abc123", data["git_commit"])
}

func TestPingCheck(t *testing.T) {
	called := false
	check := NewPingCheck("utility_store", func(ctx context.Context) error {
		called = true
		return nil
	})

	assert.Equal(t, "utility_store", check.Name())
	assert.NoError(t, check.Check(context.Background()))
	assert.True(t, called)
}

func TestHealthHandler_ConcurrentReady(t *testing.T) {
	handler := NewHealthHandler(zap.NewNop())
	for i := 0; i < 10; i++ {
		handler.RegisterOptionalCheck(&mockHealthCheck{name: string(rune('a' + i))})
	}

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			w := httptest.NewRecorder()
			handler.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
			assert.Equal(t, http.StatusOK, w.Code)
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}
