package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harborai/helmsman/api"
	"github.com/harborai/helmsman/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 测试辅助类型
// =============================================================================

// mockRecorder 模拟效用信号记录器
type mockRecorder struct {
	passageID string
	category  string
	reward    float64
	calls     int
}

func (m *mockRecorder) Record(passageID, category string, reward float64) {
	m.passageID = passageID
	m.category = category
	m.reward = reward
	m.calls++
}

func newFeedbackRequest(t *testing.T, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/v1/feedback", bytes.NewReader(raw))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// =============================================================================
// 🧪 FeedbackHandler 测试
// =============================================================================

func TestFeedbackHandler_HandleFeedback(t *testing.T) {
	logger := zap.NewNop()
	recorder := &mockRecorder{}
	handler := NewFeedbackHandler(recorder, logger)

	w := httptest.NewRecorder()
	r := newFeedbackRequest(t, api.FeedbackRequest{
		PassageID: "solas-iii-7-2-p1",
		Category:  "specification",
		Reward:    0.8,
	})

	handler.HandleFeedback(w, r)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, recorder.calls)
	assert.Equal(t, "solas-iii-7-2-p1", recorder.passageID)
	assert.Equal(t, "specification", recorder.category)
	assert.InDelta(t, 0.8, recorder.reward, 1e-9)

	var resp api.FeedbackResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Accepted)
	assert.False(t, resp.AcceptedAt.IsZero())
}

func TestFeedbackHandler_DefaultCategory(t *testing.T) {
	logger := zap.NewNop()
	recorder := &mockRecorder{}
	handler := NewFeedbackHandler(recorder, logger)

	w := httptest.NewRecorder()
	r := newFeedbackRequest(t, api.FeedbackRequest{
		PassageID: "msc-circ-1318-p4",
		Reward:    0.5,
	})

	handler.HandleFeedback(w, r)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "general", recorder.category)
}

func TestFeedbackHandler_ValidatesRequest(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name    string
		body    api.FeedbackRequest
		message string
	}{
		{
			name:    "missing passage id",
			body:    api.FeedbackRequest{Reward: 0.5},
			message: "passage_id is required",
		},
		{
			name:    "reward below range",
			body:    api.FeedbackRequest{PassageID: "p1", Reward: -0.1},
			message: "reward must be between 0 and 1",
		},
		{
			name:    "reward above range",
			body:    api.FeedbackRequest{PassageID: "p1", Reward: 1.5},
			message: "reward must be between 0 and 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &mockRecorder{}
			handler := NewFeedbackHandler(recorder, logger)

			w := httptest.NewRecorder()
			r := newFeedbackRequest(t, tt.body)

			handler.HandleFeedback(w, r)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Zero(t, recorder.calls)

			var resp Response
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.message, resp.Error.Message)
		})
	}
}

func TestFeedbackHandler_NilRecorder(t *testing.T) {
	logger := zap.NewNop()
	handler := NewFeedbackHandler(nil, logger)

	w := httptest.NewRecorder()
	r := newFeedbackRequest(t, api.FeedbackRequest{PassageID: "p1", Reward: 0.5})

	handler.HandleFeedback(w, r)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.ErrStoreUnavailable), resp.Error.Code)
}

func TestFeedbackHandler_BoundaryRewards(t *testing.T) {
	logger := zap.NewNop()

	for _, reward := range []float64{0, 1} {
		recorder := &mockRecorder{}
		handler := NewFeedbackHandler(recorder, logger)

		w := httptest.NewRecorder()
		r := newFeedbackRequest(t, api.FeedbackRequest{PassageID: "p1", Reward: reward})

		handler.HandleFeedback(w, r)

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, 1, recorder.calls)
	}
}
