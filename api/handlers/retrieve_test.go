package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/harborai/helmsman/api"
	"github.com/harborai/helmsman/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 测试辅助类型
// =============================================================================

// mockRetriever 模拟检索引擎
type mockRetriever struct {
	result    *retrieval.Result
	lastQuery string
	lastOpts  retrieval.Options
	calls     int
}

func (m *mockRetriever) RetrieveWithOptions(ctx context.Context, query string, opts retrieval.Options) *retrieval.Result {
	m.lastQuery = query
	m.lastOpts = opts
	m.calls++
	return m.result
}

func sampleResult() *retrieval.Result {
	return &retrieval.Result{
		Query: retrieval.QueryContext{
			Original:      "客船救生衣数量要求",
			EnhancedQuery: "客船救生衣数量要求 | lifejacket requirements passenger ship",
			Intent:        retrieval.IntentSpecification,
			Strategy:      retrieval.StrategyHybrid,
			TopK:          5,
		},
		Candidates: []retrieval.Candidate{
			{
				Passage: retrieval.Passage{
					ID:         "solas-iii-7-2-p1",
					Text:       "每名船上人员应配备一件救生衣。",
					DocumentID: "SOLAS",
					Metadata:   map[string]string{"breadcrumb": "SOLAS > III > Reg 7.2"},
				},
				Signals:     []retrieval.Signal{retrieval.SignalVector, retrieval.SignalLexical},
				FusedScore:  0.032,
				RerankScore: 0.91,
				FinalScore:  0.87,
			},
		},
		Elapsed: 42 * time.Millisecond,
	}
}

func newRetrieveRequest(t *testing.T, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/v1/retrieve", bytes.NewReader(raw))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// =============================================================================
// 🧪 RetrieveHandler 测试
// =============================================================================

func TestRetrieveHandler_HandleRetrieve(t *testing.T) {
	logger := zap.NewNop()
	engine := &mockRetriever{result: sampleResult()}
	handler := NewRetrieveHandler(engine, 0, logger)

	w := httptest.NewRecorder()
	r := newRetrieveRequest(t, api.RetrieveRequest{Query: "客船救生衣数量要求"})

	handler.HandleRetrieve(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "客船救生衣数量要求", engine.lastQuery)
	assert.Equal(t, retrieval.Options{}, engine.lastOpts)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)

	var data api.RetrieveResponse
	require.NoError(t, json.Unmarshal(raw, &data))

	assert.Equal(t, "客船救生衣数量要求", data.Query.Original)
	assert.Equal(t, string(retrieval.StrategyHybrid), data.Query.Strategy)
	require.Len(t, data.Candidates, 1)
	assert.Equal(t, "solas-iii-7-2-p1", data.Candidates[0].PassageID)
	assert.Contains(t, data.Candidates[0].Signals, string(retrieval.SignalVector))
	assert.InDelta(t, 0.87, data.Candidates[0].FinalScore, 1e-9)
}

func TestRetrieveHandler_PassesOverridesToEngine(t *testing.T) {
	logger := zap.NewNop()
	engine := &mockRetriever{result: sampleResult()}
	handler := NewRetrieveHandler(engine, 0, logger)

	w := httptest.NewRecorder()
	r := newRetrieveRequest(t, api.RetrieveRequest{
		Query:       "货船是否需要配备救生筏",
		TopK:        8,
		Strategy:    "semantic",
		QueryIntent: "applicability",
		ShipType:    "oil tanker",
	})

	handler.HandleRetrieve(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, retrieval.Options{
		TopK:     8,
		Strategy: retrieval.StrategySemantic,
		Intent:   retrieval.IntentApplicability,
		ShipType: "oil tanker",
	}, engine.lastOpts)
}

func TestRetrieveHandler_AutoStrategyAccepted(t *testing.T) {
	logger := zap.NewNop()
	engine := &mockRetriever{result: sampleResult()}
	handler := NewRetrieveHandler(engine, 0, logger)

	w := httptest.NewRecorder()
	r := newRetrieveRequest(t, api.RetrieveRequest{Query: "救生衣要求", Strategy: "auto"})

	handler.HandleRetrieve(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, retrieval.StrategyAuto, engine.lastOpts.Strategy)
}

func TestRetrieveHandler_ValidatesRequest(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name  string
		body  api.RetrieveRequest
		field string
	}{
		{
			name:  "empty query",
			body:  api.RetrieveRequest{Query: ""},
			field: "query is required",
		},
		{
			name:  "whitespace query",
			body:  api.RetrieveRequest{Query: "   \t  "},
			field: "query is required",
		},
		{
			name:  "oversized query",
			body:  api.RetrieveRequest{Query: strings.Repeat("灭", maxQueryRunes+1)},
			field: "query is too long",
		},
		{
			name:  "negative top_k",
			body:  api.RetrieveRequest{Query: "救生衣", TopK: -1},
			field: "top_k must be non-negative",
		},
		{
			name:  "unknown strategy",
			body:  api.RetrieveRequest{Query: "救生衣", Strategy: "fulltext"},
			field: "strategy must be one of: auto, hybrid, semantic, keyword",
		},
		{
			name:  "unknown intent",
			body:  api.RetrieveRequest{Query: "救生衣", QueryIntent: "configuration"},
			field: "unknown query_intent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &mockRetriever{result: sampleResult()}
			handler := NewRetrieveHandler(engine, 0, logger)

			w := httptest.NewRecorder()
			r := newRetrieveRequest(t, tt.body)

			handler.HandleRetrieve(w, r)

			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp Response
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.field, resp.Error.Message)
			assert.Empty(t, engine.lastQuery, "engine should not be invoked")
		})
	}
}

func TestRetrieveHandler_RejectsWrongContentType(t *testing.T) {
	logger := zap.NewNop()
	engine := &mockRetriever{result: sampleResult()}
	handler := NewRetrieveHandler(engine, 0, logger)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/retrieve", strings.NewReader(`{"query":"x"}`))
	r.Header.Set("Content-Type", "text/plain")

	handler.HandleRetrieve(w, r)

	assert.NotEqual(t, http.StatusOK, w.Code)
	assert.Empty(t, engine.lastQuery)
}

func TestRetrieveHandler_TrimsQuery(t *testing.T) {
	logger := zap.NewNop()
	engine := &mockRetriever{result: sampleResult()}
	handler := NewRetrieveHandler(engine, 0, logger)

	w := httptest.NewRecorder()
	r := newRetrieveRequest(t, api.RetrieveRequest{Query: "  防火完整性要求  "})

	handler.HandleRetrieve(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "防火完整性要求", engine.lastQuery)
}
