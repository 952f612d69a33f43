package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newGraphServer 起一个按语句内容分发的 Neo4j 事务协议测试服务。
func newGraphServer(t *testing.T, handler func(stmt cypherStatement) [][]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.True(t, strings.HasSuffix(r.URL.Path, "/tx/commit"), "unexpected path %s", r.URL.Path)

		var req cypherRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Statements, 1)

		rows := handler(req.Statements[0])
		data := make([]map[string]any, len(rows))
		for i, row := range rows {
			data[i] = map[string]any{"row": row}
		}
		resp := map[string]any{
			"results": []map[string]any{{"columns": []string{}, "data": data}},
			"errors":  []any{},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func graphDispatch(resolveRows, relatedRows [][]any) func(stmt cypherStatement) [][]any {
	return func(stmt cypherStatement) [][]any {
		if strings.Contains(stmt.Statement, "INTERPRETS|AMENDS") {
			return relatedRows
		}
		return resolveRows
	}
}

func TestGraphBackend_Search(t *testing.T) {
	srv := newGraphServer(t, graphDispatch(
		[][]any{{"solas-ii2", "SOLAS Chapter II-2"}},
		[][]any{
			{"fss-code", "FSS Code", "INTERPRETS"},
			{"msc-1165", "MSC.1/Circ.1165", "AMENDS"},
		},
	))
	defer srv.Close()

	b := NewGraphBackend(GraphBackendConfig{BaseURL: srv.URL}, nil)

	q := &QueryContext{}
	q.Entities.Concept = "fire_protection"

	results, err := b.Search(context.Background(), q, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// 源文档排在首位, 结果是文档级伪 passage
	assert.Equal(t, "doc:solas-ii2", results[0].Passage.ID)
	assert.Equal(t, "solas-ii2", results[0].Passage.DocumentID)
	assert.Equal(t, "SOLAS Chapter II-2", results[0].Passage.Text)
	assert.Equal(t, "SOLAS Chapter II-2", results[0].Passage.Meta("title"))

	assert.Equal(t, "doc:fss-code", results[1].Passage.ID)
	assert.Equal(t, "INTERPRETS", results[1].Passage.Meta("relation"))
	assert.Equal(t, "doc:msc-1165", results[2].Passage.ID)
	assert.Equal(t, "AMENDS", results[2].Passage.Meta("relation"))

	// 图谱结果无内在分值, 名次折算交给融合阶段
	assert.Zero(t, results[0].Score)
}

func TestGraphBackend_SearchTruncatesToTopK(t *testing.T) {
	srv := newGraphServer(t, graphDispatch(
		[][]any{{"solas-ii2", "SOLAS Chapter II-2"}},
		[][]any{
			{"d1", "Doc 1", "INTERPRETS"},
			{"d2", "Doc 2", "INTERPRETS"},
			{"d3", "Doc 3", "INTERPRETS"},
		},
	))
	defer srv.Close()

	b := NewGraphBackend(GraphBackendConfig{BaseURL: srv.URL}, nil)
	q := &QueryContext{}
	q.Entities.RegulationRef = "SOLAS II-2/9.2"

	results, err := b.Search(context.Background(), q, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "doc:solas-ii2", results[0].Passage.ID)
	assert.Equal(t, "doc:d1", results[1].Passage.ID)
}

func TestGraphBackend_SearchNoEntities(t *testing.T) {
	srv := newGraphServer(t, func(cypherStatement) [][]any {
		t.Fatal("server should not be called")
		return nil
	})
	defer srv.Close()

	b := NewGraphBackend(GraphBackendConfig{BaseURL: srv.URL}, nil)
	results, err := b.Search(context.Background(), &QueryContext{}, 10)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestGraphBackend_SearchUnresolvedDocument(t *testing.T) {
	srv := newGraphServer(t, graphDispatch(nil, nil))
	defer srv.Close()

	b := NewGraphBackend(GraphBackendConfig{BaseURL: srv.URL}, nil)
	q := &QueryContext{}
	q.Entities.Concept = "unknown_concept"

	results, err := b.Search(context.Background(), q, 10)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestGraphBackend_ResolveParameters(t *testing.T) {
	var gotParams map[string]any
	srv := newGraphServer(t, func(stmt cypherStatement) [][]any {
		if !strings.Contains(stmt.Statement, "INTERPRETS|AMENDS") {
			gotParams = stmt.Parameters
		}
		return nil
	})
	defer srv.Close()

	b := NewGraphBackend(GraphBackendConfig{BaseURL: srv.URL}, nil)
	q := &QueryContext{}
	q.Entities.Concept = "fire_protection"
	q.Entities.RegulationRef = "SOLAS II-2/9.2"

	_, err := b.Search(context.Background(), q, 10)
	require.NoError(t, err)
	require.NotNil(t, gotParams)
	assert.Equal(t, "fire_protection", gotParams["concept"])
	assert.Equal(t, "SOLAS II-2/9.2", gotParams["ref"])
}

func TestGraphBackend_RelatedDocuments(t *testing.T) {
	var gotParams map[string]any
	srv := newGraphServer(t, func(stmt cypherStatement) [][]any {
		gotParams = stmt.Parameters
		return [][]any{
			{"fss-code", "FSS Code", "INTERPRETS"},
			{"", "skipped row", "AMENDS"}, // 无 id 的行被丢弃
		}
	})
	defer srv.Close()

	b := NewGraphBackend(GraphBackendConfig{BaseURL: srv.URL}, nil)
	related, err := b.RelatedDocuments(context.Background(), "solas-ii2", 5)
	require.NoError(t, err)

	assert.Equal(t, "solas-ii2", gotParams["id"])
	assert.Equal(t, float64(5), gotParams["limit"])

	require.Len(t, related, 1)
	assert.Equal(t, RelatedDoc{ID: "fss-code", Title: "FSS Code", Relation: "INTERPRETS"}, related[0])
}

func TestGraphBackend_CypherError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[],"errors":[{"code":"Neo.ClientError.Statement.SyntaxError","message":"bad cypher"}]}`))
	}))
	defer srv.Close()

	b := NewGraphBackend(GraphBackendConfig{BaseURL: srv.URL}, nil)
	q := &QueryContext{}
	q.Entities.Concept = "fire_protection"

	_, err := b.Search(context.Background(), q, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SyntaxError")
}
