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

// newExpansionFixture 起图谱与全文两个测试服务:
// 图谱按源文档 id 返回预置引用, 全文按标题词回查 passage。
func newExpansionFixture(t *testing.T, relations map[string][]RelatedDoc, titleHits map[string]Passage) (*GraphBackend, *LexicalBackend, func()) {
	t.Helper()

	graphSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req cypherRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		docID, _ := req.Statements[0].Parameters["id"].(string)

		data := []map[string]any{}
		for _, rel := range relations[docID] {
			data = append(data, map[string]any{"row": []any{rel.ID, rel.Title, rel.Relation}})
		}
		resp := map[string]any{
			"results": []map[string]any{{"columns": []string{}, "data": data}},
			"errors":  []any{},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))

	lexSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req esSearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var resp esSearchResponse
		for title, p := range titleHits {
			if queryMatchesTitle(req.Query.QueryString.Query, title) {
				resp.Hits.Hits = append(resp.Hits.Hits, struct {
					ID     string         `json:"_id"`
					Score  float64        `json:"_score"`
					Source map[string]any `json:"_source"`
				}{
					ID:    p.ID,
					Score: 5.0,
					Source: map[string]any{
						"passage_id":  p.ID,
						"document_id": p.DocumentID,
						"content":     p.Text,
					},
				})
				break
			}
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))

	graph := NewGraphBackend(GraphBackendConfig{BaseURL: graphSrv.URL}, nil)
	lexical := NewLexicalBackend(LexicalBackendConfig{BaseURL: lexSrv.URL}, nil)
	return graph, lexical, func() {
		graphSrv.Close()
		lexSrv.Close()
	}
}

// queryMatchesTitle 判断改写后的 query_string 是否来自给定标题。
func queryMatchesTitle(query, title string) bool {
	for _, token := range latinTokens(title) {
		if !strings.Contains(query, token) {
			return false
		}
	}
	return true
}

func seedCandidate(id, docID string, score float64) Candidate {
	return Candidate{
		Passage:    Passage{ID: id, Text: "seed text", DocumentID: docID},
		Signals:    []Signal{SignalVector},
		FusedScore: score,
		FinalScore: score,
	}
}

func TestGraphExpander_AppendsRelatedDocuments(t *testing.T) {
	graph, lexical, cleanup := newExpansionFixture(t,
		map[string][]RelatedDoc{
			"solas-ii2": {{ID: "fss-code", Title: "FSS Code", Relation: "INTERPRETS"}},
		},
		map[string]Passage{
			"FSS Code": {ID: "fss-p1", DocumentID: "fss-code", Text: "fire safety systems code"},
		})
	defer cleanup()

	e := NewGraphExpander(graph, lexical, ExpansionConfig{}, nil)
	candidates := []Candidate{seedCandidate("p1", "solas-ii2", 0.9)}

	out := e.Expand(context.Background(), candidates, 10)
	require.Len(t, out, 2)

	// 扩展候选带固定低分与独立信号标记
	added := out[1]
	assert.Equal(t, "fss-p1", added.Passage.ID)
	assert.Equal(t, []Signal{SignalGraphExpand}, added.Signals)
	assert.InDelta(t, 0.01, added.FusedScore, 1e-12)
	assert.InDelta(t, 0.01, added.FinalScore, 1e-12)

	// 原有候选原样保留
	assert.Equal(t, "p1", out[0].Passage.ID)
	assert.InDelta(t, 0.9, out[0].FinalScore, 1e-12)
}

func TestGraphExpander_SkipsDocumentsAlreadyInList(t *testing.T) {
	graph, lexical, cleanup := newExpansionFixture(t,
		map[string][]RelatedDoc{
			"solas-ii2": {
				{ID: "fss-code", Title: "FSS Code", Relation: "INTERPRETS"},
				{ID: "msc-1165", Title: "Circular 1165", Relation: "AMENDS"},
			},
		},
		map[string]Passage{
			"FSS Code":      {ID: "fss-p1", DocumentID: "fss-code", Text: "fss"},
			"Circular 1165": {ID: "msc-p1", DocumentID: "msc-1165", Text: "circ"},
		})
	defer cleanup()

	e := NewGraphExpander(graph, lexical, ExpansionConfig{}, nil)
	candidates := []Candidate{
		seedCandidate("p1", "solas-ii2", 0.9),
		seedCandidate("p2", "fss-code", 0.5), // 已在列表中的文档不重复补入
	}

	out := e.Expand(context.Background(), candidates, 10)
	require.Len(t, out, 3)
	assert.Equal(t, "msc-p1", out[2].Passage.ID)
}

func TestGraphExpander_RespectsMaxAdded(t *testing.T) {
	graph, lexical, cleanup := newExpansionFixture(t,
		map[string][]RelatedDoc{
			"src": {
				{ID: "d1", Title: "Alpha Doc", Relation: "INTERPRETS"},
				{ID: "d2", Title: "Beta Doc", Relation: "INTERPRETS"},
				{ID: "d3", Title: "Gamma Doc", Relation: "INTERPRETS"},
			},
		},
		map[string]Passage{
			"Alpha Doc": {ID: "a1", DocumentID: "d1", Text: "alpha"},
			"Beta Doc":  {ID: "b1", DocumentID: "d2", Text: "beta"},
			"Gamma Doc": {ID: "g1", DocumentID: "d3", Text: "gamma"},
		})
	defer cleanup()

	e := NewGraphExpander(graph, lexical, ExpansionConfig{MaxAdded: 2}, nil)
	out := e.Expand(context.Background(), []Candidate{seedCandidate("p1", "src", 0.9)}, 10)
	assert.Len(t, out, 3)
}

func TestGraphExpander_RespectsTopKBudget(t *testing.T) {
	graph, lexical, cleanup := newExpansionFixture(t,
		map[string][]RelatedDoc{
			"src": {{ID: "d1", Title: "Alpha Doc", Relation: "INTERPRETS"}},
		},
		map[string]Passage{
			"Alpha Doc": {ID: "a1", DocumentID: "d1", Text: "alpha"},
		})
	defer cleanup()

	e := NewGraphExpander(graph, lexical, ExpansionConfig{}, nil)

	// 候选已够 top-k 预算时不扩展
	candidates := []Candidate{
		seedCandidate("p1", "src", 0.9),
		seedCandidate("p2", "other", 0.8),
	}
	out := e.Expand(context.Background(), candidates, 2)
	assert.Len(t, out, 2)
}

func TestGraphExpander_GraphFailureKeepsList(t *testing.T) {
	graphSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer graphSrv.Close()
	lexSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"hits":{"hits":[]}}`))
	}))
	defer lexSrv.Close()

	graph := NewGraphBackend(GraphBackendConfig{BaseURL: graphSrv.URL}, nil)
	lexical := NewLexicalBackend(LexicalBackendConfig{BaseURL: lexSrv.URL}, nil)
	e := NewGraphExpander(graph, lexical, ExpansionConfig{}, nil)

	candidates := []Candidate{seedCandidate("p1", "src", 0.9)}
	out := e.Expand(context.Background(), candidates, 10)
	assert.Equal(t, candidates, out)
}

func TestGraphExpander_TitleMissKeepsList(t *testing.T) {
	graph, lexical, cleanup := newExpansionFixture(t,
		map[string][]RelatedDoc{
			"src": {{ID: "d1", Title: "Alpha Doc", Relation: "INTERPRETS"}},
		},
		map[string]Passage{}) // 全文索引查不到标题
	defer cleanup()

	e := NewGraphExpander(graph, lexical, ExpansionConfig{}, nil)
	candidates := []Candidate{seedCandidate("p1", "src", 0.9)}
	out := e.Expand(context.Background(), candidates, 10)
	assert.Len(t, out, 1)
}

func TestGraphExpander_NilDependenciesPassthrough(t *testing.T) {
	e := NewGraphExpander(nil, nil, ExpansionConfig{}, nil)
	candidates := []Candidate{seedCandidate("p1", "src", 0.9)}
	assert.Equal(t, candidates, e.Expand(context.Background(), candidates, 10))
}
