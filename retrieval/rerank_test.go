package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborai/helmsman/rerankservice"
)

// fakeRerankProvider 记录最近一次请求并返回预置结果。
type fakeRerankProvider struct {
	lastReq *rerankservice.Request
	results []rerankservice.Result
	err     error
}

func (f *fakeRerankProvider) Name() string { return "fake" }

func (f *fakeRerankProvider) Rerank(_ context.Context, req *rerankservice.Request) (*rerankservice.Response, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &rerankservice.Response{Results: f.results}, nil
}

func candidateWithText(id, text string, meta map[string]string) Candidate {
	return Candidate{
		Passage:    Passage{ID: id, Text: text, Metadata: meta},
		FusedScore: 0.1,
		FinalScore: 0.1,
	}
}

func TestCrossEncoderReranker_ReplacesOrderWithServiceScores(t *testing.T) {
	svc := &fakeRerankProvider{results: []rerankservice.Result{
		{Index: 0, RelevanceScore: 0.2},
		{Index: 1, RelevanceScore: 0.9},
	}}
	r := NewCrossEncoderReranker(svc, CrossEncoderConfig{}, nil)

	q := &QueryContext{Original: "客船救生衣数量", EnhancedQuery: "客船救生衣数量 | lifejacket"}
	candidates := []Candidate{
		candidateWithText("p1", "first passage", nil),
		candidateWithText("p2", "second passage", nil),
	}

	out, err := r.Rerank(context.Background(), q, candidates)
	require.NoError(t, err)
	require.Len(t, out, 2)

	// 服务分替换融合顺序
	assert.Equal(t, "p2", out[0].Passage.ID)
	assert.InDelta(t, 0.9, out[0].RerankScore, 1e-12)
	assert.InDelta(t, 0.9, out[0].FinalScore, 1e-12)
	assert.Equal(t, "p1", out[1].Passage.ID)
	assert.InDelta(t, 0.2, out[1].FinalScore, 1e-12)

	// 送出的是原始查询, 不是带术语块的增强查询
	require.NotNil(t, svc.lastReq)
	assert.Equal(t, "客船救生衣数量", svc.lastReq.Query)
	assert.Equal(t, len(candidates), svc.lastReq.TopN)
}

func TestCrossEncoderReranker_ExcerptPrefix(t *testing.T) {
	svc := &fakeRerankProvider{}
	r := NewCrossEncoderReranker(svc, CrossEncoderConfig{}, nil)

	candidates := []Candidate{
		candidateWithText("p1", "passage body", map[string]string{
			"breadcrumb": "SOLAS > II-2 > Reg 9",
			"document":   "SOLAS",
		}),
		candidateWithText("p2", "another body", map[string]string{
			"document": "FSS Code",
		}),
		candidateWithText("p3", "bare body", nil),
	}

	_, err := r.Rerank(context.Background(), &QueryContext{Original: "q"}, candidates)
	require.NoError(t, err)
	require.NotNil(t, svc.lastReq)
	require.Len(t, svc.lastReq.Documents, 3)

	// 面包屑优先于文档名作为上下文前缀
	assert.Equal(t, "SOLAS > II-2 > Reg 9\npassage body", svc.lastReq.Documents[0])
	assert.Equal(t, "FSS Code\nanother body", svc.lastReq.Documents[1])
	assert.Equal(t, "bare body", svc.lastReq.Documents[2])
}

func TestCrossEncoderReranker_DomainAdjustmentOnApplicability(t *testing.T) {
	svc := &fakeRerankProvider{results: []rerankservice.Result{
		{Index: 0, RelevanceScore: 0.8},
		{Index: 1, RelevanceScore: 0.8},
		{Index: 2, RelevanceScore: 0.8},
	}}
	r := NewCrossEncoderReranker(svc, CrossEncoderConfig{}, nil)

	q := &QueryContext{Original: "灭火器要求", Intent: IntentApplicability}
	candidates := []Candidate{
		candidateWithText("config", "每层甲板应配备两具手提式灭火器", nil),
		candidateWithText("spec", "手提式灭火器的型式认可与性能标准", nil),
		candidateWithText("both", "应配备经型式认可的灭火器", nil),
	}

	out, err := r.Rerank(context.Background(), q, candidates)
	require.NoError(t, err)
	require.Len(t, out, 3)

	// 配备要求类加权, 纯规格类降权, 双重命中不动
	assert.Equal(t, "config", out[0].Passage.ID)
	assert.InDelta(t, 1.0, out[0].FinalScore, 1e-12)
	assert.Equal(t, "both", out[1].Passage.ID)
	assert.InDelta(t, 0.8, out[1].FinalScore, 1e-12)
	assert.Equal(t, "spec", out[2].Passage.ID)
	assert.InDelta(t, 0.6, out[2].FinalScore, 1e-12)
}

func TestCrossEncoderReranker_NoAdjustmentForGeneralQuery(t *testing.T) {
	svc := &fakeRerankProvider{results: []rerankservice.Result{
		{Index: 0, RelevanceScore: 0.8},
	}}
	r := NewCrossEncoderReranker(svc, CrossEncoderConfig{}, nil)

	q := &QueryContext{Original: "灭火器的工作原理", Intent: IntentGeneral}
	out, err := r.Rerank(context.Background(), q, []Candidate{
		candidateWithText("config", "每层甲板应配备两具手提式灭火器", nil),
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, out[0].FinalScore, 1e-12)
}

func TestCrossEncoderReranker_QueryPatternTriggersAdjustment(t *testing.T) {
	svc := &fakeRerankProvider{results: []rerankservice.Result{
		{Index: 0, RelevanceScore: 0.8},
	}}
	r := NewCrossEncoderReranker(svc, CrossEncoderConfig{}, nil)

	// 意图分类缺席时按问法特征兜底
	q := &QueryContext{Original: "货船是否需要配备救生筏", Intent: IntentGeneral}
	out, err := r.Rerank(context.Background(), q, []Candidate{
		candidateWithText("config", "货船应配备不少于一艘救生筏", nil),
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, out[0].FinalScore, 1e-12)
}

func TestCrossEncoderReranker_ServiceError(t *testing.T) {
	svc := &fakeRerankProvider{err: errors.New("upstream unavailable")}
	r := NewCrossEncoderReranker(svc, CrossEncoderConfig{}, nil)

	_, err := r.Rerank(context.Background(), &QueryContext{Original: "q"}, []Candidate{
		candidateWithText("p1", "text", nil),
	})
	assert.Error(t, err)
}

func TestCrossEncoderReranker_IgnoresOutOfRangeIndex(t *testing.T) {
	svc := &fakeRerankProvider{results: []rerankservice.Result{
		{Index: 0, RelevanceScore: 0.4},
		{Index: 7, RelevanceScore: 0.9},
		{Index: -1, RelevanceScore: 0.9},
	}}
	r := NewCrossEncoderReranker(svc, CrossEncoderConfig{}, nil)

	out, err := r.Rerank(context.Background(), &QueryContext{Original: "q"}, []Candidate{
		candidateWithText("p1", "text", nil),
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.InDelta(t, 0.4, out[0].FinalScore, 1e-12)
}

func TestCrossEncoderReranker_EmptyCandidates(t *testing.T) {
	svc := &fakeRerankProvider{}
	r := NewCrossEncoderReranker(svc, CrossEncoderConfig{}, nil)

	out, err := r.Rerank(context.Background(), &QueryContext{Original: "q"}, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Nil(t, svc.lastReq)
}

// fakeUtilityReader 记录请求类别并返回预置效用分。
type fakeUtilityReader struct {
	utilities    map[string]float64
	err          error
	lastCategory string
}

func (f *fakeUtilityReader) GetUtilities(_ context.Context, _ []string, category string) (map[string]float64, error) {
	f.lastCategory = category
	if f.err != nil {
		return nil, f.err
	}
	return f.utilities, nil
}

func TestUtilityReranker_BlendsNormalizedScoreWithUtility(t *testing.T) {
	reader := &fakeUtilityReader{utilities: map[string]float64{
		"p1": 0.8,
		"p2": 0.2,
	}}
	r := NewUtilityReranker(reader, UtilityConfig{Alpha: 0.3}, nil)

	q := &QueryContext{Original: "q", Intent: IntentSpecification}
	out, err := r.Rerank(context.Background(), q, []Candidate{
		{Passage: Passage{ID: "p1"}, FinalScore: 2.0},
		{Passage: Passage{ID: "p2"}, FinalScore: 1.0},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)

	// final = 0.7*norm + 0.3*utility, norm 按最大分归一
	assert.Equal(t, "p1", out[0].Passage.ID)
	assert.InDelta(t, 0.94, out[0].FinalScore, 1e-12)
	assert.InDelta(t, 0.8, out[0].UtilityScore, 1e-12)
	assert.Equal(t, "p2", out[1].Passage.ID)
	assert.InDelta(t, 0.41, out[1].FinalScore, 1e-12)

	// 查询类别取意图
	assert.Equal(t, string(IntentSpecification), reader.lastCategory)
}

func TestUtilityReranker_MissingUtilityIsNeutral(t *testing.T) {
	reader := &fakeUtilityReader{utilities: map[string]float64{}}
	r := NewUtilityReranker(reader, UtilityConfig{Alpha: 0.3}, nil)

	out, err := r.Rerank(context.Background(), &QueryContext{Intent: IntentGeneral}, []Candidate{
		{Passage: Passage{ID: "p1"}, FinalScore: 2.0},
		{Passage: Passage{ID: "p2"}, FinalScore: 1.0},
	})
	require.NoError(t, err)

	// 冷段落统一按 0.5 中性效用处理
	assert.InDelta(t, 0.85, out[0].FinalScore, 1e-12)
	assert.InDelta(t, 0.5, out[0].UtilityScore, 1e-12)
	assert.InDelta(t, 0.5, out[1].FinalScore, 1e-12)
}

func TestUtilityReranker_ReaderErrorKeepsOrder(t *testing.T) {
	reader := &fakeUtilityReader{err: errors.New("store down")}
	r := NewUtilityReranker(reader, UtilityConfig{Alpha: 0.3}, nil)

	out, err := r.Rerank(context.Background(), &QueryContext{Intent: IntentGeneral}, []Candidate{
		{Passage: Passage{ID: "p1"}, FinalScore: 1.0},
		{Passage: Passage{ID: "p2"}, FinalScore: 0.9},
	})

	// 效用库不可用不报错, 全员中性等价于不重排
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "p1", out[0].Passage.ID)
	assert.Equal(t, "p2", out[1].Passage.ID)
	assert.InDelta(t, 0.85, out[0].FinalScore, 1e-12)
	assert.InDelta(t, 0.78, out[1].FinalScore, 1e-12)
}

func TestUtilityReranker_UtilityCanReorder(t *testing.T) {
	reader := &fakeUtilityReader{utilities: map[string]float64{
		"p1": 0.0,
		"p2": 1.0,
	}}
	r := NewUtilityReranker(reader, UtilityConfig{Alpha: 0.3}, nil)

	out, err := r.Rerank(context.Background(), &QueryContext{Intent: IntentGeneral}, []Candidate{
		{Passage: Passage{ID: "p1"}, FinalScore: 1.0},
		{Passage: Passage{ID: "p2"}, FinalScore: 0.9},
	})
	require.NoError(t, err)

	// 0.7*0.9+0.3 = 0.93 反超 0.7*1.0 = 0.70
	assert.Equal(t, "p2", out[0].Passage.ID)
	assert.InDelta(t, 0.93, out[0].FinalScore, 1e-12)
	assert.Equal(t, "p1", out[1].Passage.ID)
	assert.InDelta(t, 0.70, out[1].FinalScore, 1e-12)
}

func TestUtilityReranker_ZeroMaxScore(t *testing.T) {
	reader := &fakeUtilityReader{utilities: map[string]float64{"p1": 0.6}}
	r := NewUtilityReranker(reader, UtilityConfig{Alpha: 0.3}, nil)

	out, err := r.Rerank(context.Background(), &QueryContext{Intent: IntentGeneral}, []Candidate{
		{Passage: Passage{ID: "p1"}, FinalScore: 0},
	})
	require.NoError(t, err)

	// 最大分为零时归一化分取零, 只剩效用项
	assert.InDelta(t, 0.3*0.6, out[0].FinalScore, 1e-12)
}
