package api

import (
	"time"

	"github.com/harborai/helmsman/retrieval"
)

// =============================================================================
// 检索类型
// =============================================================================

// RetrieveRequest 代表一次检索请求。
// @Description 检索请求结构
type RetrieveRequest struct {
	// 用于请求跟踪的跟踪 ID
	TraceID string `json:"trace_id,omitempty" example:"trace-123"`
	// 自然语言查询
	Query string `json:"query" example:"客船需要配备多少救生衣" binding:"required"`
	// 结果预算基准, 缺省由服务端裁决, 仍受自适应放宽与上限约束
	TopK int `json:"top_k,omitempty" example:"10"`
	// 检索策略覆写: auto / hybrid / semantic / keyword, 缺省等价 auto
	Strategy string `json:"strategy,omitempty" example:"auto"`
	// 查询意图覆写, 缺省由服务端分类
	QueryIntent string `json:"query_intent,omitempty" example:"specification"`
	// 船型提示, 自由文本, 服务端归一化到固定类别集
	ShipType string `json:"ship_type,omitempty" example:"oil tanker"`
}

// RetrieveResponse 表示检索响应。
// @Description 检索响应结构
type RetrieveResponse struct {
	// 查询理解产物
	Query QueryView `json:"query"`
	// 排序后的候选列表
	Candidates []CandidateView `json:"candidates"`
	// 降级阶段列表, 空表示全链路正常
	Degraded []string `json:"degraded,omitempty"`
	// 是否直接命中结果缓存
	FromCache bool `json:"from_cache,omitempty"`
	// 耗时（毫秒）
	ElapsedMs int64 `json:"elapsed_ms" example:"42"`
}

// QueryView 是查询理解结果的响应视图。
// @Description 查询理解视图
type QueryView struct {
	// 原始查询
	Original string `json:"original" example:"客船需要配备多少救生衣"`
	// 增强后的查询（管道分段）
	Enhanced string `json:"enhanced,omitempty"`
	// 检索策略（semantic、keyword、hybrid）
	Strategy string `json:"strategy" example:"hybrid"`
	// 查询意图
	Intent string `json:"intent" example:"specification"`
	// 归一化船型类别
	ShipType string `json:"ship_type,omitempty" example:"passenger_ship_gt36"`
	// 有效结果预算
	TopK int `json:"top_k" example:"15"`
}

// CandidateView 是单个候选的响应视图。
// @Description 检索候选视图
type CandidateView struct {
	// Passage ID
	PassageID string `json:"passage_id" example:"solas-ii2-9-2-p14"`
	// 条款正文
	Text string `json:"text"`
	// 来源文档 ID
	DocumentID string `json:"document_id,omitempty" example:"solas"`
	// 面包屑、标题等自由元数据
	Metadata map[string]string `json:"metadata,omitempty"`
	// 贡献信号（vector、lexical、graph、graph_expand）
	Signals []string `json:"signals"`
	// RRF 融合分
	FusedScore float64 `json:"fused_score"`
	// 交叉编码重排分
	RerankScore float64 `json:"rerank_score,omitempty"`
	// 历史效用分
	UtilityScore float64 `json:"utility_score,omitempty"`
	// 最终排序分
	FinalScore float64 `json:"final_score"`
	// 适用性警告, 命中冲突条款时给出
	Warning string `json:"warning,omitempty"`
}

// NewRetrieveResponse 把引擎产出折算成响应视图。
func NewRetrieveResponse(result *retrieval.Result) RetrieveResponse {
	resp := RetrieveResponse{
		Query: QueryView{
			Original: result.Query.Original,
			Enhanced: result.Query.EnhancedQuery,
			Strategy: string(result.Query.Strategy),
			Intent:   string(result.Query.Intent),
			ShipType: string(result.Query.Ship.Type),
			TopK:     result.Query.TopK,
		},
		Candidates: make([]CandidateView, 0, len(result.Candidates)),
		Degraded:   result.Degraded,
		FromCache:  result.FromCache,
		ElapsedMs:  result.Elapsed.Milliseconds(),
	}

	for _, c := range result.Candidates {
		signals := make([]string, 0, len(c.Signals))
		for _, s := range c.Signals {
			signals = append(signals, string(s))
		}
		resp.Candidates = append(resp.Candidates, CandidateView{
			PassageID:    c.Passage.ID,
			Text:         c.Passage.Text,
			DocumentID:   c.Passage.DocumentID,
			Metadata:     c.Passage.Metadata,
			Signals:      signals,
			FusedScore:   c.FusedScore,
			RerankScore:  c.RerankScore,
			UtilityScore: c.UtilityScore,
			FinalScore:   c.FinalScore,
			Warning:      c.Warning,
		})
	}
	return resp
}

// =============================================================================
// 反馈类型
// =============================================================================

// FeedbackRequest 代表一条效用反馈。
// @Description 效用反馈请求结构
type FeedbackRequest struct {
	// 被反馈的 passage ID
	PassageID string `json:"passage_id" example:"solas-ii2-9-2-p14" binding:"required"`
	// 查询类别, 与检索时的意图对应, 缺省为 general
	Category string `json:"category,omitempty" example:"specification"`
	// 效用回报, 取值 [0, 1]: 1 表示条款被采用, 0 表示无用
	Reward float64 `json:"reward" example:"1.0"`
}

// FeedbackResponse 表示反馈受理结果。
// @Description 效用反馈响应结构
type FeedbackResponse struct {
	// 是否已受理（异步落库）
	Accepted bool `json:"accepted" example:"true"`
	// 受理时间戳
	AcceptedAt time.Time `json:"accepted_at"`
}
