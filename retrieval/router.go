package retrieval

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// RouteDecision 是路由器对单条查询的裁决。
type RouteDecision struct {
	Strategy Strategy `json:"strategy"`
	Entities Entities `json:"entities"`
}

// QueryRouter 为查询选择检索策略并抽取结构化实体。
//
// 查询中出现结构化条款引用时走 keyword 策略并原样捕获引用,
// 其余一律 hybrid: 条款引用意味着用户要的是精确条文,
// 语义检索在这种查询上只会稀释排序。
type QueryRouter struct {
	logger *zap.Logger
}

// NewQueryRouter 创建查询路由器。
func NewQueryRouter(logger *zap.Logger) *QueryRouter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryRouter{logger: logger.With(zap.String("component", "query_router"))}
}

// citationPattern 匹配 "公约缩写 + 章/条标识" 形式的结构化引用,
// 覆盖中英文两种写法与 II-2/9.2 式的缩写编号。
var citationPattern = regexp.MustCompile(
	`(?i)(SOLAS|MARPOL|COLREG|STCW|LSA|FSS|IBC|IGC|ISM|ISPS|BWM)` +
		`[\s]*(?:公约|Code|Convention)?[\s]*` +
		`(第\s*[0-9IVX一二三四五六七八九十]+\s*[章条]` +
		`|Chapter\s+[IVX0-9]+` +
		`|Regulation\s+[0-9][0-9.\-]*` +
		`|Reg\.?\s*[0-9][0-9.\-]*` +
		`|[IVX]+(?:-[0-9]+)?/[0-9][0-9.\-]*)`)

// Route 返回查询的策略与实体。
func (r *QueryRouter) Route(query string) RouteDecision {
	decision := RouteDecision{Strategy: StrategyHybrid}

	if ref := strings.TrimSpace(citationPattern.FindString(query)); ref != "" {
		decision.Strategy = StrategyKeyword
		decision.Entities.RegulationRef = ref
	}

	lower := strings.ToLower(query)

	// 首个命中的公约缩写作为文档过滤器, 列表顺序即优先级
	for _, acronym := range conventionAcronyms {
		if strings.Contains(lower, strings.ToLower(acronym)) {
			decision.Entities.DocumentFilter = acronym
			break
		}
	}

	// 首个命中的主题概念
	for _, tc := range topicConcepts {
		if strings.Contains(lower, strings.ToLower(tc.keyword)) ||
			strings.Contains(query, tc.keyword) {
			decision.Entities.Concept = tc.concept
			break
		}
	}

	r.logger.Debug("query routed",
		zap.String("strategy", string(decision.Strategy)),
		zap.String("regulation_ref", decision.Entities.RegulationRef),
		zap.String("document_filter", decision.Entities.DocumentFilter))

	return decision
}
