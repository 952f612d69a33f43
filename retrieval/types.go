package retrieval

// Signal 标识候选passage来自哪一路检索信号.
type Signal string

const (
	SignalVector      Signal = "vector"       // 向量语义检索
	SignalLexical     Signal = "lexical"      // 全文关键词检索
	SignalGraph       Signal = "graph"        // 引用图谱检索
	SignalGraphExpand Signal = "graph_expand" // 图谱扩展补召回
)

// Strategy 表示一次查询选用的检索策略.
type Strategy string

const (
	StrategyAuto     Strategy = "auto"     // 由路由器决定
	StrategyHybrid   Strategy = "hybrid"   // 向量 + 全文 + 图谱
	StrategySemantic Strategy = "semantic" // 仅向量
	StrategyKeyword  Strategy = "keyword"  // 全文 + 图谱
)

// Intent 表示查询意图分类.
type Intent string

const (
	IntentApplicability Intent = "applicability" // 适用性: 某要求是否适用于某船
	IntentSpecification Intent = "specification" // 规格参数: 数量、尺寸、容量
	IntentProcedure     Intent = "procedure"     // 流程步骤
	IntentComparison    Intent = "comparison"    // 对比差异
	IntentDefinition    Intent = "definition"    // 术语定义
	IntentGeneral       Intent = "general"       // 默认兜底
)

// ShipType 归一化后的船舶类别, 与公约条款的适用范围表述对齐.
type ShipType string

const (
	ShipTanker        ShipType = "tanker"
	ShipPassengerGT36 ShipType = "passenger_ship_gt36"
	ShipPassengerLE36 ShipType = "passenger_ship_le36"
	ShipCargo         ShipType = "cargo_ship_non_tanker"
)

// Passage 是最小可检索单元, 由外部摄取管线写入各索引, 本引擎只读.
type Passage struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	EmbedText  string            `json:"embed_text,omitempty"` // 带上下文前缀的嵌入变体
	DocumentID string            `json:"document_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Meta 返回 metadata 中的值, 缺失时返回空串.
func (p Passage) Meta(key string) string {
	if p.Metadata == nil {
		return ""
	}
	return p.Metadata[key]
}

// Candidate 是一次查询期间为 passage 累积的检索出处信息.
// 每次查询新建, 不跨请求持久化.
type Candidate struct {
	Passage      Passage  `json:"passage"`
	Signals      []Signal `json:"signals"`
	FusedScore   float64  `json:"fused_score"`
	RerankScore  float64  `json:"rerank_score,omitempty"`
	UtilityScore float64  `json:"utility_score,omitempty"`
	FinalScore   float64  `json:"final_score"`
	Warning      string   `json:"warning,omitempty"`
}

// HasSignal 报告候选是否由指定信号贡献.
func (c *Candidate) HasSignal(s Signal) bool {
	for _, sig := range c.Signals {
		if sig == s {
			return true
		}
	}
	return false
}

func (c *Candidate) addSignal(s Signal) {
	if !c.HasSignal(s) {
		c.Signals = append(c.Signals, s)
	}
}

// ScoredPassage 是单一后端返回的带分结果.
type ScoredPassage struct {
	Passage Passage `json:"passage"`
	Score   float64 `json:"score"`
}

// Entities 是路由器从查询中抽取的结构化实体.
type Entities struct {
	DocumentFilter string `json:"document_filter,omitempty"` // 公约/规则缩写, 如 SOLAS
	Concept        string `json:"concept,omitempty"`         // 主题概念, 如 fire_protection
	RegulationRef  string `json:"regulation_ref,omitempty"`  // 原样捕获的条款引用
}

// ShipInfo 是分类器抽取的船舶数值信息.
type ShipInfo struct {
	Type         ShipType `json:"type,omitempty"`
	LengthMeters float64  `json:"length_meters,omitempty"`
	GrossTonnage float64  `json:"gross_tonnage,omitempty"`
}

// QueryContext 由原始查询派生, 贯穿整条检索管线.
// 不变式: EnhancedQuery 的第一个分段始终是原始查询原文,
// 保证下游全文打分对原文的匹配权重不被稀释.
type QueryContext struct {
	Original      string   `json:"original"`
	EnhancedQuery string   `json:"enhanced_query"`
	MatchedTerms  []string `json:"matched_terms,omitempty"`
	RegulationIDs []string `json:"regulation_ids,omitempty"`
	Entities      Entities `json:"entities"`
	Intent        Intent   `json:"intent"`
	Ship          ShipInfo `json:"ship"`
	Strategy      Strategy `json:"strategy"`
	TopK          int      `json:"top_k"` // 自适应放宽后的有效结果预算
}
