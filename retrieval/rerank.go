package retrieval

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/harborai/helmsman/rerankservice"
)

// Reranker 是可插拔的重排阶段。级联中的每一级都可以整体重排候选列表,
// 某一级失败时引擎保留上一级的顺序继续, 不中断查询。
type Reranker interface {
	// Name 返回阶段名称, 用于日志与指标
	Name() string

	// Rerank 重排候选列表
	Rerank(ctx context.Context, q *QueryContext, candidates []Candidate) ([]Candidate, error)
}

// ====== 交叉编码重排 ======

// CrossEncoderConfig 配置交叉编码重排阶段。
type CrossEncoderConfig struct {
	// 送往重排服务的文本摘录 token 窗口
	ExcerptTokens int `yaml:"excerpt_tokens" json:"excerpt_tokens"`
	// tiktoken 编码名
	Encoding string `yaml:"encoding" json:"encoding"`
	// 配置要求类段落的加权系数
	DomainBoost float64 `yaml:"domain_boost" json:"domain_boost"`
	// 设备规格类段落的降权系数
	DomainPenalty float64 `yaml:"domain_penalty" json:"domain_penalty"`
	// 单次重排调用超时
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultCrossEncoderConfig 返回默认交叉编码配置。
// 1.25/0.75 是调出来的系数, 暴露为配置默认值而非协议常量。
func DefaultCrossEncoderConfig() CrossEncoderConfig {
	return CrossEncoderConfig{
		ExcerptTokens: 384,
		Encoding:      "cl100k_base",
		DomainBoost:   1.25,
		DomainPenalty: 0.75,
		Timeout:       10 * time.Second,
	}
}

var (
	// 配置/配备要求类条文特征
	configRequirementPattern = regexp.MustCompile(
		`(?i)(应配备|须配备|应设置|应装设|应备有|不少于|不得少于|至少|每.{0,6}应` +
			`|shall be (?:provided|fitted|carried|equipped)` +
			`|shall carry|must carry|required to carry|at least one)`)

	// 设备技术规格类条文特征
	equipmentSpecPattern = regexp.MustCompile(
		`(?i)(技术规格|型式认可|性能标准|试验标准|材料要求|制造要求` +
			`|type[- ]approved|technical specification|performance standard` +
			`|test(?:ing)? standard|material requirement)`)

	// 查询侧的适用性问法特征, 意图分类缺席时兜底
	applicabilityQueryPattern = regexp.MustCompile(
		`(?i)(是否需要|需要配备|要不要|适用于?|do i need|required for|applicable)`)
)

// CrossEncoderReranker 调用外部交叉编码服务重排候选,
// 并对适用性问题做领域后调: 适用性问题要的是 "必须配什么",
// 命中配备要求特征的段落加权, 纯设备规格段落降权。
type CrossEncoderReranker struct {
	svc     rerankservice.Provider
	cfg     CrossEncoderConfig
	encoder *tiktoken.Tiktoken
	logger  *zap.Logger
}

// NewCrossEncoderReranker 创建交叉编码重排阶段。
// tiktoken 编码加载失败时回退到按字符截断, 不算致命错误。
func NewCrossEncoderReranker(svc rerankservice.Provider, cfg CrossEncoderConfig, logger *zap.Logger) *CrossEncoderReranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultCrossEncoderConfig()
	if cfg.ExcerptTokens <= 0 {
		cfg.ExcerptTokens = def.ExcerptTokens
	}
	if cfg.Encoding == "" {
		cfg.Encoding = def.Encoding
	}
	if cfg.DomainBoost <= 0 {
		cfg.DomainBoost = def.DomainBoost
	}
	if cfg.DomainPenalty <= 0 {
		cfg.DomainPenalty = def.DomainPenalty
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	encoder, err := tiktoken.GetEncoding(cfg.Encoding)
	if err != nil {
		logger.Warn("tiktoken encoding unavailable, falling back to rune truncation",
			zap.String("encoding", cfg.Encoding), zap.Error(err))
		encoder = nil
	}

	return &CrossEncoderReranker{
		svc:     svc,
		cfg:     cfg,
		encoder: encoder,
		logger:  logger.With(zap.String("component", "cross_encoder_reranker")),
	}
}

func (r *CrossEncoderReranker) Name() string { return "cross_encoder" }

// Rerank 用服务返回的相关性分替换融合顺序, 再做领域后调。
// 送出的是原始查询与带面包屑前缀的窗口摘录, 不是增强查询:
// 交叉编码器对注入的条款编号串很敏感, 会错把术语块当正文匹配。
func (r *CrossEncoderReranker) Rerank(ctx context.Context, q *QueryContext, candidates []Candidate) ([]Candidate, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	docs := make([]string, len(candidates))
	for i := range candidates {
		docs[i] = r.excerpt(candidates[i].Passage)
	}

	resp, err := r.svc.Rerank(callCtx, &rerankservice.Request{
		Query:     q.Original,
		Documents: docs,
		TopN:      len(docs),
	})
	if err != nil {
		return nil, fmt.Errorf("rerank service: %w", err)
	}

	for _, res := range resp.Results {
		if res.Index < 0 || res.Index >= len(candidates) {
			continue
		}
		candidates[res.Index].RerankScore = res.RelevanceScore
		candidates[res.Index].FinalScore = res.RelevanceScore
	}

	if r.isApplicabilityQuery(q) {
		r.applyDomainAdjustment(candidates)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].FinalScore > candidates[j].FinalScore
	})

	r.logger.Debug("cross-encoder rerank completed", zap.Int("candidates", len(candidates)))
	return candidates, nil
}

// excerpt 生成带面包屑/标题前缀的 token 窗口摘录。
func (r *CrossEncoderReranker) excerpt(p Passage) string {
	prefix := p.Meta("breadcrumb")
	if prefix == "" {
		prefix = p.Meta("document")
	}

	text := p.Text
	if r.encoder != nil {
		tokens := r.encoder.Encode(text, nil, nil)
		if len(tokens) > r.cfg.ExcerptTokens {
			text = r.encoder.Decode(tokens[:r.cfg.ExcerptTokens])
		}
	} else {
		runes := []rune(text)
		if limit := r.cfg.ExcerptTokens * 2; len(runes) > limit {
			text = string(runes[:limit])
		}
	}

	if prefix == "" {
		return text
	}
	return prefix + "\n" + text
}

func (r *CrossEncoderReranker) isApplicabilityQuery(q *QueryContext) bool {
	return q.Intent == IntentApplicability || applicabilityQueryPattern.MatchString(q.Original)
}

// applyDomainAdjustment 只在适用性问题上生效:
// 命中配备要求特征且不含设备规格特征的段落乘 DomainBoost,
// 反之乘 DomainPenalty, 两类特征同时命中的段落不动。
func (r *CrossEncoderReranker) applyDomainAdjustment(candidates []Candidate) {
	for i := range candidates {
		text := candidates[i].Passage.Text
		isConfig := configRequirementPattern.MatchString(text)
		isSpec := equipmentSpecPattern.MatchString(text)

		switch {
		case isConfig && !isSpec:
			candidates[i].FinalScore *= r.cfg.DomainBoost
		case isSpec && !isConfig:
			candidates[i].FinalScore *= r.cfg.DomainPenalty
		}
	}
}

// ====== 效用感知重排 ======

// UtilityReader 批量读取 (passage, 查询类别) 维度的历史效用分。
// store 包的 Store 是生产实现。
type UtilityReader interface {
	GetUtilities(ctx context.Context, passageIDs []string, category string) (map[string]float64, error)
}

// UtilityConfig 配置效用感知重排阶段。
type UtilityConfig struct {
	// 效用分权重 alpha, final = (1-alpha)*norm + alpha*utility。
	// 冷启动阶段效用数据稀疏, 默认取低值。
	Alpha float64 `yaml:"alpha" json:"alpha"`
	// 批量读取超时
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultUtilityConfig 返回默认效用重排配置。
func DefaultUtilityConfig() UtilityConfig {
	return UtilityConfig{
		Alpha:   0.3,
		Timeout: 3 * time.Second,
	}
}

// neutralUtility 是无效用记录 passage 的默认效用:
// 0.5 让冷段落在首轮曝光时既不占优也不吃亏。
const neutralUtility = 0.5

// UtilityReranker 把持久化的效用分混入当前排序分。
// 效用库不可用时整体按中性效用处理, 等价于不重排。
type UtilityReranker struct {
	reader UtilityReader
	cfg    UtilityConfig
	logger *zap.Logger
}

// NewUtilityReranker 创建效用感知重排阶段。
func NewUtilityReranker(reader UtilityReader, cfg UtilityConfig, logger *zap.Logger) *UtilityReranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultUtilityConfig()
	if cfg.Alpha <= 0 || cfg.Alpha >= 1 {
		cfg.Alpha = def.Alpha
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &UtilityReranker{
		reader: reader,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "utility_reranker")),
	}
}

func (r *UtilityReranker) Name() string { return "utility" }

// Rerank 按当前候选集最大分归一化排序分, 与效用分线性混合后重排。
func (r *UtilityReranker) Rerank(ctx context.Context, q *QueryContext, candidates []Candidate) ([]Candidate, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	ids := make([]string, len(candidates))
	for i := range candidates {
		ids[i] = candidates[i].Passage.ID
	}

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	category := string(q.Intent)
	utilities, err := r.reader.GetUtilities(callCtx, ids, category)
	if err != nil {
		// 效用库不可用按全员中性处理, 保持原排序继续
		r.logger.Warn("utility store unavailable, treating all candidates as neutral",
			zap.Error(err))
		utilities = nil
	}

	maxScore := 0.0
	for i := range candidates {
		if candidates[i].FinalScore > maxScore {
			maxScore = candidates[i].FinalScore
		}
	}

	for i := range candidates {
		norm := 0.0
		if maxScore > 0 {
			norm = candidates[i].FinalScore / maxScore
		}

		utility := neutralUtility
		if u, ok := utilities[candidates[i].Passage.ID]; ok {
			utility = u
		}

		candidates[i].UtilityScore = utility
		candidates[i].FinalScore = (1-r.cfg.Alpha)*norm + r.cfg.Alpha*utility
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].FinalScore > candidates[j].FinalScore
	})

	return candidates, nil
}
