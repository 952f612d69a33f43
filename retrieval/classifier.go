package retrieval

import (
	"strings"

	"go.uber.org/zap"
)

// Classification 是意图分类器的输出。
type Classification struct {
	Intent   Intent   `json:"intent"`
	Ship     ShipInfo `json:"ship"`
	Strategy Strategy `json:"retrieval_strategy"`
	TopK     int      `json:"top_k"`
}

// ClassifierConfig 配置意图分类器。
type ClassifierConfig struct {
	// 基准结果预算
	BaseTopK int `yaml:"base_top_k" json:"base_top_k"`
	// 自适应放宽后的上限
	MaxTopK int `yaml:"max_top_k" json:"max_top_k"`
}

// DefaultClassifierConfig 返回默认分类器配置。
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		BaseTopK: 10,
		MaxTopK:  25,
	}
}

// IntentClassifier 按触发词命中次数为五类意图打分。
// 平分时保留先出现的最高分意图, 无命中时回退 general。
type IntentClassifier struct {
	cfg    ClassifierConfig
	logger *zap.Logger
}

// NewIntentClassifier 创建意图分类器。
func NewIntentClassifier(cfg ClassifierConfig, logger *zap.Logger) *IntentClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultClassifierConfig()
	if cfg.BaseTopK <= 0 {
		cfg.BaseTopK = def.BaseTopK
	}
	if cfg.MaxTopK < cfg.BaseTopK {
		cfg.MaxTopK = def.MaxTopK
	}
	return &IntentClassifier{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "intent_classifier")),
	}
}

// Classify 返回查询的意图、船舶信息与建议结果预算。
func (c *IntentClassifier) Classify(query string) Classification {
	lower := strings.ToLower(query)

	result := Classification{
		Intent:   IntentGeneral,
		Strategy: StrategyHybrid,
		TopK:     c.cfg.BaseTopK,
	}

	best := 0
	for _, group := range intentTriggers {
		hits := 0
		for _, trigger := range group.triggers {
			if strings.Contains(lower, strings.ToLower(trigger)) {
				hits++
			}
		}
		// 严格大于: 平分时先出现的意图保持胜出
		if hits > best {
			best = hits
			result.Intent = group.intent
		}
	}

	if st, ok := ExtractShipType(query); ok {
		result.Ship.Type = st
	}
	if meters, ok := firstNumber(lengthPattern, lower); ok {
		result.Ship.LengthMeters = meters
	}
	if tons, ok := firstNumber(tonnagePattern, lower); ok {
		result.Ship.GrossTonnage = tons
	}

	// 船舶尺度数值与要求类动词同现时强制提升为 applicability:
	// "500总吨的船需要配备VDR吗" 这类尺度门槛问法最常见,
	// 纯词面打分会把它归到 specification。
	if (result.Ship.LengthMeters > 0 || result.Ship.GrossTonnage > 0) &&
		containsAny(lower, requirementVerbs) {
		result.Intent = IntentApplicability
	}

	result.TopK = c.EffectiveTopK(c.cfg.BaseTopK, query, result.Intent)

	c.logger.Debug("query classified",
		zap.String("intent", string(result.Intent)),
		zap.String("ship_type", string(result.Ship.Type)),
		zap.Int("top_k", result.TopK))

	return result
}

// EffectiveTopK 计算自适应结果预算。
// 查询涉及多个公约族或包含数值/适用性模式时加宽预算:
// 这类问题的答案往往散落在多份文件里, 基准预算容易截掉正确段落。
func (c *IntentClassifier) EffectiveTopK(base int, query string, intent Intent) int {
	if base <= 0 {
		base = c.cfg.BaseTopK
	}
	k := base

	lower := strings.ToLower(query)
	families := 0
	for _, acronym := range conventionAcronyms {
		if strings.Contains(lower, strings.ToLower(acronym)) {
			families++
		}
	}
	if families >= 2 {
		k += 5
	}

	hasNumeric := lengthPattern.MatchString(lower) || tonnagePattern.MatchString(lower)
	if hasNumeric || intent == IntentApplicability {
		k += 5
	}

	if k > c.cfg.MaxTopK {
		k = c.cfg.MaxTopK
	}
	return k
}
