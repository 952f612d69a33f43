package retrieval

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// EnhancerConfig 配置查询增强器。
type EnhancerConfig struct {
	// 单次查询注入的规范术语上限
	MaxTerms int `yaml:"max_terms" json:"max_terms"`
	// 单次查询注入的条款编号上限
	MaxRegulations int `yaml:"max_regulations" json:"max_regulations"`
}

// DefaultEnhancerConfig 返回默认增强器配置。
func DefaultEnhancerConfig() EnhancerConfig {
	return EnhancerConfig{
		MaxTerms:       12,
		MaxRegulations: 16,
	}
}

// QueryEnhancer 对原始查询做术语扩展与条款注入。
//
// 输出由三段拼接: 原始查询原文、去重后的规范术语块、条款编号块,
// 段间以 " | " 分隔, 空段省略, 段序固定。第一段永远是原文,
// 下游全文打分因此始终把原文当作最高权重文本。
type QueryEnhancer struct {
	cfg    EnhancerConfig
	logger *zap.Logger

	// 最近一次匹配结果, 供上层拼装 LLM 上下文时查看
	mu              sync.RWMutex
	lastTerms       []string
	lastRegulations []string
}

// NewQueryEnhancer 创建查询增强器。
func NewQueryEnhancer(cfg EnhancerConfig, logger *zap.Logger) *QueryEnhancer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxTerms <= 0 {
		cfg.MaxTerms = DefaultEnhancerConfig().MaxTerms
	}
	if cfg.MaxRegulations <= 0 {
		cfg.MaxRegulations = DefaultEnhancerConfig().MaxRegulations
	}
	return &QueryEnhancer{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "query_enhancer")),
	}
}

var (
	lengthPattern  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:米|m\b|meter|metre)`)
	tonnagePattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:总吨|gt\b|gross tonnage|gross tons?)`)
)

// Enhance 返回增强查询、命中的规范术语与相关条款编号。
// 查询无任何可解析内容不是错误, 此时增强结果就是原文本身。
func (e *QueryEnhancer) Enhance(query string) (string, []string, []string) {
	lower := strings.ToLower(query)

	terms := newOrderedSet(e.cfg.MaxTerms)
	regs := newOrderedSet(e.cfg.MaxRegulations)

	// 1. 术语词典子串匹配, 按键的字典序遍历保证输出顺序稳定
	for _, colloquial := range termDictionaryKeys {
		if !containsFold(query, lower, colloquial) {
			continue
		}
		for _, t := range termDictionary[colloquial] {
			terms.add(t)
		}
	}

	// 2. 术语到主题条款
	for _, t := range terms.values() {
		for _, id := range topicRegulations[t] {
			regs.add(id)
		}
	}

	// 3. 数值阈值启发: 船长/总吨触发尺度门槛条款
	if meters, ok := firstNumber(lengthPattern, lower); ok {
		for _, gate := range lengthGates {
			if meters >= gate.minMeters {
				for _, id := range gate.ids {
					regs.add(id)
				}
			}
		}
	}
	if tons, ok := firstNumber(tonnagePattern, lower); ok {
		for _, gate := range tonnageGates {
			if tons >= gate.minMeters {
				for _, id := range gate.ids {
					regs.add(id)
				}
			}
		}
	}

	// 4. 防火分隔主题: 按船型补充耐火分隔表引用。
	// 查询未指明船型时每个船型默认表都注入, 让后续过滤阶段裁决。
	if e.hasFireFamilyTerm(terms.values()) {
		if st, ok := ExtractShipType(query); ok {
			for _, ref := range fireTableRefs[st] {
				regs.add(ref)
			}
		} else {
			for _, st := range []ShipType{ShipPassengerGT36, ShipPassengerLE36, ShipCargo, ShipTanker} {
				for _, ref := range fireTableRefs[st] {
					regs.add(ref)
				}
			}
		}
	}

	// 5. 两舷布置组合词: 单术语查表得不到, 需要在这里拼出来
	if containsAny(lower, bilateralPhrases) {
		for _, t := range terms.values() {
			terms.add(t + " on each side")
		}
	}

	enhanced := query
	if ts := terms.values(); len(ts) > 0 {
		enhanced += " | " + strings.Join(ts, " | ")
	}
	if rs := regs.values(); len(rs) > 0 {
		enhanced += " | " + strings.Join(rs, " | ")
	}

	e.mu.Lock()
	e.lastTerms = terms.values()
	e.lastRegulations = regs.values()
	e.mu.Unlock()

	if terms.len() > 0 || regs.len() > 0 {
		e.logger.Debug("query enhanced",
			zap.Int("terms", terms.len()),
			zap.Int("regulations", regs.len()))
	}

	return enhanced, terms.values(), regs.values()
}

// LastMatches 返回最近一次 Enhance 的术语与条款集合。
func (e *QueryEnhancer) LastMatches() (terms, regulations []string) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.lastTerms...), append([]string(nil), e.lastRegulations...)
}

func (e *QueryEnhancer) hasFireFamilyTerm(terms []string) bool {
	for _, t := range terms {
		if fireFamilyTerms[t] {
			return true
		}
	}
	return false
}

// ExtractShipType 从查询文本中识别船型类别。
// 关键词组按优先级顺序检查: 油轮词汇最先, 因为部分词汇有歧义,
// 先判的类别必须获胜; 货船词汇只在前两组都未命中时兜底。
func ExtractShipType(query string) (ShipType, bool) {
	lower := strings.ToLower(query)
	for _, group := range shipTypeKeywords {
		if !containsAny(lower, group.keywords) {
			continue
		}
		st := group.shipType
		if st == ShipPassengerGT36 && containsAny(lower, lePassengerMarkers) {
			st = ShipPassengerLE36
		}
		return st, true
	}
	return "", false
}

// ====== 辅助 ======

// orderedSet 保持插入顺序的去重集合, 带容量上限。
type orderedSet struct {
	seen  map[string]bool
	items []string
	max   int
}

func newOrderedSet(max int) *orderedSet {
	return &orderedSet{seen: make(map[string]bool), max: max}
}

func (s *orderedSet) add(v string) {
	if v == "" || s.seen[v] || len(s.items) >= s.max {
		return
	}
	s.seen[v] = true
	s.items = append(s.items, v)
}

func (s *orderedSet) values() []string { return s.items }
func (s *orderedSet) len() int         { return len(s.items) }

// containsFold 对英文词条做小写匹配, 中文词条原样匹配。
func containsFold(original, lower, needle string) bool {
	if needle == "" {
		return false
	}
	if needle[0] < 0x80 {
		return strings.Contains(lower, strings.ToLower(needle))
	}
	return strings.Contains(original, needle)
}

func containsAny(lower string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

func firstNumber(re *regexp.Regexp, text string) (float64, bool) {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
