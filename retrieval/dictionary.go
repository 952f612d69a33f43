package retrieval

import "sort"

// 本文件集中存放进程级只读词表: 双语术语映射、主题条款映射、
// 船型关键词组与来源权威度表。全部在包初始化时构建, 运行期只读,
// 并发读取无需加锁。

// termDictionary 把口语/俗称映射到公约使用的规范术语。
// 匹配方式是查询子串精确匹配, 键按原样保留大小写敏感的中文与小写英文。
var termDictionary = map[string][]string{
	// 消防
	"防火分隔":      {"fire integrity", "fire division", "A class division"},
	"防火等级":      {"fire integrity", "fire division"},
	"耐火分隔":      {"fire integrity", "A class division"},
	"灭火器":       {"portable fire extinguisher", "fire extinguishing appliance"},
	"消防水带":      {"fire hose", "fire main"},
	"fire wall": {"fire division", "A class division"},
	// 救生
	"救生衣":       {"lifejacket"},
	"救生圈":       {"lifebuoy"},
	"救生艇":       {"lifeboat", "survival craft"},
	"救生筏":       {"liferaft", "survival craft"},
	"life vest": {"lifejacket"},
	// 防污染
	"排油":   {"discharge of oil", "oily mixture"},
	"排污":   {"discharge of oil", "sewage discharge"},
	"压载水":  {"ballast water management", "ballast water exchange"},
	"洗舱水":  {"tank washing", "slop tank"},
	"生活污水": {"sewage discharge"},
	// 构造与脱险
	"逃生通道": {"means of escape", "escape route"},
	"双层底":  {"double bottom"},
	"双壳":   {"double hull"},
	// 航行设备
	"航行灯":  {"navigation lights"},
	"雷达":   {"radar installation"},
	"无线电":  {"radio installation", "GMDSS"},
	"甚高频":  {"VHF radio installation"},
	"黑匣子":  {"voyage data recorder"},
	"识别系统": {"automatic identification system"},
}

// termDictionaryKeys 是 termDictionary 键的字典序快照。
// 增强器按它遍历词典, 同一查询的多次增强产出完全一致的分段顺序,
// 截断上限生效时保留的术语集合也因此稳定。
var termDictionaryKeys = func() []string {
	keys := make([]string, 0, len(termDictionary))
	for k := range termDictionary {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}()

// topicRegulations 把规范术语映射到主题级条款编号。
var topicRegulations = map[string][]string{
	"fire integrity":                  {"SOLAS II-2/9", "SOLAS II-2/9.2.2", "FSS Code 7"},
	"fire division":                   {"SOLAS II-2/9", "SOLAS II-2/3.2"},
	"A class division":                {"SOLAS II-2/3.2", "SOLAS II-2/9.2.3"},
	"portable fire extinguisher":      {"SOLAS II-2/10.3", "FSS Code 4"},
	"fire extinguishing appliance":    {"SOLAS II-2/10", "FSS Code 5"},
	"fire hose":                       {"SOLAS II-2/10.2", "FSS Code 12"},
	"fire main":                       {"SOLAS II-2/10.2"},
	"lifejacket":                      {"SOLAS III/7.2", "SOLAS III/22", "LSA Code 2.2"},
	"lifebuoy":                        {"SOLAS III/7.1", "LSA Code 2.1"},
	"lifeboat":                        {"SOLAS III/21", "SOLAS III/31", "LSA Code 4.4"},
	"liferaft":                        {"SOLAS III/21", "SOLAS III/31", "LSA Code 4.1"},
	"survival craft":                  {"SOLAS III/21", "SOLAS III/31"},
	"discharge of oil":                {"MARPOL I/15", "MARPOL I/34"},
	"oily mixture":                    {"MARPOL I/15", "MARPOL I/16"},
	"sewage discharge":                {"MARPOL IV/11"},
	"ballast water management":        {"BWM B-3", "BWM D-1", "BWM D-2"},
	"ballast water exchange":          {"BWM B-4", "BWM D-1"},
	"tank washing":                    {"MARPOL I/35"},
	"slop tank":                       {"MARPOL I/29"},
	"means of escape":                 {"SOLAS II-2/13", "FSS Code 13"},
	"escape route":                    {"SOLAS II-2/13"},
	"double bottom":                   {"SOLAS II-1/9", "MARPOL I/19"},
	"double hull":                     {"MARPOL I/19", "MARPOL I/20"},
	"navigation lights":               {"COLREG 1972 Part C", "SOLAS V/19"},
	"radar installation":              {"SOLAS V/19.2.3"},
	"radio installation":              {"SOLAS IV/7", "SOLAS IV/12"},
	"GMDSS":                           {"SOLAS IV/7", "SOLAS IV/8", "SOLAS IV/9"},
	"VHF radio installation":          {"SOLAS IV/7.1.1"},
	"voyage data recorder":            {"SOLAS V/20"},
	"automatic identification system": {"SOLAS V/19.2.4"},
}

// fireFamilyTerms 标记属于防火分隔主题的术语, 命中后需要按船型
// 补充 SOLAS II-2/9 的耐火分隔表引用。
var fireFamilyTerms = map[string]bool{
	"fire integrity":   true,
	"fire division":    true,
	"A class division": true,
}

// fireTableRefs 是 SOLAS II-2/9 按船型给出的耐火分隔表。
var fireTableRefs = map[ShipType][]string{
	ShipPassengerGT36: {"SOLAS II-2/9 table 9.1", "SOLAS II-2/9 table 9.2"},
	ShipPassengerLE36: {"SOLAS II-2/9 table 9.3", "SOLAS II-2/9 table 9.4"},
	ShipCargo:         {"SOLAS II-2/9 table 9.5", "SOLAS II-2/9 table 9.6"},
	ShipTanker:        {"SOLAS II-2/9 table 9.7", "SOLAS II-2/9 table 9.8"},
}

// lengthGate 描述按船长触发的条款族。
type lengthGate struct {
	minMeters float64
	ids       []string
}

// lengthGates 按阈值从高到低排列, 查询提到的船长达到阈值即注入。
var lengthGates = []lengthGate{
	{minMeters: 150, ids: []string{"SOLAS II-1/3-5", "Load Lines Annex I"}},
	{minMeters: 50, ids: []string{"COLREG 1972 Rule 23", "SOLAS V/19.2.5"}},
	{minMeters: 24, ids: []string{"Load Lines Article 4", "SOLAS V/19.2.2"}},
	{minMeters: 12, ids: []string{"COLREG 1972 Rule 22"}},
}

// tonnageGates 按总吨触发的条款族。
var tonnageGates = []lengthGate{
	{minMeters: 10000, ids: []string{"SOLAS V/19.2.8"}},
	{minMeters: 500, ids: []string{"SOLAS I/10", "ISM Code 1.3"}},
	{minMeters: 400, ids: []string{"MARPOL I/6"}},
	{minMeters: 300, ids: []string{"SOLAS V/19.2.4"}},
}

// shipTypeKeywords 是船型关键词组, 顺序即匹配优先级:
// 油轮词汇语义最明确须先判, 客船次之, 货船词汇只作兜底,
// 因为 "船" 一类泛称在前两组都可能出现。
var shipTypeKeywords = []struct {
	shipType ShipType
	keywords []string
}{
	{ShipTanker, []string{
		"油轮", "油船", "液货船", "化学品船", "tanker", "vlcc", "aframax",
		"chemical carrier", "product carrier", "crude carrier",
	}},
	{ShipPassengerGT36, []string{
		"客船", "邮轮", "客滚船", "渡轮", "passenger", "cruise", "ferry", "ro-pax",
	}},
	{ShipCargo, []string{
		"货船", "散货船", "集装箱船", "杂货船", "滚装船", "cargo ship", "bulk carrier",
		"container ship", "general cargo", "ro-ro cargo",
	}},
}

// lePassengerMarkers 出现时把客船归入 "载客不超过36人" 类别。
var lePassengerMarkers = []string{
	"不超过36", "36人及以下", "36人以下", "not more than 36", "36 or fewer",
	"less than 36", "carrying not more than 36",
}

// conventionAcronyms 依次扫描, 首个命中作为 document_filter。
var conventionAcronyms = []string{
	"SOLAS", "MARPOL", "COLREG", "STCW", "LSA", "FSS",
	"IBC", "IGC", "ISM", "ISPS", "BWM", "Load Lines",
}

// topicConcepts 依次扫描, 首个命中作为 concept 实体。
var topicConcepts = []struct {
	keyword string
	concept string
}{
	{"防火", "fire_protection"},
	{"消防", "fire_protection"},
	{"fire", "fire_protection"},
	{"救生", "life_saving_appliances"},
	{"lifeboat", "life_saving_appliances"},
	{"liferaft", "life_saving_appliances"},
	{"lifejacket", "life_saving_appliances"},
	{"排油", "pollution_prevention"},
	{"防污", "pollution_prevention"},
	{"压载水", "pollution_prevention"},
	{"pollution", "pollution_prevention"},
	{"ballast", "pollution_prevention"},
	{"稳性", "stability"},
	{"stability", "stability"},
	{"无线电", "radio_communications"},
	{"radio", "radio_communications"},
	{"gmdss", "radio_communications"},
	{"航行", "safety_of_navigation"},
	{"navigation", "safety_of_navigation"},
}

// intentTriggers 按固定顺序评分, 平分时先出现的意图获胜。
var intentTriggers = []struct {
	intent   Intent
	triggers []string
}{
	{IntentApplicability, []string{
		"适用", "是否需要", "需不需要", "要不要", "需要配备", "要求配备", "是否必须",
		"applicable", "apply to", "applies to", "required for", "must carry",
		"do i need", "exempt",
	}},
	{IntentSpecification, []string{
		"多少", "几个", "几只", "数量", "规格", "尺寸", "容量", "间距",
		"how many", "how much", "capacity", "dimension", "minimum number",
		"spacing", "size of",
	}},
	{IntentProcedure, []string{
		"如何", "怎么", "怎样", "流程", "步骤", "程序",
		"how to", "procedure", "process for", "steps to",
	}},
	{IntentComparison, []string{
		"区别", "差异", "对比", "不同",
		"difference", "compare", "versus", " vs ",
	}},
	{IntentDefinition, []string{
		"什么是", "何为", "定义", "含义", "指什么",
		"what is", "definition", "meaning of", "defined as",
	}},
}

// requirementVerbs 与船舶尺度数值同现时, 意图强制提升为 applicability:
// 这类 "xx米的船要不要装yy" 问法靠触发词打分经常落入 specification。
var requirementVerbs = []string{
	"需要", "必须", "应配备", "应设置", "应装设", "要求", "要不要", "是否",
	"must", "shall", "required", "need to", "have to",
}

// bilateralPhrases 命中时为已匹配术语注入 "两舷布置" 组合词。
var bilateralPhrases = []string{
	"两侧", "两舷", "每侧", "每舷", "左右舷",
	"both sides", "each side", "port and starboard",
}

// 来源权威度: 精选内容最高, 公约与规则正文高于均值,
// 通函与决议等补充材料低于均值, 其余为 1.0。
const (
	weightCurated    = 1.3
	weightConvention = 1.15
	weightCode       = 1.1
	weightResolution = 0.9
	weightCircular   = 0.85
	weightDefault    = 1.0
)

// sourceTypeWeights 按 metadata 中显式 collection 标签取权重。
var sourceTypeWeights = map[string]float64{
	"curated":    weightCurated,
	"convention": weightConvention,
	"code":       weightCode,
	"resolution": weightResolution,
	"circular":   weightCircular,
}
