package retrieval

import (
	"sort"
	"strings"
)

// sourceWeight 推断 passage 的来源权威度系数。
// 优先取 metadata 的显式 collection 标签, 没有标签时
// 从面包屑或文档标题的体裁词推断, 都推不出取 1.0。
func sourceWeight(p Passage) float64 {
	if tag := p.Meta("collection"); tag != "" {
		if w, ok := sourceTypeWeights[strings.ToLower(tag)]; ok {
			return w
		}
	}

	hint := p.Meta("breadcrumb")
	if hint == "" {
		hint = p.Meta("document")
	}
	if hint == "" {
		hint = p.Meta("title")
	}
	if hint == "" {
		return weightDefault
	}
	return inferSourceWeight(hint)
}

// inferSourceWeight 按体裁词匹配标题/面包屑。
// 判定顺序从特殊到一般: 通函决议类补充材料先于公约规则正文,
// "code" 在 "convention" 之前避免 "code of the convention" 误判公约。
func inferSourceWeight(hint string) float64 {
	lower := strings.ToLower(hint)
	switch {
	case strings.Contains(lower, "circular") || strings.Contains(lower, "通函"):
		return weightCircular
	case strings.Contains(lower, "resolution") || strings.Contains(lower, "决议"):
		return weightResolution
	case strings.Contains(lower, "code") || strings.Contains(lower, "规则"):
		return weightCode
	case strings.Contains(lower, "convention") || strings.Contains(lower, "公约") ||
		strings.Contains(lower, "solas") || strings.Contains(lower, "marpol"):
		return weightConvention
	default:
		return weightDefault
	}
}

// applySourceWeights 把来源权威度乘进最终分并重排。
// 放在重排级联之后执行, 保证权威度偏置不会被后续阶段覆盖。
func applySourceWeights(candidates []Candidate) {
	for i := range candidates {
		candidates[i].FinalScore *= sourceWeight(candidates[i].Passage)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].FinalScore > candidates[j].FinalScore
	})
}
