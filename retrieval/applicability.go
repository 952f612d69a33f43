package retrieval

import (
	"fmt"
	"strings"
)

// NormalizeShipType 把自由文本船型归一化到固定类别集。
// 已经是规范值的输入原样返回; 识别不出的输入兜底归货船,
// 货船条款的覆盖面最广, 兜底错判的代价最小。
func NormalizeShipType(raw string) ShipType {
	switch ShipType(strings.TrimSpace(strings.ToLower(raw))) {
	case ShipTanker:
		return ShipTanker
	case ShipPassengerGT36:
		return ShipPassengerGT36
	case ShipPassengerLE36:
		return ShipPassengerLE36
	case ShipCargo:
		return ShipCargo
	}
	if st, ok := ExtractShipType(raw); ok {
		return st
	}
	return ShipCargo
}

type applicabilityVerdict int

const (
	verdictNeutral applicabilityVerdict = iota
	verdictMatched
	verdictConflicting
)

// classifyApplicability 按 passage metadata 的适用规则裁决:
// 排除名单先于适用名单检查, 明确排除的条款即使同时声明适用也按冲突处理。
// 匹配是双向子串: "passenger_ship" 的规则能覆盖 "passenger_ship_gt36" 的查询。
func classifyApplicability(p Passage, shipType ShipType) applicabilityVerdict {
	included := p.Meta("ship_types")
	excluded := p.Meta("ship_type_exclusions")
	if included == "" && excluded == "" {
		return verdictNeutral
	}

	st := string(shipType)
	if excluded != "" && listMatches(excluded, st) {
		return verdictConflicting
	}
	if included != "" && listMatches(included, st) {
		return verdictMatched
	}
	return verdictNeutral
}

// listMatches 报告逗号分隔名单中是否有项与类别双向子串匹配。
func listMatches(list, shipType string) bool {
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(strings.ToLower(item))
		if item == "" {
			continue
		}
		if strings.Contains(shipType, item) || strings.Contains(item, shipType) {
			return true
		}
	}
	return false
}

// FilterByShipType 按适用性重排候选: 明确适用的在前, 中性次之,
// 冲突候选只在前两类不足 top-k 时补位, 并带上人读警告。
// 顺类内保持输入相对顺序, 不重新打分。
func FilterByShipType(candidates []Candidate, shipType ShipType, topK int) []Candidate {
	if shipType == "" || len(candidates) == 0 {
		return candidates
	}

	var matched, neutral, conflicting []Candidate
	for _, c := range candidates {
		switch classifyApplicability(c.Passage, shipType) {
		case verdictMatched:
			matched = append(matched, c)
		case verdictConflicting:
			c.Warning = fmt.Sprintf("该条款可能不适用于 %s, 请核对适用范围", shipType)
			conflicting = append(conflicting, c)
		default:
			neutral = append(neutral, c)
		}
	}

	out := make([]Candidate, 0, len(candidates))
	out = append(out, matched...)
	out = append(out, neutral...)
	if topK > 0 && len(out) < topK {
		room := topK - len(out)
		if room > len(conflicting) {
			room = len(conflicting)
		}
		out = append(out, conflicting[:room]...)
	}
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}
