package retrieval

import (
	"sort"
)

// DefaultRRFOffset 是倒数排名融合的名次偏移常数。
// 60 是文献中的标准取值, 作为调参默认值暴露而非协议要求:
// 偏移压低各路尾部低置信结果的影响, 同时仍然奖励
// 被多路独立信号同时命中的 passage。
const DefaultRRFOffset = 60

// fuseRRF 对多路后端结果做倒数排名融合。
//
// 名次从 0 起算, 每次出现贡献 1/(offset+rank), 跨后端累加。
// 融合键直接取适配器返回的 passage id: 向量与全文两路返回
// 真实 passage id 可以互相叠加, 图谱一路返回 "doc:" 前缀伪 id,
// 天然不会与真实 id 冲突。累加完成后按融合分降序排序并截断。
func fuseRRF(results []backendResult, offset float64, topK int) []Candidate {
	if offset <= 0 {
		offset = DefaultRRFOffset
	}

	fused := make(map[string]*Candidate)
	order := make([]string, 0)

	for _, br := range results {
		for rank, sp := range br.passages {
			key := sp.Passage.ID
			cand, ok := fused[key]
			if !ok {
				cand = &Candidate{Passage: sp.Passage}
				fused[key] = cand
				order = append(order, key)
			}
			cand.FusedScore += 1.0 / (offset + float64(rank))
			cand.addSignal(br.signal)

			// 后出现的更完整文本顶替图谱伪 passage 的标题占位
			if len(sp.Passage.Text) > len(cand.Passage.Text) {
				cand.Passage = sp.Passage
			}
		}
	}

	candidates := make([]Candidate, 0, len(fused))
	for _, key := range order {
		cand := fused[key]
		cand.FinalScore = cand.FusedScore
		candidates = append(candidates, *cand)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].FusedScore != candidates[j].FusedScore {
			return candidates[i].FusedScore > candidates[j].FusedScore
		}
		return candidates[i].Passage.ID < candidates[j].Passage.ID
	})

	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}
