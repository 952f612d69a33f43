package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceWeight_CollectionTag(t *testing.T) {
	tests := []struct {
		name string
		meta map[string]string
		want float64
	}{
		{"curated", map[string]string{"collection": "curated"}, 1.3},
		{"convention", map[string]string{"collection": "convention"}, 1.15},
		{"code", map[string]string{"collection": "code"}, 1.1},
		{"resolution", map[string]string{"collection": "resolution"}, 0.9},
		{"circular", map[string]string{"collection": "circular"}, 0.85},
		{"tag is case insensitive", map[string]string{"collection": "Curated"}, 1.3},
		{"no metadata", nil, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sourceWeight(Passage{ID: "p1", Metadata: tt.meta})
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestSourceWeight_HintInference(t *testing.T) {
	tests := []struct {
		name string
		meta map[string]string
		want float64
	}{
		{
			name: "breadcrumb circular",
			meta: map[string]string{"breadcrumb": "MSC.1/Circular.1312"},
			want: 0.85,
		},
		{
			name: "document resolution",
			meta: map[string]string{"document": "Resolution MSC.402(96)"},
			want: 0.9,
		},
		{
			name: "title code",
			meta: map[string]string{"title": "FSS Code Chapter 7"},
			want: 1.1,
		},
		{
			name: "title convention",
			meta: map[string]string{"title": "SOLAS Chapter II-2"},
			want: 1.15,
		},
		{
			name: "chinese convention marker",
			meta: map[string]string{"document": "国际海上人命安全公约"},
			want: 1.15,
		},
		{
			// 通函决议先于正文判定
			name: "circular beats convention in same hint",
			meta: map[string]string{"document": "SOLAS related circular"},
			want: 0.85,
		},
		{
			// "code" 先于 "convention" 判定
			name: "code beats convention in same hint",
			meta: map[string]string{"title": "Code adopted under the Convention"},
			want: 1.1,
		},
		{
			// 显式标签存在但不认识时回落到体裁词推断
			name: "unknown tag falls back to hint",
			meta: map[string]string{"collection": "misc", "title": "SOLAS Chapter V"},
			want: 1.15,
		},
		{
			name: "hint without genre words",
			meta: map[string]string{"title": "Annex 3 tables"},
			want: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sourceWeight(Passage{ID: "p1", Metadata: tt.meta})
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestSourceWeight_HintPrecedence(t *testing.T) {
	// breadcrumb 优先于 document 优先于 title
	p := Passage{ID: "p1", Metadata: map[string]string{
		"breadcrumb": "Circular index",
		"document":   "SOLAS Convention",
		"title":      "FSS Code",
	}}
	assert.InDelta(t, 0.85, sourceWeight(p), 1e-12)

	p.Metadata = map[string]string{
		"document": "SOLAS Convention",
		"title":    "FSS Code",
	}
	assert.InDelta(t, 1.15, sourceWeight(p), 1e-12)
}

func TestApplySourceWeights_Reorders(t *testing.T) {
	candidates := []Candidate{
		{
			Passage:    Passage{ID: "circ", Metadata: map[string]string{"collection": "circular"}},
			FinalScore: 1.0,
		},
		{
			Passage:    Passage{ID: "conv", Metadata: map[string]string{"collection": "convention"}},
			FinalScore: 0.8,
		},
	}

	applySourceWeights(candidates)

	// 0.8*1.15=0.92 超过 1.0*0.85, 公约条款反超通函
	assert.Equal(t, "conv", candidates[0].Passage.ID)
	assert.InDelta(t, 0.92, candidates[0].FinalScore, 1e-12)
	assert.Equal(t, "circ", candidates[1].Passage.ID)
	assert.InDelta(t, 0.85, candidates[1].FinalScore, 1e-12)
}

func TestApplySourceWeights_NeutralSourcesKeepOrder(t *testing.T) {
	candidates := []Candidate{
		{Passage: Passage{ID: "a"}, FinalScore: 0.5},
		{Passage: Passage{ID: "b"}, FinalScore: 0.5},
		{Passage: Passage{ID: "c"}, FinalScore: 0.3},
	}

	applySourceWeights(candidates)

	// 全部权重 1.0 时分数与相对顺序不变
	assert.Equal(t, "a", candidates[0].Passage.ID)
	assert.Equal(t, "b", candidates[1].Passage.ID)
	assert.Equal(t, "c", candidates[2].Passage.ID)
	assert.InDelta(t, 0.5, candidates[0].FinalScore, 1e-12)
}
