package retrieval

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ExpansionConfig 配置图谱扩展阶段。
type ExpansionConfig struct {
	// 取排序后前几名作为扩展种子
	MaxSeeds int `yaml:"max_seeds" json:"max_seeds"`
	// 每个种子最多追踪几条引用关系
	MaxRelated int `yaml:"max_related" json:"max_related"`
	// 单次查询最多补入几个扩展候选
	MaxAdded int `yaml:"max_added" json:"max_added"`
	// 扩展候选的固定低置信融合分
	SeedScore float64 `yaml:"seed_score" json:"seed_score"`
	// 整个扩展阶段的总超时
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultExpansionConfig 返回默认图谱扩展配置。
func DefaultExpansionConfig() ExpansionConfig {
	return ExpansionConfig{
		MaxSeeds:   5,
		MaxRelated: 5,
		MaxAdded:   3,
		SeedScore:  0.01,
		Timeout:    5 * time.Second,
	}
}

// GraphExpander 沿引用关系为头部候选补召回:
// 头部结果正式引用的文档即使没被任何检索信号命中, 也值得一个低置信席位。
// 只增不删, 补入后总数不超过查询的 top-k 预算。
type GraphExpander struct {
	graph   *GraphBackend
	lexical *LexicalBackend
	cfg     ExpansionConfig
	logger  *zap.Logger
}

// NewGraphExpander 创建图谱扩展阶段。
func NewGraphExpander(graph *GraphBackend, lexical *LexicalBackend, cfg ExpansionConfig, logger *zap.Logger) *GraphExpander {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultExpansionConfig()
	if cfg.MaxSeeds <= 0 {
		cfg.MaxSeeds = def.MaxSeeds
	}
	if cfg.MaxRelated <= 0 {
		cfg.MaxRelated = def.MaxRelated
	}
	if cfg.MaxAdded <= 0 {
		cfg.MaxAdded = def.MaxAdded
	}
	if cfg.SeedScore <= 0 {
		cfg.SeedScore = def.SeedScore
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &GraphExpander{
		graph:   graph,
		lexical: lexical,
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "graph_expander")),
	}
}

// Expand 从前 MaxSeeds 个候选出发追踪出向引用,
// 对列表中尚未出现的关联文档做一次标题回查, 命中则以固定低分补入。
// 图谱或全文回查任何一步失败都只记日志, 原列表原样返回。
func (e *GraphExpander) Expand(ctx context.Context, candidates []Candidate, topK int) []Candidate {
	if e.graph == nil || e.lexical == nil || len(candidates) == 0 {
		return candidates
	}
	if len(candidates) >= topK {
		return candidates
	}

	expandCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if c.Passage.DocumentID != "" {
			seen[c.Passage.DocumentID] = true
		}
	}

	seeds := candidates
	if len(seeds) > e.cfg.MaxSeeds {
		seeds = seeds[:e.cfg.MaxSeeds]
	}

	added := 0
	for _, seed := range seeds {
		if added >= e.cfg.MaxAdded || len(candidates) >= topK {
			break
		}
		docID := seed.Passage.DocumentID
		if docID == "" {
			continue
		}

		related, err := e.graph.RelatedDocuments(expandCtx, docID, e.cfg.MaxRelated)
		if err != nil {
			e.logger.Warn("citation lookup failed, skipping seed",
				zap.String("doc_id", docID), zap.Error(err))
			continue
		}

		for _, rel := range related {
			if added >= e.cfg.MaxAdded || len(candidates) >= topK {
				break
			}
			if rel.ID == "" || rel.Title == "" || seen[rel.ID] {
				continue
			}
			seen[rel.ID] = true

			hit, err := e.lexical.LookupByTitle(expandCtx, rel.Title)
			if err != nil {
				e.logger.Warn("title lookup failed",
					zap.String("title", rel.Title), zap.Error(err))
				continue
			}
			if hit == nil {
				continue
			}

			cand := Candidate{
				Passage:    hit.Passage,
				Signals:    []Signal{SignalGraphExpand},
				FusedScore: e.cfg.SeedScore,
				FinalScore: e.cfg.SeedScore,
			}
			candidates = append(candidates, cand)
			added++
		}
	}

	if added > 0 {
		e.logger.Debug("graph expansion appended candidates", zap.Int("added", added))
	}
	return candidates
}
