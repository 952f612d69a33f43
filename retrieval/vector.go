package retrieval

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harborai/helmsman/embedding"
)

// VectorBackendConfig 配置向量检索适配器 (Qdrant REST 协议).
type VectorBackendConfig struct {
	BaseURL    string        `yaml:"base_url" json:"base_url"`
	APIKey     string        `yaml:"api_key" json:"api_key"`
	Collection string        `yaml:"collection" json:"collection"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`

	PayloadContentField  string `yaml:"payload_content_field" json:"payload_content_field"`
	PayloadMetadataField string `yaml:"payload_metadata_field" json:"payload_metadata_field"`
	PayloadIDField       string `yaml:"payload_id_field" json:"payload_id_field"`
	PayloadDocField      string `yaml:"payload_doc_field" json:"payload_doc_field"`
}

// VectorBackend 是语义检索适配器: 嵌入增强查询后对命名向量集合
// 做近邻搜索, 支持文档/子集等等值过滤。
type VectorBackend struct {
	cfg      VectorBackendConfig
	embedder embedding.Provider
	client   *http.Client
	logger   *zap.Logger
}

// NewVectorBackend 创建向量检索适配器。
func NewVectorBackend(cfg VectorBackendConfig, embedder embedding.Provider, logger *zap.Logger) *VectorBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:6333"
	}
	if cfg.Collection == "" {
		cfg.Collection = "passages"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.PayloadContentField == "" {
		cfg.PayloadContentField = "content"
	}
	if cfg.PayloadMetadataField == "" {
		cfg.PayloadMetadataField = "metadata"
	}
	if cfg.PayloadIDField == "" {
		cfg.PayloadIDField = "passage_id"
	}
	if cfg.PayloadDocField == "" {
		cfg.PayloadDocField = "document_id"
	}

	return &VectorBackend{
		cfg:      cfg,
		embedder: embedder,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   logger.With(zap.String("component", "vector_backend")),
	}
}

func (b *VectorBackend) Name() string   { return "vector" }
func (b *VectorBackend) Signal() Signal { return SignalVector }

type qdrantFieldCondition struct {
	Key   string `json:"key"`
	Match struct {
		Value string `json:"value"`
	} `json:"match"`
}

type qdrantFilter struct {
	Must []qdrantFieldCondition `json:"must,omitempty"`
}

type qdrantSearchRequest struct {
	Vector      []float64     `json:"vector"`
	Limit       int           `json:"limit"`
	WithPayload bool          `json:"with_payload"`
	Filter      *qdrantFilter `json:"filter,omitempty"`
}

type qdrantSearchResponse struct {
	Result []struct {
		ID      any            `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

// Search 嵌入增强查询并执行近邻搜索。
func (b *VectorBackend) Search(ctx context.Context, q *QueryContext, topK int) ([]ScoredPassage, error) {
	vector, err := b.embedder.EmbedQuery(ctx, q.EnhancedQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	req := qdrantSearchRequest{
		Vector:      vector,
		Limit:       topK,
		WithPayload: true,
	}
	if q.Entities.DocumentFilter != "" {
		cond := qdrantFieldCondition{Key: "document"}
		cond.Match.Value = q.Entities.DocumentFilter
		req.Filter = &qdrantFilter{Must: []qdrantFieldCondition{cond}}
	}

	url := fmt.Sprintf("%s/collections/%s/points/search",
		strings.TrimRight(b.cfg.BaseURL, "/"), b.cfg.Collection)
	headers := map[string]string{}
	if b.cfg.APIKey != "" {
		headers["api-key"] = b.cfg.APIKey
	}

	var resp qdrantSearchResponse
	if err := doJSON(ctx, b.client, http.MethodPost, url, headers, req, &resp); err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	results := make([]ScoredPassage, 0, len(resp.Result))
	for _, point := range resp.Result {
		p := b.passageFromPayload(point.ID, point.Payload)
		if p.ID == "" {
			continue
		}
		results = append(results, ScoredPassage{Passage: p, Score: point.Score})
	}

	b.logger.Debug("vector search completed", zap.Int("hits", len(results)))
	return results, nil
}

// passageFromPayload 把 Qdrant payload 还原成 Passage。
// 点 ID 是派生 UUID, 原始 passage id 存在 payload 里。
func (b *VectorBackend) passageFromPayload(pointID any, payload map[string]any) Passage {
	p := Passage{Metadata: map[string]string{}}

	if v, ok := payload[b.cfg.PayloadIDField].(string); ok && v != "" {
		p.ID = v
	} else {
		p.ID = fmt.Sprintf("%v", pointID)
	}
	if v, ok := payload[b.cfg.PayloadContentField].(string); ok {
		p.Text = v
	}
	if v, ok := payload[b.cfg.PayloadDocField].(string); ok {
		p.DocumentID = v
	}
	if md, ok := payload[b.cfg.PayloadMetadataField].(map[string]any); ok {
		for k, v := range md {
			if s, ok := v.(string); ok {
				p.Metadata[k] = s
			}
		}
	}
	return p
}
