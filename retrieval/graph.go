package retrieval

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// GraphBackendConfig 配置引用图谱适配器 (Neo4j HTTP 事务协议).
type GraphBackendConfig struct {
	BaseURL  string        `yaml:"base_url" json:"base_url"`
	Database string        `yaml:"database" json:"database"`
	Username string        `yaml:"username" json:"username"`
	Password string        `yaml:"password" json:"password"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`

	// 单个源文档追踪的关系数上限
	MaxRelations int `yaml:"max_relations" json:"max_relations"`
}

// GraphBackend 在文档引用图上检索: 先把概念或条款引用解析为文档节点,
// 再沿 INTERPRETS / AMENDS 关系做定深查找。图谱结果没有内在分值,
// 排名位置即分值, 交给融合阶段按名次折算。
type GraphBackend struct {
	cfg    GraphBackendConfig
	client *http.Client
	logger *zap.Logger
}

// NewGraphBackend 创建图谱检索适配器。
func NewGraphBackend(cfg GraphBackendConfig, logger *zap.Logger) *GraphBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:7474"
	}
	if cfg.Database == "" {
		cfg.Database = "neo4j"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.MaxRelations <= 0 {
		cfg.MaxRelations = 10
	}
	return &GraphBackend{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "graph_backend")),
	}
}

func (b *GraphBackend) Name() string   { return "graph" }
func (b *GraphBackend) Signal() Signal { return SignalGraph }

type cypherStatement struct {
	Statement  string         `json:"statement"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type cypherRequest struct {
	Statements []cypherStatement `json:"statements"`
}

type cypherResponse struct {
	Results []struct {
		Columns []string `json:"columns"`
		Data    []struct {
			Row []any `json:"row"`
		} `json:"data"`
	} `json:"results"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Search 解析实体并执行关系查找。
// 查询既无概念也无条款引用时图谱无从下手, 返回空结果。
func (b *GraphBackend) Search(ctx context.Context, q *QueryContext, topK int) ([]ScoredPassage, error) {
	docID, title, err := b.resolveDocument(ctx, q.Entities.Concept, q.Entities.RegulationRef)
	if err != nil {
		return nil, fmt.Errorf("resolve document: %w", err)
	}
	if docID == "" {
		return nil, nil
	}

	limit := b.cfg.MaxRelations
	if topK < limit {
		limit = topK
	}

	related, err := b.relatedDocuments(ctx, docID, limit)
	if err != nil {
		return nil, fmt.Errorf("related documents: %w", err)
	}

	// 源文档自身排在首位
	results := []ScoredPassage{{
		Passage: Passage{
			ID:         "doc:" + docID,
			Text:       title,
			DocumentID: docID,
			Metadata:   map[string]string{"title": title},
		},
	}}
	for _, rel := range related {
		results = append(results, ScoredPassage{
			Passage: Passage{
				ID:         "doc:" + rel.ID,
				Text:       rel.Title,
				DocumentID: rel.ID,
				Metadata:   map[string]string{"title": rel.Title, "relation": rel.Relation},
			},
		})
	}
	if len(results) > topK {
		results = results[:topK]
	}

	b.logger.Debug("graph search completed",
		zap.String("doc_id", docID),
		zap.Int("related", len(related)))
	return results, nil
}

// RelatedDoc 是图谱中与源文档有引用关系的文档。
type RelatedDoc struct {
	ID       string
	Title    string
	Relation string
}

// RelatedDocuments 返回文档的出向引用, 供图谱扩展阶段使用。
func (b *GraphBackend) RelatedDocuments(ctx context.Context, docID string, limit int) ([]RelatedDoc, error) {
	if limit <= 0 || limit > b.cfg.MaxRelations {
		limit = b.cfg.MaxRelations
	}
	return b.relatedDocuments(ctx, docID, limit)
}

func (b *GraphBackend) resolveDocument(ctx context.Context, concept, regulationRef string) (id, title string, err error) {
	if concept == "" && regulationRef == "" {
		return "", "", nil
	}

	stmt := cypherStatement{
		Statement: `MATCH (d:Document)
WHERE ($concept <> '' AND d.concept = $concept)
   OR ($ref <> '' AND d.ref = $ref)
RETURN d.id, d.title LIMIT 1`,
		Parameters: map[string]any{"concept": concept, "ref": regulationRef},
	}

	rows, err := b.commit(ctx, stmt)
	if err != nil {
		return "", "", err
	}
	if len(rows) == 0 || len(rows[0]) < 2 {
		return "", "", nil
	}
	id, _ = rows[0][0].(string)
	title, _ = rows[0][1].(string)
	return id, title, nil
}

func (b *GraphBackend) relatedDocuments(ctx context.Context, docID string, limit int) ([]RelatedDoc, error) {
	stmt := cypherStatement{
		Statement: `MATCH (d:Document {id: $id})-[r:INTERPRETS|AMENDS]-(other:Document)
RETURN other.id, other.title, type(r) LIMIT $limit`,
		Parameters: map[string]any{"id": docID, "limit": limit},
	}

	rows, err := b.commit(ctx, stmt)
	if err != nil {
		return nil, err
	}

	related := make([]RelatedDoc, 0, len(rows))
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		doc := RelatedDoc{}
		doc.ID, _ = row[0].(string)
		doc.Title, _ = row[1].(string)
		doc.Relation, _ = row[2].(string)
		if doc.ID != "" {
			related = append(related, doc)
		}
	}
	return related, nil
}

// commit 通过单次自动提交事务执行 Cypher 语句。
func (b *GraphBackend) commit(ctx context.Context, stmt cypherStatement) ([][]any, error) {
	url := fmt.Sprintf("%s/db/%s/tx/commit",
		strings.TrimRight(b.cfg.BaseURL, "/"), b.cfg.Database)

	headers := map[string]string{}
	if b.cfg.Username != "" {
		headers["Authorization"] = "Basic " + basicAuth(b.cfg.Username, b.cfg.Password)
	}

	var resp cypherResponse
	req := cypherRequest{Statements: []cypherStatement{stmt}}
	if err := doJSON(ctx, b.client, http.MethodPost, url, headers, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("cypher error %s: %s", resp.Errors[0].Code, resp.Errors[0].Message)
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}

	rows := make([][]any, 0, len(resp.Results[0].Data))
	for _, d := range resp.Results[0].Data {
		rows = append(rows, d.Row)
	}
	return rows, nil
}
