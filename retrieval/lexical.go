package retrieval

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
)

// LexicalBackendConfig 配置全文检索适配器 (Elasticsearch _search 协议).
type LexicalBackendConfig struct {
	BaseURL string        `yaml:"base_url" json:"base_url"`
	Index   string        `yaml:"index" json:"index"`
	APIKey  string        `yaml:"api_key" json:"api_key"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// 单个分段保留的 token 上限, 控制查询扇出
	MaxTokensPerSegment int `yaml:"max_tokens_per_segment" json:"max_tokens_per_segment"`
}

// LexicalBackend 把增强查询改写成全文引擎的查询语言:
// 按管道分段切分, 段内 token 取 AND, 段间取 OR。
// 全文引擎不索引非拉丁文字, 改写时先剔除。
type LexicalBackend struct {
	cfg    LexicalBackendConfig
	client *http.Client
	logger *zap.Logger
}

// NewLexicalBackend 创建全文检索适配器。
func NewLexicalBackend(cfg LexicalBackendConfig, logger *zap.Logger) *LexicalBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:9200"
	}
	if cfg.Index == "" {
		cfg.Index = "passages"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.MaxTokensPerSegment <= 0 {
		cfg.MaxTokensPerSegment = 8
	}
	return &LexicalBackend{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "lexical_backend")),
	}
}

func (b *LexicalBackend) Name() string   { return "lexical" }
func (b *LexicalBackend) Signal() Signal { return SignalLexical }

type esQueryString struct {
	Query           string `json:"query"`
	DefaultField    string `json:"default_field,omitempty"`
	DefaultOperator string `json:"default_operator,omitempty"`
}

type esSearchRequest struct {
	Size  int `json:"size"`
	Query struct {
		QueryString esQueryString `json:"query_string"`
	} `json:"query"`
}

type esSearchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string         `json:"_id"`
			Score  float64        `json:"_score"`
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search 改写增强查询并执行全文搜索。
func (b *LexicalBackend) Search(ctx context.Context, q *QueryContext, topK int) ([]ScoredPassage, error) {
	queryString := b.RewriteQuery(q.EnhancedQuery)
	if queryString == "" {
		// 剔除非拉丁文字后无可用 token, 不算错误
		b.logger.Debug("no indexable tokens after rewrite")
		return nil, nil
	}

	var req esSearchRequest
	req.Size = topK
	req.Query.QueryString = esQueryString{Query: queryString, DefaultField: "content"}

	url := fmt.Sprintf("%s/%s/_search", strings.TrimRight(b.cfg.BaseURL, "/"), b.cfg.Index)
	headers := map[string]string{}
	if b.cfg.APIKey != "" {
		headers["Authorization"] = "ApiKey " + b.cfg.APIKey
	}

	var resp esSearchResponse
	if err := doJSON(ctx, b.client, http.MethodPost, url, headers, req, &resp); err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	results := make([]ScoredPassage, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		p := passageFromSource(hit.ID, hit.Source)
		results = append(results, ScoredPassage{Passage: p, Score: hit.Score})
	}

	b.logger.Debug("lexical search completed",
		zap.Int("hits", len(results)),
		zap.String("query_string", queryString))
	return results, nil
}

// LookupByTitle 用文档标题做一次精简全文查询, 供图谱扩展补召回。
func (b *LexicalBackend) LookupByTitle(ctx context.Context, title string) (*ScoredPassage, error) {
	results, err := b.Search(ctx, &QueryContext{EnhancedQuery: title}, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return &results[0], nil
}

// RewriteQuery 把管道分段的增强查询改写为 query_string 语法。
// 每段剔除非拉丁文字并分词, 超出上限的 token 截断;
// 段内 AND, 段间 OR。所有分段都无可用 token 时返回空串,
// 调用方据此跳过全文检索。
func (b *LexicalBackend) RewriteQuery(enhanced string) string {
	segments := strings.Split(enhanced, " | ")

	var clauses []string
	for _, segment := range segments {
		tokens := latinTokens(segment)
		if len(tokens) == 0 {
			continue
		}
		if len(tokens) > b.cfg.MaxTokensPerSegment {
			tokens = tokens[:b.cfg.MaxTokensPerSegment]
		}
		if len(tokens) == 1 {
			clauses = append(clauses, tokens[0])
			continue
		}
		clauses = append(clauses, "("+strings.Join(tokens, " AND ")+")")
	}
	return strings.Join(clauses, " OR ")
}

// latinTokens 剔除非拉丁文字后分词。
// 数字、斜杠与连字符保留, 条款编号 (II-2/9.2) 才能整体存活。
func latinTokens(text string) []string {
	var sb strings.Builder
	for _, r := range text {
		switch {
		case r <= unicode.MaxASCII:
			sb.WriteRune(r)
		case unicode.In(r, unicode.Latin):
			sb.WriteRune(r)
		default:
			sb.WriteRune(' ')
		}
	}

	fields := strings.Fields(sb.String())
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `"'(),;:`)
		if f == "" || f == "|" {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// passageFromSource 把 _source 还原成 Passage。
// 索引中无独立 passage id 的文档级命中合成 "lex:" 前缀伪 id,
// 避免与向量检索返回的真实 passage id 冲突。
func passageFromSource(hitID string, source map[string]any) Passage {
	p := Passage{Metadata: map[string]string{}}

	docID, _ := source["document_id"].(string)
	if pid, ok := source["passage_id"].(string); ok && pid != "" {
		p.ID = pid
	} else if hitID != "" {
		p.ID = hitID
	} else {
		p.ID = "lex:" + docID
	}
	p.DocumentID = docID

	if v, ok := source["content"].(string); ok {
		p.Text = v
	}
	for k, v := range source {
		if k == "content" || k == "passage_id" {
			continue
		}
		if s, ok := v.(string); ok {
			p.Metadata[k] = s
		}
	}
	return p
}
