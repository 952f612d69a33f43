package rerankservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Config 配置重排服务客户端.
type Config struct {
	BaseURL string        `yaml:"base_url" json:"base_url"`
	APIKey  string        `yaml:"api_key" json:"api_key"`
	Model   string        `yaml:"model" json:"model"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// 每秒请求上限, 0 表示不限速
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit"`
}

// DefaultConfig 返回默认重排客户端配置.
func DefaultConfig() Config {
	return Config{
		BaseURL: "https://api.cohere.ai",
		Model:   "rerank-v3.5",
		Timeout: 10 * time.Second,
	}
}

// HTTPProvider 通过 Cohere 兼容的 /v2/rerank 端点执行重排.
type HTTPProvider struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPProvider 创建重排客户端.
func NewHTTPProvider(cfg Config) *HTTPProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.cohere.ai"
	}
	if cfg.Model == "" {
		cfg.Model = "rerank-v3.5"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &HTTPProvider{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
	}
}

func (p *HTTPProvider) Name() string { return "cross-encoder-rerank" }

type wireRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model"`
	TopN      int      `json:"top_n,omitempty"`
}

type wireResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank 按与查询的相关性重排文档.
func (p *HTTPProvider) Rerank(ctx context.Context, req *Request) (*Response, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	body := wireRequest{
		Query:     req.Query,
		Documents: req.Documents,
		Model:     model,
		TopN:      req.TopN,
	}
	payload, _ := json.Marshal(body)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(p.cfg.BaseURL, "/")+"/v2/rerank",
		bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rerank error: status=%d body=%s", resp.StatusCode, string(snippet))
	}

	var wResp wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wResp); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	results := make([]Result, len(wResp.Results))
	for i, r := range wResp.Results {
		results[i] = Result{Index: r.Index, RelevanceScore: r.RelevanceScore}
	}

	return &Response{
		Provider:  p.Name(),
		Model:     model,
		Results:   results,
		CreatedAt: time.Now(),
	}, nil
}
