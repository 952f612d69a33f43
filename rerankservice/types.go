// Package rerankservice 提供交叉编码重排服务的统一客户端接口.
package rerankservice

import (
	"context"
	"time"
)

// Request 表示一次重排请求.
type Request struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
	TopN      int      `json:"top_n,omitempty"`
}

// Result 表示单条被重排的文档.
type Result struct {
	Index          int     `json:"index"`           // Original index in input
	RelevanceScore float64 `json:"relevance_score"` // 0-1 normalized score
}

// Response 表示重排响应.
type Response struct {
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Results   []Result  `json:"results"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Provider 定义统一的重排提供者接口.
type Provider interface {
	// Rerank 按与查询的相关性重排文档.
	Rerank(ctx context.Context, req *Request) (*Response, error)

	// Name 返回提供者名称.
	Name() string
}
