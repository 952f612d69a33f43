// Package embedding 提供统一的嵌入提供者接口和 OpenAI 兼容实现.
package embedding

import (
	"context"
	"time"
)

// Request 表示生成嵌入的请求.
type Request struct {
	Input      []string `json:"input"`                // Text inputs to embed
	Model      string   `json:"model,omitempty"`      // Model to use
	Dimensions int      `json:"dimensions,omitempty"` // Output dimensions (for models that support it)
}

// Response 表示嵌入请求的响应.
type Response struct {
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	Embeddings []Data    `json:"embeddings"`
	Usage      Usage     `json:"usage"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// Data 表示单个嵌入结果.
type Data struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// Usage 表示嵌入请求的 Token 用量.
type Usage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Provider 定义统一的嵌入提供者接口.
type Provider interface {
	// Embed 为给定输入生成嵌入.
	Embed(ctx context.Context, req *Request) (*Response, error)

	// EmbedQuery 是嵌入单个查询的便捷方法.
	EmbedQuery(ctx context.Context, query string) ([]float64, error)

	// Name 返回提供者名称.
	Name() string

	// Dimensions 返回默认嵌入维度.
	Dimensions() int
}
