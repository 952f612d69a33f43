package retrieval

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Backend 是单路检索信号源。三个实现分别封装向量、全文与图谱后端。
//
// 失败策略: 后端内部任何错误都在适配器边界折算成空结果,
// 单路信号缺失只降低召回, 不允许拖垮整条查询。
type Backend interface {
	// Name 返回后端名称, 用于日志与指标
	Name() string

	// Signal 返回该后端贡献的信号标记
	Signal() Signal

	// Search 执行检索, 返回带分结果
	Search(ctx context.Context, q *QueryContext, topK int) ([]ScoredPassage, error)
}

// backendResult 是一路后端的扇出产物。
type backendResult struct {
	signal   Signal
	passages []ScoredPassage
}

// fanOut 并发查询全部后端并汇合结果。
// 三路调用彼此独立, 单路报错只记日志并以空结果顶位,
// ctx 取消时在途调用随 errgroup 派生的子 ctx 一并终止。
func fanOut(ctx context.Context, backends []Backend, q *QueryContext, topK int, timeout time.Duration, logger *zap.Logger) []backendResult {
	results := make([]backendResult, len(backends))

	g, gctx := errgroup.WithContext(ctx)
	for i, b := range backends {
		g.Go(func() error {
			callCtx := gctx
			if timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(gctx, timeout)
				defer cancel()
			}

			start := time.Now()
			passages, err := b.Search(callCtx, q, topK)
			if err != nil {
				logger.Warn("backend search failed, degrading to empty result",
					zap.String("backend", b.Name()),
					zap.Duration("elapsed", time.Since(start)),
					zap.Error(err))
				results[i] = backendResult{signal: b.Signal()}
				return nil
			}
			results[i] = backendResult{signal: b.Signal(), passages: passages}
			return nil
		})
	}
	_ = g.Wait() // goroutine 永远返回 nil, 只等待汇合

	return results
}

// ====== 共享 HTTP 辅助 ======

// doJSON 发送 JSON 请求并解码 JSON 响应, 三个 REST 适配器共用。
func doJSON(ctx context.Context, client *http.Client, method, url string, headers map[string]string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(snippet))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func basicAuth(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}
