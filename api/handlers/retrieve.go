package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/harborai/helmsman/api"
	"github.com/harborai/helmsman/retrieval"
	"github.com/harborai/helmsman/types"
	"go.uber.org/zap"
)

// =============================================================================
// 🔍 检索接口 Handler
// =============================================================================

// Retriever 检索引擎接口, 由 retrieval.Engine 实现
type Retriever interface {
	RetrieveWithOptions(ctx context.Context, query string, opts retrieval.Options) *retrieval.Result
}

// RetrieveHandler 检索接口处理器
type RetrieveHandler struct {
	engine  Retriever
	timeout time.Duration
	logger  *zap.Logger
}

// NewRetrieveHandler 创建检索处理器
func NewRetrieveHandler(engine Retriever, timeout time.Duration, logger *zap.Logger) *RetrieveHandler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RetrieveHandler{
		engine:  engine,
		timeout: timeout,
		logger:  logger,
	}
}

// HandleRetrieve 处理检索请求
// @Summary 法规检索
// @Description 对海事法规语料执行多信号混合检索, 返回重排后的候选段落
// @Tags 检索
// @Accept json
// @Produce json
// @Param request body api.RetrieveRequest true "检索请求"
// @Success 200 {object} api.RetrieveResponse "检索响应"
// @Failure 400 {object} Response "无效请求"
// @Failure 500 {object} Response "内部错误"
// @Router /v1/retrieve [post]
func (h *RetrieveHandler) HandleRetrieve(w http.ResponseWriter, r *http.Request) {
	// 验证 Content-Type
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	// 解码请求
	var req api.RetrieveRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	// 验证请求
	if err := h.validateRetrieveRequest(&req); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	// 设置超时
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	// 执行检索流水线
	start := time.Now()
	result := h.engine.RetrieveWithOptions(ctx, req.Query, retrieval.Options{
		TopK:     req.TopK,
		Strategy: retrieval.Strategy(req.Strategy),
		Intent:   retrieval.Intent(req.QueryIntent),
		ShipType: req.ShipType,
	})
	duration := time.Since(start)

	// 记录日志
	h.logger.Info("retrieve completed",
		zap.String("trace_id", req.TraceID),
		zap.String("intent", string(result.Query.Intent)),
		zap.String("strategy", string(result.Query.Strategy)),
		zap.Int("candidates", len(result.Candidates)),
		zap.Strings("degraded", result.Degraded),
		zap.Bool("from_cache", result.FromCache),
		zap.Duration("duration", duration),
	)

	WriteSuccess(w, api.NewRetrieveResponse(result))
}

// validateRetrieveRequest 验证检索请求
func (h *RetrieveHandler) validateRetrieveRequest(req *api.RetrieveRequest) *types.Error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return types.NewError(types.ErrInvalidRequest, "query is required")
	}

	if len([]rune(req.Query)) > maxQueryRunes {
		return types.NewError(types.ErrInvalidRequest, "query is too long")
	}

	if req.TopK < 0 {
		return types.NewError(types.ErrInvalidRequest, "top_k must be non-negative")
	}

	if !validStrategies[req.Strategy] {
		return types.NewError(types.ErrInvalidRequest,
			"strategy must be one of: auto, hybrid, semantic, keyword")
	}

	if !validIntents[req.QueryIntent] {
		return types.NewError(types.ErrInvalidRequest, "unknown query_intent")
	}

	return nil
}

// maxQueryRunes 查询文本长度上限, 超出部分几乎必然是误用
const maxQueryRunes = 512

// 空串表示交给服务端裁决
var validStrategies = map[string]bool{
	"":                                 true,
	string(retrieval.StrategyAuto):     true,
	string(retrieval.StrategyHybrid):   true,
	string(retrieval.StrategySemantic): true,
	string(retrieval.StrategyKeyword):  true,
}

var validIntents = map[string]bool{
	"":                                    true,
	string(retrieval.IntentApplicability): true,
	string(retrieval.IntentSpecification): true,
	string(retrieval.IntentProcedure):     true,
	string(retrieval.IntentComparison):    true,
	string(retrieval.IntentDefinition):    true,
	string(retrieval.IntentGeneral):       true,
}
