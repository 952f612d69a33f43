package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/harborai/helmsman/api"
	"github.com/harborai/helmsman/types"
	"go.uber.org/zap"
)

// =============================================================================
// 📈 效用反馈 Handler
// =============================================================================

// Recorder 效用信号记录接口, 由 store.AsyncRecorder 实现
type Recorder interface {
	Record(passageID, category string, reward float64)
}

// FeedbackHandler 效用反馈处理器
type FeedbackHandler struct {
	recorder Recorder
	logger   *zap.Logger
}

// NewFeedbackHandler 创建反馈处理器
func NewFeedbackHandler(recorder Recorder, logger *zap.Logger) *FeedbackHandler {
	return &FeedbackHandler{
		recorder: recorder,
		logger:   logger,
	}
}

// HandleFeedback 处理效用反馈请求
// @Summary 效用反馈
// @Description 上报段落效用信号, 异步写入效用存储并按 EMA 更新
// @Tags 反馈
// @Accept json
// @Produce json
// @Param request body api.FeedbackRequest true "反馈请求"
// @Success 202 {object} api.FeedbackResponse "反馈已受理"
// @Failure 400 {object} Response "无效请求"
// @Failure 503 {object} Response "效用存储不可用"
// @Router /v1/feedback [post]
func (h *FeedbackHandler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	// 验证 Content-Type
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	// 解码请求
	var req api.FeedbackRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	// 验证请求
	if err := h.validateFeedbackRequest(&req); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	if h.recorder == nil {
		err := types.NewError(types.ErrStoreUnavailable, "utility store is not configured").
			WithRetryable(false)
		WriteError(w, err, h.logger)
		return
	}

	// 异步提交, 写入失败不影响响应
	h.recorder.Record(req.PassageID, req.Category, req.Reward)

	h.logger.Debug("feedback accepted",
		zap.String("passage_id", req.PassageID),
		zap.String("category", req.Category),
		zap.Float64("reward", req.Reward),
	)

	WriteJSON(w, http.StatusAccepted, api.FeedbackResponse{
		Accepted:   true,
		AcceptedAt: time.Now().UTC(),
	})
}

// validateFeedbackRequest 验证反馈请求
func (h *FeedbackHandler) validateFeedbackRequest(req *api.FeedbackRequest) *types.Error {
	req.PassageID = strings.TrimSpace(req.PassageID)
	if req.PassageID == "" {
		return types.NewError(types.ErrInvalidRequest, "passage_id is required")
	}

	if req.Reward < 0 || req.Reward > 1 {
		return types.NewError(types.ErrInvalidRequest, "reward must be between 0 and 1")
	}

	// 未指定类别时归为通用类别
	req.Category = strings.TrimSpace(req.Category)
	if req.Category == "" {
		req.Category = "general"
	}

	return nil
}
