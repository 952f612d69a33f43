package store

import (
	"context"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/harborai/helmsman/internal/metrics"
)

// =============================================================================
// ⏩ 异步反馈写入
// =============================================================================

// AsyncRecorderConfig 配置异步反馈写入器。
type AsyncRecorderConfig struct {
	// 工作协程数
	Workers int `yaml:"workers" json:"workers"`
	// 单次写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// DefaultAsyncRecorderConfig 返回默认异步写入配置。
func DefaultAsyncRecorderConfig() AsyncRecorderConfig {
	return AsyncRecorderConfig{
		Workers:      4,
		WriteTimeout: 5 * time.Second,
	}
}

// AsyncRecorder 把效用反馈写入挪到协程池, 不阻塞查询响应路径。
// 写入是尽力而为: 池满或落库失败只记日志与指标, 反馈事件丢弃。
type AsyncRecorder struct {
	store   *Store
	pool    *ants.Pool
	cfg     AsyncRecorderConfig
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewAsyncRecorder 创建异步反馈写入器。collector 允许为 nil。
func NewAsyncRecorder(store *Store, cfg AsyncRecorderConfig, collector *metrics.Collector, logger *zap.Logger) (*AsyncRecorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultAsyncRecorderConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	pool, err := ants.NewPool(cfg.Workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}

	return &AsyncRecorder{
		store:   store,
		pool:    pool,
		cfg:     cfg,
		metrics: collector,
		logger:  logger.With(zap.String("component", "feedback_recorder")),
	}, nil
}

// Record 提交一条反馈事件。立即返回, 落库在池内完成。
func (r *AsyncRecorder) Record(passageID, category string, reward float64) {
	err := r.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.WriteTimeout)
		defer cancel()

		if err := r.store.RecordFeedback(ctx, passageID, category, reward); err != nil {
			r.logger.Warn("feedback write failed",
				zap.String("passage_id", passageID),
				zap.String("category", category),
				zap.Error(err))
			r.record(category, "error")
			return
		}
		r.record(category, "success")
	})
	if err != nil {
		// 池满或已关闭, 丢弃事件
		r.logger.Warn("feedback dropped", zap.String("passage_id", passageID), zap.Error(err))
		r.record(category, "dropped")
	}
}

func (r *AsyncRecorder) record(category, status string) {
	if r.metrics != nil {
		r.metrics.RecordFeedbackEvent(category, status)
	}
}

// Close 释放协程池, 在途任务完成后返回。
func (r *AsyncRecorder) Close() {
	r.pool.Release()
}
