package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/harborai/helmsman/api/handlers"
	"github.com/harborai/helmsman/config"
	"github.com/harborai/helmsman/embedding"
	"github.com/harborai/helmsman/internal/cache"
	"github.com/harborai/helmsman/internal/database"
	"github.com/harborai/helmsman/internal/metrics"
	"github.com/harborai/helmsman/internal/server"
	"github.com/harborai/helmsman/internal/telemetry"
	"github.com/harborai/helmsman/rerankservice"
	"github.com/harborai/helmsman/retrieval"
	"github.com/harborai/helmsman/store"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 Helmsman 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// Handlers
	healthHandler   *handlers.HealthHandler
	retrieveHandler *handlers.RetrieveHandler
	feedbackHandler *handlers.FeedbackHandler

	// 检索流水线依赖
	engine       *retrieval.Engine
	cacheManager *cache.Manager
	utilityStore *store.Store
	recorder     *store.AsyncRecorder

	// 指标收集器与遥测
	metricsCollector *metrics.Collector
	otelProviders    *telemetry.Providers

	wg sync.WaitGroup
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers) *Server {
	return &Server{
		cfg:           cfg,
		logger:        logger,
		otelProviders: otelProviders,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 初始化指标收集器
	s.metricsCollector = metrics.NewCollector("helmsman", s.logger)

	// 2. 装配检索流水线
	if err := s.initPipeline(); err != nil {
		return fmt.Errorf("failed to init retrieval pipeline: %w", err)
	}

	// 3. 初始化 Handlers
	s.initHandlers()

	// 4. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 5. 启动 Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)

	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initPipeline 装配检索引擎及其外部依赖。
// 缓存与效用存储属于可选依赖, 连接失败只降级不阻断启动;
// 三路检索后端按配置的 base_url 逐一启用。
func (s *Server) initPipeline() error {
	// 结果缓存（Redis）
	if s.cfg.Redis.Enabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.Addr = s.cfg.Redis.Addr
		cacheCfg.Password = s.cfg.Redis.Password
		cacheCfg.DB = s.cfg.Redis.DB
		if s.cfg.Redis.PoolSize > 0 {
			cacheCfg.PoolSize = s.cfg.Redis.PoolSize
		}
		if s.cfg.Redis.MinIdleConns > 0 {
			cacheCfg.MinIdleConns = s.cfg.Redis.MinIdleConns
		}

		manager, err := cache.NewManager(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn("Redis not available, result cache disabled", zap.Error(err))
		} else {
			s.cacheManager = manager
		}
	}

	// 效用存储（gorm）
	if s.cfg.Database.Driver != "" {
		storeCfg := store.Config{
			Driver:       s.cfg.Database.Driver,
			Host:         s.cfg.Database.Host,
			Port:         s.cfg.Database.Port,
			Name:         s.cfg.Database.Name,
			User:         s.cfg.Database.User,
			Password:     s.cfg.Database.Password,
			SSLMode:      s.cfg.Database.SSLMode,
			LearningRate: s.cfg.Feedback.LearningRate,
			Pool: database.PoolConfig{
				MaxIdleConns:    s.cfg.Database.MaxIdleConns,
				MaxOpenConns:    s.cfg.Database.MaxOpenConns,
				ConnMaxLifetime: s.cfg.Database.ConnMaxLifetime,
			},
		}

		utilityStore, err := store.Open(storeCfg, s.logger)
		if err != nil {
			s.logger.Warn("Utility store not available, feedback disabled", zap.Error(err))
		} else {
			s.utilityStore = utilityStore

			recorder, err := store.NewAsyncRecorder(utilityStore, store.AsyncRecorderConfig{
				Workers:      s.cfg.Feedback.Workers,
				WriteTimeout: s.cfg.Feedback.WriteTimeout,
			}, s.metricsCollector, s.logger)
			if err != nil {
				s.logger.Warn("Failed to create feedback recorder", zap.Error(err))
			} else {
				s.recorder = recorder
			}
		}
	}

	// 三路检索后端
	var vector *retrieval.VectorBackend
	if s.cfg.Backends.Vector.BaseURL != "" {
		if s.cfg.Embedding.APIKey == "" {
			s.logger.Warn("Embedding API key not configured, vector backend disabled")
		} else {
			embedder := embedding.NewOpenAIProvider(s.cfg.Embedding)
			vector = retrieval.NewVectorBackend(s.cfg.Backends.Vector, embedder, s.logger)
		}
	}

	var lexical *retrieval.LexicalBackend
	if s.cfg.Backends.Lexical.BaseURL != "" {
		lexical = retrieval.NewLexicalBackend(s.cfg.Backends.Lexical, s.logger)
	}

	var graph *retrieval.GraphBackend
	if s.cfg.Backends.Graph.BaseURL != "" {
		graph = retrieval.NewGraphBackend(s.cfg.Backends.Graph, s.logger)
	}

	// 重排级联: 交叉编码重排 → 效用感知重排
	var rerankers []retrieval.Reranker
	if s.cfg.Rerank.APIKey != "" {
		provider := rerankservice.NewHTTPProvider(s.cfg.Rerank)
		rerankers = append(rerankers,
			retrieval.NewCrossEncoderReranker(provider, s.cfg.Retrieval.CrossEncoder, s.logger))
	} else {
		s.logger.Info("Rerank API key not configured, cross-encoder stage disabled")
	}
	if s.utilityStore != nil {
		rerankers = append(rerankers,
			retrieval.NewUtilityReranker(s.utilityStore, s.cfg.Retrieval.Utility, s.logger))
	}

	deps := retrieval.Dependencies{
		Vector:    vector,
		Lexical:   lexical,
		Graph:     graph,
		Rerankers: rerankers,
		Metrics:   s.metricsCollector,
		Logger:    s.logger,
	}
	if s.cacheManager != nil {
		deps.Cache = s.cacheManager
	}

	engine, err := retrieval.NewEngine(s.cfg.Retrieval, deps)
	if err != nil {
		return err
	}
	s.engine = engine

	return nil
}

// initHandlers 初始化所有 handlers
func (s *Server) initHandlers() {
	// 健康检查 handler。效用库与结果缓存掉线只降级不摘除,
	// 与检索引擎的降级策略保持一致
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	if s.utilityStore != nil {
		s.healthHandler.RegisterOptionalCheck(handlers.NewPingCheck("utility_store", s.utilityStore.Ping))
	}
	if s.cacheManager != nil {
		s.healthHandler.RegisterOptionalCheck(handlers.NewPingCheck("result_cache", s.cacheManager.Ping))
	}

	// 检索 handler
	s.retrieveHandler = handlers.NewRetrieveHandler(s.engine, s.cfg.Server.WriteTimeout, s.logger)

	// 效用反馈 handler
	if s.recorder != nil {
		s.feedbackHandler = handlers.NewFeedbackHandler(s.recorder, s.logger)
	} else {
		s.feedbackHandler = handlers.NewFeedbackHandler(nil, s.logger)
	}

	s.logger.Info("Handlers initialized")
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// ========================================
	// 健康检查端点
	// ========================================
	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)

	// 版本信息端点
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// ========================================
	// API 路由
	// ========================================
	mux.HandleFunc("/v1/retrieve", s.retrieveHandler.HandleRetrieve)
	mux.HandleFunc("/v1/feedback", s.feedbackHandler.HandleFeedback)

	// ========================================
	// 构建中间件链
	// ========================================
	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		OTelTracing(),
	)

	// ========================================
	// 使用 internal/server.Manager
	// ========================================
	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout, // 2x ReadTimeout
		MaxHeaderBytes:  1 << 20,                      // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager("api", handler, serverConfig, s.logger)

	// 启动服务器（非阻塞）
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager("metrics", mux, serverConfig, s.logger)

	// 启动服务器（非阻塞）
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	// httpManager 的 WaitForShutdown 会监听信号
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}

	// 执行清理
	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	// 1. 关闭 HTTP 服务器
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 2. 关闭 Metrics 服务器
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// 3. 停止反馈记录器, 等待在途写入
	if s.recorder != nil {
		s.recorder.Close()
	}

	// 4. 关闭效用存储
	if s.utilityStore != nil {
		if err := s.utilityStore.Close(); err != nil {
			s.logger.Error("Utility store shutdown error", zap.Error(err))
		}
	}

	// 5. 关闭结果缓存
	if s.cacheManager != nil {
		if err := s.cacheManager.Close(); err != nil {
			s.logger.Error("Result cache shutdown error", zap.Error(err))
		}
	}

	// 6. 关闭遥测
	if s.otelProviders != nil {
		if err := s.otelProviders.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	// 7. 等待所有 goroutine 完成
	s.wg.Wait()

	s.logger.Info("Graceful shutdown completed")
}
