package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/harborai/helmsman/internal/cache"
	"github.com/harborai/helmsman/internal/metrics"
)

// =============================================================================
// 🔎 检索引擎
// =============================================================================

// Config 检索引擎配置。
type Config struct {
	// 查询增强配置
	Enhancer EnhancerConfig `yaml:"enhancer" json:"enhancer"`
	// 意图分类配置
	Classifier ClassifierConfig `yaml:"classifier" json:"classifier"`
	// 交叉编码重排配置
	CrossEncoder CrossEncoderConfig `yaml:"cross_encoder" json:"cross_encoder"`
	// 效用重排配置
	Utility UtilityConfig `yaml:"utility" json:"utility"`
	// 图谱扩展配置
	Expansion ExpansionConfig `yaml:"expansion" json:"expansion"`

	// RRF 融合的 rank 偏移
	RRFOffset float64 `yaml:"rrf_offset" json:"rrf_offset"`
	// 单路后端调用超时
	BackendTimeout time.Duration `yaml:"backend_timeout" json:"backend_timeout"`
	// 完整结果缓存 TTL, 0 表示不缓存
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
}

// DefaultConfig 返回默认引擎配置。
func DefaultConfig() Config {
	return Config{
		Enhancer:       DefaultEnhancerConfig(),
		Classifier:     DefaultClassifierConfig(),
		CrossEncoder:   DefaultCrossEncoderConfig(),
		Utility:        DefaultUtilityConfig(),
		Expansion:      DefaultExpansionConfig(),
		RRFOffset:      DefaultRRFOffset,
		BackendTimeout: 8 * time.Second,
		CacheTTL:       5 * time.Minute,
	}
}

// ResultCache 是完整检索结果的读写缓存。
// internal/cache 的 Manager 是生产实现, 缓存失效按未命中处理。
type ResultCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Dependencies 聚合引擎的外部协作方。
// Vector/Lexical/Graph 允许为 nil, 缺席的后端从对应策略中剔除;
// Cache 与 Metrics 为 nil 时相应能力静默关闭。
type Dependencies struct {
	Vector    *VectorBackend
	Lexical   *LexicalBackend
	Graph     *GraphBackend
	Rerankers []Reranker
	Cache     ResultCache
	Metrics   *metrics.Collector
	Logger    *zap.Logger
}

// Result 是一次检索调用的完整产出。
type Result struct {
	Query      QueryContext  `json:"query"`
	Candidates []Candidate   `json:"candidates"`
	Elapsed    time.Duration `json:"elapsed"`
	// 降级阶段列表, 空表示全链路正常
	Degraded []string `json:"degraded,omitempty"`
	// 是否直接命中结果缓存
	FromCache bool `json:"from_cache,omitempty"`
}

// Engine 把查询理解、多路检索、融合与重排级联串成一条管线。
// 任何外部依赖失效都降级处理, Retrieve 永不对调用方返回错误:
// 最坏情况是空候选列表加 Degraded 标记。
type Engine struct {
	cfg        Config
	enhancer   *QueryEnhancer
	router     *QueryRouter
	classifier *IntentClassifier
	expander   *GraphExpander

	vector    *VectorBackend
	lexical   *LexicalBackend
	graph     *GraphBackend
	rerankers []Reranker

	cache   ResultCache
	metrics *metrics.Collector
	tracer  trace.Tracer
	logger  *zap.Logger
}

// NewEngine 创建检索引擎。
func NewEngine(cfg Config, deps Dependencies) (*Engine, error) {
	if deps.Vector == nil && deps.Lexical == nil && deps.Graph == nil {
		return nil, fmt.Errorf("at least one search backend is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.RRFOffset <= 0 {
		cfg.RRFOffset = def.RRFOffset
	}
	if cfg.BackendTimeout <= 0 {
		cfg.BackendTimeout = def.BackendTimeout
	}

	e := &Engine{
		cfg:        cfg,
		enhancer:   NewQueryEnhancer(cfg.Enhancer, logger),
		router:     NewQueryRouter(logger),
		classifier: NewIntentClassifier(cfg.Classifier, logger),
		vector:     deps.Vector,
		lexical:    deps.Lexical,
		graph:      deps.Graph,
		rerankers:  deps.Rerankers,
		cache:      deps.Cache,
		metrics:    deps.Metrics,
		tracer:     otel.Tracer("github.com/harborai/helmsman/retrieval"),
		logger:     logger.With(zap.String("component", "retrieval_engine")),
	}

	if deps.Graph != nil && deps.Lexical != nil {
		e.expander = NewGraphExpander(deps.Graph, deps.Lexical, cfg.Expansion, logger)
	}

	logger.Info("retrieval engine initialized",
		zap.Bool("vector", deps.Vector != nil),
		zap.Bool("lexical", deps.Lexical != nil),
		zap.Bool("graph", deps.Graph != nil),
		zap.Int("rerankers", len(deps.Rerankers)),
		zap.Bool("cache", deps.Cache != nil),
	)
	return e, nil
}

// Options 是单次检索的调用方覆写项, 零值表示全部由引擎自行裁决。
type Options struct {
	// 结果预算基准, <=0 时使用分类器基准; 仍受自适应放宽与上限约束
	TopK int `json:"top_k,omitempty"`
	// 策略覆写, 空或 auto 时由路由器裁决, 其他取值不经路由直接生效
	Strategy Strategy `json:"strategy,omitempty"`
	// 意图覆写, 空时由分类器裁决
	Intent Intent `json:"intent,omitempty"`
	// 自由文本船型, 内部归一化到固定类别集
	ShipType string `json:"ship_type,omitempty"`
}

// Retrieve 执行一次完整检索, 策略、意图与预算全部由引擎自行裁决。
func (e *Engine) Retrieve(ctx context.Context, query string) *Result {
	return e.RetrieveWithOptions(ctx, query, Options{})
}

// RetrieveForShip 执行一次带显式船型的检索。
// shipType 接受自由文本, 内部归一化到固定类别集。
func (e *Engine) RetrieveForShip(ctx context.Context, query, shipType string) *Result {
	return e.RetrieveWithOptions(ctx, query, Options{ShipType: shipType})
}

// RetrieveWithOptions 执行一次带调用方覆写项的完整检索。
func (e *Engine) RetrieveWithOptions(ctx context.Context, query string, opts Options) *Result {
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, "retrieval.retrieve",
		trace.WithAttributes(attribute.Int("query.length", len(query))))
	defer span.End()

	result := &Result{}
	if query == "" {
		result.Elapsed = time.Since(start)
		return result
	}

	// ---- 缓存直达 ----
	cacheKey := e.cacheKey(query, opts)
	if e.cache != nil && e.cfg.CacheTTL > 0 {
		var cached Result
		if err := e.cache.GetJSON(ctx, cacheKey, &cached); err == nil {
			cached.FromCache = true
			cached.Elapsed = time.Since(start)
			e.recordCacheHit()
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return &cached
		} else if !cache.IsCacheMiss(err) {
			e.logger.Warn("result cache read failed", zap.Error(err))
		}
		e.recordCacheMiss()
	}

	// ---- 查询理解 ----
	q := e.understand(ctx, query, opts)
	result.Query = *q

	span.SetAttributes(
		attribute.String("query.strategy", string(q.Strategy)),
		attribute.String("query.intent", string(q.Intent)),
		attribute.Int("query.top_k", q.TopK),
	)

	// ---- 多路召回与融合 ----
	candidates := e.recall(ctx, q)
	fusedCount := len(candidates)

	// ---- 重排级联 ----
	candidates, degraded := e.rerank(ctx, q, candidates)
	result.Degraded = degraded

	// ---- 来源权威度 ----
	applySourceWeights(candidates)

	// ---- 图谱扩展 ----
	if e.expander != nil {
		candidates = e.expander.Expand(ctx, candidates, q.TopK)
	}

	// ---- 适用性过滤与截断 ----
	if q.Ship.Type != "" {
		candidates = FilterByShipType(candidates, q.Ship.Type, q.TopK)
	} else if len(candidates) > q.TopK {
		candidates = candidates[:q.TopK]
	}

	result.Candidates = candidates
	result.Elapsed = time.Since(start)

	if e.metrics != nil {
		status := "success"
		if len(degraded) > 0 {
			status = "degraded"
		}
		e.metrics.RecordRetrieval(string(q.Strategy), string(q.Intent), status,
			result.Elapsed, fusedCount)
	}

	if e.cache != nil && e.cfg.CacheTTL > 0 && len(degraded) == 0 {
		if err := e.cache.SetJSON(ctx, cacheKey, result, e.cfg.CacheTTL); err != nil {
			e.logger.Warn("result cache write failed", zap.Error(err))
		}
	}

	e.logger.Info("retrieval completed",
		zap.String("strategy", string(q.Strategy)),
		zap.String("intent", string(q.Intent)),
		zap.Int("candidates", len(candidates)),
		zap.Strings("degraded", degraded),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result
}

// understand 运行增强、路由与分类, 构建贯穿管线的查询上下文。
// 调用方覆写项优先于路由器与分类器的裁决: strategy 取已知的
// 非 auto 值时跳过路由策略, intent 非空时跳过意图分类,
// TopK 作为自适应放宽的基准参与计算。
func (e *Engine) understand(ctx context.Context, query string, opts Options) *QueryContext {
	_, span := e.tracer.Start(ctx, "retrieval.understand")
	defer span.End()

	enhanced, terms, regs := e.enhancer.Enhance(query)
	decision := e.router.Route(query)
	cls := e.classifier.Classify(query)

	q := &QueryContext{
		Original:      query,
		EnhancedQuery: enhanced,
		MatchedTerms:  terms,
		RegulationIDs: regs,
		Entities:      decision.Entities,
		Intent:        cls.Intent,
		Ship:          cls.Ship,
		Strategy:      decision.Strategy,
	}
	switch opts.Strategy {
	case StrategyHybrid, StrategySemantic, StrategyKeyword:
		q.Strategy = opts.Strategy
	}
	if opts.Intent != "" {
		q.Intent = opts.Intent
	}
	if opts.ShipType != "" {
		q.Ship.Type = NormalizeShipType(opts.ShipType)
	}
	q.TopK = e.classifier.EffectiveTopK(opts.TopK, query, q.Intent)
	return q
}

// recall 按策略选后端并发召回, RRF 融合。
// 融合池取 top-k 的两倍, 给重排级联留出重新洗牌的余量。
func (e *Engine) recall(ctx context.Context, q *QueryContext) []Candidate {
	ctx, span := e.tracer.Start(ctx, "retrieval.recall")
	defer span.End()

	backends := e.backendsFor(q.Strategy)
	if len(backends) == 0 {
		e.logger.Warn("no backend available for strategy",
			zap.String("strategy", string(q.Strategy)))
		return nil
	}

	poolSize := q.TopK * 2
	results := fanOut(ctx, backends, q, poolSize, e.cfg.BackendTimeout, e.logger)

	if e.metrics != nil {
		for i, br := range results {
			status := "success"
			if len(br.passages) == 0 {
				status = "empty"
			}
			e.metrics.RecordBackendRequest(backends[i].Name(), status, 0)
		}
	}

	candidates := fuseRRF(results, e.cfg.RRFOffset, poolSize)
	span.SetAttributes(attribute.Int("fused", len(candidates)))
	return candidates
}

// rerank 依次执行各重排阶段。
// 某一级失败只记入降级列表, 候选保持上一级的顺序进入下一级。
func (e *Engine) rerank(ctx context.Context, q *QueryContext, candidates []Candidate) ([]Candidate, []string) {
	var degraded []string
	for _, stage := range e.rerankers {
		stageStart := time.Now()
		ctx, span := e.tracer.Start(ctx, "retrieval.rerank."+stage.Name())

		reranked, err := stage.Rerank(ctx, q, candidates)
		status := "success"
		if err != nil {
			status = "degraded"
			degraded = append(degraded, stage.Name())
			e.logger.Warn("rerank stage degraded, keeping previous order",
				zap.String("stage", stage.Name()), zap.Error(err))
		} else {
			candidates = reranked
		}

		span.SetAttributes(attribute.String("status", status))
		span.End()
		if e.metrics != nil {
			e.metrics.RecordRerankStage(stage.Name(), status, time.Since(stageStart))
		}
	}
	return candidates, degraded
}

// backendsFor 返回策略对应的后端组合:
// semantic 只走向量, keyword 走全文+图谱, 其余按 hybrid 全开。
func (e *Engine) backendsFor(s Strategy) []Backend {
	var out []Backend
	add := func(b Backend, enabled bool) {
		if enabled {
			out = append(out, b)
		}
	}
	switch s {
	case StrategySemantic:
		add(e.vector, e.vector != nil)
	case StrategyKeyword:
		add(e.lexical, e.lexical != nil)
		add(e.graph, e.graph != nil)
	default:
		add(e.vector, e.vector != nil)
		add(e.lexical, e.lexical != nil)
		add(e.graph, e.graph != nil)
	}
	return out
}

// cacheKey 把查询与全部覆写项折叠进键, 不同覆写组合互不串缓存。
func (e *Engine) cacheKey(query string, opts Options) string {
	raw := fmt.Sprintf("%s\x00%s\x00%s\x00%s\x00%d",
		query, opts.ShipType, opts.Strategy, opts.Intent, opts.TopK)
	sum := sha256.Sum256([]byte(raw))
	return "helmsman:retrieve:" + hex.EncodeToString(sum[:16])
}

func (e *Engine) recordCacheHit() {
	if e.metrics != nil {
		e.metrics.RecordCacheHit("retrieval_result")
	}
}

func (e *Engine) recordCacheMiss() {
	if e.metrics != nil {
		e.metrics.RecordCacheMiss("retrieval_result")
	}
}
