// Package helmsman provides a top-level convenience entry point for building
// a retrieval engine with minimal boilerplate.
//
// Usage:
//
//	import "github.com/harborai/helmsman"
//
//	engine, err := helmsman.New(
//		helmsman.WithLexical(retrieval.LexicalBackendConfig{BaseURL: "http://localhost:9200", Index: "maritime_passages"}),
//	)
//	result := engine.Retrieve(ctx, "客船救生衣数量要求")
//
// This is a thin wrapper around [retrieval.NewEngine]; both produce identical
// results. Use this package when you prefer the shorter import path.
package helmsman

import (
	"go.uber.org/zap"

	"github.com/harborai/helmsman/embedding"
	"github.com/harborai/helmsman/rerankservice"
	"github.com/harborai/helmsman/retrieval"
)

// Option configures the engine created by [New].
type Option func(*builder)

type builder struct {
	cfg  retrieval.Config
	deps retrieval.Dependencies
}

// New creates a [retrieval.Engine] with minimal configuration.
// At minimum, one search backend must be specified via [WithVector],
// [WithLexical], or [WithGraph].
func New(opts ...Option) (*retrieval.Engine, error) {
	b := &builder{cfg: retrieval.DefaultConfig()}
	for _, opt := range opts {
		opt(b)
	}
	return retrieval.NewEngine(b.cfg, b.deps)
}

// WithConfig replaces the default engine configuration.
func WithConfig(cfg retrieval.Config) Option {
	return func(b *builder) { b.cfg = cfg }
}

// WithVector enables the semantic search backend. The embedder turns queries
// into vectors; see [embedding.NewOpenAIProvider].
func WithVector(cfg retrieval.VectorBackendConfig, embedder embedding.Provider) Option {
	return func(b *builder) {
		b.deps.Vector = retrieval.NewVectorBackend(cfg, embedder, b.deps.Logger)
	}
}

// WithLexical enables the full-text search backend.
func WithLexical(cfg retrieval.LexicalBackendConfig) Option {
	return func(b *builder) {
		b.deps.Lexical = retrieval.NewLexicalBackend(cfg, b.deps.Logger)
	}
}

// WithGraph enables the citation-graph search backend.
func WithGraph(cfg retrieval.GraphBackendConfig) Option {
	return func(b *builder) {
		b.deps.Graph = retrieval.NewGraphBackend(cfg, b.deps.Logger)
	}
}

// WithCrossEncoder appends a cross-encoder rerank stage backed by the given
// rerank service; see [rerankservice.NewHTTPProvider].
func WithCrossEncoder(svc rerankservice.Provider) Option {
	return func(b *builder) {
		b.deps.Rerankers = append(b.deps.Rerankers,
			retrieval.NewCrossEncoderReranker(svc, b.cfg.CrossEncoder, b.deps.Logger))
	}
}

// WithUtility appends a utility-aware rerank stage backed by the given reader,
// typically a [store.Store].
func WithUtility(reader retrieval.UtilityReader) Option {
	return func(b *builder) {
		b.deps.Rerankers = append(b.deps.Rerankers,
			retrieval.NewUtilityReranker(reader, b.cfg.Utility, b.deps.Logger))
	}
}

// WithCache enables full-result caching.
func WithCache(cache retrieval.ResultCache) Option {
	return func(b *builder) { b.deps.Cache = cache }
}

// WithLogger sets a custom zap logger. Pass it before backend options so the
// backends pick it up.
func WithLogger(logger *zap.Logger) Option {
	return func(b *builder) { b.deps.Logger = logger }
}
