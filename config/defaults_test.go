package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- DefaultConfig aggregate ---

func TestDefaultConfig_ContainsAllSubConfigs(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	// Each sub-config should be non-zero
	assert.NotEqual(t, ServerConfig{}, cfg.Server)
	assert.NotEqual(t, RedisConfig{}, cfg.Redis)
	assert.NotEqual(t, DatabaseConfig{}, cfg.Database)
	assert.NotEqual(t, BackendsConfig{}, cfg.Backends)
	assert.NotEqual(t, FeedbackConfig{}, cfg.Feedback)
	assert.NotEqual(t, LogConfig{}, cfg.Log)
	assert.NotEqual(t, TelemetryConfig{}, cfg.Telemetry)
	assert.NotEmpty(t, cfg.Embedding.Model)
	assert.NotEmpty(t, cfg.Rerank.Model)
	assert.Greater(t, cfg.Retrieval.RRFOffset, 0.0)
}

// --- Individual Default*Config functions ---

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 9091, cfg.MetricsPort)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
}

func TestDefaultRedisConfig(t *testing.T) {
	cfg := DefaultRedisConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Empty(t, cfg.Password)
	assert.Equal(t, 0, cfg.DB)
	assert.Equal(t, 10, cfg.PoolSize)
	assert.Equal(t, 2, cfg.MinIdleConns)
}

func TestDefaultDatabaseConfig(t *testing.T) {
	cfg := DefaultDatabaseConfig()
	assert.Equal(t, "sqlite", cfg.Driver)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "helmsman", cfg.User)
	assert.Empty(t, cfg.Password)
	assert.Equal(t, "helmsman.db", cfg.Name)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, 25, cfg.MaxOpenConns)
	assert.Equal(t, 5, cfg.MaxIdleConns)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxLifetime)
}

func TestDefaultBackendsConfig(t *testing.T) {
	cfg := DefaultBackendsConfig()

	assert.Equal(t, "http://localhost:6333", cfg.Vector.BaseURL)
	assert.Equal(t, "maritime_passages", cfg.Vector.Collection)
	assert.Equal(t, 8*time.Second, cfg.Vector.Timeout)

	assert.Equal(t, "http://localhost:9200", cfg.Lexical.BaseURL)
	assert.Equal(t, "maritime_passages", cfg.Lexical.Index)
	assert.Equal(t, 8*time.Second, cfg.Lexical.Timeout)

	assert.Equal(t, "http://localhost:7474", cfg.Graph.BaseURL)
	assert.Equal(t, "neo4j", cfg.Graph.Database)
	assert.Equal(t, 10, cfg.Graph.MaxRelations)
	assert.Equal(t, 8*time.Second, cfg.Graph.Timeout)
}

func TestDefaultFeedbackConfig(t *testing.T) {
	cfg := DefaultFeedbackConfig()
	assert.InDelta(t, 0.1, cfg.LearningRate, 0.001)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 5*time.Second, cfg.WriteTimeout)
}

func TestDefaultLogConfig(t *testing.T) {
	cfg := DefaultLogConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, []string{"stdout"}, cfg.OutputPaths)
	assert.True(t, cfg.EnableCaller)
	assert.False(t, cfg.EnableStacktrace)
}

func TestDefaultTelemetryConfig(t *testing.T) {
	cfg := DefaultTelemetryConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	assert.Equal(t, "helmsman", cfg.ServiceName)
	assert.InDelta(t, 0.1, cfg.SampleRate, 0.001)
}
