// =============================================================================
// 📦 Helmsman 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import (
	"time"

	"github.com/harborai/helmsman/embedding"
	"github.com/harborai/helmsman/rerankservice"
	"github.com/harborai/helmsman/retrieval"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Log:       DefaultLogConfig(),
		Redis:     DefaultRedisConfig(),
		Database:  DefaultDatabaseConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Retrieval: retrieval.DefaultConfig(),
		Backends:  DefaultBackendsConfig(),
		Embedding: embedding.DefaultConfig(),
		Rerank:    rerankservice.DefaultConfig(),
		Feedback:  DefaultFeedbackConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:      false,
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "helmsman",
		Password:        "",
		Name:            "helmsman.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultBackendsConfig 返回默认后端配置
func DefaultBackendsConfig() BackendsConfig {
	return BackendsConfig{
		Vector: retrieval.VectorBackendConfig{
			BaseURL:    "http://localhost:6333",
			Collection: "maritime_passages",
			Timeout:    8 * time.Second,
		},
		Lexical: retrieval.LexicalBackendConfig{
			BaseURL: "http://localhost:9200",
			Index:   "maritime_passages",
			Timeout: 8 * time.Second,
		},
		Graph: retrieval.GraphBackendConfig{
			BaseURL:      "http://localhost:7474",
			Database:     "neo4j",
			Timeout:      8 * time.Second,
			MaxRelations: 10,
		},
	}
}

// DefaultFeedbackConfig 返回默认反馈配置
func DefaultFeedbackConfig() FeedbackConfig {
	return FeedbackConfig{
		LearningRate: 0.1,
		Workers:      4,
		WriteTimeout: 5 * time.Second,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "helmsman",
		SampleRate:   0.1,
	}
}
