// Package store 持久化 passage 级的效用统计, 支撑效用感知重排的学习闭环。
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/harborai/helmsman/internal/database"
)

// =============================================================================
// 🗄️ 效用分存储
// =============================================================================

// UtilityScore 是 (passage, 查询类别) 维度的效用记录。
// 效用分由使用反馈按指数滑动平均更新, 新记录以中性值 0.5 起步。
// UseCount 统计全部反馈次数, SuccessCount 只统计正回报反馈,
// LastUsed 记录最近一次反馈时间, 供效用衰减与清理任务使用。
type UtilityScore struct {
	PassageID    string    `gorm:"primaryKey;size:128;column:passage_id" json:"passage_id"`
	Category     string    `gorm:"primaryKey;size:64;column:category" json:"category"`
	Utility      float64   `gorm:"column:utility;default:0.5" json:"utility"`
	UseCount     int64     `gorm:"column:use_count;default:0" json:"use_count"`
	SuccessCount int64     `gorm:"column:success_count;default:0" json:"success_count"`
	LastUsed     time.Time `gorm:"column:last_used" json:"last_used"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName 指定表名
func (UtilityScore) TableName() string { return "utility_scores" }

// Config 存储配置。
type Config struct {
	// 数据库驱动: postgres / mysql / sqlite
	Driver   string `yaml:"driver" json:"driver"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Name     string `yaml:"name" json:"name"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
	SSLMode  string `yaml:"ssl_mode" json:"ssl_mode"`

	// EMA 学习率, 单次反馈对效用分的拉动幅度
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate"`

	// 连接池配置
	Pool database.PoolConfig `yaml:"pool" json:"pool"`
}

// DefaultConfig 返回默认存储配置。
func DefaultConfig() Config {
	return Config{
		Driver:       "sqlite",
		Name:         "helmsman.db",
		LearningRate: 0.1,
		Pool:         database.DefaultPoolConfig(),
	}
}

// seedUtility 是首次反馈前的隐含效用基线。
// 首条反馈等价于对基线做一次 EMA 拉动, 与后续更新共用同一公式。
const seedUtility = 0.5

// Store 基于 GORM 的效用分存储。
type Store struct {
	db     *gorm.DB
	pool   *database.PoolManager
	lr     float64
	logger *zap.Logger
}

// Open 按配置的方言打开数据库并初始化连接池。
func Open(cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pool, err := database.NewPoolManager(db, cfg.Pool, logger)
	if err != nil {
		return nil, fmt.Errorf("init connection pool: %w", err)
	}

	return New(db, cfg.LearningRate, logger).withPool(pool), nil
}

// New 基于既有 gorm.DB 创建存储, 供测试注入 sqlmock 或内存库。
func New(db *gorm.DB, learningRate float64, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if learningRate <= 0 || learningRate >= 1 {
		learningRate = DefaultConfig().LearningRate
	}
	return &Store{
		db:     db,
		lr:     learningRate,
		logger: logger.With(zap.String("component", "utility_store")),
	}
}

func (s *Store) withPool(pool *database.PoolManager) *Store {
	s.pool = pool
	return s
}

func dialectorFor(cfg Config) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "postgres", "postgresql":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, orDefault(cfg.SSLMode, "disable"))
		return postgres.Open(dsn), nil
	case "mysql", "mariadb":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true&loc=Local",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)
		return mysql.Open(dsn), nil
	case "sqlite", "sqlite3":
		return sqlite.Open(cfg.Name), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// GetUtilities 批量读取一组 passage 在指定类别下的效用分。
// 返回的 map 只含有记录的 passage, 缺席项由调用方按中性处理。
func (s *Store) GetUtilities(ctx context.Context, passageIDs []string, category string) (map[string]float64, error) {
	if len(passageIDs) == 0 {
		return map[string]float64{}, nil
	}

	var rows []UtilityScore
	err := s.db.WithContext(ctx).
		Where("passage_id IN ? AND category = ?", passageIDs, category).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query utilities: %w", err)
	}

	out := make(map[string]float64, len(rows))
	for _, row := range rows {
		out[row.PassageID] = row.Utility
	}
	return out, nil
}

// RecordFeedback 按 EMA 公式更新效用分: new = (1-lr)*old + lr*reward。
// 插入与更新合并为单条 upsert, 并发反馈不会丢失计数;
// 首条反馈落库为对基线 0.5 的一次拉动。reward 越界时截断到 [0,1]。
// 使用计数每次反馈都加一, 成功计数只在 reward > 0 时加一。
func (s *Store) RecordFeedback(ctx context.Context, passageID, category string, reward float64) error {
	if passageID == "" || category == "" {
		return fmt.Errorf("passage id and category are required")
	}
	if reward < 0 {
		reward = 0
	} else if reward > 1 {
		reward = 1
	}

	var success int64
	if reward > 0 {
		success = 1
	}

	now := time.Now()
	row := UtilityScore{
		PassageID:    passageID,
		Category:     category,
		Utility:      (1-s.lr)*seedUtility + s.lr*reward,
		UseCount:     1,
		SuccessCount: success,
		LastUsed:     now,
	}

	upsert := func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "passage_id"}, {Name: "category"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"utility":       gorm.Expr("utility * ? + ?", 1-s.lr, s.lr*reward),
				"use_count":     gorm.Expr("use_count + 1"),
				"success_count": gorm.Expr("success_count + ?", success),
				"last_used":     now,
				"updated_at":    now,
			}),
		}).Create(&row).Error
	}

	// 并发反馈命中同一行时 postgres 可能死锁, 经连接池走重试事务
	var err error
	if s.pool != nil {
		err = s.pool.WithTransactionRetry(ctx, feedbackRetries, upsert)
	} else {
		err = upsert(s.db.WithContext(ctx))
	}
	if err != nil {
		return fmt.Errorf("record feedback: %w", err)
	}
	return nil
}

// feedbackRetries 是反馈 upsert 遇到瞬态冲突时的最大重试次数。
const feedbackRetries = 3

// Stats 效用库统计信息。
type Stats struct {
	Records        int64   `json:"records"`
	Categories     int64   `json:"categories"`
	TotalUses      int64   `json:"total_uses"`
	TotalSuccesses int64   `json:"total_successes"`
	MeanUtility    float64 `json:"mean_utility"`
}

// GetStats 汇总效用库的整体状态, 供运维面板使用。
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	db := s.db.WithContext(ctx).Model(&UtilityScore{})

	if err := db.Count(&stats.Records).Error; err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	if stats.Records == 0 {
		return stats, nil
	}

	row := struct {
		Categories     int64
		TotalUses      int64
		TotalSuccesses int64
		MeanUtility    float64
	}{}
	err := s.db.WithContext(ctx).Model(&UtilityScore{}).
		Select("COUNT(DISTINCT category) AS categories, SUM(use_count) AS total_uses, SUM(success_count) AS total_successes, AVG(utility) AS mean_utility").
		Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate stats: %w", err)
	}

	stats.Categories = row.Categories
	stats.TotalUses = row.TotalUses
	stats.TotalSuccesses = row.TotalSuccesses
	stats.MeanUtility = row.MeanUtility
	return stats, nil
}

// Ping 检查数据库连接。
func (s *Store) Ping(ctx context.Context) error {
	if s.pool != nil {
		return s.pool.Ping(ctx)
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭底层连接。
func (s *Store) Close() error {
	if s.pool != nil {
		return s.pool.Close()
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
