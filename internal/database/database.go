// Package database 提供数据库连接和管理
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kebiao/kebiao/internal/config"
	"github.com/kebiao/kebiao/pkg/logger"

	_ "github.com/lib/pq" // PostgreSQL 驱动
)

// SlowQueryThreshold 慢查询阈值
const SlowQueryThreshold = 100 * time.Millisecond

// DB 数据库连接封装
type DB struct {
	*sqlx.DB
}

// New 创建新的数据库连接
func New(cfg *config.DatabaseConfig) (*DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("打开数据库连接失败: %w", err)
	}

	// 配置连接池
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("数据库连接测试失败: %w", err)
	}

	logger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Msg("数据库连接成功")

	return &DB{DB: db}, nil
}

// Wrap 包装已有连接（测试中配合 sqlmock 使用）
func Wrap(db *sql.DB) *DB {
	return &DB{DB: sqlx.NewDb(db, "postgres")}
}

// Close 关闭数据库连接
func (db *DB) Close() error {
	if db.DB != nil {
		logger.Info().Msg("关闭数据库连接")
		return db.DB.Close()
	}
	return nil
}

// Health 健康检查
func (db *DB) Health(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Transaction 执行事务，fn 返回错误或 panic 时回滚
func (db *DB) Transaction(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开始事务失败: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("事务回滚失败: %v (原始错误: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("事务提交失败: %w", err)
	}

	return nil
}

// Observe 记录慢查询
func Observe(query string, start time.Time) {
	duration := time.Since(start)
	if duration > SlowQueryThreshold {
		logger.Warn().
			Str("query", truncateQuery(query)).
			Dur("duration", duration).
			Msg("慢SQL查询")
	}
}

// truncateQuery 截断长查询
func truncateQuery(query string) string {
	if len(query) > 200 {
		return query[:200] + "..."
	}
	return query
}
