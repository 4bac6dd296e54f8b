// Package cache 提供 Redis 连接和分布式锁
package cache

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kebiao/kebiao/internal/config"
	"github.com/kebiao/kebiao/pkg/logger"
)

// NewRedis 创建 Redis 连接并执行 Ping 健康检查
func NewRedis(cfg *config.RedisConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info().Str("addr", cfg.Addr()).Msg("Redis 连接成功")
	return client, nil
}
