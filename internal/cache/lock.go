package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/logger"
)

// 仅当值仍是自己的令牌时才删除，避免释放已过期后被他人获取的锁
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// lockClient Locker 用到的 Redis 命令
type lockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *goredis.Cmd
}

// Locker 基于 Redis 的范围锁，多实例部署时使用
type Locker struct {
	client lockClient
	prefix string
}

// NewLocker 创建 Redis 范围锁
func NewLocker(client lockClient, prefix string) *Locker {
	return &Locker{client: client, prefix: prefix}
}

// TryLock 使用 SET NX PX 获取锁，已被占用时返回 GENERATION_IN_PROGRESS
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()
	full := l.prefix + key

	ok, err := l.client.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "获取范围锁失败")
	}
	if !ok {
		return nil, errors.GenerationInProgress(key)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := l.client.Eval(ctx, releaseScript, []string{full}, token).Err(); err != nil {
			logger.Warn().Err(err).Str("key", full).Msg("释放范围锁失败，等待过期")
		}
	}, nil
}
