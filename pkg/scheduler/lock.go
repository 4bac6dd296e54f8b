package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kebiao/kebiao/pkg/errors"
)

// ScopeLocker 课表范围的单写者锁
// 同一范围已有生成在进行时，TryLock 立即返回 GENERATION_IN_PROGRESS，不排队
type ScopeLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// MemoryLocker 进程内锁
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]time.Time // key -> 过期时间
	now  func() time.Time
}

// NewMemoryLocker 创建进程内锁
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		held: make(map[string]time.Time),
		now:  time.Now,
	}
}

// TryLock 尝试获取锁，ttl 为 0 表示不过期
func (l *MemoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if exp, ok := l.held[key]; ok && (exp.IsZero() || l.now().Before(exp)) {
		return nil, errors.GenerationInProgress(key)
	}

	var exp time.Time
	if ttl > 0 {
		exp = l.now().Add(ttl)
	}
	l.held[key] = exp

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if cur, ok := l.held[key]; ok && cur.Equal(exp) {
				delete(l.held, key)
			}
		})
	}, nil
}

// lockAll 按键排序依次加锁，任一失败时释放已获得的锁
func lockAll(ctx context.Context, locker ScopeLocker, keys []string, ttl time.Duration) (func(), error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	releases := make([]func(), 0, len(sorted))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, k := range sorted {
		release, err := locker.TryLock(ctx, k, ttl)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}
