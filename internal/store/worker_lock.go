package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	rediscommon "owl-common/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrLockTimeout 在等待时间内未能获取护理员排班锁
var ErrLockTimeout = errors.New("timed out waiting for auxiliary schedule lock")

// WorkerLocker 按护理员串行化“冲突检查 + 写入”
// 返回的 unlock 必须调用（可重复调用）
type WorkerLocker interface {
	Lock(ctx context.Context, tenantID string, auxiliaryIDs ...string) (unlock func(), err error)
}

// lockKeys 去重、去空并排序，保证多把锁的获取顺序一致（避免死锁）
func lockKeys(tenantID string, auxiliaryIDs []string) []string {
	seen := map[string]bool{}
	keys := make([]string, 0, len(auxiliaryIDs))
	for _, id := range auxiliaryIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		keys = append(keys, fmt.Sprintf("schedule:lock:%s:%s", tenantID, id))
	}
	sort.Strings(keys)
	return keys
}

// ============================================
// Redis 实现（多实例部署）
// ============================================

// RedisWorkerLocker 基于 SET NX PX 的分布式锁
type RedisWorkerLocker struct {
	client   *redis.Client
	ttl      time.Duration // 锁自动过期时间，防止进程崩溃后死锁
	wait     time.Duration // 最长等待时间
	interval time.Duration // 重试间隔
	logger   *zap.Logger
}

// NewRedisWorkerLocker 创建 Redis 排班锁
func NewRedisWorkerLocker(client *redis.Client, ttl, wait time.Duration, logger *zap.Logger) *RedisWorkerLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if wait <= 0 {
		wait = 10 * time.Second
	}
	return &RedisWorkerLocker{
		client:   client,
		ttl:      ttl,
		wait:     wait,
		interval: 50 * time.Millisecond,
		logger:   logger,
	}
}

// Lock 依次获取所有护理员的锁；任一失败则释放已获取的锁
func (l *RedisWorkerLocker) Lock(ctx context.Context, tenantID string, auxiliaryIDs ...string) (func(), error) {
	keys := lockKeys(tenantID, auxiliaryIDs)
	tokens := make(map[string]string, len(keys))

	release := func() {
		// 使用独立 context：调用方 ctx 可能已取消，但锁仍需释放
		relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for key, token := range tokens {
			if err := rediscommon.Unlock(relCtx, l.client, key, token); err != nil {
				l.logger.Warn("Failed to release auxiliary lock", zap.String("key", key), zap.Error(err))
			}
			delete(tokens, key)
		}
	}

	deadline := time.Now().Add(l.wait)
	for _, key := range keys {
		for {
			token, ok, err := rediscommon.TryLock(ctx, l.client, key, l.ttl)
			if err != nil {
				release()
				return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
			}
			if ok {
				tokens[key] = token
				break
			}
			if time.Now().After(deadline) {
				release()
				return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
			}
			select {
			case <-ctx.Done():
				release()
				return nil, ctx.Err()
			case <-time.After(l.interval):
			}
		}
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}

// ============================================
// 进程内实现（单实例 / 测试）
// ============================================

// LocalWorkerLocker 进程内按 key 加锁
type LocalWorkerLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewLocalWorkerLocker 创建进程内排班锁
func NewLocalWorkerLocker() *LocalWorkerLocker {
	return &LocalWorkerLocker{locks: map[string]chan struct{}{}}
}

func (l *LocalWorkerLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	return ch
}

// Lock 依次获取所有护理员的锁，支持 ctx 取消
func (l *LocalWorkerLocker) Lock(ctx context.Context, tenantID string, auxiliaryIDs ...string) (func(), error) {
	keys := lockKeys(tenantID, auxiliaryIDs)
	held := make([]chan struct{}, 0, len(keys))

	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
		held = held[:0]
	}

	for _, key := range keys {
		ch := l.slot(key)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}
