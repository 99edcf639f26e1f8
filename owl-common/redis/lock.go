package redis

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrLockNotHeld 释放锁时发现锁已过期或被其他持有者占用
var ErrLockNotHeld = errors.New("lock not held")

// 仅当 value 与持有者 token 一致时删除，防止误删他人的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// TryLock 尝试获取分布式锁（SET NX PX）
// 返回持有者 token；ok=false 表示锁已被占用
func TryLock(ctx context.Context, client *redis.Client, key string, ttl time.Duration) (token string, ok bool, err error) {
	token = uuid.NewString()
	ok, err = client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Unlock 释放分布式锁
func Unlock(ctx context.Context, client *redis.Client, key, token string) error {
	n, err := releaseScript.Run(ctx, client, []string{key}, token).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}
