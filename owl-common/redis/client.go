package redis

import (
	"context"
	"fmt"
	"time"

	"owl-common/config"

	"github.com/go-redis/redis/v8"
)

// Client Redis客户端类型别名
type Client = redis.Client

const defaultDialTimeout = 5 * time.Second

// NewRedisClient 创建Redis客户端
// 锁与 stream 写入都在请求路径上，读写超时保持较短
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize, // 0 使用 go-redis 默认值
		DialTimeout:  dialTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   1,
	})
}

// Ping 测试Redis连接
func Ping(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", client.Options().Addr, err)
	}
	return nil
}

// Close 关闭Redis连接（nil 安全）
func Close(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
