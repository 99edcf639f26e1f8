package store

import (
	"context"
	"fmt"

	"wisefido-schedule/internal/domain"

	rediscommon "owl-common/redis"

	"github.com/go-redis/redis/v8"
)

// 单条 stream 保留的大致消息数
const seriesStreamMaxLen = 10000

// RedisSeriesPublisher 将系列变更发布到 Redis Streams
type RedisSeriesPublisher struct {
	client *redis.Client
	stream string
}

// NewRedisSeriesPublisher 创建系列变更发布器（stream 如 "schedule:series-events"）
func NewRedisSeriesPublisher(client *redis.Client, stream string) *RedisSeriesPublisher {
	return &RedisSeriesPublisher{client: client, stream: stream}
}

// PublishSeriesEvent 发布系列变更
func (p *RedisSeriesPublisher) PublishSeriesEvent(ctx context.Context, event domain.SeriesEvent) error {
	if _, err := rediscommon.PublishJSONToStream(ctx, p.client, p.stream, event, seriesStreamMaxLen); err != nil {
		return fmt.Errorf("failed to publish series event to %s: %w", p.stream, err)
	}
	return nil
}
