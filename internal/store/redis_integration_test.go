//go:build integration
// +build integration

package store

import (
	"context"
	"os"
	"testing"
	"time"

	"wisefido-schedule/internal/domain"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func getTestRedis(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestRedisWorkerLocker_TimesOutWhileHeld(t *testing.T) {
	client := getTestRedis(t)
	defer client.Close()

	l := NewRedisWorkerLocker(client, 5*time.Second, 200*time.Millisecond, zap.NewNop())
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "it-tenant", "aux-1")
	require.NoError(t, err)

	_, err = l.Lock(ctx, "it-tenant", "aux-1")
	assert.ErrorIs(t, err, ErrLockTimeout)

	unlock()
	again, err := l.Lock(ctx, "it-tenant", "aux-1")
	require.NoError(t, err)
	again()
}

func TestRedisSeriesPublisher_AppendsToStream(t *testing.T) {
	client := getTestRedis(t)
	defer client.Close()

	ctx := context.Background()
	stream := "schedule:series-events:it"
	defer client.Del(ctx, stream)

	p := NewRedisSeriesPublisher(client, stream)
	err := p.PublishSeriesEvent(ctx, domain.SeriesEvent{
		Action:   domain.SeriesActionCreated,
		TenantID: "it-tenant",
		GroupID:  "g1",
		EventIDs: []string{"e1", "e2"},
	})
	require.NoError(t, err)

	n, err := client.XLen(ctx, stream).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
