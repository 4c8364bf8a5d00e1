package redis

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 需要真实 Redis：STATION_TEST_REDIS=localhost:6379
func newTestCache(t *testing.T) *RedisCache {
	t.Helper()
	addr := os.Getenv("STATION_TEST_REDIS")
	if addr == "" {
		t.Skip("STATION_TEST_REDIS not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())
	rc := NewRedisCache(client, 2, 10)
	t.Cleanup(func() {
		rc.Close()
		_ = client.Close()
	})
	return rc
}

func TestRedisCache_SetGetDelete(t *testing.T) {
	rc := newTestCache(t)
	ctx := context.Background()
	key := MessageHistoryKey("test-" + time.Now().Format("150405.000"))

	v, err := rc.Get(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, rc.Set(ctx, key, "[]", time.Minute))
	v, err = rc.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	require.NoError(t, rc.Delete(ctx, key))
	require.NoError(t, rc.Delete(ctx, key))
	v, err = rc.Get(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestRedisCache_SubmitTask(t *testing.T) {
	// Worker Pool 不依赖 Redis 连接
	rc := NewRedisCache(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), 2, 1)
	var n atomic.Int32
	for i := 0; i < 10; i++ {
		rc.SubmitTask(func() { n.Add(1) })
	}
	rc.SubmitTask(func() { panic("boom") })
	rc.Close()
	assert.EqualValues(t, 10, n.Load())
}
