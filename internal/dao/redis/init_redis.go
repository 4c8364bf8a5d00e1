// Package redis 提供 Redis 缓存操作的封装
// 使用 github.com/redis/go-redis/v9 作为底层客户端
package redis

import (
	"context"
	"strconv"
	"time"

	"station_chat_server/internal/config"
	"station_chat_server/pkg/constants"
	"station_chat_server/pkg/errorx"

	"github.com/redis/go-redis/v9"
)

// Init 建立 Redis 连接并创建缓存服务
// 客户端同时返回给实时通道的 Redis 广播实现复用
func Init(conf *config.RedisConfig) (*redis.Client, *RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Host + ":" + strconv.Itoa(conf.Port),
		Password: conf.Password,
		DB:       conf.Db,
		// 连接池配置
		PoolSize:     50,
		MinIdleConns: conf.Workers,
	})

	ctx, cancel := context.WithTimeout(context.Background(), constants.REDIS_TIMEOUT*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, errorx.Wrap(err, errorx.CodeCacheError, "redis ping")
	}

	return client, NewRedisCache(client, conf.Workers, 1000), nil
}
