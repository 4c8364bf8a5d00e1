// Package redis 会话消息历史的缓存层
// Service 层只依赖这里的接口，未配置 Redis 时传 nil
package redis

import (
	"context"
	"time"
)

// CacheService 键值缓存
type CacheService interface {
	// Set 写入并设置过期时间
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// Get 键不存在时返回空字符串和 nil
	Get(ctx context.Context, key string) (string, error)
	// Delete 键不存在也视为成功
	Delete(ctx context.Context, key string) error
}

// AsyncCacheService 带后台任务池的缓存，写回与失效不阻塞请求
type AsyncCacheService interface {
	CacheService
	SubmitTask(action func())
}
