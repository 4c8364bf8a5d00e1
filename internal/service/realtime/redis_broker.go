package realtime

import (
	"context"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker 多节点模式，每个会话对应一个 Redis 频道
// 节点只订阅本地有订阅者的会话频道，最后一个订阅者离开时退订
type RedisBroker struct {
	client *redis.Client
	prefix string
	pubsub *redis.PubSub

	mu     sync.Mutex
	closed bool
}

// NewRedisBroker 创建 Redis Broker
func NewRedisBroker(client *redis.Client, prefix string) *RedisBroker {
	return &RedisBroker{
		client: client,
		prefix: prefix,
		// 不带频道创建，首次 Join 时才建立订阅连接
		pubsub: client.Subscribe(context.Background()),
	}
}

func (b *RedisBroker) channel(sessionId string) string {
	return b.prefix + sessionId
}

// Publish 发布事件到会话频道
func (b *RedisBroker) Publish(ctx context.Context, sessionId string, data []byte) error {
	return b.client.Publish(ctx, b.channel(sessionId), data).Err()
}

// Join 订阅会话频道
func (b *RedisBroker) Join(ctx context.Context, sessionId string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBrokerClosed
	}
	return b.pubsub.Subscribe(ctx, b.channel(sessionId))
}

// Leave 退订会话频道
func (b *RedisBroker) Leave(ctx context.Context, sessionId string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	return b.pubsub.Unsubscribe(ctx, b.channel(sessionId))
}

// Run 消费已订阅频道上的事件
func (b *RedisBroker) Run(ctx context.Context, deliver DeliverFunc) error {
	ch := b.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if !strings.HasPrefix(msg.Channel, b.prefix) {
				zap.L().Warn("收到未知频道的消息", zap.String("channel", msg.Channel))
				continue
			}
			deliver(strings.TrimPrefix(msg.Channel, b.prefix), []byte(msg.Payload))
		}
	}
}

// Close 关闭订阅连接，Redis 客户端由调用方关闭
func (b *RedisBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.pubsub.Close()
}
