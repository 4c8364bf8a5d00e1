// Package realtime 实现会话级实时通道
// broker.go 定义跨节点的事件分发接口，单机用 ChannelBroker，多节点用 RedisBroker 或 KafkaBroker
package realtime

import (
	"context"
	"sync"

	"station_chat_server/pkg/constants"

	"go.uber.org/zap"
)

// DeliverFunc 把某个会话的事件交给本节点的订阅者
type DeliverFunc func(sessionId string, data []byte)

// Broker 事件分发接口
// 分发语义为至少一次、不持久、不保证顺序，晚加入的订阅者不会收到历史事件
type Broker interface {
	// Publish 发布事件到会话主题
	Publish(ctx context.Context, sessionId string, data []byte) error
	// Join 本节点出现该会话的第一个订阅者
	Join(ctx context.Context, sessionId string) error
	// Leave 本节点该会话的最后一个订阅者离开
	Leave(ctx context.Context, sessionId string) error
	// Run 阻塞消费事件直到 ctx 取消
	Run(ctx context.Context, deliver DeliverFunc) error
	// Close 释放资源
	Close() error
}

type envelope struct {
	sessionId string
	data      []byte
}

// ChannelBroker 单机模式，事件通过内存通道转发
type ChannelBroker struct {
	transmit  chan envelope
	done      chan struct{}
	closeOnce sync.Once
}

// NewChannelBroker 创建单机 Broker
func NewChannelBroker() *ChannelBroker {
	return &ChannelBroker{
		transmit: make(chan envelope, constants.CHANNEL_SIZE),
		done:     make(chan struct{}),
	}
}

// Publish 写入转发通道，通道已满时阻塞直到 ctx 取消
func (b *ChannelBroker) Publish(ctx context.Context, sessionId string, data []byte) error {
	select {
	case <-b.done:
		return ErrBrokerClosed
	default:
	}
	select {
	case b.transmit <- envelope{sessionId: sessionId, data: data}:
		return nil
	case <-b.done:
		return ErrBrokerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Join 单机模式无需订阅外部频道
func (b *ChannelBroker) Join(context.Context, string) error { return nil }

// Leave 单机模式无需退订
func (b *ChannelBroker) Leave(context.Context, string) error { return nil }

// Run 转发循环
func (b *ChannelBroker) Run(ctx context.Context, deliver DeliverFunc) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.done:
			return nil
		case env := <-b.transmit:
			deliver(env.sessionId, env.data)
		}
	}
}

// Close 停止转发
func (b *ChannelBroker) Close() error {
	b.closeOnce.Do(func() {
		close(b.done)
		zap.L().Info("channel broker 已关闭")
	})
	return nil
}
