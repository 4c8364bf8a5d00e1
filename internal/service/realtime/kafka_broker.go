package realtime

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// KafkaLog 事件日志的读写端，由 mq.KafkaClient 实现
type KafkaLog interface {
	SendMessage(ctx context.Context, key, value []byte) error
	ReadMessage(ctx context.Context) (key, value []byte, err error)
	Close()
}

// KafkaBroker 日志式多节点模式
// 所有会话共用一个 topic，key 为会话 id，每个节点独立消费组，由 Hub 过滤本地无订阅者的会话
type KafkaBroker struct {
	client KafkaLog

	retryInitial time.Duration
	retryMax     time.Duration
}

// NewKafkaBroker 创建 Kafka Broker
func NewKafkaBroker(client KafkaLog) *KafkaBroker {
	return &KafkaBroker{client: client, retryInitial: 500 * time.Millisecond, retryMax: 30 * time.Second}
}

// Publish 写入事件，同一会话的事件落在同一分区
func (b *KafkaBroker) Publish(ctx context.Context, sessionId string, data []byte) error {
	return b.client.SendMessage(ctx, []byte(sessionId), data)
}

// Join 消费组已覆盖所有会话
func (b *KafkaBroker) Join(context.Context, string) error { return nil }

// Leave 消费组已覆盖所有会话
func (b *KafkaBroker) Leave(context.Context, string) error { return nil }

// Run 消费循环，读取失败时指数退避后继续，直到 ctx 取消或连接关闭
func (b *KafkaBroker) Run(ctx context.Context, deliver DeliverFunc) error {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = b.retryInitial
	retry.MaxInterval = b.retryMax
	retry.MaxElapsedTime = 0
	retry.Reset()

	for {
		key, value, err := b.client.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			wait := retry.NextBackOff()
			zap.L().Error("kafka 读取事件失败，稍后重试", zap.Duration("retry_in", wait), zap.Error(err))
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
			continue
		}
		retry.Reset()
		deliver(string(key), value)
	}
}

// Close 关闭 Kafka 连接
func (b *KafkaBroker) Close() error {
	b.client.Close()
	return nil
}
