// Package mq 封装 Kafka 底层连接
// 纯技术组件，不包含会话业务逻辑
package mq

import (
	"context"
	"fmt"
	"time"

	"station_chat_server/internal/config"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaClient Kafka 客户端结构
type KafkaClient struct {
	Producer *kafka.Writer // 生产者：以会话 id 为 key 写入事件
	Consumer *kafka.Reader // 消费者：本节点独立消费组
	conf     config.KafkaConfig
}

// NewKafkaClient 创建 Kafka 客户端实例
// nodeId 用于拼接消费组，每个节点独立消费组，事件在所有节点上都能收到
func NewKafkaClient(conf config.KafkaConfig, nodeId string) *KafkaClient {
	timeout := time.Duration(conf.Timeout) * time.Second
	k := &KafkaClient{conf: conf}
	k.Producer = &kafka.Writer{
		Addr:                   kafka.TCP(conf.HostPort),
		Topic:                  conf.ChatTopic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           timeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: false,
	}
	k.Consumer = kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{conf.HostPort},
		Topic:          conf.ChatTopic,
		CommitInterval: timeout,
		GroupID:        ConsumerGroup(conf.GroupPrefix, nodeId),
		StartOffset:    kafka.LastOffset,
	})
	return k
}

// ConsumerGroup 节点消费组名称
func ConsumerGroup(prefix, nodeId string) string {
	return fmt.Sprintf("%s-%s", prefix, nodeId)
}

// CreateTopic 创建 topic，已存在时忽略
func (k *KafkaClient) CreateTopic() error {
	conn, err := kafka.Dial("tcp", k.conf.HostPort)
	if err != nil {
		return err
	}
	defer conn.Close()

	partitions := k.conf.Partition
	if partitions <= 0 {
		partitions = 1
	}
	return conn.CreateTopics(kafka.TopicConfig{
		Topic:             k.conf.ChatTopic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	})
}

// SendMessage 写入一条事件
func (k *KafkaClient) SendMessage(ctx context.Context, key, value []byte) error {
	return k.Producer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
	})
}

// ReadMessage 阻塞读取下一条事件
func (k *KafkaClient) ReadMessage(ctx context.Context) (key, value []byte, err error) {
	m, err := k.Consumer.ReadMessage(ctx)
	if err != nil {
		return nil, nil, err
	}
	zap.L().Debug("kafka 收到事件",
		zap.String("topic", m.Topic),
		zap.Int("partition", m.Partition),
		zap.Int64("offset", m.Offset),
		zap.ByteString("key", m.Key),
	)
	return m.Key, m.Value, nil
}

// Close 关闭生产者与消费者
func (k *KafkaClient) Close() {
	if err := k.Producer.Close(); err != nil {
		zap.L().Error("关闭 kafka producer 失败", zap.Error(err))
	}
	if err := k.Consumer.Close(); err != nil {
		zap.L().Error("关闭 kafka consumer 失败", zap.Error(err))
	}
}
