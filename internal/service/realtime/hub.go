package realtime

import (
	"context"
	"errors"
	"sync"

	"station_chat_server/internal/infrastructure/metrics"
	"station_chat_server/pkg/constants"
	"station_chat_server/pkg/errorx"
	"station_chat_server/pkg/protocol"

	"go.uber.org/zap"
)

// ErrBrokerClosed Broker 已关闭
var ErrBrokerClosed = errors.New("realtime broker closed")

// Subscriber 一个会话主题上的本地订阅者
type Subscriber struct {
	UserId    string
	SessionId string
	SendBack  chan []byte // 给前端

	closeOnce sync.Once
}

// NewSubscriber 创建订阅者
func NewSubscriber(userId, sessionId string) *Subscriber {
	return &Subscriber{
		UserId:    userId,
		SessionId: sessionId,
		SendBack:  make(chan []byte, constants.CHANNEL_SIZE),
	}
}

// offer 非阻塞投递，队列已满返回 false
func (s *Subscriber) offer(data []byte) bool {
	select {
	case s.SendBack <- data:
		return true
	default:
		return false
	}
}

func (s *Subscriber) close() {
	s.closeOnce.Do(func() { close(s.SendBack) })
}

// Hub 维护本节点上的会话主题与订阅者
// 会话主题在第一个订阅者加入时建立，最后一个订阅者离开时拆除
type Hub struct {
	broker Broker

	mu     sync.RWMutex
	topics map[string]map[*Subscriber]struct{}
}

// NewHub 创建 Hub
func NewHub(broker Broker) *Hub {
	return &Hub{
		broker: broker,
		topics: make(map[string]map[*Subscriber]struct{}),
	}
}

// Run 启动 Broker 消费循环
func (h *Hub) Run(ctx context.Context) error {
	return h.broker.Run(ctx, h.deliver)
}

// Close 关闭 Broker 并断开所有本地订阅者
func (h *Hub) Close() error {
	err := h.broker.Close()
	h.mu.Lock()
	defer h.mu.Unlock()
	for sessionId, subs := range h.topics {
		for sub := range subs {
			sub.close()
			metrics.Subscribers.Dec()
		}
		delete(h.topics, sessionId)
	}
	return err
}

// Subscribe 加入会话主题
func (h *Hub) Subscribe(ctx context.Context, sub *Subscriber) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[sub.SessionId]
	if !ok {
		if err := h.broker.Join(ctx, sub.SessionId); err != nil {
			zap.L().Error("订阅会话主题失败", zap.String("session_id", sub.SessionId), zap.Error(err))
			return errorx.Wrap(err, errorx.CodeTransportError, "订阅实时通道失败")
		}
		subs = make(map[*Subscriber]struct{})
		h.topics[sub.SessionId] = subs
	}
	subs[sub] = struct{}{}
	metrics.Subscribers.Inc()
	zap.L().Info("订阅会话主题",
		zap.String("session_id", sub.SessionId),
		zap.String("user_id", sub.UserId),
		zap.Int("subscribers", len(subs)),
	)
	return nil
}

// Unsubscribe 离开会话主题，重复调用安全
func (h *Hub) Unsubscribe(ctx context.Context, sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[sub.SessionId]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	sub.close()
	metrics.Subscribers.Dec()

	if len(subs) == 0 {
		delete(h.topics, sub.SessionId)
		if err := h.broker.Leave(ctx, sub.SessionId); err != nil {
			zap.L().Warn("退订会话主题失败", zap.String("session_id", sub.SessionId), zap.Error(err))
		}
	}
	zap.L().Info("离开会话主题", zap.String("session_id", sub.SessionId), zap.String("user_id", sub.UserId))
}

// Subscribers 当前会话的本地订阅者数量
func (h *Hub) Subscribers(sessionId string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[sessionId])
}

// Publish 发布事件，发布者自己也会收到
func (h *Hub) Publish(ctx context.Context, ev protocol.Event) error {
	if err := ev.Validate(); err != nil {
		return errorx.Wrap(err, errorx.CodeInvalidParam, "事件格式错误")
	}
	data, err := protocol.Encode(ev)
	if err != nil {
		return errorx.Wrap(err, errorx.CodeInvalidParam, "事件序列化失败")
	}
	if err := h.broker.Publish(ctx, ev.SessionId, data); err != nil {
		zap.L().Error("发布事件失败",
			zap.String("type", ev.Type),
			zap.String("session_id", ev.SessionId),
			zap.Error(err),
		)
		return errorx.Wrap(err, errorx.CodeTransportError, "实时通道发布失败")
	}
	metrics.RealtimeEvents.WithLabelValues(ev.Type).Inc()
	return nil
}

// NotifySessionEnded 广播会话结束信号
func (h *Hub) NotifySessionEnded(ctx context.Context, sessionId string) error {
	return h.Publish(ctx, protocol.SessionEndedEvent(sessionId))
}

// SendTo 只投递给单个订阅者，订阅者已离开时忽略
func (h *Hub) SendTo(sub *Subscriber, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.topics[sub.SessionId][sub]; !ok {
		return false
	}
	return sub.offer(data)
}

// deliver 把事件投递给本地订阅者，慢订阅者丢弃事件而不阻塞其他人
func (h *Hub) deliver(sessionId string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.topics[sessionId] {
		if !sub.offer(data) {
			metrics.RealtimeDropped.Inc()
			zap.L().Warn("订阅者发送队列已满，丢弃事件",
				zap.String("session_id", sessionId),
				zap.String("user_id", sub.UserId),
			)
		}
	}
}
