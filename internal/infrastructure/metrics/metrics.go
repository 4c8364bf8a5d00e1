// Package metrics 定义服务的 Prometheus 指标
package metrics

import (
	"net/http"

	"station_chat_server/pkg/errorx"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "station"

var registry = prometheus.NewRegistry()

var (
	// LifecycleOps 会话生命周期操作次数，按操作与结果区分
	LifecycleOps = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_lifecycle_total",
		Help:      "Session lifecycle operations by operation and outcome.",
	}, []string{"op", "outcome"})

	// RealtimeEvents 实时通道转发的事件数
	RealtimeEvents = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_events_total",
		Help:      "Realtime events fanned out, by event type.",
	}, []string{"type"})

	// RealtimeDropped 订阅者发送队列已满而丢弃的事件数
	RealtimeDropped = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_dropped_total",
		Help:      "Events dropped because a subscriber queue was full.",
	})

	// MessagePersist 消息持久化结果
	MessagePersist = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "message_persist_total",
		Help:      "Durable message inserts by result.",
	}, []string{"result"})

	// Subscribers 当前在线的 WebSocket 订阅数
	Subscribers = promauto.With(registry).NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "realtime_subscribers",
		Help:      "Live websocket subscribers on this node.",
	})

	// SweptSessions 过期扫描强制结束的会话数
	SweptSessions = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_swept_total",
		Help:      "Overdue sessions completed by the expiry sweeper.",
	})
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler 返回 /metrics 处理器
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

// Outcome 将错误归类为指标标签
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errorx.IsValidation(err):
		return "invalid"
	case errorx.IsForbidden(err):
		return "forbidden"
	case errorx.IsNotFound(err):
		return "not_found"
	case errorx.IsConflict(err):
		return "conflict"
	default:
		return "error"
	}
}

// ObserveLifecycle 记录一次生命周期操作
func ObserveLifecycle(op string, err error) {
	LifecycleOps.WithLabelValues(op, Outcome(err)).Inc()
}
