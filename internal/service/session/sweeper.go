package session

import (
	"context"
	"time"

	"station_chat_server/internal/infrastructure/metrics"

	"go.uber.org/zap"
)

const sweepBatch = 100

// EndedNotifier 会话被强制结束后通知在线成员
type EndedNotifier interface {
	NotifySessionEnded(ctx context.Context, sessionId string) error
}

// Sweeper 过期扫描
// 周期性结束已超过截止时间 grace 的进行中会话，并广播 session-ended
type Sweeper struct {
	store    *Store
	notifier EndedNotifier
	interval time.Duration
	grace    time.Duration
}

// NewSweeper 构造函数
func NewSweeper(store *Store, notifier EndedNotifier, interval, grace time.Duration) *Sweeper {
	return &Sweeper{store: store, notifier: notifier, interval: interval, grace: grace}
}

// Run 阻塞运行直到 ctx 取消
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	zap.L().Info("过期扫描已启动", zap.Duration("interval", s.interval), zap.Duration("grace", s.grace))
	for {
		select {
		case <-ctx.Done():
			zap.L().Info("过期扫描已停止")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				zap.L().Error("过期扫描失败", zap.Error(err))
			}
		}
	}
}

// SweepOnce 执行一次扫描，返回结束的会话数
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	ended, err := s.store.ExpireOverdue(ctx, s.store.clock().Add(-s.grace), sweepBatch)
	if err != nil {
		return 0, err
	}
	for _, sess := range ended {
		metrics.SweptSessions.Inc()
		zap.L().Info("过期会话已强制结束",
			zap.String("session_id", sess.Uuid),
			zap.String("topic_id", sess.TopicId),
			zap.String("group_id", sess.GroupId),
		)
		if s.notifier == nil {
			continue
		}
		if err := s.notifier.NotifySessionEnded(ctx, sess.Uuid); err != nil {
			zap.L().Warn("广播会话结束失败", zap.String("session_id", sess.Uuid), zap.Error(err))
		}
	}
	return len(ended), nil
}
