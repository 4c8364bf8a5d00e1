// Package session 实现讨论会话的生命周期
// 所有操作先校验小组成员身份，再交由 Store 在事务内完成状态迁移
package session

import (
	"context"
	"time"

	"station_chat_server/internal/catalog"
	"station_chat_server/internal/dao/mysql/repository"
	myredis "station_chat_server/internal/dao/redis"
	"station_chat_server/internal/dto/respond"
	"station_chat_server/internal/infrastructure/metrics"
	"station_chat_server/internal/model"
	"station_chat_server/internal/service/membership"
	"station_chat_server/pkg/enum/session_status_enum"
	"station_chat_server/pkg/errorx"

	"go.uber.org/zap"
)

// MembershipOracle 用户到小组的解析
type MembershipOracle interface {
	Require(ctx context.Context, userId string) (*membership.Membership, error)
}

// sessionService 会话业务逻辑实现
// 通过构造函数注入 Store、成员关系、主题目录与缓存依赖
type sessionService struct {
	store   *Store
	repos   *repository.Repositories
	oracle  MembershipOracle
	catalog catalog.Catalog
	cache   myredis.AsyncCacheService // 可为 nil
}

// NewSessionService 构造函数，注入所有依赖
func NewSessionService(store *Store, repos *repository.Repositories, oracle MembershipOracle,
	topics catalog.Catalog, cacheService myredis.AsyncCacheService) *sessionService {
	return &sessionService{
		store:   store,
		repos:   repos,
		oracle:  oracle,
		catalog: topics,
		cache:   cacheService,
	}
}

// View 查看小组在该主题下的会话，不存在时创建 PENDING 会话
func (s *sessionService) View(ctx context.Context, userId, topicId string) (resp *respond.SessionRespond, err error) {
	defer func() { metrics.ObserveLifecycle("view", err) }()

	m, err := s.oracle.Require(ctx, userId)
	if err != nil {
		return nil, err
	}
	if _, err = s.catalog.Get(topicId); err != nil {
		return nil, err
	}

	sess, err := s.store.PeekOrCreate(ctx, topicId, m.GroupId)
	if err != nil {
		zap.L().Error("查看会话失败",
			zap.String("user_id", userId),
			zap.String("topic_id", topicId),
			zap.String("group_id", m.GroupId),
			zap.Error(err),
		)
		return nil, err
	}
	return s.toRespond(sess), nil
}

// Open 开启会话计时
func (s *sessionService) Open(ctx context.Context, userId, topicId string) (resp *respond.SessionRespond, err error) {
	defer func() { metrics.ObserveLifecycle("open", err) }()

	m, err := s.oracle.Require(ctx, userId)
	if err != nil {
		return nil, err
	}
	if _, err = s.catalog.Get(topicId); err != nil {
		return nil, err
	}

	sess, err := s.store.Open(ctx, topicId, m.GroupId)
	if err != nil {
		zap.L().Warn("开启会话失败",
			zap.String("user_id", userId),
			zap.String("topic_id", topicId),
			zap.String("group_id", m.GroupId),
			zap.Error(err),
		)
		return nil, err
	}

	zap.L().Info("会话已开启",
		zap.String("session_id", sess.Uuid),
		zap.String("topic_id", topicId),
		zap.String("group_id", m.GroupId),
		zap.Time("end_timestamp", sess.EndTimestamp.Time),
	)
	return s.toRespond(sess), nil
}

// End 结束会话，已结束时幂等成功
func (s *sessionService) End(ctx context.Context, userId, sessionId string) (resp *respond.SessionRespond, err error) {
	defer func() { metrics.ObserveLifecycle("end", err) }()

	if _, err = s.Authorize(ctx, userId, sessionId); err != nil {
		return nil, err
	}

	sess, changed, err := s.store.Complete(ctx, sessionId)
	if err != nil {
		zap.L().Warn("结束会话失败", zap.String("user_id", userId), zap.String("session_id", sessionId), zap.Error(err))
		return nil, err
	}
	if changed {
		zap.L().Info("会话已结束", zap.String("session_id", sessionId), zap.String("user_id", userId))
	}
	return s.toRespond(sess), nil
}

// Reopen 重新开放已结束的会话
func (s *sessionService) Reopen(ctx context.Context, userId, sessionId string, extraMinutes int) (resp *respond.SessionRespond, err error) {
	defer func() { metrics.ObserveLifecycle("reopen", err) }()

	if _, err = s.Authorize(ctx, userId, sessionId); err != nil {
		return nil, err
	}

	sess, err := s.store.Reopen(ctx, sessionId, extraMinutes)
	if err != nil {
		zap.L().Warn("重新开放会话失败",
			zap.String("user_id", userId),
			zap.String("session_id", sessionId),
			zap.Int("extra_minutes", extraMinutes),
			zap.Error(err),
		)
		return nil, err
	}

	// 会话重新可写，已结束时缓存的消息历史失效
	if s.cache != nil {
		s.cache.SubmitTask(func() {
			if err := s.cache.Delete(context.Background(), myredis.MessageHistoryKey(sessionId)); err != nil {
				zap.L().Error("清除消息历史缓存失败", zap.String("session_id", sessionId), zap.Error(err))
			}
		})
	}

	zap.L().Info("会话已重新开放",
		zap.String("session_id", sessionId),
		zap.String("user_id", userId),
		zap.Int("extra_minutes", extraMinutes),
		zap.Time("end_timestamp", sess.EndTimestamp.Time),
	)
	return s.toRespond(sess), nil
}

// Authorize 校验用户属于会话所在小组，返回会话当前状态
func (s *sessionService) Authorize(ctx context.Context, userId, sessionId string) (*model.Session, error) {
	m, err := s.oracle.Require(ctx, userId)
	if err != nil {
		return nil, err
	}
	sess, err := s.repos.WithContext(ctx).Session.FindByUuid(sessionId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, errorx.Newf(errorx.CodeNotFound, "会话不存在: %s", sessionId)
		}
		return nil, err
	}
	if sess.GroupId != m.GroupId {
		zap.L().Warn("非本组成员访问会话",
			zap.String("user_id", userId),
			zap.String("session_id", sessionId),
			zap.String("group_id", m.GroupId),
		)
		return nil, errorx.ErrForbidden
	}
	return sess, nil
}

func (s *sessionService) toRespond(sess *model.Session) *respond.SessionRespond {
	return ToRespond(sess, s.store.clock())
}

// ToRespond 将会话转换为接口响应
func ToRespond(sess *model.Session, serverTime time.Time) *respond.SessionRespond {
	resp := &respond.SessionRespond{
		SessionId:  sess.Uuid,
		TopicId:    sess.TopicId,
		GroupId:    sess.GroupId,
		Status:     session_status_enum.String(sess.Status),
		ServerTime: serverTime,
	}
	resp.StartedAt = nullTimePtr(sess.StartedAt.Valid, sess.StartedAt.Time)
	resp.EndTimestamp = nullTimePtr(sess.EndTimestamp.Valid, sess.EndTimestamp.Time)
	resp.CompletedAt = nullTimePtr(sess.CompletedAt.Valid, sess.CompletedAt.Time)
	return resp
}

func nullTimePtr(valid bool, t time.Time) *time.Time {
	if !valid {
		return nil
	}
	u := t.UTC()
	return &u
}
