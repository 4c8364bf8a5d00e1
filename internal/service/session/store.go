package session

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"station_chat_server/internal/dao/mysql/repository"
	"station_chat_server/internal/model"
	"station_chat_server/pkg/constants"
	"station_chat_server/pkg/enum/session_status_enum"
	"station_chat_server/pkg/errorx"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options 会话时长配置
type Options struct {
	SessionMinutes int              // 开启后的固定时长
	ReopenMinutes  []int            // 重开允许的延时选项
	Now            func() time.Time // 测试注入时钟
}

func (o Options) withDefaults() Options {
	if o.SessionMinutes <= 0 {
		o.SessionMinutes = constants.DEFAULT_SESSION_MINUTES
	}
	if len(o.ReopenMinutes) == 0 {
		o.ReopenMinutes = constants.DEFAULT_REOPEN_MINUTES
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Store 会话状态的唯一写入方
// 每个操作都是一个数据库事务，对同一 (主题, 小组) 线性化
type Store struct {
	repos           *repository.Repositories
	sessionDuration time.Duration
	reopenMinutes   []int
	now             func() time.Time
}

// NewStore 构造函数
func NewStore(repos *repository.Repositories, opts Options) *Store {
	opts = opts.withDefaults()
	allowed := append([]int(nil), opts.ReopenMinutes...)
	sort.Ints(allowed)
	return &Store{
		repos:           repos,
		sessionDuration: time.Duration(opts.SessionMinutes) * time.Minute,
		reopenMinutes:   allowed,
		now:             opts.Now,
	}
}

func (s *Store) clock() time.Time {
	return s.now().UTC()
}

// ReopenMinutes 允许的延时选项
func (s *Store) ReopenMinutes() []int {
	return append([]int(nil), s.reopenMinutes...)
}

// ValidateReopenMinutes 校验重开延时
func (s *Store) ValidateReopenMinutes(extra int) error {
	for _, m := range s.reopenMinutes {
		if m == extra {
			return nil
		}
	}
	return errorx.Newf(errorx.CodeInvalidParam, "延时只能是 %v 分钟之一", s.reopenMinutes)
}

func newPendingSession(topicId, groupId string) *model.Session {
	return &model.Session{
		Uuid:    uuid.NewString(),
		TopicId: topicId,
		GroupId: groupId,
		Status:  session_status_enum.PENDING,
	}
}

// insertThenLock 冲突安全插入后加锁读取已提交的行
// 先插入再加锁，避免两个事务对不存在的键同时持有间隙锁而死锁
func insertThenLock(tx *repository.Repositories, topicId, groupId string) (*model.Session, error) {
	if err := tx.Session.CreateIfAbsent(newPendingSession(topicId, groupId)); err != nil {
		return nil, err
	}
	return tx.Session.FindByTopicAndGroupForUpdate(topicId, groupId)
}

// PeekOrCreate 返回 (主题, 小组) 的会话，不存在时创建 PENDING 会话
// 并发调用的所有调用方得到同一个 session id
func (s *Store) PeekOrCreate(ctx context.Context, topicId, groupId string) (*model.Session, error) {
	repos := s.repos.WithContext(ctx)
	if sess, err := repos.Session.FindByTopicAndGroup(topicId, groupId); err == nil {
		return sess, nil
	} else if !errorx.IsNotFound(err) {
		return nil, err
	}

	var result *model.Session
	err := repos.Transaction(func(tx *repository.Repositories) error {
		sess, err := insertThenLock(tx, topicId, groupId)
		if err != nil {
			return err
		}
		result = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Open PENDING -> ACTIVE，设置开始时间与截止时间
// 已是 ACTIVE 时原样返回，先提交的事务决定唯一的截止时间
func (s *Store) Open(ctx context.Context, topicId, groupId string) (*model.Session, error) {
	var result *model.Session
	err := s.repos.WithContext(ctx).Transaction(func(tx *repository.Repositories) error {
		sess, err := insertThenLock(tx, topicId, groupId)
		if err != nil {
			return err
		}

		switch sess.Status {
		case session_status_enum.ACTIVE:
			result = sess
			return nil
		case session_status_enum.COMPLETED:
			return errorx.New(errorx.CodeConflict, "会话已结束，请使用重新开放")
		}

		now := s.clock()
		sess.Status = session_status_enum.ACTIVE
		sess.StartedAt = sql.NullTime{Time: now, Valid: true}
		sess.EndTimestamp = sql.NullTime{Time: now.Add(s.sessionDuration), Valid: true}
		if err := tx.Session.UpdateFields(sess.Uuid, map[string]interface{}{
			"status":        sess.Status,
			"started_at":    sess.StartedAt,
			"end_timestamp": sess.EndTimestamp,
		}); err != nil {
			return err
		}
		result = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Complete ACTIVE -> COMPLETED
// 对已结束的会话幂等成功，changed=false 且 completed_at 保持不变
func (s *Store) Complete(ctx context.Context, sessionId string) (sess *model.Session, changed bool, err error) {
	err = s.repos.WithContext(ctx).Transaction(func(tx *repository.Repositories) error {
		cur, err := tx.Session.FindByUuidForUpdate(sessionId)
		if err != nil {
			return err
		}

		switch cur.Status {
		case session_status_enum.COMPLETED:
			sess = cur
			return nil
		case session_status_enum.PENDING:
			return errorx.New(errorx.CodeConflict, "会话尚未开始，无法结束")
		}

		cur.Status = session_status_enum.COMPLETED
		cur.CompletedAt = sql.NullTime{Time: s.clock(), Valid: true}
		if err := tx.Session.UpdateFields(cur.Uuid, map[string]interface{}{
			"status":       cur.Status,
			"completed_at": cur.CompletedAt,
		}); err != nil {
			return err
		}
		sess, changed = cur, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return sess, changed, nil
}

// Reopen COMPLETED -> ACTIVE，截止时间为当前时间加延时
// 前置条件在行锁内检查，并发重开只有一次生效，其余返回冲突
func (s *Store) Reopen(ctx context.Context, sessionId string, extraMinutes int) (*model.Session, error) {
	if err := s.ValidateReopenMinutes(extraMinutes); err != nil {
		return nil, err
	}

	var result *model.Session
	err := s.repos.WithContext(ctx).Transaction(func(tx *repository.Repositories) error {
		sess, err := tx.Session.FindByUuidForUpdate(sessionId)
		if err != nil {
			return err
		}
		if sess.Status != session_status_enum.COMPLETED {
			return errorx.Newf(errorx.CodeConflict, "只有已结束的会话可以重新开放，当前状态 %s",
				session_status_enum.String(sess.Status))
		}

		sess.Status = session_status_enum.ACTIVE
		sess.EndTimestamp = sql.NullTime{Time: s.clock().Add(time.Duration(extraMinutes) * time.Minute), Valid: true}
		if err := tx.Session.UpdateFields(sess.Uuid, map[string]interface{}{
			"status":        sess.Status,
			"end_timestamp": sess.EndTimestamp,
		}); err != nil {
			return err
		}
		result = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ExpireOverdue 结束截止时间早于 before 的进行中会话，返回本次实际结束的会话
func (s *Store) ExpireOverdue(ctx context.Context, before time.Time, limit int) ([]*model.Session, error) {
	overdue, err := s.repos.WithContext(ctx).Session.FindActiveEndedBefore(before.UTC(), limit)
	if err != nil {
		return nil, err
	}

	var ended []*model.Session
	for _, o := range overdue {
		sess, changed, err := s.Complete(ctx, o.Uuid)
		if err != nil {
			// 单个会话失败不影响其余会话
			zap.L().Error("过期会话结束失败", zap.String("session_id", o.Uuid), zap.Error(err))
			continue
		}
		if changed {
			ended = append(ended, sess)
		}
	}
	return ended, nil
}
