package message

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"station_chat_server/internal/dao/mysql/repository"
	myredis "station_chat_server/internal/dao/redis"
	"station_chat_server/internal/dto/request"
	"station_chat_server/internal/dto/respond"
	"station_chat_server/internal/infrastructure/metrics"
	"station_chat_server/internal/model"
	"station_chat_server/pkg/constants"
	"station_chat_server/pkg/enum/session_status_enum"
	"station_chat_server/pkg/errorx"
	"station_chat_server/pkg/protocol"

	"go.uber.org/zap"
)

const (
	// lateGrace 会话结束后仍接受在途消息的时间，按服务端收到时间计算
	lateGrace = time.Minute
	// clockSkew 允许客户端 created_at 超前服务端的幅度
	clockSkew = 10 * time.Second
)

// SessionAuthorizer 校验用户对会话的访问权限
type SessionAuthorizer interface {
	Authorize(ctx context.Context, userId, sessionId string) (*model.Session, error)
}

// Author 已认证的消息作者
type Author struct {
	Id   string
	Name string
	Role string
}

// messageService 消息业务逻辑实现
type messageService struct {
	repos      *repository.Repositories
	sessions   SessionAuthorizer
	cache      myredis.AsyncCacheService // 可为 nil
	historyTTL time.Duration
	now        func() time.Time
}

// NewMessageService 构造函数
func NewMessageService(repos *repository.Repositories, sessions SessionAuthorizer,
	cacheService myredis.AsyncCacheService, historyTTL time.Duration) *messageService {
	return &messageService{
		repos:      repos,
		sessions:   sessions,
		cache:      cacheService,
		historyTTL: historyTTL,
		now:        time.Now,
	}
}

// ValidateContent 校验消息正文，去除首尾空白后不能为空
func ValidateContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", errorx.New(errorx.CodeInvalidParam, "消息内容不能为空")
	}
	if utf8.RuneCountInString(trimmed) > constants.MESSAGE_MAX_LENGTH {
		return "", errorx.Newf(errorx.CodeInvalidParam, "消息内容不能超过 %d 字", constants.MESSAGE_MAX_LENGTH)
	}
	return trimmed, nil
}

// Send 幂等持久化一条消息
// 相同 client_message_id 的重复请求返回 created=false
func (s *messageService) Send(ctx context.Context, author Author, req request.SendMessageRequest) (*respond.SendMessageRespond, error) {
	content, err := ValidateContent(req.Content)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Authorize(ctx, author.Id, req.SessionId)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	createdAt := clampCreatedAt(req.CreatedAt, sess, now)
	switch sess.Status {
	case session_status_enum.PENDING:
		return nil, errorx.New(errorx.CodeConflict, "会话尚未开始")
	case session_status_enum.COMPLETED:
		// 只接受结束前写下、且在宽限期内送达的消息
		if sess.CompletedAt.Valid &&
			(now.After(sess.CompletedAt.Time.Add(lateGrace)) || createdAt.After(sess.CompletedAt.Time)) {
			return nil, errorx.New(errorx.CodeConflict, "会话已结束")
		}
	}

	msg := &model.Message{
		Uuid:       req.ClientMessageId,
		SessionId:  req.SessionId,
		AuthorId:   author.Id,
		AuthorName: author.Name,
		AuthorRole: author.Role,
		Content:    content,
		SendAt:     createdAt,
	}
	created, err := s.repos.WithContext(ctx).Message.CreateIfAbsent(msg)
	if err != nil {
		metrics.MessagePersist.WithLabelValues("error").Inc()
		zap.L().Error("消息持久化失败",
			zap.String("session_id", req.SessionId),
			zap.String("message_id", req.ClientMessageId),
			zap.String("user_id", author.Id),
			zap.Error(err),
		)
		return nil, err
	}

	if created {
		metrics.MessagePersist.WithLabelValues("created").Inc()
		s.invalidateHistory(req.SessionId)
		return &respond.SendMessageRespond{MessageId: req.ClientMessageId, Created: true}, nil
	}

	// 同一 id 只能对应同一条消息
	existing, err := s.repos.WithContext(ctx).Message.FindByUuid(req.ClientMessageId)
	if err != nil {
		metrics.MessagePersist.WithLabelValues("error").Inc()
		return nil, err
	}
	if existing.SessionId != msg.SessionId || existing.AuthorId != msg.AuthorId || existing.Content != msg.Content {
		metrics.MessagePersist.WithLabelValues("conflict").Inc()
		zap.L().Warn("消息 id 冲突",
			zap.String("message_id", req.ClientMessageId),
			zap.String("session_id", req.SessionId),
			zap.String("user_id", author.Id),
		)
		return nil, errorx.New(errorx.CodeConflict, "消息 ID 已被占用")
	}
	metrics.MessagePersist.WithLabelValues("duplicate").Inc()
	zap.L().Debug("消息已存在，幂等返回", zap.String("message_id", req.ClientMessageId))
	return &respond.SendMessageRespond{MessageId: req.ClientMessageId, Created: false}, nil
}

// clampCreatedAt 把客户端时间限制在 [started_at, now+clockSkew] 内
// 缺省或超前过多时取服务端时间
func clampCreatedAt(clientAt time.Time, sess *model.Session, now time.Time) time.Time {
	createdAt := clientAt.UTC()
	if clientAt.IsZero() || createdAt.After(now.Add(clockSkew)) {
		return now
	}
	if sess.StartedAt.Valid && createdAt.Before(sess.StartedAt.Time) {
		return sess.StartedAt.Time.UTC()
	}
	return createdAt
}

// List 获取会话消息历史，按创建时间升序
// 只缓存非进行中会话的历史，进行中的会话始终查库
func (s *messageService) List(ctx context.Context, userId, sessionId string) ([]protocol.Message, error) {
	sess, err := s.sessions.Authorize(ctx, userId, sessionId)
	if err != nil {
		return nil, err
	}

	cacheable := s.cache != nil && sess.Status != session_status_enum.ACTIVE
	cacheKey := myredis.MessageHistoryKey(sessionId)
	if cacheable {
		if cached, err := s.cache.Get(ctx, cacheKey); err != nil {
			zap.L().Error("redis get key error", zap.String("key", cacheKey), zap.Error(err))
		} else if cached != "" {
			var list []protocol.Message
			if err := json.Unmarshal([]byte(cached), &list); err == nil {
				return list, nil
			}
			zap.L().Error("json unmarshal cache error", zap.String("key", cacheKey), zap.Error(err))
		}
	}

	rows, err := s.repos.WithContext(ctx).Message.FindBySessionId(sessionId)
	if err != nil {
		zap.L().Error("查询消息历史失败", zap.String("session_id", sessionId), zap.Error(err))
		return nil, err
	}
	list := make([]protocol.Message, 0, len(rows))
	for i := range rows {
		list = append(list, ToProtocol(&rows[i]))
	}

	if cacheable {
		s.cache.SubmitTask(func() {
			data, err := json.Marshal(list)
			if err != nil {
				zap.L().Error("json marshal error", zap.Error(err))
				return
			}
			if err := s.cache.Set(context.Background(), cacheKey, string(data), s.historyTTL); err != nil {
				zap.L().Error("redis set key error", zap.String("key", cacheKey), zap.Error(err))
			}
		})
	}
	return list, nil
}

func (s *messageService) invalidateHistory(sessionId string) {
	if s.cache == nil {
		return
	}
	s.cache.SubmitTask(func() {
		if err := s.cache.Delete(context.Background(), myredis.MessageHistoryKey(sessionId)); err != nil {
			zap.L().Error("清除消息历史缓存失败", zap.String("session_id", sessionId), zap.Error(err))
		}
	})
}

// ToProtocol 转换为通道与接口共用的消息格式
func ToProtocol(m *model.Message) protocol.Message {
	return protocol.Message{
		ID:         m.Uuid,
		SessionId:  m.SessionId,
		AuthorId:   m.AuthorId,
		AuthorName: m.AuthorName,
		AuthorRole: m.AuthorRole,
		Content:    m.Content,
		CreatedAt:  m.SendAt.UTC(),
	}
}
