// Package chatcore 设备端单个会话视图的内存状态
// 本地乐观发送与广播回流在这里按消息 ID 合并
package chatcore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"station_chat_server/internal/dto/respond"
	"station_chat_server/pkg/constants"
	"station_chat_server/pkg/errorx"
	"station_chat_server/pkg/protocol"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeliveryStatus 展示用的投递状态，只存在于本地
type DeliveryStatus string

const (
	StatusPending DeliveryStatus = "pending"
	StatusSent    DeliveryStatus = "sent"
	StatusError   DeliveryStatus = "error"
)

// Durability 持久化确认状态，与投递状态相互独立
type Durability string

const (
	DurabilityUnknown    Durability = ""
	DurabilityPersisting Durability = "persisting"
	DurabilityPersisted  Durability = "persisted"
	DurabilityFailed     Durability = "failed"
)

// Entry 视图中的一条消息
type Entry struct {
	protocol.Message
	Status     DeliveryStatus
	Durability Durability
}

// Channel 会话实时通道
type Channel interface {
	Publish(ctx context.Context, ev protocol.Event) error
	Close() error
}

// Persister 消息持久化接口，按消息 ID 幂等
type Persister interface {
	PersistMessage(ctx context.Context, msg protocol.Message) (*respond.SendMessageRespond, error)
}

// Lifecycle 会话结束调用
type Lifecycle interface {
	End(ctx context.Context, sessionId string) (*respond.SessionRespond, error)
}

// Author 当前设备的用户
type Author struct {
	Id   string
	Name string
	Role string
}

// Options 构造参数
type Options struct {
	SessionId string
	Author    Author
	Channel   Channel
	Persister Persister
	Lifecycle Lifecycle

	// MaxRetries 持久化失败后的最多重试次数
	MaxRetries uint64
	// RetryInterval 首次重试间隔，之后指数增长
	RetryInterval time.Duration

	OnChange func([]Entry) // 视图变化，可为 nil
	OnLeave  func()        // 离开会话，最多调用一次，可为 nil
	Now      func() time.Time
}

// Core 一个会话视图的消息状态
type Core struct {
	opts Options

	mu      sync.Mutex
	entries []Entry
	index   map[string]int

	leaveOnce sync.Once
	left      chan struct{}
	wg        sync.WaitGroup
}

// New 构造 Core
func New(opts Options) *Core {
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 500 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Core{
		opts:  opts,
		index: make(map[string]int),
		left:  make(chan struct{}),
	}
}

// Load 载入历史消息，已存在的 ID 不会重复
func (c *Core) Load(history []protocol.Message) {
	c.mu.Lock()
	for _, msg := range history {
		if i, ok := c.index[msg.ID]; ok {
			c.entries[i].Status = StatusSent
			c.entries[i].Durability = DurabilityPersisted
			continue
		}
		c.entries = append(c.entries, Entry{Message: msg, Status: StatusSent, Durability: DurabilityPersisted})
		c.index[msg.ID] = len(c.entries) - 1
	}
	c.sortLocked()
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snapshot)
}

// Send 乐观发送：先以 pending 追加到视图，再发布到通道，持久化在后台进行
// 返回生成的消息 ID
func (c *Core) Send(ctx context.Context, content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", errorx.New(errorx.CodeInvalidParam, "消息内容不能为空")
	}
	if utf8.RuneCountInString(content) > constants.MESSAGE_MAX_LENGTH {
		return "", errorx.Newf(errorx.CodeInvalidParam, "消息内容不能超过 %d 个字符", constants.MESSAGE_MAX_LENGTH)
	}
	if c.Left() {
		return "", errorx.New(errorx.CodeConflict, "已离开会话")
	}

	msg := protocol.Message{
		ID:         uuid.NewString(),
		SessionId:  c.opts.SessionId,
		AuthorId:   c.opts.Author.Id,
		AuthorName: c.opts.Author.Name,
		AuthorRole: c.opts.Author.Role,
		Content:    content,
		CreatedAt:  c.opts.Now().UTC(),
	}

	c.mu.Lock()
	c.entries = append(c.entries, Entry{Message: msg, Status: StatusPending, Durability: DurabilityPersisting})
	c.index[msg.ID] = len(c.entries) - 1
	c.sortLocked()
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snapshot)

	if err := c.opts.Channel.Publish(ctx, protocol.NewMessageEvent(msg)); err != nil {
		zap.L().Warn("发布消息失败", zap.String("message_id", msg.ID), zap.Error(err))
		c.update(msg.ID, func(e *Entry) {
			if e.Status == StatusPending {
				e.Status = StatusError
			}
		})
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.persist(msg)
	}()
	return msg.ID, nil
}

// persist 带退避的有限重试，参数错误与无权限不重试
func (c *Core) persist(msg protocol.Message) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.RetryInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithMaxRetries(b, c.opts.MaxRetries)

	op := func() error {
		_, err := c.opts.Persister.PersistMessage(context.Background(), msg)
		if err == nil {
			return nil
		}
		if errorx.IsValidation(err) || errorx.IsForbidden(err) || errorx.IsConflict(err) || errorx.IsUnauthenticated(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		zap.L().Warn("消息持久化失败，稍后重试",
			zap.String("message_id", msg.ID), zap.Duration("wait", wait), zap.Error(err))
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		zap.L().Error("消息持久化最终失败", zap.String("message_id", msg.ID), zap.Error(err))
		c.update(msg.ID, func(e *Entry) {
			e.Durability = DurabilityFailed
			e.Status = StatusError
		})
		return
	}
	c.update(msg.ID, func(e *Entry) {
		e.Durability = DurabilityPersisted
		// 发布失败但已落库，其他成员重新加载记录时可见
		if e.Status == StatusError {
			e.Status = StatusSent
		}
	})
}

// HandleEvent 处理通道事件
func (c *Core) HandleEvent(ev protocol.Event) {
	if ev.SessionId != c.opts.SessionId {
		return
	}
	switch ev.Type {
	case protocol.EventNewMessage:
		if ev.Message != nil {
			c.merge(*ev.Message)
		}
	case protocol.EventSessionEnded:
		c.Leave()
	}
}

// merge 已存在的 ID 原地置为 sent，否则追加；之后按创建时间重排
func (c *Core) merge(msg protocol.Message) {
	c.mu.Lock()
	if i, ok := c.index[msg.ID]; ok {
		// 持久化最终失败的条目保持 error
		if c.entries[i].Durability != DurabilityFailed {
			c.entries[i].Status = StatusSent
		}
	} else {
		c.entries = append(c.entries, Entry{Message: msg, Status: StatusSent})
		c.index[msg.ID] = len(c.entries) - 1
	}
	c.sortLocked()
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snapshot)
}

func (c *Core) update(id string, fn func(*Entry)) {
	c.mu.Lock()
	i, ok := c.index[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	fn(&c.entries[i])
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snapshot)
}

// End 结束会话：先完成服务端事务，再在退订之前发布 session-ended
func (c *Core) End(ctx context.Context) (*respond.SessionRespond, error) {
	resp, err := c.opts.Lifecycle.End(ctx, c.opts.SessionId)
	if err != nil {
		return nil, err
	}
	if err := c.opts.Channel.Publish(ctx, protocol.SessionEndedEvent(c.opts.SessionId)); err != nil {
		zap.L().Warn("发布 session-ended 失败", zap.String("session_id", c.opts.SessionId), zap.Error(err))
	}
	c.Leave()
	return resp, nil
}

// Leave 退订通道并通知上层离开，幂等
func (c *Core) Leave() {
	c.leaveOnce.Do(func() {
		close(c.left)
		if err := c.opts.Channel.Close(); err != nil {
			zap.L().Debug("关闭实时通道", zap.Error(err))
		}
		if c.opts.OnLeave != nil {
			c.opts.OnLeave()
		}
	})
}

// Left 是否已离开会话
func (c *Core) Left() bool {
	select {
	case <-c.left:
		return true
	default:
		return false
	}
}

// Done 离开会话时关闭
func (c *Core) Done() <-chan struct{} {
	return c.left
}

// Wait 等待后台持久化全部结束
func (c *Core) Wait() {
	c.wg.Wait()
}

// Entries 当前视图的副本
func (c *Core) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Core) snapshotLocked() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// sortLocked 按创建时间排序，相同时间按 ID，然后重建索引
func (c *Core) sortLocked() {
	sort.SliceStable(c.entries, func(i, j int) bool {
		a, b := c.entries[i], c.entries[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	for i, e := range c.entries {
		c.index[e.ID] = i
	}
}

func (c *Core) notify(snapshot []Entry) {
	if c.opts.OnChange != nil {
		c.opts.OnChange(snapshot)
	}
}
