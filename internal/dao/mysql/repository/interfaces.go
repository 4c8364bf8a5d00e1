// Package repository 定义数据访问层接口和聚合结构
// 采用 Repository 模式将数据访问逻辑与业务逻辑分离
package repository

import (
	"context"
	"time"

	"station_chat_server/internal/model"

	"gorm.io/gorm"
)

// ==================== Repository 接口定义 ====================

// SessionRepository 讨论会话数据访问接口
// 状态迁移只能由 session 服务在事务内调用
type SessionRepository interface {
	// FindByUuid 根据会话 UUID 查找
	FindByUuid(uuid string) (*model.Session, error)
	// FindByUuidForUpdate 根据会话 UUID 查找并加行锁（需在事务中调用）
	FindByUuidForUpdate(uuid string) (*model.Session, error)
	// FindByTopicAndGroup 根据 (主题, 小组) 查找
	FindByTopicAndGroup(topicId, groupId string) (*model.Session, error)
	// FindByTopicAndGroupForUpdate 根据 (主题, 小组) 查找并加行锁
	FindByTopicAndGroupForUpdate(topicId, groupId string) (*model.Session, error)
	// CreateIfAbsent 插入会话，(主题, 小组) 已存在时什么也不做
	CreateIfAbsent(session *model.Session) error
	// UpdateFields 按 UUID 更新会话字段
	UpdateFields(uuid string, updates map[string]interface{}) error
	// FindActiveEndedBefore 查找截止时间早于 before 的进行中会话
	FindActiveEndedBefore(before time.Time, limit int) ([]model.Session, error)
}

// MessageRepository 消息数据访问接口
// 只追加，不修改
type MessageRepository interface {
	// FindBySessionId 按会话查找消息，按创建时间升序
	FindBySessionId(sessionId string) ([]model.Message, error)
	// FindByUuid 根据客户端消息 id 查找
	FindByUuid(uuid string) (*model.Message, error)
	// CreateIfAbsent 插入消息，uuid 已存在时返回 created=false
	CreateIfAbsent(message *model.Message) (created bool, err error)
}

// GroupRepository 小组数据访问接口
type GroupRepository interface {
	// Create 创建小组
	Create(group *model.GroupInfo) error
}

// ==================== 复合结构 ====================

// MembershipRow 成员关系联表查询的单行结果
// 小组信息来自 LEFT JOIN，可能为空
type MembershipRow struct {
	MemberId    uint
	UserUuid    string
	GroupUuid   string
	Role        int8
	GroupName   *string
	GroupStatus *int8
}

// GroupMemberRepository 小组成员数据访问接口
type GroupMemberRepository interface {
	// FindMembershipRows 查询用户的所有成员关系（联表小组信息）
	FindMembershipRows(userUuid string) ([]MembershipRow, error)
	// Create 添加成员
	Create(member *model.GroupMember) error
}

// ==================== Repository 聚合 ====================

// Repositories 聚合所有 Repository 实例
// 作为依赖注入的入口，Service 层通过此结构访问数据层
type Repositories struct {
	db          *gorm.DB
	Session     SessionRepository
	Message     MessageRepository
	Group       GroupRepository
	GroupMember GroupMemberRepository
}

// NewRepositories 创建所有 Repository 实例
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:          db,
		Session:     NewSessionRepository(db),
		Message:     NewMessageRepository(db),
		Group:       NewGroupRepository(db),
		GroupMember: NewGroupMemberRepository(db),
	}
}

// WithContext 返回绑定了 ctx 的 Repositories，请求取消时查询随之中止
func (r *Repositories) WithContext(ctx context.Context) *Repositories {
	return NewRepositories(r.db.WithContext(ctx))
}

// Transaction 在数据库事务中执行函数
// 事务内的所有操作要么全部成功，要么全部回滚
func (r *Repositories) Transaction(fn func(txRepos *Repositories) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

// DB 返回底层连接，供健康检查与测试使用
func (r *Repositories) DB() *gorm.DB {
	return r.db
}
