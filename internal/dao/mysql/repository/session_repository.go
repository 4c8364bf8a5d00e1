// Package repository 提供数据访问层的具体实现
// 本文件实现 SessionRepository 接口，处理讨论会话相关的数据库操作
package repository

import (
	"time"

	"station_chat_server/internal/model"
	"station_chat_server/pkg/enum/session_status_enum"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// sessionRepository SessionRepository 接口的实现
type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository 创建 SessionRepository 实例
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

// FindByUuid 根据会话 UUID 查找
func (r *sessionRepository) FindByUuid(uuid string) (*model.Session, error) {
	var session model.Session
	if err := r.db.First(&session, "uuid = ?", uuid).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询会话 uuid=%s", uuid)
	}
	return &session, nil
}

// FindByUuidForUpdate 加行锁读取，MySQL/Postgres 生成 SELECT ... FOR UPDATE
func (r *sessionRepository) FindByUuidForUpdate(uuid string) (*model.Session, error) {
	var session model.Session
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&session, "uuid = ?", uuid).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询会话 uuid=%s", uuid)
	}
	return &session, nil
}

// FindByTopicAndGroup 根据 (主题, 小组) 查找
func (r *sessionRepository) FindByTopicAndGroup(topicId, groupId string) (*model.Session, error) {
	var session model.Session
	if err := r.db.Where("topic_id = ? AND group_id = ?", topicId, groupId).First(&session).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询会话 topic_id=%s group_id=%s", topicId, groupId)
	}
	return &session, nil
}

// FindByTopicAndGroupForUpdate 根据 (主题, 小组) 加行锁读取
func (r *sessionRepository) FindByTopicAndGroupForUpdate(topicId, groupId string) (*model.Session, error) {
	var session model.Session
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("topic_id = ? AND group_id = ?", topicId, groupId).First(&session).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询会话 topic_id=%s group_id=%s", topicId, groupId)
	}
	return &session, nil
}

// CreateIfAbsent 依靠 idx_topic_group 唯一索引做冲突安全插入
// 并发调用时只有一行落库，其余调用静默跳过，调用方随后读取已提交的行
func (r *sessionRepository) CreateIfAbsent(session *model.Session) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "topic_id"}, {Name: "group_id"}},
		DoNothing: true,
	}).Create(session).Error
	if err != nil {
		return wrapDBErrorf(err, "创建会话 topic_id=%s group_id=%s", session.TopicId, session.GroupId)
	}
	return nil
}

// UpdateFields 按 UUID 更新会话字段
func (r *sessionRepository) UpdateFields(uuid string, updates map[string]interface{}) error {
	if err := r.db.Model(&model.Session{}).Where("uuid = ?", uuid).Updates(updates).Error; err != nil {
		return wrapDBErrorf(err, "更新会话 uuid=%s", uuid)
	}
	return nil
}

// FindActiveEndedBefore 查找已超过截止时间的进行中会话，供过期扫描使用
func (r *sessionRepository) FindActiveEndedBefore(before time.Time, limit int) ([]model.Session, error) {
	var sessions []model.Session
	if err := r.db.Where("status = ? AND end_timestamp < ?", session_status_enum.ACTIVE, before).
		Order("end_timestamp ASC").Limit(limit).Find(&sessions).Error; err != nil {
		return nil, wrapDBError(err, "查询过期会话")
	}
	return sessions, nil
}
