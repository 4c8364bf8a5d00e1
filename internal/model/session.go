// Package model 定义数据库实体模型
// 本文件定义讨论会话模型，一个小组在一个主题下最多只有一个会话
package model

import (
	"database/sql"

	"gorm.io/gorm"
)

// Session 讨论会话模型
// 对应数据库 session 表
// (topic_id, group_id) 复合唯一索引保证每组每题只有一行
type Session struct {
	gorm.Model

	// Uuid 会话唯一标识，对外暴露的 session_id
	Uuid string `gorm:"column:uuid;uniqueIndex;type:char(36);not null;comment:会话uuid"`

	TopicId string `gorm:"column:topic_id;uniqueIndex:idx_topic_group;type:varchar(64);not null;comment:主题id"`
	GroupId string `gorm:"column:group_id;uniqueIndex:idx_topic_group;type:char(20);not null;comment:小组uuid"`

	// Status 0=PENDING, 1=ACTIVE, 2=COMPLETED
	// 参见 pkg/enum/session_status_enum
	Status int8 `gorm:"column:status;not null;default:0;index;comment:状态，0.待开始，1.进行中，2.已结束"`

	// StartedAt 首次开启时间，重开不会改变
	StartedAt sql.NullTime `gorm:"column:started_at;comment:开始时间"`

	// EndTimestamp 截止时间，仅 open/reopen 会修改，PENDING 时为空
	EndTimestamp sql.NullTime `gorm:"column:end_timestamp;index;comment:截止时间"`

	// CompletedAt 最近一次结束时间
	CompletedAt sql.NullTime `gorm:"column:completed_at;comment:结束时间"`
}

// TableName 指定表名
func (Session) TableName() string {
	return "session"
}
