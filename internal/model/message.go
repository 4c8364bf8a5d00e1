// Package model 定义数据库实体模型
// 本文件定义讨论消息模型
package model

import (
	"time"

	"gorm.io/gorm"
)

// Message 消息模型
// 对应数据库 message 表，只追加不修改
type Message struct {
	gorm.Model

	// Uuid 客户端生成的消息 id，重复插入按此去重
	Uuid string `gorm:"column:uuid;uniqueIndex;type:varchar(64);not null;comment:客户端消息id"`

	// SessionId 会话 UUID
	SessionId string `gorm:"column:session_id;index:idx_session_send;type:char(36);not null;comment:会话uuid"`

	// AuthorId 发送者 UUID，取自认证身份而非请求体
	AuthorId string `gorm:"column:author_id;index;type:char(20);not null;comment:发送者uuid"`

	// AuthorName/AuthorRole 冗余存储，避免查询时关联用户表
	AuthorName string `gorm:"column:author_name;type:varchar(50);not null;comment:发送者昵称"`
	AuthorRole string `gorm:"column:author_role;type:varchar(20);not null;default:'';comment:发送者角色"`

	Content string `gorm:"column:content;type:TEXT;not null;comment:消息内容"`

	// SendAt 客户端创建时间，展示按此排序
	SendAt time.Time `gorm:"column:send_at;index:idx_session_send;not null;comment:发送时间"`
}

// TableName 指定表名
func (Message) TableName() string {
	return "message"
}
