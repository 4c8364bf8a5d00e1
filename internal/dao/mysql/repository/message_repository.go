package repository

import (
	"station_chat_server/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建消息 Repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// FindBySessionId 按会话ID查找消息
// 按客户端创建时间排序，同一时间再按客户端 id 保证顺序稳定
func (r *messageRepository) FindBySessionId(sessionId string) ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.Where("session_id = ?", sessionId).
		Order("send_at ASC").Order("uuid ASC").Find(&messages).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询消息 session_id=%s", sessionId)
	}
	return messages, nil
}

// FindByUuid 根据客户端消息 id 查找
func (r *messageRepository) FindByUuid(uuid string) (*model.Message, error) {
	var message model.Message
	if err := r.db.First(&message, "uuid = ?", uuid).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询消息 uuid=%s", uuid)
	}
	return &message, nil
}

// CreateIfAbsent 幂等插入，客户端重试同一条消息不会产生重复行
func (r *messageRepository) CreateIfAbsent(message *model.Message) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uuid"}},
		DoNothing: true,
	}).Create(message)
	if result.Error != nil {
		return false, wrapDBErrorf(result.Error, "创建消息 uuid=%s", message.Uuid)
	}
	return result.RowsAffected > 0, nil
}
