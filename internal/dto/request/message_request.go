package request

import "time"

// SendMessageRequest 持久化一条消息
// 作者身份一律取自 Token，author_name/author_role 仅为兼容旧客户端保留，服务端忽略
// 使用位置:
//   - internal/handler/message_handler.go: SendMessage
//   - pkg/client/transport: APIClient.PersistMessage
type SendMessageRequest struct {
	SessionId       string    `json:"session_id" binding:"required"`
	ClientMessageId string    `json:"client_message_id" binding:"required,max=64"`
	Content         string    `json:"content" binding:"required,notblank"`
	AuthorName      string    `json:"author_name" binding:"max=50"`
	AuthorRole      string    `json:"author_role" binding:"max=20"`
	CreatedAt       time.Time `json:"created_at"`
}

// MessageListRequest 获取会话消息历史
type MessageListRequest struct {
	SessionId string `form:"session_id" binding:"required"`
}
