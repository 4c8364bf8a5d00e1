package respond

import "time"

// SessionRespond 会话生命周期接口的统一响应
// end_timestamp 在 PENDING 状态下为 null；server_time 供客户端估计时钟偏差
// 使用位置:
//   - internal/service/session: View/Open/End/Reopen
//   - pkg/client/transport: APIClient
type SessionRespond struct {
	SessionId    string     `json:"session_id"`
	TopicId      string     `json:"topic_id"`
	GroupId      string     `json:"group_id"`
	Status       string     `json:"status"`
	StartedAt    *time.Time `json:"started_at"`
	EndTimestamp *time.Time `json:"end_timestamp"`
	CompletedAt  *time.Time `json:"completed_at"`
	ServerTime   time.Time  `json:"server_time"`
}

// ChannelTokenRespond 实时通道握手信息
type ChannelTokenRespond struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	SessionId string    `json:"session_id"`
}

// SendMessageRespond 消息持久化结果
// created=false 表示该 client_message_id 已存在，本次为幂等重放
type SendMessageRespond struct {
	MessageId string `json:"message_id"`
	Created   bool   `json:"created"`
}
