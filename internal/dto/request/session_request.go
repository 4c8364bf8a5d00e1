package request

// ViewSessionRequest 查看（必要时创建）会话
// 使用位置:
//   - internal/handler/session_handler.go: ViewSession
type ViewSessionRequest struct {
	TopicId string `form:"topic_id" binding:"required,max=64"`
}

// OpenSessionRequest 开启会话
type OpenSessionRequest struct {
	TopicId string `json:"topic_id" binding:"required,max=64"`
}

// EndSessionRequest 结束会话
type EndSessionRequest struct {
	SessionId string `json:"session_id" binding:"required"`
}

// ReopenSessionRequest 重新开放已结束的会话
// extra_minutes 的取值范围由服务层按配置校验
type ReopenSessionRequest struct {
	SessionId    string `json:"session_id" binding:"required"`
	ExtraMinutes int    `json:"extra_minutes" binding:"required"`
}

// ChannelTokenRequest 申请实时通道 Token
type ChannelTokenRequest struct {
	SessionId string `json:"session_id" binding:"required"`
}
