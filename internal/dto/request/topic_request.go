package request

// GetTopicRequest 获取单个主题
type GetTopicRequest struct {
	TopicId string `form:"topic_id" binding:"required"`
}
