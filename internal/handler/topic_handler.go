package handler

import (
	"station_chat_server/internal/dto/request"
	"station_chat_server/internal/service"

	"github.com/gin-gonic/gin"
)

// TopicHandler 讨论主题请求处理器
type TopicHandler struct {
	topicSvc service.TopicService
}

// NewTopicHandler 创建主题处理器实例
func NewTopicHandler(topicSvc service.TopicService) *TopicHandler {
	return &TopicHandler{topicSvc: topicSvc}
}

// GetTopicList 按顺序列出所有主题
// GET /topic/list
func (h *TopicHandler) GetTopicList(c *gin.Context) {
	HandleSuccess(c, h.topicSvc.List())
}

// GetTopic 获取单个主题
// GET /topic/get?topic_id=xxx
func (h *TopicHandler) GetTopic(c *gin.Context) {
	var req request.GetTopicRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.topicSvc.Get(req.TopicId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}
