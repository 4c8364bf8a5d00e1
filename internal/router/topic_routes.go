package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterTopicRoutes 注册主题目录路由（需要认证）
func (rt *Router) RegisterTopicRoutes(rg *gin.RouterGroup) {
	topicGroup := rg.Group("/topic")
	{
		topicGroup.GET("/list", rt.handlers.Topic.GetTopicList)
		topicGroup.GET("/get", rt.handlers.Topic.GetTopic)
	}
}
