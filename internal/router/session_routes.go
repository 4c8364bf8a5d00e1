// Package router 提供 HTTP 路由注册
// 本文件定义会话相关的路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterSessionRoutes 注册会话生命周期路由（需要认证）
func (rt *Router) RegisterSessionRoutes(rg *gin.RouterGroup) {
	sessionGroup := rg.Group("/session")
	{
		sessionGroup.GET("/view", rt.handlers.Session.ViewSession)           // 查看会话，不存在时创建
		sessionGroup.POST("/open", rt.handlers.Session.OpenSession)          // 开启会话
		sessionGroup.POST("/end", rt.handlers.Session.EndSession)            // 结束会话
		sessionGroup.POST("/reopen", rt.handlers.Session.ReopenSession)      // 重新开放会话
		sessionGroup.POST("/channelToken", rt.handlers.Session.ChannelToken) // 实时通道握手
	}
}
