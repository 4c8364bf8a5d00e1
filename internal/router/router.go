// Package router 提供 HTTP 路由注册
// 本文件是路由注册的入口，聚合所有子模块的路由
package router

import (
	"station_chat_server/internal/handler"
	"station_chat_server/internal/infrastructure/metrics"
	"station_chat_server/internal/infrastructure/middleware"

	"github.com/gin-gonic/gin"
)

// Router 路由管理器，持有 Handler 聚合
type Router struct {
	handlers *handler.Handlers
}

// NewRouter 创建路由管理器
func NewRouter(handlers *handler.Handlers) *Router {
	return &Router{handlers: handlers}
}

// RegisterRoutes 注册所有路由
// /metrics 与 /ws 不走 Bearer 认证，/ws 由通道 Token 自行校验
func (rt *Router) RegisterRoutes(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	rt.RegisterWebSocketRoutes(&r.RouterGroup)

	authed := r.Group("/")
	authed.Use(middleware.JWTAuth())
	rt.RegisterTopicRoutes(authed)   // 主题目录
	rt.RegisterSessionRoutes(authed) // 会话生命周期
	rt.RegisterMessageRoutes(authed) // 消息
}
