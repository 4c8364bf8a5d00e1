// Package handler 提供 HTTP 请求处理器
// 本文件处理 WebSocket 连接相关的请求
package handler

import (
	"net/http"

	"station_chat_server/internal/service/realtime"
	"station_chat_server/pkg/errorx"
	"station_chat_server/pkg/util/jwt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WsHandler WebSocket 请求处理器
type WsHandler struct {
	gateway *realtime.Gateway
}

// NewWsHandler 创建 WebSocket 处理器实例
func NewWsHandler(gateway *realtime.Gateway) *WsHandler {
	return &WsHandler{gateway: gateway}
}

// Connect 校验通道 Token 后升级为 WebSocket 并加入会话主题
// GET /ws?token=xxx
func (h *WsHandler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"code": errorx.CodeUnauthenticated,
			"msg":  "缺少通道 Token",
		})
		return
	}
	claims, err := jwt.ParseChannelToken(token)
	if err != nil {
		zap.L().Warn("通道 Token 无效", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"code": errorx.CodeUnauthenticated,
			"msg":  "通道 Token 已过期或无效",
		})
		return
	}
	c.Set("user_id", claims.UserID)
	// 升级失败时 gorilla 已写入响应
	_ = h.gateway.Serve(c.Writer, c.Request, claims)
}
