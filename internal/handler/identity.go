package handler

import (
	"station_chat_server/internal/infrastructure/middleware"
	"station_chat_server/internal/service/realtime"

	"github.com/gin-gonic/gin"
)

// identity 从上下文取出 JWT 中间件写入的身份
func identity(c *gin.Context) realtime.Identity {
	return realtime.Identity{
		UserId: c.GetString(middleware.CtxUserID),
		Name:   c.GetString(middleware.CtxUserName),
		Role:   c.GetString(middleware.CtxUserRole),
	}
}
