package middleware

import (
	"net/http"
	"strings"

	"station_chat_server/pkg/errorx"
	"station_chat_server/pkg/util/jwt"

	"github.com/gin-gonic/gin"
)

// 上下文中的身份字段
const (
	CtxUserID   = "user_id"
	CtxUserName = "user_name"
	CtxUserRole = "user_role"
)

func abortUnauthenticated(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code": errorx.CodeUnauthenticated,
		"msg":  msg,
	})
}

// JWTAuth JWT 认证中间件
// 验证 Access Token 并将用户身份存入上下文
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthenticated(c, "请先登录")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthenticated(c, "Token 格式错误，请使用 Bearer Token")
			return
		}

		claims, err := jwt.ParseAccessToken(parts[1])
		if err != nil {
			abortUnauthenticated(c, "Token 已过期或无效，请重新登录")
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxUserName, claims.Name)
		c.Set(CtxUserRole, claims.Role)
		c.Next()
	}
}
