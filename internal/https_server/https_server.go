// Package https_server 提供 HTTP/HTTPS 服务器的初始化和配置
// 负责创建 Gin 引擎实例并配置中间件与路由
package https_server

import (
	"station_chat_server/internal/config"
	"station_chat_server/internal/handler"
	"station_chat_server/internal/infrastructure/logger"
	"station_chat_server/internal/infrastructure/middleware"
	"station_chat_server/internal/router"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Init 创建 Gin 引擎并注册中间件与业务路由
// 顺序：日志 -> panic 恢复 -> CORS -> 可选 TLS 重定向 -> 路由
func Init(conf config.MainConfig, handlers *handler.Handlers) *gin.Engine {
	if conf.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	engine.Use(logger.GinLogger())
	engine.Use(logger.GinRecovery(true))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	engine.Use(cors.New(corsConfig))

	// 由 Nginx 终止 SSL 时关闭
	if conf.TLS {
		engine.Use(middleware.TlsHandler(conf.Host, conf.Port))
	}

	router.NewRouter(handlers).RegisterRoutes(engine)
	return engine
}
