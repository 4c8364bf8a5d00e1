package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"station_chat_server/internal/catalog"
	"station_chat_server/internal/config"
	dao "station_chat_server/internal/dao/mysql"
	myredis "station_chat_server/internal/dao/redis"
	"station_chat_server/internal/handler"
	"station_chat_server/internal/https_server"
	"station_chat_server/internal/infrastructure/logger"
	"station_chat_server/internal/infrastructure/mq"
	"station_chat_server/internal/service"
	"station_chat_server/internal/service/realtime"
	"station_chat_server/internal/service/session"
	"station_chat_server/pkg/util/jwt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	conf := new(config.Config)
	if err := config.LoadConfig(conf); err != nil {
		log.Printf("load config: %v, using defaults", err)
	}

	// 2. 初始化日志
	if err := logger.Init(&conf.LogConfig, conf.MainConfig.Mode); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer func() { _ = zap.L().Sync() }()
	zap.L().Info("日志初始化成功")

	// 3. 初始化数据库
	repos, err := dao.Init(&conf.DatabaseConfig)
	if err != nil {
		zap.L().Fatal("数据库初始化失败", zap.Error(err))
	}
	zap.L().Info("数据库初始化成功", zap.String("driver", conf.DatabaseConfig.Driver))

	// 4. 初始化 Redis（未配置时不启用缓存）
	var (
		redisClient *redis.Client
		cache       myredis.AsyncCacheService
	)
	if conf.RedisConfig.Host != "" {
		client, redisCache, err := myredis.Init(&conf.RedisConfig)
		if err != nil {
			zap.L().Fatal("Redis 初始化失败", zap.Error(err))
		}
		redisClient, cache = client, redisCache
		defer redisCache.Close()
		defer func() { _ = client.Close() }()
		zap.L().Info("Redis 初始化成功")
	}

	// 5. 初始化 JWT
	jwt.Init(conf.JWTConfig.Secret, conf.MainConfig.AppName,
		conf.JWTConfig.AccessTokenExpiry, conf.RealtimeConfig.ChannelTokenExpiry)
	zap.L().Info("JWT 初始化成功")

	// 6. 加载主题目录
	topics, err := catalog.LoadFile(conf.StationConfig.TopicCatalogPath)
	if err != nil {
		zap.L().Fatal("主题目录加载失败", zap.String("path", conf.StationConfig.TopicCatalogPath), zap.Error(err))
	}
	zap.L().Info("主题目录加载成功", zap.Int("topics", len(topics.List())))

	// 7. 初始化实时通道
	broker, err := newBroker(conf, redisClient)
	if err != nil {
		zap.L().Fatal("实时通道初始化失败", zap.Error(err))
	}
	hub := realtime.NewHub(broker)
	zap.L().Info("实时通道初始化成功", zap.String("mode", conf.RealtimeConfig.Mode))

	// 8. 初始化 Service 与 Handler (依赖注入)
	if err := handler.InitTrans("zh"); err != nil {
		zap.L().Fatal("校验翻译器初始化失败", zap.Error(err))
	}
	svc := service.NewServices(service.Deps{
		Repos:   repos,
		Cache:   cache,
		Catalog: topics,
		Hub:     hub,
		Session: session.Options{
			SessionMinutes: conf.StationConfig.SessionMinutes,
			ReopenMinutes:  conf.StationConfig.ReopenMinutes,
		},
		HistoryTTL: time.Duration(conf.RedisConfig.HistoryTTL) * time.Second,
		Gateway: realtime.Options{
			PingInterval: time.Duration(conf.RealtimeConfig.PingInterval) * time.Second,
			SendRate:     conf.RealtimeConfig.SendRate,
			SendBurst:    conf.RealtimeConfig.SendBurst,
		},
	})
	engine := https_server.Init(conf.MainConfig, handler.NewHandlers(svc))
	zap.L().Info("HTTP 服务器初始化成功")

	// 9. 启动后台任务
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := hub.Run(ctx); err != nil {
			zap.L().Error("实时通道消费退出", zap.Error(err))
		}
	}()

	sweeper := session.NewSweeper(svc.Store, hub,
		time.Duration(conf.StationConfig.SweepInterval)*time.Second,
		time.Duration(conf.StationConfig.ExpiryGrace)*time.Second)
	go sweeper.Run(ctx)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", conf.MainConfig.Host, conf.MainConfig.Port),
		Handler: engine,
	}
	go func() {
		zap.L().Info("服务启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("server running fault", zap.Error(err))
		}
	}()

	// 10. 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("关闭服务器...")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("HTTP 服务器关闭失败", zap.Error(err))
	}
	if err := hub.Close(); err != nil {
		zap.L().Error("实时通道关闭失败", zap.Error(err))
	}
	zap.L().Info("服务器已关闭")
}

// newBroker 按配置选择事件分发方式
func newBroker(conf *config.Config, redisClient *redis.Client) (realtime.Broker, error) {
	switch conf.RealtimeConfig.Mode {
	case "channel":
		return realtime.NewChannelBroker(), nil
	case "redis":
		if redisClient == nil {
			return nil, errors.New("realtime mode redis requires redisConfig.host")
		}
		return realtime.NewRedisBroker(redisClient, conf.RealtimeConfig.ChannelPrefix), nil
	case "kafka":
		nodeId, err := os.Hostname()
		if err != nil || nodeId == "" {
			nodeId = uuid.NewString()
		}
		client := mq.NewKafkaClient(conf.KafkaConfig, nodeId)
		if err := client.CreateTopic(); err != nil {
			zap.L().Warn("创建 kafka topic 失败", zap.Error(err))
		}
		return realtime.NewKafkaBroker(client), nil
	}
	return nil, fmt.Errorf("unknown realtime mode %q", conf.RealtimeConfig.Mode)
}
