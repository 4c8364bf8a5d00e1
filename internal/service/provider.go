// Package service 提供业务逻辑层
// 本文件实现 Service 层的依赖注入和聚合
package service

import (
	"time"

	"station_chat_server/internal/catalog"
	"station_chat_server/internal/dao/mysql/repository"
	myredis "station_chat_server/internal/dao/redis"
	"station_chat_server/internal/service/membership"
	"station_chat_server/internal/service/message"
	"station_chat_server/internal/service/realtime"
	"station_chat_server/internal/service/session"
)

// Deps Service 层的外部依赖
type Deps struct {
	Repos      *repository.Repositories
	Cache      myredis.AsyncCacheService // 可为 nil
	Catalog    catalog.Catalog
	Hub        *realtime.Hub
	Session    session.Options
	HistoryTTL time.Duration
	Gateway    realtime.Options
}

// Services 聚合所有 Service 实例
// 作为依赖注入的入口，Handler 层通过此结构访问各个 Service
type Services struct {
	Session SessionService
	Message MessageService
	Topic   TopicService
	Channel ChannelService

	Store   *session.Store
	Hub     *realtime.Hub
	Gateway *realtime.Gateway
}

// NewServices 创建并注入所有 Service 实例
func NewServices(deps Deps) *Services {
	store := session.NewStore(deps.Repos, deps.Session)
	oracle := membership.NewMembershipService(deps.Repos)
	sessionSvc := session.NewSessionService(store, deps.Repos, oracle, deps.Catalog, deps.Cache)
	messageSvc := message.NewMessageService(deps.Repos, sessionSvc, deps.Cache, deps.HistoryTTL)

	return &Services{
		Session: sessionSvc,
		Message: messageSvc,
		Topic:   deps.Catalog,
		Channel: realtime.NewChannelTokens(sessionSvc),
		Store:   store,
		Hub:     deps.Hub,
		Gateway: realtime.NewGateway(deps.Hub, sessionSvc, deps.Gateway),
	}
}
