// Package handler 提供 HTTP 请求处理器
// 本文件定义 Handler 聚合结构和构造函数
package handler

import (
	"station_chat_server/internal/service"
)

// Handlers 聚合所有 Handler 实例
// 作为依赖注入的入口，Router 层通过此结构访问各个 Handler
type Handlers struct {
	Topic   *TopicHandler
	Session *SessionHandler
	Message *MessageHandler
	Ws      *WsHandler
}

// NewHandlers 创建并注入所有 Handler 实例
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		Topic:   NewTopicHandler(svc.Topic),
		Session: NewSessionHandler(svc.Session, svc.Channel),
		Message: NewMessageHandler(svc.Message),
		Ws:      NewWsHandler(svc.Gateway),
	}
}
