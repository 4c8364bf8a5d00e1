// Package service 定义业务层接口
// 本文件定义所有 Service 接口，供 Handler 层调用
package service

import (
	"context"

	"station_chat_server/internal/dto/request"
	"station_chat_server/internal/dto/respond"
	"station_chat_server/internal/model"
	"station_chat_server/internal/service/message"
	"station_chat_server/internal/service/realtime"
	"station_chat_server/pkg/protocol"
)

// SessionService 会话生命周期接口
// 所有操作都阻塞到事务结束，错误原样返回给调用方
type SessionService interface {
	// View 查看会话，不存在时创建 PENDING 会话
	View(ctx context.Context, userId, topicId string) (*respond.SessionRespond, error)
	// Open 开启会话并设置截止时间，已开启时返回同一会话
	Open(ctx context.Context, userId, topicId string) (*respond.SessionRespond, error)
	// End 结束会话，重复调用幂等
	End(ctx context.Context, userId, sessionId string) (*respond.SessionRespond, error)
	// Reopen 重新开放已结束的会话
	Reopen(ctx context.Context, userId, sessionId string, extraMinutes int) (*respond.SessionRespond, error)
	// Authorize 校验用户对会话的访问权限
	Authorize(ctx context.Context, userId, sessionId string) (*model.Session, error)
}

// MessageService 消息持久化与历史查询接口
type MessageService interface {
	// Send 幂等持久化一条消息
	Send(ctx context.Context, author message.Author, req request.SendMessageRequest) (*respond.SendMessageRespond, error)
	// List 获取会话消息历史
	List(ctx context.Context, userId, sessionId string) ([]protocol.Message, error)
}

// TopicService 讨论主题目录接口
type TopicService interface {
	List() []model.Topic
	Get(topicId string) (*model.Topic, error)
}

// ChannelService 实时通道握手接口
type ChannelService interface {
	Issue(ctx context.Context, who realtime.Identity, sessionId string) (*respond.ChannelTokenRespond, error)
}
