// Package handler 提供 HTTP 请求处理器
// 本文件处理消息相关的 API 请求
package handler

import (
	"station_chat_server/internal/dto/request"
	"station_chat_server/internal/service"
	"station_chat_server/internal/service/message"

	"github.com/gin-gonic/gin"
)

// MessageHandler 消息请求处理器
type MessageHandler struct {
	messageSvc service.MessageService
}

// NewMessageHandler 创建消息处理器实例
func NewMessageHandler(messageSvc service.MessageService) *MessageHandler {
	return &MessageHandler{messageSvc: messageSvc}
}

// SendMessage 幂等持久化一条消息
// POST /message/send
// 请求体: request.SendMessageRequest
// 响应: respond.SendMessageRespond
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req request.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	who := identity(c)
	data, err := h.messageSvc.Send(c.Request.Context(), message.Author{Id: who.UserId, Name: who.Name, Role: who.Role}, req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// GetMessageList 获取会话消息历史
// GET /message/list?session_id=xxx
// 响应: []protocol.Message
func (h *MessageHandler) GetMessageList(c *gin.Context) {
	var req request.MessageListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.messageSvc.List(c.Request.Context(), identity(c).UserId, req.SessionId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}
