// Package handler 提供 HTTP 请求处理器
// 本文件处理会话生命周期相关的 API 请求
package handler

import (
	"station_chat_server/internal/dto/request"
	"station_chat_server/internal/service"

	"github.com/gin-gonic/gin"
)

// SessionHandler 会话请求处理器
// 通过构造函数注入 SessionService 与 ChannelService
type SessionHandler struct {
	sessionSvc service.SessionService
	channelSvc service.ChannelService
}

// NewSessionHandler 创建会话处理器实例
func NewSessionHandler(sessionSvc service.SessionService, channelSvc service.ChannelService) *SessionHandler {
	return &SessionHandler{sessionSvc: sessionSvc, channelSvc: channelSvc}
}

// ViewSession 查看小组在主题下的会话，不存在时创建
// GET /session/view?topic_id=xxx
// 响应: respond.SessionRespond
func (h *SessionHandler) ViewSession(c *gin.Context) {
	var req request.ViewSessionRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.sessionSvc.View(c.Request.Context(), identity(c).UserId, req.TopicId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// OpenSession 开启会话
// POST /session/open
// 请求体: request.OpenSessionRequest
// 响应: respond.SessionRespond
func (h *SessionHandler) OpenSession(c *gin.Context) {
	var req request.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.sessionSvc.Open(c.Request.Context(), identity(c).UserId, req.TopicId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// EndSession 结束会话
// POST /session/end
// 请求体: request.EndSessionRequest
func (h *SessionHandler) EndSession(c *gin.Context) {
	var req request.EndSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.sessionSvc.End(c.Request.Context(), identity(c).UserId, req.SessionId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// ReopenSession 重新开放会话
// POST /session/reopen
// 请求体: request.ReopenSessionRequest
func (h *SessionHandler) ReopenSession(c *gin.Context) {
	var req request.ReopenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.sessionSvc.Reopen(c.Request.Context(), identity(c).UserId, req.SessionId, req.ExtraMinutes)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// ChannelToken 申请实时通道 Token
// POST /session/channelToken
// 请求体: request.ChannelTokenRequest
// 响应: respond.ChannelTokenRespond
func (h *SessionHandler) ChannelToken(c *gin.Context) {
	var req request.ChannelTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.channelSvc.Issue(c.Request.Context(), identity(c), req.SessionId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}
