package realtime

import (
	"context"

	"station_chat_server/internal/dto/respond"
	"station_chat_server/pkg/enum/session_status_enum"
	"station_chat_server/pkg/errorx"
	"station_chat_server/pkg/util/jwt"

	"go.uber.org/zap"
)

// Identity 已登录用户的身份信息
type Identity struct {
	UserId string
	Name   string
	Role   string
}

// ChannelTokens 签发实时通道握手 Token
type ChannelTokens struct {
	sessions SessionAuthorizer
}

// NewChannelTokens 构造函数
func NewChannelTokens(sessions SessionAuthorizer) *ChannelTokens {
	return &ChannelTokens{sessions: sessions}
}

// Issue 校验成员身份后签发绑定到会话的短期 Token
// PENDING 会话尚无实时通道
func (t *ChannelTokens) Issue(ctx context.Context, who Identity, sessionId string) (*respond.ChannelTokenRespond, error) {
	sess, err := t.sessions.Authorize(ctx, who.UserId, sessionId)
	if err != nil {
		return nil, err
	}
	if sess.Status == session_status_enum.PENDING {
		return nil, errorx.New(errorx.CodeConflict, "会话尚未开始")
	}

	token, expiresAt, err := jwt.GenerateChannelToken(who.UserId, who.Name, who.Role, sessionId)
	if err != nil {
		zap.L().Error("签发通道 Token 失败", zap.String("user_id", who.UserId), zap.Error(err))
		return nil, errorx.Wrap(err, errorx.CodeServerBusy, "签发通道 Token 失败")
	}
	return &respond.ChannelTokenRespond{
		Token:     token,
		ExpiresAt: expiresAt,
		SessionId: sessionId,
	}, nil
}
