package realtime

import (
	"context"
	"net/http"
	"time"

	"station_chat_server/internal/model"
	"station_chat_server/pkg/constants"
	"station_chat_server/pkg/enum/session_status_enum"
	"station_chat_server/pkg/protocol"
	"station_chat_server/pkg/util/jwt"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 16 * 1024
)

// SessionAuthorizer 校验用户对会话的访问权限
type SessionAuthorizer interface {
	Authorize(ctx context.Context, userId, sessionId string) (*model.Session, error)
}

// Options 网关参数
type Options struct {
	PingInterval time.Duration
	SendRate     float64 // 每连接每秒允许发布的事件数
	SendBurst    int
}

// Gateway WebSocket 网关
// 读协程把前端事件发布到 Hub，写协程把 Hub 投递的事件推给前端
type Gateway struct {
	hub      *Hub
	sessions SessionAuthorizer
	opts     Options
	upgrader websocket.Upgrader
}

// NewGateway 创建网关
func NewGateway(hub *Hub, sessions SessionAuthorizer, opts Options) *Gateway {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 15 * time.Second
	}
	if opts.SendRate <= 0 {
		opts.SendRate = 5
	}
	if opts.SendBurst <= 0 {
		opts.SendBurst = 10
	}
	return &Gateway{
		hub:      hub,
		sessions: sessions,
		opts:     opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  2048,
			WriteBufferSize: 2048,
			// 身份由通道 Token 校验，不依赖 Origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Conn 一条已认证的 WebSocket 连接
type Conn struct {
	ws      *websocket.Conn
	claims  *jwt.Claims
	sub     *Subscriber
	limiter *rate.Limiter
	gateway *Gateway
}

// Serve 升级连接并加入会话主题，claims 必须来自已校验的通道 Token
func (g *Gateway) Serve(w http.ResponseWriter, r *http.Request, claims *jwt.Claims) error {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Error("websocket 升级失败", zap.Error(err))
		return err
	}

	sub := NewSubscriber(claims.UserID, claims.SessionID)
	if err := g.hub.Subscribe(r.Context(), sub); err != nil {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscribe failed"),
			time.Now().Add(writeWait))
		_ = ws.Close()
		return err
	}

	c := &Conn{
		ws:      ws,
		claims:  claims,
		sub:     sub,
		limiter: rate.NewLimiter(rate.Limit(g.opts.SendRate), g.opts.SendBurst),
		gateway: g,
	}
	go c.writeLoop()
	go c.readLoop()
	zap.L().Info("ws连接成功", zap.String("user_id", claims.UserID), zap.String("session_id", claims.SessionID))
	return nil
}

func (g *Gateway) pongWait() time.Duration {
	return g.opts.PingInterval * constants.HEARTBEAT_TIMEOUT_FACTOR
}

// readLoop 读取前端事件，退出时离开会话主题
func (c *Conn) readLoop() {
	defer c.gateway.hub.Unsubscribe(context.Background(), c.sub)

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.gateway.pongWait()))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.gateway.pongWait()))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Warn("ws 连接异常断开", zap.String("user_id", c.claims.UserID), zap.Error(err))
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.gateway.pongWait()))

		ev, err := protocol.Decode(data)
		if err != nil {
			zap.L().Warn("丢弃无法解析的事件", zap.String("user_id", c.claims.UserID), zap.Error(err))
			continue
		}
		if ev.SessionId != c.sub.SessionId {
			zap.L().Warn("丢弃其他会话的事件",
				zap.String("user_id", c.claims.UserID),
				zap.String("token_session", c.sub.SessionId),
				zap.String("event_session", ev.SessionId),
			)
			continue
		}
		c.handle(ev)
	}
}

func (c *Conn) handle(ev protocol.Event) {
	ctx := context.Background()
	switch ev.Type {
	case protocol.EventHeartbeat:
		c.ack(ev.Ref)

	case protocol.EventNewMessage:
		if !c.limiter.Allow() {
			zap.L().Warn("发送过于频繁，丢弃事件", zap.String("user_id", c.claims.UserID))
			return
		}
		// 只转发进行中会话的消息，结束后仍连着的成员不能继续广播
		sess, err := c.gateway.sessions.Authorize(ctx, c.claims.UserID, ev.SessionId)
		if err != nil {
			zap.L().Warn("消息校验失败", zap.String("session_id", ev.SessionId), zap.Error(err))
			return
		}
		if sess.Status != session_status_enum.ACTIVE {
			zap.L().Warn("会话不在进行中，丢弃消息",
				zap.String("session_id", ev.SessionId),
				zap.String("user_id", c.claims.UserID),
				zap.Int8("status", sess.Status),
			)
			return
		}
		// 作者以通道 Token 为准
		ev.Message.AuthorId = c.claims.UserID
		ev.Message.AuthorName = c.claims.Name
		ev.Message.AuthorRole = c.claims.Role
		if ev.Message.CreatedAt.IsZero() {
			ev.Message.CreatedAt = time.Now().UTC()
		}
		_ = c.gateway.hub.Publish(ctx, ev)

	case protocol.EventSessionEnded:
		sess, err := c.gateway.sessions.Authorize(ctx, c.claims.UserID, ev.SessionId)
		if err != nil {
			zap.L().Warn("结束信号校验失败", zap.String("session_id", ev.SessionId), zap.Error(err))
			return
		}
		if sess.Status != session_status_enum.COMPLETED {
			zap.L().Warn("会话未结束，忽略结束信号", zap.String("session_id", ev.SessionId))
			return
		}
		_ = c.gateway.hub.Publish(ctx, ev)

	case protocol.EventHeartbeatAck:
		// 服务端不接收应答
	}
}

// ack 心跳应答只回给发送方
func (c *Conn) ack(ref string) {
	data, err := protocol.Encode(protocol.Event{
		Type:      protocol.EventHeartbeatAck,
		SessionId: c.sub.SessionId,
		Ref:       ref,
	})
	if err != nil {
		zap.L().Error("心跳应答序列化失败", zap.Error(err))
		return
	}
	c.gateway.hub.SendTo(c.sub, data)
}

// writeLoop 推送事件并定时 ping，SendBack 关闭后发送关闭帧
func (c *Conn) writeLoop() {
	ticker := time.NewTicker(c.gateway.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case data, ok := <-c.sub.SendBack:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				zap.L().Warn("ws 写入失败", zap.String("user_id", c.claims.UserID), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				zap.L().Warn("ws ping 失败", zap.String("user_id", c.claims.UserID), zap.Error(err))
				return
			}
		}
	}
}
