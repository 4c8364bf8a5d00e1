package transport

import (
	"context"
	"strconv"
	"sync"
	"time"

	"station_chat_server/pkg/client/connmon"
	"station_chat_server/pkg/errorx"
	"station_chat_server/pkg/protocol"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ChannelOptions 实时通道参数
type ChannelOptions struct {
	SessionId         string
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	OnEvent           func(protocol.Event)    // new-message / session-ended
	OnHeartbeat       func(connmon.Heartbeat) // 可为 nil
	Dialer            *websocket.Dialer       // 可为 nil
}

// WSChannel 会话实时通道的设备端连接
// Close 之后不再回调 OnEvent，重复 Close 安全
type WSChannel struct {
	conn *websocket.Conn
	opts ChannelOptions

	writeMu sync.Mutex
	acks    chan string
	done    chan struct{}
	once    sync.Once
}

// DialChannel 连接实时通道并启动读循环与心跳
func DialChannel(ctx context.Context, wsURL string, opts ChannelOptions) (*WSChannel, error) {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 10 * time.Second
	}
	if opts.HeartbeatTimeout <= 0 {
		opts.HeartbeatTimeout = 5 * time.Second
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeTransportError, "连接实时通道失败")
	}

	c := &WSChannel{
		conn: conn,
		opts: opts,
		acks: make(chan string, 1),
		done: make(chan struct{}),
	}
	go c.readLoop()
	go c.heartbeatLoop()
	return c, nil
}

// Publish 发布事件
func (c *WSChannel) Publish(ctx context.Context, ev protocol.Event) error {
	select {
	case <-c.done:
		return errorx.New(errorx.CodeTransportError, "实时通道已关闭")
	default:
	}
	if err := c.write(ctx, ev); err != nil {
		return errorx.Wrap(err, errorx.CodeTransportError, "实时通道发布失败")
	}
	return nil
}

func (c *WSChannel) write(ctx context.Context, ev protocol.Event) error {
	data, err := protocol.Encode(ev)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(10 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(deadline)
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close 退订并关闭连接，幂等
// 可以在 OnEvent 回调内调用，不等待读协程退出
func (c *WSChannel) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *WSChannel) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *WSChannel) report(h connmon.Heartbeat) {
	if c.opts.OnHeartbeat != nil && !c.closed() {
		c.opts.OnHeartbeat(h)
	}
}

func (c *WSChannel) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed() {
				zap.L().Warn("实时通道断开", zap.String("session_id", c.opts.SessionId), zap.Error(err))
				c.report(connmon.HeartbeatDisconnected)
			}
			return
		}
		ev, err := protocol.Decode(data)
		if err != nil {
			zap.L().Warn("丢弃无法解析的事件", zap.Error(err))
			continue
		}
		if ev.Type == protocol.EventHeartbeatAck {
			select {
			case c.acks <- ev.Ref:
			default:
			}
			continue
		}
		if c.closed() {
			return
		}
		if c.opts.OnEvent != nil {
			c.opts.OnEvent(ev)
		}
	}
}

// heartbeatLoop 定时发送心跳，在超时时间内收到对应应答视为 ok
func (c *WSChannel) heartbeatLoop() {
	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()

	for seq := 1; ; seq++ {
		ref := strconv.Itoa(seq)
		err := c.write(context.Background(), protocol.Event{
			Type:      protocol.EventHeartbeat,
			SessionId: c.opts.SessionId,
			Ref:       ref,
		})
		if err != nil {
			if c.closed() {
				return
			}
			c.report(connmon.HeartbeatError)
		} else if !c.awaitAck(ref) {
			if c.closed() {
				return
			}
			c.report(connmon.HeartbeatTimeout)
		} else {
			c.report(connmon.HeartbeatOK)
		}

		select {
		case <-c.done:
			return
		case <-ticker.C:
		}
	}
}

func (c *WSChannel) awaitAck(ref string) bool {
	timer := time.NewTimer(c.opts.HeartbeatTimeout)
	defer timer.Stop()
	for {
		select {
		case got := <-c.acks:
			if got == ref {
				return true
			}
		case <-timer.C:
			return false
		case <-c.done:
			return false
		}
	}
}
