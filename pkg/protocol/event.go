// Package protocol 定义实时通道上传输的事件格式
// 服务端网关与设备端客户端共用同一套结构，避免两端各自解析
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// 事件类型
const (
	EventNewMessage   = "new-message"   // 新消息，携带完整 Message
	EventSessionEnded = "session-ended" // 会话结束信号，仅携带 session_id
	EventHeartbeat    = "heartbeat"     // 客户端心跳
	EventHeartbeatAck = "heartbeat_ack" // 服务端对心跳的应答，只回给发送方
)

// Message 聊天消息
// ID 由客户端生成且全局唯一，是本地回显与广播合并去重的依据
type Message struct {
	ID         string    `json:"id"`
	SessionId  string    `json:"session_id"`
	AuthorId   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	AuthorRole string    `json:"author_role"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// Event 通道事件信封
type Event struct {
	Type      string   `json:"type"`
	SessionId string   `json:"session_id"`
	Message   *Message `json:"message,omitempty"`
	Ref       string   `json:"ref,omitempty"` // 心跳序号
}

// NewMessageEvent 构造 new-message 事件
func NewMessageEvent(msg Message) Event {
	return Event{Type: EventNewMessage, SessionId: msg.SessionId, Message: &msg}
}

// SessionEndedEvent 构造 session-ended 事件
func SessionEndedEvent(sessionId string) Event {
	return Event{Type: EventSessionEnded, SessionId: sessionId}
}

// Encode 序列化事件
func Encode(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

// Decode 反序列化并校验事件
func Decode(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// Validate 校验事件的结构完整性
func (ev Event) Validate() error {
	switch ev.Type {
	case EventNewMessage:
		if ev.Message == nil {
			return fmt.Errorf("new-message without payload")
		}
		if ev.Message.ID == "" {
			return fmt.Errorf("new-message without id")
		}
		if strings.TrimSpace(ev.Message.Content) == "" {
			return fmt.Errorf("new-message %s has empty content", ev.Message.ID)
		}
		if ev.Message.SessionId != ev.SessionId {
			return fmt.Errorf("new-message %s session mismatch", ev.Message.ID)
		}
	case EventSessionEnded:
		if ev.SessionId == "" {
			return fmt.Errorf("session-ended without session_id")
		}
	case EventHeartbeat, EventHeartbeatAck:
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
	return nil
}
