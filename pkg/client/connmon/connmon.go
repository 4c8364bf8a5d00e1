// Package connmon 维护设备端的连接健康状态
// 状态由网络可达性事件与实时通道心跳两路信号驱动，只用于决定是否允许发送
package connmon

import "sync"

// State 连接状态
type State int

const (
	Offline State = iota
	Reconnecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Offline:
		return "offline"
	}
	return "unknown"
}

// Heartbeat 传输层心跳结果
type Heartbeat int

const (
	HeartbeatOK Heartbeat = iota
	HeartbeatTimeout
	HeartbeatError
	HeartbeatDisconnected
)

func (h Heartbeat) String() string {
	switch h {
	case HeartbeatOK:
		return "ok"
	case HeartbeatTimeout:
		return "timeout"
	case HeartbeatError:
		return "error"
	case HeartbeatDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Monitor 连接状态机 connected <-> reconnecting <-> offline
type Monitor struct {
	mu        sync.Mutex
	state     State
	networkUp bool
	nextId    int
	listeners map[int]func(State)
}

// New 创建监视器，网络可达时先进入 reconnecting，等待第一次心跳确认
func New(networkUp bool) *Monitor {
	m := &Monitor{networkUp: networkUp, listeners: make(map[int]func(State))}
	if networkUp {
		m.state = Reconnecting
	}
	return m
}

// State 当前状态
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CanSend 只有 connected 时允许发送
func (m *Monitor) CanSend() bool {
	return m.State() == Connected
}

// OnChange 注册状态变更回调，返回取消函数
func (m *Monitor) OnChange(fn func(State)) (cancel func()) {
	m.mu.Lock()
	id := m.nextId
	m.nextId++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// NetworkOnline 网络恢复，等待心跳确认
func (m *Monitor) NetworkOnline() {
	m.transition(func() State {
		m.networkUp = true
		if m.state == Connected {
			return Connected
		}
		return Reconnecting
	})
}

// NetworkOffline 网络断开
func (m *Monitor) NetworkOffline() {
	m.transition(func() State {
		m.networkUp = false
		return Offline
	})
}

// ReportHeartbeat 记录一次心跳结果
func (m *Monitor) ReportHeartbeat(h Heartbeat) {
	m.transition(func() State {
		switch h {
		case HeartbeatOK:
			m.networkUp = true
			return Connected
		case HeartbeatTimeout, HeartbeatError:
			if !m.networkUp {
				return Offline
			}
			return Reconnecting
		case HeartbeatDisconnected:
			return Offline
		}
		return m.state
	})
}

func (m *Monitor) transition(next func() State) {
	m.mu.Lock()
	prev := m.state
	m.state = next()
	changed := m.state != prev
	state := m.state
	var fns []func(State)
	if changed {
		fns = make([]func(State), 0, len(m.listeners))
		for _, fn := range m.listeners {
			fns = append(fns, fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}
