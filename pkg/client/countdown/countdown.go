// Package countdown 根据服务端下发的截止时间计算剩余时间
// 计算只依赖 (deadline, now)，不访问服务端
package countdown

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Level 展示级别
type Level int

const (
	Placeholder Level = iota // 没有截止时间
	Normal                   // 剩余 > 5 分钟
	Warning                  // 1 分钟 < 剩余 <= 5 分钟
	Critical                 // 0 < 剩余 <= 1 分钟
	Expired                  // 剩余为 0
)

// 阈值
const (
	WarningThreshold  = 300 * time.Second
	CriticalThreshold = 60 * time.Second
)

// 展示文本
const (
	PlaceholderText = "--:--"
	ExpiredText     = "Time is up"
)

func (l Level) String() string {
	switch l {
	case Placeholder:
		return "placeholder"
	case Normal:
		return "normal"
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	case Expired:
		return "expired"
	}
	return "unknown"
}

// State 一次计算结果
type State struct {
	Level     Level
	Remaining time.Duration
	Text      string
}

// Compute remaining = max(0, deadline - now)
// deadline 为 nil 时返回占位状态，与经过的时间无关
func Compute(deadline *time.Time, now time.Time) State {
	if deadline == nil {
		return State{Level: Placeholder, Text: PlaceholderText}
	}
	remaining := deadline.Sub(now)
	if remaining <= 0 {
		return State{Level: Expired, Text: ExpiredText}
	}

	level := Normal
	switch {
	case remaining <= CriticalThreshold:
		level = Critical
	case remaining <= WarningThreshold:
		level = Warning
	}
	return State{Level: level, Remaining: remaining, Text: format(remaining)}
}

// format 向上取整到秒，剩余 0.4s 仍显示 00:01
func format(d time.Duration) string {
	secs := int((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// Offset 估计服务端时钟与本地时钟的偏差
// 每次生命周期响应都带 server_time，取请求往返的中点作为本地对照时刻
type Offset struct {
	mu      sync.RWMutex
	offset  time.Duration
	samples int
}

// smoothing 新样本的权重
const smoothing = 0.25

// Observe 记录一次样本
func (o *Offset) Observe(serverTime, sentAt, receivedAt time.Time) {
	if serverTime.IsZero() || receivedAt.Before(sentAt) {
		return
	}
	mid := sentAt.Add(receivedAt.Sub(sentAt) / 2)
	sample := serverTime.Sub(mid)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.samples == 0 {
		o.offset = sample
	} else {
		o.offset += time.Duration(float64(sample-o.offset) * smoothing)
	}
	o.samples++
}

// Value 当前估计值，服务端时钟 = 本地时钟 + Value
func (o *Offset) Value() time.Duration {
	if o == nil {
		return 0
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.offset
}

// Now 按偏差校正后的当前时刻
func (o *Offset) Now(local time.Time) time.Time {
	return local.Add(o.Value())
}

// Timer 每个 interval 重新计算一次
type Timer struct {
	Interval time.Duration
	Offset   *Offset          // 可为 nil
	Now      func() time.Time // 测试注入
}

// Run 持续输出状态，直到 ctx 取消或进入 Expired/Placeholder
// deadline 为 nil 时只输出一次占位状态
func (t *Timer) Run(ctx context.Context, deadline *time.Time, emit func(State)) {
	interval := t.Interval
	if interval <= 0 {
		interval = time.Second
	}
	now := t.Now
	if now == nil {
		now = time.Now
	}

	tick := func() bool {
		st := Compute(deadline, t.Offset.Now(now()))
		emit(st)
		return st.Level != Expired && st.Level != Placeholder
	}
	if !tick() {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !tick() {
				return
			}
		}
	}
}
