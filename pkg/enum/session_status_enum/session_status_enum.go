package session_status_enum

// 会话状态
// 只允许 PENDING -> ACTIVE -> COMPLETED -> ACTIVE -> COMPLETED ... 的迁移，PENDING 不会再次进入
const (
	PENDING   = iota // 已创建，未开始计时（小组可先预览题目）
	ACTIVE           // 计时中，聊天开放
	COMPLETED        // 已结束，聊天只读
)

// String 返回状态的外部表示
func String(status int8) string {
	switch status {
	case PENDING:
		return "PENDING"
	case ACTIVE:
		return "ACTIVE"
	case COMPLETED:
		return "COMPLETED"
	}
	return "UNKNOWN"
}
