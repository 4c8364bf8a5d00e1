package redis

// 缓存键
const (
	messageHistoryPrefix = "station:message_list:"
)

// MessageHistoryKey 会话消息历史缓存键
func MessageHistoryKey(sessionId string) string {
	return messageHistoryPrefix + sessionId
}
