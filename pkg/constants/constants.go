package constants

const (
	CHANNEL_SIZE             = 100 // 通道大小
	REDIS_TIMEOUT            = 1   // redis timeout (秒)
	DEFAULT_SESSION_MINUTES  = 15  // 讨论默认时长（分钟）
	MESSAGE_MAX_LENGTH       = 2000
	HEARTBEAT_TIMEOUT_FACTOR = 2 // 心跳超时 = 心跳间隔 * 该系数
)

// DEFAULT_REOPEN_MINUTES 重新开放时允许追加的分钟数
var DEFAULT_REOPEN_MINUTES = []int{2, 5, 10, 15}
