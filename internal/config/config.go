// Package config 提供应用程序的配置加载和管理功能
// 使用 TOML 格式的配置文件，支持多路径查找与 .env 环境变量覆盖
package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/BurntSushi/toml" // TOML 配置文件解析库
	"github.com/joho/godotenv"
)

// MainConfig 主配置，包含应用基本信息
type MainConfig struct {
	AppName string `toml:"appName"` // 应用名称，同时作为 JWT issuer
	Host    string `toml:"host"`    // 服务器监听地址，如 "0.0.0.0"
	Port    int    `toml:"port"`    // 服务器监听端口，如 8000
	Mode    string `toml:"mode"`    // 运行模式：dev / release
	TLS     bool   `toml:"tls"`     // 是否启用 HTTPS 重定向
}

// DatabaseConfig 数据库连接配置
type DatabaseConfig struct {
	Driver       string `toml:"driver"`       // mysql 或 postgres
	Host         string `toml:"host"`         // 数据库服务器地址
	Port         int    `toml:"port"`         // 端口
	User         string `toml:"user"`         // 数据库用户名
	Password     string `toml:"password"`     // 数据库密码
	DatabaseName string `toml:"databaseName"` // 数据库名称
	MaxOpenConns int    `toml:"maxOpenConns"` // 最大连接数
	MaxIdleConns int    `toml:"maxIdleConns"` // 最大空闲连接数
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Host       string `toml:"host"`       // Redis 服务器地址
	Port       int    `toml:"port"`       // Redis 端口，默认 6379
	Password   string `toml:"password"`   // Redis 密码，无密码留空
	Db         int    `toml:"db"`         // Redis 数据库编号，默认 0
	Workers    int    `toml:"workers"`    // 异步任务协程数
	HistoryTTL int    `toml:"historyTTL"` // 已结束会话的消息历史缓存时长（秒）
}

// LogConfig 日志配置，使用 lumberjack 进行日志轮转
type LogConfig struct {
	LogPath    string `toml:"logPath"`    // 日志文件存储目录
	FileName   string `toml:"fileName"`   // 日志文件名
	MaxSize    int    `toml:"maxSize"`    // 单个日志文件最大大小（MB）
	MaxBackups int    `toml:"maxBackups"` // 保留旧日志文件的最大个数
	MaxAge     int    `toml:"maxAge"`     // 保留旧日志文件的最大天数
	Level      string `toml:"level"`      // 日志级别：debug, info, warn, error
}

// KafkaConfig Kafka 消息队列配置
type KafkaConfig struct {
	HostPort    string `toml:"hostPort"`    // Kafka 服务器地址，如 "localhost:9092"
	ChatTopic   string `toml:"chatTopic"`   // 实时事件主题
	Partition   int    `toml:"partition"`   // 分区数
	Timeout     int    `toml:"timeout"`     // 超时时间（秒）
	GroupPrefix string `toml:"groupPrefix"` // 消费组前缀，每个节点独立消费组以实现广播
}

// RealtimeConfig 实时通道配置
type RealtimeConfig struct {
	Mode               string  `toml:"mode"`               // channel / redis / kafka
	ChannelPrefix      string  `toml:"channelPrefix"`      // Redis 频道前缀
	ChannelTokenExpiry int     `toml:"channelTokenExpiry"` // 通道 Token 有效期（秒）
	PingInterval       int     `toml:"pingInterval"`       // WebSocket ping 间隔（秒）
	SendRate           float64 `toml:"sendRate"`           // 每连接每秒允许发布的事件数
	SendBurst          int     `toml:"sendBurst"`          // 突发上限
}

// JWTConfig JWT 认证配置
type JWTConfig struct {
	Secret            string `toml:"secret"`            // JWT 签名密钥，建议 32 字符以上
	AccessTokenExpiry int    `toml:"accessTokenExpiry"` // Access Token 有效期（分钟）
}

// StationConfig 讨论站点会话配置
type StationConfig struct {
	SessionMinutes   int    `toml:"sessionMinutes"`   // 开启会话的固定时长（分钟）
	ReopenMinutes    []int  `toml:"reopenMinutes"`    // 允许的延时选项（分钟）
	SweepInterval    int    `toml:"sweepInterval"`    // 过期扫描间隔（秒）
	ExpiryGrace      int    `toml:"expiryGrace"`      // 截止后多久强制结束（秒）
	TopicCatalogPath string `toml:"topicCatalogPath"` // 讨论主题目录 YAML 文件
}

// Config 应用程序总配置，聚合所有子配置
type Config struct {
	MainConfig     `toml:"mainConfig"`     // 主配置
	DatabaseConfig `toml:"databaseConfig"` // 数据库配置
	RedisConfig    `toml:"redisConfig"`    // Redis 配置
	LogConfig      `toml:"logConfig"`      // 日志配置
	KafkaConfig    `toml:"kafkaConfig"`    // Kafka 配置
	RealtimeConfig `toml:"realtimeConfig"` // 实时通道配置
	JWTConfig      `toml:"jwtConfig"`      // JWT 配置
	StationConfig  `toml:"stationConfig"`  // 会话配置
}

var (
	config *Config
	once   sync.Once
)

// 候选配置文件路径（优先加载本地配置）
var searchPaths = []string{
	"configs/config_local.toml",
	"configs/config.toml",
	"../../configs/config_local.toml",
	"../../configs/config.toml",
}

// LoadConfig 加载 .env 与 TOML 配置文件
// STATION_CONFIG 指定路径时只尝试该文件，否则按候选路径依次查找
func LoadConfig(cfg *Config) error {
	// .env 不存在是常态，忽略错误
	_ = godotenv.Load()

	paths := searchPaths
	if p := os.Getenv("STATION_CONFIG"); p != "" {
		paths = []string{p}
	}

	var loaded bool
	for _, path := range paths {
		if _, err := toml.DecodeFile(path, cfg); err == nil {
			loaded = true
			break
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	if !loaded {
		return fmt.Errorf("could not find configuration file in any of the search paths")
	}
	return nil
}

// applyEnv 敏感信息允许通过环境变量覆盖
func applyEnv(cfg *Config) {
	if v := os.Getenv("STATION_JWT_SECRET"); v != "" {
		cfg.JWTConfig.Secret = v
	}
	if v := os.Getenv("STATION_DB_PASSWORD"); v != "" {
		cfg.DatabaseConfig.Password = v
	}
	if v := os.Getenv("STATION_REDIS_PASSWORD"); v != "" {
		cfg.RedisConfig.Password = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.MainConfig.AppName == "" {
		cfg.MainConfig.AppName = "station_chat_server"
	}
	if cfg.MainConfig.Host == "" {
		cfg.MainConfig.Host = "0.0.0.0"
	}
	if cfg.MainConfig.Port == 0 {
		cfg.MainConfig.Port = 8000
	}
	if cfg.MainConfig.Mode == "" {
		cfg.MainConfig.Mode = "dev"
	}
	if cfg.DatabaseConfig.Driver == "" {
		cfg.DatabaseConfig.Driver = "mysql"
	}
	if cfg.DatabaseConfig.MaxOpenConns == 0 {
		cfg.DatabaseConfig.MaxOpenConns = 100
	}
	if cfg.DatabaseConfig.MaxIdleConns == 0 {
		cfg.DatabaseConfig.MaxIdleConns = 10
	}
	if cfg.RedisConfig.Port == 0 {
		cfg.RedisConfig.Port = 6379
	}
	if cfg.RedisConfig.Workers == 0 {
		cfg.RedisConfig.Workers = 8
	}
	if cfg.RedisConfig.HistoryTTL == 0 {
		cfg.RedisConfig.HistoryTTL = 600
	}
	if cfg.LogConfig.LogPath == "" {
		cfg.LogConfig.LogPath = "./logs"
	}
	if cfg.KafkaConfig.ChatTopic == "" {
		cfg.KafkaConfig.ChatTopic = "station_events"
	}
	if cfg.KafkaConfig.Timeout == 0 {
		cfg.KafkaConfig.Timeout = 1
	}
	if cfg.KafkaConfig.GroupPrefix == "" {
		cfg.KafkaConfig.GroupPrefix = "station"
	}
	if cfg.RealtimeConfig.Mode == "" {
		cfg.RealtimeConfig.Mode = "channel"
	}
	if cfg.RealtimeConfig.ChannelPrefix == "" {
		cfg.RealtimeConfig.ChannelPrefix = "station:session:"
	}
	if cfg.RealtimeConfig.ChannelTokenExpiry == 0 {
		cfg.RealtimeConfig.ChannelTokenExpiry = 60
	}
	if cfg.RealtimeConfig.PingInterval == 0 {
		cfg.RealtimeConfig.PingInterval = 15
	}
	if cfg.RealtimeConfig.SendRate == 0 {
		cfg.RealtimeConfig.SendRate = 5
	}
	if cfg.RealtimeConfig.SendBurst == 0 {
		cfg.RealtimeConfig.SendBurst = 10
	}
	if cfg.JWTConfig.AccessTokenExpiry == 0 {
		cfg.JWTConfig.AccessTokenExpiry = 24 * 60
	}
	if cfg.StationConfig.SessionMinutes == 0 {
		cfg.StationConfig.SessionMinutes = 15
	}
	if len(cfg.StationConfig.ReopenMinutes) == 0 {
		cfg.StationConfig.ReopenMinutes = []int{2, 5, 10, 15}
	}
	if cfg.StationConfig.SweepInterval == 0 {
		cfg.StationConfig.SweepInterval = 30
	}
	if cfg.StationConfig.ExpiryGrace == 0 {
		cfg.StationConfig.ExpiryGrace = 120
	}
	if cfg.StationConfig.TopicCatalogPath == "" {
		cfg.StationConfig.TopicCatalogPath = "configs/topics.yaml"
	}
}

// GetConfig 获取全局配置实例（单例模式）
// 首次调用时会自动加载配置文件，找不到文件时使用默认值
func GetConfig() *Config {
	once.Do(func() {
		config = new(Config)
		_ = LoadConfig(config)
	})
	return config
}
