package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"station_chat_server/pkg/client/countdown"
	"station_chat_server/pkg/client/transport"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Flags 全局参数与共享依赖
type Flags struct {
	Server   string
	Token    string
	LogLevel string
	Timeout  time.Duration

	API    *transport.APIClient
	Offset *countdown.Offset
}

func main() {
	flags := &Flags{Offset: &countdown.Offset{}}

	app := &cli.Command{
		Name:      "station_client",
		Usage:     "讨论站点命令行客户端",
		UsageText: "station_client [global options] command [command options]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "server",
				Usage:       "服务端地址",
				Sources:     cli.EnvVars("STATION_SERVER"),
				Value:       "http://localhost:8000",
				Destination: &flags.Server,
			},
			&cli.StringFlag{
				Name:        "token",
				Usage:       "访问令牌",
				Sources:     cli.EnvVars("STATION_TOKEN"),
				Destination: &flags.Token,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "日志级别 (debug, info, warn, error)",
				Sources:     cli.EnvVars("STATION_LOG_LEVEL"),
				Value:       "warn",
				Destination: &flags.LogLevel,
			},
			&cli.DurationFlag{
				Name:        "timeout",
				Usage:       "单次请求超时",
				Value:       10 * time.Second,
				Destination: &flags.Timeout,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if err := setupLogger(flags.LogLevel); err != nil {
				return ctx, err
			}
			if flags.Token == "" {
				return ctx, fmt.Errorf("缺少访问令牌，使用 --token 或 STATION_TOKEN")
			}
			flags.API = transport.NewAPIClient(flags.Server, flags.Token, &http.Client{Timeout: flags.Timeout})
			flags.API.OnServerTime = flags.Offset.Observe
			return ctx, nil
		},
	}

	app = NewSessionCmd(flags).Register(app)
	app = NewChatCmd(flags).Register(app)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		stop()
		os.Exit(1)
	}
}

// setupLogger 客户端日志只输出到 stderr
func setupLogger(level string) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	lg, err := cfg.Build()
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(lg)
	return nil
}
