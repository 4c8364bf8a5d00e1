package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"station_chat_server/internal/dto/respond"
	"station_chat_server/pkg/client/chatcore"
	"station_chat_server/pkg/client/connmon"
	"station_chat_server/pkg/client/countdown"
	"station_chat_server/pkg/client/transport"
	"station_chat_server/pkg/protocol"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// ChatCmd 交互式讨论
type ChatCmd struct {
	flags *Flags

	topicId    string
	open       bool
	name       string
	role       string
	retries    uint64
	heartbeat  time.Duration
	timerEvery time.Duration
}

func NewChatCmd(flags *Flags) *ChatCmd {
	return &ChatCmd{flags: flags}
}

func (cmd *ChatCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "chat",
		Usage:     "进入主题讨论",
		UsageText: "station_client chat --topic <topic> [--open]",
		Description: `进入本组在该主题下的讨论。

输入文字回车即发送，另外支持：
  /end          结束会话，所有成员离开讨论
  /reopen <m>   会话结束后延时 m 分钟重新开启
  /quit         离开讨论，不影响其他成员`,
		Flags: []cli.Flag{
			topicFlag(&cmd.topicId),
			&cli.BoolFlag{Name: "open", Usage: "会话未开始时直接开启", Destination: &cmd.open},
			&cli.StringFlag{Name: "name", Usage: "本地显示的昵称", Value: "me", Destination: &cmd.name},
			&cli.StringFlag{Name: "role", Usage: "本地显示的角色", Destination: &cmd.role},
			&cli.Uint64Flag{Name: "retries", Usage: "消息持久化最多重试次数", Value: 3, Destination: &cmd.retries},
			&cli.DurationFlag{Name: "heartbeat", Usage: "心跳间隔", Value: 10 * time.Second, Destination: &cmd.heartbeat},
			&cli.DurationFlag{Name: "timer-every", Usage: "倒计时刷新间隔", Value: 30 * time.Second, Destination: &cmd.timerEvery},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *ChatCmd) run(ctx context.Context, _ *cli.Command) error {
	api := cmd.flags.API

	session, err := api.View(ctx, cmd.topicId)
	if err != nil {
		return err
	}
	if session.Status == "PENDING" {
		if !cmd.open {
			printSession(session, cmd.flags.Offset)
			fmt.Println("会话尚未开始，使用 --open 开启")
			return nil
		}
		if session, err = api.Open(ctx, cmd.topicId); err != nil {
			return err
		}
	}
	printSession(session, cmd.flags.Offset)

	lines := readLines(os.Stdin)
	for {
		if session.Status == "COMPLETED" {
			if err := cmd.printHistory(ctx, session.SessionId); err != nil {
				return err
			}
			fmt.Println("会话已结束，/reopen <分钟> 重新开启，/quit 退出")
			next, quit, err := cmd.waitReopen(ctx, session.SessionId, lines)
			if err != nil || quit {
				return err
			}
			session = next
			printSession(session, cmd.flags.Offset)
			continue
		}

		next, quit, err := cmd.discuss(ctx, session, lines)
		if err != nil || quit {
			return err
		}
		session = next
	}
}

// discuss 订阅实时通道直到会话结束或用户离开
// 返回最新的会话状态，quit 表示用户主动退出
func (cmd *ChatCmd) discuss(ctx context.Context, session *respond.SessionRespond, lines <-chan string) (*respond.SessionRespond, bool, error) {
	api := cmd.flags.API
	sessionId := session.SessionId

	ticket, err := api.ChannelToken(ctx, sessionId)
	if err != nil {
		return nil, false, err
	}
	wsURL, err := transport.WebSocketURL(cmd.flags.Server, ticket.Token)
	if err != nil {
		return nil, false, err
	}

	monitor := connmon.New(true)
	cancelWatch := monitor.OnChange(func(s connmon.State) {
		fmt.Printf("-- 连接状态: %s\n", s)
	})
	defer cancelWatch()

	events := make(chan protocol.Event, 64)
	channel, err := transport.DialChannel(ctx, wsURL, transport.ChannelOptions{
		SessionId:         sessionId,
		HeartbeatInterval: cmd.heartbeat,
		OnEvent: func(ev protocol.Event) {
			select {
			case events <- ev:
			default:
				zap.L().Warn("事件处理不过来，丢弃", zap.String("type", ev.Type))
			}
		},
		OnHeartbeat: monitor.ReportHeartbeat,
	})
	if err != nil {
		return nil, false, err
	}

	view := &printer{seen: make(map[string]chatcore.DeliveryStatus)}
	core := chatcore.New(chatcore.Options{
		SessionId:  sessionId,
		Author:     chatcore.Author{Name: cmd.name, Role: cmd.role},
		Channel:    channel,
		Persister:  api,
		Lifecycle:  api,
		MaxRetries: cmd.retries,
		OnChange:   view.render,
		Now:        func() time.Time { return cmd.flags.Offset.Now(time.Now()) },
	})
	defer core.Leave()

	history, err := api.ListMessages(ctx, sessionId)
	if err != nil {
		zap.L().Warn("加载消息记录失败", zap.Error(err))
	} else {
		core.Load(history)
	}

	timerCtx, stopTimer := context.WithCancel(ctx)
	defer stopTimer()
	timer := &countdown.Timer{Interval: cmd.timerEvery, Offset: cmd.flags.Offset}
	go timer.Run(timerCtx, session.EndTimestamp, func(st countdown.State) {
		fmt.Printf("-- 剩余 %s (%s)\n", st.Text, st.Level)
	})

	for {
		select {
		case <-ctx.Done():
			return nil, true, nil
		case ev := <-events:
			core.HandleEvent(ev)
		case <-core.Done():
			core.Wait()
			fmt.Println("-- 会话已结束")
			latest, err := api.View(ctx, cmd.topicId)
			if err != nil {
				return nil, false, err
			}
			return latest, false, nil
		case line, ok := <-lines:
			if !ok {
				core.Wait()
				return nil, true, nil
			}
			switch {
			case line == "/quit":
				core.Leave()
				core.Wait()
				return nil, true, nil
			case line == "/end":
				if _, err := core.End(ctx); err != nil {
					fmt.Println("结束失败:", err)
				}
			case strings.HasPrefix(line, "/"):
				fmt.Println("未知命令:", line)
			case !monitor.CanSend():
				fmt.Printf("-- 当前%s，暂不能发送\n", monitor.State())
			default:
				if _, err := core.Send(ctx, line); err != nil {
					fmt.Println("发送失败:", err)
				}
			}
		}
	}
}

// waitReopen 会话结束后等待 /reopen 或 /quit
func (cmd *ChatCmd) waitReopen(ctx context.Context, sessionId string, lines <-chan string) (*respond.SessionRespond, bool, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, true, nil
		case line, ok := <-lines:
			if !ok || line == "/quit" {
				return nil, true, nil
			}
			fields := strings.Fields(line)
			if len(fields) != 2 || fields[0] != "/reopen" {
				fmt.Println("会话为只读，/reopen <分钟> 或 /quit")
				continue
			}
			minutes, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Println("分钟数无效:", fields[1])
				continue
			}
			resp, err := cmd.flags.API.Reopen(ctx, sessionId, minutes)
			if err != nil {
				fmt.Println("重新开启失败:", err)
				continue
			}
			return resp, false, nil
		}
	}
}

func (cmd *ChatCmd) printHistory(ctx context.Context, sessionId string) error {
	msgs, err := cmd.flags.API.ListMessages(ctx, sessionId)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		fmt.Printf("%s  %s: %s\n", m.CreatedAt.Local().Format(time.TimeOnly), m.AuthorName, m.Content)
	}
	return nil
}

// printer 只打印新增或状态变化的消息
type printer struct {
	mu   sync.Mutex
	seen map[string]chatcore.DeliveryStatus
}

func (p *printer) render(entries []chatcore.Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range entries {
		prev, ok := p.seen[e.ID]
		if ok && prev == e.Status {
			continue
		}
		p.seen[e.ID] = e.Status
		if ok && e.Status == chatcore.StatusSent {
			// pending -> sent 不重复打印内容
			continue
		}
		fmt.Printf("%s  [%s] %s: %s\n", e.CreatedAt.Local().Format(time.TimeOnly), e.Status, e.AuthorName, e.Content)
	}
}

// readLines 按行读取输入，读完关闭通道
func readLines(r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				out <- line
			}
		}
	}()
	return out
}
