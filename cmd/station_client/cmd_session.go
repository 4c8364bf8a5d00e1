package main

import (
	"context"
	"fmt"
	"time"

	"station_chat_server/internal/dto/respond"
	"station_chat_server/pkg/client/countdown"

	"github.com/urfave/cli/v3"
)

// SessionCmd 主题与会话生命周期命令
type SessionCmd struct {
	flags *Flags

	topicId   string
	sessionId string
	minutes   int
}

func NewSessionCmd(flags *Flags) *SessionCmd {
	return &SessionCmd{flags: flags}
}

// Register 注册 topics/view/open/end/reopen/history
func (cmd *SessionCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands,
		&cli.Command{
			Name:   "topics",
			Usage:  "列出讨论主题",
			Action: cmd.topics,
		},
		&cli.Command{
			Name:   "view",
			Usage:  "查看本组在该主题下的会话，不存在时创建为 PENDING",
			Flags:  []cli.Flag{topicFlag(&cmd.topicId)},
			Action: cmd.view,
		},
		&cli.Command{
			Name:   "open",
			Usage:  "开启会话并开始计时",
			Flags:  []cli.Flag{topicFlag(&cmd.topicId)},
			Action: cmd.open,
		},
		&cli.Command{
			Name:   "end",
			Usage:  "结束会话",
			Flags:  []cli.Flag{sessionFlag(&cmd.sessionId)},
			Action: cmd.end,
		},
		&cli.Command{
			Name:  "reopen",
			Usage: "延时重新开启已结束的会话",
			Flags: []cli.Flag{
				sessionFlag(&cmd.sessionId),
				&cli.IntFlag{Name: "minutes", Aliases: []string{"m"}, Usage: "延时分钟数 (2/5/10/15)", Value: 5, Destination: &cmd.minutes},
			},
			Action: cmd.reopen,
		},
		&cli.Command{
			Name:   "history",
			Usage:  "打印会话消息记录",
			Flags:  []cli.Flag{sessionFlag(&cmd.sessionId)},
			Action: cmd.history,
		},
	)
	return app
}

func topicFlag(dst *string) cli.Flag {
	return &cli.StringFlag{Name: "topic", Aliases: []string{"t"}, Usage: "主题 ID", Required: true, Destination: dst}
}

func sessionFlag(dst *string) cli.Flag {
	return &cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "会话 ID", Required: true, Destination: dst}
}

func (cmd *SessionCmd) topics(ctx context.Context, _ *cli.Command) error {
	topics, err := cmd.flags.API.Topics(ctx)
	if err != nil {
		return err
	}
	for _, t := range topics {
		fmt.Printf("%2d  %-12s %s\n", t.Number, t.Id, t.Title)
	}
	return nil
}

func (cmd *SessionCmd) view(ctx context.Context, _ *cli.Command) error {
	resp, err := cmd.flags.API.View(ctx, cmd.topicId)
	if err != nil {
		return err
	}
	printSession(resp, cmd.flags.Offset)
	return nil
}

func (cmd *SessionCmd) open(ctx context.Context, _ *cli.Command) error {
	resp, err := cmd.flags.API.Open(ctx, cmd.topicId)
	if err != nil {
		return err
	}
	printSession(resp, cmd.flags.Offset)
	return nil
}

func (cmd *SessionCmd) end(ctx context.Context, _ *cli.Command) error {
	resp, err := cmd.flags.API.End(ctx, cmd.sessionId)
	if err != nil {
		return err
	}
	printSession(resp, cmd.flags.Offset)
	return nil
}

func (cmd *SessionCmd) reopen(ctx context.Context, _ *cli.Command) error {
	resp, err := cmd.flags.API.Reopen(ctx, cmd.sessionId, cmd.minutes)
	if err != nil {
		return err
	}
	printSession(resp, cmd.flags.Offset)
	return nil
}

func (cmd *SessionCmd) history(ctx context.Context, _ *cli.Command) error {
	msgs, err := cmd.flags.API.ListMessages(ctx, cmd.sessionId)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		fmt.Printf("%s  %s: %s\n", m.CreatedAt.Local().Format(time.TimeOnly), m.AuthorName, m.Content)
	}
	return nil
}

func printSession(s *respond.SessionRespond, offset *countdown.Offset) {
	st := countdown.Compute(s.EndTimestamp, offset.Now(time.Now()))
	fmt.Printf("session  %s\n", s.SessionId)
	fmt.Printf("topic    %s\n", s.TopicId)
	fmt.Printf("status   %s\n", s.Status)
	fmt.Printf("timer    %s (%s)\n", st.Text, st.Level)
}
