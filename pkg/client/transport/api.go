// Package transport 设备端与服务端之间的传输层
// APIClient 调用 HTTP 接口，WSChannel 连接会话实时通道
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"station_chat_server/internal/dto/request"
	"station_chat_server/internal/dto/respond"
	"station_chat_server/internal/model"
	"station_chat_server/pkg/errorx"
	"station_chat_server/pkg/protocol"
)

// APIClient HTTP 接口客户端
// 每个会话视图显式构造并注入，不使用全局实例
type APIClient struct {
	baseURL     string
	accessToken string
	http        *http.Client

	// OnServerTime 每个生命周期响应到达时回调，用于估计时钟偏差
	OnServerTime func(serverTime, sentAt, receivedAt time.Time)
}

// NewAPIClient 创建客户端，httpClient 为 nil 时使用 10 秒超时的默认客户端
func NewAPIClient(baseURL, accessToken string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &APIClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		http:        httpClient,
	}
}

type envelope struct {
	Code int             `json:"code"`
	Msg  json.RawMessage `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// message msg 可能是字符串，也可能是字段到错误信息的映射
func (e envelope) message() string {
	var s string
	if err := json.Unmarshal(e.Msg, &s); err == nil {
		return s
	}
	return string(e.Msg)
}

func (c *APIClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errorx.Wrap(err, errorx.CodeInvalidParam, "请求序列化失败")
		}
		reader = bytes.NewReader(data)
	}

	var req *http.Request
	var err error
	if reader != nil {
		req, err = http.NewRequestWithContext(ctx, method, u, reader)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, u, nil)
	}
	if err != nil {
		return errorx.Wrap(err, errorx.CodeInvalidParam, "构造请求失败")
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errorx.Wrapf(err, errorx.CodeTransportError, "%s %s 请求失败", method, path)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return errorx.Wrapf(err, errorx.CodeTransportError, "%s %s 响应解析失败 (HTTP %d)", method, path, resp.StatusCode)
	}
	if resp.StatusCode == http.StatusUnauthorized && env.Code == 0 {
		env.Code = errorx.CodeUnauthenticated
	}
	if env.Code != errorx.CodeSuccess {
		return errorx.New(env.Code, env.message())
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return errorx.Wrapf(err, errorx.CodeTransportError, "%s %s 数据解析失败", method, path)
	}
	return nil
}

// lifecycle 会话生命周期调用，同时回报 server_time
func (c *APIClient) lifecycle(ctx context.Context, method, path string, query url.Values, body any) (*respond.SessionRespond, error) {
	sentAt := time.Now()
	var out respond.SessionRespond
	if err := c.do(ctx, method, path, query, body, &out); err != nil {
		return nil, err
	}
	if c.OnServerTime != nil {
		c.OnServerTime(out.ServerTime, sentAt, time.Now())
	}
	return &out, nil
}

// Topics 主题列表
func (c *APIClient) Topics(ctx context.Context) ([]model.Topic, error) {
	var out []model.Topic
	if err := c.do(ctx, http.MethodGet, "/topic/list", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// View 查看会话
func (c *APIClient) View(ctx context.Context, topicId string) (*respond.SessionRespond, error) {
	return c.lifecycle(ctx, http.MethodGet, "/session/view", url.Values{"topic_id": {topicId}}, nil)
}

// Open 开启会话
func (c *APIClient) Open(ctx context.Context, topicId string) (*respond.SessionRespond, error) {
	return c.lifecycle(ctx, http.MethodPost, "/session/open", nil, request.OpenSessionRequest{TopicId: topicId})
}

// End 结束会话
func (c *APIClient) End(ctx context.Context, sessionId string) (*respond.SessionRespond, error) {
	return c.lifecycle(ctx, http.MethodPost, "/session/end", nil, request.EndSessionRequest{SessionId: sessionId})
}

// Reopen 重新开放会话
func (c *APIClient) Reopen(ctx context.Context, sessionId string, extraMinutes int) (*respond.SessionRespond, error) {
	return c.lifecycle(ctx, http.MethodPost, "/session/reopen", nil,
		request.ReopenSessionRequest{SessionId: sessionId, ExtraMinutes: extraMinutes})
}

// ChannelToken 实时通道握手
func (c *APIClient) ChannelToken(ctx context.Context, sessionId string) (*respond.ChannelTokenRespond, error) {
	var out respond.ChannelTokenRespond
	if err := c.do(ctx, http.MethodPost, "/session/channelToken", nil, request.ChannelTokenRequest{SessionId: sessionId}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PersistMessage 幂等持久化消息
func (c *APIClient) PersistMessage(ctx context.Context, msg protocol.Message) (*respond.SendMessageRespond, error) {
	var out respond.SendMessageRespond
	err := c.do(ctx, http.MethodPost, "/message/send", nil, request.SendMessageRequest{
		SessionId:       msg.SessionId,
		ClientMessageId: msg.ID,
		Content:         msg.Content,
		AuthorName:      msg.AuthorName,
		AuthorRole:      msg.AuthorRole,
		CreatedAt:       msg.CreatedAt,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMessages 会话消息历史
func (c *APIClient) ListMessages(ctx context.Context, sessionId string) ([]protocol.Message, error) {
	var out []protocol.Message
	if err := c.do(ctx, http.MethodGet, "/message/list", url.Values{"session_id": {sessionId}}, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// WebSocketURL 由 HTTP 地址推导实时通道地址
func WebSocketURL(baseURL, token string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}
