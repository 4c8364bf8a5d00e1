package message

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"station_chat_server/internal/dao/mysql/repository"
	"station_chat_server/internal/dto/request"
	"station_chat_server/internal/model"
	"station_chat_server/pkg/constants"
	"station_chat_server/pkg/enum/session_status_enum"
	"station_chat_server/pkg/errorx"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// stubAuthorizer 按会话 id 返回固定会话，"forbidden" 返回授权错误
type stubAuthorizer struct {
	sessions map[string]*model.Session
}

func (a *stubAuthorizer) Authorize(_ context.Context, userId, sessionId string) (*model.Session, error) {
	if userId == "stranger" {
		return nil, errorx.ErrForbidden
	}
	sess, ok := a.sessions[sessionId]
	if !ok {
		return nil, errorx.New(errorx.CodeNotFound, "会话不存在")
	}
	return sess, nil
}

// memoryCache 同步执行任务的内存缓存
type memoryCache struct {
	mu   sync.Mutex
	data map[string]string
	gets int
}

func newMemoryCache() *memoryCache { return &memoryCache{data: map[string]string{}} }

func (c *memoryCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	return c.data[key], nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memoryCache) SubmitTask(action func()) { action() }

var (
	testStartedAt   = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	testCompletedAt = time.Date(2024, 5, 1, 10, 15, 0, 0, time.UTC)
)

func newTestService(t *testing.T, cache *memoryCache) (*messageService, *stubAuthorizer) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&model.Message{}))

	startedAt := sql.NullTime{Time: testStartedAt, Valid: true}
	auth := &stubAuthorizer{sessions: map[string]*model.Session{
		"S1": {Uuid: "S1", Status: session_status_enum.ACTIVE, StartedAt: startedAt},
		"S0": {Uuid: "S0", Status: session_status_enum.PENDING},
		"S2": {Uuid: "S2", Status: session_status_enum.COMPLETED, StartedAt: startedAt,
			CompletedAt: sql.NullTime{Time: testCompletedAt, Valid: true}},
	}}
	var svc *messageService
	if cache != nil {
		svc = NewMessageService(repository.NewRepositories(db), auth, cache, time.Minute)
	} else {
		svc = NewMessageService(repository.NewRepositories(db), auth, nil, time.Minute)
	}
	// 服务端时钟停在 S2 结束后 30 秒，仍在宽限期内
	svc.now = func() time.Time { return testCompletedAt.Add(30 * time.Second) }
	return svc, auth
}

func TestValidateContent(t *testing.T) {
	got, err := ValidateContent("  hei \n")
	require.NoError(t, err)
	assert.Equal(t, "hei", got)

	_, err = ValidateContent(" \t\n ")
	assert.True(t, errorx.IsValidation(err))

	_, err = ValidateContent(strings.Repeat("ø", constants.MESSAGE_MAX_LENGTH+1))
	assert.True(t, errorx.IsValidation(err))
}

func TestSend_Idempotent(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	author := Author{Id: "U1", Name: "Kari", Role: "student"}
	req := request.SendMessageRequest{
		SessionId:       "S1",
		ClientMessageId: "m1",
		Content:         " hei ",
		AuthorName:      "spoofed",
		CreatedAt:       time.Date(2024, 5, 1, 10, 1, 0, 0, time.UTC),
	}

	first, err := svc.Send(ctx, author, req)
	require.NoError(t, err)
	assert.True(t, first.Created)

	second, err := svc.Send(ctx, author, req)
	require.NoError(t, err)
	assert.False(t, second.Created)

	list, err := svc.List(ctx, "U1", "S1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "hei", list[0].Content)
	assert.Equal(t, "Kari", list[0].AuthorName)
	assert.Equal(t, "U1", list[0].AuthorId)
}

func TestSend_Rejects(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	author := Author{Id: "U1"}

	_, err := svc.Send(ctx, author, request.SendMessageRequest{SessionId: "S1", ClientMessageId: "m1", Content: "   "})
	assert.True(t, errorx.IsValidation(err))

	_, err = svc.Send(ctx, Author{Id: "stranger"}, request.SendMessageRequest{SessionId: "S1", ClientMessageId: "m1", Content: "x"})
	assert.True(t, errorx.IsForbidden(err))

	_, err = svc.Send(ctx, author, request.SendMessageRequest{SessionId: "S0", ClientMessageId: "m1", Content: "x"})
	assert.True(t, errorx.IsConflict(err))

	// 结束前创建的消息在宽限期内仍可落库
	_, err = svc.Send(ctx, author, request.SendMessageRequest{SessionId: "S2", ClientMessageId: "m2", Content: "x",
		CreatedAt: time.Date(2024, 5, 1, 10, 14, 59, 0, time.UTC)})
	assert.NoError(t, err)
	// 结束后写下的消息即使在宽限期内也拒绝
	_, err = svc.Send(ctx, author, request.SendMessageRequest{SessionId: "S2", ClientMessageId: "m3", Content: "x",
		CreatedAt: time.Date(2024, 5, 1, 10, 15, 20, 0, time.UTC)})
	assert.True(t, errorx.IsConflict(err))
	// 超前的时间被拉回服务端时间，同样晚于结束时间
	_, err = svc.Send(ctx, author, request.SendMessageRequest{SessionId: "S2", ClientMessageId: "m4", Content: "x",
		CreatedAt: time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)})
	assert.True(t, errorx.IsConflict(err))
}

func TestSend_CompletedSessionIgnoresBackdatedTimestamp(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	author := Author{Id: "U1", Name: "Kari"}
	svc.now = func() time.Time { return testCompletedAt.Add(lateGrace + time.Second) }

	_, err := svc.Send(ctx, author, request.SendMessageRequest{SessionId: "S2", ClientMessageId: "old", Content: "x",
		CreatedAt: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)})
	assert.True(t, errorx.IsConflict(err))

	_, err = svc.Send(ctx, author, request.SendMessageRequest{SessionId: "S2", ClientMessageId: "edge", Content: "x",
		CreatedAt: testCompletedAt.Add(-time.Second)})
	assert.True(t, errorx.IsConflict(err))

	list, err := svc.List(ctx, "U1", "S2")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSend_ClampsCreatedAt(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	author := Author{Id: "U1"}
	now := svc.now().UTC()

	for id, at := range map[string]time.Time{
		"early":  time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		"future": now.Add(time.Hour),
		"zero":   {},
		"inside": testStartedAt.Add(5 * time.Minute),
	} {
		_, err := svc.Send(ctx, author, request.SendMessageRequest{SessionId: "S1", ClientMessageId: id, Content: id, CreatedAt: at})
		require.NoError(t, err, id)
	}

	list, err := svc.List(ctx, "U1", "S1")
	require.NoError(t, err)
	require.Len(t, list, 4)
	got := map[string]time.Time{}
	for _, m := range list {
		got[m.ID] = m.CreatedAt
	}
	assert.WithinDuration(t, testStartedAt, got["early"], time.Millisecond)
	assert.WithinDuration(t, now, got["future"], time.Millisecond)
	assert.WithinDuration(t, now, got["zero"], time.Millisecond)
	assert.WithinDuration(t, testStartedAt.Add(5*time.Minute), got["inside"], time.Millisecond)
	assert.Equal(t, "early", list[0].ID)
}

func TestSend_ConflictingDuplicateId(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	first := request.SendMessageRequest{SessionId: "S1", ClientMessageId: "dup", Content: "first"}

	_, err := svc.Send(ctx, Author{Id: "U9"}, first)
	require.NoError(t, err)

	// 同一作者原样重试仍是幂等成功
	again, err := svc.Send(ctx, Author{Id: "U9"}, first)
	require.NoError(t, err)
	assert.False(t, again.Created)

	_, err = svc.Send(ctx, Author{Id: "U1"}, request.SendMessageRequest{SessionId: "S1", ClientMessageId: "dup", Content: "first"})
	assert.True(t, errorx.IsConflict(err))
	_, err = svc.Send(ctx, Author{Id: "U9"}, request.SendMessageRequest{SessionId: "S1", ClientMessageId: "dup", Content: "different content"})
	assert.True(t, errorx.IsConflict(err))
	_, err = svc.Send(ctx, Author{Id: "U9"}, request.SendMessageRequest{SessionId: "S2", ClientMessageId: "dup", Content: "first",
		CreatedAt: testCompletedAt})
	assert.True(t, errorx.IsConflict(err))

	list, err := svc.List(ctx, "U9", "S1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "first", list[0].Content)
	assert.Equal(t, "U9", list[0].AuthorId)
}

func TestSend_IdentityFromTokenOnly(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Send(ctx, Author{Id: "U1"}, request.SendMessageRequest{
		SessionId: "S1", ClientMessageId: "m1", Content: "hei", AuthorName: "Rektor", AuthorRole: "teacher",
	})
	require.NoError(t, err)

	list, err := svc.List(ctx, "U1", "S1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].AuthorName)
	assert.Empty(t, list[0].AuthorRole)
}

func TestList_OrderedByCreation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"m3", "m1", "m2"} {
		offset := map[string]time.Duration{"m1": 1, "m2": 2, "m3": 3}[id]
		_, err := svc.Send(ctx, Author{Id: fmt.Sprintf("U%d", i)}, request.SendMessageRequest{
			SessionId: "S1", ClientMessageId: id, Content: id, CreatedAt: base.Add(offset * time.Second),
		})
		require.NoError(t, err)
	}

	list, err := svc.List(ctx, "U1", "S1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{list[0].ID, list[1].ID, list[2].ID})
}

func TestList_CachesOnlyClosedSessions(t *testing.T) {
	cache := newMemoryCache()
	svc, auth := newTestService(t, cache)
	ctx := context.Background()

	_, err := svc.List(ctx, "U1", "S1")
	require.NoError(t, err)
	assert.Empty(t, cache.data)

	_, err = svc.Send(ctx, Author{Id: "U1"}, request.SendMessageRequest{SessionId: "S2", ClientMessageId: "m1", Content: "x",
		CreatedAt: auth.sessions["S2"].CompletedAt.Time})
	require.NoError(t, err)

	list, err := svc.List(ctx, "U1", "S2")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Contains(t, cache.data, "station:message_list:S2")

	// 新消息落库后缓存失效
	_, err = svc.Send(ctx, Author{Id: "U1"}, request.SendMessageRequest{SessionId: "S2", ClientMessageId: "m2", Content: "y",
		CreatedAt: auth.sessions["S2"].CompletedAt.Time})
	require.NoError(t, err)
	assert.NotContains(t, cache.data, "station:message_list:S2")

	list, err = svc.List(ctx, "U1", "S2")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
