package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"station_chat_server/internal/catalog"
	"station_chat_server/internal/dao/mysql/repository"
	"station_chat_server/internal/dto/respond"
	"station_chat_server/internal/model"
	"station_chat_server/internal/service/membership"
	"station_chat_server/pkg/enum/session_status_enum"
	"station_chat_server/pkg/errorx"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	repos *repository.Repositories
	store *Store
	svc   *sessionService
	clock *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&model.GroupInfo{}, &model.GroupMember{}, &model.Session{}, &model.Message{}))

	repos := repository.NewRepositories(db)
	require.NoError(t, repos.Group.Create(&model.GroupInfo{Uuid: "G1", Name: "Gruppe 1"}))
	require.NoError(t, repos.Group.Create(&model.GroupInfo{Uuid: "G2", Name: "Gruppe 2"}))
	for user, group := range map[string]string{"U1": "G1", "U2": "G1", "U3": "G2"} {
		require.NoError(t, repos.GroupMember.Create(&model.GroupMember{GroupUuid: group, UserUuid: user}))
	}

	topics, err := catalog.New([]model.Topic{{Id: "T1", Number: 1, Title: "Vann"}, {Id: "T2", Number: 2, Title: "Energi"}})
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	store := NewStore(repos, Options{SessionMinutes: 15, ReopenMinutes: []int{2, 5, 10, 15}, Now: clock.Now})
	svc := NewSessionService(store, repos, membership.NewMembershipService(repos), topics, nil)
	return &testEnv{repos: repos, store: store, svc: svc, clock: clock}
}

func (e *testEnv) load(t *testing.T, sessionId string) *model.Session {
	t.Helper()
	sess, err := e.repos.Session.FindByUuid(sessionId)
	require.NoError(t, err)
	return sess
}

func TestView_CreatesPendingOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.svc.View(ctx, "U1", "T1")
	require.NoError(t, err)
	assert.Equal(t, "PENDING", first.Status)
	assert.Nil(t, first.EndTimestamp)
	assert.Equal(t, "G1", first.GroupId)

	second, err := env.svc.View(ctx, "U2", "T1")
	require.NoError(t, err)
	assert.Equal(t, first.SessionId, second.SessionId)

	other, err := env.svc.View(ctx, "U3", "T1")
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionId, other.SessionId)
}

func TestView_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.View(ctx, "U1", "T404")
	assert.True(t, errorx.IsNotFound(err))

	_, err = env.svc.View(ctx, "stranger", "T1")
	assert.True(t, errorx.IsForbidden(err))
}

func TestOpen_ConcurrentCallersConverge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const n = 8
	results := make([]*respond.SessionRespond, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := "U1"
			if i%2 == 1 {
				user = "U2"
			}
			results[i], errs[i] = env.svc.Open(ctx, user, "T1")
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].SessionId, results[i].SessionId)
		require.NotNil(t, results[i].EndTimestamp)
		assert.True(t, results[0].EndTimestamp.Equal(*results[i].EndTimestamp))
		assert.Equal(t, "ACTIVE", results[i].Status)
	}

	var count int64
	require.NoError(t, env.repos.DB().Model(&model.Session{}).
		Where("topic_id = ? AND group_id = ?", "T1", "G1").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestOpen_SetsDeadlineAndKeepsIt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	start := env.clock.Now()

	opened, err := env.svc.Open(ctx, "U1", "T1")
	require.NoError(t, err)
	require.NotNil(t, opened.StartedAt)
	assert.WithinDuration(t, start, *opened.StartedAt, time.Second)
	assert.WithinDuration(t, start.Add(15*time.Minute), *opened.EndTimestamp, time.Second)

	// 再次开启不会重置截止时间
	env.clock.Advance(time.Minute)
	again, err := env.svc.Open(ctx, "U2", "T1")
	require.NoError(t, err)
	assert.True(t, opened.EndTimestamp.Equal(*again.EndTimestamp))
}

func TestEnd_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	opened, err := env.svc.Open(ctx, "U1", "T1")
	require.NoError(t, err)

	env.clock.Advance(3 * time.Minute)
	first, err := env.svc.End(ctx, "U1", opened.SessionId)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", first.Status)
	require.NotNil(t, first.CompletedAt)

	env.clock.Advance(time.Minute)
	second, err := env.svc.End(ctx, "U2", opened.SessionId)
	require.NoError(t, err)
	require.NotNil(t, second.CompletedAt)
	assert.True(t, first.CompletedAt.Equal(*second.CompletedAt))

	stored := env.load(t, opened.SessionId)
	assert.WithinDuration(t, *first.CompletedAt, stored.CompletedAt.Time, time.Second)
}

func TestEnd_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.End(ctx, "U1", "missing")
	assert.True(t, errorx.IsNotFound(err))

	opened, err := env.svc.Open(ctx, "U1", "T1")
	require.NoError(t, err)

	_, err = env.svc.End(ctx, "U3", opened.SessionId)
	assert.True(t, errorx.IsForbidden(err))
	assert.EqualValues(t, session_status_enum.ACTIVE, env.load(t, opened.SessionId).Status)

	viewed, err := env.svc.View(ctx, "U1", "T2")
	require.NoError(t, err)
	_, err = env.svc.End(ctx, "U1", viewed.SessionId)
	assert.True(t, errorx.IsConflict(err))
}

func TestReopen_Precondition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pending, err := env.svc.View(ctx, "U1", "T1")
	require.NoError(t, err)
	_, err = env.svc.Reopen(ctx, "U1", pending.SessionId, 5)
	assert.True(t, errorx.IsConflict(err))
	stored := env.load(t, pending.SessionId)
	assert.EqualValues(t, session_status_enum.PENDING, stored.Status)
	assert.False(t, stored.EndTimestamp.Valid)

	active, err := env.svc.Open(ctx, "U1", "T1")
	require.NoError(t, err)
	_, err = env.svc.Reopen(ctx, "U1", active.SessionId, 5)
	assert.True(t, errorx.IsConflict(err))
	stored = env.load(t, active.SessionId)
	assert.EqualValues(t, session_status_enum.ACTIVE, stored.Status)
	assert.WithinDuration(t, *active.EndTimestamp, stored.EndTimestamp.Time, time.Second)
}

func TestReopen_Duration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	opened, err := env.svc.Open(ctx, "U1", "T1")
	require.NoError(t, err)
	env.clock.Advance(15 * time.Minute)
	ended, err := env.svc.End(ctx, "U1", opened.SessionId)
	require.NoError(t, err)

	_, err = env.svc.Reopen(ctx, "U2", opened.SessionId, 7)
	assert.True(t, errorx.IsValidation(err))
	assert.EqualValues(t, session_status_enum.COMPLETED, env.load(t, opened.SessionId).Status)

	reopened, err := env.svc.Reopen(ctx, "U2", opened.SessionId, 5)
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", reopened.Status)
	assert.WithinDuration(t, ended.CompletedAt.Add(5*time.Minute), *reopened.EndTimestamp, time.Second)

	// 重新开放后再次开启不会重置截止时间
	again, err := env.svc.Open(ctx, "U1", "T1")
	require.NoError(t, err)
	assert.True(t, reopened.EndTimestamp.Equal(*again.EndTimestamp))
}

func TestReopen_ConcurrentAppliesOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	opened, err := env.svc.Open(ctx, "U1", "T1")
	require.NoError(t, err)
	_, err = env.svc.End(ctx, "U1", opened.SessionId)
	require.NoError(t, err)

	const n = 6
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.Reopen(ctx, "U2", opened.SessionId, 10)
		}(i)
	}
	wg.Wait()

	var ok, conflict int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errorx.IsConflict(err):
			conflict++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflict)
}

func TestOpen_CompletedIsConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	opened, err := env.svc.Open(ctx, "U1", "T1")
	require.NoError(t, err)
	_, err = env.svc.End(ctx, "U1", opened.SessionId)
	require.NoError(t, err)

	_, err = env.svc.Open(ctx, "U2", "T1")
	assert.True(t, errorx.IsConflict(err))
}

type recordingNotifier struct {
	mu    sync.Mutex
	ended []string
}

func (n *recordingNotifier) NotifySessionEnded(_ context.Context, sessionId string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ended = append(n.ended, sessionId)
	return nil
}

func TestSweeper_CompletesOverdue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	overdue, err := env.svc.Open(ctx, "U1", "T1")
	require.NoError(t, err)
	env.clock.Advance(10 * time.Minute)
	running, err := env.svc.Open(ctx, "U3", "T1")
	require.NoError(t, err)
	env.clock.Advance(7 * time.Minute)

	notifier := &recordingNotifier{}
	sweeper := NewSweeper(env.store, notifier, time.Second, time.Minute)
	n, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{overdue.SessionId}, notifier.ended)
	assert.EqualValues(t, session_status_enum.COMPLETED, env.load(t, overdue.SessionId).Status)
	assert.EqualValues(t, session_status_enum.ACTIVE, env.load(t, running.SessionId).Status)

	n, err = sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
