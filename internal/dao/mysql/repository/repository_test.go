package repository

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"station_chat_server/internal/model"
	"station_chat_server/pkg/enum/session_status_enum"
	"station_chat_server/pkg/errorx"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestRepos(t *testing.T) *Repositories {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&model.GroupInfo{}, &model.GroupMember{}, &model.Session{}, &model.Message{}))
	return NewRepositories(db)
}

func TestSessionRepository_CreateIfAbsent(t *testing.T) {
	repos := newTestRepos(t)

	first := &model.Session{Uuid: uuid.NewString(), TopicId: "T1", GroupId: "G1"}
	require.NoError(t, repos.Session.CreateIfAbsent(first))
	second := &model.Session{Uuid: uuid.NewString(), TopicId: "T1", GroupId: "G1"}
	require.NoError(t, repos.Session.CreateIfAbsent(second))

	var count int64
	require.NoError(t, repos.DB().Model(&model.Session{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	got, err := repos.Session.FindByTopicAndGroup("T1", "G1")
	require.NoError(t, err)
	assert.Equal(t, first.Uuid, got.Uuid)
	assert.EqualValues(t, session_status_enum.PENDING, got.Status)
	assert.False(t, got.EndTimestamp.Valid)
}

func TestSessionRepository_NotFound(t *testing.T) {
	repos := newTestRepos(t)

	_, err := repos.Session.FindByUuid("missing")
	assert.True(t, errorx.IsNotFound(err))
	_, err = repos.Session.FindByUuidForUpdate("missing")
	assert.True(t, errorx.IsNotFound(err))
}

func TestSessionRepository_FindActiveEndedBefore(t *testing.T) {
	repos := newTestRepos(t)
	now := time.Now().UTC()

	overdue := &model.Session{Uuid: uuid.NewString(), TopicId: "T1", GroupId: "G1", Status: session_status_enum.ACTIVE,
		EndTimestamp: sql.NullTime{Time: now.Add(-time.Minute), Valid: true}}
	running := &model.Session{Uuid: uuid.NewString(), TopicId: "T2", GroupId: "G1", Status: session_status_enum.ACTIVE,
		EndTimestamp: sql.NullTime{Time: now.Add(time.Minute), Valid: true}}
	pending := &model.Session{Uuid: uuid.NewString(), TopicId: "T3", GroupId: "G1"}
	for _, s := range []*model.Session{overdue, running, pending} {
		require.NoError(t, repos.Session.CreateIfAbsent(s))
	}

	got, err := repos.Session.FindActiveEndedBefore(now, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, overdue.Uuid, got[0].Uuid)
}

func TestMessageRepository_Idempotent(t *testing.T) {
	repos := newTestRepos(t)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	msg := &model.Message{Uuid: "m2", SessionId: "S1", AuthorId: "U1", AuthorName: "Kari", Content: "to", SendAt: base.Add(time.Second)}
	created, err := repos.Message.CreateIfAbsent(msg)
	require.NoError(t, err)
	assert.True(t, created)

	dup := &model.Message{Uuid: "m2", SessionId: "S1", AuthorId: "U1", AuthorName: "Kari", Content: "to", SendAt: base.Add(time.Second)}
	created, err = repos.Message.CreateIfAbsent(dup)
	require.NoError(t, err)
	assert.False(t, created)

	earlier := &model.Message{Uuid: "m1", SessionId: "S1", AuthorId: "U2", AuthorName: "Ola", Content: "en", SendAt: base}
	_, err = repos.Message.CreateIfAbsent(earlier)
	require.NoError(t, err)

	list, err := repos.Message.FindBySessionId("S1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "m1", list[0].Uuid)
	assert.Equal(t, "m2", list[1].Uuid)
}

func TestMessageRepository_FindByUuid(t *testing.T) {
	repos := newTestRepos(t)

	_, err := repos.Message.CreateIfAbsent(&model.Message{Uuid: "m1", SessionId: "S1", AuthorId: "U9", Content: "first", SendAt: time.Now()})
	require.NoError(t, err)
	created, err := repos.Message.CreateIfAbsent(&model.Message{Uuid: "m1", SessionId: "S1", AuthorId: "U1", Content: "other", SendAt: time.Now()})
	require.NoError(t, err)
	assert.False(t, created)

	got, err := repos.Message.FindByUuid("m1")
	require.NoError(t, err)
	assert.Equal(t, "U9", got.AuthorId)
	assert.Equal(t, "first", got.Content)

	_, err = repos.Message.FindByUuid("missing")
	assert.True(t, errorx.IsNotFound(err))
}

func TestGroupMemberRepository_FindMembershipRows(t *testing.T) {
	repos := newTestRepos(t)
	require.NoError(t, repos.Group.Create(&model.GroupInfo{Uuid: "G1", Name: "Gruppe 1"}))
	require.NoError(t, repos.GroupMember.Create(&model.GroupMember{GroupUuid: "G1", UserUuid: "U1"}))
	// 小组信息缺失的成员行
	require.NoError(t, repos.GroupMember.Create(&model.GroupMember{GroupUuid: "G9", UserUuid: "U2"}))

	rows, err := repos.GroupMember.FindMembershipRows("U1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "G1", rows[0].GroupUuid)
	require.NotNil(t, rows[0].GroupName)
	assert.Equal(t, "Gruppe 1", *rows[0].GroupName)

	rows, err = repos.GroupMember.FindMembershipRows("U2")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].GroupName)

	rows, err = repos.GroupMember.FindMembershipRows("U3")
	require.NoError(t, err)
	assert.Empty(t, rows)
}
