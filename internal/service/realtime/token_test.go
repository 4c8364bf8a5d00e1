package realtime

import (
	"context"
	"testing"

	"station_chat_server/pkg/enum/session_status_enum"
	"station_chat_server/pkg/errorx"
	"station_chat_server/pkg/util/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelTokens_Issue(t *testing.T) {
	jwt.Init("token-test-secret-token-test-secret", "station_test", 30, 60)
	sessions := &fakeSessions{status: map[string]int8{
		"S0": session_status_enum.PENDING,
		"S1": session_status_enum.ACTIVE,
	}}
	tokens := NewChannelTokens(sessions)
	ctx := context.Background()
	who := Identity{UserId: "U1", Name: "Kari", Role: "student"}

	resp, err := tokens.Issue(ctx, who, "S1")
	require.NoError(t, err)
	claims, err := jwt.ParseChannelToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "S1", claims.SessionID)
	assert.Equal(t, "Kari", claims.Name)

	_, err = tokens.Issue(ctx, who, "S0")
	assert.True(t, errorx.IsConflict(err))

	_, err = tokens.Issue(ctx, who, "missing")
	assert.True(t, errorx.IsNotFound(err))
}
