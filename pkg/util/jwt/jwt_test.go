package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	Init("unit-test-secret-unit-test-secret", "station_test", 30, 60)
	m.Run()
}

func TestAccessToken(t *testing.T) {
	token, err := GenerateAccessToken("U1", "Kari", "student")
	require.NoError(t, err)

	claims, err := ParseAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "U1", claims.UserID)
	assert.Equal(t, "Kari", claims.Name)
	assert.Equal(t, "student", claims.Role)

	_, err = ParseChannelToken(token)
	assert.ErrorIs(t, err, ErrWrongTokenKind)
}

func TestChannelToken(t *testing.T) {
	token, expiresAt, err := GenerateChannelToken("U1", "Kari", "student", "S1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), expiresAt, 5*time.Second)

	claims, err := ParseChannelToken(token)
	require.NoError(t, err)
	assert.Equal(t, "S1", claims.SessionID)

	_, err = ParseAccessToken(token)
	assert.ErrorIs(t, err, ErrWrongTokenKind)
}

func TestParseToken_Tampered(t *testing.T) {
	token, err := GenerateAccessToken("U1", "Kari", "student")
	require.NoError(t, err)

	_, err = ParseToken(token + "x")
	assert.Error(t, err)
}
