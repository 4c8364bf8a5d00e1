package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_NewMessage(t *testing.T) {
	msg := Message{
		ID:        "m1",
		SessionId: "S1",
		AuthorId:  "U1",
		Content:   "hei",
		CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	data, err := Encode(NewMessageEvent(msg))
	require.NoError(t, err)

	ev, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, EventNewMessage, ev.Type)
	assert.Equal(t, "S1", ev.SessionId)
	require.NotNil(t, ev.Message)
	assert.Equal(t, "hei", ev.Message.Content)
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: "{"},
		{name: "unknown type", raw: `{"type":"typing","session_id":"S1"}`},
		{name: "message without payload", raw: `{"type":"new-message","session_id":"S1"}`},
		{name: "blank content", raw: `{"type":"new-message","session_id":"S1","message":{"id":"m1","session_id":"S1","content":"  "}}`},
		{name: "session mismatch", raw: `{"type":"new-message","session_id":"S1","message":{"id":"m1","session_id":"S2","content":"x"}}`},
		{name: "ended without session", raw: `{"type":"session-ended"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			assert.Error(t, err)
		})
	}
}
