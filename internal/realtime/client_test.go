package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseMessageEvent(t *testing.T) {
	event := ParseMessageEvent(map[string]any{
		"messageId": "msg-1",
		"groupId":   "group-1",
		"content":   "fix the build",
		"workDir":   "/home/user/proj",
		"sessionId": "sess-1",
		"extra":     42,
	})
	require.Equal(t, "msg-1", event.MessageID)
	require.Equal(t, "group-1", event.GroupID)
	require.Equal(t, "fix the build", event.Content)
	require.Equal(t, "/home/user/proj", event.WorkDir)
	require.Equal(t, "sess-1", event.SessionID)
}

func TestParseMessageEventTolerantOfMissingFields(t *testing.T) {
	event := ParseMessageEvent(map[string]any{"content": "hi"})
	require.Equal(t, "hi", event.Content)
	require.Empty(t, event.MessageID)
}

func TestEmitBeforeConnect(t *testing.T) {
	c := NewClient("http://localhost:0", "key", "machine-1")
	require.Error(t, c.Emit(EventMessage, nil))
	_, err := c.EmitWithAck(EventMessage, nil, time.Second)
	require.Error(t, err)
}

func TestWaitForConnectTimesOut(t *testing.T) {
	c := NewClient("http://localhost:0", "key", "machine-1")
	start := time.Now()
	require.False(t, c.WaitForConnect(100*time.Millisecond))
	require.Less(t, time.Since(start), time.Second)
}

func TestCloseIsIdempotent(t *testing.T) {
	c := NewClient("http://localhost:0", "key", "machine-1")
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	require.False(t, c.IsConnected())
}
