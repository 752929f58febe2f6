package claude

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, input string) []StreamEvent {
	t.Helper()
	events := make(chan StreamEvent, 100)
	done := make(chan error, 1)
	go func() { done <- ParseStream(strings.NewReader(input), events, nil) }()

	var out []StreamEvent
	for event := range events {
		out = append(out, event)
	}
	require.NoError(t, <-done)
	return out
}

func TestParseStreamInitEvent(t *testing.T) {
	input := `{"type":"system","subtype":"init","session_id":"claude-abc"}` + "\n"
	events := collect(t, input)
	require.Len(t, events, 1)
	require.Equal(t, "system", events[0].Type)
	require.Equal(t, "init", events[0].Subtype)
	require.Equal(t, "claude-abc", events[0].SessionID)
}

func TestParseStreamAssistantText(t *testing.T) {
	input := `{"type":"assistant","uuid":"u1","session_id":"s","message":{"content":[{"type":"text","text":"hello"},{"type":"tool_use","name":"Bash"},{"type":"text","text":"world"}]}}` + "\n"
	events := collect(t, input)
	require.Len(t, events, 1)
	require.Equal(t, "hello\nworld", events[0].AssistantText())
}

func TestParseStreamResultEvent(t *testing.T) {
	input := `{"type":"result","subtype":"success","result":"done","num_turns":3,"duration_ms":4200,"total_cost_usd":0.12}` + "\n"
	events := collect(t, input)
	require.Len(t, events, 1)
	require.Equal(t, "result", events[0].Type)
	require.Equal(t, "done", events[0].Result)
	require.Equal(t, 3, events[0].NumTurns)
	require.False(t, events[0].IsError)
}

func TestParseStreamSkipsGarbageLines(t *testing.T) {
	input := "not json\n" +
		`{"type":"assistant","uuid":"u1","message":{"content":[{"type":"text","text":"ok"}]}}` + "\n" +
		"\n" +
		"{truncated\n"
	events := collect(t, input)
	require.Len(t, events, 1)
}

func TestParseStreamDedupesByUUID(t *testing.T) {
	line := `{"type":"assistant","uuid":"u1","message":{"content":[{"type":"text","text":"once"}]}}` + "\n"
	events := collect(t, line+line+line)
	require.Len(t, events, 1)
}

func TestParseStreamStopsWhenConsumerGone(t *testing.T) {
	var input strings.Builder
	for i := 0; i < 200; i++ {
		input.WriteString(`{"type":"assistant","message":{"content":[{"type":"text","text":"x"}]}}` + "\n")
	}

	// Unbuffered channel with no reader, so the parser must bail out via
	// stop instead of blocking on the send.
	events := make(chan StreamEvent)
	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- ParseStream(strings.NewReader(input.String()), events, stop) }()

	close(stop)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("parser kept blocking after stop")
	}
}

func TestAssistantTextEmptyMessage(t *testing.T) {
	event := StreamEvent{Type: "assistant"}
	require.Empty(t, event.AssistantText())
}

func TestBuildArgsHeadless(t *testing.T) {
	args := buildArgs(Options{Bin: "claude", WorkDir: "/tmp", Prompt: "fix the tests"})
	require.Equal(t, []string{"--print", "--verbose", "--output-format", "stream-json", "fix the tests"}, args)
}

func TestBuildArgsResume(t *testing.T) {
	args := buildArgs(Options{Bin: "claude", WorkDir: "/tmp", Prompt: "go", ResumeToken: "tok"})
	require.Contains(t, args, "--resume")
	require.Contains(t, args, "tok")
}

func TestBuildArgsInteractive(t *testing.T) {
	args := buildArgs(Options{Bin: "claude", WorkDir: "/tmp", Interactive: true})
	require.Empty(t, args)
}
