package claude

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeSessionFile(t *testing.T, projectPath, sessionID string, lines ...string) string {
	t.Helper()
	dir := projectDir(projectPath)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, sessionID+".jsonl")
	var content string
	for _, line := range lines {
		content += line + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestScannerReadsSessionMessages(t *testing.T) {
	t.Setenv("CLAUDE_CONFIG_DIR", t.TempDir())
	projectPath := "/home/user/project"
	path := writeSessionFile(t, projectPath, "sess-1",
		`{"uuid":"u1","sessionId":"sess-1","type":"assistant","message":{"content":[{"type":"text","text":"hello"}]}}`,
	)

	sc := NewScanner(projectPath, "sess-1")
	require.Equal(t, path, sc.SessionFilePath())
	sc.Start()
	defer sc.Stop()

	select {
	case msg := <-sc.Messages():
		require.Equal(t, "assistant", msg.Type)
		require.Equal(t, "hello", msg.AssistantText())
	case <-time.After(3 * time.Second):
		t.Fatal("no message observed")
	}
}

func TestScannerPicksUpAppendedLines(t *testing.T) {
	t.Setenv("CLAUDE_CONFIG_DIR", t.TempDir())
	projectPath := "/home/user/project"
	path := writeSessionFile(t, projectPath, "sess-1",
		`{"uuid":"u1","type":"user","message":{"content":[{"type":"text","text":"do it"}]}}`,
	)

	sc := NewScanner(projectPath, "sess-1")
	sc.Start()
	defer sc.Stop()

	<-sc.Messages()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"uuid":"u2","type":"assistant","message":{"content":[{"type":"text","text":"done"}]}}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case msg := <-sc.Messages():
		require.Equal(t, "u2", msg.UUID)
		require.Equal(t, "done", msg.AssistantText())
	case <-time.After(3 * time.Second):
		t.Fatal("appended line never observed")
	}
}

func TestScannerDedupesReplayedHistory(t *testing.T) {
	t.Setenv("CLAUDE_CONFIG_DIR", t.TempDir())
	projectPath := "/home/user/project"
	writeSessionFile(t, projectPath, "sess-1",
		`{"uuid":"u1","type":"assistant","message":{"content":[{"type":"text","text":"once"}]}}`,
		`{"uuid":"u1","type":"assistant","message":{"content":[{"type":"text","text":"once"}]}}`,
	)

	sc := NewScanner(projectPath, "sess-1")
	sc.Start()
	defer sc.Stop()

	<-sc.Messages()
	select {
	case msg := <-sc.Messages():
		t.Fatalf("duplicate message delivered: %+v", msg)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestFindNewestSession(t *testing.T) {
	t.Setenv("CLAUDE_CONFIG_DIR", t.TempDir())
	projectPath := "/home/user/project"

	_, ok := FindNewestSession(projectPath, time.Now())
	require.False(t, ok)

	since := time.Now().Add(-time.Minute)
	writeSessionFile(t, projectPath, "older", `{}`)
	older := filepath.Join(projectDir(projectPath), "older.jsonl")
	past := time.Now().Add(-30 * time.Second)
	require.NoError(t, os.Chtimes(older, past, past))
	writeSessionFile(t, projectPath, "newer", `{}`)

	id, ok := FindNewestSession(projectPath, since)
	require.True(t, ok)
	require.Equal(t, "newer", id)

	// Files older than since are ignored.
	_, ok = FindNewestSession(projectPath, time.Now().Add(time.Minute))
	require.False(t, ok)
}
