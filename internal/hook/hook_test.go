package hook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mirra-world/claude-bridge/internal/marker"
	"github.com/mirra-world/claude-bridge/internal/progress"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]any
}

func newTestRunner(t *testing.T, interval time.Duration) (*Runner, *marker.Store, *progress.Tracker, *[]recordedRequest) {
	t.Helper()

	var mu sync.Mutex
	requests := &[]recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		*requests = append(*requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: body})
		mu.Unlock()
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"msg-1"}}`))
	}))
	t.Cleanup(srv.Close)

	markers := marker.NewStore(t.TempDir(), []byte("machine-secret"))
	tracker := progress.NewTracker(t.TempDir(), interval)
	return NewRunner(markers, tracker, srv.URL), markers, tracker, requests
}

func payload(t *testing.T, cwd, message, tool string) *strings.Reader {
	t.Helper()
	raw, err := json.Marshal(Payload{
		SessionID: "claude-1",
		CWD:       cwd,
		Message:   message,
		ToolName:  tool,
	})
	require.NoError(t, err)
	return strings.NewReader(string(raw))
}

func registerMarker(t *testing.T, markers *marker.Store, cwd, messageID string) {
	t.Helper()
	require.NoError(t, markers.Register(marker.Marker{
		SessionID: "sess-1",
		GroupID:   "group-1",
		MessageID: messageID,
		APIKey:    "marker-key",
		WorkDir:   cwd,
		PID:       os.Getpid(),
	}))
}

func TestRunWithoutMarkerIsSilent(t *testing.T) {
	r, _, _, requests := newTestRunner(t, time.Second)
	err := r.Run(context.Background(), "PostToolUse", payload(t, t.TempDir(), "", "Bash"))
	require.NoError(t, err)
	require.Empty(t, *requests)
}

func TestRunRejectsBadPayload(t *testing.T) {
	r, _, _, _ := newTestRunner(t, time.Second)
	err := r.Run(context.Background(), "Stop", strings.NewReader("{not json"))
	require.Error(t, err)
}

func TestPostToolUseUpdatesOriginMessage(t *testing.T) {
	r, markers, tracker, requests := newTestRunner(t, time.Second)
	cwd := t.TempDir()
	registerMarker(t, markers, cwd, "msg-origin")
	require.NoError(t, tracker.Init("sess-1", "msg-origin"))

	require.NoError(t, r.Run(context.Background(), "PostToolUse", payload(t, cwd, "", "Bash")))

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	require.Equal(t, http.MethodPatch, req.Method)
	require.Equal(t, "/messages/msg-origin", req.Path)
	require.Contains(t, req.Body["content"], "1 steps")
	require.Contains(t, req.Body["content"], "Bash")
}

func TestPostToolUseRateLimited(t *testing.T) {
	r, markers, tracker, requests := newTestRunner(t, time.Hour)
	cwd := t.TempDir()
	registerMarker(t, markers, cwd, "msg-origin")
	require.NoError(t, tracker.Init("sess-1", "msg-origin"))

	// First event notifies, the next two fall inside the interval.
	for i := 0; i < 3; i++ {
		require.NoError(t, r.Run(context.Background(), "post-tool-use", payload(t, cwd, "", "")))
	}
	require.Len(t, *requests, 1)

	st, ok, err := tracker.Load("sess-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3, st.Steps)
	require.Equal(t, 1, st.ReportedSteps)
}

func TestPostToolUseFallsBackToGroupMessage(t *testing.T) {
	r, markers, tracker, requests := newTestRunner(t, time.Second)
	cwd := t.TempDir()
	registerMarker(t, markers, cwd, "") // no origin message
	require.NoError(t, tracker.Init("sess-1", ""))

	require.NoError(t, r.Run(context.Background(), "PostToolUse", payload(t, cwd, "", "")))

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	require.Equal(t, http.MethodPost, req.Method)
	require.Equal(t, "/messages", req.Path)
	require.Equal(t, "group-1", req.Body["groupId"])
}

func TestNotificationForwardsMessage(t *testing.T) {
	r, markers, _, requests := newTestRunner(t, time.Second)
	cwd := t.TempDir()
	registerMarker(t, markers, cwd, "msg-origin")

	require.NoError(t, r.Run(context.Background(), "Notification", payload(t, cwd, "permission needed", "")))

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	require.Equal(t, "/messages", req.Path)
	require.Contains(t, req.Body["content"], "permission needed")
}

func TestNotificationWithEmptyMessageIsSilent(t *testing.T) {
	r, markers, _, requests := newTestRunner(t, time.Second)
	cwd := t.TempDir()
	registerMarker(t, markers, cwd, "msg-origin")

	require.NoError(t, r.Run(context.Background(), "Notification", payload(t, cwd, "  ", "")))
	require.Empty(t, *requests)
}

func TestStopFinishesProgressAndSilencesLaterEvents(t *testing.T) {
	r, markers, tracker, requests := newTestRunner(t, time.Second)
	cwd := t.TempDir()
	registerMarker(t, markers, cwd, "msg-origin")
	require.NoError(t, tracker.Init("sess-1", "msg-origin"))

	require.NoError(t, r.Run(context.Background(), "Stop", payload(t, cwd, "", "")))
	require.Len(t, *requests, 1)
	require.Equal(t, "/messages/msg-origin", (*requests)[0].Path)

	// Progress events after Stop stay quiet.
	require.NoError(t, r.Run(context.Background(), "PostToolUse", payload(t, cwd, "", "")))
	require.Len(t, *requests, 1)
}

func TestUnknownEventIsIgnored(t *testing.T) {
	r, markers, _, requests := newTestRunner(t, time.Second)
	cwd := t.TempDir()
	registerMarker(t, markers, cwd, "msg-origin")

	require.NoError(t, r.Run(context.Background(), "PreCompact", payload(t, cwd, "", "")))
	require.Empty(t, *requests)
}

func TestNormalizeEvent(t *testing.T) {
	for _, input := range []string{"PostToolUse", "post-tool-use", "post_tool_use", "POSTTOOLUSE"} {
		require.Equal(t, "posttooluse", normalizeEvent(input), input)
	}
}

func TestStopToleratesDeletedOriginMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"success":false,"error":{"code":"not_found","message":"gone"}}`)
	}))
	defer srv.Close()

	markers := marker.NewStore(t.TempDir(), []byte("machine-secret"))
	tracker := progress.NewTracker(t.TempDir(), time.Second)
	r := NewRunner(markers, tracker, srv.URL)

	cwd := t.TempDir()
	registerMarker(t, markers, cwd, "msg-origin")
	require.NoError(t, r.Run(context.Background(), "Stop", payload(t, cwd, "", "")))
}
