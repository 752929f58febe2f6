package flow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mirra-world/claude-bridge/pkg/mirra"
)

func newTestManager(t *testing.T, handler http.HandlerFunc) *Manager {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := mirra.NewClient("test-key", mirra.WithBaseURL(srv.URL))
	return NewManager(client, "group-1", "machine-1")
}

func TestEnsureCreatesFlow(t *testing.T) {
	var created map[string]any
	m := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/flows":
			_, _ = w.Write([]byte(`{"success":true,"data":[]}`))
		case r.Method == http.MethodPost && r.URL.Path == "/flows":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			_, _ = w.Write([]byte(`{"success":true,"data":{"id":"flow-1","name":"bridge-session-sess-1"}}`))
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	})

	flowID, err := m.Ensure(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Equal(t, "flow-1", flowID)

	require.Equal(t, "bridge-session-sess-1", created["name"])
	require.Equal(t, true, created["enabled"])
	trigger := created["trigger"].(map[string]any)
	require.Equal(t, "group-message", trigger["type"])
	require.Equal(t, "group-1", trigger["groupId"])
	action := created["action"].(map[string]any)
	require.Equal(t, "forward-to-session", action["type"])
	require.Equal(t, "sess-1", action["sessionId"])
	require.Equal(t, "machine-1", action["machineId"])
}

func TestEnsureReusesExistingFlow(t *testing.T) {
	m := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/flows":
			_, _ = w.Write([]byte(`{"success":true,"data":[{"id":"flow-old","name":"bridge-session-sess-1"}]}`))
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	})

	flowID, err := m.Ensure(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Equal(t, "flow-old", flowID)
}

func TestEnsureRejectsEmptySessionID(t *testing.T) {
	m := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := m.Ensure(context.Background(), "  ")
	require.Error(t, err)
}

func TestCleanupDeletesFlow(t *testing.T) {
	deleted := false
	m := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/flows/flow-1", r.URL.Path)
		deleted = true
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	require.NoError(t, m.Cleanup(context.Background(), "flow-1"))
	require.True(t, deleted)
}

func TestCleanupMissingFlowIsNotAnError(t *testing.T) {
	m := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":"not_found","message":"no such flow"}}`))
	})

	require.NoError(t, m.Cleanup(context.Background(), "flow-gone"))
}

func TestCleanupEmptyFlowIDIsNoop(t *testing.T) {
	m := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	require.NoError(t, m.Cleanup(context.Background(), ""))
}
