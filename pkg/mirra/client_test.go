package mirra

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewClient("test-key", WithBaseURL(srv.URL))
}

func writeEnvelope(t *testing.T, w http.ResponseWriter, data any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
	require.NoError(t, err)
}

func TestRequestSetsAPIKeyHeader(t *testing.T) {
	var gotKey, gotPath string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		gotPath = r.URL.Path
		writeEnvelope(t, w, []Template{})
	})

	_, err := client.Templates.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, "test-key", gotKey)
	require.Equal(t, "/templates", gotPath)
}

func TestRequestDecodesEnvelopeData(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, Message{ID: "msg_1", GroupID: "grp_1", Content: "hi"})
	})

	msg, err := client.Messages.Send(context.Background(), SendMessageParams{
		GroupID: "grp_1",
		Content: "hi",
	})
	require.NoError(t, err)
	require.Equal(t, "msg_1", msg.ID)
	require.Equal(t, "hi", msg.Content)
}

func TestRequestAPIError(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   map[string]any{"code": "invalid_api_key", "message": "bad key"},
		})
	})

	_, err := client.Agents.List(context.Background())
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "invalid_api_key", apiErr.Code)
	require.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	require.False(t, IsNotFound(err))
}

func TestRequestInvalidJSON(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>gateway error</html>"))
	})

	_, err := client.Flows.List(context.Background())
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	require.Contains(t, apiErr.Message, "invalid JSON")
}

func TestIsNotFound(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   map[string]any{"code": "not_found", "message": "no such flow"},
		})
	})

	err := client.Flows.Delete(context.Background(), "flow_missing")
	require.Error(t, err)
	require.True(t, IsNotFound(err))
}

func TestFlowCreateRoundTrip(t *testing.T) {
	var gotParams CreateFlowParams
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/flows", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotParams))
		writeEnvelope(t, w, Flow{
			ID:      "flow_1",
			Name:    gotParams.Name,
			Enabled: gotParams.Enabled,
			Trigger: gotParams.Trigger,
			Action:  gotParams.Action,
		})
	})

	flow, err := client.Flows.Create(context.Background(), CreateFlowParams{
		Name:    "bridge-session-abc",
		Enabled: true,
		Trigger: FlowTrigger{Type: "group-message", GroupID: "grp_1"},
		Action:  FlowAction{Type: "forward-to-session", SessionID: "abc"},
	})
	require.NoError(t, err)
	require.Equal(t, "flow_1", flow.ID)
	require.Equal(t, "grp_1", gotParams.Trigger.GroupID)
	require.Equal(t, "abc", gotParams.Action.SessionID)
}

func TestMemoryFindOneMissing(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   map[string]any{"code": "not_found", "message": "no such memory"},
		})
	})

	entity, err := client.Memory.FindOne(context.Background(), "mem_missing")
	require.NoError(t, err)
	require.Nil(t, entity)
}

func TestMemoryUpdateBody(t *testing.T) {
	var got map[string]any
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/memory/update", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeEnvelope(t, w, map[string]bool{"updated": true})
	})

	err := client.Memory.Update(context.Background(), "mem_1", MemoryUpdateParams{Content: "new"})
	require.NoError(t, err)
	require.Equal(t, "mem_1", got["id"])
	require.Equal(t, "new", got["content"])
}

func TestContextCancellation(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Templates.List(ctx)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
}
