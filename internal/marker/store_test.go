package marker

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testSecret() []byte {
	secret := make([]byte, 32)
	for i := range secret {
		secret[i] = byte(i)
	}
	return secret
}

func TestRegisterLookupRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir(), testSecret())

	in := Marker{
		SessionID: "sess_1",
		GroupID:   "grp_1",
		MessageID: "msg_1",
		FlowID:    "flow_1",
		APIKey:    "mirra_sk_test",
		WorkDir:   "/home/dev/project",
		PID:       os.Getpid(),
	}
	require.NoError(t, store.Register(in))

	got, ok, err := store.Lookup("/home/dev/project")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "sess_1", got.SessionID)
	require.Equal(t, "grp_1", got.GroupID)
	require.Equal(t, "flow_1", got.FlowID)
	require.Equal(t, "mirra_sk_test", got.APIKey)
	require.NotZero(t, got.CreatedAtMs)
	require.NotEmpty(t, got.Token)
}

func TestLookupMissing(t *testing.T) {
	store := NewStore(t.TempDir(), testSecret())

	_, ok, err := store.Lookup("/nowhere")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLookupCleansPath(t *testing.T) {
	store := NewStore(t.TempDir(), testSecret())

	require.NoError(t, store.Register(Marker{
		SessionID: "sess_1",
		GroupID:   "grp_1",
		APIKey:    "k",
		WorkDir:   "/home/dev/project",
		PID:       os.Getpid(),
	}))

	// Equivalent paths hash to the same marker file.
	_, ok, err := store.Lookup("/home/dev/project/")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestTamperedMarkerRejected(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, testSecret())

	require.NoError(t, store.Register(Marker{
		SessionID: "sess_1",
		GroupID:   "grp_1",
		APIKey:    "k",
		WorkDir:   "/home/dev/project",
		PID:       os.Getpid(),
	}))

	// Flip the group id on disk without re-signing.
	path := filepath.Join(dir, hashWorkDir("/home/dev/project")+".json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var m Marker
	require.NoError(t, json.Unmarshal(data, &m))
	m.GroupID = "grp_evil"
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	_, _, err = store.Lookup("/home/dev/project")
	require.ErrorIs(t, err, ErrTampered)
}

func TestTokenFromDifferentMachineRejected(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, testSecret())
	require.NoError(t, store.Register(Marker{
		SessionID: "sess_1",
		GroupID:   "grp_1",
		APIKey:    "k",
		WorkDir:   "/home/dev/project",
		PID:       os.Getpid(),
	}))

	otherSecret := testSecret()
	otherSecret[0] ^= 0xff
	other := NewStore(dir, otherSecret)

	_, _, err := other.Lookup("/home/dev/project")
	require.ErrorIs(t, err, ErrTampered)
}

func TestRemoveIdempotent(t *testing.T) {
	store := NewStore(t.TempDir(), testSecret())

	require.NoError(t, store.Register(Marker{
		SessionID: "sess_1",
		GroupID:   "grp_1",
		APIKey:    "k",
		WorkDir:   "/home/dev/project",
		PID:       os.Getpid(),
	}))
	require.NoError(t, store.Remove("/home/dev/project"))
	require.NoError(t, store.Remove("/home/dev/project"))

	_, ok, err := store.Lookup("/home/dev/project")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestListSkipsUnverifiable(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, testSecret())

	require.NoError(t, store.Register(Marker{
		SessionID: "sess_1",
		GroupID:   "grp_1",
		APIKey:    "k",
		WorkDir:   "/home/dev/a",
		PID:       os.Getpid(),
	}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.json"), []byte("{"), 0o600))

	markers, err := store.List()
	require.NoError(t, err)
	require.Len(t, markers, 1)
	require.Equal(t, "sess_1", markers[0].SessionID)
}

func TestStaleDetectsDeadPID(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, testSecret())

	require.NoError(t, store.Register(Marker{
		SessionID: "sess_live",
		GroupID:   "grp_1",
		APIKey:    "k",
		WorkDir:   "/home/dev/live",
		PID:       os.Getpid(),
	}))
	// PID 1 is init and alive; use an absurd PID for the dead case.
	require.NoError(t, store.Register(Marker{
		SessionID: "sess_dead",
		GroupID:   "grp_1",
		APIKey:    "k",
		WorkDir:   "/home/dev/dead",
		PID:       99999999,
	}))

	stale, err := store.Stale()
	require.NoError(t, err)
	require.Len(t, stale, 1)
	require.Equal(t, "sess_dead", stale[0].SessionID)
}

func TestStaleDropsUndecodableFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, testSecret())
	junk := filepath.Join(dir, "junk.json")
	require.NoError(t, os.WriteFile(junk, []byte("not json"), 0o600))

	stale, err := store.Stale()
	require.NoError(t, err)
	require.Empty(t, stale)
	_, err = os.Stat(junk)
	require.True(t, os.IsNotExist(err))
}
