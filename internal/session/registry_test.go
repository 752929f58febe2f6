package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegistryAddGetRemove(t *testing.T) {
	r := NewRegistry()
	s := &Session{ID: "s1", WorkDir: "/tmp/a", CreatedAt: time.Now()}
	r.Add(s)

	got, ok := r.Get("s1")
	require.True(t, ok)
	require.Same(t, s, got)
	require.Equal(t, 1, r.Len())

	r.Remove("s1")
	_, ok = r.Get("s1")
	require.False(t, ok)
	require.Zero(t, r.Len())
}

func TestRegistryByWorkDirCleansPaths(t *testing.T) {
	r := NewRegistry()
	r.Add(&Session{ID: "s1", WorkDir: "/tmp/project"})

	got, ok := r.ByWorkDir("/tmp/project/")
	require.True(t, ok)
	require.Equal(t, "s1", got.ID)

	_, ok = r.ByWorkDir("/tmp/other")
	require.False(t, ok)
}

func TestRegistryListOrderedByCreation(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	r.Add(&Session{ID: "newer", WorkDir: "/a", CreatedAt: now.Add(time.Second)})
	r.Add(&Session{ID: "older", WorkDir: "/b", CreatedAt: now})

	list := r.List()
	require.Len(t, list, 2)
	require.Equal(t, "older", list[0].ID)
	require.Equal(t, "newer", list[1].ID)
	require.Equal(t, []string{"older", "newer"}, r.IDs())
}
