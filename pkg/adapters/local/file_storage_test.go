package local_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/synote/pkg/adapters/local"
	)

func TestFileStorage_GetSetRemove(t *testing.T) {
	dir := t.TempDir()
	s, err := local.NewFileStorage(dir, nil)
	require.NoError(t, err)

	_, ok, err := s.GetItem("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetItem("k", "v1"))
	v, ok, err := s.GetItem("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1", v)

	_, err = os.Stat(filepath.Join(dir, "k.json"))
	require.NoError(t, err)

	require.NoError(t, s.RemoveItem("k"))
	_, ok, _ = s.GetItem("k")
	assert.False(t, ok)

	assert.Error(t, s.SetItem("../escape", "x"))
}

func TestFileStorage_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	s, err := local.NewFileStorage(dir, nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.SetItem("k", "value"))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "k.json", entries[0].Name())
}

// TestRepository_ExternalEditRepublishes verifies that a guest blob rewritten by
// another process reaches collection subscribers, while our own writes do not
// produce duplicate snapshots from the watcher.
func TestRepository_ExternalEditRepublishes(t *testing.T) {
	dir := t.TempDir()
	storage, err := local.NewFileStorage(dir, nil)
	require.NoError(t, err)

	store := local.NewStore(storage, "", nil)
	repo := local.NewRepository(store, local.Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rec := &snapshotRecorder{}
	unsub, err := repo.SubscribeCollection(ctx, rec.record)
	require.NoError(t, err)
	defer unsub()

	require.Eventually(t, func() bool {
		state := repo.State().(local.RepositoryState)
		return state.WatcherActive
	}, time.Second, 10*time.Millisecond)

	// Give the watcher a moment to attach.
	time.Sleep(100 * time.Millisecond)

	// Simulate another process (second CLI instance) writing the blob.
	blob := `[{"id":"42","title":"from elsewhere","content":""}]`
	target := filepath.Join(dir, local.DefaultNamespace+".json")
	require.NoError(t, os.WriteFile(target, []byte(blob), 0o600))

	require.Eventually(t, func() bool {
		last := rec.last()
		return len(last) == 1 && last[0].Title == "from elsewhere"
	}, 3*time.Second, 20*time.Millisecond)
}
