package local_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/synote/pkg/adapters/local"
	"github.com/aretw0/synote/pkg/core"
)

func TestStore_CRUD(t *testing.T) {
	storage := local.NewMemoryStorage()
	store := local.NewStore(storage, "", nil)

	require.NoError(t, store.Add(core.Note{ID: "1", Title: "first"}))
	require.NoError(t, store.Add(core.Note{ID: "2", Title: "second"}))

	// 1. Most recently added first
	notes, err := store.ListAll()
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "2", notes[0].ID)
	assert.Equal(t, "1", notes[1].ID)

	// 2. Merge update keeps other fields
	require.NoError(t, store.Update("1", core.Patch{}.WithContent("body", false)))
	n, ok, err := store.Get("1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first", n.Title)
	assert.Equal(t, "body", n.Content)

	// 3. Update of a missing id is a no-op
	require.NoError(t, store.Update("missing", core.Patch{}.WithTitle("x")))
	notes, _ = store.ListAll()
	assert.Len(t, notes, 2)

	// 4. Delete
	require.NoError(t, store.Delete("2"))
	_, ok, err = store.Get("2")
	require.NoError(t, err)
	assert.False(t, ok)

	// 5. Duplicate ids are rejected
	assert.Error(t, store.Add(core.Note{ID: "1"}))
}

func TestStore_PersistsUnderNamespace(t *testing.T) {
	storage := local.NewMemoryStorage()
	store := local.NewStore(storage, "guest-ns", nil)
	require.NoError(t, store.Add(core.Note{ID: "1", Title: "kept", CreatedAt: time.Unix(10, 0)}))

	raw, ok, err := storage.GetItem("guest-ns")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, `"title":"kept"`)

	// A second store over the same storage sees the same notes.
	again := local.NewStore(storage, "guest-ns", nil)
	notes, err := again.ListAll()
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "kept", notes[0].Title)
}

func TestStore_CorruptBlobStartsFresh(t *testing.T) {
	storage := local.NewMemoryStorage()
	require.NoError(t, storage.SetItem(local.DefaultNamespace, "{not json"))

	store := local.NewStore(storage, "", nil)
	notes, err := store.ListAll()
	require.NoError(t, err)
	assert.Empty(t, notes)

	require.NoError(t, store.Add(core.Note{ID: "1"}))
	notes, err = store.ListAll()
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}

func TestStore_DeleteMany(t *testing.T) {
	store := local.NewStore(local.NewMemoryStorage(), "", nil)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Add(core.Note{ID: id}))
	}

	require.NoError(t, store.DeleteMany([]string{"a", "c", "zzz"}))
	notes, err := store.ListAll()
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "b", notes[0].ID)
}
