package buffer

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "nested", "audit.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestStore_ordering(t *testing.T) {
	store := openTestStore(t)
	base := time.Now()

	require.NoError(t, store.Enqueue(Item{ID: "late", Entity: EntityCommand, Priority: 3, Timestamp: base.Add(time.Second)}))
	require.NoError(t, store.Enqueue(Item{ID: "early", Entity: EntityCommand, Priority: 3, Timestamp: base}))
	require.NoError(t, store.Enqueue(Item{ID: "urgent", Entity: EntityCommand, Priority: 1, Timestamp: base.Add(time.Hour)}))

	items, err := store.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "urgent", items[0].ID)
	assert.Equal(t, "early", items[1].ID)
	assert.Equal(t, "late", items[2].ID)

	size, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, 3, size)
}

func TestStore_RemoveRequeue(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Enqueue(Item{Entity: EntityCommand, Data: json.RawMessage(`{}`)}))

	items, err := store.GetBatch(0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.NotEmpty(t, items[0].ID)
	assert.Equal(t, 3, items[0].Priority)

	item := items[0]
	item.Retries++
	require.NoError(t, store.Remove(item))
	require.NoError(t, store.Requeue(item))

	items, err = store.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Retries)

	require.NoError(t, store.Remove(Item{ID: items[0].ID}))

	size, err := store.Size()
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestStore_Cleanup(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	for i := 0; i < 4; i++ {
		require.NoError(t, store.Enqueue(Item{Entity: EntityCommand, Timestamp: now.Add(-time.Duration(i+1) * time.Hour)}))
	}
	require.NoError(t, store.Enqueue(Item{Entity: EntityCommand, Timestamp: now}))

	dropped, err := store.Cleanup(now.Add(-30 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 4, dropped)

	size, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestStore_nil(t *testing.T) {
	var store *Store

	assert.Error(t, store.Enqueue(Item{}))
	_, err := store.Size()
	assert.Error(t, err)
	assert.NoError(t, store.Close())
}
