package docstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDoc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemoryStoreCRUD(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var missing testDoc
	assert.ErrorIs(t, store.Get(ctx, "docs", "a", &missing), ErrNotFound)

	require.NoError(t, store.Save(ctx, "docs", "a", testDoc{Name: "first"}))
	require.NoError(t, store.Save(ctx, "docs", "b", testDoc{Name: "second"}))

	got, err := GetTyped[testDoc](ctx, store, "docs", "a")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Name)

	raws, err := store.List(ctx, "docs")
	require.NoError(t, err)
	require.Len(t, raws, 2)
	assert.Equal(t, "a", raws[0].ID, "listing is id-ordered")

	require.NoError(t, store.Delete(ctx, "docs", "a"))
	assert.ErrorIs(t, store.Get(ctx, "docs", "a", &missing), ErrNotFound)
	assert.NoError(t, store.Delete(ctx, "docs", "a"), "deleting a missing document is a no-op")
}

func TestMemoryStoreUpdate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	// Update creates the document when absent.
	err := UpdateTyped(ctx, store, "docs", "a", func(doc *testDoc, exists bool) error {
		assert.False(t, exists)
		doc.Name = "created"
		return nil
	})
	require.NoError(t, err)

	got, err := GetTyped[testDoc](ctx, store, "docs", "a")
	require.NoError(t, err)
	assert.Equal(t, "created", got.Name)

	// ErrAborted cancels the write without surfacing an error.
	err = UpdateTyped(ctx, store, "docs", "a", func(doc *testDoc, exists bool) error {
		doc.Name = "mutated"
		return ErrAborted
	})
	require.NoError(t, err)
	got, err = GetTyped[testDoc](ctx, store, "docs", "a")
	require.NoError(t, err)
	assert.Equal(t, "created", got.Name)

	// Other errors propagate.
	boom := errors.New("boom")
	err = UpdateTyped(ctx, store, "docs", "a", func(doc *testDoc, exists bool) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestMemoryStoreUpdateConcurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := UpdateTyped(ctx, store, "docs", "counter", func(doc *testDoc, exists bool) error {
				doc.Count++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := GetTyped[testDoc](ctx, store, "docs", "counter")
	require.NoError(t, err)
	assert.Equal(t, 50, got.Count)
}

func TestMemoryStoreAppend(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.Append(ctx, "log", testDoc{Count: i})
		require.NoError(t, err)
	}

	entries, err := store.AppendedEntries(ctx, "log", 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Contains(t, string(entries[0].Data), `"count":2`, "limit keeps the most recent entries in order")
	assert.Contains(t, string(entries[2].Data), `"count":4`)
}
