package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/semindex/internal/vectorstore"
)

func TestVectorStore_GetCollectionMissing(t *testing.T) {
	store := NewVectorStore(setupTestDB(t))

	_, err := store.GetCollection(context.Background(), "p1")
	assert.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)
}

func TestVectorStore_GetOrCreateIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	store := NewVectorStore(db)
	ctx := context.Background()

	first, err := store.GetOrCreateCollection(ctx, "p1", map[string]string{"project": "Demo"})
	require.NoError(t, err)
	require.NoError(t, first.Upsert(ctx, []vectorstore.Record{testRecord("a.py:0", "a.py", 1, 1, 1, 0)}))

	second, err := store.GetOrCreateCollection(ctx, "p1", nil)
	require.NoError(t, err)
	count, err := second.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, "p1", second.Name())

	info, err := db.GetCollectionByName(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Demo", info.Metadata["project"])

	got, err := store.GetCollection(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.Name())
}

func TestCollection_ReplaceSource(t *testing.T) {
	store := NewVectorStore(setupTestDB(t))
	ctx := context.Background()
	coll, err := store.GetOrCreateCollection(ctx, "p1", nil)
	require.NoError(t, err)

	require.NoError(t, coll.Upsert(ctx, []vectorstore.Record{
		testRecord("a.py:0", "a.py", 1, 5, 1, 0),
		testRecord("a.py:1", "a.py", 5, 9, 1, 0),
		testRecord("a.py:2", "a.py", 9, 12, 1, 0),
		testRecord("b.py:0", "b.py", 1, 3, 0, 1),
	}))

	// a.py shrank to one chunk
	require.NoError(t, coll.ReplaceSource(ctx, "a.py", []vectorstore.Record{testRecord("a.py:0", "a.py", 1, 2, 1, 0)}))

	count, err := coll.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Records for another file are rejected and nothing changes
	err = coll.ReplaceSource(ctx, "a.py", []vectorstore.Record{testRecord("b.py:5", "b.py", 1, 2, 1, 0)})
	assert.Error(t, err)
	count, err = coll.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Replacing with nothing behaves like a delete
	require.NoError(t, coll.ReplaceSource(ctx, "a.py", nil))
	count, err = coll.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCollection_ReplaceSourceRollsBackOnError(t *testing.T) {
	store := NewVectorStore(setupTestDB(t))
	ctx := context.Background()
	coll, err := store.GetOrCreateCollection(ctx, "p1", nil)
	require.NoError(t, err)

	require.NoError(t, coll.Upsert(ctx, []vectorstore.Record{testRecord("a.py:0", "a.py", 1, 5, 1, 0)}))

	err = coll.ReplaceSource(ctx, "a.py", []vectorstore.Record{testRecord("a.py:0", "a.py", 1, 5, 1, 0, 0)})
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)

	count, err := coll.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCollection_PruneAndDeleteBySource(t *testing.T) {
	store := NewVectorStore(setupTestDB(t))
	ctx := context.Background()
	coll, err := store.GetOrCreateCollection(ctx, "p1", nil)
	require.NoError(t, err)

	require.NoError(t, coll.Upsert(ctx, []vectorstore.Record{
		testRecord("a.py:0", "a.py", 1, 5, 1, 0),
		testRecord("a.py:1", "a.py", 5, 9, 1, 0),
		testRecord("gone.py:0", "gone.py", 1, 3, 0, 1),
		testRecord("b.py:0", "b.py", 1, 3, 0, 1),
	}))

	pruned, err := coll.Prune(ctx, vectorstore.KeepIDs(map[string]bool{"a.py:0": true, "b.py:0": true}))
	require.NoError(t, err)
	assert.Equal(t, 2, pruned)

	pruned, err = coll.Prune(ctx, vectorstore.KeepIDs(map[string]bool{"a.py:0": true, "b.py:0": true}))
	require.NoError(t, err)
	assert.Equal(t, 0, pruned)

	require.NoError(t, coll.DeleteBySource(ctx, "b.py"))
	count, err := coll.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	pruned, err = coll.Prune(ctx, func(id string) bool { return !strings.HasPrefix(id, "a.py:") })
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	require.NoError(t, store.DeleteCollection(ctx, "p1"))
	_, err = store.GetCollection(ctx, "p1")
	assert.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)
}
