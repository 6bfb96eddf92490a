package memstore_test

import (
	"context"
	"testing"

	"github.com/relmap/relmap/errtranslator"
	"github.com/relmap/relmap/storage/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAssignsSequence(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)

	id, err := tx.Insert(ctx, "users", "id", map[string]interface{}{"name": "a"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	id, err = tx.Insert(ctx, "users", "id", map[string]interface{}{"id": uint(10), "name": "b"})
	require.NoError(t, err)
	assert.Equal(t, uint(10), id)

	id, err = tx.Insert(ctx, "users", "id", map[string]interface{}{"id": 0, "name": "c"})
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)

	_, err = tx.Insert(ctx, "users", "id", map[string]interface{}{"id": int64(10)})
	assert.ErrorIs(t, err, errtranslator.ErrDuplicatedKey)

	require.NoError(t, tx.Commit(ctx))
	assert.Len(t, store.Rows("users"), 3)
	assert.ErrorIs(t, tx.Commit(ctx), memstore.ErrTxDone)
}

func TestJunctionRowsAreUnique(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		id, err := tx.Insert(ctx, "post_tags", "", map[string]interface{}{"post_id": 1, "tag_id": uint(2)})
		require.NoError(t, err)
		assert.Nil(t, id)
	}
	require.NoError(t, tx.Commit(ctx))
	assert.Len(t, store.Rows("post_tags"), 1)
}

func TestRollbackRestoresSnapshot(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	store.Seed("users", map[string]interface{}{"id": int64(1), "name": "a"})

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Update(ctx, "users", map[string]interface{}{"name": "b"}, map[string]interface{}{"id": 1}))
	_, err = tx.Insert(ctx, "users", "id", map[string]interface{}{"name": "c"})
	require.NoError(t, err)
	require.NoError(t, tx.Delete(ctx, "users", map[string]interface{}{"id": 1}))
	require.NoError(t, tx.Rollback(ctx))

	rows := store.Rows("users")
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0]["name"])
}

func TestSelectRowsConditions(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	store.Seed("posts",
		map[string]interface{}{"id": int64(1), "author_id": int64(7)},
		map[string]interface{}{"id": int64(2), "author_id": nil},
		map[string]interface{}{"id": int64(3), "author_id": int64(8)},
	)

	rows, err := store.SelectRows(ctx, "posts", map[string]interface{}{"author_id": []interface{}{uint(7), uint(8)}})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = store.SelectRows(ctx, "posts", map[string]interface{}{"author_id": nil})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0]["id"])

	rows, err = store.SelectRows(ctx, "missing", nil)
	require.NoError(t, err)
	assert.Empty(t, rows)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, tx.Delete(ctx, "posts", nil), memstore.ErrUnsafeDelete)
	require.NoError(t, tx.Rollback(ctx))
}
