package persist_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/relmap/relmap/persist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStorage struct {
	insertErr   error
	commitErr   error
	rollbackErr error
	rolledBack  bool
}

func (f *failingStorage) Begin(ctx context.Context) (persist.Tx, error) {
	return &failingTx{f}, nil
}

type failingTx struct {
	*failingStorage
}

func (tx *failingTx) Insert(ctx context.Context, table, primaryKey string, values map[string]interface{}) (interface{}, error) {
	if tx.insertErr != nil {
		return nil, tx.insertErr
	}
	return int64(1), nil
}

func (tx *failingTx) Update(ctx context.Context, table string, values, where map[string]interface{}) error {
	return nil
}

func (tx *failingTx) Delete(ctx context.Context, table string, where map[string]interface{}) error {
	return nil
}

func (tx *failingTx) Commit(ctx context.Context) error {
	return tx.commitErr
}

func (tx *failingTx) Rollback(ctx context.Context) error {
	tx.rolledBack = true
	return tx.rollbackErr
}

func TestExecuteGeneratesUUIDs(t *testing.T) {
	e := newEnv(t)
	user := &User{Name: "jinzhu", Profile: &Profile{Bio: "hi"}}
	user.Profile.Owner = user

	op := e.save(user)
	require.Len(t, op.Inserts, 2)
	assert.Same(t, user.Profile, op.Inserts[0].Entity.Interface())

	_, err := uuid.Parse(user.Profile.Key)
	require.NoError(t, err)
	require.NotNil(t, user.ProfileKey)
	assert.Equal(t, user.Profile.Key, *user.ProfileKey)

	rows := e.store.Rows("users")
	require.Len(t, rows, 1)
	assert.Equal(t, user.Profile.Key, rows[0]["profile_key"])
}

func TestExecuteRollsBack(t *testing.T) {
	boom := errors.New("boom")
	e := newEnv(t)
	op := e.plan(&Member{Name: "a"})

	storage := &failingStorage{insertErr: boom}
	err := persist.NewExecutor(storage, persist.ExecutorOptions{}).Execute(e.ctx, op)
	assert.ErrorIs(t, err, boom)
	assert.True(t, storage.rolledBack)

	var txErr *persist.TransactionError
	assert.False(t, errors.As(err, &txErr))
}

func TestExecuteRestoresObjectsOnFailure(t *testing.T) {
	e := newEnv(t)
	author, post := blogGraph()
	op := e.plan(author)

	err := persist.NewExecutor(&failingStorage{commitErr: errors.New("serialization failure")}, persist.ExecutorOptions{}).Execute(e.ctx, op)
	require.Error(t, err)

	assert.Zero(t, author.ID)
	assert.Zero(t, post.ID)
	assert.Nil(t, post.AuthorID)
	assert.True(t, post.CreatedAt.IsZero())
	for _, c := range post.Comments {
		assert.Zero(t, c.ID)
		assert.Nil(t, c.PostID)
	}
	for _, ins := range op.Inserts {
		assert.Nil(t, ins.Entity.Identity, "%s", ins)
	}

	// the restored plan applies cleanly
	require.NoError(t, e.executor.Execute(e.ctx, op))
	assert.NotZero(t, author.ID)
	require.NotNil(t, post.AuthorID)
	assert.Equal(t, author.ID, *post.AuthorID)
	assert.Len(t, e.store.Rows("comments"), 2)
}

func TestExecuteChainsRollbackFailure(t *testing.T) {
	boom, rollback := errors.New("boom"), errors.New("connection lost")
	e := newEnv(t)
	op := e.plan(&Member{Name: "a"})

	err := persist.NewExecutor(&failingStorage{insertErr: boom, rollbackErr: rollback}, persist.ExecutorOptions{}).Execute(e.ctx, op)
	var txErr *persist.TransactionError
	require.True(t, errors.As(err, &txErr))
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, rollback)
}

func TestExecuteCommitFailure(t *testing.T) {
	commit := errors.New("serialization failure")
	e := newEnv(t)
	op := e.plan(&Member{Name: "a"})

	err := persist.NewExecutor(&failingStorage{commitErr: commit}, persist.ExecutorOptions{}).Execute(e.ctx, op)
	var txErr *persist.TransactionError
	require.True(t, errors.As(err, &txErr))
	assert.ErrorIs(t, err, commit)
	assert.Nil(t, txErr.RollbackErr)
}

func TestExecuteDryRun(t *testing.T) {
	e := newEnv(t)
	member := &Member{Name: "a"}
	op := e.plan(member)

	require.NoError(t, persist.NewExecutor(e.store, persist.ExecutorOptions{DryRun: true}).Execute(e.ctx, op))
	assert.Empty(t, e.store.Rows("members"))
	assert.Zero(t, member.ID)
}

func TestExecuteRefusesUnresolvedUpdate(t *testing.T) {
	e := newEnv(t)
	s := e.schema(&Member{})
	entity, err := persist.NewEntityWithID(s, &Member{Name: "a"})
	require.NoError(t, err)

	op := &persist.PersistOperation{Schema: s, Updates: []*persist.UpdateOperation{{Entity: entity}}}
	err = e.executor.Execute(e.ctx, op)
	assert.ErrorIs(t, err, persist.ErrMissingIdentity)
}
