package persist_test

import (
	"errors"
	"testing"

	"github.com/relmap/relmap/persist"
	"github.com/relmap/relmap/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func owner(t *testing.T, s *schema.Schema, value interface{}) *persist.EntityWithID {
	t.Helper()
	entity, err := persist.NewEntityWithID(s, value)
	require.NoError(t, err)
	return entity
}

func TestRelationMutationEmptyIDs(t *testing.T) {
	e := newEnv(t)
	s := e.schema(&Post{})

	for _, kind := range []persist.MutationKind{persist.MutationAdd, persist.MutationRemove, persist.MutationSet} {
		op, err := persist.BuildRelationMutation(s, persist.RelationMutation{
			Relation: s.RelationsByName["Tags"],
			Owner:    owner(t, s, &Post{ID: 1}),
			Kind:     kind,
			Current:  []interface{}{10, 20},
		})
		require.NoError(t, err)
		assert.True(t, op.Empty(), "%s with no ids planned\n%s", kind, op)
	}
}

func TestRelationMutationManyToMany(t *testing.T) {
	e := newEnv(t)
	s := e.schema(&Post{})
	rel := s.RelationsByName["Tags"]
	post := owner(t, s, &Post{ID: 1})

	op, err := persist.BuildRelationMutation(s, persist.RelationMutation{Relation: rel, Owner: post, Kind: persist.MutationAdd, IDs: []interface{}{10, 10, 20}})
	require.NoError(t, err)
	assert.Len(t, op.JunctionInserts, 2)

	op, err = persist.BuildRelationMutation(s, persist.RelationMutation{Relation: rel, Owner: post, Kind: persist.MutationRemove, IDs: []interface{}{10}})
	require.NoError(t, err)
	require.Len(t, op.JunctionDeletes, 1)
	values, err := op.JunctionDeletes[0].Values()
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"post_id": uint(1), "tag_id": 10}, values)

	op, err = persist.BuildRelationMutation(s, persist.RelationMutation{Relation: rel, Owner: post, Kind: persist.MutationSet, IDs: []interface{}{20, 30}, Current: []interface{}{10, 20}})
	require.NoError(t, err)
	assert.Len(t, op.JunctionInserts, 1)
	assert.Len(t, op.JunctionDeletes, 1)
}

func TestRelationMutationOneToMany(t *testing.T) {
	e := newEnv(t)
	e.store.Seed("authors", map[string]interface{}{"id": int64(1), "name": "a"})
	e.store.Seed("posts",
		map[string]interface{}{"id": int64(1), "title": "x", "author_id": int64(1)},
		map[string]interface{}{"id": int64(2), "title": "y", "author_id": nil},
	)
	s := e.schema(&Author{})
	rel := s.RelationsByName["Posts"]
	author := owner(t, s, &Author{ID: 1})

	op, err := persist.BuildRelationMutation(s, persist.RelationMutation{Relation: rel, Owner: author, Kind: persist.MutationAdd, IDs: []interface{}{2}})
	require.NoError(t, err)
	require.NoError(t, e.executor.Execute(e.ctx, op))

	rows, err := e.store.SelectRows(e.ctx, "posts", map[string]interface{}{"author_id": 1})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	op, err = persist.BuildRelationMutation(s, persist.RelationMutation{Relation: rel, Owner: author, Kind: persist.MutationSet, IDs: []interface{}{2}, Current: []interface{}{1, 2}})
	require.NoError(t, err)
	require.Len(t, op.Updates, 1)
	assert.Equal(t, map[string]interface{}{"author_id": uint(1)}, op.Updates[0].Where)
	require.NoError(t, e.executor.Execute(e.ctx, op))

	rows, err = e.store.SelectRows(e.ctx, "posts", map[string]interface{}{"author_id": nil})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 1, rows[0]["id"])
}

func TestRelationMutationToOne(t *testing.T) {
	e := newEnv(t)
	s := e.schema(&Post{})
	rel := s.RelationsByName["Author"]
	post := owner(t, s, &Post{ID: 1})

	op, err := persist.BuildRelationMutation(s, persist.RelationMutation{Relation: rel, Owner: post, Kind: persist.MutationSet, IDs: []interface{}{7}})
	require.NoError(t, err)
	require.Len(t, op.Updates, 1)
	assert.Equal(t, map[string]interface{}{"author_id": 7}, columns(op.Updates[0].Changes))

	for _, m := range []persist.RelationMutation{
		{Relation: rel, Owner: post, Kind: persist.MutationAdd, IDs: []interface{}{7}},
		{Relation: rel, Owner: post, Kind: persist.MutationSet, IDs: []interface{}{7, 8}},
		{Relation: rel, Owner: post, Kind: persist.MutationSet, IDs: []interface{}{[]interface{}{7, 8}}},
		{Relation: rel, Owner: post, Kind: persist.MutationSet, IDs: []interface{}{[]uint{7}}},
		{Relation: rel, Owner: post, Kind: persist.MutationSet, IDs: []interface{}{[2]int{7, 8}}},
	} {
		_, err := persist.BuildRelationMutation(s, m)
		var cfgErr *schema.ConfigurationError
		require.True(t, errors.As(err, &cfgErr), "%s: %v", m.Kind, err)
		assert.Equal(t, "Post", cfgErr.Entity)
		assert.Equal(t, "Author", cfgErr.Relation)
	}
}

func TestRelationMutationRejectsNestedCollections(t *testing.T) {
	e := newEnv(t)
	posts := e.schema(&Post{})
	authors := e.schema(&Author{})

	for _, m := range []struct {
		schema *schema.Schema
		m      persist.RelationMutation
	}{
		{posts, persist.RelationMutation{Relation: posts.RelationsByName["Tags"], Owner: owner(t, posts, &Post{ID: 1}), Kind: persist.MutationAdd, IDs: []interface{}{[]int{1, 2}}}},
		{authors, persist.RelationMutation{Relation: authors.RelationsByName["Posts"], Owner: owner(t, authors, &Author{ID: 1}), Kind: persist.MutationSet, IDs: []interface{}{3, []uint{4}}}},
	} {
		op, err := persist.BuildRelationMutation(m.schema, m.m)
		assert.Nil(t, op)
		var cfgErr *schema.ConfigurationError
		assert.True(t, errors.As(err, &cfgErr), "%s %s: %v", m.m.Relation.Name, m.m.Kind, err)
	}

	// byte slices are single values
	profiles := e.schema(&Profile{})
	_, err := persist.BuildRelationMutation(profiles, persist.RelationMutation{
		Relation: profiles.RelationsByName["Owner"],
		Owner:    owner(t, profiles, &Profile{Key: "k1"}),
		Kind:     persist.MutationSet,
		IDs:      []interface{}{[]byte("2")},
	})
	assert.NoError(t, err)
}

func TestRelationMutationInvalidID(t *testing.T) {
	e := newEnv(t)
	s := e.schema(&Author{})

	op, err := persist.BuildRelationMutation(s, persist.RelationMutation{
		Relation: s.RelationsByName["Posts"],
		Owner:    owner(t, s, &Author{ID: 1}),
		Kind:     persist.MutationAdd,
		IDs:      []interface{}{"not-a-number"},
	})
	assert.Nil(t, op)
	assert.ErrorIs(t, err, persist.ErrInvalidEntity)
}

func TestRelationMutationInverseOneToOne(t *testing.T) {
	e := newEnv(t)
	s := e.schema(&Profile{})
	profile := owner(t, s, &Profile{Key: "k1"})

	op, err := persist.BuildRelationMutation(s, persist.RelationMutation{
		Relation: s.RelationsByName["Owner"],
		Owner:    profile,
		Kind:     persist.MutationSet,
		IDs:      []interface{}{2},
		Current:  []interface{}{1},
	})
	require.NoError(t, err)
	require.Len(t, op.Updates, 2)
	assert.Equal(t, map[string]interface{}{"profile_key": nil}, columns(op.Updates[0].Changes))
	assert.Equal(t, map[string]interface{}{"profile_key": "k1"}, columns(op.Updates[1].Changes))
}

func TestRelationMutationNeedsPersistedOwner(t *testing.T) {
	e := newEnv(t)
	s := e.schema(&Post{})
	_, err := persist.BuildRelationMutation(s, persist.RelationMutation{
		Relation: s.RelationsByName["Tags"],
		Owner:    owner(t, s, &Post{}),
		Kind:     persist.MutationAdd,
		IDs:      []interface{}{1},
	})
	assert.ErrorIs(t, err, persist.ErrMissingIdentity)
}
