package relmap_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jaswdr/faker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relmap/relmap"
	"github.com/relmap/relmap/logger"
	"github.com/relmap/relmap/persist"
	"github.com/relmap/relmap/storage/memstore"
)

type Author struct {
	relmap.Model
	Name  string
	Posts []*Post `relmap:"oneToMany;inverse:Author"`
}

type Post struct {
	relmap.Model
	Title    string
	AuthorID *uint
	Author   *Author    `relmap:"manyToOne"`
	Tags     []*Tag     `relmap:"manyToMany;joinTable:post_tags"`
	Comments []*Comment `relmap:"oneToMany;inverse:Post"`
}

type Comment struct {
	ID     uint
	Body   string
	PostID *uint
	Post   *Post `relmap:"manyToOne"`
}

type Tag struct {
	ID   uint
	Name string
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func open(t *testing.T, opts ...relmap.Option) (*relmap.DB, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	opts = append([]relmap.Option{
		relmap.WithLogger(logger.Discard),
		relmap.WithNowFunc(func() time.Time { return fixedNow }),
	}, opts...)
	db, err := relmap.Open(store, opts...)
	require.NoError(t, err)
	require.NoError(t, db.Register(&Author{}, &Post{}, &Comment{}, &Tag{}))
	return db, store
}

func fakePost(fake faker.Faker) *Post {
	return &Post{
		Title:  fake.Lorem().Sentence(4),
		Author: &Author{Name: fake.Person().Name()},
		Tags:   []*Tag{{Name: fake.Lorem().Word()}, {Name: fake.Lorem().Word()}},
		Comments: []*Comment{
			{Body: fake.Lorem().Sentence(6)},
			{Body: fake.Lorem().Sentence(6)},
		},
	}
}

func TestSaveGraph(t *testing.T) {
	ctx := context.Background()
	db, store := open(t)
	post := fakePost(faker.New())

	require.NoError(t, db.Save(ctx, post))

	assert.NotZero(t, post.ID)
	assert.NotZero(t, post.Author.ID)
	require.NotNil(t, post.AuthorID)
	assert.Equal(t, post.Author.ID, *post.AuthorID)
	assert.Equal(t, fixedNow, post.CreatedAt)
	for _, comment := range post.Comments {
		require.NotNil(t, comment.PostID)
		assert.Equal(t, post.ID, *comment.PostID)
	}
	assert.Len(t, store.Rows("posts"), 1)
	assert.Len(t, store.Rows("comments"), 2)
	assert.Len(t, store.Rows("post_tags"), 2)

	op, err := db.PlanSave(ctx, post)
	require.NoError(t, err)
	assert.True(t, op.Empty(), op.String())
}

func TestSaveChanges(t *testing.T) {
	ctx := context.Background()
	db, store := open(t)
	post := fakePost(faker.New())
	require.NoError(t, db.Save(ctx, post))

	later := fixedNow.Add(time.Hour)
	db.NowFunc = func() time.Time { return later }

	post.Title = "renamed"
	post.Comments = post.Comments[:1]
	post.Tags = append(post.Tags[1:], &Tag{Name: "new"})

	op, err := db.PlanSave(ctx, post)
	require.NoError(t, err)
	assert.Len(t, op.Inserts, 1)
	assert.Len(t, op.Updates, 1)
	assert.Len(t, op.Removes, 1)
	assert.Len(t, op.JunctionInserts, 1)
	assert.Len(t, op.JunctionDeletes, 1)

	require.NoError(t, db.Execute(ctx, op))
	assert.Equal(t, later, post.UpdatedAt)

	rows, err := store.SelectRows(ctx, "posts", map[string]interface{}{"id": post.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "renamed", rows[0]["title"])
	assert.Len(t, store.Rows("comments"), 1)
	assert.Len(t, store.Rows("post_tags"), 2)
}

func TestSaveRequiresPointer(t *testing.T) {
	db, _ := open(t)
	err := db.Save(context.Background(), Post{Title: "value"})
	assert.ErrorIs(t, err, relmap.ErrInvalidEntity)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	db, store := open(t)
	post := fakePost(faker.New())
	require.NoError(t, db.Save(ctx, post))

	require.NoError(t, db.Remove(ctx, &Post{}, post.ID))
	assert.Empty(t, store.Rows("posts"))
	assert.Empty(t, store.Rows("comments"))
	assert.Empty(t, store.Rows("post_tags"))
	assert.Len(t, store.Rows("authors"), 1)

	err := db.Remove(ctx, &Post{}, post.ID)
	var notFound *relmap.NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "Post", notFound.Entity)
	assert.ErrorIs(t, err, relmap.ErrRecordNotFound)
}

func TestDryRun(t *testing.T) {
	ctx := context.Background()
	db, store := open(t, relmap.WithDryRun())

	post := fakePost(faker.New())
	require.NoError(t, db.Save(ctx, post))
	assert.Empty(t, store.Rows("posts"))
	assert.Zero(t, post.ID)
}

func TestRelationManyToMany(t *testing.T) {
	ctx := context.Background()
	db, store := open(t)
	store.Seed("posts", map[string]interface{}{"id": 1, "title": "p"})
	store.Seed("tags",
		map[string]interface{}{"id": 10, "name": "a"},
		map[string]interface{}{"id": 20, "name": "b"},
		map[string]interface{}{"id": 30, "name": "c"},
	)

	tags := db.Relation(&Post{}, "Tags").Of(1)
	require.NoError(t, tags.Add(ctx, 10, 20))
	assert.Len(t, store.Rows("post_tags"), 2)

	op, err := tags.Plan(ctx, persist.MutationSet, 20, 30)
	require.NoError(t, err)
	assert.Len(t, op.JunctionInserts, 1)
	assert.Len(t, op.JunctionDeletes, 1)
	require.NoError(t, db.Execute(ctx, op))

	rows, err := store.SelectRows(ctx, "post_tags", map[string]interface{}{"post_id": 1})
	require.NoError(t, err)
	assert.ElementsMatch(t, []interface{}{20, 30}, []interface{}{rows[0]["tag_id"], rows[1]["tag_id"]})

	require.NoError(t, tags.Set(ctx))
	assert.Len(t, store.Rows("post_tags"), 2)

	require.NoError(t, tags.Remove(ctx, 20, 30))
	assert.Empty(t, store.Rows("post_tags"))
}

func TestRelationOneToMany(t *testing.T) {
	ctx := context.Background()
	db, store := open(t)
	store.Seed("posts", map[string]interface{}{"id": 1, "title": "p"})
	store.Seed("comments",
		map[string]interface{}{"id": 5, "body": "x", "post_id": nil},
		map[string]interface{}{"id": 6, "body": "y", "post_id": 1},
	)

	comments := db.Relation(&Post{}, func(p *Post) interface{} { return &p.Comments }).Of(1)
	require.NoError(t, comments.Set(ctx, 5))

	rows, err := store.SelectRows(ctx, "comments", map[string]interface{}{"post_id": 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 5, rows[0]["id"])
}

func TestRelationToOne(t *testing.T) {
	ctx := context.Background()
	db, store := open(t)
	store.Seed("authors", map[string]interface{}{"id": 3, "name": "a"})
	store.Seed("posts", map[string]interface{}{"id": 1, "title": "p", "author_id": nil})

	author := db.Relation(&Post{}, "Author").Of(1)
	require.NoError(t, author.Set(ctx, 3))

	rows, err := store.SelectRows(ctx, "posts", map[string]interface{}{"author_id": 3})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	err = author.Add(ctx, 3)
	var cfg *relmap.ConfigurationError
	assert.True(t, errors.As(err, &cfg))
	assert.ErrorIs(t, err, relmap.ErrUnsupportedRelation)
}

func TestRelationErrors(t *testing.T) {
	ctx := context.Background()
	db, _ := open(t, relmap.WithRequireExistingOwner())

	err := db.Relation(&Post{}, "Missing").Of(1).Add(ctx, 1)
	assert.ErrorIs(t, err, relmap.ErrRelationNotFound)

	err = db.Relation(&Post{}, "Tags").Of(nil).Add(ctx, 1)
	assert.ErrorIs(t, err, relmap.ErrMissingIdentity)

	err = db.Relation(&Post{}, "Tags").Of(99).Add(ctx, 1)
	assert.ErrorIs(t, err, relmap.ErrRecordNotFound)

	plain, _ := open(t)
	err = plain.Relation(&Post{}, "Author").Of(1).Set(ctx, []uint{7, 8})
	var cfgErr *relmap.ConfigurationError
	require.True(t, errors.As(err, &cfgErr), "%v", err)
	assert.Equal(t, "Author", cfgErr.Relation)
}

type writeOnly struct{ persist.Storage }

func TestOpenRequiresReader(t *testing.T) {
	_, err := relmap.Open(writeOnly{memstore.New()}, relmap.WithLogger(logger.Discard))
	assert.ErrorIs(t, err, relmap.ErrReaderRequired)
}
