package persist_test

import (
	"context"
	"testing"
	"time"

	"github.com/relmap/relmap/persist"
	"github.com/relmap/relmap/schema"
	"github.com/relmap/relmap/storage/memstore"
	"github.com/stretchr/testify/require"
)

type Author struct {
	ID    uint
	Name  string
	Posts []*Post `relmap:"oneToMany;inverse:Author"`
}

type Post struct {
	ID        uint
	Title     string
	AuthorID  *uint
	Author    *Author    `relmap:"manyToOne"`
	Tags      []*Tag     `relmap:"manyToMany;joinTable:post_tags"`
	Comments  []*Comment `relmap:"oneToMany;inverse:Post"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Comment struct {
	ID     uint
	Body   string
	PostID *uint
	Post   *Post `relmap:"manyToOne"`
}

type Tag struct {
	ID    uint
	Name  string
	Posts []*Post `relmap:"manyToMany;inverse:Tags"`
}

type Member struct {
	ID   uint
	Name string
	Age  int
}

type Country struct {
	ID        uint
	Name      string
	CapitalID *uint
	Capital   *City `relmap:"manyToOne"`
}

type City struct {
	ID        uint
	Name      string
	CountryID *uint
	Country   *Country `relmap:"manyToOne"`
}

type Employee struct {
	ID        uint
	Name      string
	ManagerID *uint
	Manager   *Employee `relmap:"manyToOne"`
}

type Gallery struct {
	ID      uint
	CoverID *uint
	Cover   *Photo   `relmap:"manyToOne"`
	Photos  []*Photo `relmap:"oneToMany;inverse:Gallery"`
}

type Photo struct {
	ID        uint
	GalleryID *uint
	Gallery   *Gallery
}

type Thread struct {
	ID      uint
	Title   string
	Replies schema.Lazy[[]*Reply] `relmap:"oneToMany;inverse:Thread"`
}

type Reply struct {
	ID       uint
	Body     string
	ThreadID *uint
	Thread   *Thread
}

type Invoice struct {
	ID    uint
	Lines []*InvoiceLine `relmap:"oneToMany;inverse:Invoice;orphan:nullify"`
}

type InvoiceLine struct {
	ID        uint
	Amount    int
	InvoiceID *uint
	Invoice   *Invoice
}

type Profile struct {
	Key   string `relmap:"primaryKey;generated:uuid"`
	Bio   string
	Owner *User `relmap:"oneToOne;inverse:Profile"`
}

type User struct {
	ID         uint
	Name       string
	ProfileKey *string
	Profile    *Profile `relmap:"oneToOne;joinColumn:profile_key"`
}

var fixedNow = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

type env struct {
	t        *testing.T
	ctx      context.Context
	registry *schema.Registry
	store    *memstore.Store
	loader   *persist.Loader
	executor *persist.Executor
	opts     persist.PlanOptions
}

func newEnv(t *testing.T) *env {
	store := memstore.New()
	return &env{
		t:        t,
		ctx:      context.Background(),
		registry: schema.NewRegistry(nil),
		store:    store,
		loader:   persist.NewLoader(persist.NewRowFinder(store), persist.LoaderOptions{Concurrency: 2}),
		executor: persist.NewExecutor(store, persist.ExecutorOptions{}),
		opts:     persist.PlanOptions{NowFunc: func() time.Time { return fixedNow }},
	}
}

func (e *env) schema(model interface{}) *schema.Schema {
	e.t.Helper()
	s, err := e.registry.Parse(model)
	require.NoError(e.t, err)
	return s
}

// plan loads the database side of root and plans its persistence
func (e *env) plan(root interface{}) *persist.PersistOperation {
	e.t.Helper()
	s := e.schema(root)

	req := persist.Collect(root, s)
	reqRoot := req.Entities()[0]

	db := persist.NewEntitySet()
	dbRoot, err := e.loader.Load(e.ctx, reqRoot, s)
	require.NoError(e.t, err)
	if dbRoot != nil {
		persist.CollectInto(db, dbRoot.Value, s)
		dbRoot = db.FindSame(dbRoot)
	}
	require.NoError(e.t, e.loader.FindNotLoaded(e.ctx, req, db))

	op, err := persist.BuildFullPersistment(s, dbRoot, reqRoot, db, req, e.opts)
	require.NoError(e.t, err)
	return op
}

func (e *env) save(root interface{}) *persist.PersistOperation {
	e.t.Helper()
	op := e.plan(root)
	require.NoError(e.t, e.executor.Execute(e.ctx, op))
	return op
}

func (e *env) planRemove(model interface{}, id interface{}) *persist.PersistOperation {
	e.t.Helper()
	s := e.schema(model)

	found, err := persist.NewRowFinder(e.store).FindByIDWithRelations(e.ctx, s, id)
	require.NoError(e.t, err)
	db := persist.Collect(found, s)

	op, err := persist.BuildOnlyRemovement(s, db.Entities()[0], db, e.opts)
	require.NoError(e.t, err)
	return op
}

// blogGraph a fresh author with one post holding two tags and two comments
func blogGraph() (*Author, *Post) {
	author := &Author{Name: "jinzhu"}
	post := &Post{
		Title:    "hello",
		Author:   author,
		Tags:     []*Tag{{Name: "go"}, {Name: "orm"}},
		Comments: []*Comment{{Body: "first"}, {Body: "second"}},
	}
	author.Posts = []*Post{post}
	return author, post
}

func columns(changes []persist.Change) map[string]interface{} {
	values := map[string]interface{}{}
	for _, c := range changes {
		v, _ := c.Resolve()
		values[c.Column] = v
	}
	return values
}

func indexOf(ops []*persist.InsertOperation, value interface{}) int {
	for i, op := range ops {
		if op.Entity.Interface() == value {
			return i
		}
	}
	return -1
}
