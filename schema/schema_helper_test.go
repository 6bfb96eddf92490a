package schema_test

import (
	"time"

	"github.com/relmap/relmap/schema"
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
	Author    *Author                 `relmap:"manyToOne"`
	Tags      []*Tag                  `relmap:"manyToMany;joinTable:post_tags"`
	Comments  schema.Lazy[[]*Comment] `relmap:"oneToMany"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Comment struct {
	ID   uint
	Body string
	Post *Post
}

type Tag struct {
	ID    uint
	Name  string
	Posts []*Post `relmap:"manyToMany;inverse:Tags"`
}

type Profile struct {
	Key   string `relmap:"primaryKey;generated:uuid"`
	Bio   string
	Owner *User `relmap:"oneToOne;inverse:Profile"`
}

type User struct {
	ID        uint
	Name      string
	Profile   *Profile `relmap:"oneToOne;joinColumn:profile_key"`
	Secret    string   `relmap:"-"`
	Readonly  string   `relmap:"->"`
	CreatedAt int64
}

type Student struct {
	ID      uint
	Courses []Course `relmap:"manyToMany"`
}

type Course struct {
	Code string `relmap:"primaryKey;column:course_code"`
}

type Node struct {
	ID       uint
	Children []*Node `relmap:"manyToMany"`
	Links    []*Node `relmap:"manyToMany;joinTable:node_links;joinColumn:from_id;inverseJoinColumn:to_id"`
}

type Invoice struct {
	ID    uint
	Lines []*InvoiceLine `relmap:"oneToMany;inverse:Invoice;orphan:nullify"`
}

type InvoiceLine struct {
	ID        uint
	InvoiceID *uint
	Invoice   *Invoice
}

type legacyTable struct {
	Serial int64 `relmap:"primaryKey;autoIncrement:false"`
}

func (legacyTable) TableName() string {
	return "legacy"
}
