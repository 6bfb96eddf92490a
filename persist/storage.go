package persist

import (
	"context"

	"github.com/relmap/relmap/schema"
)

// Storage opens transactions on the underlying store
type Storage interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx executes single-row statements inside one transaction.
//
// Insert returns the identity of the new row: the value of primaryKey when it
// was supplied, otherwise the one generated by the store. An empty primaryKey
// marks a junction row, which is ignored when an identical row already exists.
type Tx interface {
	Insert(ctx context.Context, table, primaryKey string, values map[string]interface{}) (interface{}, error)
	Update(ctx context.Context, table string, values, where map[string]interface{}) error
	Delete(ctx context.Context, table string, where map[string]interface{}) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// RowReader returns the rows of table matching every condition of where;
// a slice condition matches any of its values, a nil condition matches NULL
type RowReader interface {
	SelectRows(ctx context.Context, table string, where map[string]interface{}) ([]map[string]interface{}, error)
}

// Finder loads entities by identity. Both methods return a pointer to a new
// entity, or an error wrapping ErrRecordNotFound.
type Finder interface {
	// FindByID loads columns only, owning relations hold references with the key set
	FindByID(ctx context.Context, s *schema.Schema, id interface{}) (interface{}, error)
	// FindByIDWithRelations loads the entity and every relation to full depth
	FindByIDWithRelations(ctx context.Context, s *schema.Schema, id interface{}) (interface{}, error)
}
