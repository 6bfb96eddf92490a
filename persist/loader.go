package persist

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/relmap/relmap/logger"
	"github.com/relmap/relmap/schema"
	"golang.org/x/sync/errgroup"
)

// LoaderOptions loader settings
type LoaderOptions struct {
	Logger logger.Interface
	// Concurrency bounds parallel point lookups, zero or less means 8
	Concurrency int
}

// Loader reads the database side of a persist call
type Loader struct {
	finder Finder
	logger logger.Interface
	limit  int
}

// NewLoader returns a loader reading through finder
func NewLoader(finder Finder, opts LoaderOptions) *Loader {
	if opts.Logger == nil {
		opts.Logger = logger.Discard
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	return &Loader{finder: finder, logger: opts.Logger, limit: opts.Concurrency}
}

// Load reloads the full graph stored for the identity of entity. It returns
// nil when entity has no identity or no row matches it.
func (l *Loader) Load(ctx context.Context, entity *EntityWithID, s *schema.Schema) (*EntityWithID, error) {
	if entity == nil || entity.Identity == nil {
		return nil, nil
	}

	found, err := l.find(ctx, s, entity.Identity, true)
	if err != nil || !found.IsValid() {
		return nil, err
	}
	return newEntity(s, found), nil
}

// FindNotLoaded looks up every requested entity with an identity that the
// database set lacks, and adds the rows found to it. Entities without a row
// stay absent and are planned as inserts.
func (l *Loader) FindNotLoaded(ctx context.Context, requested, database *EntitySet) error {
	var missing []*EntityWithID
	for _, e := range requested.Entities() {
		if e.Identity != nil && database.FindSame(e) == nil {
			missing = append(missing, e)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	results := make([]reflect.Value, len(missing))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.limit)
	for i, e := range missing {
		i, e := i, e
		g.Go(func() error {
			found, err := l.find(ctx, e.Schema, e.Identity, false)
			results[i] = found
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, found := range results {
		if found.IsValid() {
			entity := newEntity(missing[i].Schema, found)
			entity.partial = true
			database.Add(entity)
		}
	}
	return nil
}

// find returns the zero Value when no row matches
func (l *Loader) find(ctx context.Context, s *schema.Schema, id interface{}, withRelations bool) (reflect.Value, error) {
	var (
		begin  = time.Now()
		result interface{}
		err    error
	)
	if withRelations {
		result, err = l.finder.FindByIDWithRelations(ctx, s, id)
	} else {
		result, err = l.finder.FindByID(ctx, s, id)
	}

	l.logger.Trace(ctx, begin, func() (string, int64) {
		kind := "find"
		if withRelations {
			kind = "load"
		}
		rows := int64(1)
		if result == nil {
			rows = 0
		}
		return fmt.Sprintf("%s %s %v", kind, s.Table, id), rows
	}, err)

	if errors.Is(err, ErrRecordNotFound) {
		return reflect.Value{}, nil
	}
	if err != nil {
		return reflect.Value{}, fmt.Errorf("relmap: loading %s %v: %w", s.Name, id, err)
	}
	if result == nil {
		return reflect.Value{}, nil
	}

	rv := reflect.ValueOf(result)
	if rv.Kind() != reflect.Ptr || !s.Owns(rv) {
		return reflect.Value{}, fmt.Errorf("%w: finder returned %T for %s", ErrInvalidEntity, result, s.Name)
	}
	return rv, nil
}
