// Package relmap persists object graphs: it compares the entities reachable
// from a root with their stored state and applies the inserts, updates,
// removals and junction changes that reconcile the two.
package relmap

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/relmap/relmap/logger"
	"github.com/relmap/relmap/persist"
	"github.com/relmap/relmap/schema"
)

// DB relmap DB definition
type DB struct {
	*Config
	Storage persist.Storage

	reader   persist.RowReader
	loader   *persist.Loader
	executor *persist.Executor
}

// Open initialize a DB over storage
func Open(storage persist.Storage, opts ...Option) (*DB, error) {
	config := &Config{}
	for _, opt := range opts {
		opt(config)
	}

	if config.Logger == nil {
		config.Logger = logger.Default
	}
	if config.NowFunc == nil {
		config.NowFunc = func() time.Time { return time.Now().Local() }
	}
	if config.Registry == nil {
		config.Registry = schema.NewRegistry(config.NamingStrategy)
	}

	reader, _ := storage.(persist.RowReader)
	if config.Finder == nil {
		if reader == nil {
			return nil, fmt.Errorf("relmap: %w: %T", ErrReaderRequired, storage)
		}
		config.Finder = persist.NewRowFinder(reader)
	}

	return &DB{
		Config:  config,
		Storage: storage,
		reader:  reader,
		loader: persist.NewLoader(config.Finder, persist.LoaderOptions{
			Logger:      config.Logger,
			Concurrency: config.LookupConcurrency,
		}),
		executor: persist.NewExecutor(storage, persist.ExecutorOptions{
			Logger: config.Logger,
			DryRun: config.DryRun,
		}),
	}, nil
}

// Register parses models up front, reporting mapping errors early
func (db *DB) Register(models ...interface{}) error {
	return db.Registry.Register(models...)
}

// Save persists value, a pointer to an entity, and every entity reachable
// from it. Generated identities are written back into the graph.
func (db *DB) Save(ctx context.Context, value interface{}) error {
	op, err := db.PlanSave(ctx, value)
	if err != nil {
		return err
	}
	return db.executor.Execute(ctx, op)
}

// PlanSave computes the operations Save would execute without running them
func (db *DB) PlanSave(ctx context.Context, value interface{}) (*persist.PersistOperation, error) {
	s, err := db.entitySchema(value)
	if err != nil {
		return nil, err
	}

	requested := persist.Collect(value, s)
	reqRoot := requested.Entities()[0]

	database := persist.NewEntitySet()
	dbRoot, err := db.loader.Load(ctx, reqRoot, s)
	if err != nil {
		return nil, err
	}
	if dbRoot != nil {
		persist.CollectInto(database, dbRoot.Value, s)
		dbRoot = database.FindSame(dbRoot)
	}
	if err := db.loader.FindNotLoaded(ctx, requested, database); err != nil {
		return nil, err
	}

	op, err := persist.BuildFullPersistment(s, dbRoot, reqRoot, database, requested, db.planOptions())
	if err != nil {
		return nil, err
	}
	db.logPlan(ctx, "save", op)
	return op, nil
}

// Remove deletes the entity of model identified by id together with what
// it cascades to
func (db *DB) Remove(ctx context.Context, model interface{}, id interface{}) error {
	op, err := db.PlanRemove(ctx, model, id)
	if err != nil {
		return err
	}
	return db.executor.Execute(ctx, op)
}

// PlanRemove computes the operations Remove would execute
func (db *DB) PlanRemove(ctx context.Context, model interface{}, id interface{}) (*persist.PersistOperation, error) {
	s, err := db.Registry.Parse(model)
	if err != nil {
		return nil, err
	}

	found, err := db.Finder.FindByIDWithRelations(ctx, s, id)
	if err != nil {
		return nil, err
	}
	database := persist.Collect(found, s)

	op, err := persist.BuildOnlyRemovement(s, database.Entities()[0], database, db.planOptions())
	if err != nil {
		return nil, err
	}
	db.logPlan(ctx, "remove", op)
	return op, nil
}

// Execute runs a plan returned by PlanSave, PlanRemove or a relation mutation
func (db *DB) Execute(ctx context.Context, op *persist.PersistOperation) error {
	return db.executor.Execute(ctx, op)
}

func (db *DB) entitySchema(value interface{}) (*schema.Schema, error) {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return nil, fmt.Errorf("%w: expected a pointer to an entity, got %T", ErrInvalidEntity, value)
	}
	return db.Registry.Parse(value)
}

func (db *DB) logPlan(ctx context.Context, action string, op *persist.PersistOperation) {
	db.Logger.Info(ctx, "%s %s: %d inserts, %d updates, %d removes, %d links, %d unlinks",
		action, op.Schema.Name, len(op.Inserts), len(op.Updates), len(op.Removes), len(op.JunctionInserts), len(op.JunctionDeletes))
}
