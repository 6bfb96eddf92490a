package persist

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/relmap/relmap/logger"
	"github.com/relmap/relmap/schema"
)

// ExecutorOptions executor settings
type ExecutorOptions struct {
	Logger logger.Interface
	// DryRun logs the operations without touching storage
	DryRun bool
}

// Executor applies persist operations inside one transaction
type Executor struct {
	storage Storage
	logger  logger.Interface
	dryRun  bool
}

// NewExecutor returns an executor writing to storage
func NewExecutor(storage Storage, opts ExecutorOptions) *Executor {
	if opts.Logger == nil {
		opts.Logger = logger.Discard
	}
	return &Executor{storage: storage, logger: opts.Logger, dryRun: opts.DryRun}
}

// Execute runs inserts, updates, junction inserts, junction deletes and
// removes in plan order, then commits. Identities reported by inserts are
// written into the inserted objects and resolve the references of later
// operations. Any failure rolls the transaction back and restores the
// identities, foreign keys and stamps written into the objects.
func (ex *Executor) Execute(ctx context.Context, op *PersistOperation) error {
	if op == nil || op.Empty() {
		return nil
	}
	if ex.dryRun {
		ex.logger.Trace(ctx, time.Now(), func() (string, int64) {
			return "dry run\n" + op.String(), -1
		}, nil)
		return nil
	}

	tx, err := ex.storage.Begin(ctx)
	if err != nil {
		return fmt.Errorf("relmap: begin transaction: %w", err)
	}

	undo := &undoLog{}
	if err := ex.run(ctx, tx, op, undo); err != nil {
		undo.restore(op.set)
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return &TransactionError{Err: err, RollbackErr: rbErr}
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		undo.restore(op.set)
		return &TransactionError{Err: err}
	}
	return nil
}

func (ex *Executor) run(ctx context.Context, tx Tx, op *PersistOperation, undo *undoLog) error {
	for _, ins := range op.Inserts {
		if err := ex.trace(ctx, ins, func() error { return ex.insert(ctx, tx, op, ins, undo) }); err != nil {
			return err
		}
	}
	for _, up := range op.Updates {
		if err := ex.trace(ctx, up, func() error { return ex.update(ctx, tx, up, undo) }); err != nil {
			return err
		}
	}
	for _, j := range op.JunctionInserts {
		if err := ex.trace(ctx, j, func() error {
			values, err := j.Values()
			if err != nil {
				return err
			}
			_, err = tx.Insert(ctx, j.Table.Name, "", values)
			return err
		}); err != nil {
			return err
		}
	}
	for _, j := range op.JunctionDeletes {
		if err := ex.trace(ctx, j, func() error {
			values, err := j.Values()
			if err != nil {
				return err
			}
			return tx.Delete(ctx, j.Table.Name, values)
		}); err != nil {
			return err
		}
	}
	for _, rm := range op.Removes {
		if err := ex.trace(ctx, rm, func() error {
			if rm.Entity.Identity == nil {
				return fmt.Errorf("%w: remove %s", ErrMissingIdentity, rm.Entity)
			}
			pk := rm.Entity.Schema.PrioritizedPrimaryField
			return tx.Delete(ctx, rm.Entity.Schema.Table, map[string]interface{}{pk.DBName: rm.Entity.Identity})
		}); err != nil {
			return err
		}
	}
	return nil
}

func (ex *Executor) trace(ctx context.Context, stmt fmt.Stringer, fc func() error) error {
	begin := time.Now()
	err := fc()
	ex.logger.Trace(ctx, begin, func() (string, int64) {
		if err != nil {
			return stmt.String(), 0
		}
		return stmt.String(), 1
	}, err)
	if err != nil {
		return fmt.Errorf("relmap: %s: %w", stmt, err)
	}
	return nil
}

func (ex *Executor) insert(ctx context.Context, tx Tx, op *PersistOperation, ins *InsertOperation, undo *undoLog) error {
	e := ins.Entity
	values, err := resolveChanges(ins.Values)
	if err != nil {
		return err
	}

	pk := e.Schema.PrioritizedPrimaryField
	if e.Identity == nil && pk.Generated == schema.GeneratedUUID {
		values[pk.DBName] = newUUID(pk)
	}

	id, err := tx.Insert(ctx, e.Schema.Table, pk.DBName, values)
	if err != nil {
		return err
	}
	if e.Identity == nil {
		if id == nil {
			return fmt.Errorf("%w: storage reported no identity for %s", ErrMissingIdentity, e)
		}
		undo.identity(e)
		for _, obj := range e.Objects() {
			undo.field(pk, obj)
			if err := e.Schema.SetIdentity(obj, id); err != nil {
				return err
			}
		}
		e.Identity = e.Schema.Identity(e.Value)
		if op.set != nil {
			op.set.reindex(e)
		}
	}
	return writeBack(e, ins.Values, undo)
}

func (ex *Executor) update(ctx context.Context, tx Tx, up *UpdateOperation, undo *undoLog) error {
	e := up.Entity
	if e.Identity == nil {
		return fmt.Errorf("%w: update %s", ErrMissingIdentity, e)
	}
	values, err := resolveChanges(up.Changes)
	if err != nil {
		return err
	}

	where := map[string]interface{}{e.Schema.PrioritizedPrimaryField.DBName: e.Identity}
	for column, v := range up.Where {
		where[column] = v
	}
	if err := tx.Update(ctx, e.Schema.Table, values, where); err != nil {
		return err
	}
	return writeBack(e, up.Changes, undo)
}

func resolveChanges(changes []Change) (map[string]interface{}, error) {
	values := make(map[string]interface{}, len(changes))
	for _, c := range changes {
		v, err := c.Resolve()
		if err != nil {
			return nil, err
		}
		values[c.Column] = v
	}
	return values, nil
}

// writeBack stores stamped times and foreign keys into every object of e
func writeBack(e *EntityWithID, changes []Change, undo *undoLog) error {
	for _, c := range changes {
		if c.Field == nil {
			continue
		}
		v, err := c.Resolve()
		if err != nil {
			return err
		}
		for _, obj := range e.Objects() {
			undo.field(c.Field, obj)
			if err := c.Field.Set(obj, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// undoLog records what a run wrote into the objects, newest last
type undoLog struct {
	fields     []fieldSnapshot
	identities []*EntityWithID
}

type fieldSnapshot struct {
	field *schema.Field
	obj   reflect.Value
	prev  reflect.Value
}

func (u *undoLog) field(field *schema.Field, obj reflect.Value) {
	fv := field.ReflectValueOf(obj)
	prev := reflect.New(fv.Type()).Elem()
	prev.Set(fv)
	u.fields = append(u.fields, fieldSnapshot{field: field, obj: obj, prev: prev})
}

// identity records an entity receiving its generated identity
func (u *undoLog) identity(e *EntityWithID) {
	u.identities = append(u.identities, e)
}

func (u *undoLog) restore(set *EntitySet) {
	for i := len(u.fields) - 1; i >= 0; i-- {
		s := u.fields[i]
		s.field.ReflectValueOf(s.obj).Set(s.prev)
	}
	for _, e := range u.identities {
		if set != nil {
			set.unindex(e)
		}
		e.Identity = nil
	}
	u.fields, u.identities = nil, nil
}

var uuidType = reflect.TypeOf(uuid.UUID{})

func newUUID(field *schema.Field) interface{} {
	id := uuid.New()
	switch {
	case field.IndirectFieldType == uuidType:
		return id
	case field.IndirectFieldType.Kind() == reflect.String:
		return id.String()
	default:
		return id[:]
	}
}
