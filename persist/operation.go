package persist

import (
	"fmt"
	"strings"

	"github.com/relmap/relmap/schema"
	"github.com/relmap/relmap/utils"
)

// Ref a column value that may only be known once a pending insert ran
type Ref struct {
	Value interface{}
	// Entity is set when the value is read from Field of a pending entity
	Entity *EntityWithID
	Field  *schema.Field
}

// Pending reports whether the value depends on a pending insert
func (r Ref) Pending() bool {
	return r.Entity != nil
}

// Resolve returns the value, reading it from the referenced entity when pending
func (r Ref) Resolve() (interface{}, error) {
	if r.Entity == nil {
		return r.Value, nil
	}
	if r.Entity.Identity == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnresolvedReference, r.Entity)
	}
	return r.Field.ColumnValue(r.Entity.Value), nil
}

func (r Ref) key() string {
	if r.Entity != nil && r.Entity.Identity == nil {
		return r.Entity.Key()
	}
	v, _ := r.Resolve()
	return utils.ToStringKey(v)
}

func (r Ref) String() string {
	if r.Entity != nil && r.Entity.Identity == nil {
		return "<" + r.Entity.String() + ">"
	}
	v, _ := r.Resolve()
	if v == nil {
		return "NULL"
	}
	return fmt.Sprint(v)
}

func refTo(target *EntityWithID, field *schema.Field) Ref {
	if target.Identity == nil {
		return Ref{Entity: target, Field: field}
	}
	return Ref{Value: field.ColumnValue(target.Value)}
}

// Change a column assignment. Field is nil for join columns without a
// mirror field; Relation is set for foreign keys.
type Change struct {
	Column   string
	Field    *schema.Field
	Relation *schema.Relationship
	Ref
}

func (c Change) String() string {
	return c.Column + "=" + c.Ref.String()
}

// InsertOperation inserts one row. Deferred holds cycle-breaking foreign keys
// left unset by the insert and written by a deferred update.
type InsertOperation struct {
	Entity   *EntityWithID
	Values   []Change
	Deferred []Change
}

// References foreign keys pointing at pending inserts
func (op *InsertOperation) References() []Change {
	var refs []Change
	for _, c := range op.Values {
		if c.Pending() {
			refs = append(refs, c)
		}
	}
	return refs
}

func (op *InsertOperation) String() string {
	return fmt.Sprintf("INSERT %s %s", op.Entity, changesString(op.Values))
}

// UpdateOperation updates changed columns of one row identified by the
// entity identity. Deferred updates complete foreign keys of a cycle and
// run once every insert reported its identity.
type UpdateOperation struct {
	Entity   *EntityWithID
	Changes  []Change
	Where    map[string]interface{}
	Deferred bool
}

// Identity row identity used as WHERE key
func (op *UpdateOperation) Identity() interface{} {
	return op.Entity.Identity
}

func (op *UpdateOperation) String() string {
	prefix := "UPDATE"
	if op.Deferred {
		prefix = "UPDATE(deferred)"
	}
	return fmt.Sprintf("%s %s %s", prefix, op.Entity, changesString(op.Changes))
}

// RemoveOperation deletes one row
type RemoveOperation struct {
	Entity *EntityWithID
}

// Identity row identity used as WHERE key
func (op *RemoveOperation) Identity() interface{} {
	return op.Entity.Identity
}

func (op *RemoveOperation) String() string {
	return fmt.Sprintf("REMOVE %s", op.Entity)
}

// JunctionOperation one pair of a many-to-many junction table, Owner
// references the owning side
type JunctionOperation struct {
	Relation *schema.Relationship
	Table    *schema.JunctionTable
	Owner    Ref
	Related  Ref
}

func (op *JunctionOperation) key() string {
	return op.Table.Name + "|" + op.Owner.key() + "|" + op.Related.key()
}

// Values junction row, owner column first
func (op *JunctionOperation) Values() (map[string]interface{}, error) {
	owner, err := op.Owner.Resolve()
	if err != nil {
		return nil, err
	}
	related, err := op.Related.Resolve()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{op.Table.OwnerColumn: owner, op.Table.InverseColumn: related}, nil
}

func (op *JunctionOperation) String() string {
	return fmt.Sprintf("%s(%s=%s, %s=%s)", op.Table.Name, op.Table.OwnerColumn, op.Owner, op.Table.InverseColumn, op.Related)
}

// PersistOperation ordered plan reconciling a requested graph with storage
type PersistOperation struct {
	Schema          *schema.Schema
	Inserts         []*InsertOperation
	Updates         []*UpdateOperation
	Removes         []*RemoveOperation
	JunctionInserts []*JunctionOperation
	JunctionDeletes []*JunctionOperation

	// requested entities, reindexed as inserts report identities
	set *EntitySet
}

// Empty reports whether the plan does nothing
func (op *PersistOperation) Empty() bool {
	return op.Len() == 0
}

// Len number of operations
func (op *PersistOperation) Len() int {
	return len(op.Inserts) + len(op.Updates) + len(op.Removes) + len(op.JunctionInserts) + len(op.JunctionDeletes)
}

// String lists the operations in execution order
func (op *PersistOperation) String() string {
	var b strings.Builder
	for _, o := range op.Inserts {
		fmt.Fprintln(&b, o)
	}
	for _, o := range op.Updates {
		fmt.Fprintln(&b, o)
	}
	for _, o := range op.JunctionInserts {
		fmt.Fprintln(&b, "LINK", o)
	}
	for _, o := range op.JunctionDeletes {
		fmt.Fprintln(&b, "UNLINK", o)
	}
	for _, o := range op.Removes {
		fmt.Fprintln(&b, o)
	}
	return b.String()
}

func changesString(changes []Change) string {
	parts := make([]string, len(changes))
	for i, c := range changes {
		parts[i] = c.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
