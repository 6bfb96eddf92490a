package relmap

import (
	"context"
	"fmt"

	"github.com/relmap/relmap/persist"
	"github.com/relmap/relmap/schema"
)

// RelationBuilder changes one relation of a model by identity, without
// loading the entities on either side:
//
//	db.Relation(&Post{}, "Tags").Of(postID).Add(ctx, tagID)
//	db.Relation(&Post{}, func(p *Post) interface{} { return &p.Author }).Of(postID).Set(ctx, authorID)
type RelationBuilder struct {
	db       *DB
	schema   *schema.Schema
	relation *schema.Relationship
	err      error
}

// Relation selects the relation of model by property name or accessor func
func (db *DB) Relation(model interface{}, nameOrAccessor interface{}) *RelationBuilder {
	b := &RelationBuilder{db: db}
	if b.schema, b.err = db.Registry.Parse(model); b.err == nil {
		b.relation, b.err = schema.ResolveRelationName(b.schema, nameOrAccessor)
	}
	return b
}

// Of selects the owner by identity
func (b *RelationBuilder) Of(id interface{}) *RelationOwner {
	return &RelationOwner{builder: b, id: id}
}

// RelationOwner the relation of one owner
type RelationOwner struct {
	builder *RelationBuilder
	id      interface{}
}

// Add relates ids to the owner
func (o *RelationOwner) Add(ctx context.Context, ids ...interface{}) error {
	return o.execute(ctx, persist.MutationAdd, ids)
}

// Remove unrelates ids from the owner
func (o *RelationOwner) Remove(ctx context.Context, ids ...interface{}) error {
	return o.execute(ctx, persist.MutationRemove, ids)
}

// Set replaces the related ids. Single valued relations take at most one
// id, Set(ctx, nil) clears them.
func (o *RelationOwner) Set(ctx context.Context, ids ...interface{}) error {
	return o.execute(ctx, persist.MutationSet, ids)
}

// Plan computes the operations of a mutation without running them
func (o *RelationOwner) Plan(ctx context.Context, kind persist.MutationKind, ids ...interface{}) (*persist.PersistOperation, error) {
	b := o.builder
	if b.err != nil {
		return nil, b.err
	}

	owner, err := o.owner(ctx)
	if err != nil {
		return nil, err
	}
	m := persist.RelationMutation{Relation: b.relation, Owner: owner, Kind: kind, IDs: ids}
	if kind == persist.MutationSet && owner != nil && o.needsCurrent(len(ids)) {
		if m.Current, err = o.current(ctx, owner); err != nil {
			return nil, err
		}
	}

	op, err := persist.BuildRelationMutation(b.schema, m)
	if err != nil {
		return nil, err
	}
	b.db.logPlan(ctx, fmt.Sprintf("%s %s of", kind, b.relation.Name), op)
	return op, nil
}

func (o *RelationOwner) execute(ctx context.Context, kind persist.MutationKind, ids []interface{}) error {
	op, err := o.Plan(ctx, kind, ids...)
	if err != nil {
		return err
	}
	return o.builder.db.executor.Execute(ctx, op)
}

// owner a stub holding the identity, loaded when required or when the
// children reference a column other than the primary key
func (o *RelationOwner) owner(ctx context.Context) (*persist.EntityWithID, error) {
	if o.id == nil {
		return nil, nil
	}
	b := o.builder
	s, rel := b.schema, b.relation

	load := b.db.RequireExistingOwner
	if inv := rel.InverseRelation; !rel.HoldsForeignKey() && rel.Kind != schema.ManyToMany && inv != nil {
		if ref := inv.ReferencedField(); ref != nil && !ref.PrimaryKey {
			load = true
		}
	}

	if load {
		found, err := b.db.Finder.FindByID(ctx, s, o.id)
		if err != nil {
			return nil, err
		}
		return persist.NewEntityWithID(s, found)
	}

	v := s.New()
	if err := s.SetIdentity(v, o.id); err != nil {
		return nil, err
	}
	return persist.NewEntityWithID(s, v)
}

func (o *RelationOwner) needsCurrent(n int) bool {
	rel := o.builder.relation
	if rel.IsToMany() {
		return n > 0
	}
	return !rel.HoldsForeignKey()
}

// current the ids related to owner right now
func (o *RelationOwner) current(ctx context.Context, owner *persist.EntityWithID) ([]interface{}, error) {
	b := o.builder
	rel := b.relation
	if b.db.reader == nil {
		return nil, fmt.Errorf("relmap: %w: can't read current %s of %s", ErrReaderRequired, rel.Name, b.schema.Name)
	}

	var (
		table, column string
		where         map[string]interface{}
	)
	switch {
	case rel.Kind == schema.ManyToMany:
		own, other := rel.JunctionColumns()
		table, column = rel.JunctionTable.Name, other
		where = map[string]interface{}{own: owner.Identity}
	case rel.InverseRelation != nil && rel.InverseRelation.HoldsForeignKey():
		inv := rel.InverseRelation
		table, column = rel.FieldSchema.Table, rel.FieldSchema.PrioritizedPrimaryField.DBName
		where = map[string]interface{}{inv.JoinColumn: inv.ReferencedField().ColumnValue(owner.Value)}
	default:
		// BuildRelationMutation reports the unsupported relation
		return nil, nil
	}

	rows, err := b.db.reader.SelectRows(ctx, table, where)
	if err != nil {
		return nil, err
	}
	ids := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row[column])
	}
	return ids, nil
}
