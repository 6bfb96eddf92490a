package persist

import (
	"fmt"
	"reflect"

	"github.com/relmap/relmap/schema"
	"github.com/relmap/relmap/utils"
)

// MutationKind how a relation mutation changes the related set
type MutationKind int

const (
	MutationAdd MutationKind = iota
	MutationRemove
	MutationSet
)

func (k MutationKind) String() string {
	switch k {
	case MutationAdd:
		return "add"
	case MutationRemove:
		return "remove"
	case MutationSet:
		return "set"
	}
	return fmt.Sprintf("MutationKind(%d)", int(k))
}

// RelationMutation changes the rows related to Owner through Relation
// without loading either side. IDs are primary keys of the related entity;
// Current, used by MutationSet on collections, the ids related right now.
type RelationMutation struct {
	Relation *schema.Relationship
	Owner    *EntityWithID
	Kind     MutationKind
	IDs      []interface{}
	Current  []interface{}
}

// BuildRelationMutation plans a relation mutation. Many-to-many relations
// change junction pairs, one-to-many relations the foreign key of the
// children, to-one relations accept only MutationSet with at most one id.
// An empty id list plans nothing.
func BuildRelationMutation(s *schema.Schema, m RelationMutation) (*PersistOperation, error) {
	rel := m.Relation
	if rel == nil {
		return nil, schema.NewConfigurationError(s, "", schema.ErrRelationNotFound, "no relation given")
	}
	if rel.Schema != s {
		return nil, schema.NewConfigurationError(s, rel.Name, schema.ErrRelationNotFound, "relation %s belongs to %s", rel.Name, rel.Schema.Name)
	}
	if m.Owner == nil || m.Owner.Identity == nil {
		return nil, fmt.Errorf("%w: relation %s.%s needs a persisted owner", ErrMissingIdentity, s.Name, rel.Name)
	}

	for _, id := range m.IDs {
		if isCollection(id) {
			return nil, schema.NewConfigurationError(s, rel.Name, schema.ErrUnsupportedRelation, "%s takes single ids, got collection %v", rel.Name, id)
		}
	}

	op := &PersistOperation{Schema: s}
	if !rel.IsToMany() {
		return op, planToOne(op, rel, m)
	}
	if m.Kind != MutationSet && len(m.IDs) == 0 {
		return op, nil
	}

	if rel.Kind == schema.ManyToMany {
		owner := Ref{Value: m.Owner.Identity}
		switch m.Kind {
		case MutationAdd:
			inserts, _, err := DiffJunction(rel, owner, nil, m.IDs)
			op.JunctionInserts = inserts
			return op, err
		case MutationRemove:
			for _, id := range uniqueIDs(m.IDs) {
				op.JunctionDeletes = append(op.JunctionDeletes, junctionPair(rel, owner, Ref{Value: id}))
			}
			return op, nil
		default:
			inserts, deletes, err := DiffJunction(rel, owner, m.Current, m.IDs)
			op.JunctionInserts, op.JunctionDeletes = inserts, deletes
			return op, err
		}
	}

	inv := rel.InverseRelation
	if inv == nil || !inv.HoldsForeignKey() {
		return nil, schema.NewConfigurationError(s, rel.Name, schema.ErrUnsupportedRelation, "collection %s has no foreign key on %s", rel.Name, rel.FieldSchema.Name)
	}
	parent := Ref{Value: inv.ReferencedField().ColumnValue(m.Owner.Value)}

	add, remove := m.IDs, []interface{}(nil)
	switch m.Kind {
	case MutationRemove:
		add, remove = nil, m.IDs
	case MutationSet:
		if len(m.IDs) == 0 {
			return op, nil
		}
		add, remove = difference(m.IDs, m.Current), difference(m.Current, m.IDs)
	}
	for _, id := range uniqueIDs(add) {
		update, err := attach(inv, id, parent)
		if err != nil {
			return nil, err
		}
		op.Updates = append(op.Updates, update)
	}
	for _, id := range uniqueIDs(remove) {
		update, err := detach(inv, id, parent)
		if err != nil {
			return nil, err
		}
		op.Updates = append(op.Updates, update)
	}
	return op, nil
}

func planToOne(op *PersistOperation, rel *schema.Relationship, m RelationMutation) error {
	if m.Kind != MutationSet {
		return schema.NewConfigurationError(rel.Schema, rel.Name, schema.ErrUnsupportedRelation, "%s is single valued, use set instead of %s", rel.Name, m.Kind)
	}
	if len(m.IDs) > 1 {
		return schema.NewConfigurationError(rel.Schema, rel.Name, schema.ErrUnsupportedRelation, "%s is single valued, got %d values", rel.Name, len(m.IDs))
	}
	if len(m.IDs) == 0 {
		return nil
	}
	id := m.IDs[0]

	if rel.HoldsForeignKey() {
		if ref := rel.ReferencedField(); ref == nil || !ref.PrimaryKey {
			return schema.NewConfigurationError(rel.Schema, rel.Name, schema.ErrUnsupportedRelation, "%s references %s, not a primary key", rel.Name, rel.ReferencedColumn)
		}
		op.Updates = append(op.Updates, &UpdateOperation{
			Entity:  m.Owner,
			Changes: []Change{{Column: rel.JoinColumn, Field: rel.ForeignKey, Relation: rel, Ref: Ref{Value: id}}},
		})
		return nil
	}

	// the other side holds the key: detach the current row, attach the new one
	inv := rel.InverseRelation
	parent := Ref{Value: inv.ReferencedField().ColumnValue(m.Owner.Value)}
	for _, cur := range uniqueIDs(m.Current) {
		if id == nil || utils.ToStringKey(cur) != utils.ToStringKey(id) {
			update, err := detach(inv, cur, parent)
			if err != nil {
				return err
			}
			op.Updates = append(op.Updates, update)
		}
	}
	if id != nil {
		update, err := attach(inv, id, parent)
		if err != nil {
			return err
		}
		op.Updates = append(op.Updates, update)
	}
	return nil
}

// isCollection reports whether an id is a slice or array, byte slices aside
func isCollection(id interface{}) bool {
	if id == nil {
		return false
	}
	t := reflect.TypeOf(id)
	switch t.Kind() {
	case reflect.Slice:
		return t.Elem().Kind() != reflect.Uint8
	case reflect.Array:
		return true
	}
	return false
}

// stub an entity of s known only by its identity
func stub(s *schema.Schema, id interface{}) (*EntityWithID, error) {
	v := s.New()
	if err := s.SetIdentity(v, id); err != nil {
		return nil, fmt.Errorf("%w: %s id %v: %v", ErrInvalidEntity, s.Name, id, err)
	}
	return &EntityWithID{Identity: id, Schema: s, Value: v, index: -1, partial: true}, nil
}

func attach(inv *schema.Relationship, id interface{}, parent Ref) (*UpdateOperation, error) {
	e, err := stub(inv.Schema, id)
	if err != nil {
		return nil, err
	}
	return &UpdateOperation{
		Entity:  e,
		Changes: []Change{{Column: inv.JoinColumn, Field: inv.ForeignKey, Relation: inv, Ref: parent}},
	}, nil
}

// detach clears the key only while the row still points at parent
func detach(inv *schema.Relationship, id interface{}, parent Ref) (*UpdateOperation, error) {
	e, err := stub(inv.Schema, id)
	if err != nil {
		return nil, err
	}
	return &UpdateOperation{
		Entity:  e,
		Changes: []Change{{Column: inv.JoinColumn, Field: inv.ForeignKey, Relation: inv}},
		Where:   map[string]interface{}{inv.JoinColumn: parent.Value},
	}, nil
}

func uniqueIDs(ids []interface{}) []interface{} {
	seen := map[string]bool{}
	result := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		if key := utils.ToStringKey(id); !seen[key] {
			seen[key] = true
			result = append(result, id)
		}
	}
	return result
}

func difference(ids, exclude []interface{}) []interface{} {
	skip := map[string]bool{}
	for _, id := range exclude {
		skip[utils.ToStringKey(id)] = true
	}
	var result []interface{}
	for _, id := range ids {
		if !skip[utils.ToStringKey(id)] {
			result = append(result, id)
		}
	}
	return result
}
