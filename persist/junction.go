package persist

import (
	"github.com/relmap/relmap/schema"
	"github.com/relmap/relmap/utils"
)

// DiffJunction compares the related ids currently paired with owner in the
// junction table of a many-to-many relation with the desired ones. owner is
// the entity on rel's side. An empty desired list leaves the pairs alone.
func DiffJunction(rel *schema.Relationship, owner Ref, current, desired []interface{}) (inserts, deletes []*JunctionOperation, err error) {
	if err := requireManyToMany(rel); err != nil {
		return nil, nil, err
	}
	if len(desired) == 0 {
		return nil, nil, nil
	}

	want := map[string]bool{}
	for _, id := range desired {
		want[utils.ToStringKey(id)] = true
	}
	have := map[string]bool{}
	for _, id := range current {
		have[utils.ToStringKey(id)] = true
	}

	seen := map[string]bool{}
	for _, id := range desired {
		key := utils.ToStringKey(id)
		if !have[key] && !seen[key] {
			inserts = append(inserts, junctionPair(rel, owner, Ref{Value: id}))
		}
		seen[key] = true
	}
	for _, id := range current {
		key := utils.ToStringKey(id)
		if !want[key] && !seen[key] {
			deletes = append(deletes, junctionPair(rel, owner, Ref{Value: id}))
		}
		seen[key] = true
	}
	return inserts, deletes, nil
}

// junctionPair orients a pair seen from rel's side towards the owning side
func junctionPair(rel *schema.Relationship, this, other Ref) *JunctionOperation {
	if rel.IsOwning {
		return &JunctionOperation{Relation: rel, Table: rel.JunctionTable, Owner: this, Related: other}
	}
	owning := rel.InverseRelation
	return &JunctionOperation{Relation: owning, Table: owning.JunctionTable, Owner: other, Related: this}
}

func requireManyToMany(rel *schema.Relationship) error {
	if rel == nil {
		return schema.NewConfigurationError(nil, "", schema.ErrRelationNotFound, "no relation given")
	}
	if rel.Kind != schema.ManyToMany || rel.JunctionTable == nil {
		return schema.NewConfigurationError(rel.Schema, rel.Name, schema.ErrUnsupportedRelation,
			"junction operations need a many-to-many relation, %s is %s", rel.Name, rel.Kind)
	}
	return nil
}
