package persist

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/relmap/relmap/schema"
	"github.com/relmap/relmap/utils"
	"github.com/yourbasic/graph"
)

// PlanOptions planner settings
type PlanOptions struct {
	// NowFunc the time stamped into auto create/update time fields
	NowFunc func() time.Time
	// AssumeExisting updates entities with an identity but no database
	// counterpart blindly instead of inserting them
	AssumeExisting bool
}

func (opts PlanOptions) now() time.Time {
	if opts.NowFunc != nil {
		return opts.NowFunc()
	}
	return time.Now()
}

type subject struct {
	entity *EntityWithID
	db     *EntityWithID
	insert bool
	// decided foreign keys of owning relations
	fks map[*schema.Relationship]Ref
}

type planner struct {
	opts     PlanOptions
	now      time.Time
	req      *EntitySet
	db       *EntitySet
	subjects []*subject
	bySubj   map[*EntityWithID]*subject

	removed  map[*EntityWithID]bool
	removals []*EntityWithID
	// cascadedBy the removal that orphaned an entity, nil for direct orphans
	cascadedBy map[*EntityWithID]*EntityWithID
	nullifies  []*UpdateOperation
	nullified  map[string]*UpdateOperation
	nullifyBy  map[*UpdateOperation]*EntityWithID
	dropped    map[*UpdateOperation]bool
	deferred   []*UpdateOperation
	op         *PersistOperation
}

func newPlanner(s *schema.Schema, req, db *EntitySet, opts PlanOptions) *planner {
	if req == nil {
		req = NewEntitySet()
	}
	if db == nil {
		db = NewEntitySet()
	}
	return &planner{
		opts:       opts,
		now:        opts.now(),
		req:        req,
		db:         db,
		bySubj:     map[*EntityWithID]*subject{},
		removed:    map[*EntityWithID]bool{},
		cascadedBy: map[*EntityWithID]*EntityWithID{},
		nullified:  map[string]*UpdateOperation{},
		nullifyBy:  map[*UpdateOperation]*EntityWithID{},
		dropped:    map[*UpdateOperation]bool{},
		op:         &PersistOperation{Schema: s, set: req},
	}
}

// BuildFullPersistment plans the writes reconciling the requested graph with
// its database counterpart. dbEntities holds the loaded database graph plus
// the results of point lookups; reqEntities the collected requested graph.
// It performs no I/O.
func BuildFullPersistment(s *schema.Schema, dbRoot, reqRoot *EntityWithID, dbEntities, reqEntities *EntitySet, opts PlanOptions) (*PersistOperation, error) {
	if reqRoot == nil {
		return nil, fmt.Errorf("%w: nothing to persist", ErrInvalidEntity)
	}
	if reqRoot.Schema != s {
		return nil, fmt.Errorf("%w: %s is not a %s", ErrInvalidEntity, reqRoot, s.Name)
	}
	if dbRoot != nil && !dbRoot.Same(reqRoot) {
		return nil, fmt.Errorf("%w: database entity %s does not match %s", ErrInvalidEntity, dbRoot, reqRoot)
	}
	if reqEntities == nil {
		reqEntities = Collect(reqRoot.Value, s)
	}

	p := newPlanner(s, reqEntities, dbEntities, opts)
	p.classify()
	p.decideOwnedKeys()
	p.decideInverseKeys()
	p.detectOrphans()
	p.keepReferenced(nil)

	if err := p.planInserts(); err != nil {
		return nil, err
	}
	p.planUpdates()
	p.planJunctions()
	p.planRemovals()
	return p.op, nil
}

// BuildOnlyRemovement plans the removal of dbRoot and everything its orphan
// rules cascade to, with the junction pairs of every removed row
func BuildOnlyRemovement(s *schema.Schema, dbRoot *EntityWithID, dbEntities *EntitySet, opts PlanOptions) (*PersistOperation, error) {
	if dbRoot == nil || dbRoot.Identity == nil {
		return nil, ErrMissingIdentity
	}
	if dbEntities == nil {
		dbEntities = Collect(dbRoot.Value, s)
	}
	if root := dbEntities.FindSame(dbRoot); root != nil {
		dbRoot = root
	}

	p := newPlanner(s, nil, dbEntities, opts)
	p.markRemoved(dbRoot, nil)
	p.keepReferenced(dbRoot)
	p.planJunctions()
	p.planRemovals()
	return p.op, nil
}

func (p *planner) classify() {
	for _, e := range p.req.Entities() {
		sub := &subject{entity: e, fks: map[*schema.Relationship]Ref{}}
		if e.Identity == nil {
			sub.insert = true
		} else if d := p.db.FindSame(e); d != nil {
			sub.db = d
		} else {
			sub.insert = !p.opts.AssumeExisting
		}
		p.subjects = append(p.subjects, sub)
		p.bySubj[e] = sub
	}
}

// decideOwnedKeys foreign keys of owning to-one relations from the related
// object, or from the mirror field when the relation is untouched
func (p *planner) decideOwnedKeys() {
	for _, sub := range p.subjects {
		for _, rel := range sub.entity.Schema.Relationships {
			if !rel.HoldsForeignKey() {
				continue
			}
			related, touched := rel.Related(sub.entity.Value)
			switch {
			case touched && len(related) > 0:
				if target := p.req.Lookup(related[0]); target != nil {
					sub.fks[rel] = refTo(target, rel.ReferencedField())
				}
			case touched:
				sub.fks[rel] = Ref{}
			case rel.ForeignKey != nil:
				sub.fks[rel] = Ref{Value: rel.ForeignKey.ColumnValue(sub.entity.Value)}
			}
		}
	}
}

// decideInverseKeys a parent holding children through the inverse side
// assigns their foreign key, overriding what the child says
func (p *planner) decideInverseKeys() {
	for _, sub := range p.subjects {
		for _, rel := range sub.entity.Schema.Relationships {
			inv := rel.InverseRelation
			if rel.IsOwning || rel.Kind == schema.ManyToMany || inv == nil || !inv.HoldsForeignKey() {
				continue
			}
			related, _ := rel.Related(sub.entity.Value)
			for _, r := range related {
				if child := p.subjectOf(r); child != nil {
					child.fks[inv] = refTo(sub.entity, inv.ReferencedField())
				}
			}
		}
	}
}

func (p *planner) subjectOf(value reflect.Value) *subject {
	if e := p.req.Lookup(value); e != nil {
		return p.bySubj[e]
	}
	return nil
}

// detectOrphans compares each touched relation of an updated entity with
// its database counterpart and applies the orphan rule to dropped rows
func (p *planner) detectOrphans() {
	for _, sub := range p.subjects {
		if sub.db == nil || sub.db.partial {
			continue
		}
		for _, rel := range sub.entity.Schema.Relationships {
			if _, touched := rel.Related(sub.entity.Value); !touched {
				continue
			}
			dbRelated, _ := rel.Related(sub.db.Value)

			switch {
			case rel.Kind == schema.OneToOne && rel.IsOwning:
				for _, r := range dbRelated {
					if prev := p.db.Lookup(r); prev != nil && p.req.FindSame(prev) == nil && rel.OrphanAction == schema.OrphanDelete {
						p.markRemoved(prev, nil)
					}
				}
			case rel.Kind == schema.OneToMany || rel.Kind == schema.OneToOne:
				inv := rel.InverseRelation
				if inv == nil {
					continue
				}
				for _, r := range dbRelated {
					child := p.db.Lookup(r)
					if child == nil {
						continue
					}
					if present := p.req.FindSame(child); present != nil {
						// still around, but no longer held by this parent
						if cs := p.bySubj[present]; cs != nil && rel.OrphanAction != schema.OrphanKeep {
							if _, decided := cs.fks[inv]; !decided {
								cs.fks[inv] = Ref{}
							}
						}
						continue
					}
					p.orphan(rel, child, nil)
				}
			}
		}
	}
}

func (p *planner) orphan(rel *schema.Relationship, child, cause *EntityWithID) {
	switch rel.OrphanAction {
	case schema.OrphanDelete:
		p.markRemoved(child, cause)
	case schema.OrphanNullify:
		p.nullify(child, rel.InverseRelation, cause)
	}
}

func (p *planner) nullify(e *EntityWithID, rel *schema.Relationship, cause *EntityWithID) {
	key := e.Key() + "|" + rel.JoinColumn
	if op := p.nullified[key]; op != nil && !p.dropped[op] {
		return
	}
	op := &UpdateOperation{
		Entity:  e,
		Changes: []Change{{Column: rel.JoinColumn, Field: rel.ForeignKey, Relation: rel}},
	}
	p.nullified[key] = op
	p.nullifyBy[op] = cause
	p.nullifies = append(p.nullifies, op)
}

// markRemoved removes a database row absent from the requested graph and
// cascades to the rows orphaned by its removal
func (p *planner) markRemoved(e, cause *EntityWithID) {
	if p.removed[e] || p.req.FindSame(e) != nil {
		return
	}
	p.removed[e] = true
	p.cascadedBy[e] = cause
	p.removals = append(p.removals, e)
	if e.partial {
		return
	}

	for _, rel := range e.Schema.Relationships {
		if rel.Kind != schema.OneToMany && rel.Kind != schema.OneToOne {
			continue
		}
		if rel.Kind == schema.OneToOne && rel.IsOwning {
			if rel.OrphanAction != schema.OrphanDelete {
				continue
			}
		} else if rel.InverseRelation == nil {
			continue
		}

		related, _ := rel.Related(e.Value)
		for _, r := range related {
			child := p.db.Lookup(r)
			if child == nil {
				continue
			}
			if rel.IsOwning {
				p.markRemoved(child, e)
			} else if p.req.FindSame(child) == nil {
				p.orphan(rel, child, e)
			}
		}
	}
}

// keepReferenced takes back removals of rows a kept row still references,
// along with everything their removal cascaded to, until no kept row
// references a removed one. pinned stays removed regardless.
func (p *planner) keepReferenced(pinned *EntityWithID) {
	for changed := true; changed; {
		changed = false
		for _, e := range p.removals {
			if p.removed[e] && e != pinned && p.referencedByKept(e) {
				p.restore(e)
				changed = true
			}
		}
	}

	kept := p.removals[:0]
	for _, e := range p.removals {
		if p.removed[e] {
			kept = append(kept, e)
		}
	}
	p.removals = kept
}

func (p *planner) restore(e *EntityWithID) {
	delete(p.removed, e)
	for _, op := range p.nullifies {
		if p.nullifyBy[op] == e {
			p.dropped[op] = true
		}
	}
	for _, child := range p.removals {
		if p.removed[child] && p.cascadedBy[child] == e {
			p.restore(child)
		}
	}
}

// referencedByKept reports whether a requested entity or a kept database row
// holds a foreign key pointing at e
func (p *planner) referencedByKept(e *EntityWithID) bool {
	for _, sub := range p.subjects {
		for _, rel := range sub.entity.Schema.Relationships {
			if !rel.HoldsForeignKey() || rel.FieldSchema != e.Schema {
				continue
			}
			if fk, ok := sub.fks[rel]; ok {
				if !fk.Pending() && sameKey(rel, e, fk.Value) {
					return true
				}
			} else if sub.db != nil && sameKey(rel, e, currentKey(rel, sub.db.Value)) {
				return true
			}
		}
	}

	for _, d := range p.db.Entities() {
		if p.removed[d] || p.req.FindSame(d) != nil {
			continue
		}
		for _, rel := range d.Schema.Relationships {
			if !rel.HoldsForeignKey() || rel.FieldSchema != e.Schema {
				continue
			}
			if op := p.nullified[d.Key()+"|"+rel.JoinColumn]; op != nil && !p.dropped[op] {
				continue
			}
			if sameKey(rel, e, currentKey(rel, d.Value)) {
				return true
			}
		}
	}
	return false
}

// sameKey reports whether key is the value e offers to rel's foreign key
func sameKey(rel *schema.Relationship, e *EntityWithID, key interface{}) bool {
	ref := rel.ReferencedField()
	if key == nil || ref == nil {
		return false
	}
	target := ref.ColumnValue(e.Value)
	return target != nil && utils.ToStringKey(key) == utils.ToStringKey(target)
}

func (p *planner) planInserts() error {
	var inserts []*InsertOperation
	index := map[*EntityWithID]int{}
	for _, sub := range p.subjects {
		if !sub.insert {
			continue
		}
		index[sub.entity] = len(inserts)
		inserts = append(inserts, &InsertOperation{Entity: sub.entity, Values: p.insertValues(sub)})
	}
	if len(inserts) == 0 {
		return nil
	}

	g := graph.New(len(inserts))
	for i, op := range inserts {
		for _, c := range op.References() {
			j, ok := index[c.Entity]
			if !ok {
				return fmt.Errorf("%w: %s references %s outside the persisted graph", ErrUnresolvedReference, op.Entity, c.Entity)
			}
			g.Add(j, i)
		}
	}

	var deferred []*UpdateOperation
	for _, comp := range cyclicComponents(g) {
		members := map[int]bool{}
		for _, i := range comp {
			members[i] = true
		}
		for _, i := range comp {
			op := inserts[i]
			values := op.Values[:0:0]
			for _, c := range op.Values {
				if j, ok := index[c.Entity]; ok && c.Pending() && members[j] {
					op.Deferred = append(op.Deferred, c)
					g.Delete(j, i)
					continue
				}
				values = append(values, c)
			}
			op.Values = values
		}
	}
	for _, op := range inserts {
		if len(op.Deferred) > 0 {
			deferred = append(deferred, &UpdateOperation{Entity: op.Entity, Changes: op.Deferred, Deferred: true})
		}
	}

	for _, i := range stableOrder(g) {
		p.op.Inserts = append(p.op.Inserts, inserts[i])
	}
	if len(p.op.Inserts) != len(inserts) {
		return fmt.Errorf("%w: insert dependencies do not resolve", ErrUnresolvedReference)
	}
	p.deferred = deferred
	return nil
}

func (p *planner) insertValues(sub *subject) []Change {
	e := sub.entity
	var values []Change
	for _, field := range e.Schema.Fields {
		if rel := field.ForeignKeyOf; rel != nil {
			if fk, ok := sub.fks[rel]; ok && field.Creatable {
				values = append(values, Change{Column: rel.JoinColumn, Field: field, Relation: rel, Ref: fk})
			}
			continue
		}
		if field.PrimaryKey {
			if e.Identity != nil || field.Generated == schema.GeneratedNone {
				values = append(values, Change{Column: field.DBName, Ref: Ref{Value: field.ColumnValue(e.Value)}})
			}
			continue
		}
		if !field.Creatable {
			continue
		}
		if (field.AutoCreateTime || field.AutoUpdateTime) && isZero(field, e.Value) {
			values = append(values, Change{Column: field.DBName, Field: field, Ref: Ref{Value: stamp(field, p.now)}})
			continue
		}
		values = append(values, Change{Column: field.DBName, Ref: Ref{Value: field.ColumnValue(e.Value)}})
	}
	return append(values, p.unmirroredKeys(sub)...)
}

// unmirroredKeys foreign keys of relations without a scalar mirror field
func (p *planner) unmirroredKeys(sub *subject) []Change {
	var values []Change
	for _, rel := range sub.entity.Schema.Relationships {
		if fk, ok := sub.fks[rel]; ok && rel.ForeignKey == nil {
			values = append(values, Change{Column: rel.JoinColumn, Relation: rel, Ref: fk})
		}
	}
	return values
}

func (p *planner) planUpdates() {
	for _, sub := range p.subjects {
		if sub.insert {
			continue
		}
		var changes []Change
		if sub.db == nil {
			changes = p.blindChanges(sub)
		} else {
			changes = p.diff(sub)
		}
		if len(changes) == 0 {
			continue
		}
		for _, field := range sub.entity.Schema.Fields {
			if field.AutoUpdateTime && field.Updatable {
				changes = append(changes, Change{Column: field.DBName, Field: field, Ref: Ref{Value: stamp(field, p.now)}})
			}
		}
		p.op.Updates = append(p.op.Updates, &UpdateOperation{Entity: sub.entity, Changes: changes})
	}

	for _, op := range p.nullifies {
		if !p.removed[op.Entity] && !p.dropped[op] {
			p.op.Updates = append(p.op.Updates, op)
		}
	}
	p.op.Updates = append(p.op.Updates, p.deferred...)
}

// diff changed columns and foreign keys against the database counterpart
func (p *planner) diff(sub *subject) []Change {
	e, d := sub.entity, sub.db
	var changes []Change
	for _, field := range e.Schema.Fields {
		if field.PrimaryKey || field.AutoUpdateTime || field.ForeignKeyOf != nil || !field.Updatable {
			continue
		}
		if field.AutoCreateTime && isZero(field, e.Value) {
			continue
		}
		if v := field.ColumnValue(e.Value); !utils.AssertEqual(v, field.ColumnValue(d.Value)) {
			changes = append(changes, Change{Column: field.DBName, Ref: Ref{Value: v}})
		}
	}

	for _, rel := range e.Schema.Relationships {
		fk, ok := sub.fks[rel]
		if !ok || (rel.ForeignKey != nil && !rel.ForeignKey.Updatable) {
			continue
		}
		if !fk.Pending() && utils.AssertEqual(fk.Value, currentKey(rel, d.Value)) {
			continue
		}
		changes = append(changes, Change{Column: rel.JoinColumn, Field: rel.ForeignKey, Relation: rel, Ref: fk})
	}
	return changes
}

// blindChanges every updatable column, for rows assumed to exist
func (p *planner) blindChanges(sub *subject) []Change {
	e := sub.entity
	var changes []Change
	for _, field := range e.Schema.Fields {
		if field.PrimaryKey || field.AutoUpdateTime || field.ForeignKeyOf != nil || !field.Updatable {
			continue
		}
		if field.AutoCreateTime && isZero(field, e.Value) {
			continue
		}
		changes = append(changes, Change{Column: field.DBName, Ref: Ref{Value: field.ColumnValue(e.Value)}})
	}
	for _, rel := range e.Schema.Relationships {
		if fk, ok := sub.fks[rel]; ok {
			changes = append(changes, Change{Column: rel.JoinColumn, Field: rel.ForeignKey, Relation: rel, Ref: fk})
		}
	}
	return changes
}

// currentKey the stored foreign key of a database entity
func currentKey(rel *schema.Relationship, value reflect.Value) interface{} {
	if rel.ForeignKey != nil {
		return rel.ForeignKey.ColumnValue(value)
	}
	if related, _ := rel.Related(value); len(related) > 0 {
		return rel.ReferencedField().ColumnValue(related[0])
	}
	return nil
}

type pairSource struct {
	op    *JunctionOperation
	owner *EntityWithID
	other *EntityWithID
}

// junctionPairs pairs held by the many-to-many relations of the set, keyed
// and in discovery order
func junctionPairs(set *EntitySet, include func(*EntityWithID) bool) ([]string, map[string]pairSource) {
	var keys []string
	pairs := map[string]pairSource{}
	for _, e := range set.Entities() {
		if !include(e) {
			continue
		}
		for _, rel := range e.Schema.Relationships {
			if rel.Kind != schema.ManyToMany {
				continue
			}
			related, _ := rel.Related(e.Value)
			for _, r := range related {
				target := set.Lookup(r)
				if target == nil {
					continue
				}
				owner, other, owning := e, target, rel
				if !rel.IsOwning {
					owner, other, owning = target, e, rel.InverseRelation
				}
				op := &JunctionOperation{
					Relation: owning,
					Table:    owning.JunctionTable,
					Owner:    refTo(owner, owner.Schema.PrioritizedPrimaryField),
					Related:  refTo(other, other.Schema.PrioritizedPrimaryField),
				}
				key := op.key()
				if _, ok := pairs[key]; !ok {
					keys = append(keys, key)
					pairs[key] = pairSource{op: op, owner: owner, other: other}
				}
			}
		}
	}
	return keys, pairs
}

func (p *planner) planJunctions() {
	desiredKeys, desired := junctionPairs(p.req, func(*EntityWithID) bool { return true })
	currentKeys, current := junctionPairs(p.db, func(e *EntityWithID) bool { return !e.partial })

	for _, key := range desiredKeys {
		if _, ok := current[key]; !ok {
			p.op.JunctionInserts = append(p.op.JunctionInserts, desired[key].op)
		}
	}

	for _, key := range currentKeys {
		if _, ok := desired[key]; ok {
			continue
		}
		pair := current[key]
		if p.removed[pair.owner] || p.removed[pair.other] || p.inScope(pair) {
			p.op.JunctionDeletes = append(p.op.JunctionDeletes, pair.op)
		}
	}
}

// inScope reports whether a requested side touched the relation holding the pair
func (p *planner) inScope(pair pairSource) bool {
	if owner := p.req.FindSame(pair.owner); owner != nil {
		if _, touched := pair.op.Relation.Related(owner.Value); touched {
			return true
		}
	}
	if inv := pair.op.Relation.InverseRelation; inv != nil {
		if other := p.req.FindSame(pair.other); other != nil {
			if _, touched := inv.Related(other.Value); touched {
				return true
			}
		}
	}
	return false
}

// planRemovals orders removes so a row goes before the rows it references;
// reference cycles are cleared by updates first
func (p *planner) planRemovals() {
	if len(p.removals) == 0 {
		return
	}
	index := map[*EntityWithID]int{}
	for i, e := range p.removals {
		index[e] = i
	}

	refs := map[[2]int][]*schema.Relationship{}
	g := graph.New(len(p.removals))
	for i, e := range p.removals {
		for _, rel := range e.Schema.Relationships {
			if !rel.HoldsForeignKey() {
				continue
			}
			related, _ := rel.Related(e.Value)
			for _, r := range related {
				target := p.db.Lookup(r)
				if target == nil {
					target = p.db.Find(rel.FieldSchema, rel.FieldSchema.Identity(r))
				}
				if j, ok := index[target]; ok {
					g.Add(i, j)
					refs[[2]int{i, j}] = append(refs[[2]int{i, j}], rel)
				}
			}
		}
	}

	for _, comp := range cyclicComponents(g) {
		for _, i := range comp {
			var changes []Change
			for _, j := range comp {
				if !g.Edge(i, j) {
					continue
				}
				for _, rel := range refs[[2]int{i, j}] {
					changes = append(changes, Change{Column: rel.JoinColumn, Relation: rel})
				}
				g.Delete(i, j)
			}
			if len(changes) > 0 {
				p.op.Updates = append(p.op.Updates, &UpdateOperation{Entity: p.removals[i], Changes: changes})
			}
		}
	}

	for _, i := range stableOrder(g) {
		p.op.Removes = append(p.op.Removes, &RemoveOperation{Entity: p.removals[i]})
	}
}

func isZero(field *schema.Field, value reflect.Value) bool {
	_, zero := field.ValueOf(value)
	return zero
}

// stamp the auto time value of field: a time, or unix seconds for integer
// columns, in milli or nano seconds when the tag says so
func stamp(field *schema.Field, now time.Time) interface{} {
	if field.DataType != schema.Int && field.DataType != schema.Uint {
		return now
	}
	unit := field.TagSettings["AUTOCREATETIME"]
	if field.AutoUpdateTime {
		unit = field.TagSettings["AUTOUPDATETIME"]
	}
	switch strings.ToUpper(unit) {
	case "NANO":
		return now.UnixNano()
	case "MILLI":
		return now.UnixMilli()
	default:
		return now.Unix()
	}
}
