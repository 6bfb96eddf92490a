package persist

import (
	"fmt"
	"reflect"

	"github.com/relmap/relmap/schema"
	"github.com/relmap/relmap/utils"
)

// EntityWithID an entity object with its schema and row identity, a nil
// Identity marks a pending insert
type EntityWithID struct {
	Identity interface{}
	Schema   *schema.Schema
	Value    reflect.Value

	index   int
	aliases []reflect.Value
	// partial entities come from a point lookup, their relations aren't loaded
	partial bool
}

// NewEntityWithID wraps value, a pointer to an entity of s
func NewEntityWithID(s *schema.Schema, value interface{}) (*EntityWithID, error) {
	rv, ok := value.(reflect.Value)
	if !ok {
		rv = reflect.ValueOf(value)
	}
	if rv.Kind() != reflect.Ptr || rv.IsNil() || !s.Owns(rv) {
		return nil, fmt.Errorf("%w: expected pointer to %s, got %s", ErrInvalidEntity, s.Name, rv.Type())
	}
	return &EntityWithID{Identity: s.Identity(rv), Schema: s, Value: rv, index: -1}, nil
}

func newEntity(s *schema.Schema, rv reflect.Value) *EntityWithID {
	return &EntityWithID{Identity: s.Identity(rv), Schema: s, Value: rv, index: -1}
}

// Interface returns the entity object
func (e *EntityWithID) Interface() interface{} {
	return e.Value.Interface()
}

// Pending reports whether the row is not inserted yet
func (e *EntityWithID) Pending() bool {
	return e.Identity == nil
}

// Key row key, unique per table and identity; pending entities use their
// position in the collection
func (e *EntityWithID) Key() string {
	if e.Identity == nil {
		return fmt.Sprintf("%s#%d", e.Schema.Table, e.index)
	}
	return e.Schema.Table + ":" + utils.ToStringKey(e.Identity)
}

// Same reports whether both denote the same logical row
func (e *EntityWithID) Same(other *EntityWithID) bool {
	if e == other {
		return true
	}
	if e == nil || other == nil || e.Identity == nil || other.Identity == nil {
		return false
	}
	return e.Schema == other.Schema && utils.ToStringKey(e.Identity) == utils.ToStringKey(other.Identity)
}

// Objects the entity object followed by other objects holding the same row
func (e *EntityWithID) Objects() []reflect.Value {
	return append([]reflect.Value{e.Value}, e.aliases...)
}

func (e *EntityWithID) String() string {
	if e.Identity == nil {
		return fmt.Sprintf("%s(new #%d)", e.Schema.Name, e.index)
	}
	return fmt.Sprintf("%s(%v)", e.Schema.Name, e.Identity)
}

type objectRef struct {
	typ reflect.Type
	ptr uintptr
}

func refOf(v reflect.Value) objectRef {
	return objectRef{typ: v.Type(), ptr: v.Pointer()}
}

// EntitySet entities in collection order, indexed by row identity and by
// object reference
type EntitySet struct {
	entities []*EntityWithID
	byKey    map[string]*EntityWithID
	byRef    map[objectRef]*EntityWithID
}

func NewEntitySet() *EntitySet {
	return &EntitySet{byKey: map[string]*EntityWithID{}, byRef: map[objectRef]*EntityWithID{}}
}

// Add records the entity, returning the entry already holding the same row
// if any; the object of e then becomes an alias of that entry
func (set *EntitySet) Add(e *EntityWithID) (*EntityWithID, bool) {
	ref := refOf(e.Value)
	if existing, ok := set.byRef[ref]; ok {
		return existing, false
	}

	if e.Identity != nil {
		key := e.Schema.Table + ":" + utils.ToStringKey(e.Identity)
		if existing, ok := set.byKey[key]; ok {
			existing.aliases = append(existing.aliases, e.Value)
			set.byRef[ref] = existing
			return existing, false
		}
		set.byKey[key] = e
	}

	e.index = len(set.entities)
	set.entities = append(set.entities, e)
	set.byRef[ref] = e
	return e, true
}

// Entities in collection order
func (set *EntitySet) Entities() []*EntityWithID {
	return set.entities
}

func (set *EntitySet) Len() int {
	return len(set.entities)
}

// Find the entry of the row (s, identity)
func (set *EntitySet) Find(s *schema.Schema, identity interface{}) *EntityWithID {
	if identity == nil {
		return nil
	}
	return set.byKey[s.Table+":"+utils.ToStringKey(identity)]
}

// FindSame the entry denoting the same row as e
func (set *EntitySet) FindSame(e *EntityWithID) *EntityWithID {
	if e == nil {
		return nil
	}
	return set.Find(e.Schema, e.Identity)
}

// Lookup the entry holding the object value
func (set *EntitySet) Lookup(value reflect.Value) *EntityWithID {
	if value.Kind() != reflect.Ptr || value.IsNil() {
		return nil
	}
	return set.byRef[refOf(value)]
}

// Contains reports whether the set holds the row of e
func (set *EntitySet) Contains(e *EntityWithID) bool {
	if e.Identity == nil {
		return set.byRef[refOf(e.Value)] != nil
	}
	return set.FindSame(e) != nil
}

// Index position of e in collection order
func (e *EntityWithID) Index() int {
	return e.index
}

// reindex refreshes the identity index after identities were assigned
func (set *EntitySet) reindex(e *EntityWithID) {
	if e.Identity != nil {
		set.byKey[e.Schema.Table+":"+utils.ToStringKey(e.Identity)] = e
	}
}

func (set *EntitySet) unindex(e *EntityWithID) {
	if e.Identity == nil {
		return
	}
	key := e.Schema.Table + ":" + utils.ToStringKey(e.Identity)
	if set.byKey[key] == e {
		delete(set.byKey, key)
	}
}
