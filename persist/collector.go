package persist

import (
	"reflect"

	"github.com/relmap/relmap/schema"
)

// Collect walks root and every entity reachable through the relations of s,
// depth first, returning each row once. Objects are visited at most once so
// cyclic graphs terminate; a second object with an already collected
// identity becomes an alias of the first.
func Collect(root interface{}, s *schema.Schema) *EntitySet {
	set := NewEntitySet()
	CollectInto(set, root, s)
	return set
}

// CollectInto adds root's graph to an existing set
func CollectInto(set *EntitySet, root interface{}, s *schema.Schema) {
	rv, ok := root.(reflect.Value)
	if !ok {
		rv = reflect.ValueOf(root)
	}
	if !rv.IsValid() {
		return
	}
	for rv.Kind() == reflect.Ptr && rv.Elem().Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Ptr {
		ptr := reflect.New(rv.Type())
		ptr.Elem().Set(rv)
		rv = ptr
	}
	if rv.IsNil() {
		return
	}

	c := collector{set: set, visited: map[objectRef]bool{}}
	c.visit(rv, s)
}

type collector struct {
	set     *EntitySet
	visited map[objectRef]bool
}

func (c *collector) visit(value reflect.Value, s *schema.Schema) {
	ref := refOf(value)
	if c.visited[ref] {
		return
	}
	c.visited[ref] = true
	c.set.Add(newEntity(s, value))

	for _, rel := range s.Relationships {
		related, _ := rel.Related(value)
		for _, r := range related {
			c.visit(r, rel.FieldSchema)
		}
	}
}
