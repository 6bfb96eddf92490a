package persist

import (
	"context"
	"reflect"

	"github.com/relmap/relmap/schema"
	"github.com/relmap/relmap/utils"
)

// RowFinder a Finder hydrating entities from plain rows
type RowFinder struct {
	reader RowReader
}

// NewRowFinder returns a Finder selecting rows through reader
func NewRowFinder(reader RowReader) *RowFinder {
	return &RowFinder{reader: reader}
}

// FindByID loads the columns of one entity. Owning to-one relations hold a
// new object carrying only the referenced key.
func (f *RowFinder) FindByID(ctx context.Context, s *schema.Schema, id interface{}) (interface{}, error) {
	row, err := f.row(ctx, s, id)
	if err != nil {
		return nil, err
	}

	obj := s.New()
	if err := hydrate(s, obj, row); err != nil {
		return nil, err
	}
	for _, rel := range s.Relationships {
		if !rel.HoldsForeignKey() {
			continue
		}
		var related []reflect.Value
		if fk := row[rel.JoinColumn]; fk != nil {
			ref := rel.FieldSchema.New()
			if err := rel.ReferencedField().Set(ref, fk); err != nil {
				return nil, err
			}
			related = append(related, ref)
		}
		rel.SetRelated(obj, related)
	}
	return obj.Interface(), nil
}

// FindByIDWithRelations loads one entity and follows every relation
func (f *RowFinder) FindByIDWithRelations(ctx context.Context, s *schema.Schema, id interface{}) (interface{}, error) {
	row, err := f.row(ctx, s, id)
	if err != nil {
		return nil, err
	}

	g := &graphLoader{reader: f.reader, seen: map[string]reflect.Value{}}
	objs, err := g.load(ctx, s, []map[string]interface{}{row})
	if err != nil {
		return nil, err
	}
	return objs[0].Interface(), nil
}

func (f *RowFinder) row(ctx context.Context, s *schema.Schema, id interface{}) (map[string]interface{}, error) {
	rows, err := f.reader.SelectRows(ctx, s.Table, map[string]interface{}{s.PrioritizedPrimaryField.DBName: id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &NotFoundError{Entity: s.Name, ID: id}
	}
	return rows[0], nil
}

func hydrate(s *schema.Schema, obj reflect.Value, row map[string]interface{}) error {
	for _, field := range s.Fields {
		if !field.Readable {
			continue
		}
		if v, ok := row[field.DBName]; ok {
			if err := field.Set(obj, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// graphLoader hydrates a row graph, one object per row
type graphLoader struct {
	reader RowReader
	seen   map[string]reflect.Value
}

func (g *graphLoader) load(ctx context.Context, s *schema.Schema, rows []map[string]interface{}) ([]reflect.Value, error) {
	objs := make([]reflect.Value, 0, len(rows))
	for _, row := range rows {
		key := s.Table + ":" + utils.ToStringKey(row[s.PrioritizedPrimaryField.DBName])
		if obj, ok := g.seen[key]; ok {
			objs = append(objs, obj)
			continue
		}

		obj := s.New()
		if err := hydrate(s, obj, row); err != nil {
			return nil, err
		}
		g.seen[key] = obj
		if err := g.relations(ctx, s, obj, row); err != nil {
			return nil, err
		}
		objs = append(objs, obj)
	}
	return objs, nil
}

func (g *graphLoader) relations(ctx context.Context, s *schema.Schema, obj reflect.Value, row map[string]interface{}) error {
	for _, rel := range s.Relationships {
		where, err := g.relatedWhere(ctx, s, rel, row)
		if err != nil {
			return err
		}

		var related []reflect.Value
		if where != nil {
			rows, err := g.reader.SelectRows(ctx, rel.FieldSchema.Table, where)
			if err != nil {
				return err
			}
			if related, err = g.load(ctx, rel.FieldSchema, rows); err != nil {
				return err
			}
		}
		if !rel.IsToMany() && len(related) > 1 {
			related = related[:1]
		}
		rel.SetRelated(obj, related)
	}
	return nil
}

// relatedWhere conditions selecting the rows related to row, nil when none can match
func (g *graphLoader) relatedWhere(ctx context.Context, s *schema.Schema, rel *schema.Relationship, row map[string]interface{}) (map[string]interface{}, error) {
	switch {
	case rel.Kind == schema.ManyToMany:
		own, other := rel.JunctionColumns()
		pairs, err := g.reader.SelectRows(ctx, rel.JunctionTable.Name, map[string]interface{}{own: row[s.PrioritizedPrimaryField.DBName]})
		if err != nil || len(pairs) == 0 {
			return nil, err
		}
		ids := make([]interface{}, 0, len(pairs))
		for _, pair := range pairs {
			ids = append(ids, pair[other])
		}
		return map[string]interface{}{rel.FieldSchema.PrioritizedPrimaryField.DBName: ids}, nil
	case rel.HoldsForeignKey():
		if fk := row[rel.JoinColumn]; fk != nil {
			return map[string]interface{}{rel.ReferencedColumn: fk}, nil
		}
	case rel.InverseRelation != nil:
		inv := rel.InverseRelation
		if v := row[inv.ReferencedColumn]; v != nil {
			return map[string]interface{}{inv.JoinColumn: v}, nil
		}
	}
	return nil, nil
}
