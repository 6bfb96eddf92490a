package schema

import (
	"fmt"
	"reflect"
	"sync"
)

// Registry parses and caches entity schemas by Go type and table name
type Registry struct {
	namer   Namer
	mu      sync.Mutex
	byType  sync.Map
	byTable sync.Map
}

// NewRegistry returns an empty registry, nil namer means NamingStrategy{}
func NewRegistry(namer Namer) *Registry {
	if namer == nil {
		namer = NamingStrategy{}
	}
	return &Registry{namer: namer}
}

func (r *Registry) Namer() Namer {
	return r.namer
}

// Register parses models eagerly so that later lookups by table succeed
func (r *Registry) Register(models ...interface{}) error {
	for _, model := range models {
		if _, err := r.Parse(model); err != nil {
			return err
		}
	}
	return nil
}

// Parse returns the schema of model, which may be a struct, a pointer, a
// slice of either, or a reflect.Type
func (r *Registry) Parse(model interface{}) (*Schema, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: nil model", ErrUnsupportedDataType)
	}
	if t, ok := model.(reflect.Type); ok {
		return r.ParseType(t)
	}
	if v, ok := model.(reflect.Value); ok {
		return r.ParseType(v.Type())
	}
	return r.ParseType(reflect.TypeOf(model))
}

// ParseType returns the cached schema of modelType, parsing it and every
// entity reachable through its relations on first use
func (r *Registry) ParseType(modelType reflect.Type) (*Schema, error) {
	modelType = modelTypeOf(modelType)
	if modelType.Kind() != reflect.Struct {
		if modelType.PkgPath() == "" {
			return nil, fmt.Errorf("%w: %+v", ErrUnsupportedDataType, modelType)
		}
		return nil, fmt.Errorf("%w: %s.%s", ErrUnsupportedDataType, modelType.PkgPath(), modelType.Name())
	}

	if v, ok := r.byType.Load(modelType); ok {
		return v.(*Schema), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.byType.Load(modelType); ok {
		return v.(*Schema), nil
	}

	pending := map[reflect.Type]*Schema{}
	var order []*Schema
	s, err := r.parse(modelType, pending, &order)
	if err != nil {
		return nil, err
	}

	for _, ps := range order {
		for _, rel := range ps.Relationships {
			if err := rel.resolve(); err != nil {
				return nil, err
			}
		}
	}

	for _, ps := range order {
		for _, rel := range ps.Relationships {
			if err := rel.link(); err != nil {
				return nil, err
			}
		}
	}

	for _, ps := range order {
		r.byType.Store(ps.ModelType, ps)
		r.byTable.LoadOrStore(ps.Table, ps)
	}
	return s, nil
}

func (r *Registry) parse(modelType reflect.Type, pending map[reflect.Type]*Schema, order *[]*Schema) (*Schema, error) {
	modelType = modelTypeOf(modelType)
	if v, ok := r.byType.Load(modelType); ok {
		return v.(*Schema), nil
	}
	if s, ok := pending[modelType]; ok {
		return s, nil
	}
	if modelType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedDataType, modelType)
	}

	s := &Schema{
		Name:            modelType.Name(),
		ModelType:       modelType,
		FieldsByName:    map[string]*Field{},
		FieldsByDBName:  map[string]*Field{},
		RelationsByName: map[string]*Relationship{},
		namer:           r.namer,
	}

	if tabler, ok := reflect.New(modelType).Interface().(Tabler); ok {
		s.Table = tabler.TableName()
	} else {
		s.Table = r.namer.TableName(modelType.Name())
	}

	pending[modelType] = s
	*order = append(*order, s)

	relationFields, err := s.parseFields(modelType)
	if err != nil {
		return nil, err
	}

	for _, fieldStruct := range relationFields {
		rel := s.newRelationship(fieldStruct)
		target, err := r.parse(rel.elemType, pending, order)
		if err != nil {
			return nil, NewConfigurationError(s, rel.Name, err, "can't parse relation target %v: %v", rel.elemType, err)
		}
		rel.FieldSchema = target
		s.Relationships = append(s.Relationships, rel)
		s.RelationsByName[rel.Name] = rel
	}
	return s, nil
}

// Lookup returns the schema of an already parsed model
func (r *Registry) Lookup(model interface{}) (*Schema, bool) {
	t, ok := model.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(model)
	}
	if t == nil {
		return nil, false
	}
	if v, ok := r.byType.Load(modelTypeOf(t)); ok {
		return v.(*Schema), true
	}
	return nil, false
}

// LookupTable returns the schema registered for table
func (r *Registry) LookupTable(table string) (*Schema, bool) {
	if v, ok := r.byTable.Load(table); ok {
		return v.(*Schema), true
	}
	return nil, false
}

func modelTypeOf(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Slice || t.Kind() == reflect.Array || t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}
