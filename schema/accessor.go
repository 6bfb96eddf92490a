package schema

import (
	"reflect"
)

// ResolveRelationName resolves a relation given either its property name or
// an accessor func returning the address of the relation field:
//
//	schema.ResolveRelationName(s, "Tags")
//	schema.ResolveRelationName(s, func(p *Post) interface{} { return &p.Tags })
func ResolveRelationName(s *Schema, nameOrAccessor interface{}) (*Relationship, error) {
	switch v := nameOrAccessor.(type) {
	case string:
		return s.LookUpRelation(v)
	case *Relationship:
		if v.Schema != s {
			return nil, NewConfigurationError(s, v.Name, ErrRelationNotFound, "relation belongs to %s", v.Schema.Name)
		}
		return v, nil
	}

	fn := reflect.ValueOf(nameOrAccessor)
	if fn.Kind() != reflect.Func || fn.Type().NumIn() != 1 || fn.Type().NumOut() != 1 ||
		modelTypeOf(fn.Type().In(0)) != s.ModelType || fn.Type().In(0).Kind() != reflect.Ptr {
		return nil, NewConfigurationError(s, "", ErrRelationNotFound, "relation must be a name or func(*%s) returning a field address, got %T", s.Name, nameOrAccessor)
	}

	obj := s.New()
	out := fn.Call([]reflect.Value{obj})[0]
	for out.Kind() == reflect.Interface && !out.IsNil() {
		out = out.Elem()
	}
	if out.Kind() != reflect.Ptr || out.IsNil() {
		return nil, NewConfigurationError(s, "", ErrRelationNotFound, "relation accessor must return the address of a relation field")
	}

	for _, rel := range s.Relationships {
		fieldValue := rel.Field.ReflectValueOf(obj)
		if fieldValue.Addr().Pointer() == out.Pointer() && fieldValue.Type() == out.Type().Elem() {
			return rel, nil
		}
	}
	return nil, NewConfigurationError(s, "", ErrRelationNotFound, "relation accessor doesn't address a declared relation of %s", s.Name)
}
