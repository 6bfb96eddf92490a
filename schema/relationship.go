package schema

import (
	"reflect"
	"strings"

	"github.com/jinzhu/inflection"
)

// RelationKind relationship kind
type RelationKind string

const (
	OneToOne   RelationKind = "one_to_one"
	OneToMany  RelationKind = "one_to_many"
	ManyToOne  RelationKind = "many_to_one"
	ManyToMany RelationKind = "many_to_many"
)

// OrphanAction what happens to a related row dropped from a relation
type OrphanAction string

const (
	OrphanDelete  OrphanAction = "delete"
	OrphanNullify OrphanAction = "nullify"
	OrphanKeep    OrphanAction = "keep"
)

// JunctionTable auxiliary table of a many-to-many relation.
// OwnerColumn references the owning side, InverseColumn the other side.
type JunctionTable struct {
	Name          string
	OwnerColumn   string
	InverseColumn string
}

type Relationship struct {
	Name             string
	Kind             RelationKind
	Field            *Field
	Schema           *Schema
	FieldSchema      *Schema
	IsOwning         bool
	IsLazy           bool
	JoinColumn       string
	ReferencedColumn string
	// ForeignKey scalar field mirroring JoinColumn, nil when not declared
	ForeignKey      *Field
	JunctionTable   *JunctionTable
	InverseRelation *Relationship
	OrphanAction    OrphanAction

	inverseName string
	holderType  reflect.Type
	elemType    reflect.Type
	toMany      bool
}

// IsToMany reports whether the relation holds a collection
func (rel *Relationship) IsToMany() bool {
	return rel.Kind == OneToMany || rel.Kind == ManyToMany
}

// HoldsForeignKey reports whether rows of rel.Schema store the join column
func (rel *Relationship) HoldsForeignKey() bool {
	return rel.IsOwning && rel.Kind != ManyToMany
}

// ReferencedField field of the target entity referenced by the join column
func (rel *Relationship) ReferencedField() *Field {
	return rel.FieldSchema.LookUpField(rel.ReferencedColumn)
}

// JunctionColumns returns the junction columns from this side's point of view
func (rel *Relationship) JunctionColumns() (own, other string) {
	if rel.IsOwning {
		return rel.JunctionTable.OwnerColumn, rel.JunctionTable.InverseColumn
	}
	return rel.JunctionTable.InverseColumn, rel.JunctionTable.OwnerColumn
}

func (rel *Relationship) slot(value reflect.Value) (reflect.Value, bool) {
	fieldValue := rel.Field.ReflectValueOf(value)
	if rel.IsLazy {
		s := fieldValue.Addr().Interface().(lazySlot)
		if !s.lazyLoaded() {
			return reflect.Value{}, false
		}
		return s.lazyValue(), true
	}
	return fieldValue, true
}

// Related returns pointers to the entities held by the relation.
// touched is false when the relation was never loaded or assigned: an
// unloaded lazy slot, a nil slice or a nil single value. A loaded lazy slot
// holding nothing is touched with no related entities.
func (rel *Relationship) Related(value reflect.Value) (related []reflect.Value, touched bool) {
	v, loaded := rel.slot(value)
	if !loaded {
		return nil, false
	}

	if rel.IsToMany() {
		for v.Kind() == reflect.Ptr {
			if v.IsNil() {
				return nil, rel.IsLazy
			}
			v = v.Elem()
		}
		if v.IsNil() {
			return nil, rel.IsLazy
		}
		related = make([]reflect.Value, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			if elem := toEntityPointer(v.Index(i)); elem.IsValid() {
				related = append(related, elem)
			}
		}
		return related, true
	}

	if elem := toEntityPointer(v); elem.IsValid() {
		return []reflect.Value{elem}, true
	}
	return nil, rel.IsLazy
}

func toEntityPointer(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Ptr:
		for v.Kind() == reflect.Ptr && v.Elem().Kind() == reflect.Ptr {
			if v.IsNil() {
				return reflect.Value{}
			}
			v = v.Elem()
		}
		if v.IsNil() {
			return reflect.Value{}
		}
		return v
	case reflect.Struct:
		if v.IsZero() {
			return reflect.Value{}
		}
		if v.CanAddr() {
			return v.Addr()
		}
		p := reflect.New(v.Type())
		p.Elem().Set(v)
		return p
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Value{}
		}
		return toEntityPointer(v.Elem())
	}
	return reflect.Value{}
}

// SetRelated stores entities (pointers) into the relation of value, marking
// lazy slots loaded
func (rel *Relationship) SetRelated(value reflect.Value, related []reflect.Value) {
	var result reflect.Value
	if rel.IsToMany() {
		sliceType := rel.holderType
		for sliceType.Kind() == reflect.Ptr {
			sliceType = sliceType.Elem()
		}
		elemIsPtr := sliceType.Elem().Kind() == reflect.Ptr
		result = reflect.MakeSlice(sliceType, 0, len(related))
		for _, r := range related {
			if elemIsPtr {
				result = reflect.Append(result, r)
			} else {
				result = reflect.Append(result, r.Elem())
			}
		}
		if rel.holderType.Kind() == reflect.Ptr {
			p := reflect.New(sliceType)
			p.Elem().Set(result)
			result = p
		}
	} else if len(related) > 0 {
		result = related[0]
		if rel.holderType.Kind() != reflect.Ptr {
			result = result.Elem()
		}
	} else {
		result = reflect.Zero(rel.holderType)
	}

	fieldValue := rel.Field.ReflectValueOf(value)
	if rel.IsLazy {
		fieldValue.Addr().Interface().(lazySlot).setLazyValue(result)
		return
	}
	fieldValue.Set(result)
}

// ElemType entity type of the relation target
func (rel *Relationship) ElemType() reflect.Type {
	return rel.elemType
}

func (schema *Schema) newRelationship(fieldStruct reflect.StructField) *Relationship {
	field := schema.parseField(fieldStruct)
	rel := &Relationship{
		Name:        field.Name,
		Field:       field,
		Schema:      schema,
		inverseName: tagValue(field.TagSettings, "INVERSE"),
		holderType:  fieldStruct.Type,
	}

	if isLazyType(fieldStruct.Type) {
		rel.IsLazy = true
		rel.holderType = lazyElemType(fieldStruct.Type)
	}

	t := rel.holderType
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() == reflect.Slice {
		rel.toMany = true
		t = t.Elem()
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	rel.elemType = t

	switch {
	case hasSetting(field.TagSettings, "ONETOONE"):
		rel.Kind = OneToOne
	case hasSetting(field.TagSettings, "ONETOMANY"):
		rel.Kind = OneToMany
	case hasSetting(field.TagSettings, "MANYTOONE"):
		rel.Kind = ManyToOne
	case hasSetting(field.TagSettings, "MANYTOMANY"):
		rel.Kind = ManyToMany
	case rel.toMany && hasSetting(field.TagSettings, "JOINTABLE"):
		rel.Kind = ManyToMany
	case rel.toMany:
		rel.Kind = OneToMany
	default:
		rel.Kind = ManyToOne
	}
	return rel
}

func hasSetting(settings map[string]string, key string) bool {
	_, ok := settings[key]
	return ok
}

// resolve fills owning side, join columns and junction table of the relation.
// Inverse relations are linked afterwards by link.
func (rel *Relationship) resolve() error {
	schema, settings := rel.Schema, rel.Field.TagSettings

	if rel.IsToMany() != rel.toMany {
		return NewConfigurationError(schema, rel.Name, ErrUnsupportedRelation, "%s relation can't be declared on field of type %v", rel.Kind, rel.Field.FieldType)
	}

	if hasSetting(settings, "LAZY") && !rel.IsLazy {
		return NewConfigurationError(schema, rel.Name, ErrUnsupportedRelation, "lazy relation requires a schema.Lazy field, got %v", rel.Field.FieldType)
	}

	hasJoinColumn := hasSetting(settings, "JOINCOLUMN")
	hasJoinTable := hasSetting(settings, "JOINTABLE")

	switch rel.Kind {
	case ManyToOne:
		rel.IsOwning = true
	case OneToMany:
		rel.IsOwning = false
	case OneToOne:
		rel.IsOwning = hasJoinColumn || rel.inverseName == ""
	case ManyToMany:
		rel.IsOwning = hasJoinTable || rel.inverseName == ""
	}

	if rel.HoldsForeignKey() {
		rel.ReferencedColumn = tagValue(settings, "REFERENCES")
		if rel.ReferencedColumn == "" {
			rel.ReferencedColumn = rel.FieldSchema.PrioritizedPrimaryField.DBName
		} else if f := rel.FieldSchema.LookUpField(rel.ReferencedColumn); f != nil {
			rel.ReferencedColumn = f.DBName
		} else {
			return NewConfigurationError(schema, rel.Name, ErrUnsupportedRelation, "referenced column %q not found on %s", rel.ReferencedColumn, rel.FieldSchema.Name)
		}

		rel.JoinColumn = tagValue(settings, "JOINCOLUMN")
		if rel.JoinColumn == "" {
			rel.JoinColumn = schema.namer.JoinColumnName(rel.Name, rel.ReferencedColumn)
		} else if f := schema.FieldsByName[rel.JoinColumn]; f != nil {
			rel.JoinColumn = f.DBName
		}

		if f, ok := schema.FieldsByDBName[rel.JoinColumn]; ok {
			if f.ForeignKeyOf != nil && f.ForeignKeyOf != rel {
				return NewConfigurationError(schema, rel.Name, ErrUnsupportedRelation, "join column %q already used by relation %s", rel.JoinColumn, f.ForeignKeyOf.Name)
			}
			f.ForeignKeyOf = rel
			rel.ForeignKey = f
		}
	}

	if rel.Kind == ManyToMany && rel.IsOwning {
		targetPK := rel.FieldSchema.PrioritizedPrimaryField
		ownPK := schema.PrioritizedPrimaryField
		rel.JunctionTable = &JunctionTable{
			Name:          tagValue(settings, "JOINTABLE"),
			OwnerColumn:   tagValue(settings, "JOINCOLUMN"),
			InverseColumn: tagValue(settings, "INVERSEJOINCOLUMN"),
		}
		if rel.JunctionTable.Name == "" {
			rel.JunctionTable.Name = schema.namer.JoinTableName(schema.Table + "_" + schema.namer.ColumnName("", rel.Name))
		} else {
			rel.JunctionTable.Name = schema.namer.JoinTableName(rel.JunctionTable.Name)
		}
		if rel.JunctionTable.OwnerColumn == "" {
			rel.JunctionTable.OwnerColumn = schema.namer.JoinColumnName(schema.Name, ownPK.DBName)
		}
		if rel.JunctionTable.InverseColumn == "" {
			rel.JunctionTable.InverseColumn = schema.namer.JoinColumnName(inflection.Singular(rel.Name), targetPK.DBName)
		}
		if rel.JunctionTable.OwnerColumn == rel.JunctionTable.InverseColumn {
			rel.JunctionTable.InverseColumn = "inverse_" + rel.JunctionTable.InverseColumn
		}
	}

	switch action := OrphanAction(strings.ToLower(tagValue(settings, "ORPHAN"))); action {
	case OrphanDelete, OrphanNullify, OrphanKeep:
		if action != OrphanKeep && (rel.Kind == ManyToOne || rel.Kind == ManyToMany) {
			return NewConfigurationError(schema, rel.Name, ErrUnsupportedRelation, "orphan action %q is not supported by %s relations", action, rel.Kind)
		}
		if action == OrphanNullify && rel.IsOwning {
			return NewConfigurationError(schema, rel.Name, ErrUnsupportedRelation, "orphan action %q requires the inverse side", action)
		}
		rel.OrphanAction = action
	case "":
		if rel.Kind == OneToMany || rel.Kind == OneToOne {
			rel.OrphanAction = OrphanDelete
		} else {
			rel.OrphanAction = OrphanKeep
		}
	default:
		return NewConfigurationError(schema, rel.Name, ErrUnsupportedRelation, "unknown orphan action %q", action)
	}

	return nil
}

// link connects the relation with its inverse side on the target schema
func (rel *Relationship) link() error {
	schema, target := rel.Schema, rel.FieldSchema

	var inverse *Relationship
	if rel.inverseName != "" {
		r, ok := target.RelationsByName[rel.inverseName]
		if !ok {
			return NewConfigurationError(schema, rel.Name, ErrRelationNotFound, "inverse relation %q not found on %s", rel.inverseName, target.Name)
		}
		inverse = r
	} else {
		// an inverse side pointing at this relation declares the pairing
		for _, r := range target.Relationships {
			if r.FieldSchema == schema && r.inverseName == rel.Name && r != rel {
				inverse = r
				break
			}
		}
	}

	if inverse == nil && rel.Kind == OneToMany {
		for _, r := range target.Relationships {
			if r.Kind == ManyToOne && r.FieldSchema == schema {
				if inverse != nil {
					return NewConfigurationError(schema, rel.Name, ErrUnsupportedRelation, "ambiguous inverse relation on %s, declare inverse", target.Name)
				}
				inverse = r
			}
		}
	}

	if inverse == nil {
		switch {
		case rel.Kind == OneToMany:
			return NewConfigurationError(schema, rel.Name, ErrUnsupportedRelation, "one-to-many relation requires a many-to-one inverse on %s", target.Name)
		case !rel.IsOwning:
			return NewConfigurationError(schema, rel.Name, ErrUnsupportedRelation, "inverse side requires an owning relation on %s", target.Name)
		}
		return nil
	}

	expected := map[RelationKind]RelationKind{OneToOne: OneToOne, OneToMany: ManyToOne, ManyToOne: OneToMany, ManyToMany: ManyToMany}
	if inverse.Kind != expected[rel.Kind] || inverse.FieldSchema != schema {
		return NewConfigurationError(schema, rel.Name, ErrUnsupportedRelation, "inverse relation %s.%s (%s) doesn't match %s", target.Name, inverse.Name, inverse.Kind, rel.Kind)
	}

	if rel.IsOwning == inverse.IsOwning && rel.Kind != ManyToOne && rel.Kind != OneToMany {
		return NewConfigurationError(schema, rel.Name, ErrUnsupportedRelation, "exactly one side of %s.%s and %s.%s must own the relation", schema.Name, rel.Name, target.Name, inverse.Name)
	}

	rel.InverseRelation = inverse
	inverse.InverseRelation = rel

	if rel.Kind == ManyToMany && !rel.IsOwning {
		rel.JunctionTable = inverse.JunctionTable
	}
	return nil
}
