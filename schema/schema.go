package schema

import (
	"fmt"
	"go/ast"
	"reflect"

	"github.com/relmap/relmap/utils"
)

// Schema metadata of an entity type: table, columns, identity and relations
type Schema struct {
	Name                    string
	ModelType               reflect.Type
	Table                   string
	PrioritizedPrimaryField *Field
	Fields                  []*Field
	FieldsByName            map[string]*Field
	FieldsByDBName          map[string]*Field
	DBNames                 []string
	Relationships           []*Relationship
	RelationsByName         map[string]*Relationship
	namer                   Namer
}

func (schema Schema) String() string {
	if schema.ModelType.Name() == "" {
		return fmt.Sprintf("%s(%s)", schema.Name, schema.Table)
	}
	return fmt.Sprintf("%s.%s", schema.ModelType.PkgPath(), schema.ModelType.Name())
}

// LookUpField finds a column field by db name or struct field name
func (schema *Schema) LookUpField(name string) *Field {
	if field, ok := schema.FieldsByDBName[name]; ok {
		return field
	}
	if field, ok := schema.FieldsByName[name]; ok {
		return field
	}
	return nil
}

// LookUpRelation finds a declared relation by its property name
func (schema *Schema) LookUpRelation(name string) (*Relationship, error) {
	if rel, ok := schema.RelationsByName[name]; ok {
		return rel, nil
	}
	return nil, NewConfigurationError(schema, name, ErrRelationNotFound, "relation %q is not declared on %s", name, schema.Name)
}

// New returns a pointer to a new zero entity
func (schema *Schema) New() reflect.Value {
	return reflect.New(schema.ModelType)
}

// Identity returns the primary key value, nil when unset or zero
func (schema *Schema) Identity(value reflect.Value) interface{} {
	if value.Kind() == reflect.Ptr && value.IsNil() {
		return nil
	}
	pk := schema.PrioritizedPrimaryField
	if v, zero := pk.ValueOf(value); !zero {
		return reflect.Indirect(reflect.ValueOf(v)).Interface()
	}
	return nil
}

// SetIdentity assigns the primary key value
func (schema *Schema) SetIdentity(value reflect.Value, id interface{}) error {
	return schema.PrioritizedPrimaryField.Set(value, id)
}

// Owns reports whether value is an entity of this schema
func (schema *Schema) Owns(value reflect.Value) bool {
	return reflect.Indirect(value).Type() == schema.ModelType
}

func (schema *Schema) parseFields(modelType reflect.Type) (relationFields []reflect.StructField, err error) {
	for _, fieldStruct := range reflect.VisibleFields(modelType) {
		if !ast.IsExported(fieldStruct.Name) {
			continue
		}

		if fieldStruct.Anonymous {
			// promoted fields of embedded structs are visited on their own
			if fieldStruct.Type.Kind() == reflect.Struct && !isColumnType(fieldStruct.Type) {
				continue
			}
			if fieldStruct.Type.Kind() == reflect.Ptr {
				continue
			}
		}

		if len(fieldStruct.Index) > 1 && embeddedThroughPointer(modelType, fieldStruct.Index) {
			continue
		}

		settings := ParseTagSetting(fieldStruct.Tag.Get(TagName), ";")
		if _, ignored := settings["-"]; ignored {
			continue
		}

		if isRelationField(fieldStruct.Type, settings) {
			relationFields = append(relationFields, fieldStruct)
			continue
		}

		if !isColumnType(fieldStruct.Type) {
			return nil, NewConfigurationError(schema, fieldStruct.Name, ErrUnsupportedDataType, "unsupported field type %v", fieldStruct.Type)
		}

		field := schema.parseField(fieldStruct)
		if field.DBName == "" {
			field.DBName = schema.namer.ColumnName(schema.Table, field.Name)
		}

		if _, ok := schema.FieldsByDBName[field.DBName]; ok {
			continue
		}

		schema.Fields = append(schema.Fields, field)
		schema.FieldsByDBName[field.DBName] = field
		schema.FieldsByName[field.Name] = field
		schema.DBNames = append(schema.DBNames, field.DBName)

		if field.PrimaryKey && schema.PrioritizedPrimaryField == nil {
			schema.PrioritizedPrimaryField = field
		}
	}

	if schema.PrioritizedPrimaryField == nil {
		if f := schema.LookUpField("id"); f != nil {
			f.PrimaryKey = true
			schema.PrioritizedPrimaryField = f
		}
	}

	if pk := schema.PrioritizedPrimaryField; pk == nil {
		return nil, NewConfigurationError(schema, "", ErrPrimaryKeyRequired, "no primary key declared")
	} else if pk.Generated == GeneratedNone && (pk.DataType == Int || pk.DataType == Uint) {
		if val, ok := pk.TagSettings["AUTOINCREMENT"]; !ok || utils.CheckTruth(val) {
			pk.Generated = GeneratedIncrement
		}
	}

	return relationFields, nil
}

func embeddedThroughPointer(t reflect.Type, index []int) bool {
	for _, i := range index[:len(index)-1] {
		f := t.Field(i)
		if f.Type.Kind() == reflect.Ptr {
			return true
		}
		t = f.Type
	}
	return false
}

func isRelationField(t reflect.Type, settings map[string]string) bool {
	for _, kind := range []string{"ONETOONE", "ONETOMANY", "MANYTOONE", "MANYTOMANY"} {
		if _, ok := settings[kind]; ok {
			return true
		}
	}

	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if isLazyType(t) {
		return true
	}

	if t.Kind() == reflect.Slice {
		return isEntityType(t.Elem())
	}
	return isEntityType(t)
}
