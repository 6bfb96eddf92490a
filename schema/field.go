package schema

import (
	"database/sql"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/jinzhu/now"
	"github.com/relmap/relmap/utils"
)

type DataType string

const (
	Bool   DataType = "bool"
	Int    DataType = "int"
	Uint   DataType = "uint"
	Float  DataType = "float"
	String DataType = "string"
	Time   DataType = "time"
	Bytes  DataType = "bytes"
)

// GenerationStrategy how a primary key value is produced for new rows
type GenerationStrategy string

const (
	GeneratedNone      GenerationStrategy = ""
	GeneratedIncrement GenerationStrategy = "increment"
	GeneratedUUID      GenerationStrategy = "uuid"
)

type Field struct {
	Name              string
	DBName            string
	DataType          DataType
	PrimaryKey        bool
	Generated         GenerationStrategy
	Creatable         bool
	Updatable         bool
	Readable          bool
	AutoCreateTime    bool
	AutoUpdateTime    bool
	FieldType         reflect.Type
	IndirectFieldType reflect.Type
	StructField       reflect.StructField
	Tag               reflect.StructTag
	TagSettings       map[string]string
	Schema            *Schema
	// ForeignKeyOf is set when the column mirrors the join column of an owning relation
	ForeignKeyOf *Relationship
}

func (schema *Schema) parseField(fieldStruct reflect.StructField) *Field {
	field := &Field{
		Name:              fieldStruct.Name,
		FieldType:         fieldStruct.Type,
		IndirectFieldType: fieldStruct.Type,
		StructField:       fieldStruct,
		Creatable:         true,
		Updatable:         true,
		Readable:          true,
		Tag:               fieldStruct.Tag,
		TagSettings:       ParseTagSetting(fieldStruct.Tag.Get(TagName), ";"),
		Schema:            schema,
	}

	for field.IndirectFieldType.Kind() == reflect.Ptr {
		field.IndirectFieldType = field.IndirectFieldType.Elem()
	}

	field.DBName = tagValue(field.TagSettings, "COLUMN")

	if val, ok := field.TagSettings["PRIMARYKEY"]; ok && utils.CheckTruth(val) {
		field.PrimaryKey = true
	} else if val, ok := field.TagSettings["PRIMARY_KEY"]; ok && utils.CheckTruth(val) {
		field.PrimaryKey = true
	}

	if val, ok := field.TagSettings["AUTOINCREMENT"]; ok && utils.CheckTruth(val) {
		field.Generated = GeneratedIncrement
	}

	if val, ok := field.TagSettings["GENERATED"]; ok {
		switch GenerationStrategy(strings.ToLower(val)) {
		case GeneratedUUID:
			field.Generated = GeneratedUUID
		default:
			field.Generated = GeneratedIncrement
		}
	}

	switch field.IndirectFieldType.Kind() {
	case reflect.Bool:
		field.DataType = Bool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		field.DataType = Int
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		field.DataType = Uint
	case reflect.Float32, reflect.Float64:
		field.DataType = Float
	case reflect.String:
		field.DataType = String
	case reflect.Struct:
		if field.IndirectFieldType.ConvertibleTo(TimeReflectType) {
			field.DataType = Time
		}
	case reflect.Array, reflect.Slice:
		if field.IndirectFieldType.Elem().Kind() == reflect.Uint8 {
			field.DataType = Bytes
		}
	}

	if _, ok := field.TagSettings["AUTOCREATETIME"]; ok || (field.Name == "CreatedAt" && (field.DataType == Time || field.DataType == Int || field.DataType == Uint)) {
		field.AutoCreateTime = true
	}

	if _, ok := field.TagSettings["AUTOUPDATETIME"]; ok || (field.Name == "UpdatedAt" && (field.DataType == Time || field.DataType == Int || field.DataType == Uint)) {
		field.AutoUpdateTime = true
	}

	// setup permission
	if _, ok := field.TagSettings["-"]; ok {
		field.Creatable = false
		field.Updatable = false
		field.Readable = false
	}

	if v, ok := field.TagSettings["->"]; ok {
		field.Creatable = false
		field.Updatable = false
		field.Readable = strings.ToLower(v) != "false"
	}

	if v, ok := field.TagSettings["<-"]; ok {
		field.Creatable = true
		field.Updatable = true

		if v != "<-" {
			field.Creatable = strings.Contains(v, "create")
			field.Updatable = strings.Contains(v, "update")
		}
	}

	return field
}

// ReflectValueOf returns the addressable field value of the entity
func (field *Field) ReflectValueOf(value reflect.Value) reflect.Value {
	return reflect.Indirect(value).FieldByIndex(field.StructField.Index)
}

// ValueOf returns field's value and if it is zero
func (field *Field) ValueOf(value reflect.Value) (interface{}, bool) {
	fieldValue := field.ReflectValueOf(value)
	return fieldValue.Interface(), fieldValue.IsZero()
}

// ColumnValue returns the value written to the column, nil pointers become NULL
func (field *Field) ColumnValue(value reflect.Value) interface{} {
	fieldValue := field.ReflectValueOf(value)
	if fieldValue.Kind() == reflect.Ptr {
		if fieldValue.IsNil() {
			return nil
		}
		return fieldValue.Elem().Interface()
	}
	return fieldValue.Interface()
}

// Set assigns a column value to the entity's field, converting driver types
func (field *Field) Set(value reflect.Value, v interface{}) error {
	if err := assign(field.ReflectValueOf(value), v); err != nil {
		return fmt.Errorf("failed to set value %#v to field %s.%s: %w", v, field.Schema.Name, field.Name, err)
	}
	return nil
}

func assign(dst reflect.Value, v interface{}) error {
	if v == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}

	if dst.CanAddr() && dst.Kind() != reflect.Ptr {
		if scanner, ok := dst.Addr().Interface().(sql.Scanner); ok {
			return scanner.Scan(v)
		}
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr && !rv.Type().AssignableTo(dst.Type()) {
		if rv.IsNil() {
			dst.Set(reflect.Zero(dst.Type()))
			return nil
		}
		return assign(dst, rv.Elem().Interface())
	}

	if dst.Kind() == reflect.Ptr {
		if rv.Type().AssignableTo(dst.Type()) {
			dst.Set(rv)
			return nil
		}
		elem := reflect.New(dst.Type().Elem())
		if err := assign(elem.Elem(), v); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}

	switch {
	case rv.Type().AssignableTo(dst.Type()):
		dst.Set(rv)
	case dst.Type().ConvertibleTo(TimeReflectType) && (rv.Kind() == reflect.String || rv.Type() == bytesType):
		t, err := now.Parse(toText(rv))
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(t).Convert(dst.Type()))
	case dst.Kind() == reflect.String && rv.Type() == bytesType:
		dst.SetString(string(rv.Bytes()))
	case isNumberKind(dst.Kind()) && (rv.Kind() == reflect.String || rv.Type() == bytesType):
		return assignNumberText(dst, toText(rv))
	case dst.Kind() == reflect.Bool && isNumberKind(rv.Kind()):
		dst.SetBool(!rv.IsZero())
	case isNumberKind(dst.Kind()) && isNumberKind(rv.Kind()):
		dst.Set(rv.Convert(dst.Type()))
	case dst.Kind() == rv.Kind() && rv.Type().ConvertibleTo(dst.Type()):
		dst.Set(rv.Convert(dst.Type()))
	case (dst.Kind() == reflect.Int64 || dst.Kind() == reflect.Uint64) && rv.Type() == TimeReflectType:
		dst.Set(reflect.ValueOf(v.(time.Time).Unix()).Convert(dst.Type()))
	default:
		return fmt.Errorf("%w: can't assign %T to %v", ErrInvalidValue, v, dst.Type())
	}
	return nil
}

func toText(rv reflect.Value) string {
	if rv.Kind() == reflect.String {
		return rv.String()
	}
	return string(rv.Bytes())
}

func assignNumberText(dst reflect.Value, text string) error {
	switch dst.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return err
		}
		dst.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return err
		}
		dst.SetUint(u)
	default:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return err
		}
		dst.SetFloat(f)
	}
	return nil
}

func isNumberKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
