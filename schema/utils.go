package schema

import (
	"database/sql"
	"database/sql/driver"
	"reflect"
	"strings"
	"time"
)

// TagName struct tag key read by the registry
const TagName = "relmap"

var (
	// TimeReflectType reflect type of time.Time
	TimeReflectType = reflect.TypeOf(time.Time{})
	scannerType     = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	valuerType      = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	bytesType       = reflect.TypeOf([]byte(nil))
)

// ParseTagSetting parse `relmap:"primaryKey;column:id"` into upper-cased keys
func ParseTagSetting(str string, sep string) map[string]string {
	settings := map[string]string{}
	names := strings.Split(str, sep)

	for i := 0; i < len(names); i++ {
		j := i
		if len(names[j]) > 0 {
			for {
				if names[j][len(names[j])-1] == '\\' {
					i++
					names[j] = names[j][0:len(names[j])-1] + sep + names[i]
					names[i] = ""
				} else {
					break
				}
			}
		}

		values := strings.Split(names[j], ":")
		k := strings.TrimSpace(strings.ToUpper(values[0]))
		if k == "" {
			continue
		}

		if len(values) >= 2 {
			settings[k] = strings.TrimSpace(strings.Join(values[1:], ":"))
		} else {
			settings[k] = k
		}
	}

	return settings
}

// tagValue returns the value of a setting, empty when declared as a bare flag
func tagValue(settings map[string]string, key string) string {
	if v := settings[key]; v != key {
		return v
	}
	return ""
}

// isColumnType reports whether a struct field maps onto a single column
// rather than a relation.
func isColumnType(t reflect.Type) bool {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t == TimeReflectType || t.ConvertibleTo(TimeReflectType) || t == bytesType {
		return true
	}

	if reflect.PtrTo(t).Implements(scannerType) || t.Implements(valuerType) {
		return true
	}

	switch t.Kind() {
	case reflect.Struct, reflect.Slice, reflect.Array, reflect.Map, reflect.Interface, reflect.Func, reflect.Chan:
		return t.Kind() == reflect.Array && t.Elem().Kind() == reflect.Uint8
	}
	return true
}

// isEntityType reports whether t (after pointers) is a struct that can be parsed as a model
func isEntityType(t reflect.Type) bool {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct && !isColumnType(t)
}
