package utils

import (
	"database/sql/driver"
	"fmt"
	"path/filepath"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"time"
)

var relmapSourceDir string

func init() {
	_, file, _, _ := runtime.Caller(0)
	// utils lives one level below the module root
	relmapSourceDir = filepath.ToSlash(filepath.Dir(filepath.Dir(file))) + "/"
}

// FileWithLineNum return the file name and line number of the first caller outside relmap
func FileWithLineNum() string {
	for i := 2; i < 15; i++ {
		_, file, line, ok := runtime.Caller(i)
		if ok && (!strings.HasPrefix(file, relmapSourceDir) || strings.HasSuffix(file, "_test.go")) {
			return file + ":" + strconv.FormatInt(int64(line), 10)
		}
	}

	return ""
}

// CallerFrame returns the first caller frame outside relmap
func CallerFrame() runtime.Frame {
	pcs := [13]uintptr{}
	length := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:length])
	for frame, more := frames.Next(); more; frame, more = frames.Next() {
		if !strings.HasPrefix(frame.File, relmapSourceDir) || strings.HasSuffix(frame.File, "_test.go") {
			return frame
		}
	}
	return runtime.Frame{}
}

// CheckTruth check string true or not
func CheckTruth(vals ...string) bool {
	for _, val := range vals {
		if val != "" && !strings.EqualFold(val, "false") {
			return true
		}
	}
	return false
}

// ToStringKey joins values into a stable string usable as a map key.
// Numeric values of different widths produce the same key, so an id loaded
// as int64 matches the uint held by an entity.
func ToStringKey(values ...interface{}) string {
	results := make([]string, len(values))

	for idx, value := range values {
		if valuer, ok := value.(driver.Valuer); ok {
			value, _ = valuer.Value()
		}

		switch v := value.(type) {
		case nil:
			results[idx] = "<nil>"
		case string:
			results[idx] = v
		case []byte:
			results[idx] = string(v)
		case int:
			results[idx] = strconv.FormatInt(int64(v), 10)
		case int8:
			results[idx] = strconv.FormatInt(int64(v), 10)
		case int16:
			results[idx] = strconv.FormatInt(int64(v), 10)
		case int32:
			results[idx] = strconv.FormatInt(int64(v), 10)
		case int64:
			results[idx] = strconv.FormatInt(v, 10)
		case uint:
			results[idx] = strconv.FormatUint(uint64(v), 10)
		case uint8:
			results[idx] = strconv.FormatUint(uint64(v), 10)
		case uint16:
			results[idx] = strconv.FormatUint(uint64(v), 10)
		case uint32:
			results[idx] = strconv.FormatUint(uint64(v), 10)
		case uint64:
			results[idx] = strconv.FormatUint(v, 10)
		default:
			rv := reflect.Indirect(reflect.ValueOf(v))
			if rv.IsValid() {
				results[idx] = fmt.Sprint(rv.Interface())
			} else {
				results[idx] = "<nil>"
			}
		}
	}

	return strings.Join(results, "_")
}

// AssertEqual reports whether two column values are equal after resolving
// valuers, pointers and numeric widths.
func AssertEqual(src, dst interface{}) bool {
	if reflect.DeepEqual(src, dst) {
		return true
	}

	if valuer, ok := src.(driver.Valuer); ok {
		src, _ = valuer.Value()
	}

	if valuer, ok := dst.(driver.Valuer); ok {
		dst, _ = valuer.Value()
	}

	src, dst = indirectValue(src), indirectValue(dst)
	if src == nil || dst == nil {
		return src == nil && dst == nil
	}

	if st, ok := src.(time.Time); ok {
		if dt, ok := dst.(time.Time); ok {
			return st.Equal(dt)
		}
		return false
	}

	if reflect.DeepEqual(src, dst) {
		return true
	}

	if isNumber(src) && isNumber(dst) {
		return ToStringKey(src) == ToStringKey(dst)
	}

	return false
}

func indirectValue(v interface{}) interface{} {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}

func isNumber(v interface{}) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
