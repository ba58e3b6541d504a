package partitionkey

import (
	"encoding/json"
	"math"
	"reflect"
)

// IsAbsentOrFalsy reports whether v counts as missing when deciding between
// resolution rules: nil, Undefined, "", false, numeric zero, NaN and nil
// references. Objects and arrays are never falsy, even when empty.
func IsAbsentOrFalsy(v any) bool {
	switch x := v.(type) {
	case nil, UndefinedType:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case json.Number:
		if x == "" {
			return true
		}
		f, err := x.Float64()
		return err == nil && (f == 0 || math.IsNaN(f))
	case *Object:
		return x == nil
	case Object:
		return false
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return !rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f == 0 || math.IsNaN(f)
	case reflect.String:
		return rv.Len() == 0
	case reflect.Pointer:
		if rv.IsNil() {
			return true
		}
		// a pointer stands for the value it points at
		switch elem := rv.Elem(); elem.Kind() {
		case reflect.Struct:
			return false
		case reflect.Pointer, reflect.Interface:
			return elem.IsNil()
		default:
			return IsAbsentOrFalsy(elem.Interface())
		}
	case reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}
