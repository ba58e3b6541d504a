package partitionkey

import (
	"bytes"
	"cmp"
	"encoding"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"unicode/utf8"
)

var (
	// ErrUndefinedValue is returned when the value itself has no JSON text,
	// such as Undefined or a func.
	ErrUndefinedValue = errors.New("partitionkey: value has no JSON representation")

	// ErrCircularReference is returned when a value contains itself.
	ErrCircularReference = errors.New("partitionkey: circular reference")
)

// UnsupportedTypeError is returned for values JSON cannot express, such as
// complex numbers or maps with non-string keys.
type UnsupportedTypeError struct {
	Type reflect.Type
}

func (e *UnsupportedTypeError) Error() string {
	return "partitionkey: unsupported type: " + e.Type.String()
}

// MarshalerError wraps a failing MarshalJSON or MarshalText call.
type MarshalerError struct {
	Type reflect.Type
	Err  error
}

func (e *MarshalerError) Error() string {
	return fmt.Sprintf("partitionkey: marshal %s: %v", e.Type, e.Err)
}

func (e *MarshalerError) Unwrap() error {
	return e.Err
}

// Stringify returns the JSON text of v, byte for byte what JSON.stringify
// produces for the equivalent JavaScript value: no whitespace, array index
// keys first in numeric order and the other members in insertion order,
// members holding Undefined or funcs dropped.
func Stringify(v any) (string, error) {
	e := &encoder{}
	defined, err := e.encode(v)
	if err != nil {
		return "", err
	}
	if !defined {
		return "", ErrUndefinedValue
	}
	return e.buf.String(), nil
}

type visit struct {
	ptr uintptr
	typ reflect.Type
	len int
}

type encoder struct {
	buf      bytes.Buffer
	visiting map[visit]struct{}
}

// enter marks a reference as being written. The returned func must be
// called once the reference is done.
func (e *encoder) enter(key visit) (func(), error) {
	if e.visiting == nil {
		e.visiting = make(map[visit]struct{})
	}
	if _, ok := e.visiting[key]; ok {
		return nil, ErrCircularReference
	}
	e.visiting[key] = struct{}{}
	return func() { delete(e.visiting, key) }, nil
}

// encode writes v and reports whether it had a JSON representation at all.
func (e *encoder) encode(v any) (bool, error) {
	switch x := v.(type) {
	case nil:
		e.buf.WriteString("null")
		return true, nil
	case UndefinedType:
		return false, nil
	case *Object:
		if x == nil {
			e.buf.WriteString("null")
			return true, nil
		}
		return true, e.object(x)
	case Object:
		return true, e.object(&x)
	case string:
		e.str(x)
		return true, nil
	case bool:
		e.buf.WriteString(strconv.FormatBool(x))
		return true, nil
	case float64:
		e.buf.WriteString(formatNumber(x, 64))
		return true, nil
	case int:
		e.buf.WriteString(strconv.Itoa(x))
		return true, nil
	case json.Number:
		f, err := strconv.ParseFloat(string(x), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return false, fmt.Errorf("partitionkey: invalid number literal %q: %w", string(x), err)
		}
		e.buf.WriteString(formatNumber(f, 64))
		return true, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		if rv.IsNil() {
			e.buf.WriteString("null")
			return true, nil
		}
	}

	if m, ok := v.(json.Marshaler); ok {
		return e.marshaler(rv.Type(), m)
	}
	if m, ok := v.(encoding.TextMarshaler); ok {
		text, err := m.MarshalText()
		if err != nil {
			return false, &MarshalerError{Type: rv.Type(), Err: err}
		}
		e.str(string(text))
		return true, nil
	}
	return e.reflectValue(rv)
}

func (e *encoder) reflectValue(rv reflect.Value) (bool, error) {
	switch rv.Kind() {
	case reflect.Bool:
		e.buf.WriteString(strconv.FormatBool(rv.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		e.buf.WriteString(strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		e.buf.WriteString(strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		// float32 widens to a double, so 0.1 is written as 0.10000000149011612.
		e.buf.WriteString(formatNumber(rv.Float(), 64))
	case reflect.String:
		e.str(rv.String())
	case reflect.Interface:
		return e.encode(rv.Elem().Interface())
	case reflect.Pointer:
		leave, err := e.enter(visit{ptr: rv.Pointer(), typ: rv.Type()})
		if err != nil {
			return false, err
		}
		defer leave()
		return e.encode(rv.Elem().Interface())
	case reflect.Map:
		leave, err := e.enter(visit{ptr: rv.Pointer(), typ: rv.Type()})
		if err != nil {
			return false, err
		}
		defer leave()
		return true, e.mapValue(rv)
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			e.str(base64.StdEncoding.EncodeToString(rv.Bytes()))
			return true, nil
		}
		if rv.Len() > 0 {
			leave, err := e.enter(visit{ptr: rv.Pointer(), typ: rv.Type(), len: rv.Len()})
			if err != nil {
				return false, err
			}
			defer leave()
		}
		return true, e.array(rv)
	case reflect.Array:
		return true, e.array(rv)
	case reflect.Struct:
		return true, e.structValue(rv)
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return false, nil
	default:
		return false, &UnsupportedTypeError{Type: rv.Type()}
	}
	return true, nil
}

// marshaler re-reads MarshalJSON output so that it is written in canonical
// form, member order included.
func (e *encoder) marshaler(t reflect.Type, m json.Marshaler) (bool, error) {
	b, err := m.MarshalJSON()
	if err != nil {
		return false, &MarshalerError{Type: t, Err: err}
	}
	parsed, err := ParseJSON(b)
	if err != nil {
		return false, &MarshalerError{Type: t, Err: err}
	}
	return e.encode(parsed)
}

func (e *encoder) array(rv reflect.Value) error {
	e.buf.WriteByte('[')
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		defined, err := e.encode(rv.Index(i).Interface())
		if err != nil {
			return err
		}
		if !defined {
			e.buf.WriteString("null")
		}
	}
	e.buf.WriteByte(']')
	return nil
}

// members writes object members, skipping those without a JSON representation.
type members struct {
	e     *encoder
	count int
}

func (m *members) write(key string, value any) error {
	mark := m.e.buf.Len()
	if m.count > 0 {
		m.e.buf.WriteByte(',')
	}
	m.e.str(key)
	m.e.buf.WriteByte(':')
	defined, err := m.e.encode(value)
	if err != nil {
		return err
	}
	if !defined {
		m.e.buf.Truncate(mark)
		return nil
	}
	m.count++
	return nil
}

func (e *encoder) object(o *Object) error {
	leave, err := e.enter(visit{ptr: reflect.ValueOf(o).Pointer(), typ: reflect.TypeOf(o)})
	if err != nil {
		return err
	}
	defer leave()

	keys := slices.Clone(o.keys)
	indexKeysFirst(keys, func(k string) string { return k })

	e.buf.WriteByte('{')
	m := members{e: e}
	for _, k := range keys {
		if err := m.write(k, o.values[k]); err != nil {
			return err
		}
	}
	e.buf.WriteByte('}')
	return nil
}

func (e *encoder) mapValue(rv reflect.Value) error {
	type entry struct {
		key   string
		value reflect.Value
	}
	entries := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		key, err := mapKey(iter.Key())
		if err != nil {
			return err
		}
		entries = append(entries, entry{key: key, value: iter.Value()})
	}
	slices.SortFunc(entries, func(a, b entry) int {
		return cmp.Compare(a.key, b.key)
	})
	indexKeysFirst(entries, func(en entry) string { return en.key })

	e.buf.WriteByte('{')
	m := members{e: e}
	for _, en := range entries {
		if err := m.write(en.key, en.value.Interface()); err != nil {
			return err
		}
	}
	e.buf.WriteByte('}')
	return nil
}

func mapKey(k reflect.Value) (string, error) {
	if k.Kind() == reflect.String {
		return k.String(), nil
	}
	if tm, ok := k.Interface().(encoding.TextMarshaler); ok {
		if k.Kind() == reflect.Pointer && k.IsNil() {
			return "", nil
		}
		text, err := tm.MarshalText()
		if err != nil {
			return "", &MarshalerError{Type: k.Type(), Err: err}
		}
		return string(text), nil
	}
	switch k.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), nil
	}
	return "", &UnsupportedTypeError{Type: k.Type()}
}

func (e *encoder) structValue(rv reflect.Value) error {
	fields := slices.Clone(cachedFields(rv.Type()))
	indexKeysFirst(fields, func(f field) string { return f.name })

	e.buf.WriteByte('{')
	m := members{e: e}
	for _, f := range fields {
		fv, ok := fieldByIndex(rv, f.index)
		if !ok || (f.omitEmpty && isEmptyValue(fv)) {
			continue
		}
		if err := m.write(f.name, fv.Interface()); err != nil {
			return err
		}
	}
	e.buf.WriteByte('}')
	return nil
}

// arrayIndex reports whether key is a canonical array index: "0" or a
// decimal without leading zeros below 2^32-1.
func arrayIndex(key string) (uint32, bool) {
	if key == "" || len(key) > 10 || (len(key) > 1 && key[0] == '0') {
		return 0, false
	}
	n, err := strconv.ParseUint(key, 10, 32)
	if err != nil || n == math.MaxUint32 {
		return 0, false
	}
	return uint32(n), true
}

// indexKeysFirst moves array index keys to the front in numeric order.
// Every other key keeps its relative position.
func indexKeysFirst[T any](items []T, key func(T) string) {
	slices.SortStableFunc(items, func(a, b T) int {
		ai, aok := arrayIndex(key(a))
		bi, bok := arrayIndex(key(b))
		switch {
		case aok && bok:
			return cmp.Compare(ai, bi)
		case aok:
			return -1
		case bok:
			return 1
		}
		return 0
	})
}

const hexDigits = "0123456789abcdef"

// str writes s as a JSON string. Only quote, backslash and control
// characters are escaped; invalid UTF-8 becomes U+FFFD.
func (e *encoder) str(s string) {
	e.buf.WriteByte('"')
	start := 0
	for i := 0; i < len(s); {
		if c := s[i]; c < utf8.RuneSelf {
			if c >= 0x20 && c != '"' && c != '\\' {
				i++
				continue
			}
			e.buf.WriteString(s[start:i])
			switch c {
			case '"', '\\':
				e.buf.WriteByte('\\')
				e.buf.WriteByte(c)
			case '\b':
				e.buf.WriteString(`\b`)
			case '\f':
				e.buf.WriteString(`\f`)
			case '\n':
				e.buf.WriteString(`\n`)
			case '\r':
				e.buf.WriteString(`\r`)
			case '\t':
				e.buf.WriteString(`\t`)
			default:
				e.buf.WriteString(`\u00`)
				e.buf.WriteByte(hexDigits[c>>4])
				e.buf.WriteByte(hexDigits[c&0xF])
			}
			i++
			start = i
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			e.buf.WriteString(s[start:i])
			e.buf.WriteString("\uFFFD")
			i += size
			start = i
			continue
		}
		i += size
	}
	e.buf.WriteString(s[start:])
	e.buf.WriteByte('"')
}
