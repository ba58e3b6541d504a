package partitionkey

import (
	"reflect"
	"strings"
	"sync"
)

// UndefinedType is the type of Undefined.
type UndefinedType struct{}

// Undefined marks a value that is not there at all, as opposed to null.
// Object members holding Undefined are left out of the JSON text.
var Undefined UndefinedType

// Pair is a single object member.
type Pair struct {
	Key   string
	Value any
}

// Object is a string-keyed object that remembers insertion order.
// The zero value is an empty object.
type Object struct {
	keys   []string
	values map[string]any
}

// NewObject creates an Object holding pairs in order.
func NewObject(pairs ...Pair) *Object {
	o := &Object{}
	for _, p := range pairs {
		o.Set(p.Key, p.Value)
	}
	return o
}

// Set stores value under key. Overwriting a key keeps its original position.
func (o *Object) Set(key string, value any) {
	if o.values == nil {
		o.values = make(map[string]any)
	}
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Delete removes key.
func (o *Object) Delete(key string) {
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of members.
func (o *Object) Len() int {
	return len(o.keys)
}

// Keys returns the member names in insertion order.
func (o *Object) Keys() []string {
	keys := make([]string, len(o.keys))
	copy(keys, o.keys)
	return keys
}

// Range calls fn for each member in insertion order until fn returns false.
func (o *Object) Range(fn func(key string, value any) bool) {
	for _, k := range o.keys {
		if !fn(k, o.values[k]) {
			return
		}
	}
}

// MarshalJSON writes the object the way Stringify does.
func (o *Object) MarshalJSON() ([]byte, error) {
	s, err := Stringify(o)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// Field returns the named member of an Object, string-keyed map or struct.
// It returns Undefined when v has no such member, like a property read on a
// primitive or an array.
func Field(v any, name string) any {
	switch obj := v.(type) {
	case *Object:
		if obj == nil {
			return Undefined
		}
		if value, ok := obj.Get(name); ok {
			return value
		}
		return Undefined
	case Object:
		return Field(&obj, name)
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return Undefined
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		kt := rv.Type().Key()
		if kt.Kind() != reflect.String {
			return Undefined
		}
		value := rv.MapIndex(reflect.ValueOf(name).Convert(kt))
		if !value.IsValid() {
			return Undefined
		}
		return value.Interface()
	case reflect.Struct:
		for _, f := range cachedFields(rv.Type()) {
			if f.name != name {
				continue
			}
			fv, ok := fieldByIndex(rv, f.index)
			if !ok || (f.omitEmpty && isEmptyValue(fv)) {
				return Undefined
			}
			return fv.Interface()
		}
	}
	return Undefined
}

type field struct {
	name      string
	index     []int
	omitEmpty bool
	tagged    bool
}

var fieldCache sync.Map // map[reflect.Type][]field

func cachedFields(t reflect.Type) []field {
	if f, ok := fieldCache.Load(t); ok {
		return f.([]field)
	}
	f, _ := fieldCache.LoadOrStore(t, typeFields(t))
	return f.([]field)
}

// typeFields lists the JSON-visible fields of t in declaration order, with
// embedded struct fields promoted the way encoding/json promotes them.
func typeFields(t reflect.Type) []field {
	var all []field
	collectFields(t, nil, map[reflect.Type]bool{}, &all)

	byName := make(map[string][]field)
	for _, f := range all {
		byName[f.name] = append(byName[f.name], f)
	}

	var out []field
	for _, f := range all {
		if dominant, ok := dominantField(byName[f.name]); ok && sameIndex(dominant.index, f.index) {
			out = append(out, f)
		}
	}
	return out
}

func collectFields(t reflect.Type, index []int, visited map[reflect.Type]bool, out *[]field) {
	if visited[t] {
		return
	}
	visited[t] = true
	defer delete(visited, t)

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")

		ft := sf.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if sf.Anonymous && name == "" && ft.Kind() == reflect.Struct {
			// fields reached through an unexported embedded type are read-only
			if sf.IsExported() {
				collectFields(ft, appendIndex(index, i), visited, out)
			}
			continue
		}
		if !sf.IsExported() {
			continue
		}

		tagged := name != ""
		if !tagged {
			name = sf.Name
		}
		*out = append(*out, field{
			name:      name,
			index:     appendIndex(index, i),
			omitEmpty: hasOption(opts, "omitempty"),
			tagged:    tagged,
		})
	}
}

func appendIndex(index []int, i int) []int {
	next := make([]int, len(index)+1)
	copy(next, index)
	next[len(index)] = i
	return next
}

func hasOption(opts, name string) bool {
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if opt == name {
			return true
		}
	}
	return false
}

// dominantField picks the shallowest field, preferring tagged ones. Ambiguous
// names are dropped.
func dominantField(fields []field) (field, bool) {
	depth := len(fields[0].index)
	var candidates []field
	for _, f := range fields {
		switch {
		case len(f.index) < depth:
			depth = len(f.index)
			candidates = []field{f}
		case len(f.index) == depth:
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 1 {
		return candidates[0], true
	}
	var tagged []field
	for _, f := range candidates {
		if f.tagged {
			tagged = append(tagged, f)
		}
	}
	if len(tagged) == 1 {
		return tagged[0], true
	}
	return field{}, false
}

func sameIndex(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// fieldByIndex walks index, reporting false when it passes a nil embedded pointer.
func fieldByIndex(v reflect.Value, index []int) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Pointer:
		return v.IsNil()
	}
	return false
}
