package querycache

import (
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// KeySeparator joins flattened tokens inside a cache key.
const KeySeparator = "_"

// FieldSource lets a type name the data that identifies it instead of having its
// exported fields enumerated by reflection. Flatten and Equal both honor it.
type FieldSource interface {
	FlattenFields() map[string]any
}

// Flatten turns any value into an ordered sequence of string tokens.
//
// Rules, in precedence order:
//   - nil (untyped, or a nil pointer/interface/map/slice/func/chan) yields one empty token
//   - strings yield themselves verbatim
//   - time.Time, time.Duration, uuid.UUID and the math/big numbers yield their text form
//   - slices, arrays and maps yield the concatenated tokens of their elements; map entries
//     are ordered by their flattened keys and contribute key tokens then value tokens
//   - FieldSource values and structs with exported fields yield the tokens of each field,
//     ordered by field name
//   - anything else yields fmt.Sprint(v)
//
// Pointers are followed. A pointer cycle contributes one empty token where it closes.
// Flatten never panics.
func Flatten(v any) []string {
	var f flattener
	return f.appendValue(nil, reflect.ValueOf(v))
}

// JoinTokens joins tokens with KeySeparator.
func JoinTokens(tokens []string) string {
	return strings.Join(tokens, KeySeparator)
}

type visit struct {
	ptr uintptr
	typ reflect.Type
}

type flattener struct {
	path map[visit]struct{}
}

func (f *flattener) enter(v visit) bool {
	if f.path == nil {
		f.path = make(map[visit]struct{})
	}
	if _, ok := f.path[v]; ok {
		return false
	}
	f.path[v] = struct{}{}
	return true
}

func (f *flattener) leave(v visit) { delete(f.path, v) }

func (f *flattener) appendValue(out []string, rv reflect.Value) []string {
	rv = unwrapInterface(rv)
	if isNull(rv) {
		return append(out, "")
	}
	if tok, ok := scalarToken(rv); ok {
		return append(out, tok)
	}
	if src, ok := asFieldSource(rv); ok {
		if fields := src.FlattenFields(); len(fields) > 0 {
			return f.appendFieldMap(out, fields)
		}
		return append(out, leafText(rv))
	}

	switch rv.Kind() {
	case reflect.Pointer:
		v := visit{rv.Pointer(), rv.Type()}
		if !f.enter(v) {
			return append(out, "")
		}
		defer f.leave(v)
		return f.appendValue(out, rv.Elem())

	case reflect.String:
		return append(out, rv.String())

	case reflect.Slice:
		if rv.Len() > 0 {
			v := visit{rv.Pointer(), rv.Type()}
			if !f.enter(v) {
				return append(out, "")
			}
			defer f.leave(v)
		}
		for i := 0; i < rv.Len(); i++ {
			out = f.appendValue(out, rv.Index(i))
		}
		return out

	case reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			out = f.appendValue(out, rv.Index(i))
		}
		return out

	case reflect.Map:
		v := visit{rv.Pointer(), rv.Type()}
		if !f.enter(v) {
			return append(out, "")
		}
		defer f.leave(v)
		return f.appendMap(out, rv)

	case reflect.Struct:
		fields := exportedFields(rv.Type())
		if len(fields) == 0 {
			break
		}
		for _, sf := range fields {
			fv, err := rv.FieldByIndexErr(sf.index)
			if err != nil {
				// promoted through a nil embedded pointer
				out = append(out, "")
				continue
			}
			out = f.appendValue(out, fv)
		}
		return out
	}

	return append(out, leafText(rv))
}

type mapEntry struct {
	sortKey string
	key     []string
	value   []string
}

func (f *flattener) appendMap(out []string, rv reflect.Value) []string {
	entries := make([]mapEntry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := f.appendValue(nil, iter.Key())
		entries = append(entries, mapEntry{
			sortKey: JoinTokens(k),
			key:     k,
			value:   f.appendValue(nil, iter.Value()),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].sortKey != entries[j].sortKey {
			return entries[i].sortKey < entries[j].sortKey
		}
		return JoinTokens(entries[i].value) < JoinTokens(entries[j].value)
	})
	for _, e := range entries {
		out = append(out, e.key...)
		out = append(out, e.value...)
	}
	return out
}

func (f *flattener) appendFieldMap(out []string, fields map[string]any) []string {
	for _, name := range sortedNames(fields) {
		out = f.appendValue(out, reflect.ValueOf(fields[name]))
	}
	return out
}

func sortedNames(fields map[string]any) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func unwrapInterface(rv reflect.Value) reflect.Value {
	for rv.IsValid() && rv.Kind() == reflect.Interface && !rv.IsNil() {
		rv = rv.Elem()
	}
	return rv
}

// isNull reports whether rv stands for a null value.
func isNull(rv reflect.Value) bool {
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// ---- field enumeration ----

type structField struct {
	name  string
	index []int
}

var fieldCache sync.Map // reflect.Type -> []structField

// exportedFields returns the exported, readable data fields of t ordered by name.
// Fields promoted from embedded structs are included in place of the embedded field itself.
func exportedFields(t reflect.Type) []structField {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]structField)
	}
	var fields []structField
	for _, sf := range reflect.VisibleFields(t) {
		if !sf.IsExported() {
			continue
		}
		if sf.Anonymous && promotesFields(sf.Type) {
			continue
		}
		fields = append(fields, structField{name: sf.Name, index: sf.Index})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].name < fields[j].name })
	actual, _ := fieldCache.LoadOrStore(t, fields)
	return actual.([]structField)
}

func promotesFields(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || isScalarType(t) {
		return false
	}
	return len(exportedFields(t)) > 0
}

func asFieldSource(rv reflect.Value) (FieldSource, bool) {
	if !rv.CanInterface() {
		return nil, false
	}
	src, ok := rv.Interface().(FieldSource)
	return src, ok
}

// ---- scalar leaves ----

var (
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
	uuidType     = reflect.TypeOf(uuid.UUID{})
	bigIntType   = reflect.TypeOf(big.Int{})
	bigFloatType = reflect.TypeOf(big.Float{})
	bigRatType   = reflect.TypeOf(big.Rat{})
)

// isScalarType reports whether t is one of the value types that are always flattened to
// their text form even though they are arrays or structs underneath.
func isScalarType(t reflect.Type) bool {
	switch t {
	case timeType, durationType, uuidType, bigIntType, bigFloatType, bigRatType:
		return true
	}
	return false
}

func scalarToken(rv reflect.Value) (string, bool) {
	t := rv.Type()
	if t.Kind() == reflect.Pointer {
		if !isScalarType(t.Elem()) {
			return "", false
		}
		rv = rv.Elem()
	} else if !isScalarType(t) {
		return "", false
	}
	if !rv.CanInterface() {
		return fmt.Sprint(rv), true
	}
	p := reflect.New(rv.Type())
	p.Elem().Set(rv)
	switch x := p.Interface().(type) {
	case *time.Time:
		return x.Format(time.RFC3339Nano), true
	case *time.Duration:
		return x.String(), true
	case *uuid.UUID:
		return x.String(), true
	case *big.Int:
		return x.String(), true
	case *big.Float:
		return x.Text('g', -1), true
	case *big.Rat:
		return x.RatString(), true
	}
	return fmt.Sprint(rv), true
}

func leafText(rv reflect.Value) string {
	if rv.CanInterface() {
		return fmt.Sprint(rv.Interface())
	}
	return fmt.Sprint(rv)
}
