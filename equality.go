package querycache

import (
	"reflect"

	"github.com/cespare/xxhash/v2"
)

// Equal reports whether a and b hold the same public data.
//
// The same pointer, map or slice is equal to itself; values of different dynamic types
// are not. Otherwise the comparison walks both values the way Flatten does: nils are equal
// to each other, strings and scalar leaves compare by their flattened text, iterables
// element by element and structs (or FieldSource values) field by field. A pointer cycle matches only a cycle
// that closes at the same step on the other side.
//
// Equal is meant for operation values, so that two separately built queries with the same
// inputs match each other in test doubles. Equal(a, b) implies Hash(a) == Hash(b).
func Equal(a, b any) bool {
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if !av.IsValid() || !bv.IsValid() {
		return !av.IsValid() && !bv.IsValid()
	}
	if av.Type() != bv.Type() {
		return false
	}
	var e equaler
	return e.values(av, bv)
}

// Hash returns a hash of v's type name and public data. It is consistent with Equal.
func Hash(v any) uint64 {
	return xxhash.Sum64String(OperationName(v) + KeySeparator + JoinTokens(Flatten(v)))
}

// OperationName returns the package-qualified type name of v with any pointer
// indirection removed, e.g. "users.GetByID".
func OperationName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "<nil>"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.String()
}

// equaler tracks the pointers on each side's current path separately, using the same
// rule as flattener, so a cycle closes on a only where it closes on b.
type equaler struct {
	pathA, pathB map[visit]struct{}
}

// enter pushes va and vb. When either is already on its path it reports cont=false,
// and eq is true only if both sides close their cycle here.
func (e *equaler) enter(va, vb visit) (cont, eq bool) {
	if e.pathA == nil {
		e.pathA = make(map[visit]struct{})
		e.pathB = make(map[visit]struct{})
	}
	_, ra := e.pathA[va]
	_, rb := e.pathB[vb]
	if ra || rb {
		return false, ra && rb
	}
	e.pathA[va] = struct{}{}
	e.pathB[vb] = struct{}{}
	return true, true
}

func (e *equaler) leave(va, vb visit) {
	delete(e.pathA, va)
	delete(e.pathB, vb)
}

// sameRef reports whether va and vb are the same reference reached with identical paths,
// in which case both sides flatten identically.
func (e *equaler) sameRef(va, vb visit) bool {
	if va != vb || len(e.pathA) != len(e.pathB) {
		return false
	}
	for v := range e.pathA {
		if _, ok := e.pathB[v]; !ok {
			return false
		}
	}
	return true
}

// ref runs next with va and vb on the path, short-circuiting on a shared reference or a
// closed cycle.
func (e *equaler) ref(va, vb visit, next func() bool) bool {
	if e.sameRef(va, vb) {
		return true
	}
	cont, eq := e.enter(va, vb)
	if !cont {
		return eq
	}
	defer e.leave(va, vb)
	return next()
}

func (e *equaler) values(a, b reflect.Value) bool {
	a, b = unwrapInterface(a), unwrapInterface(b)
	an, bn := isNull(a), isNull(b)
	if an || bn {
		return an && bn
	}
	if a.Type() != b.Type() {
		return false
	}

	if ta, ok := scalarToken(a); ok {
		tb, _ := scalarToken(b)
		return ta == tb
	}
	if sa, ok := asFieldSource(a); ok {
		sb, _ := asFieldSource(b)
		return e.fieldMaps(a, b, sa.FlattenFields(), sb.FlattenFields())
	}

	switch a.Kind() {
	case reflect.Pointer:
		return e.ref(refOf(a), refOf(b), func() bool {
			return e.values(a.Elem(), b.Elem())
		})

	case reflect.String:
		return a.String() == b.String()

	case reflect.Slice, reflect.Array:
		if a.Len() != b.Len() {
			return false
		}
		elems := func() bool {
			for i := 0; i < a.Len(); i++ {
				if !e.values(a.Index(i), b.Index(i)) {
					return false
				}
			}
			return true
		}
		if a.Kind() == reflect.Slice && a.Len() > 0 {
			return e.ref(refOf(a), refOf(b), elems)
		}
		return elems()

	case reflect.Map:
		if a.Len() != b.Len() {
			return false
		}
		return e.ref(refOf(a), refOf(b), func() bool {
			iter := a.MapRange()
			for iter.Next() {
				bv := b.MapIndex(iter.Key())
				if !bv.IsValid() || !e.values(iter.Value(), bv) {
					return false
				}
			}
			return true
		})

	case reflect.Struct:
		fields := exportedFields(a.Type())
		if len(fields) == 0 {
			break
		}
		for _, sf := range fields {
			fa, errA := a.FieldByIndexErr(sf.index)
			fb, errB := b.FieldByIndexErr(sf.index)
			if errA != nil || errB != nil {
				if (errA != nil) != (errB != nil) {
					return false
				}
				continue
			}
			if !e.values(fa, fb) {
				return false
			}
		}
		return true
	}

	return leafText(a) == leafText(b)
}

func refOf(rv reflect.Value) visit { return visit{rv.Pointer(), rv.Type()} }

func (e *equaler) fieldMaps(a, b reflect.Value, fa, fb map[string]any) bool {
	if len(fa) == 0 || len(fb) == 0 {
		if len(fa) != len(fb) {
			return false
		}
		return leafText(a) == leafText(b)
	}
	if len(fa) != len(fb) {
		return false
	}
	for name, va := range fa {
		vb, ok := fb[name]
		if !ok || !e.values(reflect.ValueOf(va), reflect.ValueOf(vb)) {
			return false
		}
	}
	return true
}
