package gate

import "reflect"

// IsSliceEqual compares two slices shallowly.
//
// Identical references are equal. Two string-keyed maps are equal when they
// have the same keys and every pair of values is strictly equal: maps,
// slices, pointers, channels and functions by identity, other values with ==.
// Two slices of the same type are equal when they have the same length and
// strictly equal elements. Anything else is compared strictly.
func IsSliceEqual(a, b any) bool {
	if sameReference(a, b) {
		return true
	}
	if as, bs, ok := sameTypeSlices(a, b); ok {
		if as.Len() != bs.Len() {
			return false
		}
		for i := range as.Len() {
			if !strictEqual(as.Index(i).Interface(), bs.Index(i).Interface()) {
				return false
			}
		}
		return true
	}
	am, aok := stringMap(a)
	bm, bok := stringMap(b)
	if !aok || !bok {
		return strictEqual(a, b)
	}
	if am.Len() != bm.Len() {
		return false
	}
	iter := am.MapRange()
	for iter.Next() {
		bv := bm.MapIndex(iter.Key())
		if !bv.IsValid() {
			return false
		}
		if !strictEqual(iter.Value().Interface(), bv.Interface()) {
			return false
		}
	}
	return true
}

func sameTypeSlices(a, b any) (reflect.Value, reflect.Value, bool) {
	if a == nil || b == nil {
		return reflect.Value{}, reflect.Value{}, false
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Kind() != reflect.Slice || ra.Type() != rb.Type() || ra.IsNil() || rb.IsNil() {
		return reflect.Value{}, reflect.Value{}, false
	}
	return ra, rb, true
}

func stringMap(v any) (reflect.Value, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String || rv.IsNil() {
		return reflect.Value{}, false
	}
	return rv, true
}

// sameReference reports whether a and b are the same map or slice, or are
// equal comparable values.
func sameReference(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Type() != rb.Type() {
		return false
	}
	switch ra.Kind() {
	case reflect.Map, reflect.Slice:
		if ra.IsNil() || rb.IsNil() {
			return ra.IsNil() && rb.IsNil()
		}
		return ra.Pointer() == rb.Pointer() && ra.Len() == rb.Len()
	}
	return false
}

// strictEqual compares by identity for reference kinds and by == otherwise.
func strictEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Type() != rb.Type() {
		return false
	}
	switch ra.Kind() {
	case reflect.Map, reflect.Slice:
		return sameReference(a, b)
	case reflect.Func, reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return ra.Pointer() == rb.Pointer()
	}
	if !ra.Comparable() {
		return false
	}
	return a == b
}
