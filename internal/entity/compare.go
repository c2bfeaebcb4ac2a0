package entity

import (
	"fmt"
	"reflect"
)

// MultisetEqual compares two string slices by element-wise frequency
// (duplicates significant), never as sets — [a,a,b] != [a,b,b], but
// [a,a,b] == [a,b,a] (T7).
func MultisetEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, v := range a {
		counts[v]++
	}
	for _, v := range b {
		counts[v]--
	}
	for _, n := range counts {
		if n != 0 {
			return false
		}
	}
	return true
}

// PropertiesEqual is the per-kind property-level comparator used as the
// last resort in node-equality when neither a version field nor a
// lastEdited timestamp is available to compare. It inspects only the
// mutable scalar and relation fields named in ScalarFields/
// MutableRelationFields — reaching into a derived field here is the bug
// class this system guards against, so this function is the only place those tables are
// consulted for equality. Returns the equality result plus the names of any
// differing fields, for debugging.
func PropertiesEqual(kind Kind, a, b interface{}) (bool, []string) {
	var diffs []string

	for _, field := range ScalarFields[kind] {
		av := fieldValue(a, field)
		bv := fieldValue(b, field)
		if !scalarEqual(av, bv) {
			diffs = append(diffs, field)
		}
	}

	for _, field := range MutableRelationFields[kind] {
		if !MultisetEqual(GetRelation(a, field), GetRelation(b, field)) {
			diffs = append(diffs, field)
		}
	}

	return len(diffs) == 0, diffs
}

func fieldValue(e interface{}, field string) reflect.Value {
	v := reflect.ValueOf(e)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	return v.FieldByName(field)
}

func scalarEqual(a, b reflect.Value) bool {
	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid()
	}
	if a.Kind() == reflect.Slice {
		return MultisetEqual(toStringSlice(a), toStringSlice(b))
	}
	return reflect.DeepEqual(a.Interface(), b.Interface())
}

// toStringSlice renders every element to a comparable key for
// MultisetEqual. String elements (the common case: relation id lists,
// narrative thread names) use their own value directly; struct elements
// (e.g. Element.FilesMedia's []FileRef) are rendered field-by-field so two
// files with the same name but a different URL (or vice versa) are
// correctly distinguished rather than collapsing to an empty key.
func toStringSlice(v reflect.Value) []string {
	out := make([]string, v.Len())
	for i := 0; i < v.Len(); i++ {
		elem := v.Index(i)
		if elem.Kind() == reflect.String {
			out[i] = elem.String()
			continue
		}
		out[i] = fmt.Sprintf("%#v", elem.Interface())
	}
	return out
}
