package entity

import "reflect"

// GetRelation reads a named relation field off any entity struct as a list
// of ids, uniformly treating single-valued relations (a string field, empty
// = unset) and multi-valued ones ([]string) as 0-or-more ids. This lets the
// Synthesizer and Maintainer walk RelationPairs generically instead of
// needing one switch-case per kind per field.
func GetRelation(e interface{}, field string) []string {
	v := reflect.ValueOf(e)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	fv := v.FieldByName(field)
	if !fv.IsValid() {
		return nil
	}
	switch fv.Kind() {
	case reflect.String:
		s := fv.String()
		if s == "" {
			return nil
		}
		return []string{s}
	case reflect.Slice:
		out := make([]string, fv.Len())
		for i := 0; i < fv.Len(); i++ {
			out[i] = fv.Index(i).String()
		}
		return out
	default:
		return nil
	}
}

// SetRelation writes a named relation field on any entity struct (must be
// passed as a pointer), accepting a uniform id list and collapsing it back
// to a scalar string for single-valued fields (first element wins; callers
// are expected to pass at most one id for those fields).
func SetRelation(e interface{}, field string, ids []string) {
	v := reflect.ValueOf(e)
	if v.Kind() != reflect.Ptr {
		return
	}
	fv := v.Elem().FieldByName(field)
	if !fv.IsValid() || !fv.CanSet() {
		return
	}
	switch fv.Kind() {
	case reflect.String:
		if len(ids) > 0 {
			fv.SetString(ids[0])
		} else {
			fv.SetString("")
		}
	case reflect.Slice:
		fv.Set(reflect.ValueOf(append([]string(nil), ids...)))
	}
}

// EntityID returns the id of any of the four entity kinds.
func EntityID(e interface{}) string {
	v := reflect.ValueOf(e)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	fv := v.FieldByName("ID")
	if !fv.IsValid() {
		return ""
	}
	return fv.String()
}

// containsID reports whether ids contains target, used for add/dedup logic
// across the Synthesizer and Maintainer.
func containsID(ids []string, target string) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}
