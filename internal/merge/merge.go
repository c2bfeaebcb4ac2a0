// Package merge implements the entity merger: the upstream may
// return, in response to an update, a page containing only the
// just-changed properties. Decoding it yields empty values for fields the
// caller never mentioned, which must not be read as "the caller cleared
// these fields". Merge reconciles the decoded partial against the
// pre-update snapshot using the caller's own field set as the source of
// truth for what was actually intended to change.
package merge

import "reflect"

// Merge combines old (the pre-update entity, pointer) and decodedPartial
// (the just-decoded response, pointer, same concrete type) into a new
// value of that type: fields named in requestFields take decodedPartial's
// value; fields not named, if decodedPartial's value is empty and old's is
// not, keep old's value; otherwise decodedPartial's value wins. Returns the
// merged value (pointer) and the names of any fields whose value would
// have silently decreased from non-empty to empty without being in
// requestFields — recorded as a consistency warning for the caller.
func Merge(old, decodedPartial interface{}, requestFields map[string]bool) (interface{}, []string) {
	ov := reflect.ValueOf(old)
	dv := reflect.ValueOf(decodedPartial)
	if ov.Kind() == reflect.Ptr {
		ov = ov.Elem()
	}
	if dv.Kind() == reflect.Ptr {
		dv = dv.Elem()
	}

	t := ov.Type()
	merged := reflect.New(t).Elem()
	var warnings []string

	for i := 0; i < t.NumField(); i++ {
		name := t.Field(i).Name
		oldField := ov.Field(i)
		newField := dv.Field(i)

		if name == "ID" {
			merged.Field(i).Set(oldField)
			continue
		}

		if requestFields[name] {
			merged.Field(i).Set(newField)
			continue
		}

		if isEmpty(newField) && !isEmpty(oldField) {
			warnings = append(warnings, name)
			merged.Field(i).Set(oldField)
			continue
		}

		merged.Field(i).Set(newField)
	}

	return merged.Addr().Interface(), warnings
}

func isEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return v.String() == ""
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int:
		return v.Int() == 0
	default:
		return v.IsZero()
	}
}
