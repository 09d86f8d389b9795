package config

import (
	"reflect"
)

// DeepMerge overlays the non-zero fields of src onto dst. Both must be
// pointers to the same type. Slices replace wholesale when non-empty; maps
// merge key by key; pointers to structs merge field by field.
func DeepMerge(dst, src any) {
	dstVal := reflect.ValueOf(dst)
	srcVal := reflect.ValueOf(src)

	if dstVal.Kind() != reflect.Ptr || srcVal.Kind() != reflect.Ptr {
		return
	}
	if dstVal.IsNil() || srcVal.IsNil() || dstVal.Type() != srcVal.Type() {
		return
	}

	mergeValues(dstVal.Elem(), srcVal.Elem())
}

func mergeValues(dst, src reflect.Value) {
	if !dst.CanSet() || !src.IsValid() {
		return
	}

	switch dst.Kind() {
	case reflect.Struct:
		mergeStruct(dst, src)
	case reflect.Map:
		mergeMap(dst, src)
	case reflect.Slice:
		mergeSlice(dst, src)
	case reflect.Ptr:
		mergePointer(dst, src)
	default:
		mergeScalar(dst, src)
	}
}

func mergeStruct(dst, src reflect.Value) {
	for i := range dst.NumField() {
		mergeValues(dst.Field(i), src.Field(i))
	}
}

func mergePointer(dst, src reflect.Value) {
	if src.IsNil() {
		return
	}
	if dst.IsNil() || src.Elem().Kind() != reflect.Struct {
		dst.Set(src)
		return
	}
	merged := reflect.New(dst.Elem().Type())
	merged.Elem().Set(dst.Elem())
	mergeValues(merged.Elem(), src.Elem())
	dst.Set(merged)
}

// mergeMap merges src's entries into dst. Struct and map values present on
// both sides are merged recursively instead of replaced.
func mergeMap(dst, src reflect.Value) {
	if src.IsNil() {
		return
	}
	if dst.IsNil() {
		dst.Set(reflect.MakeMapWithSize(dst.Type(), src.Len()))
	}

	iter := src.MapRange()
	for iter.Next() {
		key, value := iter.Key(), iter.Value()
		existing := dst.MapIndex(key)
		if existing.IsValid() && (value.Kind() == reflect.Map || value.Kind() == reflect.Struct) {
			merged := reflect.New(existing.Type()).Elem()
			merged.Set(existing)
			mergeValues(merged, value)
			value = merged
		}
		dst.SetMapIndex(key, value)
	}
}

func mergeSlice(dst, src reflect.Value) {
	if src.Len() > 0 {
		dst.Set(src)
	}
}

// Zero scalars in src mean "unset", so an override can never reset a field
// to false or 0.
func mergeScalar(dst, src reflect.Value) {
	if !src.IsZero() {
		dst.Set(src)
	}
}
